// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package filesystem describes the capabilities fsanalyzer needs from an
// opened filesystem: directory resolution, entry metadata, attribute
// iteration and block allocation status. The type codes follow the values
// used by common forensic parsing libraries so sessions backed by such a
// library can pass them through unchanged.
package filesystem

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotDirectory is returned by Entry.AsDirectory for entries that cannot be
// opened as a directory. Walkers treat it as a recoverable failure.
var ErrNotDirectory = errors.New("not a directory")

// ErrUnsupported marks images, offsets or lookups a session cannot handle.
var ErrUnsupported = errors.New("unsupported")

// ErrNotFound is returned when an inode or path cannot be resolved.
var ErrNotFound = errors.New("not found")

// TypeNTFS is the Info.Type of NTFS sessions.
const TypeNTFS = "ntfs"

// Info describes an opened filesystem.
type Info struct {
	Type       string
	BlockSize  int64
	BlockCount uint64
	RootInum   uint64
	FirstInum  uint64
	LastInum   uint64
}

// MultipleAttributes reports whether an inode can carry several attributes
// of the same kind, in which case attribute type and id are part of the
// identity of a record.
func (i Info) MultipleAttributes() bool {
	return i.Type == TypeNTFS
}

// Allocation exposes the block allocation bitmap of a filesystem.
type Allocation interface {
	BlockCount() uint64
	BlockAllocated(block uint64) (bool, error)
}

// Session is an opened filesystem.
type Session interface {
	Allocation
	Info() Info
	// OpenDirectory resolves an inode number or an absolute path. The empty
	// string opens the root directory.
	OpenDirectory(inodeOrPath string) (Directory, error)
	Close() error
}

// Directory is an opened directory.
type Directory interface {
	Addr() uint64
	Entries() ([]Entry, error)
}

// Entry is a single item of a directory listing.
type Entry interface {
	// Name returns the raw name bytes, ok is false if the entry has no name.
	Name() (name []byte, ok bool)
	NameType() NameType
	// Meta returns the resident metadata or nil if there is none.
	Meta() *Meta
	Attributes() []Attribute
	AsDirectory() (Directory, error)
}

// Attribute is a typed sub structure of an entry's metadata.
type Attribute interface {
	Type() AttrType
	ID() uint16
	// Name returns the attribute name, ok is false for unnamed attributes.
	Name() (name []byte, ok bool)
	Size() int64
}

// TimesAttribute is implemented by attributes that carry their own
// timestamps, e.g. NTFS $FILE_NAME attributes.
type TimesAttribute interface {
	Attribute
	Times() Times
}

// Timestamp is a point in time in seconds since the epoch plus a nanosecond
// remainder.
type Timestamp struct {
	Seconds int64
	Nanos   int64
}

// Times holds the four timestamps of a metadata record. Absent values are
// nil.
type Times struct {
	Modified *Timestamp
	Accessed *Timestamp
	Changed  *Timestamp
	Created  *Timestamp
}

// Meta is the resident metadata of an entry.
type Meta struct {
	Times
	Addr  uint64
	Type  MetaType
	Flags MetaFlags
	Size  int64
	Mode  uint32
	UID   uint32
	GID   uint32
	Seq   uint32
}

// Locate splits the inode-or-path argument accepted by OpenDirectory.
// An empty argument selects "/", arguments with a leading slash are paths and
// everything else must be a decimal inode number.
func Locate(inodeOrPath string) (path string, inode uint64, byInode bool, err error) {
	if inodeOrPath == "" {
		return "/", 0, false, nil
	}
	if strings.HasPrefix(inodeOrPath, "/") {
		return inodeOrPath, 0, false, nil
	}
	inode, err = strconv.ParseUint(inodeOrPath, 10, 64)
	if err != nil {
		return "", 0, false, errors.Wrapf(ErrUnsupported, "invalid inode %q", inodeOrPath)
	}
	return "", inode, true, nil
}
