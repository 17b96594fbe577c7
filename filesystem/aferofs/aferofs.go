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

// Package aferofs opens an afero.Fs as a filesystem.Session, e.g. a mounted
// image, an extracted directory tree or an sqlar archive.
//
// Every entry carries the attributes a forensic parser reports for
// filesystems without typed attributes: a standard information and a file
// name attribute holding the metadata timestamps, and an unnamed default
// attribute holding the content.
//
// Inode numbers are taken from the file info if the backing filesystem
// provides them (the Ino method of sqlar headers or the stat data of the
// operating system). Otherwise inode numbers are assigned in the order the
// entries are first seen, starting at 1 for the root directory.
package aferofs

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/fsanalyzer/filesystem"
)

// DefaultBlockSize is reported if no block size is configured.
const DefaultBlockSize = 4096

const (
	attrStandardInfoID uint16 = iota
	attrFileNameID
	attrDefaultID
)

type statInfo struct {
	inode uint64
	uid   uint32
	gid   uint32
	atime *filesystem.Timestamp
	ctime *filesystem.Timestamp
}

type inoder interface {
	Ino() uint64
}

var errFound = errors.New("found")

// Option configures a Session.
type Option func(*Session)

// WithAllocation sets the block allocation source, e.g. a filesystem.Bitmap.
func WithAllocation(alloc filesystem.Allocation) Option {
	return func(s *Session) { s.alloc = alloc }
}

// WithBlockSize sets the reported block size.
func WithBlockSize(size int64) Option {
	return func(s *Session) { s.blockSize = size }
}

// WithType sets the reported filesystem type. It defaults to the name of the
// afero.Fs.
func WithType(name string) Option {
	return func(s *Session) { s.typ = name }
}

// Session is a filesystem.Session on top of an afero.Fs. A Session is not
// safe for concurrent use.
type Session struct {
	fs        afero.Fs
	typ       string
	blockSize int64
	alloc     filesystem.Allocation

	root     uint64
	next     uint64
	first    uint64
	last     uint64
	byPath   map[string]uint64
	byInode  map[uint64]string
	assigned bool
}

var _ filesystem.Session = (*Session)(nil)

// New opens fs. The root directory of fs must exist.
func New(fs afero.Fs, options ...Option) (*Session, error) {
	s := &Session{
		fs:        fs,
		typ:       fs.Name(),
		blockSize: DefaultBlockSize,
		next:      1,
		byPath:    map[string]uint64{},
		byInode:   map[uint64]string{},
	}
	for _, option := range options {
		option(s)
	}

	info, err := fs.Stat("/")
	if err != nil {
		return nil, errors.Wrap(err, "could not open root directory")
	}
	if !info.IsDir() {
		return nil, errors.Wrap(filesystem.ErrNotDirectory, "root")
	}
	s.root = s.inode("/", info)
	return s, nil
}

// Info describes the filesystem. FirstInum and LastInum cover the inodes
// seen so far.
func (s *Session) Info() filesystem.Info {
	return filesystem.Info{
		Type:       s.typ,
		BlockSize:  s.blockSize,
		BlockCount: s.BlockCount(),
		RootInum:   s.root,
		FirstInum:  s.first,
		LastInum:   s.last,
	}
}

// BlockCount returns the number of blocks of the allocation source, 0 if
// there is none.
func (s *Session) BlockCount() uint64 {
	if s.alloc == nil {
		return 0
	}
	return s.alloc.BlockCount()
}

// BlockAllocated returns the allocation status of a block.
func (s *Session) BlockAllocated(block uint64) (bool, error) {
	if s.alloc == nil {
		return false, errors.Wrap(filesystem.ErrUnsupported, "no block allocation source")
	}
	return s.alloc.BlockAllocated(block)
}

// OpenDirectory opens a directory by inode number or absolute path.
func (s *Session) OpenDirectory(inodeOrPath string) (filesystem.Directory, error) {
	name, inode, byInode, err := filesystem.Locate(inodeOrPath)
	if err != nil {
		return nil, err
	}
	if byInode {
		name, err = s.pathOf(inode)
		if err != nil {
			return nil, err
		}
	}
	name = clean(name)

	info, err := s.fs.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(filesystem.ErrNotFound, name)
		}
		return nil, errors.Wrapf(err, "could not open %s", name)
	}
	if !info.IsDir() {
		return nil, errors.Wrap(filesystem.ErrNotDirectory, name)
	}
	return &directory{session: s, path: name, addr: s.inode(name, info)}, nil
}

// Close closes the afero.Fs if it can be closed.
func (s *Session) Close() error {
	if closer, ok := s.fs.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Session) inode(name string, info os.FileInfo) uint64 {
	if ino, ok := s.byPath[name]; ok {
		return ino
	}

	var ino uint64
	if i, ok := info.Sys().(inoder); ok {
		ino = i.Ino()
	} else if stat, ok := platformStat(info); ok {
		ino = stat.inode
	} else {
		ino = s.next
		s.next++
	}

	s.byPath[name] = ino
	if _, ok := s.byInode[ino]; !ok {
		s.byInode[ino] = name
	}
	if !s.assigned || ino < s.first {
		s.first = ino
	}
	if !s.assigned || ino > s.last {
		s.last = ino
	}
	s.assigned = true
	return ino
}

func (s *Session) pathOf(inode uint64) (string, error) {
	if name, ok := s.byInode[inode]; ok {
		return name, nil
	}

	var found string
	err := afero.Walk(s.fs, "/", func(name string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		name = clean(name)
		if s.inode(name, info) == inode {
			found = name
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return found, nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "could not search inode %d", inode)
	}
	return "", errors.Wrapf(filesystem.ErrNotFound, "inode %d", inode)
}

func (s *Session) meta(name string, info os.FileInfo) *filesystem.Meta {
	meta := &filesystem.Meta{
		Addr:  s.inode(name, info),
		Type:  metaType(info.Mode()),
		Flags: filesystem.MetaAllocated | filesystem.MetaUsed,
		Size:  info.Size(),
		Mode:  uint32(info.Mode().Perm()),
	}
	if mtime := info.ModTime(); !mtime.IsZero() {
		meta.Modified = &filesystem.Timestamp{Seconds: mtime.Unix(), Nanos: int64(mtime.Nanosecond())}
	}
	if stat, ok := platformStat(info); ok {
		meta.UID = stat.uid
		meta.GID = stat.gid
		meta.Accessed = stat.atime
		meta.Changed = stat.ctime
	}
	return meta
}

type directory struct {
	session *Session
	path    string
	addr    uint64
}

func (d *directory) Addr() uint64 {
	return d.addr
}

func (d *directory) Entries() ([]filesystem.Entry, error) {
	infos, err := afero.ReadDir(d.session.fs, d.path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read directory %s", d.path)
	}

	entries := make([]filesystem.Entry, 0, len(infos))
	for _, info := range infos {
		name := path.Join(d.path, info.Name())
		entries = append(entries, &entry{
			session: d.session,
			path:    name,
			info:    info,
			meta:    d.session.meta(name, info),
		})
	}
	return entries, nil
}

type entry struct {
	session *Session
	path    string
	info    os.FileInfo
	meta    *filesystem.Meta
}

func (e *entry) Name() ([]byte, bool) {
	name := e.info.Name()
	return []byte(name), name != ""
}

func (e *entry) NameType() filesystem.NameType {
	return nameType(e.info.Mode())
}

func (e *entry) Meta() *filesystem.Meta {
	return e.meta
}

func (e *entry) Attributes() []filesystem.Attribute {
	return []filesystem.Attribute{
		&attribute{typ: filesystem.AttrStandardInfo, id: attrStandardInfoID},
		&attribute{typ: filesystem.AttrFileName, id: attrFileNameID},
		&attribute{typ: filesystem.AttrDefault, id: attrDefaultID, size: e.info.Size()},
	}
}

func (e *entry) AsDirectory() (filesystem.Directory, error) {
	if !e.info.IsDir() {
		return nil, errors.Wrap(filesystem.ErrNotDirectory, e.path)
	}
	return &directory{session: e.session, path: e.path, addr: e.meta.Addr}, nil
}

type attribute struct {
	typ  filesystem.AttrType
	id   uint16
	size int64
}

func (a *attribute) Type() filesystem.AttrType { return a.typ }
func (a *attribute) ID() uint16                { return a.id }
func (a *attribute) Name() ([]byte, bool)      { return nil, false }
func (a *attribute) Size() int64               { return a.size }

func metaType(mode os.FileMode) filesystem.MetaType {
	switch {
	case mode.IsDir():
		return filesystem.MetaDir
	case mode.IsRegular():
		return filesystem.MetaReg
	case mode&os.ModeSymlink != 0:
		return filesystem.MetaLnk
	case mode&os.ModeNamedPipe != 0:
		return filesystem.MetaFIFO
	case mode&os.ModeSocket != 0:
		return filesystem.MetaSock
	case mode&os.ModeCharDevice != 0:
		return filesystem.MetaChr
	case mode&os.ModeDevice != 0:
		return filesystem.MetaBlk
	}
	return filesystem.MetaUndef
}

func nameType(mode os.FileMode) filesystem.NameType {
	switch {
	case mode.IsDir():
		return filesystem.NameDir
	case mode.IsRegular():
		return filesystem.NameReg
	case mode&os.ModeSymlink != 0:
		return filesystem.NameLnk
	case mode&os.ModeNamedPipe != 0:
		return filesystem.NameFIFO
	case mode&os.ModeSocket != 0:
		return filesystem.NameSock
	case mode&os.ModeCharDevice != 0:
		return filesystem.NameChr
	case mode&os.ModeDevice != 0:
		return filesystem.NameBlk
	}
	return filesystem.NameUndef
}

func clean(name string) string {
	return path.Clean("/" + filepath.ToSlash(name))
}
