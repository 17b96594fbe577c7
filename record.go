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

package fsanalyzer

import (
	"github.com/forensicanalysis/fsanalyzer/filesystem"
)

// RecordType classifies a FileRecord.
type RecordType int

// Record types. Only Normal, Deleted and Slack are produced by the walker,
// the others are reserved for downstream producers.
const (
	RecordNormal RecordType = iota
	RecordDeleted
	RecordOrphan
	RecordVirtual
	RecordCarved
	RecordUnallocated
	RecordCompressed
	RecordSlack
)

var recordTypeNames = [...]string{
	"normal", "deleted", "orphan", "virtual", "carved", "unallocated", "compressed", "slack",
}

func (t RecordType) String() string {
	if t < 0 || int(t) >= len(recordTypeNames) {
		return "unknown"
	}
	return recordTypeNames[t]
}

// Timestamps is one timestamp quadruple with nanosecond remainders.
type Timestamps struct {
	Modified     int64
	Accessed     int64
	Changed      int64
	Created      int64
	ModifiedNano int64
	AccessedNano int64
	ChangedNano  int64
	CreatedNano  int64
}

func newTimestamps(times filesystem.Times) Timestamps {
	var ts Timestamps
	ts.Modified, ts.ModifiedNano = split(times.Modified)
	ts.Accessed, ts.AccessedNano = split(times.Accessed)
	ts.Changed, ts.ChangedNano = split(times.Changed)
	ts.Created, ts.CreatedNano = split(times.Created)
	return ts
}

func split(t *filesystem.Timestamp) (seconds, nanos int64) {
	if t == nil {
		return 0, 0
	}
	return t.Seconds, t.Nanos
}

// FileRecord is one file, directory, alternate data stream or slack fragment
// found on a filesystem. Records are values, copies never share state.
type FileRecord struct {
	PartitionID int
	FileID      uint64
	Inode       string
	ParentID    uint64
	ParentPath  string
	Name        string
	Size        int64
	Extension   string
	RecordType  RecordType
	NameType    string
	MetaType    string
	MetaFlags   uint16

	// Standard holds the timestamps of the standard information attribute,
	// FileName those of the file name attribute. Both are kept as found.
	Standard Timestamps
	FileName Timestamps

	Mode         uint32
	UID          uint32
	GID          uint32
	MetaSequence uint32

	Hashes   map[string]string
	Bookmark bool
}

// Copy returns a deep copy of the record.
func (r FileRecord) Copy() FileRecord {
	c := r
	if r.Hashes != nil {
		c.Hashes = make(map[string]string, len(r.Hashes))
		for algorithm, value := range r.Hashes {
			c.Hashes[algorithm] = value
		}
	}
	return c
}

// Stream returns the record of an alternate data stream of r.
func (r FileRecord) Stream(name string, size int64) FileRecord {
	c := r.Copy()
	c.Name = name
	c.Size = size
	return c
}

// Slack returns the slack space record of r.
func (r FileRecord) Slack(size int64) FileRecord {
	c := r.Copy()
	c.Name = r.Name + "-slack"
	c.Size = size
	c.Extension = ""
	c.RecordType = RecordSlack
	return c
}

// UnallocatedRange is an inclusive run of unallocated blocks.
type UnallocatedRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of blocks in the range.
func (r UnallocatedRange) Len() uint64 {
	return r.End - r.Start + 1
}

// FilesystemInfo describes an analysed filesystem.
type FilesystemInfo struct {
	PartitionID    int
	FilesystemType string
	BlockSize      int64
	BlockCount     uint64
	RootInum       uint64
	FirstInum      uint64
	LastInum       uint64
}

// DescribeFilesystem returns the FilesystemInfo of a session.
func DescribeFilesystem(session filesystem.Session, partitionID int) FilesystemInfo {
	info := session.Info()
	return FilesystemInfo{
		PartitionID:    partitionID,
		FilesystemType: info.Type,
		BlockSize:      info.BlockSize,
		BlockCount:     info.BlockCount,
		RootInum:       info.RootInum,
		FirstInum:      info.FirstInum,
		LastInum:       info.LastInum,
	}
}
