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
	"github.com/pkg/errors"

	"github.com/forensicanalysis/fsanalyzer/filesystem"
)

type fakeAttribute struct {
	typ   filesystem.AttrType
	id    uint16
	name  string
	size  int64
	times *filesystem.Times
}

func (a *fakeAttribute) Type() filesystem.AttrType { return a.typ }
func (a *fakeAttribute) ID() uint16                { return a.id }
func (a *fakeAttribute) Size() int64               { return a.size }
func (a *fakeAttribute) Name() ([]byte, bool) {
	if a.name == "" {
		return nil, false
	}
	return []byte(a.name), true
}

type fakeTimesAttribute struct {
	*fakeAttribute
}

func (a fakeTimesAttribute) Times() filesystem.Times { return *a.times }

func attr(typ filesystem.AttrType, name string, size int64) filesystem.Attribute {
	return &fakeAttribute{typ: typ, name: name, size: size}
}

type fakeEntry struct {
	name     []byte
	nameType filesystem.NameType
	meta     *filesystem.Meta
	attrs    []filesystem.Attribute
	dir      *fakeDirectory
	dirErr   error
}

func (e *fakeEntry) Name() ([]byte, bool) {
	if e.name == nil {
		return nil, false
	}
	return e.name, true
}
func (e *fakeEntry) NameType() filesystem.NameType      { return e.nameType }
func (e *fakeEntry) Meta() *filesystem.Meta             { return e.meta }
func (e *fakeEntry) Attributes() []filesystem.Attribute { return e.attrs }
func (e *fakeEntry) AsDirectory() (filesystem.Directory, error) {
	if e.dirErr != nil {
		return nil, e.dirErr
	}
	if e.dir == nil {
		return nil, filesystem.ErrNotDirectory
	}
	return e.dir, nil
}

type fakeDirectory struct {
	addr    uint64
	entries []filesystem.Entry
	err     error
}

func (d *fakeDirectory) Addr() uint64 { return d.addr }
func (d *fakeDirectory) Entries() ([]filesystem.Entry, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.entries, nil
}

func ts(seconds, nanos int64) *filesystem.Timestamp {
	return &filesystem.Timestamp{Seconds: seconds, Nanos: nanos}
}

func fileEntry(name string, addr uint64, size int64, attrs ...filesystem.Attribute) *fakeEntry {
	if len(attrs) == 0 {
		attrs = []filesystem.Attribute{
			attr(filesystem.AttrStandardInfo, "", 72),
			attr(filesystem.AttrFileName, "", 90),
			attr(filesystem.AttrData, "", size),
		}
	}
	return &fakeEntry{
		name:     []byte(name),
		nameType: filesystem.NameReg,
		meta: &filesystem.Meta{
			Times: filesystem.Times{Modified: ts(1000, 1), Accessed: ts(2000, 2), Changed: ts(3000, 3), Created: ts(4000, 4)},
			Addr:  addr, Type: filesystem.MetaReg, Flags: filesystem.MetaAllocated | filesystem.MetaUsed,
			Size: size, Mode: 0644, UID: 1000, GID: 100, Seq: 1,
		},
		attrs: attrs,
	}
}

func dirEntry(name string, dir *fakeDirectory) *fakeEntry {
	return &fakeEntry{
		name:     []byte(name),
		nameType: filesystem.NameDir,
		meta: &filesystem.Meta{
			Addr: dir.addr, Type: filesystem.MetaDir, Flags: filesystem.MetaAllocated, Size: 56, Mode: 0755,
		},
		attrs: []filesystem.Attribute{
			attr(filesystem.AttrStandardInfo, "", 72),
			attr(filesystem.AttrIndexRoot, "$I30", 56),
		},
		dir: dir,
	}
}

func directory(addr uint64, entries ...filesystem.Entry) *fakeDirectory {
	return &fakeDirectory{addr: addr, entries: entries}
}

type fakeSink struct {
	batches   [][]FileRecord
	pending   []FileRecord
	commits   int
	failAfter int // fail the n-th InsertBatch call (1-based), 0 never fails
	calls     int
}

func (s *fakeSink) InsertBatch(records []FileRecord) error {
	s.calls++
	if s.failAfter > 0 && s.calls == s.failAfter {
		return errors.New("disk full")
	}
	s.pending = append(s.pending, records...)
	return nil
}

func (s *fakeSink) Commit() error {
	s.commits++
	s.batches = append(s.batches, s.pending)
	s.pending = nil
	return nil
}

func (s *fakeSink) all() []FileRecord {
	var records []FileRecord
	for _, batch := range s.batches {
		records = append(records, batch...)
	}
	return records
}

type fakeBitmap []bool

func (b fakeBitmap) BlockCount() uint64 { return uint64(len(b)) }
func (b fakeBitmap) BlockAllocated(block uint64) (bool, error) {
	return b[block], nil
}
