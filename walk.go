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
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/forensicanalysis/fsanalyzer/filesystem"
)

// DefaultMaxDepth bounds the directory nesting the Walker descends into.
const DefaultMaxDepth = 512

// RecordSink receives the records of one directory as a batch, followed by
// a commit.
type RecordSink interface {
	InsertBatch(records []FileRecord) error
	Commit() error
}

// Stats summarises a walk.
type Stats struct {
	Directories     int
	Records         int
	SkippedEntries  int
	SkippedSubtrees int
	Cycles          int
	FlushFailures   int
}

// Walker lists a directory tree and forwards the records of every entry to a
// RecordSink, one batch per directory.
type Walker struct {
	Sink               RecordSink
	Recursive          bool
	PartitionID        int
	MultipleAttributes bool
	Slack              SlackPolicy
	MaxDepth           int
	Logger             *zap.Logger
}

// NewWalker creates a recursive Walker for a filesystem with default slack
// policy and depth limit.
func NewWalker(info filesystem.Info, sink RecordSink) *Walker {
	return &Walker{
		Sink:               sink,
		Recursive:          true,
		MultipleAttributes: info.MultipleAttributes(),
		Slack:              DefaultSlackPolicy,
		MaxDepth:           DefaultMaxDepth,
		Logger:             zap.NewNop(),
	}
}

// Walk lists root and, if the walker is recursive, all directories below
// it. Only a failure to list root is returned as an error, problems further
// down are logged and counted in the returned Stats.
func (w *Walker) Walk(root filesystem.Directory) (Stats, error) {
	if w.Sink == nil {
		return Stats{}, errors.New("walker has no record sink")
	}
	entries, err := root.Entries()
	if err != nil {
		return Stats{}, errors.Wrap(err, "could not list root directory")
	}

	t := &traversal{walker: w, logger: w.logger(), visited: map[uint64]int{}}
	t.push(root.Addr(), "")
	defer t.pop()
	t.stats.Directories++
	t.list(entries, 0)
	return t.stats, nil
}

func (w *Walker) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

// traversal is the state of one walk: the inodes and names of the
// directories on the current descent path.
type traversal struct {
	walker  *Walker
	logger  *zap.Logger
	inodes  []uint64
	names   []string
	visited map[uint64]int
	stats   Stats
}

func (t *traversal) push(inode uint64, name string) {
	t.inodes = append(t.inodes, inode)
	t.visited[inode]++
	if len(t.inodes) > 1 {
		t.names = append(t.names, name)
	}
}

func (t *traversal) pop() {
	inode := t.inodes[len(t.inodes)-1]
	t.inodes = t.inodes[:len(t.inodes)-1]
	if t.visited[inode]--; t.visited[inode] == 0 {
		delete(t.visited, inode)
	}
	if len(t.inodes) > 0 {
		t.names = t.names[:len(t.inodes)-1]
	}
}

func (t *traversal) parentID() uint64 {
	return t.inodes[len(t.inodes)-1]
}

func (t *traversal) parentPath() string {
	var b strings.Builder
	b.WriteString("root/")
	for _, name := range t.names {
		b.WriteString(name)
		b.WriteString("/")
	}
	return b.String()
}

func (t *traversal) list(entries []filesystem.Entry, depth int) {
	w := t.walker
	var batch []FileRecord
	var directories []filesystem.Entry

	parentID, parentPath := t.parentID(), t.parentPath()
	for _, entry := range entries {
		name, ok := entry.Name()
		if ok && isDotEntry(name) {
			continue
		}
		if !ok || entry.Meta() == nil {
			t.stats.SkippedEntries++
			t.logger.Debug("skip entry without name or metadata", zap.String("path", parentPath))
			continue
		}

		if c, ok := Classify(entry, w.MultipleAttributes); ok {
			c.Record.PartitionID = w.PartitionID
			c.Record.ParentID = parentID
			c.Record.ParentPath = parentPath
			batch = append(batch, BuildRecords(c, w.Slack)...)
		} else {
			t.stats.SkippedEntries++
			t.logger.Debug("skip entry without recognised attributes",
				zap.String("path", parentPath+decodeName(name)), zap.Uint64("inode", entry.Meta().Addr))
		}

		if w.Recursive && isDirectory(entry) {
			directories = append(directories, entry)
		}
	}

	t.flush(batch, parentPath)

	for _, entry := range directories {
		t.descend(entry, depth+1)
	}
}

func (t *traversal) flush(batch []FileRecord, path string) {
	if len(batch) == 0 {
		return
	}
	sink := t.walker.Sink
	err := sink.InsertBatch(batch)
	if err == nil {
		err = sink.Commit()
	}
	if err != nil {
		t.stats.FlushFailures++
		t.logger.Error("could not store records", zap.String("path", path), zap.Int("records", len(batch)), zap.Error(err))
		return
	}
	t.stats.Records += len(batch)
}

func (t *traversal) descend(entry filesystem.Entry, depth int) {
	rawName, _ := entry.Name()
	name := decodeName(rawName)
	inode := entry.Meta().Addr
	path := t.parentPath() + name

	if t.visited[inode] > 0 {
		t.stats.Cycles++
		t.logger.Info("directory cycle, not descending", zap.String("path", path), zap.Uint64("inode", inode))
		return
	}
	if limit := t.walker.MaxDepth; limit > 0 && depth > limit {
		t.stats.SkippedSubtrees++
		t.logger.Warn("maximum directory depth exceeded", zap.String("path", path), zap.Int("depth", depth))
		return
	}

	directory, err := entry.AsDirectory()
	if err != nil {
		t.stats.SkippedSubtrees++
		t.logger.Warn("could not open directory", zap.String("path", path), zap.Uint64("inode", inode), zap.Error(err))
		return
	}

	t.push(inode, name)
	defer t.pop()

	entries, err := directory.Entries()
	if err != nil {
		t.stats.SkippedSubtrees++
		t.logger.Warn("could not list directory", zap.String("path", path), zap.Uint64("inode", inode), zap.Error(err))
		return
	}
	t.stats.Directories++
	t.list(entries, depth)
}

func isDotEntry(name []byte) bool {
	s := string(name)
	return s == "." || s == ".."
}

func isDirectory(entry filesystem.Entry) bool {
	return entry.NameType() == filesystem.NameDir || entry.Meta().Type == filesystem.MetaDir
}
