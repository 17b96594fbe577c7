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
	"fmt"
	"strconv"
	"strings"

	"github.com/forensicanalysis/fsanalyzer/filesystem"
)

// Attribute names that label the default stream of an entry rather than an
// alternate one.
var reservedStreams = map[string]bool{
	"$Data": true,
	"$I30":  true,
}

// AlternateStream is a named data stream found beside the primary one.
type AlternateStream struct {
	Name string
	Size int64
}

// Classification is the partial record of a directory entry plus its
// alternate data streams.
type Classification struct {
	Record  FileRecord
	Streams []AlternateStream
}

type classifier struct {
	entry filesystem.Entry
	meta  *filesystem.Meta
	base  string
	multi bool

	record  FileRecord
	streams []AlternateStream
}

type attributeHandler func(c *classifier, attr filesystem.Attribute)

// Attribute types outside of this table are ignored.
var attributeHandlers = map[filesystem.AttrType]attributeHandler{
	filesystem.AttrStandardInfo: (*classifier).standardInformation,
	filesystem.AttrFileName:     (*classifier).fileName,
	filesystem.AttrData:         (*classifier).data,
	filesystem.AttrIndexRoot:    (*classifier).named,
	filesystem.AttrDefault:      (*classifier).named,
}

// Classify maps the attributes of a directory entry onto a partial
// FileRecord. multipleAttributes selects the composite identity of
// filesystems that store several attributes per inode. ok is false if the
// entry has no name, no metadata or no recognised attribute, in which case no
// record must be emitted for it.
func Classify(entry filesystem.Entry, multipleAttributes bool) (c Classification, ok bool) {
	rawName, ok := entry.Name()
	if !ok {
		return Classification{}, false
	}
	meta := entry.Meta()
	if meta == nil {
		return Classification{}, false
	}

	cl := &classifier{
		entry: entry,
		meta:  meta,
		base:  decodeName(rawName),
		multi: multipleAttributes,
	}
	cl.record = FileRecord{
		FileID:     meta.Addr,
		Name:       cl.base,
		RecordType: naturalType(meta),
		NameType:   entry.NameType().Code(),
		MetaType:   meta.Type.Code(),
	}

	for _, attr := range entry.Attributes() {
		handle, known := attributeHandlers[attr.Type()]
		if !known {
			continue
		}
		handle(cl, attr)
		cl.identify(attr)
	}

	if cl.record.Inode == "" {
		return Classification{}, false
	}

	cl.record.Size = meta.Size
	cl.record.Mode = meta.Mode
	cl.record.UID = meta.UID
	cl.record.GID = meta.GID
	cl.record.MetaSequence = meta.Seq
	cl.record.MetaFlags = uint16(meta.Flags)
	if cl.record.NameType == "r" && cl.record.MetaType == "r" {
		cl.record.Extension = Extension(cl.record.Name)
	}

	return Classification{Record: cl.record, Streams: cl.streams}, true
}

func (c *classifier) standardInformation(attr filesystem.Attribute) {
	c.record.Standard = newTimestamps(c.meta.Times)
	c.named(attr)
}

func (c *classifier) fileName(attr filesystem.Attribute) {
	if ta, ok := attr.(filesystem.TimesAttribute); ok {
		c.record.FileName = newTimestamps(ta.Times())
	} else {
		c.record.FileName = newTimestamps(c.meta.Times)
	}
	c.named(attr)
}

func (c *classifier) data(attr filesystem.Attribute) {
	if stream, ok := streamName(attr); ok {
		c.streams = append(c.streams, AlternateStream{
			Name: c.base + ":" + stream,
			Size: attr.Size(),
		})
		return
	}
	c.record.Name = c.base
	c.record.Size = attr.Size()
}

func (c *classifier) named(attr filesystem.Attribute) {
	if stream, ok := streamName(attr); ok {
		c.record.Name = c.base + ":" + stream
		return
	}
	c.record.Name = c.base
}

func (c *classifier) identify(attr filesystem.Attribute) {
	if c.multi {
		c.record.Inode = fmt.Sprintf("%d-%d-%d", c.meta.Addr, attr.Type(), attr.ID())
		return
	}
	c.record.Inode = strconv.FormatUint(c.meta.Addr, 10)
}

func streamName(attr filesystem.Attribute) (string, bool) {
	raw, ok := attr.Name()
	if !ok || len(raw) == 0 {
		return "", false
	}
	name := decodeName(raw)
	if reservedStreams[name] {
		return "", false
	}
	return name, true
}

func naturalType(meta *filesystem.Meta) RecordType {
	if meta.Flags&filesystem.MetaUnallocated != 0 {
		return RecordDeleted
	}
	return RecordNormal
}

// decodeName converts raw name bytes to UTF-8, invalid sequences become the
// replacement character.
func decodeName(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

// Extension returns the part of name after the last dot. Names without a
// proper suffix, like "README" or ".gitignore", have no extension.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return name[i+1:]
}
