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

// Package fsanalyzer extracts per file forensic metadata from filesystems.
//
// A Walker lists the directory tree of a filesystem.Session and turns every
// directory entry into one or more FileRecords:
//   - the primary record of the entry,
//   - one record per alternate data stream (name "file:stream"),
//   - a slack space record (name "file-slack") if the last cluster of the
//     file is not filled completely.
//
// Records carry two independent timestamp sets, one from the standard
// information attribute and one from the file name attribute, because their
// differences are significant in an investigation.
//
// The records of each directory are written to a RecordSink as one batch and
// committed before the walker descends further. The store package provides a
// sqlite based RecordSink.
//
// UnallocatedRanges lists the runs of unallocated blocks of a filesystem.
//
// # Usage
//
// List a directory tree into a record store
//
//	fsanalyzer list --store case.db /mnt/image
//
// List unallocated blocks of a block bitmap
//
//	fsanalyzer unalloc --bitmap bitmap.bin /mnt/image
//
// Search the store
//
//	fsanalyzer element search docx case.db
package fsanalyzer
