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

// Package sqlar provides a read-only afero.Fs for SQLite archives, the
// sqlar table format written by "sqlite3 -A".
//
// The archive index is read once when the archive is opened. Directories that
// are only implied by the names of their children are added to the index, so
// every entry can be reached from the root. The rowid of an entry is exposed
// through the Ino method of its Header and serves as stable inode number.
package sqlar

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrReadOnly is returned by all modifying operations.
var ErrReadOnly = errors.New("sqlar archive is read-only")

// ErrNotArchive is returned if the database has no sqlar table.
var ErrNotArchive = errors.New("database is not an sqlar archive")

// unix file type bits as stored by sqlite3 -A
const (
	unixTypeMask = 0170000
	unixDir      = 0040000
	unixSymlink  = 0120000
	unixRegular  = 0100000
)

// FS is a read-only sqlar archive.
type FS struct {
	conn     *sqlite.Conn
	headers  map[string]*Header
	children map[string][]string
}

var _ afero.Fs = (*FS)(nil)

// Open opens the sqlar archive at url.
func Open(url string) (*FS, error) {
	conn, err := sqlite.OpenConn(url, sqlite.SQLITE_OPEN_READONLY|sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return nil, errors.Wrap(err, "could not open archive")
	}

	fs := &FS{conn: conn, headers: map[string]*Header{}, children: map[string][]string{}}
	if err := fs.load(); err != nil {
		conn.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FS) load() error {
	stmt, err := fs.conn.Prepare(`SELECT count(*) AS count FROM sqlite_master WHERE type = 'table' AND name = 'sqlar'`)
	if err != nil {
		return errors.Wrapf(ErrNotArchive, "could not inspect database (%s)", err)
	}
	if _, err := stmt.Step(); err != nil {
		stmt.Finalize()
		return errors.Wrapf(ErrNotArchive, "could not inspect database (%s)", err)
	}
	count := stmt.GetInt64("count")
	if err := stmt.Finalize(); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotArchive
	}

	stmt, err = fs.conn.Prepare(`SELECT rowid AS id, name, mode, mtime, sz, data IS NULL AS nodata FROM sqlar`)
	if err != nil {
		return errors.Wrap(err, "could not read archive index")
	}
	var maxID int64
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return errors.Wrap(err, "could not read archive index")
		}
		if !hasRow {
			break
		}

		name := normalize(stmt.GetText("name"))
		header := newHeader(name, stmt.GetInt64("id"), stmt.GetInt64("mode"), stmt.GetInt64("mtime"),
			stmt.GetInt64("sz"), stmt.GetInt64("nodata") == 1)
		fs.headers[name] = header
		if header.rowid > maxID {
			maxID = header.rowid
		}
	}
	if err := stmt.Finalize(); err != nil {
		return err
	}

	fs.index(maxID)
	return nil
}

// index adds implied directories and builds the child lists.
func (fs *FS) index(maxID int64) {
	if _, ok := fs.headers[""]; !ok {
		fs.headers[""] = &Header{mode: os.ModeDir | 0755, dir: true}
	}

	names := make([]string, 0, len(fs.headers))
	for name := range fs.headers {
		names = append(names, name)
	}

	implied := map[string]bool{}
	for _, name := range names {
		for name != "" {
			name = parentOf(name)
			if _, ok := fs.headers[name]; !ok {
				implied[name] = true
			}
		}
	}
	sorted := make([]string, 0, len(implied))
	for name := range implied {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	for i, name := range sorted {
		fs.headers[name] = &Header{name: name, rowid: maxID + int64(i) + 1, mode: os.ModeDir | 0755, dir: true}
	}

	for name := range fs.headers {
		if name == "" {
			continue
		}
		parent := parentOf(name)
		fs.children[parent] = append(fs.children[parent], name)
	}
	for _, children := range fs.children {
		sort.Strings(children)
	}
}

// Name returns the name of the filesystem.
func (fs *FS) Name() string {
	return "sqlar"
}

// Stat returns the Header of an entry.
func (fs *FS) Stat(name string) (os.FileInfo, error) {
	header, ok := fs.headers[normalize(name)]
	if !ok || header == nil {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return header, nil
}

// Open opens an entry for reading.
func (fs *FS) Open(name string) (afero.File, error) {
	header, ok := fs.headers[normalize(name)]
	if !ok || header == nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &file{fs: fs, header: header, path: name}, nil
}

// OpenFile opens an entry for reading, any write flag fails.
func (fs *FS) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, readOnly("open", name)
	}
	return fs.Open(name)
}

// Close closes the archive.
func (fs *FS) Close() error {
	return fs.conn.Close()
}

// The modifying operations fail with ErrReadOnly.

func (fs *FS) Create(name string) (afero.File, error)    { return nil, readOnly("create", name) }
func (fs *FS) Mkdir(name string, _ os.FileMode) error    { return readOnly("mkdir", name) }
func (fs *FS) MkdirAll(name string, _ os.FileMode) error { return readOnly("mkdir", name) }
func (fs *FS) Remove(name string) error                  { return readOnly("remove", name) }
func (fs *FS) RemoveAll(name string) error               { return readOnly("remove", name) }
func (fs *FS) Rename(oldname, _ string) error            { return readOnly("rename", oldname) }
func (fs *FS) Chmod(name string, _ os.FileMode) error    { return readOnly("chmod", name) }
func (fs *FS) Chown(name string, _, _ int) error         { return readOnly("chown", name) }

func (fs *FS) Chtimes(name string, _, _ time.Time) error {
	return readOnly("chtimes", name)
}

// content returns a reader for the content of a file. Entries whose stored
// size differs from the blob length are zlib compressed.
func (fs *FS) content(header *Header) (io.ReaderAt, int64, io.Closer, error) {
	if header.dir || header.nodata || header.size <= 0 {
		return strings.NewReader(""), 0, nil, nil
	}

	blob, err := fs.conn.OpenBlob("", "sqlar", "data", header.rowid, false)
	if err != nil {
		return nil, 0, nil, errors.Wrapf(err, "could not open content of %s", header.name)
	}
	if blob.Size() == header.size {
		return blob, header.size, blob, nil
	}
	defer blob.Close()

	reader, err := zlib.NewReader(blob)
	if err != nil {
		return nil, 0, nil, errors.Wrapf(err, "could not decompress %s", header.name)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, nil, errors.Wrapf(err, "could not decompress %s", header.name)
	}
	if err := reader.Close(); err != nil {
		return nil, 0, nil, errors.Wrapf(err, "could not decompress %s", header.name)
	}
	return bytes.NewReader(data), int64(len(data)), nil, nil
}

// Header describes an archive entry. It implements os.FileInfo.
type Header struct {
	name   string
	rowid  int64
	mode   os.FileMode
	mtime  time.Time
	size   int64
	dir    bool
	nodata bool
}

func newHeader(name string, rowid, mode, mtime, size int64, nodata bool) *Header {
	h := &Header{name: name, rowid: rowid, mtime: time.Unix(mtime, 0), size: size, nodata: nodata}

	switch {
	case mode&unixTypeMask == unixDir:
		h.mode = os.ModeDir | os.FileMode(mode&0777)
	case mode&unixTypeMask == unixSymlink:
		h.mode = os.ModeSymlink | os.FileMode(mode&0777)
	case mode&unixTypeMask == unixRegular:
		h.mode = os.FileMode(mode & 0777)
	default:
		// archives written through afero store os.FileMode values
		h.mode = os.FileMode(mode)
		if h.mode&os.ModeDir == 0 && size == 0 && nodata {
			h.mode |= os.ModeDir
		}
	}
	h.dir = h.mode.IsDir()
	if h.dir {
		h.size = 0
	}
	return h
}

// Name returns the base name of the entry.
func (h *Header) Name() string {
	if h.name == "" {
		return "/"
	}
	return path.Base(h.name)
}

// Size returns the uncompressed size.
func (h *Header) Size() int64 { return h.size }

func (h *Header) Mode() os.FileMode  { return h.mode }
func (h *Header) ModTime() time.Time { return h.mtime }
func (h *Header) IsDir() bool        { return h.dir }
func (h *Header) Sys() interface{}   { return h }

// Ino returns the rowid of the entry. The root directory and implied
// directories that have no row of their own get numbers outside of the
// rowid range of the archive.
func (h *Header) Ino() uint64 {
	return uint64(h.rowid)
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: ErrReadOnly}
}

func normalize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

func parentOf(name string) string {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return ""
	}
	return name[:i]
}
