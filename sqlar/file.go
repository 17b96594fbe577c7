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

package sqlar

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

var errIsDirectory = errors.New("is a directory")

// file is an opened archive entry. The content of a file is opened on first
// access.
type file struct {
	fs     *FS
	header *Header
	path   string

	content io.ReaderAt
	size    int64
	closer  io.Closer
	offset  int64

	dirOffset int
}

func (f *file) Name() string {
	return f.path
}

func (f *file) Stat() (os.FileInfo, error) {
	return f.header, nil
}

func (f *file) open(op string) error {
	if f.header.dir {
		return &os.PathError{Op: op, Path: f.path, Err: errIsDirectory}
	}
	if f.content != nil {
		return nil
	}
	content, size, closer, err := f.fs.content(f.header)
	if err != nil {
		return &os.PathError{Op: op, Path: f.path, Err: err}
	}
	f.content, f.size, f.closer = content, size, closer
	return nil
}

func (f *file) Read(p []byte) (int, error) {
	if err := f.open("read"); err != nil {
		return 0, err
	}
	n, err := f.ReadAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if err := f.open("read"); err != nil {
		return 0, err
	}
	if off >= f.size {
		return 0, io.EOF
	}
	if remaining := f.size - off; int64(len(p)) > remaining {
		p = p[:remaining]
		n, err := f.content.ReadAt(p, off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return f.content.ReadAt(p, off)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if err := f.open("seek"); err != nil {
		return 0, err
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += f.size
	default:
		return 0, &os.PathError{Op: "seek", Path: f.path, Err: os.ErrInvalid}
	}
	if offset < 0 {
		return 0, &os.PathError{Op: "seek", Path: f.path, Err: os.ErrInvalid}
	}
	f.offset = offset
	return offset, nil
}

// Readdir returns the next count entries of a directory, all remaining
// entries if count <= 0.
func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	if !f.header.dir {
		return nil, &os.PathError{Op: "readdir", Path: f.path, Err: errors.New("not a directory")}
	}

	children := f.fs.children[f.header.name][f.dirOffset:]
	if count > 0 {
		if len(children) == 0 {
			return nil, io.EOF
		}
		if count < len(children) {
			children = children[:count]
		}
	}
	f.dirOffset += len(children)

	infos := make([]os.FileInfo, 0, len(children))
	for _, name := range children {
		infos = append(infos, f.fs.headers[name])
	}
	return infos, nil
}

func (f *file) Readdirnames(count int) ([]string, error) {
	infos, err := f.Readdir(count)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, err
}

func (f *file) Close() error {
	if f.closer != nil {
		err := f.closer.Close()
		f.closer = nil
		return err
	}
	return nil
}

func (f *file) Sync() error {
	return nil
}

func (f *file) Write([]byte) (int, error)          { return 0, readOnly("write", f.path) }
func (f *file) WriteAt([]byte, int64) (int, error) { return 0, readOnly("write", f.path) }
func (f *file) WriteString(string) (int, error)    { return 0, readOnly("write", f.path) }
func (f *file) Truncate(int64) error               { return readOnly("truncate", f.path) }
