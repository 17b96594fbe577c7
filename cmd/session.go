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

package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/fsanalyzer/filesystem"
	"github.com/forensicanalysis/fsanalyzer/filesystem/aferofs"
	"github.com/forensicanalysis/fsanalyzer/sqlar"
)

// openSession opens an evidence source. A directory is analysed read-only in
// place, a file must be an sqlar archive. Raw images with partition offsets
// need a volume parser and are not supported.
func openSession(image string, offset int64, bitmap string) (filesystem.Session, error) {
	if offset != 0 {
		return nil, errors.Wrapf(filesystem.ErrUnsupported, "partition offset %d", offset)
	}

	var options []aferofs.Option
	if bitmap != "" {
		alloc, err := readBitmap(bitmap)
		if err != nil {
			return nil, err
		}
		options = append(options, aferofs.WithAllocation(alloc))
	}

	info, err := os.Stat(image)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		fs := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), image))
		return aferofs.New(fs, append(options, aferofs.WithType("directory"))...)
	}

	archive, err := sqlar.Open(image)
	if err != nil {
		if errors.Is(err, sqlar.ErrNotArchive) {
			return nil, errors.Wrapf(filesystem.ErrUnsupported, "image format of %s", image)
		}
		return nil, err
	}
	session, err := aferofs.New(archive, append(options, aferofs.WithType("sqlar"))...)
	if err != nil {
		archive.Close()
		return nil, err
	}
	return session, nil
}

// readBitmap reads a block allocation bitmap, one bit per block.
func readBitmap(name string) (*filesystem.Bitmap, error) {
	b, err := afero.ReadFile(afero.NewOsFs(), name)
	if err != nil {
		return nil, errors.Wrap(err, "could not read allocation bitmap")
	}
	return filesystem.NewBitmap(b, uint64(len(b))*8)
}
