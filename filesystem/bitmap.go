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

package filesystem

import (
	"github.com/pkg/errors"
)

// Bitmap is an Allocation backed by a raw block bitmap. Bit n of the bitmap
// (least significant bit first) is set when block n is allocated.
type Bitmap struct {
	bits  []byte
	count uint64
}

// NewBitmap creates a Bitmap for count blocks. A count of zero uses every
// bit of the bitmap.
func NewBitmap(bits []byte, count uint64) (*Bitmap, error) {
	capacity := uint64(len(bits)) * 8
	if count == 0 {
		count = capacity
	}
	if count > capacity {
		return nil, errors.Errorf("bitmap of %d bytes cannot describe %d blocks", len(bits), count)
	}
	return &Bitmap{bits: bits, count: count}, nil
}

// BlockCount returns the number of blocks described by the bitmap.
func (b *Bitmap) BlockCount() uint64 {
	return b.count
}

// BlockAllocated returns the allocation status of a block.
func (b *Bitmap) BlockAllocated(block uint64) (bool, error) {
	if block >= b.count {
		return false, errors.Errorf("block %d out of range (%d blocks)", block, b.count)
	}
	return b.bits[block/8]&(1<<(block%8)) != 0, nil
}
