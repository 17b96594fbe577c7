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

// RangeScanner iterates over the unallocated block ranges of a filesystem
// in ascending order. Use it like a bufio.Scanner:
//
//	ranges := UnallocatedRanges(session)
//	for ranges.Next() {
//		r := ranges.Range()
//	}
//	err := ranges.Err()
type RangeScanner struct {
	alloc   filesystem.Allocation
	count   uint64
	next    uint64
	current UnallocatedRange
	err     error
}

// UnallocatedRanges returns a scanner starting at block 0. Every call
// returns a fresh scanner, scanners do not share state.
func UnallocatedRanges(alloc filesystem.Allocation) *RangeScanner {
	return &RangeScanner{alloc: alloc, count: alloc.BlockCount()}
}

// Next advances to the next maximal run of unallocated blocks. It returns
// false when all blocks have been read or the allocation status of a block
// could not be read.
func (s *RangeScanner) Next() bool {
	if s.err != nil {
		return false
	}

	open := false
	var start uint64
	for s.next < s.count {
		block := s.next
		allocated, err := s.alloc.BlockAllocated(block)
		if err != nil {
			s.err = errors.Wrapf(err, "could not read allocation status of block %d", block)
			return false
		}
		s.next++

		if !allocated {
			if !open {
				start, open = block, true
			}
			continue
		}
		if open {
			s.current = UnallocatedRange{Start: start, End: block - 1}
			return true
		}
	}

	if open {
		s.current = UnallocatedRange{Start: start, End: s.count - 1}
		return true
	}
	return false
}

// Range returns the range found by the last call to Next.
func (s *RangeScanner) Range() UnallocatedRange {
	return s.current
}

// Err returns the first error that stopped the scanner.
func (s *RangeScanner) Err() error {
	return s.err
}

// CollectUnallocated returns all unallocated block ranges.
func CollectUnallocated(alloc filesystem.Allocation) ([]UnallocatedRange, error) {
	var ranges []UnallocatedRange
	scanner := UnallocatedRanges(alloc)
	for scanner.Next() {
		ranges = append(ranges, scanner.Range())
	}
	return ranges, scanner.Err()
}
