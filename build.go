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

// SlackPolicy decides whether a record has slack space.
type SlackPolicy struct {
	// Threshold is the size a record must exceed to be checked for slack.
	Threshold int64
	// ClusterSize is the allocation unit of the filesystem.
	ClusterSize int64
}

// DefaultSlackPolicy checks records above 1 KiB against 4 KiB clusters.
var DefaultSlackPolicy = SlackPolicy{Threshold: 1024, ClusterSize: 4096}

// SlackSize returns the unused remainder of the last cluster of a file of
// the given size, or 0 if no slack record should be produced.
func (p SlackPolicy) SlackSize(size int64) int64 {
	if p.ClusterSize <= 0 || size <= p.Threshold {
		return 0
	}
	remainder := size % p.ClusterSize
	if remainder == 0 {
		return 0
	}
	return p.ClusterSize - remainder
}

// BuildRecords expands a classification into its records: the primary
// record, one record per alternate data stream and, last, the slack record
// if the policy yields one.
func BuildRecords(c Classification, policy SlackPolicy) []FileRecord {
	records := make([]FileRecord, 0, 2+len(c.Streams))
	records = append(records, c.Record.Copy())
	for _, stream := range c.Streams {
		records = append(records, c.Record.Stream(stream.Name, stream.Size))
	}
	if slack := policy.SlackSize(c.Record.Size); slack > 0 {
		records = append(records, c.Record.Slack(slack))
	}
	return records
}
