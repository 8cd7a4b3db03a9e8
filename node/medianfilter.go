// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import "sort"

// medianFilter is the Go shape of original_source's
// PeerManager::MedianFilter<T>: a bounded window over the last size
// inputs, reporting the median. Used to track "network best height"
// across the last five peers' advertised start heights, per spec.md
// §4.7.
type medianFilter struct {
	size   int
	values []int32
}

func newMedianFilter(size int, initial int32) *medianFilter {
	return &medianFilter{size: size, values: []int32{initial}}
}

func (f *medianFilter) input(v int32) {
	if len(f.values) == f.size {
		f.values = f.values[1:]
	}
	f.values = append(f.values, v)
}

func (f *medianFilter) median() int32 {
	sorted := make([]int32, len(f.values))
	copy(sorted, f.values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
