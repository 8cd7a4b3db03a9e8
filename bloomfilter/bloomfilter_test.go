// Copyright (c) 2012 libcoin contributors, reworked for Go.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloomfilter

import (
	"bytes"
	"testing"
)

func TestInsertContains(t *testing.T) {
	f := New(3, 0.01, 0, UpdateAll)

	key1 := []byte{0x99, 0x10, 0x8a, 0xd8, 0xed, 0x9b, 0xb6, 0x27, 0x4d, 0x39, 0x80, 0xba, 0xc}
	f.Insert(key1)
	if !f.Contains(key1) {
		t.Fatal("expected filter to contain inserted key")
	}

	key2 := []byte{0xb5, 0xa2, 0xc7, 0x86, 0xd9, 0xef, 0x46, 0x58, 0xae, 0xd4, 0x1d, 0x03, 0xc3}
	if f.Contains(key2) {
		t.Fatal("filter should not contain an unrelated key")
	}
}

func TestSizeConstraints(t *testing.T) {
	f := New(100000000, 0.01, 0, UpdateAll)
	if !f.IsWithinSizeConstraints() {
		t.Fatal("filter sized from an absurd element count must still clamp to protocol bounds")
	}
	if uint32(len(f.data)) > MaxFilterSize {
		t.Fatalf("data length %d exceeds MaxFilterSize", len(f.data))
	}
	if f.hashFuncs > MaxHashFuncs {
		t.Fatalf("hash func count %d exceeds MaxHashFuncs", f.hashFuncs)
	}
}

func TestEmptyFullTransitions(t *testing.T) {
	f := New(10, 0.01, 0, UpdateAll)
	if !f.empty {
		t.Fatal("freshly constructed filter should be empty")
	}
	f.Insert([]byte("anything"))
	if f.empty {
		t.Fatal("filter should no longer be empty after an insert")
	}

	full := &Filter{data: bytes.Repeat([]byte{0xff}, 8), hashFuncs: 3}
	full.updateEmptyFull()
	if !full.full {
		t.Fatal("all-0xff data should be detected as full")
	}

	zero := &Filter{data: make([]byte, 8), hashFuncs: 3}
	zero.updateEmptyFull()
	if !zero.empty {
		t.Fatal("all-zero data should be detected as empty")
	}
}

func TestMurmur3KnownVectors(t *testing.T) {
	// Values lifted from the reference MurmurHash3 x86_32 test vectors
	// used across Bitcoin-derived bloom filter implementations.
	if got := murmur3(0, nil); got != 0 {
		t.Fatalf("murmur3(0, nil) = %#x, want 0", got)
	}
	if got := murmur3(0xfba4c795, nil); got != 0x6a396f08 {
		t.Fatalf("murmur3(0xfba4c795, nil) = %#x, want 0x6a396f08", got)
	}
	if got := murmur3(0xffffffff, []byte{0x00}); got != 0x81f16f39 {
		t.Fatalf("murmur3(0xffffffff, [0]) = %#x, want 0x81f16f39", got)
	}
}
