// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blocktree

import (
	"testing"

	"github.com/coreledger-node/node/primitives"
)

func hashN(n byte) primitives.Hash256 {
	var h primitives.Hash256
	h[0] = n
	h[1] = n
	return h
}

func TestAssignAndHeight(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff, Height: 0}})
	if tr.Height() != 0 {
		t.Fatalf("height = %d, want 0", tr.Height())
	}
	best, ok := tr.Best()
	if !ok || best.Hash != hashN(0) {
		t.Fatalf("unexpected best: %+v", best)
	}
}

func TestInsertExtendsTrunk(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff}})

	changes, err := tr.Insert(BlockRef{Hash: hashN(1), Prev: hashN(0), Bits: 0x1d00ffff})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(changes.Inserted) != 1 || changes.Inserted[0] != hashN(1) {
		t.Fatalf("unexpected changes: %+v", changes)
	}
	if len(changes.Deleted) != 0 {
		t.Fatalf("expected no deletions extending the trunk, got %+v", changes.Deleted)
	}
	if tr.Height() != 1 {
		t.Fatalf("height = %d, want 1", tr.Height())
	}
	if !tr.IsOnTrunk(hashN(1)) {
		t.Fatal("expected new tip on trunk")
	}
}

func TestInsertSideBranchDoesNotReorg(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff}})
	if _, err := tr.Insert(BlockRef{Hash: hashN(1), Prev: hashN(0), Bits: 0x1d00ffff}); err != nil {
		t.Fatal(err)
	}

	// A second child of genesis, same work as block 1: does not overtake
	// (strictly greater work required), so it lands on a branch.
	changes, err := tr.Insert(BlockRef{Hash: hashN(2), Prev: hashN(0), Bits: 0x1d00ffff})
	if err != nil {
		t.Fatal(err)
	}
	if len(changes.Inserted) != 0 || len(changes.Deleted) != 0 {
		t.Fatalf("expected no trunk changes for equal-work side branch, got %+v", changes)
	}
	if tr.IsOnTrunk(hashN(2)) {
		t.Fatal("side branch should not be on trunk")
	}
	if !tr.Contains(hashN(2)) {
		t.Fatal("side branch should still be tracked")
	}
}

func TestInsertReorgsWhenBranchOvertakes(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff}})
	if _, err := tr.Insert(BlockRef{Hash: hashN(1), Prev: hashN(0), Bits: 0x1d00ffff}); err != nil {
		t.Fatal(err)
	}

	// Side branch off genesis with much higher work (lower bits value =
	// easier target = more work per block here isn't quite right; use a
	// bits value that decodes to a strictly smaller target, i.e. more
	// work, via a tighter exponent).
	heavyBits := uint32(0x1c00ffff)
	if _, err := tr.Insert(BlockRef{Hash: hashN(2), Prev: hashN(0), Bits: heavyBits}); err != nil {
		t.Fatal(err)
	}

	if !tr.IsOnTrunk(hashN(2)) {
		t.Fatal("expected heavier branch to become the new trunk tip")
	}
	if tr.IsOnTrunk(hashN(1)) {
		t.Fatal("expected old trunk tip to be demoted to a branch")
	}
}

func TestNotConnectedRejected(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff}})
	_, err := tr.Insert(BlockRef{Hash: hashN(9), Prev: hashN(8), Bits: 0x1d00ffff})
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestPopBack(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff}})
	if _, err := tr.Insert(BlockRef{Hash: hashN(1), Prev: hashN(0), Bits: 0x1d00ffff}); err != nil {
		t.Fatal(err)
	}
	tr.PopBack()
	if tr.Height() != 0 {
		t.Fatalf("height after PopBack = %d, want 0", tr.Height())
	}
	best, _ := tr.Best()
	if best.Hash != hashN(0) {
		t.Fatal("expected genesis as best after popping the only child")
	}
}

func TestLocatorIncludesGenesisAndTip(t *testing.T) {
	tr := New()
	tr.Assign([]BlockRef{{Hash: hashN(0), Bits: 0x1d00ffff}})
	prev := hashN(0)
	for i := byte(1); i < 30; i++ {
		h := hashN(i)
		if _, err := tr.Insert(BlockRef{Hash: h, Prev: prev, Bits: 0x1d00ffff}); err != nil {
			t.Fatal(err)
		}
		prev = h
	}
	loc := tr.Locator()
	if loc[0] != prev {
		t.Fatalf("locator should start at the tip")
	}
	if loc[len(loc)-1] != hashN(0) {
		t.Fatalf("locator should end at genesis")
	}
}
