// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spendables

import (
	"testing"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

func outpoint(n byte) wire.Outpoint {
	var h primitives.Hash256
	h[0] = n
	return wire.Outpoint{Hash: h, Index: uint32(n)}
}

func coinFor(n byte) Coin {
	return Coin{
		Outpoint: outpoint(n),
		Output:   wire.TxOut{Value: int64(n) * 1000, ScriptPubKey: []byte{0x51}},
		Height:   int32(n),
	}
}

func TestEmptyTrieRootIsZero(t *testing.T) {
	tr := New()
	if tr.RootHash() != (primitives.Hash256{}) {
		t.Fatal("expected zero root hash for empty trie")
	}
}

func TestInsertAndGet(t *testing.T) {
	tr := New()
	c := coinFor(1)
	tr.Insert(c)

	got, ok := tr.Get(c.Outpoint)
	if !ok {
		t.Fatal("expected coin to be found")
	}
	if got.Output.Value != c.Output.Value {
		t.Fatalf("got value %d, want %d", got.Output.Value, c.Output.Value)
	}
	if tr.RootHash() == (primitives.Hash256{}) {
		t.Fatal("expected non-zero root hash after insert")
	}
}

func TestGetMissing(t *testing.T) {
	tr := New()
	tr.Insert(coinFor(1))
	if _, ok := tr.Get(outpoint(2)); ok {
		t.Fatal("expected outpoint 2 to be absent")
	}
}

func TestInsertManyAndCount(t *testing.T) {
	tr := New()
	for i := byte(1); i <= 50; i++ {
		tr.Insert(coinFor(i))
	}
	if tr.Count() != 50 {
		t.Fatalf("count = %d, want 50", tr.Count())
	}
	for i := byte(1); i <= 50; i++ {
		if _, ok := tr.Get(outpoint(i)); !ok {
			t.Fatalf("missing outpoint %d after bulk insert", i)
		}
	}
}

func TestRemove(t *testing.T) {
	tr := New()
	tr.Insert(coinFor(1))
	tr.Insert(coinFor(2))
	tr.Insert(coinFor(3))

	if err := tr.Remove(outpoint(2)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := tr.Get(outpoint(2)); ok {
		t.Fatal("expected outpoint 2 to be gone after remove")
	}
	if _, ok := tr.Get(outpoint(1)); !ok {
		t.Fatal("expected outpoint 1 to survive removal of outpoint 2")
	}
	if tr.Count() != 2 {
		t.Fatalf("count after remove = %d, want 2", tr.Count())
	}
}

func TestRemoveMissingReturnsError(t *testing.T) {
	tr := New()
	tr.Insert(coinFor(1))
	if err := tr.Remove(outpoint(9)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateExistingKeyReplacesValue(t *testing.T) {
	tr := New()
	tr.Insert(coinFor(1))
	updated := coinFor(1)
	updated.Output.Value = 99999
	tr.Insert(updated)

	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1 after updating an existing key", tr.Count())
	}
	got, _ := tr.Get(outpoint(1))
	if got.Output.Value != 99999 {
		t.Fatalf("expected updated value, got %d", got.Output.Value)
	}
}

func TestProveAndVerify(t *testing.T) {
	tr := New()
	for i := byte(1); i <= 20; i++ {
		tr.Insert(coinFor(i))
	}
	proof, ok := tr.Prove(outpoint(7))
	if !ok {
		t.Fatal("expected proof for present outpoint")
	}
	if !proof.Verify(tr.RootHash()) {
		t.Fatal("expected proof to verify against the trie's root hash")
	}
}

func TestProveMissingFails(t *testing.T) {
	tr := New()
	tr.Insert(coinFor(1))
	if _, ok := tr.Prove(outpoint(2)); ok {
		t.Fatal("expected no proof for an absent outpoint")
	}
}

func TestSnapshotIsIndependentOfLaterMutation(t *testing.T) {
	tr := New()
	tr.Insert(coinFor(1))
	snap := tr.Snapshot()
	rootBefore := snap.RootHash()

	tr.Insert(coinFor(2))

	if snap.RootHash() != rootBefore {
		t.Fatal("snapshot root hash changed after mutating the live trie")
	}
	if _, ok := snap.Get(outpoint(2)); ok {
		t.Fatal("snapshot should not observe insertions made after it was taken")
	}
	if _, ok := tr.Get(outpoint(2)); !ok {
		t.Fatal("live trie should observe its own insertion")
	}
}

func TestRootHashOrderIndependentOfInsertionOrder(t *testing.T) {
	a := New()
	a.Insert(coinFor(1))
	a.Insert(coinFor(2))
	a.Insert(coinFor(3))

	b := New()
	b.Insert(coinFor(3))
	b.Insert(coinFor(1))
	b.Insert(coinFor(2))

	if a.RootHash() != b.RootHash() {
		t.Fatal("expected root hash to be independent of insertion order")
	}
}
