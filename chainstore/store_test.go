// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"path/filepath"
	"testing"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chainstore"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHeadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, _, ok, err := store.Head(); err != nil || ok {
		t.Fatalf("Head on an empty store: ok=%v err=%v", ok, err)
	}

	var hash primitives.Hash256
	hash[0] = 0x11
	if err := store.PutHead(hash, 42); err != nil {
		t.Fatalf("PutHead: %v", err)
	}

	got, height, ok, err := store.Head()
	if err != nil || !ok {
		t.Fatalf("Head: ok=%v err=%v", ok, err)
	}
	if got != hash || height != 42 {
		t.Fatalf("Head = (%s, %d), want (%s, 42)", got, height, hash)
	}
}

func TestCoinRoundTrip(t *testing.T) {
	store := newTestStore(t)

	var txHash primitives.Hash256
	txHash[0] = 0x22
	op := wire.Outpoint{Hash: txHash, Index: 1}
	coin := spendables.Coin{
		Outpoint:   op,
		Output:     wire.TxOut{Value: 12345, ScriptPubKey: []byte{0x51, 0x52, 0x53}},
		Height:     7,
		IsCoinbase: true,
	}

	if err := store.PutCoin(coin); err != nil {
		t.Fatalf("PutCoin: %v", err)
	}

	got, ok, err := store.GetCoin(op)
	if err != nil || !ok {
		t.Fatalf("GetCoin: ok=%v err=%v", ok, err)
	}
	if got.Output.Value != coin.Output.Value || string(got.Output.ScriptPubKey) != string(coin.Output.ScriptPubKey) ||
		got.Height != coin.Height || got.IsCoinbase != coin.IsCoinbase {
		t.Fatalf("GetCoin = %+v, want %+v", got, coin)
	}

	if err := store.DeleteCoin(op); err != nil {
		t.Fatalf("DeleteCoin: %v", err)
	}
	if _, ok, err := store.GetCoin(op); err != nil || ok {
		t.Fatalf("GetCoin after delete: ok=%v err=%v", ok, err)
	}
}

func TestBlockBodyRoundTrip(t *testing.T) {
	store := newTestStore(t)

	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{
			{PreviousOutpoint: wire.Outpoint{Index: wire.NullOutpointIndex}, SignatureScript: []byte{0x51, 0x51}, Sequence: 0xffffffff},
		},
		TxOut: []*wire.TxOut{{Value: 5000000000, ScriptPubKey: []byte{0x51}}},
	}
	block := &wire.MsgBlock{
		Header:       wire.BlockHeader{Version: 1, Bits: 0x207fffff},
		Transactions: []*wire.MsgTx{tx},
	}
	block.Header.MerkleRoot = block.ComputeMerkleRoot()
	hash := block.BlockHash()

	if err := store.PutBlockBody(hash, block); err != nil {
		t.Fatalf("PutBlockBody: %v", err)
	}

	got, ok, err := store.GetBlockBody(hash)
	if err != nil || !ok {
		t.Fatalf("GetBlockBody: ok=%v err=%v", ok, err)
	}
	if got.BlockHash() != hash {
		t.Fatalf("round-tripped block hash = %s, want %s", got.BlockHash(), hash)
	}

	if err := store.DeleteBlockBody(hash); err != nil {
		t.Fatalf("DeleteBlockBody: %v", err)
	}
	if _, ok, err := store.GetBlockBody(hash); err != nil || ok {
		t.Fatalf("GetBlockBody after delete: ok=%v err=%v", ok, err)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	store := newTestStore(t)

	var blockHash, spentTxHash, newTxHash primitives.Hash256
	blockHash[0] = 0x33
	spentTxHash[0] = 0x44
	newTxHash[0] = 0x55

	removed := []spendables.Coin{{
		Outpoint: wire.Outpoint{Hash: spentTxHash, Index: 0},
		Output:   wire.TxOut{Value: 1000, ScriptPubKey: []byte{0x51}},
		Height:   3,
	}}
	added := []wire.Outpoint{{Hash: newTxHash, Index: 0}}

	if err := store.PutDelta(blockHash, removed, added); err != nil {
		t.Fatalf("PutDelta: %v", err)
	}

	gotRemoved, gotAdded, ok, err := store.GetDelta(blockHash)
	if err != nil || !ok {
		t.Fatalf("GetDelta: ok=%v err=%v", ok, err)
	}
	if len(gotRemoved) != 1 || gotRemoved[0].Outpoint != removed[0].Outpoint || gotRemoved[0].Output.Value != removed[0].Output.Value {
		t.Fatalf("GetDelta removed = %+v, want %+v", gotRemoved, removed)
	}
	if len(gotAdded) != 1 || gotAdded[0] != added[0] {
		t.Fatalf("GetDelta added = %+v, want %+v", gotAdded, added)
	}

	if err := store.DeleteDelta(blockHash); err != nil {
		t.Fatalf("DeleteDelta: %v", err)
	}
	if _, _, ok, err := store.GetDelta(blockHash); err != nil || ok {
		t.Fatalf("GetDelta after delete: ok=%v err=%v", ok, err)
	}
}

func TestApplyDeltaIsAtomic(t *testing.T) {
	store := newTestStore(t)

	var headHash, txHash primitives.Hash256
	headHash[0] = 0x66
	txHash[0] = 0x77
	op := wire.Outpoint{Hash: txHash, Index: 0}
	coin := spendables.Coin{Outpoint: op, Output: wire.TxOut{Value: 777, ScriptPubKey: []byte{0x51}}}

	if err := store.ApplyDelta(headHash, 9, primitives.Hash256{0x88}, []spendables.Coin{coin}, nil); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}

	gotHash, gotHeight, ok, err := store.Head()
	if err != nil || !ok || gotHash != headHash || gotHeight != 9 {
		t.Fatalf("Head = (%s, %d, %v), want (%s, 9, true)", gotHash, gotHeight, ok, headHash)
	}
	root, err := store.SpendablesRoot()
	if err != nil || root != (primitives.Hash256{0x88}) {
		t.Fatalf("SpendablesRoot = %s, err=%v", root, err)
	}
	if _, ok, err := store.GetCoin(op); err != nil || !ok {
		t.Fatalf("GetCoin after ApplyDelta: ok=%v err=%v", ok, err)
	}
}
