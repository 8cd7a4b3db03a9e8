// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"time"

	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/wire"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

func fundedCoin(n byte, value int64) (wire.Outpoint, spendables.Coin) {
	var h primitives.Hash256
	h[0] = n
	op := wire.Outpoint{Hash: h, Index: 0}
	coin := spendables.Coin{
		Outpoint: op,
		Output:   wire.TxOut{Value: value, ScriptPubKey: []byte{0x51}}, // OP_TRUE
	}
	return op, coin
}

func spendingTx(in wire.Outpoint, outValue int64) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{
			{PreviousOutpoint: in, SignatureScript: nil, Sequence: 0xffffffff},
		},
		TxOut: []*wire.TxOut{
			{Value: outValue, ScriptPubKey: []byte{0x51}},
		},
	}
}

func newTestPool(t *testing.T) (*Pool, *spendables.Trie) {
	t.Helper()
	trie := spendables.New()
	return New(testParams(), trie), trie
}

func TestAdmitSpendingKnownCoin(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx := spendingTx(op, 99000) // pays a 1000-satoshi fee for a small tx
	claim, err := pool.AdmitTransaction(tx)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if claim.Fee != 1000 {
		t.Fatalf("fee = %d, want 1000", claim.Fee)
	}
	if !pool.Have(claim.Hash) {
		t.Fatal("expected claim to be tracked")
	}
}

func TestAdmitRejectsUnknownInput(t *testing.T) {
	pool, _ := newTestPool(t)
	op, _ := fundedCoin(1, 100000)
	tx := spendingTx(op, 99000)

	if _, err := pool.AdmitTransaction(tx); err == nil {
		t.Fatal("expected rejection for an input with no known coin")
	}
}

func TestAdmitRejectsDoubleSpendOfClaim(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx1 := spendingTx(op, 99000)
	if _, err := pool.AdmitTransaction(tx1); err != nil {
		t.Fatalf("admit tx1: %v", err)
	}

	tx2 := spendingTx(op, 90000)
	if _, err := pool.AdmitTransaction(tx2); err == nil {
		t.Fatal("expected rejection for an outpoint already spent by an admitted claim")
	}
}

func TestAdmitRejectsFeeBelowMinimum(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	// Fee of 0: inputs == outputs, below the per-byte minimum.
	tx := spendingTx(op, 100000)
	if _, err := pool.AdmitTransaction(tx); err == nil {
		t.Fatal("expected rejection for a zero-fee transaction")
	}
}

func TestAdmitChainedDependency(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx1 := spendingTx(op, 99000)
	claim1, err := pool.AdmitTransaction(tx1)
	if err != nil {
		t.Fatalf("admit tx1: %v", err)
	}

	child := spendingTx(wire.Outpoint{Hash: claim1.Hash, Index: 0}, 98000)
	claim2, err := pool.AdmitTransaction(child)
	if err != nil {
		t.Fatalf("admit dependent tx: %v", err)
	}
	if len(claim2.DependsOn) != 1 || claim2.DependsOn[0] != claim1.Hash {
		t.Fatalf("expected dependency on claim1, got %+v", claim2.DependsOn)
	}
}

func TestTransactionsOrdersDependenciesFirst(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx1 := spendingTx(op, 99000)
	claim1, err := pool.AdmitTransaction(tx1)
	if err != nil {
		t.Fatalf("admit tx1: %v", err)
	}
	child := spendingTx(wire.Outpoint{Hash: claim1.Hash, Index: 0}, 98000)
	if _, err := pool.AdmitTransaction(child); err != nil {
		t.Fatalf("admit dependent tx: %v", err)
	}

	txns, fee := pool.Transactions(0)
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions in template, got %d", len(txns))
	}
	if txns[0].TxHash() != claim1.Hash {
		t.Fatal("expected the parent claim to be ordered before its dependent")
	}
	if fee != 1000+1000 {
		t.Fatalf("accumulated fee = %d, want 2000", fee)
	}
}

func TestTransactionsRespectsSizeBudget(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)
	tx := spendingTx(op, 99000)
	claim, err := pool.AdmitTransaction(tx)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	// Reserve so much room for "header and coinbase" that the claim
	// cannot fit.
	txns, fee := pool.Transactions(MaxBlockSize - claim.Size + 1)
	if len(txns) != 0 {
		t.Fatalf("expected no transactions to fit, got %d", len(txns))
	}
	if fee != 0 {
		t.Fatalf("expected zero fee, got %d", fee)
	}
}

func TestPurgeRemovesOldClaimsAndDescendants(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx1 := spendingTx(op, 99000)
	claim1, err := pool.admitLocked(tx1, time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("admit tx1: %v", err)
	}
	child := spendingTx(wire.Outpoint{Hash: claim1.Hash, Index: 0}, 98000)
	claim2, err := pool.admitLocked(child, time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("admit dependent tx: %v", err)
	}

	pool.Purge(time.Unix(1500, 0))

	if pool.Have(claim1.Hash) {
		t.Fatal("expected expired claim to be purged")
	}
	if pool.Have(claim2.Hash) {
		t.Fatal("expected descendant of a purged claim to be purged too")
	}
}

func TestRemoveWithDescendants(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx1 := spendingTx(op, 99000)
	claim1, err := pool.AdmitTransaction(tx1)
	if err != nil {
		t.Fatalf("admit tx1: %v", err)
	}
	child := spendingTx(wire.Outpoint{Hash: claim1.Hash, Index: 0}, 98000)
	claim2, err := pool.AdmitTransaction(child)
	if err != nil {
		t.Fatalf("admit dependent tx: %v", err)
	}

	pool.RemoveWithDescendants(claim1.Hash)

	if pool.Have(claim1.Hash) || pool.Have(claim2.Hash) {
		t.Fatal("expected both claim and its descendant to be removed")
	}
}

func TestClaimedReturnsNotYetMinedOutputs(t *testing.T) {
	pool, trie := newTestPool(t)
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)

	tx := spendingTx(op, 99000)
	if _, err := pool.AdmitTransaction(tx); err != nil {
		t.Fatalf("admit: %v", err)
	}

	claimed := pool.Claimed([]byte{0x51})
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed output paying OP_TRUE, got %d", len(claimed))
	}
}
