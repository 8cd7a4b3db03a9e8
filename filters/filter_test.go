// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filters

import (
	"errors"
	"testing"

	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/mempool"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/wire"
)

// fakeSession is a minimal Session double for tests.
type fakeSession struct {
	addr         string
	rejects      []wire.MsgReject
	misbehaviors []int
}

func (f *fakeSession) Addr() string { return f.addr }

func (f *fakeSession) QueueMessage(msg wire.Message) {}

func (f *fakeSession) SendReject(cmd string, code uint8, reason string) {
	f.rejects = append(f.rejects, wire.MsgReject{RejectedCommand: cmd, Code: code, Reason: reason})
}

func (f *fakeSession) AddMisbehavior(delta int, reason string) bool {
	f.misbehaviors = append(f.misbehaviors, delta)
	return false
}

// fakeBroadcaster records every relayed message instead of fanning out
// to real peers.
type fakeBroadcaster struct {
	sent []wire.Message
}

func (b *fakeBroadcaster) Broadcast(msg wire.Message, except Session) {
	b.sent = append(b.sent, msg)
}

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
		Output:   wire.TxOut{Value: value, ScriptPubKey: []byte{0x51}},
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

func TestTransactionFilterAdmitsAndBroadcasts(t *testing.T) {
	trie := spendables.New()
	op, coin := fundedCoin(1, 100000)
	trie.Insert(coin)
	pool := mempool.New(testParams(), trie)

	bc := &fakeBroadcaster{}
	f := NewTransactionFilter(pool, bc)
	p := &fakeSession{addr: "peer1"}

	tx := spendingTx(op, 99000)
	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgTxWire{MsgTx: *tx}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !pool.Have(tx.TxHash()) {
		t.Fatalf("expected transaction to be admitted into the pool")
	}
	if len(bc.sent) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(bc.sent))
	}
	if len(p.rejects) != 0 {
		t.Fatalf("expected no reject for a valid transaction")
	}
}

func TestTransactionFilterHoldsOrphanUntilParentArrives(t *testing.T) {
	trie := spendables.New()
	pool := mempool.New(testParams(), trie)
	bc := &fakeBroadcaster{}
	f := NewTransactionFilter(pool, bc)
	p := &fakeSession{addr: "peer1"}

	op, coin := fundedCoin(1, 100000)
	child := spendingTx(op, 99000)

	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgTxWire{MsgTx: *child}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f.OrphanCount() != 1 {
		t.Fatalf("OrphanCount = %d, want 1 (missing parent coin)", f.OrphanCount())
	}
	if len(p.rejects) != 0 {
		t.Fatalf("a transaction missing inputs should not be rejected outright")
	}

	// The coin now exists (as if the funding transaction had just been
	// relayed and admitted); re-submitting the child admits it directly.
	// The copy held as an orphan stays held: only admitting a transaction
	// whose hash is the child's parent hash releases it.
	trie.Insert(coin)
	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgTxWire{MsgTx: *child}}); err != nil {
		t.Fatalf("Handle (retry): %v", err)
	}
	if !pool.Have(child.TxHash()) {
		t.Fatalf("expected retried transaction to be admitted once its input exists")
	}
}

func TestTransactionFilterRejectsInvalidTransaction(t *testing.T) {
	trie := spendables.New()
	pool := mempool.New(testParams(), trie)
	f := NewTransactionFilter(pool, nil)
	p := &fakeSession{addr: "peer1"}

	// A coinbase-shaped transaction is never individually relayable.
	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{Index: wire.NullOutpointIndex},
		}},
		TxOut: []*wire.TxOut{{Value: 100, ScriptPubKey: []byte{0x51}}},
	}
	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgTxWire{MsgTx: *tx}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(p.rejects) != 1 {
		t.Fatalf("expected exactly one reject, got %d", len(p.rejects))
	}
	if len(p.misbehaviors) != 1 {
		t.Fatalf("expected a misbehaviour bump for an invalid transaction")
	}
}

// fakeChain is a minimal ChainAcceptor double.
type fakeChain struct {
	known    map[primitives.Hash256]bool
	accepted map[primitives.Hash256]bool
	acceptFn func(block *wire.MsgBlock) (bool, error)
}

func newFakeChain() *fakeChain {
	return &fakeChain{known: map[primitives.Hash256]bool{}, accepted: map[primitives.Hash256]bool{}}
}

func (c *fakeChain) HaveBlock(hash primitives.Hash256) bool { return c.known[hash] }

func (c *fakeChain) AcceptBlock(block *wire.MsgBlock) (bool, error) {
	if c.acceptFn != nil {
		return c.acceptFn(block)
	}
	hash := block.BlockHash()
	c.known[hash] = true
	c.accepted[hash] = true
	return true, nil
}

func testBlock(prev primitives.Hash256, nonce uint32) *wire.MsgBlock {
	return &wire.MsgBlock{
		Header: wire.BlockHeader{Version: 1, Prev: prev, Nonce: nonce},
	}
}

func TestBlockFilterAcceptsAndBroadcasts(t *testing.T) {
	chain := newFakeChain()
	bc := &fakeBroadcaster{}
	f := NewBlockFilter(chain, bc)
	p := &fakeSession{addr: "peer1"}

	block := testBlock(primitives.Hash256{}, 1)
	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgBlockWire{MsgBlock: *block}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !chain.HaveBlock(block.BlockHash()) {
		t.Fatalf("expected block to be accepted into the chain")
	}
	if len(bc.sent) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(bc.sent))
	}
}

func TestBlockFilterHoldsOrphanUntilParentAccepted(t *testing.T) {
	chain := newFakeChain()
	chain.acceptFn = func(block *wire.MsgBlock) (bool, error) {
		if !chain.known[block.Header.Prev] && block.Header.Prev != (primitives.Hash256{}) {
			return false, nil // orphan: parent unknown
		}
		hash := block.BlockHash()
		chain.known[hash] = true
		return true, nil
	}
	f := NewBlockFilter(chain, nil)
	p := &fakeSession{addr: "peer1"}

	genesis := testBlock(primitives.Hash256{}, 1)
	child := testBlock(genesis.BlockHash(), 2)

	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgBlockWire{MsgBlock: *child}}); err != nil {
		t.Fatalf("Handle(child): %v", err)
	}
	if f.OrphanCount() != 1 {
		t.Fatalf("OrphanCount = %d, want 1", f.OrphanCount())
	}

	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgBlockWire{MsgBlock: *genesis}}); err != nil {
		t.Fatalf("Handle(genesis): %v", err)
	}
	if !chain.known[child.BlockHash()] {
		t.Fatalf("expected orphaned child to resolve once its parent was accepted")
	}
	if f.OrphanCount() != 0 {
		t.Fatalf("OrphanCount after resolution = %d, want 0", f.OrphanCount())
	}
}

var errInvalidBlock = errors.New("invalid block")

func TestBlockFilterRejectsInvalidBlock(t *testing.T) {
	chain := newFakeChain()
	chain.acceptFn = func(block *wire.MsgBlock) (bool, error) {
		return false, errInvalidBlock
	}
	f := NewBlockFilter(chain, nil)
	p := &fakeSession{addr: "peer1"}

	block := testBlock(primitives.Hash256{}, 1)
	if err := f.Handle(&Message{Peer: p, Msg: &wire.MsgBlockWire{MsgBlock: *block}}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(p.rejects) != 1 {
		t.Fatalf("expected exactly one reject, got %d", len(p.rejects))
	}
	if len(p.misbehaviors) != 1 {
		t.Fatalf("expected a misbehaviour bump for an invalid block")
	}
}
