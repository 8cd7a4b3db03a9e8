// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreledger-node/node/blockchain"
	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/chainstore"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

func testChainParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

func mineChild(params *chaincfg.Params, parent *wire.MsgBlock, extraNonce byte) *wire.MsgBlock {
	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{Index: wire.NullOutpointIndex},
			SignatureScript:  []byte{0x51, extraNonce},
		}},
		TxOut: []*wire.TxOut{{Value: params.TotalSubsidy(1), ScriptPubKey: []byte{0x51}}},
	}
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			Prev:      parent.BlockHash(),
			Timestamp: parent.Header.Timestamp.Add(10 * time.Second),
			Bits:      parent.Header.Bits,
		},
		Transactions: []*wire.MsgTx{tx},
	}
	block.Header.MerkleRoot = block.ComputeMerkleRoot()
	for nonce := uint32(0); ; nonce++ {
		block.Header.Nonce = nonce
		hash := block.Header.BlockHash()
		if params.CheckProofOfWork(hash[:], block.Header.Bits) {
			return block
		}
	}
}

func TestChainAcceptorAcceptsExtendingBlock(t *testing.T) {
	params := testChainParams()
	chain := blockchain.New(params)
	acceptor := NewChainAcceptor(chain)

	child := mineChild(params, params.GenesisBlock, 1)
	accepted, err := acceptor.AcceptBlock(child)
	if err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}
	if !accepted {
		t.Fatalf("expected the tip-extending block to be accepted")
	}
	if !acceptor.HaveBlock(child.BlockHash()) {
		t.Fatalf("expected HaveBlock to recognise the accepted child")
	}
	if chain.BestHash() != child.BlockHash() {
		t.Fatalf("expected chain tip to advance to the accepted child")
	}
}

func TestChainAcceptorTreatsMissingParentAsOrphan(t *testing.T) {
	params := testChainParams()
	chain := blockchain.New(params)
	acceptor := NewChainAcceptor(chain)

	var unknownParent primitives.Hash256
	unknownParent[0] = 0xff
	dangling := mineChild(params, params.GenesisBlock, 7)
	dangling.Header.Prev = unknownParent

	accepted, err := acceptor.AcceptBlock(dangling)
	if err != nil {
		t.Fatalf("expected a missing-parent block to report as a plain orphan, not an error: %v", err)
	}
	if accepted {
		t.Fatalf("a block whose parent is unknown should not be accepted")
	}
}

func TestOpenReplaysPersistedChain(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chainstore")
	params := testChainParams()

	store, err := chainstore.Open(dir)
	if err != nil {
		t.Fatalf("chainstore.Open: %v", err)
	}
	chain := blockchain.New(params)
	chain.AttachStore(store)

	child := mineChild(params, params.GenesisBlock, 9)
	if err := chain.AcceptBlock(child); err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}
	store.Close()

	reopened, err := chainstore.Open(dir)
	if err != nil {
		t.Fatalf("reopening chainstore: %v", err)
	}
	defer reopened.Close()

	replayed, err := blockchain.Open(params, reopened)
	if err != nil {
		t.Fatalf("blockchain.Open: %v", err)
	}
	if replayed.BestHeight() != 1 {
		t.Fatalf("BestHeight after reload = %d, want 1", replayed.BestHeight())
	}
	if replayed.BestHash() != child.BlockHash() {
		t.Fatalf("BestHash after reload does not match persisted child")
	}
}

func TestMedianFilterOddAndEvenWindows(t *testing.T) {
	f := newMedianFilter(5, 100)
	if got := f.median(); got != 100 {
		t.Fatalf("median of single value = %d, want 100", got)
	}

	f.input(200)
	if got := f.median(); got != 150 {
		t.Fatalf("median of [100,200] = %d, want 150", got)
	}

	f.input(50)
	if got := f.median(); got != 100 {
		t.Fatalf("median of [100,200,50] = %d, want 100", got)
	}
}

func TestMedianFilterDropsOldestBeyondSize(t *testing.T) {
	f := newMedianFilter(3, 10)
	f.input(20)
	f.input(30)
	// window is now [10, 20, 30]; pushing 40 should evict the 10
	f.input(40)
	if got := f.median(); got != 30 {
		t.Fatalf("median after eviction = %d, want 30", got)
	}
}

func TestGroupKeyCollapsesToSlash16(t *testing.T) {
	a := net.ParseIP("203.0.113.5")
	b := net.ParseIP("203.0.113.250")
	c := net.ParseIP("203.0.114.5")

	if groupKey(a) != groupKey(b) {
		t.Fatalf("addresses in the same /16 should share a group key")
	}
	if groupKey(a) == groupKey(c) {
		t.Fatalf("addresses in different /16s should not share a group key")
	}
}

func TestDialSOCKS4RejectsNonGrantedReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		conn.Read(buf)
		// status byte 0x5b = request_failed
		conn.Write([]byte{0, 0x5b, 0, 0, 0, 0, 0, 0})
	}()

	_, err = dialSOCKS4(ln.Addr().String(), "93.184.216.34:80", 2*time.Second)
	if err == nil {
		t.Fatalf("expected dialSOCKS4 to fail on a request_failed reply")
	}
}
