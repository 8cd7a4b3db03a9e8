// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/mempool"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/wire"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

// mineHeader finds a nonce satisfying h's own declared Bits. Regtest's
// target is loose enough that this terminates in a handful of tries.
func mineHeader(h *wire.BlockHeader, params *chaincfg.Params) {
	for nonce := uint32(0); ; nonce++ {
		h.Nonce = nonce
		hash := h.BlockHash()
		if params.CheckProofOfWork(hash[:], h.Bits) {
			return
		}
	}
}

// cbCounter makes every test coinbase's extra-nonce distinct, so that two
// competing blocks at the same height never mint an identical coinbase
// txid and so collide in Spendables.
var cbCounter byte

func coinbaseTx(value int64) *wire.MsgTx {
	cbCounter++
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{
			{
				PreviousOutpoint: wire.Outpoint{Index: wire.NullOutpointIndex},
				SignatureScript:  []byte{0x51, cbCounter},
				Sequence:         0xffffffff,
			},
		},
		TxOut: []*wire.TxOut{
			{Value: value, ScriptPubKey: []byte{0x51}}, // OP_TRUE
		},
	}
}

func newFundedCoin(op wire.Outpoint, value int64) spendables.Coin {
	return spendables.Coin{
		Outpoint: op,
		Output:   wire.TxOut{Value: value, ScriptPubKey: []byte{0x51}}, // OP_TRUE
	}
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

// buildBlock extends parent with a coinbase paying coinbaseValue plus
// extraTxs, timestamped shortly after parent so nextWorkRequired carries
// the parent's bits forward unchanged.
func buildBlock(params *chaincfg.Params, parent *wire.MsgBlock, coinbaseValue int64, extraTxs []*wire.MsgTx) *wire.MsgBlock {
	txs := append([]*wire.MsgTx{coinbaseTx(coinbaseValue)}, extraTxs...)
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			Prev:      parent.BlockHash(),
			Timestamp: parent.Header.Timestamp.Add(10 * time.Second),
			Bits:      parent.Header.Bits,
		},
		Transactions: txs,
	}
	block.Header.MerkleRoot = block.ComputeMerkleRoot()
	mineHeader(&block.Header, params)
	return block
}

func TestNewSeedsGenesisOnly(t *testing.T) {
	params := testParams()
	bc := New(params)

	if got := bc.BestHeight(); got != 0 {
		t.Fatalf("BestHeight = %d, want 0", got)
	}
	if got := bc.BestHash(); got != params.GenesisHash {
		t.Fatalf("BestHash = %s, want genesis %s", got, params.GenesisHash)
	}
	if _, ok := bc.GetBlock(params.GenesisHash); !ok {
		t.Fatalf("GetBlock(genesis) not found")
	}
	// The genesis coinbase is never spendable (spec.md open question #4).
	genesisCoinbase := params.GenesisBlock.Transactions[0]
	op := wire.Outpoint{Hash: genesisCoinbase.TxHash(), Index: 0}
	if _, ok := bc.Coin(op); ok {
		t.Fatalf("genesis coinbase output must not be in Spendables")
	}
}

func TestAcceptBlockExtendsChain(t *testing.T) {
	params := testParams()
	bc := New(params)

	subsidy := params.TotalSubsidy(1)
	block1 := buildBlock(params, params.GenesisBlock, subsidy, nil)

	if err := bc.AcceptBlock(block1); err != nil {
		t.Fatalf("AcceptBlock(block1): %v", err)
	}

	if got := bc.BestHeight(); got != 1 {
		t.Fatalf("BestHeight = %d, want 1", got)
	}
	if got := bc.BestHash(); got != block1.BlockHash() {
		t.Fatalf("BestHash = %s, want block1 %s", got, block1.BlockHash())
	}

	op := wire.Outpoint{Hash: block1.Transactions[0].TxHash(), Index: 0}
	coin, ok := bc.Coin(op)
	if !ok {
		t.Fatalf("block1 coinbase output not found in Spendables")
	}
	if !coin.IsCoinbase {
		t.Fatalf("coin.IsCoinbase = false, want true")
	}
	if coin.Height != 1 {
		t.Fatalf("coin.Height = %d, want 1", coin.Height)
	}
	if bc.SpendablesRoot().IsZero() {
		t.Fatalf("SpendablesRoot is zero after accepting a block with a coinbase output")
	}
}

func TestAcceptBlockRejectsOrphan(t *testing.T) {
	params := testParams()
	bc := New(params)

	orphan := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	orphan.Header.Prev = primitives.Hash256{0xff} // not genesis, not any known block
	orphan.Header.MerkleRoot = orphan.ComputeMerkleRoot()
	mineHeader(&orphan.Header, params)

	err := bc.AcceptBlock(orphan)
	if !errors.Is(err, ErrOrphanBlock) {
		t.Fatalf("AcceptBlock(orphan) err = %v, want ErrOrphanBlock", err)
	}
	if bc.BestHeight() != 0 {
		t.Fatalf("orphan rejection must not move the tip")
	}
}

func TestAcceptBlockRejectsBitsMismatch(t *testing.T) {
	params := testParams()
	bc := New(params)

	block1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	// A tighter-but-still-mineable target than the chain actually requires.
	halfTarget := new(big.Int).Rsh(params.PowLimit, 1)
	block1.Header.Bits = chaincfg.BigToCompact(halfTarget)
	block1.Header.MerkleRoot = block1.ComputeMerkleRoot()
	mineHeader(&block1.Header, params)

	err := bc.AcceptBlock(block1)
	if err == nil {
		t.Fatalf("AcceptBlock accepted a block with the wrong required bits")
	}
	if bc.BestHeight() != 0 {
		t.Fatalf("rejected block must not move the tip")
	}
}

func TestAcceptBlockReorgsToMostWork(t *testing.T) {
	params := testParams()
	bc := New(params)

	blockA1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	if err := bc.AcceptBlock(blockA1); err != nil {
		t.Fatalf("AcceptBlock(blockA1): %v", err)
	}

	blockB1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	blockB1.Header.Timestamp = blockA1.Header.Timestamp.Add(time.Second) // force a distinct hash from blockA1
	blockB1.Header.MerkleRoot = blockB1.ComputeMerkleRoot()
	mineHeader(&blockB1.Header, params)
	if err := bc.AcceptBlock(blockB1); err != nil {
		t.Fatalf("AcceptBlock(blockB1): %v", err)
	}
	// Equal work to blockA1: the original trunk must still be in place.
	if bc.BestHash() != blockA1.BlockHash() {
		t.Fatalf("equal-work competitor must not reorg the trunk")
	}

	blockB2 := buildBlock(params, blockB1, params.TotalSubsidy(2), nil)
	if err := bc.AcceptBlock(blockB2); err != nil {
		t.Fatalf("AcceptBlock(blockB2): %v", err)
	}

	if bc.BestHash() != blockB2.BlockHash() {
		gotRef, _ := bc.tree.Best()
		t.Fatalf("BestHash = %s, want blockB2 %s after reorg\ngot trunk tip:\n%swant block:\n%s",
			bc.BestHash(), blockB2.BlockHash(), spew.Sdump(gotRef), spew.Sdump(blockB2))
	}
	if bc.BestHeight() != 2 {
		t.Fatalf("BestHeight = %d, want 2 after reorg", bc.BestHeight())
	}

	// blockA1's coinbase must have been disconnected...
	opA := wire.Outpoint{Hash: blockA1.Transactions[0].TxHash(), Index: 0}
	if _, ok := bc.Coin(opA); ok {
		t.Fatalf("blockA1's coinbase output should have been disconnected")
	}
	// ...while blockB1 and blockB2's must be connected.
	opB1 := wire.Outpoint{Hash: blockB1.Transactions[0].TxHash(), Index: 0}
	if _, ok := bc.Coin(opB1); !ok {
		t.Fatalf("blockB1's coinbase output should be spendable after reorg")
	}
	opB2 := wire.Outpoint{Hash: blockB2.Transactions[0].TxHash(), Index: 0}
	if _, ok := bc.Coin(opB2); !ok {
		t.Fatalf("blockB2's coinbase output should be spendable after reorg")
	}
}

func TestAcceptBlockRejectsImmatureCoinbaseSpend(t *testing.T) {
	params := testParams()
	bc := New(params)

	block1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	if err := bc.AcceptBlock(block1); err != nil {
		t.Fatalf("AcceptBlock(block1): %v", err)
	}

	op := wire.Outpoint{Hash: block1.Transactions[0].TxHash(), Index: 0}
	spend := spendingTx(op, params.TotalSubsidy(1)-1000)

	block2 := buildBlock(params, block1, params.TotalSubsidy(2), []*wire.MsgTx{spend})
	err := bc.AcceptBlock(block2)
	if err == nil {
		t.Fatalf("AcceptBlock accepted a block spending an immature coinbase")
	}
	if bc.BestHeight() != 1 {
		t.Fatalf("BestHeight = %d, want 1 after rejecting block2", bc.BestHeight())
	}
	if _, ok := bc.GetBlock(block2.BlockHash()); ok {
		t.Fatalf("rejected block2 body must not remain cached")
	}
}

func TestAcceptTransactionThenMiningEvictsTheClaim(t *testing.T) {
	params := testParams()
	bc := New(params)

	// Fund a spendable coin directly, standing in for one confirmed many
	// blocks ago (avoids needing to mine past CoinbaseMaturity in a test).
	var fundingHash primitives.Hash256
	fundingHash[0] = 0x42
	op := wire.Outpoint{Hash: fundingHash, Index: 0}
	bc.spendables.Insert(newFundedCoin(op, 100000))

	spend := spendingTx(op, 99000)
	claim, missingInputs, err := bc.AcceptTransaction(spend)
	if err != nil {
		t.Fatalf("AcceptTransaction: %v", err)
	}
	if missingInputs {
		t.Fatalf("missingInputs = true for a transaction with a known input")
	}
	if claim == nil || !bc.claims.Have(spend.TxHash()) {
		t.Fatalf("spend was not admitted to Claims")
	}

	block1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), []*wire.MsgTx{spend})
	if err := bc.AcceptBlock(block1); err != nil {
		t.Fatalf("AcceptBlock(block1): %v", err)
	}

	if bc.claims.Have(spend.TxHash()) {
		t.Fatalf("mined transaction must be evicted from Claims")
	}
	if _, ok := bc.Coin(op); ok {
		t.Fatalf("spent coin must be removed from Spendables")
	}
	spentOut := wire.Outpoint{Hash: spend.TxHash(), Index: 0}
	if _, ok := bc.Coin(spentOut); !ok {
		t.Fatalf("spend's own output must be in Spendables after mining")
	}
}

func TestAcceptTransactionReportsMissingInputs(t *testing.T) {
	bc := New(testParams())

	var unknownHash primitives.Hash256
	unknownHash[0] = 0x99
	spend := spendingTx(wire.Outpoint{Hash: unknownHash, Index: 0}, 1000)

	_, missingInputs, err := bc.AcceptTransaction(spend)
	if err == nil {
		t.Fatalf("AcceptTransaction accepted a transaction with no known input")
	}
	if !missingInputs {
		t.Fatalf("missingInputs = false, want true (wraps mempool.ErrMissingInputs)")
	}
	if !errors.Is(err, mempool.ErrMissingInputs) {
		t.Fatalf("err does not wrap mempool.ErrMissingInputs: %v", err)
	}
}

func TestCheckTransactionDoesNotMutateState(t *testing.T) {
	bc := New(testParams())

	var fundingHash primitives.Hash256
	fundingHash[0] = 0x07
	op := wire.Outpoint{Hash: fundingHash, Index: 0}
	bc.spendables.Insert(newFundedCoin(op, 50000))

	spend := spendingTx(op, 49000)
	if err := bc.CheckTransaction(spend); err != nil {
		t.Fatalf("CheckTransaction: %v", err)
	}
	if bc.claims.Have(spend.TxHash()) {
		t.Fatalf("CheckTransaction must not admit the transaction to Claims")
	}
	if _, ok := bc.Coin(op); !ok {
		t.Fatalf("CheckTransaction must not spend the probed coin")
	}
}

func TestLocateBlockHashesFromGenesis(t *testing.T) {
	params := testParams()
	bc := New(params)

	block1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	if err := bc.AcceptBlock(block1); err != nil {
		t.Fatalf("AcceptBlock(block1): %v", err)
	}
	block2 := buildBlock(params, block1, params.TotalSubsidy(2), nil)
	if err := bc.AcceptBlock(block2); err != nil {
		t.Fatalf("AcceptBlock(block2): %v", err)
	}

	hashes := bc.LocateBlockHashes(wire.BlockLocator{params.GenesisHash}, primitives.Hash256{}, 10)
	if len(hashes) != 2 {
		t.Fatalf("LocateBlockHashes returned %d hashes, want 2", len(hashes))
	}
	if hashes[0] != block1.BlockHash() || hashes[1] != block2.BlockHash() {
		t.Fatalf("LocateBlockHashes = %v, want [block1, block2]", hashes)
	}
}

func TestLocateBlockHashesRespectsLimitAndStop(t *testing.T) {
	params := testParams()
	bc := New(params)

	parent := params.GenesisBlock
	var blocks []*wire.MsgBlock
	for i := int32(1); i <= 3; i++ {
		b := buildBlock(params, parent, params.TotalSubsidy(i), nil)
		if err := bc.AcceptBlock(b); err != nil {
			t.Fatalf("AcceptBlock(height %d): %v", i, err)
		}
		blocks = append(blocks, b)
		parent = b
	}

	limited := bc.LocateBlockHashes(wire.BlockLocator{params.GenesisHash}, primitives.Hash256{}, 2)
	if len(limited) != 2 {
		t.Fatalf("limit=2: got %d hashes, want 2", len(limited))
	}

	stopped := bc.LocateBlockHashes(wire.BlockLocator{params.GenesisHash}, blocks[0].BlockHash(), 10)
	if len(stopped) != 1 || stopped[0] != blocks[0].BlockHash() {
		t.Fatalf("stop at blocks[0]: got %v", stopped)
	}
}

func TestLocateHeadersResumesFromKnownLocatorEntry(t *testing.T) {
	params := testParams()
	bc := New(params)

	block1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	if err := bc.AcceptBlock(block1); err != nil {
		t.Fatalf("AcceptBlock(block1): %v", err)
	}
	block2 := buildBlock(params, block1, params.TotalSubsidy(2), nil)
	if err := bc.AcceptBlock(block2); err != nil {
		t.Fatalf("AcceptBlock(block2): %v", err)
	}

	headers := bc.LocateHeaders(wire.BlockLocator{block1.BlockHash()}, primitives.Hash256{}, 10)
	if len(headers) != 1 {
		t.Fatalf("LocateHeaders returned %d headers, want 1", len(headers))
	}
	if headers[0].BlockHash() != block2.BlockHash() {
		t.Fatalf("LocateHeaders[0] = %s, want block2 %s", headers[0].BlockHash(), block2.BlockHash())
	}
}

func TestLocateBlockHashesUnknownLocatorStartsAtGenesis(t *testing.T) {
	params := testParams()
	bc := New(params)

	block1 := buildBlock(params, params.GenesisBlock, params.TotalSubsidy(1), nil)
	if err := bc.AcceptBlock(block1); err != nil {
		t.Fatalf("AcceptBlock(block1): %v", err)
	}

	var unknown primitives.Hash256
	unknown[0] = 0xff
	hashes := bc.LocateBlockHashes(wire.BlockLocator{unknown}, primitives.Hash256{}, 10)
	if len(hashes) != 1 || hashes[0] != block1.BlockHash() {
		t.Fatalf("LocateBlockHashes with unknown locator = %v, want [block1]", hashes)
	}
}
