// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the chain parameters (C4 in spec.md): genesis
// block, subsidy schedule, difficulty retarget, checkpoints, network
// magic, and address version byte that distinguish one chain instance
// from another.
package chaincfg

import (
	"math/big"
	"time"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

var bigOne = big.NewInt(1)

// mainPowLimit is the loosest allowed proof-of-work target: 2^224 - 1.
var mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

// regTestPowLimit is the loosest allowed target on the regression test
// network: 2^255 - 1, making mining near-instant for test fixtures.
var regTestPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

// Checkpoint pins a known-good block at a given height, preventing a
// deep reorg from before that point and speeding up header validation
// during initial sync.
type Checkpoint struct {
	Height int32
	Hash   primitives.Hash256
}

// Params defines one chain instance's consensus and network parameters.
type Params struct {
	Name string

	// Net is the magic value prefixed to every wire message (spec.md
	// §6); it lets a node immediately discard traffic from a
	// differently-configured peer.
	Net uint32

	DefaultPort string
	DNSSeeds    []string

	GenesisBlock *wire.MsgBlock
	GenesisHash  primitives.Hash256

	PowLimit     *big.Int
	PowLimitBits uint32

	// TargetTimePerBlock is the desired spacing between blocks.
	TargetTimePerBlock time.Duration

	// RetargetAdjustmentFactor bounds how much the difficulty may
	// change in a single retarget, expressed as a divisor/multiplier.
	RetargetAdjustmentFactor int64

	// BlocksPerRetarget is the window, in blocks, over which the next
	// required difficulty is computed.
	BlocksPerRetarget int32

	// ReduceMinDifficulty, when true (regression/test networks only),
	// allows a much easier minimum difficulty after a long gap between
	// blocks, so test fixtures don't need real mining.
	ReduceMinDifficulty bool
	MinDiffReductionTime time.Duration

	// SubsidyReductionInterval is the block-height interval at which
	// the coinbase subsidy is halved.
	SubsidyReductionInterval int32

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// needs before it may be spent.
	CoinbaseMaturity uint16

	// Checkpoints ordered from oldest to newest.
	Checkpoints []Checkpoint

	// RelayNonStdTxs controls whether Claims admission (C7) accepts
	// transactions that fail the standardness predicate.
	RelayNonStdTxs bool

	// PubKeyHashAddrID is the version byte prefixed to a base58check
	// P2PKH address.
	PubKeyHashAddrID byte

	// ScriptHashAddrID is the version byte prefixed to a base58check
	// P2SH address.
	ScriptHashAddrID byte
}

// TotalSubsidy computes the block reward at the given height, halving
// every SubsidyReductionInterval blocks until it reaches zero, per
// spec.md's coinbase rules (and original_source's BlockChain subsidy
// table).
func (p *Params) TotalSubsidy(height int32) int64 {
	const baseSubsidy = 50 * 100_000_000
	halvings := height / p.SubsidyReductionInterval
	if halvings >= 64 {
		return 0
	}
	return baseSubsidy >> uint(halvings)
}

// MainNetParams are the parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         0xd9b4bef9,
	DefaultPort: "8333",
	DNSSeeds:    []string{},

	GenesisBlock: &genesisBlock,
	GenesisHash:  genesisHash,

	PowLimit:     mainPowLimit,
	PowLimitBits: 0x1d00ffff,

	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
	BlocksPerRetarget:        2016,
	ReduceMinDifficulty:      false,

	SubsidyReductionInterval: 210000,
	CoinbaseMaturity:         100,

	Checkpoints: nil,

	RelayNonStdTxs: false,

	PubKeyHashAddrID: 0x00,
	ScriptHashAddrID: 0x05,
}

// RegressionNetParams are the parameters for the regression test network:
// trivial proof of work, no checkpoints, standardness relaxed so test
// fixtures can use arbitrary scripts.
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         0xdab5bffa,
	DefaultPort: "18444",
	DNSSeeds:    []string{},

	GenesisBlock: &regTestGenesisBlock,
	GenesisHash:  regTestGenesisHash,

	PowLimit:     regTestPowLimit,
	PowLimitBits: 0x207fffff,

	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
	BlocksPerRetarget:        2016,
	ReduceMinDifficulty:      true,
	MinDiffReductionTime:     time.Minute * 20,

	SubsidyReductionInterval: 150,
	CoinbaseMaturity:         100,

	Checkpoints: nil,

	RelayNonStdTxs: true,

	PubKeyHashAddrID: 0x6f,
	ScriptHashAddrID: 0xc4,
}

// TestNet3Params are the parameters for the public test network.
var TestNet3Params = Params{
	Name:        "testnet3",
	Net:         0x0709110b,
	DefaultPort: "18333",
	DNSSeeds:    []string{},

	GenesisBlock: &regTestGenesisBlock,
	GenesisHash:  regTestGenesisHash,

	PowLimit:     mainPowLimit,
	PowLimitBits: 0x1d00ffff,

	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
	BlocksPerRetarget:        2016,
	ReduceMinDifficulty:      true,
	MinDiffReductionTime:     time.Minute * 20,

	SubsidyReductionInterval: 210000,
	CoinbaseMaturity:         100,

	Checkpoints: nil,

	RelayNonStdTxs: true,

	PubKeyHashAddrID: 0x6f,
	ScriptHashAddrID: 0xc4,
}
