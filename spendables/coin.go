// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package spendables implements the authenticated unspent-output set
// (spec.md's C6): a Coin-valued mapping from outpoint to its creating
// output, height and coinbase flag, exposed through a small
// insert/remove/get/prove/root-hash/snapshot trait over a crit-bit
// Merkle trie so a reorganisation can restore or replay Coins without
// re-deriving the whole UTXO set from genesis.
package spendables

import (
	"encoding/binary"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// Coin is one entry of the Spendables set: an unspent output plus the
// provenance needed to enforce coinbase maturity and subsidy checks.
type Coin struct {
	Outpoint    wire.Outpoint
	Output      wire.TxOut
	Height      int32
	IsCoinbase  bool
}

// Hash computes the leaf digest of a Coin: H(outpoint || value || script
// || height || coinbase-flag), the value authenticated by the trie.
func (c Coin) Hash() primitives.Hash256 {
	buf := make([]byte, 0, 32+4+8+len(c.Output.ScriptPubKey)+4+1)
	buf = append(buf, c.Outpoint.Hash[:]...)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], c.Outpoint.Index)
	buf = append(buf, idx[:]...)
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(c.Output.Value))
	buf = append(buf, val[:]...)
	buf = append(buf, c.Output.ScriptPubKey...)
	var h [4]byte
	binary.LittleEndian.PutUint32(h[:], uint32(c.Height))
	buf = append(buf, h[:]...)
	if c.IsCoinbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return primitives.Sha256D(buf)
}

// KeySize is the width, in bytes, of a trie key: the 32-byte previous
// transaction hash plus the 4-byte output index (spec.md §4.3: "a binary
// radix trie over 36-byte outpoint keys").
const KeySize = primitives.HashSize + 4

// Key is the raw 36-byte outpoint encoding used to position a Coin in
// the trie.
type Key [KeySize]byte

// trieKey encodes an outpoint into its trie key, unmodified (not
// hashed) so the trie's radix structure reflects the outpoint bytes
// directly.
func trieKey(op wire.Outpoint) Key {
	var k Key
	copy(k[:primitives.HashSize], op.Hash[:])
	binary.LittleEndian.PutUint32(k[primitives.HashSize:], op.Index)
	return k
}
