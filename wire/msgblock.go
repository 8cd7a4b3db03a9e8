// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/coreledger-node/node/primitives"
)

// MsgBlock is the full block record (C3): a header plus its transactions,
// tx[0] being the coinbase.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// BlockHash returns the hash of the block's header.
func (b *MsgBlock) BlockHash() primitives.Hash256 {
	return b.Header.BlockHash()
}

// ComputeMerkleRoot recomputes the Merkle root over b.Transactions.
func (b *MsgBlock) ComputeMerkleRoot() primitives.Hash256 {
	leaves := make([]primitives.Hash256, len(b.Transactions))
	for i, tx := range b.Transactions {
		leaves[i] = tx.TxHash()
	}
	return primitives.MerkleRoot(leaves)
}

// Encode writes the canonical wire encoding of b to w.
func (b *MsgBlock) Encode(w io.Writer) error {
	if err := b.Header.Encode(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		if err := tx.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the canonical wire encoding of a block from r.
func (b *MsgBlock) Decode(r io.Reader) error {
	if err := b.Header.Decode(r); err != nil {
		return err
	}
	numTx, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if numTx == 0 {
		return messageError("MsgBlock.Decode", "block has no transactions")
	}
	b.Transactions = make([]*MsgTx, numTx)
	for i := range b.Transactions {
		tx := &MsgTx{}
		if err := tx.Decode(r); err != nil {
			return err
		}
		b.Transactions[i] = tx
	}
	return nil
}

// SerializeSize returns the encoded byte length of b.
func (b *MsgBlock) SerializeSize() int {
	var buf bytes.Buffer
	_ = b.Encode(&buf)
	return buf.Len()
}
