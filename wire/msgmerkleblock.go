// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/coreledger-node/node/primitives"
)

// MaxFlagsPerMerkleBlock bounds the flag-bit byte array of a merkleblock.
const MaxFlagsPerMerkleBlock = 2000

// MsgMerkleBlock answers a filtered getdata request with a block header
// plus a partial Merkle tree proving inclusion of the transactions that
// matched the peer's bloom filter (spec.md §4.6, scenario S6).
type MsgMerkleBlock struct {
	Header       BlockHeader
	Transactions uint32
	Hashes       []primitives.Hash256
	Flags        []byte
}

// Command implements Message.
func (m *MsgMerkleBlock) Command() string { return CmdMerkleBlock }

// Encode implements Message.
func (m *MsgMerkleBlock) Encode(w io.Writer) error {
	if err := m.Header.Encode(w); err != nil {
		return err
	}
	if err := writeUint32(w, m.Transactions); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(m.Hashes))); err != nil {
		return err
	}
	for _, h := range m.Hashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return WriteVarBytes(w, m.Flags)
}

// Decode implements Message.
func (m *MsgMerkleBlock) Decode(r io.Reader) error {
	if err := m.Header.Decode(r); err != nil {
		return err
	}
	txCount, err := readUint32(r)
	if err != nil {
		return err
	}
	m.Transactions = txCount

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		return messageError("MsgMerkleBlock.Decode", "too many hashes")
	}
	m.Hashes = make([]primitives.Hash256, count)
	for i := range m.Hashes {
		if _, err := io.ReadFull(r, m.Hashes[i][:]); err != nil {
			return err
		}
	}

	flags, err := ReadVarBytes(r, MaxFlagsPerMerkleBlock, "merkleblock flags")
	if err != nil {
		return err
	}
	m.Flags = flags
	return nil
}

// partialMerkleBuilder constructs the hash/flag pair of a partial Merkle
// tree following the BIP37 traversal: walk the conceptual full tree
// depth-first from the root, emitting one flag bit per visited node (1 =
// "interesting, descend further" for interior nodes or "matched" for
// leaves) and one hash per node where the walk stops.
type partialMerkleBuilder struct {
	leafHashes []primitives.Hash256
	matched    []bool
	bits       []bool
	hashes     []primitives.Hash256
}

// BuildMerkleBlock computes the MsgMerkleBlock payload for a block whose
// leaf transaction hashes are txHashes, where matched[i] reports whether
// transaction i matched the requesting peer's bloom filter.
func BuildMerkleBlock(header BlockHeader, txHashes []primitives.Hash256, matched []bool) *MsgMerkleBlock {
	b := &partialMerkleBuilder{leafHashes: txHashes, matched: matched}
	height := merkleTreeHeight(len(txHashes))
	b.traverse(height, 0)

	flags := make([]byte, (len(b.bits)+7)/8)
	for i, bit := range b.bits {
		if bit {
			flags[i/8] |= 1 << (uint(i) % 8)
		}
	}

	return &MsgMerkleBlock{
		Header:       header,
		Transactions: uint32(len(txHashes)),
		Hashes:       b.hashes,
		Flags:        flags,
	}
}

func merkleTreeHeight(numLeaves int) int {
	height := 0
	for calcTreeWidth(height, numLeaves) > 1 {
		height++
	}
	return height
}

func calcTreeWidth(height, numLeaves int) int {
	return (numLeaves + (1 << uint(height)) - 1) >> uint(height)
}

// nodeHash computes the hash of the node at (height, pos) in the
// conceptual full Merkle tree, duplicating the last element of an
// odd-width row per spec.md §3's MerkleRoot rule.
func (b *partialMerkleBuilder) nodeHash(height, pos int) primitives.Hash256 {
	if height == 0 {
		return b.leafHashes[pos]
	}
	width := calcTreeWidth(height, len(b.leafHashes))
	left := b.nodeHash(height-1, pos*2)
	right := left
	if pos*2+1 < width {
		right = b.nodeHash(height-1, pos*2+1)
	}
	return primitives.HashCombine(left, right)
}

// nodeIsInteresting reports whether the subtree rooted at (height, pos)
// contains any matched leaf.
func (b *partialMerkleBuilder) nodeIsInteresting(height, pos int) bool {
	width := calcTreeWidth(height, len(b.leafHashes))
	from := pos << uint(height)
	to := (pos + 1) << uint(height)
	if to > len(b.leafHashes) {
		to = len(b.leafHashes)
	}
	_ = width
	for i := from; i < to; i++ {
		if b.matched[i] {
			return true
		}
	}
	return false
}

func (b *partialMerkleBuilder) traverse(height, pos int) {
	interesting := b.nodeIsInteresting(height, pos)
	b.bits = append(b.bits, interesting)

	if height == 0 || !interesting {
		b.hashes = append(b.hashes, b.nodeHash(height, pos))
		return
	}

	width := calcTreeWidth(height, len(b.leafHashes))
	b.traverse(height-1, pos*2)
	if pos*2+1 < width {
		b.traverse(height-1, pos*2+1)
	}
}
