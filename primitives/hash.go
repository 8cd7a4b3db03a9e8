// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Kaspa developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package primitives implements the fixed-width hash types, double
// SHA-256 and RIPEMD160-over-SHA-256 hashing, and the Merkle-tree
// construction shared by the transaction, block and Spendables
// components.
package primitives

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// HashSize is the size, in bytes, of a Hash256 (SHA-256d) digest.
const HashSize = 32

// Hash160Size is the size, in bytes, of a Hash160 (RIPEMD160(SHA256))
// digest.
const Hash160Size = 20

// Hash256 is an opaque 32-byte identifier. It is stored internally in the
// same byte order it is hashed in; String reverses it for display, matching
// the historical big-endian/little-endian display convention of Bitcoin-
// family hashes.
type Hash256 [HashSize]byte

// Hash160 is an opaque 20-byte identifier, used for P2PKH/P2SH addresses.
type Hash160 [Hash160Size]byte

// String returns the hash as the hex string of the bytes in display order
// (reversed relative to the internal, hashed order).
func (h Hash256) String() string {
	for i, j := 0, HashSize-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return hex.EncodeToString(h[:])
}

// String returns the hash as a plain hex string.
func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero value, used to identify
// the null outpoint hash of a coinbase input.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// CloneBytes returns a newly allocated copy of the hash bytes.
func (h Hash256) CloneBytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// NewHash256FromStr parses a display-order (reversed) hex hash string.
func NewHash256FromStr(s string) (Hash256, error) {
	var h Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("primitives: invalid hash length %d, expected %d", len(b), HashSize)
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	copy(h[:], b)
	return h, nil
}

// Sha256D computes SHA-256(SHA-256(b)), the proof-of-work and
// transaction/block hashing primitive used throughout the consensus core.
func Sha256D(b []byte) Hash256 {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash256(second)
}

// Hash160Of computes RIPEMD160(SHA256(b)), used to derive P2PKH/P2SH
// script hashes and addresses from a public key or redeem script.
func Hash160Of(b []byte) Hash160 {
	sha := sha256.Sum256(b)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	var out Hash160
	copy(out[:], ripe.Sum(nil))
	return out
}

// HashCombine combines two child hashes into a parent hash for the Merkle
// tree and Spendables trie: H(left || right). The null branch (an absent
// child) hashes as the all-zero Hash256, per the Spendables authenticated
// trie design.
func HashCombine(left, right Hash256) Hash256 {
	buf := make([]byte, 0, 2*HashSize)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return Sha256D(buf)
}

// MerkleRoot computes the Merkle root of a list of leaf hashes using
// repeated pairwise hashing with duplication of the last element on an
// odd-width level, matching the historical Bitcoin Merkle tree
// construction (original_source src/coin/Block.cpp BuildMerkleTree).
func MerkleRoot(leaves []Hash256) Hash256 {
	if len(leaves) == 0 {
		return Hash256{}
	}
	level := make([]Hash256, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash256, len(level)/2)
		for i := range next {
			next[i] = Sha256D(append(level[2*i][:], level[2*i+1][:]...))
		}
		level = next
	}
	return level[0]
}

// MerkleBranch holds the sibling hashes along the path from the leaf at
// Index to the root. No per-level flags are stored: a verifier reads each
// sibling's side from the bits of Index (even = sibling on the right).
type MerkleBranch struct {
	Index   int
	Hashes  []Hash256
}

// ComputeMerkleBranch builds the inclusion branch for leaves[index].
func ComputeMerkleBranch(leaves []Hash256, index int) MerkleBranch {
	branch := MerkleBranch{Index: index}
	level := make([]Hash256, len(leaves))
	copy(level, leaves)
	idx := index
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		siblingIdx := idx ^ 1
		branch.Hashes = append(branch.Hashes, level[siblingIdx])
		next := make([]Hash256, len(level)/2)
		for i := range next {
			next[i] = Sha256D(append(level[2*i][:], level[2*i+1][:]...))
		}
		level = next
		idx /= 2
	}
	return branch
}

// Verify reconstructs the Merkle root from a leaf hash and the branch,
// returning true iff it equals root.
func (b MerkleBranch) Verify(leaf, root Hash256) bool {
	h := leaf
	idx := b.Index
	for _, sib := range b.Hashes {
		if idx%2 == 0 {
			h = Sha256D(append(h[:], sib[:]...))
		} else {
			h = Sha256D(append(sib[:], h[:]...))
		}
		idx /= 2
	}
	return h == root
}
