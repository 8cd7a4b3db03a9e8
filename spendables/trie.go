// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spendables

import (
	"fmt"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// node is one element of the crit-bit trie. A leaf carries a Coin; an
// internal node branches on the first bit at which its two subtrees'
// keys differ (bitPos, counted 0 = most significant bit of byte 0).
// Nodes are immutable once built: Insert/Remove return a new root that
// shares every unaffected subtree with the old one, which is what makes
// Snapshot free (spec.md's "snapshot-on-write").
type node struct {
	isLeaf bool

	// leaf fields
	key  Key
	coin Coin

	// internal fields
	bitPos      int
	left, right *node

	hash primitives.Hash256
}

func newLeaf(key Key, coin Coin) *node {
	return &node{isLeaf: true, key: key, coin: coin, hash: coin.Hash()}
}

func newInternal(bitPos int, left, right *node) *node {
	return &node{
		isLeaf: false,
		bitPos: bitPos,
		left:   left,
		right:  right,
		hash:   primitives.HashCombine(left.hash, right.hash),
	}
}

// bitAt returns bit bitPos of key (0 = most significant bit of byte 0).
func bitAt(key Key, bitPos int) int {
	byteIdx := bitPos / 8
	shift := uint(7 - bitPos%8)
	return int((key[byteIdx] >> shift) & 1)
}

// firstDifferingBit returns the index of the first bit at which a and b
// differ, or -1 if they are identical.
func firstDifferingBit(a, b Key) int {
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			continue
		}
		x := a[i] ^ b[i]
		for bit := 0; bit < 8; bit++ {
			if x&(0x80>>uint(bit)) != 0 {
				return i*8 + bit
			}
		}
	}
	return -1
}

// Trie is an authenticated, persistent (copy-on-write) mapping from
// outpoint to Coin.
type Trie struct {
	root *node
}

// New returns an empty Spendables trie.
func New() *Trie {
	return &Trie{}
}

// RootHash returns the trie's authentication root; the empty trie's root
// is the all-zero hash ("null branch has hash 0").
func (t *Trie) RootHash() primitives.Hash256 {
	if t.root == nil {
		return primitives.Hash256{}
	}
	return t.root.hash
}

// Snapshot returns an independent handle to the trie's current state.
// Because nodes are immutable, this is O(1): later mutations on either
// handle never affect the other.
func (t *Trie) Snapshot() *Trie {
	return &Trie{root: t.root}
}

// Mark captures t's current root for a later Restore, letting a caller
// undo a batch of Insert/Remove calls made on this same handle without
// losing the identity other packages (e.g. mempool's Pool) hold on it.
// Because nodes are immutable, Mark is O(1).
type Mark struct {
	root *node
}

// Mark returns a token that Restore can later use to roll t back to its
// state right now (spec.md §4.3: "copy-on-write node sharing enables
// cheap snapshots for speculative block connection with rollback").
func (t *Trie) Mark() Mark {
	return Mark{root: t.root}
}

// Restore rewinds t to the state captured by m.
func (t *Trie) Restore(m Mark) {
	t.root = m.root
}

// Get looks up the Coin at op, if any.
func (t *Trie) Get(op wire.Outpoint) (Coin, bool) {
	key := trieKey(op)
	n := t.root
	for n != nil && !n.isLeaf {
		if bitAt(key, n.bitPos) == 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	if n == nil || n.key != key {
		return Coin{}, false
	}
	return n.coin, true
}

// Insert adds or replaces coin, keyed by coin.Outpoint.
func (t *Trie) Insert(coin Coin) {
	key := trieKey(coin.Outpoint)
	t.root = insert(t.root, key, coin)
}

func insert(root *node, key Key, coin Coin) *node {
	if root == nil {
		return newLeaf(key, coin)
	}

	// First pass: find the nearest existing leaf along key's descent
	// path, to compute the critical bit against the new key.
	n := root
	for !n.isLeaf {
		if bitAt(key, n.bitPos) == 0 {
			n = n.left
		} else {
			n = n.right
		}
	}

	diff := firstDifferingBit(n.key, key)
	if diff == -1 {
		// Exact key match: replace the value in place.
		return replaceLeaf(root, key, coin)
	}

	newLf := newLeaf(key, coin)

	// Second pass: walk from the root, descending through internal
	// nodes whose bitPos is below the critical bit (those are
	// unaffected by the new key's insertion), splicing the new internal
	// node in at the point where bitPos would exceed diff.
	return spliceInsert(root, key, diff, newLf)
}

func spliceInsert(cur *node, key Key, diff int, newLf *node) *node {
	if cur.isLeaf || cur.bitPos > diff {
		if bitAt(key, diff) == 0 {
			return newInternal(diff, newLf, cur)
		}
		return newInternal(diff, cur, newLf)
	}

	if bitAt(key, cur.bitPos) == 0 {
		return newInternal(cur.bitPos, spliceInsert(cur.left, key, diff, newLf), cur.right)
	}
	return newInternal(cur.bitPos, cur.left, spliceInsert(cur.right, key, diff, newLf))
}

func replaceLeaf(cur *node, key Key, coin Coin) *node {
	if cur.isLeaf {
		return newLeaf(key, coin)
	}
	if bitAt(key, cur.bitPos) == 0 {
		return newInternal(cur.bitPos, replaceLeaf(cur.left, key, coin), cur.right)
	}
	return newInternal(cur.bitPos, cur.left, replaceLeaf(cur.right, key, coin))
}

// ErrNotFound is returned by Remove when the outpoint has no Coin.
var ErrNotFound = fmt.Errorf("spendables: outpoint not found")

// Remove deletes the Coin at op, if present.
func (t *Trie) Remove(op wire.Outpoint) error {
	key := trieKey(op)
	newRoot, ok := remove(t.root, key)
	if !ok {
		return ErrNotFound
	}
	t.root = newRoot
	return nil
}

// remove returns the trie with key's leaf removed, and whether it was
// found. A removed leaf's parent is contracted away, replaced by the
// leaf's sibling, preserving the crit-bit invariant.
func remove(root *node, key Key) (*node, bool) {
	if root == nil {
		return nil, false
	}
	if root.isLeaf {
		if root.key == key {
			return nil, true
		}
		return root, false
	}

	if bitAt(key, root.bitPos) == 0 {
		if root.left.isLeaf && root.left.key == key {
			return root.right, true
		}
		newLeft, ok := remove(root.left, key)
		if !ok {
			return root, false
		}
		return newInternal(root.bitPos, newLeft, root.right), true
	}

	if root.right.isLeaf && root.right.key == key {
		return root.left, true
	}
	newRight, ok := remove(root.right, key)
	if !ok {
		return root, false
	}
	return newInternal(root.bitPos, root.left, newRight), true
}

// ProofStep is one sibling hash encountered walking from a leaf to the
// root, recorded root-to-leaf order.
type ProofStep struct {
	Hash       primitives.Hash256
	SiblingIsLeft bool
}

// Proof is an inclusion proof for a single Coin against a RootHash.
type Proof struct {
	LeafHash primitives.Hash256
	Steps    []ProofStep
}

// Verify reports whether p proves its Coin is a member of the trie whose
// root is root.
func (p Proof) Verify(root primitives.Hash256) bool {
	h := p.LeafHash
	for i := len(p.Steps) - 1; i >= 0; i-- {
		s := p.Steps[i]
		if s.SiblingIsLeft {
			h = primitives.HashCombine(s.Hash, h)
		} else {
			h = primitives.HashCombine(h, s.Hash)
		}
	}
	return h == root
}

// Prove builds an inclusion proof for op, if present.
func (t *Trie) Prove(op wire.Outpoint) (Proof, bool) {
	key := trieKey(op)
	var steps []ProofStep
	n := t.root
	for n != nil && !n.isLeaf {
		if bitAt(key, n.bitPos) == 0 {
			steps = append(steps, ProofStep{Hash: n.right.hash, SiblingIsLeft: false})
			n = n.left
		} else {
			steps = append(steps, ProofStep{Hash: n.left.hash, SiblingIsLeft: true})
			n = n.right
		}
	}
	if n == nil || n.key != key {
		return Proof{}, false
	}
	return Proof{LeafHash: n.hash, Steps: steps}, true
}

// Count returns the number of Coins in the trie (O(n); diagnostic use
// only, not called from the hot connect/disconnect path).
func (t *Trie) Count() int {
	return countNode(t.root)
}

func countNode(n *node) int {
	if n == nil {
		return 0
	}
	if n.isLeaf {
		return 1
	}
	return countNode(n.left) + countNode(n.right)
}
