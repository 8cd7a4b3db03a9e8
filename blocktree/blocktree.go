// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blocktree implements the classic single-best-chain block index
// (spec.md's C3 "Block tree"): every received header is linked to its
// parent, the trunk (best chain) is the path of greatest accumulated
// proof-of-work from genesis, and any header that arrives off-trunk is
// retained as a side branch in case it later overtakes the trunk.
package blocktree

import (
	"fmt"
	"math/big"

	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/primitives"
)

// BlockRef is the minimal per-block record the tree needs to order
// candidate chains by accumulated work: it does not carry the block body.
type BlockRef struct {
	Hash   primitives.Hash256
	Prev   primitives.Hash256
	Height int32
	Bits   uint32
}

// Work returns the proof-of-work contribution of this single block.
func (r BlockRef) Work() *big.Int {
	return chaincfg.CalcWork(r.Bits)
}

// Changes reports how a single Insert altered the trunk: inserted is the
// list of hashes newly on the best chain (oldest first), deleted is the
// list of hashes that fell off the best chain onto a side branch (oldest
// first). Both are empty when the inserted block extended a side branch
// without overtaking the trunk.
type Changes struct {
	Inserted []primitives.Hash256
	Deleted  []primitives.Hash256
}

// ErrNotConnected is returned by Insert when ref's Prev is not already
// known to the tree.
var ErrNotConnected = fmt.Errorf("blocktree: block not connected to tree")

// Tree is the block index: a trunk (the current best chain, indexed by
// height from genesis) plus a set of branches hanging off some point on
// the trunk or on another branch.
type Tree struct {
	trunk    []BlockRef
	accWork  []*big.Int // accWork[h] = total work of trunk[0..h]
	branches map[primitives.Hash256]BlockRef
	heights  map[primitives.Hash256]int32 // negative => off-trunk
}

// New returns an empty tree. Call Assign with the genesis block before
// using it.
func New() *Tree {
	return &Tree{
		branches: make(map[primitives.Hash256]BlockRef),
		heights:  make(map[primitives.Hash256]int32),
	}
}

// Assign seeds the tree with an initial trunk, typically just the genesis
// block, though a longer initial trunk (e.g. restored from chainstore) is
// also accepted.
func (t *Tree) Assign(trunk []BlockRef) {
	t.trunk = append([]BlockRef(nil), trunk...)
	t.accWork = nil
	t.branches = make(map[primitives.Hash256]BlockRef)
	t.heights = make(map[primitives.Hash256]int32)

	if len(t.trunk) == 0 {
		return
	}

	work := t.trunk[0].Work()
	t.accWork = append(t.accWork, new(big.Int).Set(work))
	t.heights[t.trunk[0].Hash] = 0
	for h := 1; h < len(t.trunk); h++ {
		work = new(big.Int).Add(t.accWork[h-1], t.trunk[h].Work())
		t.accWork = append(t.accWork, work)
		t.heights[t.trunk[h].Hash] = int32(h)
	}
}

// Height returns the height of the best chain's tip, or -1 if the tree is
// empty.
func (t *Tree) Height() int32 {
	return int32(len(t.trunk)) - 1
}

// Best returns the current best (trunk tip) block ref.
func (t *Tree) Best() (BlockRef, bool) {
	if len(t.trunk) == 0 {
		return BlockRef{}, false
	}
	return t.trunk[len(t.trunk)-1], true
}

// Genesis returns the tree's root block ref.
func (t *Tree) Genesis() (BlockRef, bool) {
	if len(t.trunk) == 0 {
		return BlockRef{}, false
	}
	return t.trunk[0], true
}

// At returns the trunk block at the given height.
func (t *Tree) At(height int32) (BlockRef, bool) {
	if height < 0 || int(height) >= len(t.trunk) {
		return BlockRef{}, false
	}
	return t.trunk[height], true
}

// Find returns the ref for hash, whether on the trunk or a branch.
func (t *Tree) Find(hash primitives.Hash256) (BlockRef, bool) {
	if h, ok := t.heights[hash]; ok && h >= 0 {
		return t.trunk[h], true
	}
	if ref, ok := t.branches[hash]; ok {
		return ref, true
	}
	return BlockRef{}, false
}

// Contains reports whether hash is known to the tree (trunk or branch).
func (t *Tree) Contains(hash primitives.Hash256) bool {
	_, ok := t.Find(hash)
	return ok
}

// IsOnTrunk reports whether hash names a block on the current best chain.
func (t *Tree) IsOnTrunk(hash primitives.Hash256) bool {
	h, ok := t.heights[hash]
	return ok && h >= 0
}

// accumulatedWork returns the total work of the chain ending at ref.
// ref must already be linkable back to the trunk (i.e. its ancestor chain
// of branches eventually reaches a trunk block).
func (t *Tree) accumulatedWork(ref BlockRef) *big.Int {
	sum := new(big.Int)
	cur := ref
	for {
		if h, ok := t.heights[cur.Hash]; ok && h >= 0 {
			return sum.Add(sum, t.accWork[h])
		}
		sum.Add(sum, cur.Work())
		parent, ok := t.branches[cur.Prev]
		if !ok {
			if h, ok := t.heights[cur.Prev]; ok && h >= 0 {
				return sum.Add(sum, t.accWork[h])
			}
			// cur.Prev is the trunk's own root-adjacent block already
			// accounted for in the loop above; unreachable in a
			// correctly-linked tree.
			return sum
		}
		cur = parent
	}
}

// Insert links ref onto the tree under ref.Prev (which must already be
// known) and reports whether this insertion made the trunk longer/heavier
// and, if so, which branch it reorganized in over.
func (t *Tree) Insert(ref BlockRef) (Changes, error) {
	var changes Changes

	if len(t.trunk) == 0 {
		return changes, ErrNotConnected
	}

	parentHeight, parentKnown := t.heights[ref.Prev]
	parentOnTrunk := parentKnown && parentHeight >= 0
	_, parentOnBranch := t.branches[ref.Prev]
	if !parentOnTrunk && !parentOnBranch {
		return changes, ErrNotConnected
	}

	var parentRef BlockRef
	if parentOnTrunk {
		parentRef = t.trunk[parentHeight]
	} else {
		parentRef = t.branches[ref.Prev]
	}

	work := new(big.Int).Add(t.accumulatedWork(parentRef), ref.Work())
	bestWork := t.accWork[len(t.accWork)-1]

	if work.Cmp(bestWork) <= 0 {
		// Doesn't overtake the trunk: stash as a branch.
		t.branches[ref.Hash] = ref
		depth := int32(1)
		if parentOnBranch {
			depth = t.heightOf(parentRef) + 1
		}
		t.heights[ref.Hash] = -depth
		return changes, nil
	}

	// Overtakes the trunk: walk back from the new block's parent to the
	// trunk, collecting the branch chain to promote.
	var chain []BlockRef
	cur := parentRef
	for {
		h, onTrunk := t.heights[cur.Hash]
		if onTrunk && h >= 0 {
			break
		}
		chain = append(chain, cur)
		cur, _ = t.Find(cur.Prev)
	}
	root := t.heights[cur.Hash]

	// Demote the old trunk blocks above root into branches.
	for h := int(root) + 1; h < len(t.trunk); h++ {
		old := t.trunk[h]
		changes.Deleted = append(changes.Deleted, old.Hash)
		t.branches[old.Hash] = old
		t.heights[old.Hash] = -int32(h - int(root))
	}

	// Truncate the trunk back to the fork point.
	t.trunk = t.trunk[:root+1]
	t.accWork = t.accWork[:root+1]

	// Promote the collected branch chain (oldest first) plus the new
	// block onto the trunk.
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		t.trunk = append(t.trunk, b)
		t.accWork = append(t.accWork, new(big.Int).Add(t.accWork[len(t.accWork)-1], b.Work()))
		t.heights[b.Hash] = int32(len(t.trunk) - 1)
		delete(t.branches, b.Hash)
		changes.Inserted = append(changes.Inserted, b.Hash)
	}
	t.trunk = append(t.trunk, ref)
	t.accWork = append(t.accWork, work)
	t.heights[ref.Hash] = int32(len(t.trunk) - 1)
	changes.Inserted = append(changes.Inserted, ref.Hash)

	return changes, nil
}

// heightOf returns the (positive) depth of a branch block below its
// nearest trunk ancestor, used only to seed a newly-stashed branch
// block's negative height.
func (t *Tree) heightOf(ref BlockRef) int32 {
	h, ok := t.heights[ref.Hash]
	if !ok {
		return 0
	}
	if h < 0 {
		return -h
	}
	return 0
}

// PopBack removes the current trunk tip, used when the consumer (the
// BlockChain engine) invalidates the best block (e.g. it fails deferred
// script verification after being accepted on headers alone). If a branch
// now carries more work than the remaining trunk, PopBack reorganizes
// onto it.
func (t *Tree) PopBack() {
	if len(t.trunk) == 0 {
		return
	}
	popped := t.trunk[len(t.trunk)-1]
	t.trunk = t.trunk[:len(t.trunk)-1]
	t.accWork = t.accWork[:len(t.accWork)-1]
	delete(t.heights, popped.Hash)

	if len(t.trunk) == 0 {
		return
	}

	bestWork := t.accWork[len(t.accWork)-1]
	var bestBranch BlockRef
	haveBestBranch := false
	for _, ref := range t.branches {
		w := t.accumulatedWork(ref)
		if w.Cmp(bestWork) > 0 {
			bestWork = w
			bestBranch = ref
			haveBestBranch = true
		}
	}

	if !haveBestBranch {
		return
	}

	var chain []BlockRef
	cur := bestBranch
	for {
		h, onTrunk := t.heights[cur.Hash]
		if onTrunk && h >= 0 {
			break
		}
		chain = append(chain, cur)
		cur, _ = t.Find(cur.Prev)
	}
	root := t.heights[cur.Hash]

	for h := int(root) + 1; h < len(t.trunk); h++ {
		old := t.trunk[h]
		t.branches[old.Hash] = old
		t.heights[old.Hash] = -int32(h - int(root))
	}

	t.trunk = t.trunk[:root+1]
	t.accWork = t.accWork[:root+1]

	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		t.trunk = append(t.trunk, b)
		t.accWork = append(t.accWork, new(big.Int).Add(t.accWork[len(t.accWork)-1], b.Work()))
		t.heights[b.Hash] = int32(len(t.trunk) - 1)
		delete(t.branches, b.Hash)
	}
}

// Mark captures the tree's full state for a later Restore, used by the
// BlockChain engine to unwind a reorganisation when connecting one of its
// newly-promoted blocks fails verification partway through (spec.md §4.5:
// "rewind BlockTree to pre-insert state").
type Mark struct {
	trunk    []BlockRef
	accWork  []*big.Int
	branches map[primitives.Hash256]BlockRef
	heights  map[primitives.Hash256]int32
}

// Mark returns a token that Restore can later use to roll the tree back
// to its state right now.
func (t *Tree) Mark() Mark {
	branches := make(map[primitives.Hash256]BlockRef, len(t.branches))
	for k, v := range t.branches {
		branches[k] = v
	}
	heights := make(map[primitives.Hash256]int32, len(t.heights))
	for k, v := range t.heights {
		heights[k] = v
	}
	return Mark{
		trunk:    append([]BlockRef(nil), t.trunk...),
		accWork:  append([]*big.Int(nil), t.accWork...),
		branches: branches,
		heights:  heights,
	}
}

// Restore rewinds the tree to the state captured by m.
func (t *Tree) Restore(m Mark) {
	t.trunk = m.trunk
	t.accWork = m.accWork
	t.branches = m.branches
	t.heights = m.heights
}

// Locator builds a block locator (spec.md's getheaders/getblocks
// handshake primitive): the trunk tip, then blocks at exponentially
// increasing steps back towards genesis, for a peer to find the last
// common ancestor cheaply.
func (t *Tree) Locator() []primitives.Hash256 {
	var out []primitives.Hash256
	if len(t.trunk) == 0 {
		return out
	}
	step := 1
	h := len(t.trunk) - 1
	for h >= 0 {
		out = append(out, t.trunk[h].Hash)
		if len(out) >= 10 {
			step *= 2
		}
		h -= step
	}
	if out[len(out)-1] != t.trunk[0].Hash {
		out = append(out, t.trunk[0].Hash)
	}
	return out
}
