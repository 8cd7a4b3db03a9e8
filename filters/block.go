// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filters

import (
	"sync"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// blockRejectMisbehavior is the score bump applied for a block that fails
// acceptance, per spec.md §7.
const blockRejectMisbehavior = 20

// ChainAcceptor is implemented by whatever validates and stores blocks.
// BlockFilter never imports the chain store or DAG directly, the same
// Config-callback decoupling peer.Config uses for chainstore/mempool
// access — the node orchestrator supplies the concrete implementation.
type ChainAcceptor interface {
	// AcceptBlock validates and, on success, stores block, reporting
	// whether it was newly accepted. A non-nil error means the block is
	// invalid outright (not merely an orphan).
	AcceptBlock(block *wire.MsgBlock) (accepted bool, err error)
	// HaveBlock reports whether hash is already known (on the active
	// chain, a side branch, or pending as an orphan).
	HaveBlock(hash primitives.Hash256) bool
}

// BlockFilter admits relayed blocks via a ChainAcceptor, holds orphans
// whose parent hasn't arrived yet, and relays newly accepted blocks
// onward. The Go counterpart of
// original_source/include/btcNode/BlockFilter.h's orphan maps; inv,
// getdata, getblocks and getheaders are already served at the wire level
// by the peer package's Config callbacks, and IBD kickoff from a
// version message is the node orchestrator's responsibility, so this
// filter's scope is narrowed to the "block" command alone.
type BlockFilter struct {
	chain ChainAcceptor
	peers Broadcaster

	mu            sync.Mutex
	orphans       map[primitives.Hash256]*wire.MsgBlock
	orphansByPrev map[primitives.Hash256][]primitives.Hash256
}

// NewBlockFilter builds a filter that accepts into chain and relays
// through peers (nil disables relay).
func NewBlockFilter(chain ChainAcceptor, peers Broadcaster) *BlockFilter {
	return &BlockFilter{
		chain:         chain,
		peers:         peers,
		orphans:       make(map[primitives.Hash256]*wire.MsgBlock),
		orphansByPrev: make(map[primitives.Hash256][]primitives.Hash256),
	}
}

// Commands implements Filter.
func (f *BlockFilter) Commands() []string {
	return []string{wire.CmdBlock}
}

// Handle implements Filter.
func (f *BlockFilter) Handle(m *Message) error {
	msg, ok := m.Msg.(*wire.MsgBlockWire)
	if !ok {
		return nil
	}
	return f.process(m.Peer, &msg.MsgBlock)
}

func (f *BlockFilter) process(p Session, block *wire.MsgBlock) error {
	hash := block.BlockHash()
	if f.chain.HaveBlock(hash) {
		return nil
	}

	accepted, err := f.chain.AcceptBlock(block)
	if err != nil {
		log.Debugf("rejected block %s from %s: %s", hash, p.Addr(), err)
		p.SendReject(wire.CmdBlock, rejectCode(err), err.Error())
		p.AddMisbehavior(blockRejectMisbehavior, "rejected block: "+err.Error())
		return nil
	}
	if !accepted {
		log.Debugf("orphan block %s from %s, holding for parent %s", hash, p.Addr(), block.Header.Prev)
		f.addOrphan(block)
		return nil
	}

	f.announce(hash, p)
	f.resolveOrphans(hash)
	return nil
}

func (f *BlockFilter) announce(hash primitives.Hash256, except Session) {
	if f.peers == nil {
		return
	}
	f.peers.Broadcast(&wire.MsgInv{InvList: []*wire.InvVect{
		{Type: wire.InvTypeBlock, Hash: hash},
	}}, except)
}

func (f *BlockFilter) addOrphan(block *wire.MsgBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := block.BlockHash()
	if _, ok := f.orphans[hash]; ok {
		return
	}
	f.orphans[hash] = block
	prev := block.Header.Prev
	f.orphansByPrev[prev] = append(f.orphansByPrev[prev], hash)
}

// resolveOrphans retries every orphan waiting on parent now that parent
// has just been accepted.
func (f *BlockFilter) resolveOrphans(parent primitives.Hash256) {
	f.mu.Lock()
	waiting := f.orphansByPrev[parent]
	delete(f.orphansByPrev, parent)
	var retry []*wire.MsgBlock
	for _, hash := range waiting {
		if block, ok := f.orphans[hash]; ok {
			retry = append(retry, block)
			delete(f.orphans, hash)
		}
	}
	f.mu.Unlock()

	for _, block := range retry {
		accepted, err := f.chain.AcceptBlock(block)
		if err != nil || !accepted {
			continue
		}
		hash := block.BlockHash()
		f.announce(hash, nil)
		f.resolveOrphans(hash)
	}
}

// OrphanCount reports the number of blocks currently held pending their
// parent's arrival.
func (f *BlockFilter) OrphanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orphans)
}
