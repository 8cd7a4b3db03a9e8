// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filters

import (
	"sync"

	"github.com/coreledger-node/node/cerrors"
	"github.com/coreledger-node/node/mempool"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// rejectMisbehavior is the score bump applied for a transaction that
// fails mempool admission for a reason other than missing inputs,
// mirroring the informal ban-score concept spec.md §7 asks for.
const rejectMisbehavior = 10

// TransactionFilter admits relayed transactions into the mempool, holds
// orphans whose inputs haven't arrived yet, and relays newly admitted
// transactions onward. The Go counterpart of
// original_source/include/coinChain/TransactionFilter.h's orphan map and
// relay logic, adapted to this mempool's AdmitTransaction/ErrMissingInputs
// contract instead of re-deriving context-free/context-dependent checks
// here (those live in mempool per spec.md §4.4).
type TransactionFilter struct {
	pool  *mempool.Pool
	peers Broadcaster

	mu            sync.Mutex
	orphans       map[primitives.Hash256]*wire.MsgTx
	orphansByPrev map[primitives.Hash256][]primitives.Hash256
}

// NewTransactionFilter builds a filter that admits into pool and relays
// through peers (nil disables relay, useful for tests of admission alone).
func NewTransactionFilter(pool *mempool.Pool, peers Broadcaster) *TransactionFilter {
	return &TransactionFilter{
		pool:          pool,
		peers:         peers,
		orphans:       make(map[primitives.Hash256]*wire.MsgTx),
		orphansByPrev: make(map[primitives.Hash256][]primitives.Hash256),
	}
}

// Commands implements Filter.
func (f *TransactionFilter) Commands() []string {
	return []string{wire.CmdTx}
}

// Handle implements Filter.
func (f *TransactionFilter) Handle(m *Message) error {
	msg, ok := m.Msg.(*wire.MsgTxWire)
	if !ok {
		return nil
	}
	return f.admit(m.Peer, &msg.MsgTx)
}

func (f *TransactionFilter) admit(p Session, tx *wire.MsgTx) error {
	_, err := f.pool.AdmitTransaction(tx)
	switch {
	case err == nil:
		f.announce(tx, p)
		f.resolveOrphans(tx.TxHash())
		return nil
	case cerrors.Is(err, cerrors.OrphanMissingInput):
		log.Debugf("orphan tx %s from %s, holding for parent", tx.TxHash(), p.Addr())
		f.addOrphan(tx)
		return nil
	default:
		log.Debugf("rejected tx %s from %s: %s", tx.TxHash(), p.Addr(), err)
		p.SendReject(wire.CmdTx, rejectCode(err), err.Error())
		p.AddMisbehavior(rejectMisbehavior, "rejected transaction: "+err.Error())
		return nil
	}
}

func (f *TransactionFilter) announce(tx *wire.MsgTx, except Session) {
	if f.peers == nil {
		return
	}
	f.peers.Broadcast(&wire.MsgInv{InvList: []*wire.InvVect{
		{Type: wire.InvTypeTx, Hash: tx.TxHash()},
	}}, except)
}

func (f *TransactionFilter) addOrphan(tx *wire.MsgTx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := tx.TxHash()
	if _, ok := f.orphans[hash]; ok {
		return
	}
	f.orphans[hash] = tx
	for _, in := range tx.TxIn {
		prev := in.PreviousOutpoint.Hash
		f.orphansByPrev[prev] = append(f.orphansByPrev[prev], hash)
	}
}

// resolveOrphans retries every orphan waiting on parent now that parent
// has just been admitted, walking _orphansByPrev the way
// TransactionFilter::addOrphan's counterpart does in the original.
func (f *TransactionFilter) resolveOrphans(parent primitives.Hash256) {
	f.mu.Lock()
	waiting := f.orphansByPrev[parent]
	delete(f.orphansByPrev, parent)
	var retry []*wire.MsgTx
	for _, hash := range waiting {
		if tx, ok := f.orphans[hash]; ok {
			retry = append(retry, tx)
			delete(f.orphans, hash)
		}
	}
	f.mu.Unlock()

	for _, tx := range retry {
		_, err := f.pool.AdmitTransaction(tx)
		switch {
		case err == nil:
			f.announce(tx, nil)
			f.resolveOrphans(tx.TxHash())
		case cerrors.Is(err, cerrors.OrphanMissingInput):
			f.addOrphan(tx)
		}
	}
}

// OrphanCount reports the number of transactions currently held pending
// their parent's arrival, used by tests and node-level diagnostics.
func (f *TransactionFilter) OrphanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orphans)
}
