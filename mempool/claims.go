// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool implements Claims admission (spec.md's C7): the pool
// of not-yet-mined transactions a node has verified against the current
// Spendables set, their dependency graph, a fee/size priority index for
// block-template selection, and age-based eviction.
package mempool

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coreledger-node/node/cerrors"
	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/txscript"
	"github.com/coreledger-node/node/wire"
)

// MaxBlockSize bounds both a single transaction's size and the template
// Transactions builds, per spec.md §4.4.
const MaxBlockSize = 1_000_000

// MaxMoney is the maximum number of satoshis that can ever exist,
// used to bound individual output values during context-free checks.
const MaxMoney = 21_000_000 * 100_000_000

// MinRelayFeePerByte is the minimum fee rate a Claim must pay to be
// admitted, expressed in satoshis per serialized byte.
const MinRelayFeePerByte = 1

// Claim is one admitted, not-yet-mined transaction (spec.md's Claim).
type Claim struct {
	Tx              *wire.MsgTx
	Hash            primitives.Hash256
	Timestamp       time.Time
	Size            int
	Fee             int64
	DeltaSpendables int
	DependsOn       []primitives.Hash256
}

// Pool is the Claims admission engine and priority index.
type Pool struct {
	mu sync.RWMutex

	params     *chaincfg.Params
	spendables *spendables.Trie

	claims     map[primitives.Hash256]*Claim
	priorities []primitives.Hash256 // kept sorted by (fee/size desc, deltaSpendables asc)
	spents     map[wire.Outpoint]primitives.Hash256
	scripts    map[string][]wire.Outpoint // scriptPubKey (hex) -> claimed outputs paying it
}

// New returns an empty Claims pool validating admissions against
// spendablesSet under params.
func New(params *chaincfg.Params, spendablesSet *spendables.Trie) *Pool {
	return &Pool{
		params:     params,
		spendables: spendablesSet,
		claims:     make(map[primitives.Hash256]*Claim),
		spents:     make(map[wire.Outpoint]primitives.Hash256),
		scripts:    make(map[string][]wire.Outpoint),
	}
}

// Have reports whether hash names an admitted Claim.
func (p *Pool) Have(hash primitives.Hash256) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.claims[hash]
	return ok
}

// Count returns the number of admitted Claims.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.claims)
}

// Get returns the Claim for hash, if admitted.
func (p *Pool) Get(hash primitives.Hash256) (*Claim, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.claims[hash]
	return c, ok
}

// ErrMissingInputs is returned by AdmitTransaction when one or more of
// tx's inputs resolve to neither a Coin in Spendables nor another Claim.
// Unlike other admission failures, this one is not necessarily permanent:
// the caller may retain tx as an orphan and retry once its inputs arrive.
var ErrMissingInputs = fmt.Errorf("mempool: transaction references unknown inputs")

// resolvedInput is an input whose referenced Coin has been located,
// either in Spendables (depth 0) or in another Claim (a dependency).
type resolvedInput struct {
	coin      spendables.Coin
	dependsOn *primitives.Hash256
}

// AdmitTransaction runs the six-step admission protocol of spec.md §4.4
// and, on success, records tx as a new Claim.
func (p *Pool) AdmitTransaction(tx *wire.MsgTx) (*Claim, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.admitLocked(tx, time.Now())
}

func (p *Pool) admitLocked(tx *wire.MsgTx, now time.Time) (*Claim, error) {
	// 1. Context-free checks.
	if len(tx.TxIn) == 0 || len(tx.TxOut) == 0 {
		return nil, cerrors.Malformed("mempool: transaction has no inputs or outputs")
	}
	if tx.IsCoinBase() {
		return nil, cerrors.Malformed("mempool: coinbase transactions are not individually relayable")
	}
	size := tx.SerializeSize()
	if size > MaxBlockSize {
		return nil, cerrors.Rejected(cerrors.NonStandard, "mempool: transaction size %d exceeds maximum block size", size)
	}
	var totalOut int64
	for _, out := range tx.TxOut {
		if out.Value < 0 || out.Value > MaxMoney {
			return nil, cerrors.Rejected(cerrors.BadValue, "mempool: output value %d out of range", out.Value)
		}
		totalOut += out.Value
		if totalOut > MaxMoney {
			return nil, cerrors.Rejected(cerrors.BadValue, "mempool: total output value exceeds maximum money supply")
		}
	}
	seen := make(map[wire.Outpoint]bool, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if seen[in.PreviousOutpoint] {
			return nil, cerrors.Malformed("mempool: duplicate input %v", in.PreviousOutpoint)
		}
		seen[in.PreviousOutpoint] = true
	}
	if !p.params.RelayNonStdTxs {
		for _, out := range tx.TxOut {
			if !txscript.IsStandard(out.ScriptPubKey) {
				return nil, cerrors.Rejected(cerrors.NonStandard, "mempool: non-standard output script rejected by chain policy")
			}
		}
	}

	hash := tx.TxHash()
	if _, ok := p.claims[hash]; ok {
		return nil, fmt.Errorf("mempool: transaction %s already admitted", hash)
	}

	// 2. Conflict check.
	for _, in := range tx.TxIn {
		if spender, ok := p.spents[in.PreviousOutpoint]; ok {
			return nil, cerrors.Rejected(cerrors.DoubleSpend, "mempool: outpoint %v already spent by claim %s", in.PreviousOutpoint, spender)
		}
	}

	// 3. Input resolution.
	resolved := make([]resolvedInput, len(tx.TxIn))
	var dependsOn []primitives.Hash256
	dependsSeen := make(map[primitives.Hash256]bool)
	var inputsValue int64
	for i, in := range tx.TxIn {
		if coin, ok := p.spendables.Get(in.PreviousOutpoint); ok {
			resolved[i] = resolvedInput{coin: coin}
			inputsValue += coin.Output.Value
			continue
		}
		parent, ok := p.claims[in.PreviousOutpoint.Hash]
		if !ok || int(in.PreviousOutpoint.Index) >= len(parent.Tx.TxOut) {
			return nil, cerrors.MissingInputWrap(ErrMissingInputs, "%v", in.PreviousOutpoint)
		}
		out := parent.Tx.TxOut[in.PreviousOutpoint.Index]
		resolved[i] = resolvedInput{
			coin: spendables.Coin{
				Outpoint: in.PreviousOutpoint,
				Output:   *out,
			},
			dependsOn: &parent.Hash,
		}
		inputsValue += out.Value
		if !dependsSeen[parent.Hash] {
			dependsSeen[parent.Hash] = true
			dependsOn = append(dependsOn, parent.Hash)
		}
	}

	// 4. Script verification.
	for i, in := range resolved {
		err := txscript.ExecuteScriptPair(
			tx.TxIn[i].SignatureScript,
			in.coin.Output.ScriptPubKey,
			tx,
			i,
			txscript.ScriptBip16|txscript.ScriptVerifyDERSignature,
			nil,
		)
		if err != nil {
			return nil, cerrors.RejectedWrap(cerrors.BadSignature, err, "mempool: script verification failed for input %d", i)
		}
	}

	// 5. Fee check.
	fee := inputsValue - totalOut
	minFee := int64(size) * MinRelayFeePerByte
	if fee < minFee {
		return nil, cerrors.Rejected(cerrors.NonStandard, "mempool: fee %d below minimum relay fee %d for size %d", fee, minFee, size)
	}

	// 6. Record the Claim.
	claim := &Claim{
		Tx:              tx,
		Hash:            hash,
		Timestamp:       now,
		Size:            size,
		Fee:             fee,
		DeltaSpendables: len(tx.TxOut) - len(tx.TxIn),
		DependsOn:       dependsOn,
	}
	p.claims[hash] = claim
	p.insertPriority(hash)
	for _, in := range tx.TxIn {
		p.spents[in.PreviousOutpoint] = hash
	}
	for idx, out := range tx.TxOut {
		key := hex.EncodeToString(out.ScriptPubKey)
		p.scripts[key] = append(p.scripts[key], wire.Outpoint{Hash: hash, Index: uint32(idx)})
	}

	return claim, nil
}

// Claimed returns every not-yet-mined output paying scriptPubKey,
// alongside the output itself (spec.md's wallet-facing "claimed by
// script" query, grounded on Claims::claimed).
func (p *Pool) Claimed(scriptPubKey []byte) []struct {
	Outpoint wire.Outpoint
	Output   wire.TxOut
} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []struct {
		Outpoint wire.Outpoint
		Output   wire.TxOut
	}
	for _, op := range p.scripts[hex.EncodeToString(scriptPubKey)] {
		claim, ok := p.claims[op.Hash]
		if !ok || int(op.Index) >= len(claim.Tx.TxOut) {
			continue
		}
		out = append(out, struct {
			Outpoint wire.Outpoint
			Output   wire.TxOut
		}{Outpoint: op, Output: *claim.Tx.TxOut[op.Index]})
	}
	return out
}

// Mark captures the pool's full state for a later Restore, used by the
// BlockChain engine to undo a reorganisation that fails partway through
// connecting its blocks (spec.md §4.5: "no partial state is observable").
type Mark struct {
	claims     map[primitives.Hash256]*Claim
	priorities []primitives.Hash256
	spents     map[wire.Outpoint]primitives.Hash256
	scripts    map[string][]wire.Outpoint
}

// Mark returns a token that Restore can later use to roll the pool back
// to its state right now.
func (p *Pool) Mark() Mark {
	p.mu.RLock()
	defer p.mu.RUnlock()

	claims := make(map[primitives.Hash256]*Claim, len(p.claims))
	for k, v := range p.claims {
		claims[k] = v
	}
	spents := make(map[wire.Outpoint]primitives.Hash256, len(p.spents))
	for k, v := range p.spents {
		spents[k] = v
	}
	scripts := make(map[string][]wire.Outpoint, len(p.scripts))
	for k, v := range p.scripts {
		scripts[k] = append([]wire.Outpoint(nil), v...)
	}
	return Mark{
		claims:     claims,
		priorities: append([]primitives.Hash256(nil), p.priorities...),
		spents:     spents,
		scripts:    scripts,
	}
}

// Restore rewinds the pool to the state captured by m.
func (p *Pool) Restore(m Mark) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claims = m.claims
	p.priorities = m.priorities
	p.spents = m.spents
	p.scripts = m.scripts
}

// ConflictingWith returns the hashes of admitted Claims, other than tx's
// own hash if it is itself admitted, that spend any outpoint tx also
// spends. The BlockChain engine calls this when tx is mined, to evict
// Claims that can no longer ever be confirmed.
func (p *Pool) ConflictingWith(tx *wire.MsgTx) []primitives.Hash256 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txHash := tx.TxHash()
	seen := make(map[primitives.Hash256]bool)
	var out []primitives.Hash256
	for _, in := range tx.TxIn {
		if h, ok := p.spents[in.PreviousOutpoint]; ok && h != txHash && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// claimLess implements spec.md §4.4's priority ordering: "fee·size⁻¹
// desc, then delta_spendables asc", i.e. compare l.fee*r.size against
// r.fee*l.size to avoid floating point.
func (p *Pool) claimLess(a, b primitives.Hash256) bool {
	l := p.claims[a]
	r := p.claims[b]
	lhs := l.Fee * int64(r.Size)
	rhs := r.Fee * int64(l.Size)
	if lhs != rhs {
		return lhs > rhs
	}
	return l.DeltaSpendables < r.DeltaSpendables
}

func (p *Pool) insertPriority(hash primitives.Hash256) {
	i := sort.Search(len(p.priorities), func(i int) bool {
		return !p.claimLess(p.priorities[i], hash)
	})
	p.priorities = append(p.priorities, primitives.Hash256{})
	copy(p.priorities[i+1:], p.priorities[i:])
	p.priorities[i] = hash
}

func (p *Pool) removePriority(hash primitives.Hash256) {
	for i, h := range p.priorities {
		if h == hash {
			p.priorities = append(p.priorities[:i], p.priorities[i+1:]...)
			return
		}
	}
}

// Remove drops hash from the pool without touching spends bookkeeping
// for its descendants; callers that mined or invalidated hash should
// follow up by re-admitting or purging any Claims that depended on it.
func (p *Pool) Remove(hash primitives.Hash256) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash primitives.Hash256) {
	claim, ok := p.claims[hash]
	if !ok {
		return
	}
	p.removePriority(hash)
	for _, in := range claim.Tx.TxIn {
		if p.spents[in.PreviousOutpoint] == hash {
			delete(p.spents, in.PreviousOutpoint)
		}
	}
	for _, out := range claim.Tx.TxOut {
		key := hex.EncodeToString(out.ScriptPubKey)
		ops := p.scripts[key]
		for i, op := range ops {
			if op.Hash == hash {
				ops = append(ops[:i], ops[i+1:]...)
				break
			}
		}
		if len(ops) == 0 {
			delete(p.scripts, key)
		} else {
			p.scripts[key] = ops
		}
	}
	delete(p.claims, hash)
}

// descendants returns every Claim whose DependsOn references hash,
// transitively.
func (p *Pool) descendants(hash primitives.Hash256) []primitives.Hash256 {
	var out []primitives.Hash256
	seen := map[primitives.Hash256]bool{hash: true}
	frontier := []primitives.Hash256{hash}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for h, c := range p.claims {
			if seen[h] {
				continue
			}
			for _, dep := range c.DependsOn {
				if dep == cur {
					seen[h] = true
					out = append(out, h)
					frontier = append(frontier, h)
					break
				}
			}
		}
	}
	return out
}

// RemoveWithDescendants removes hash and every Claim that (transitively)
// depends on it, used when a conflicting transaction is mined.
func (p *Pool) RemoveWithDescendants(hash primitives.Hash256) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.descendants(hash) {
		p.removeLocked(d)
	}
	p.removeLocked(hash)
}

// Purge removes every Claim older than before and its descendants
// (spec.md §4.4's eviction rule).
func (p *Pool) Purge(before time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []primitives.Hash256
	for h, c := range p.claims {
		if c.Timestamp.Before(before) {
			expired = append(expired, h)
		}
	}
	dead := make(map[primitives.Hash256]bool)
	for _, h := range expired {
		dead[h] = true
		for _, d := range p.descendants(h) {
			dead[d] = true
		}
	}
	for h := range dead {
		p.removeLocked(h)
	}
}

// insertClaim recursively walks claim's unselected dependencies before
// appending claim itself, mirroring the original Claims::insert_claim.
func insertClaim(pool *Pool, claim *Claim, txns *[]*wire.MsgTx, inserted map[primitives.Hash256]bool) int {
	size := 0
	for _, dep := range claim.DependsOn {
		if inserted[dep] {
			continue
		}
		if c, ok := pool.claims[dep]; ok {
			size += insertClaim(pool, c, txns, inserted)
		}
	}
	*txns = append(*txns, claim.Tx)
	inserted[claim.Hash] = true
	return size + claim.Size
}

// Transactions builds a dependency-ordered block template: it walks the
// priority index and greedily includes Claims (recursing into
// dependencies first) until headerAndCoinbase plus the accumulated size
// would exceed MaxBlockSize.
func (p *Pool) Transactions(headerAndCoinbase int) ([]*wire.MsgTx, int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var txns []*wire.MsgTx
	inserted := make(map[primitives.Hash256]bool)
	var fee int64
	size := headerAndCoinbase

	for _, hash := range p.priorities {
		if inserted[hash] {
			continue
		}
		claim, ok := p.claims[hash]
		if !ok {
			continue
		}
		if size+claim.Size >= MaxBlockSize {
			break
		}
		start := len(txns)
		size += insertClaim(p, claim, &txns, inserted)
		for _, tx := range txns[start:] {
			fee += p.claims[tx.TxHash()].Fee
		}
	}

	return txns, fee
}

// Threshold returns the fee of the last Claim that would be included in
// a block template built right now, the per-chain "minimum fee to get
// in" signal.
func (p *Pool) Threshold(headerAndCoinbase int) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var fee int64
	size := headerAndCoinbase
	for _, hash := range p.priorities {
		claim := p.claims[hash]
		if size+claim.Size >= MaxBlockSize {
			break
		}
		fee = claim.Fee
		size += claim.Size
	}
	return fee
}
