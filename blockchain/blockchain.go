// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements the BlockChain engine (spec.md's C8): the
// authoritative owner of chain state, wiring together the header index
// (blocktree), the authenticated unspent-output set (spendables) and the
// pending-transaction pool (mempool) behind a single writer lock, with
// readers taking a shared lock over the combined state.
package blockchain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreledger-node/node/blocktree"
	"github.com/coreledger-node/node/cerrors"
	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/chainstore"
	"github.com/coreledger-node/node/mempool"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/txscript"
	"github.com/coreledger-node/node/wire"
)

// maxFutureBlockTime bounds how far into the future a block's timestamp
// may lie and still be accepted (spec.md §4.5 step 1).
const maxFutureBlockTime = 2 * time.Hour

// VerificationStrictness trades CPU for trust in buried history: a node
// that has accepted 100 confirmations atop a block no longer needs to
// re-run its script checks to agree on the chain tip.
type VerificationStrictness int

const (
	// VerifyNone skips script verification for every connected block,
	// retaining only the Merkle- and PoW-level checks of checkBlockSanity.
	VerifyNone VerificationStrictness = iota
	// VerifyMinimal verifies scripts only for blocks within the last
	// verifyMinimalWindow blocks of the current tip.
	VerifyMinimal
	// VerifyLastCheckpoint verifies scripts only for blocks after the
	// chain's most recent checkpoint.
	VerifyLastCheckpoint
	// VerifyLazy defers verification the same way VerifyMinimal does,
	// but is intended for a node that will catch up on unverified history
	// in the background; BlockChain treats it identically to VerifyMinimal.
	VerifyLazy
	// VerifyFull verifies every script of every connected block.
	VerifyFull
)

// verifyMinimalWindow is the "last 100 blocks" window named by spec.md
// §4.5's VerificationStrictness=MINIMAL policy.
const verifyMinimalWindow = 100

// PersistenceStrictness controls which block bodies persistChanges writes
// to an attached chainstore: PersistNone writes no bodies, PersistMinimal
// writes connected blocks' bodies and deletes disconnected blocks' bodies,
// PersistFull writes connected blocks' bodies and keeps disconnected ones.
// Bodies held in memory are not affected by the policy.
type PersistenceStrictness int

const (
	PersistNone PersistenceStrictness = iota
	PersistMinimal
	PersistFull
)

// BlockHook is called once per connected or disconnected block.
type BlockHook func(block *wire.MsgBlock, height int32, connected bool)

// TxHook is called once per transaction admission attempt.
type TxHook func(tx *wire.MsgTx, accepted bool)

// ErrOrphanBlock is returned by AcceptBlock when the block's parent is not
// yet known; the caller should retain the block and resubmit it once its
// parent has been accepted.
var ErrOrphanBlock = errors.New("blockchain: parent block not found")

// blockDelta records exactly what connecting one block did to Spendables,
// so that disconnecting it later is a pure replay rather than requiring a
// re-derivation of prior state (spec.md §4.5 step 8's "delta journal").
type blockDelta struct {
	removed []spendables.Coin // coins spent by this block; reinsert on disconnect
	added   []wire.Outpoint   // coins created by this block; remove on disconnect
}

// BlockChain owns the authoritative chain state described by spec.md §4.5.
type BlockChain struct {
	mu sync.RWMutex

	params *chaincfg.Params

	tree       *blocktree.Tree
	spendables *spendables.Trie
	claims     *mempool.Pool

	blocks  map[primitives.Hash256]*wire.MsgBlock
	deltas  map[primitives.Hash256]blockDelta
	txIndex map[primitives.Hash256]int32 // tx hash -> confirming block height
	invalid map[primitives.Hash256]bool

	bestReceivedTime time.Time

	verification VerificationStrictness
	persistence  PersistenceStrictness

	store *chainstore.Store

	blockHooks []BlockHook
	txHooks    []TxHook
}

// New returns a BlockChain seeded with params' genesis block as its only
// trunk entry.
func New(params *chaincfg.Params) *BlockChain {
	genesis := params.GenesisBlock
	genesisHash := params.GenesisHash

	tree := blocktree.New()
	tree.Assign([]blocktree.BlockRef{{
		Hash: genesisHash,
		Prev: genesis.Header.Prev,
		Bits: genesis.Header.Bits,
	}})

	trie := spendables.New()

	bc := &BlockChain{
		params:       params,
		tree:         tree,
		spendables:   trie,
		blocks:       map[primitives.Hash256]*wire.MsgBlock{genesisHash: genesis},
		deltas:       make(map[primitives.Hash256]blockDelta),
		txIndex:      make(map[primitives.Hash256]int32),
		invalid:      make(map[primitives.Hash256]bool),
		verification: VerifyFull,
		persistence:  PersistFull,
	}
	bc.claims = mempool.New(params, trie)
	return bc
}

// Open rebuilds a BlockChain from a chainstore.Store's persisted head,
// replaying each retained block from genesis forward through the
// ordinary AcceptBlock path so the rebuilt tree, Spendables set, and
// tx index are exactly what re-running AcceptBlock on a fresh BlockChain
// would have produced. store is attached only once replay completes, so
// replay itself never re-persists what's already on disk. If store has
// no persisted head yet, Open returns a fresh chain (as New would) with
// store already attached.
func Open(params *chaincfg.Params, store *chainstore.Store) (*BlockChain, error) {
	bc := New(params)

	head, height, ok, err := store.Head()
	if err != nil {
		return nil, cerrors.IO(err, "blockchain: reading persisted head")
	}
	if !ok {
		bc.AttachStore(store)
		return bc, nil
	}

	chain := make([]*wire.MsgBlock, height+1)
	cursor := head
	for h := height; h >= 1; h-- {
		block, ok, err := store.GetBlockBody(cursor)
		if err != nil {
			return nil, cerrors.IO(err, "blockchain: reading persisted block %s", cursor)
		}
		if !ok {
			return nil, cerrors.Invariant("blockchain: chain store missing persisted block %s at height %d", cursor, h)
		}
		chain[h] = block
		cursor = block.Header.Prev
	}
	if cursor != params.GenesisHash {
		return nil, cerrors.Invariant("blockchain: persisted chain does not root at genesis %s", params.GenesisHash)
	}

	for h := int32(1); h <= height; h++ {
		if err := bc.AcceptBlock(chain[h]); err != nil {
			return nil, fmt.Errorf("blockchain: replaying persisted block at height %d: %w", h, err)
		}
	}

	bc.AttachStore(store)
	return bc, nil
}

// SetVerificationStrictness changes the script-verification policy for
// blocks connected from now on.
func (bc *BlockChain) SetVerificationStrictness(v VerificationStrictness) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.verification = v
}

// SetPersistenceStrictness changes the body-retention policy reported to
// an attached chainstore.
func (bc *BlockChain) SetPersistenceStrictness(p PersistenceStrictness) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.persistence = p
}

// PersistenceStrictness reports the current body-retention policy.
func (bc *BlockChain) PersistenceStrictness() PersistenceStrictness {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.persistence
}

// AttachStore wires a chainstore.Store so every future commit (spec.md
// §4.5 step 8) durably persists the head pointer, the Spendables root,
// the coins touched, and each connected/disconnected block's delta
// journal. Blocks accepted before a store was attached are not
// retroactively persisted.
func (bc *BlockChain) AttachStore(store *chainstore.Store) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.store = store
}

// OnBlock registers a hook invoked once per connected or disconnected
// block, most-recently-registered last.
func (bc *BlockChain) OnBlock(hook BlockHook) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.blockHooks = append(bc.blockHooks, hook)
}

// OnTransaction registers a hook invoked once per transaction admission
// attempt.
func (bc *BlockChain) OnTransaction(hook TxHook) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.txHooks = append(bc.txHooks, hook)
}

// Claims returns the pending-transaction pool backing this chain, for
// wiring into a miner's block-template builder or a peer's relay logic.
func (bc *BlockChain) Claims() *mempool.Pool {
	return bc.claims
}

// Params returns the chain parameters this BlockChain was constructed
// with.
func (bc *BlockChain) Params() *chaincfg.Params {
	return bc.params
}

// ---- Read-only queries (shared lock) ----

// GenesisHash returns the hash of this chain's genesis block.
func (bc *BlockChain) GenesisHash() primitives.Hash256 {
	return bc.params.GenesisHash
}

// BestHeight returns the height of the current trunk tip.
func (bc *BlockChain) BestHeight() int32 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tree.Height()
}

// BestHash returns the hash of the current trunk tip.
func (bc *BlockChain) BestHash() primitives.Hash256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	ref, _ := bc.tree.Best()
	return ref.Hash
}

// BestReceivedTime returns the local time the current tip was accepted.
func (bc *BlockChain) BestReceivedTime() time.Time {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.bestReceivedTime
}

// Difficulty reports the current tip's difficulty, relative to mainnet's
// minimum, for the get_difficulty RPC query of spec.md §6.
func (bc *BlockChain) Difficulty() float64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	ref, ok := bc.tree.Best()
	if !ok {
		return 0
	}
	return bc.params.Difficulty(ref.Bits)
}

// HaveBlock reports whether hash names a block (trunk or branch) already
// known to the chain.
func (bc *BlockChain) HaveBlock(hash primitives.Hash256) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tree.Contains(hash)
}

// GetBlock returns the body of the block named by hash, if retained.
func (bc *BlockChain) GetBlock(hash primitives.Hash256) (*wire.MsgBlock, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	b, ok := bc.blocks[hash]
	return b, ok
}

// GetHeight returns the height at which hash was confirmed, whether hash
// names a block or a mined transaction.
func (bc *BlockChain) GetHeight(hash primitives.Hash256) (int32, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if ref, ok := bc.tree.Find(hash); ok && bc.tree.IsOnTrunk(ref.Hash) {
		return ref.Height, true
	}
	if h, ok := bc.txIndex[hash]; ok {
		return h, true
	}
	return 0, false
}

// GetDepthInMainChain returns hash's confirmation depth (1 for the tip
// itself), or 0 if hash is not confirmed on the trunk.
func (bc *BlockChain) GetDepthInMainChain(hash primitives.Hash256) int32 {
	height, ok := bc.GetHeight(hash)
	if !ok {
		return 0
	}
	return bc.BestHeight() - height + 1
}

// GetBlocksToMaturity returns how many more confirmations tx's coinbase
// output needs before it can be spent, 0 if tx is not a coinbase.
func (bc *BlockChain) GetBlocksToMaturity(tx *wire.MsgTx) int32 {
	if !tx.IsCoinBase() {
		return 0
	}
	remaining := int32(bc.params.CoinbaseMaturity) - bc.GetDepthInMainChain(tx.TxHash())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsInMainChain reports whether hash (a block or a confirmed transaction)
// lies on the current best chain.
func (bc *BlockChain) IsInMainChain(hash primitives.Hash256) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.tree.IsOnTrunk(hash) {
		return true
	}
	_, ok := bc.txIndex[hash]
	return ok
}

// HaveTransaction reports whether hash names either an admitted Claim or
// a confirmed transaction.
func (bc *BlockChain) HaveTransaction(hash primitives.Hash256) bool {
	if bc.claims.Have(hash) {
		return true
	}
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	_, ok := bc.txIndex[hash]
	return ok
}

// Coin returns the Coin referenced by op, if unspent.
func (bc *BlockChain) Coin(op wire.Outpoint) (spendables.Coin, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.spendables.Get(op)
}

// SpendablesRoot returns the authenticated root hash of the current
// unspent-output set.
func (bc *BlockChain) SpendablesRoot() primitives.Hash256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.spendables.RootHash()
}

// BestLocator builds a block locator rooted at the current trunk tip, for
// the getheaders/getblocks handshake.
func (bc *BlockChain) BestLocator() []primitives.Hash256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tree.Locator()
}

// locateStart finds the highest locator entry already on the trunk and
// returns the height just past it, or 1 (just past genesis, the implicit
// common ancestor) if none match — the shared walk `getblocks`/`getheaders`
// both build on.
func (bc *BlockChain) locateStart(locator wire.BlockLocator) int32 {
	for _, h := range locator {
		if ref, ok := bc.tree.Find(h); ok && bc.tree.IsOnTrunk(h) {
			return ref.Height + 1
		}
	}
	return 1
}

// LocateBlockHashes answers a peer's `getblocks`: starting just past the
// most recent locator entry this chain recognises, return up to limit
// trunk hashes, stopping early at stop if it's reached first.
func (bc *BlockChain) LocateBlockHashes(locator wire.BlockLocator, stop primitives.Hash256, limit int) []primitives.Hash256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	tip := bc.tree.Height()
	var out []primitives.Hash256
	for h := bc.locateStart(locator); h <= tip && len(out) < limit; h++ {
		ref, ok := bc.tree.At(h)
		if !ok {
			break
		}
		out = append(out, ref.Hash)
		if ref.Hash == stop {
			break
		}
	}
	return out
}

// LocateHeaders answers a peer's `getheaders` the same way
// LocateBlockHashes answers `getblocks`, returning headers instead of bare
// hashes.
func (bc *BlockChain) LocateHeaders(locator wire.BlockLocator, stop primitives.Hash256, limit int) []*wire.BlockHeader {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	tip := bc.tree.Height()
	var out []*wire.BlockHeader
	for h := bc.locateStart(locator); h <= tip && len(out) < limit; h++ {
		ref, ok := bc.tree.At(h)
		if !ok {
			break
		}
		block, ok := bc.blocks[ref.Hash]
		if !ok {
			break
		}
		out = append(out, &block.Header)
		if ref.Hash == stop {
			break
		}
	}
	return out
}

// ---- Transaction admission ----

// AcceptTransaction runs the Claims admission protocol under the writer
// lock. missingInputs is true when the rejection is potentially temporary
// (the caller may retain tx as an orphan and resubmit once its inputs
// arrive), matching spec.md §4.5's {rejected, missing_inputs?} outcome.
func (bc *BlockChain) AcceptTransaction(tx *wire.MsgTx) (claim *mempool.Claim, missingInputs bool, err error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	claim, err = bc.claims.AdmitTransaction(tx)
	for _, hook := range bc.txHooks {
		hook(tx, err == nil)
	}
	if err != nil {
		return nil, cerrors.Is(err, cerrors.OrphanMissingInput), err
	}
	return claim, false, nil
}

// CheckTransaction is a dry run of AcceptTransaction: it reports whether
// tx would be admitted without actually recording it.
func (bc *BlockChain) CheckTransaction(tx *wire.MsgTx) error {
	bc.mu.RLock()
	snapshot := bc.spendables.Snapshot()
	params := bc.params
	bc.mu.RUnlock()

	probe := mempool.New(params, snapshot)
	_, err := probe.AdmitTransaction(tx)
	return err
}

// ---- Block acceptance ----

// AcceptBlock runs the nine-step block acceptance sequence of spec.md
// §4.5: context-free checks, parent lookup, difficulty check, BlockTree
// insertion, disconnect/connect of any reorganized blocks, and commit.
// Any failure during step 6 unwinds every change this call made and
// leaves the chain exactly as it was found.
func (bc *BlockChain) AcceptBlock(block *wire.MsgBlock) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.acceptBlockLocked(block, time.Now())
}

func (bc *BlockChain) acceptBlockLocked(block *wire.MsgBlock, now time.Time) error {
	hash := block.BlockHash()

	if bc.tree.Contains(hash) {
		return fmt.Errorf("blockchain: duplicate block %s", hash)
	}
	if bc.invalid[hash] {
		return fmt.Errorf("blockchain: block %s was previously marked invalid", hash)
	}

	// 1. Context-free header and body checks.
	if err := bc.checkBlockSanity(block, now); err != nil {
		bc.invalid[hash] = true
		return err
	}

	// 2. Locate parent in BlockTree.
	parentRef, ok := bc.tree.Find(block.Header.Prev)
	if !ok {
		return cerrors.MissingParentWrap(ErrOrphanBlock, "%s", hash)
	}

	// 3. Consult the chain for the required difficulty at parent.
	required, err := bc.nextWorkRequired(parentRef)
	if err != nil {
		return err
	}
	if block.Header.Bits != required {
		bc.invalid[hash] = true
		return cerrors.Rejected(cerrors.BadPoW, "blockchain: block %s bits %08x, chain requires %08x", hash, block.Header.Bits, required)
	}

	ref := blocktree.BlockRef{Hash: hash, Prev: block.Header.Prev, Height: parentRef.Height + 1, Bits: block.Header.Bits}

	// Snapshot everything step 5/6 might touch so a failure partway
	// through can unwind cleanly (spec.md §4.5 step 7: "no partial state
	// is observable").
	treeMark := bc.tree.Mark()
	spendablesMark := bc.spendables.Mark()
	claimsMark := bc.claims.Mark()
	deltasMark := make(map[primitives.Hash256]blockDelta, len(bc.deltas))
	for k, v := range bc.deltas {
		deltasMark[k] = v
	}
	unwind := func() {
		bc.tree.Restore(treeMark)
		bc.spendables.Restore(spendablesMark)
		bc.claims.Restore(claimsMark)
		bc.deltas = deltasMark
		delete(bc.blocks, hash)
	}

	// 4. BlockTree.insert; obtain Changes.
	changes, err := bc.tree.Insert(ref)
	if err != nil {
		// The parent was already resolved above, so Insert can only fail
		// here if the tree's own bookkeeping has been corrupted.
		return cerrors.InvariantWrap(err, "blockchain: inserting %s", hash)
	}
	bc.blocks[hash] = block

	// 5. Disconnect the old trunk, tip first, down to the fork point.
	for i := len(changes.Deleted) - 1; i >= 0; i-- {
		if err := bc.disconnectBlock(changes.Deleted[i]); err != nil {
			unwind()
			return fmt.Errorf("blockchain: disconnecting %s: %w", changes.Deleted[i], err)
		}
	}

	// 6. Connect the newly-promoted chain, fork point first.
	for _, h := range changes.Inserted {
		connectRef, _ := bc.tree.Find(h)
		if err := bc.connectBlock(connectRef); err != nil {
			// 7. Unwind everything this call has done so far.
			unwind()
			bc.invalid[hash] = true
			return fmt.Errorf("blockchain: connecting %s: %w", h, err)
		}
	}

	// 8. Commit: the mark-based rollback above is the only undo path, so
	// reaching here means every change is final.
	for _, h := range changes.Inserted {
		connectRef, _ := bc.tree.Find(h)
		b := bc.blocks[h]
		bc.indexTransactions(b, connectRef.Height)
	}
	for _, d := range changes.Deleted {
		bc.deindexTransactions(bc.blocks[d])
	}
	bc.bestReceivedTime = now

	if bc.store != nil {
		if err := bc.persistChanges(changes, deltasMark); err != nil {
			// The in-memory chain state above is already final per step 8;
			// a store write failure here is a durability problem for the
			// caller to retry or alert on, not something step 7's unwind
			// can or should undo.
			return cerrors.IO(err, "blockchain: persisting block %s", hash)
		}
	}

	// 9. Emit notifications.
	for _, d := range changes.Deleted {
		bc.notifyBlock(bc.blocks[d], 0, false)
	}
	for _, h := range changes.Inserted {
		connectRef, _ := bc.tree.Find(h)
		bc.notifyBlock(bc.blocks[h], connectRef.Height, true)
	}

	return nil
}

func (bc *BlockChain) notifyBlock(block *wire.MsgBlock, height int32, connected bool) {
	for _, hook := range bc.blockHooks {
		hook(block, height, connected)
	}
}

func (bc *BlockChain) indexTransactions(block *wire.MsgBlock, height int32) {
	for _, tx := range block.Transactions {
		bc.txIndex[tx.TxHash()] = height
	}
}

func (bc *BlockChain) deindexTransactions(block *wire.MsgBlock) {
	if block == nil {
		return
	}
	for _, tx := range block.Transactions {
		delete(bc.txIndex, tx.TxHash())
	}
}

// checkBlockSanity performs spec.md §4.5 step 1's context-free checks.
func (bc *BlockChain) checkBlockSanity(block *wire.MsgBlock, now time.Time) error {
	hash := block.BlockHash()

	if len(block.Transactions) == 0 {
		return cerrors.Malformed("blockchain: block %s has no transactions", hash)
	}
	if !block.Transactions[0].IsCoinBase() {
		return cerrors.Rejected(cerrors.BadCoinbase, "blockchain: block %s's first transaction is not a coinbase", hash)
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinBase() {
			return cerrors.Rejected(cerrors.BadCoinbase, "blockchain: block %s has more than one coinbase transaction", hash)
		}
	}

	if block.Header.Timestamp.After(now.Add(maxFutureBlockTime)) {
		return cerrors.Rejected(cerrors.TimestampOutOfRange, "blockchain: block %s timestamp %s too far in the future", hash, block.Header.Timestamp)
	}

	if !bc.params.CheckProofOfWork(hash[:], block.Header.Bits) {
		return cerrors.Rejected(cerrors.BadPoW, "blockchain: block %s does not satisfy its proof-of-work target", hash)
	}

	if got, want := block.ComputeMerkleRoot(), block.Header.MerkleRoot; got != want {
		return cerrors.Rejected(cerrors.BadMerkle, "blockchain: block %s Merkle root %s does not match header %s", hash, got, want)
	}

	sigOps := 0
	for _, tx := range block.Transactions {
		for _, in := range tx.TxIn {
			sigOps += txscript.GetSigOpCount(in.SignatureScript)
		}
		for _, out := range tx.TxOut {
			sigOps += txscript.GetSigOpCount(out.ScriptPubKey)
		}
	}
	if sigOps > wire.MaxBlockSigOps {
		return cerrors.Rejected(cerrors.NonStandard, "blockchain: block %s has %d sigops, exceeds maximum %d", hash, sigOps, wire.MaxBlockSigOps)
	}

	if !bc.params.RelayNonStdTxs {
		for _, tx := range block.Transactions {
			for _, out := range tx.TxOut {
				if !txscript.IsStandard(out.ScriptPubKey) {
					return cerrors.Rejected(cerrors.NonStandard, "blockchain: block %s contains a non-standard output script", hash)
				}
			}
		}
	}

	return nil
}

// nextWorkRequired computes the difficulty bits the block following
// parent must satisfy, consulting the chain params' retarget rule.
func (bc *BlockChain) nextWorkRequired(parent blocktree.BlockRef) (uint32, error) {
	parentBlock, ok := bc.blocks[parent.Hash]
	if !ok {
		return 0, cerrors.Invariant("blockchain: missing cached header for parent %s", parent.Hash)
	}

	firstHeight := parent.Height + 1 - bc.params.BlocksPerRetarget
	if firstHeight < 0 {
		firstHeight = 0
	}
	firstRef, ok := bc.tree.At(firstHeight)
	var firstTime time.Time
	if ok {
		if b, ok := bc.blocks[firstRef.Hash]; ok {
			firstTime = b.Header.Timestamp
		} else {
			firstTime = parentBlock.Header.Timestamp
		}
	} else {
		firstTime = parentBlock.Header.Timestamp
	}

	return bc.params.NextWorkRequired(parent.Height, firstTime, parentBlock.Header.Timestamp, parent.Bits), nil
}

// shouldVerifyScripts reports whether connectBlock must run full script
// verification for a block at height, given the chain's current
// VerificationStrictness policy and trunk tip.
func (bc *BlockChain) shouldVerifyScripts(height int32) bool {
	switch bc.verification {
	case VerifyNone:
		return false
	case VerifyFull:
		return true
	case VerifyLastCheckpoint:
		if n := len(bc.params.Checkpoints); n > 0 {
			last := bc.params.Checkpoints[n-1]
			return height > last.Height
		}
		return true
	default: // VerifyMinimal, VerifyLazy
		return height > bc.tree.Height()-verifyMinimalWindow
	}
}

// disconnectBlock undoes a block previously connected onto the trunk:
// Spendables is restored from its recorded delta, and its non-coinbase
// transactions are re-offered to Claims on a best-effort basis (spec.md
// §4.5 step 5).
func (bc *BlockChain) disconnectBlock(hash primitives.Hash256) error {
	block, ok := bc.blocks[hash]
	if !ok {
		return cerrors.Invariant("missing cached body for block %s", hash)
	}
	delta, ok := bc.deltas[hash]
	if !ok {
		return cerrors.Invariant("missing delta journal for block %s", hash)
	}

	for _, op := range delta.added {
		_ = bc.spendables.Remove(op) // best effort: op may already be gone via a later reorg step
	}
	for _, coin := range delta.removed {
		bc.spendables.Insert(coin)
	}
	delete(bc.deltas, hash)

	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		_, _ = bc.claims.AdmitTransaction(tx)
	}
	return nil
}

// connectBlock applies a newly-promoted trunk block's transactions to
// Spendables and Claims (spec.md §4.5 step 6), recording a blockDelta so
// a later disconnect can undo exactly what it did.
func (bc *BlockChain) connectBlock(ref blocktree.BlockRef) error {
	block, ok := bc.blocks[ref.Hash]
	if !ok {
		return cerrors.Invariant("missing cached body for block %s", ref.Hash)
	}

	verify := bc.shouldVerifyScripts(ref.Height)

	var delta blockDelta
	var totalFees int64

	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		txHash := tx.TxHash()

		var inputsValue int64
		for i, in := range tx.TxIn {
			coin, ok := bc.spendables.Get(in.PreviousOutpoint)
			if !ok {
				return cerrors.Rejected(cerrors.DoubleSpend, "input %v of tx %s does not resolve to a Coin", in.PreviousOutpoint, txHash)
			}
			if coin.IsCoinbase && ref.Height-coin.Height < int32(bc.params.CoinbaseMaturity) {
				return cerrors.Rejected(cerrors.BadCoinbase, "tx %s spends immature coinbase output %v", txHash, in.PreviousOutpoint)
			}
			if verify {
				err := txscript.ExecuteScriptPair(
					in.SignatureScript,
					coin.Output.ScriptPubKey,
					tx, i,
					txscript.ScriptBip16|txscript.ScriptVerifyDERSignature,
					nil,
				)
				if err != nil {
					return cerrors.RejectedWrap(cerrors.BadSignature, err, "script verification failed for tx %s input %d", txHash, i)
				}
			}
			inputsValue += coin.Output.Value
			delta.removed = append(delta.removed, coin)
			if err := bc.spendables.Remove(in.PreviousOutpoint); err != nil {
				// coin was just resolved above, so this can only mean the
				// trie's own bookkeeping has been corrupted.
				return cerrors.InvariantWrap(err, "tx %s", txHash)
			}
		}

		var outputsValue int64
		for _, out := range tx.TxOut {
			outputsValue += out.Value
		}
		fee := inputsValue - outputsValue
		if fee < 0 {
			return cerrors.Rejected(cerrors.BadValue, "tx %s outputs exceed its inputs", txHash)
		}
		totalFees += fee

		for idx, out := range tx.TxOut {
			op := wire.Outpoint{Hash: txHash, Index: uint32(idx)}
			bc.spendables.Insert(spendables.Coin{Outpoint: op, Output: *out, Height: ref.Height})
			delta.added = append(delta.added, op)
		}

		for _, h := range bc.claims.ConflictingWith(tx) {
			bc.claims.RemoveWithDescendants(h)
		}
		if bc.claims.Have(txHash) {
			bc.claims.RemoveWithDescendants(txHash)
		}
	}

	coinbase := block.Transactions[0]
	coinbaseHash := coinbase.TxHash()
	var coinbaseOut int64
	for _, out := range coinbase.TxOut {
		coinbaseOut += out.Value
	}
	subsidy := bc.params.TotalSubsidy(ref.Height)
	if coinbaseOut > subsidy+totalFees {
		return cerrors.Rejected(cerrors.BadCoinbase, "coinbase of block %s pays %d, exceeds subsidy+fees %d", ref.Hash, coinbaseOut, subsidy+totalFees)
	}
	for idx, out := range coinbase.TxOut {
		op := wire.Outpoint{Hash: coinbaseHash, Index: uint32(idx)}
		bc.spendables.Insert(spendables.Coin{Outpoint: op, Output: *out, Height: ref.Height, IsCoinbase: true})
		delta.added = append(delta.added, op)
	}

	bc.deltas[ref.Hash] = delta
	return nil
}

// persistChanges durably applies one AcceptBlock call's full effect to the
// attached store: every outpoint any connected or disconnected block
// touched is re-resolved against the now-final Spendables trie (present
// means persist the Coin, absent means delete it), each connected block's
// delta journal and, per PersistenceStrictness, body are written, each
// disconnected block's are removed, and the head pointer plus Spendables
// root are updated. The delta-journal and body writes are separate store
// calls made first; the coin adds/removes, head pointer and Spendables root
// are then written together in the single leveldb batch
// chainstore.ApplyDelta performs.
func (bc *BlockChain) persistChanges(changes blocktree.Changes, deletedDeltas map[primitives.Hash256]blockDelta) error {
	touched := make(map[wire.Outpoint]bool)
	for _, d := range changes.Deleted {
		delta := deletedDeltas[d]
		for _, op := range delta.added {
			touched[op] = true
		}
		for _, coin := range delta.removed {
			touched[coin.Outpoint] = true
		}
		if err := bc.store.DeleteDelta(d); err != nil {
			return err
		}
		if bc.persistence != PersistFull {
			if err := bc.store.DeleteBlockBody(d); err != nil {
				return err
			}
		}
	}
	for _, h := range changes.Inserted {
		delta := bc.deltas[h]
		for _, op := range delta.added {
			touched[op] = true
		}
		for _, coin := range delta.removed {
			touched[coin.Outpoint] = true
		}
		if err := bc.store.PutDelta(h, delta.removed, delta.added); err != nil {
			return err
		}
		if bc.persistence != PersistNone {
			if err := bc.store.PutBlockBody(h, bc.blocks[h]); err != nil {
				return err
			}
		}
	}

	var coinsToAdd []spendables.Coin
	var outpointsToRemove []wire.Outpoint
	for op := range touched {
		if coin, ok := bc.spendables.Get(op); ok {
			coinsToAdd = append(coinsToAdd, coin)
		} else {
			outpointsToRemove = append(outpointsToRemove, op)
		}
	}

	head, _ := bc.tree.Best()
	return bc.store.ApplyDelta(head.Hash, head.Height, bc.spendables.RootHash(), coinsToAdd, outpointsToRemove)
}
