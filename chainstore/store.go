// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainstore persists the BlockChain engine's authoritative state
// (spec.md §4.5 step 8: "commit... persist head pointer, block body per
// persistence strictness, Spendables root, optional delta journal") to a
// goleveldb database.
package chainstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/util"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/wire"
)

// hashFromBytes copies a raw 32-byte slice into a Hash256.
func hashFromBytes(b []byte) (primitives.Hash256, error) {
	var h primitives.Hash256
	if len(b) != primitives.HashSize {
		return h, fmt.Errorf("chainstore: invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Key prefixes partition the single leveldb keyspace into logical buckets.
var (
	prefixHead       = []byte{0x01} // -> best block hash
	prefixHeight     = []byte{0x02} // -> best block height (4 bytes, LE)
	prefixSpendables = []byte{0x03} // -> Spendables root hash
	prefixBody       = []byte{0x04} // block hash -> encoded MsgBlock
	prefixCoin       = []byte{0x05} // coin key -> encoded Coin
	prefixDelta      = []byte{0x06} // block hash -> encoded block delta
)

func bucketKey(prefix, suffix []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}

// Store is a leveldb-backed persistence layer for one chain instance.
type Store struct {
	ldb *leveldb.DB
}

// Open opens (creating if absent) the leveldb database at path.
func Open(path string) (*Store, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{ErrorIfExist: false})
	if err != nil {
		return nil, fmt.Errorf("chainstore: opening %s: %w", path, err)
	}
	return &Store{ldb: ldb}, nil
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.ldb.Close()
}

// PutHead records the current trunk tip, the only piece of state a node
// needs to locate everything else on restart.
func (s *Store) PutHead(hash primitives.Hash256, height int32) error {
	batch := new(leveldb.Batch)
	batch.Put(prefixHead, hash[:])
	var h [4]byte
	binary.LittleEndian.PutUint32(h[:], uint32(height))
	batch.Put(prefixHeight, h[:])
	return s.ldb.Write(batch, nil)
}

// Head returns the persisted trunk tip, or ok=false if the store is empty.
func (s *Store) Head() (hash primitives.Hash256, height int32, ok bool, err error) {
	hashBytes, err := s.ldb.Get(prefixHead, nil)
	if err == leveldb.ErrNotFound {
		return hash, 0, false, nil
	}
	if err != nil {
		return hash, 0, false, fmt.Errorf("chainstore: reading head: %w", err)
	}
	hash, err = hashFromBytes(hashBytes)
	if err != nil {
		return hash, 0, false, err
	}
	heightBytes, err := s.ldb.Get(prefixHeight, nil)
	if err != nil {
		return hash, 0, false, fmt.Errorf("chainstore: reading head height: %w", err)
	}
	return hash, int32(binary.LittleEndian.Uint32(heightBytes)), true, nil
}

// PutSpendablesRoot records Spendables' current authentication root.
func (s *Store) PutSpendablesRoot(root primitives.Hash256) error {
	return s.ldb.Put(prefixSpendables, root[:], nil)
}

// SpendablesRoot returns the persisted Spendables root, or the zero hash if
// none has been recorded yet.
func (s *Store) SpendablesRoot() (primitives.Hash256, error) {
	b, err := s.ldb.Get(prefixSpendables, nil)
	if err == leveldb.ErrNotFound {
		return primitives.Hash256{}, nil
	}
	if err != nil {
		return primitives.Hash256{}, fmt.Errorf("chainstore: reading spendables root: %w", err)
	}
	return hashFromBytes(b)
}

// PutBlockBody persists a block's full body, keyed by its hash. BlockChain
// calls this for each connected block unless its PersistenceStrictness is
// PersistNone; chainstore itself has no opinion on the policy, only on
// storing what it is given.
func (s *Store) PutBlockBody(hash primitives.Hash256, block *wire.MsgBlock) error {
	var buf bytes.Buffer
	if err := block.Encode(&buf); err != nil {
		return fmt.Errorf("chainstore: encoding block %s: %w", hash, err)
	}
	return s.ldb.Put(bucketKey(prefixBody, hash[:]), buf.Bytes(), nil)
}

// GetBlockBody returns a previously-stored block body, or ok=false if this
// store never retained it (discarded under a thinner PersistenceStrictness,
// or never seen).
func (s *Store) GetBlockBody(hash primitives.Hash256) (*wire.MsgBlock, bool, error) {
	buf, err := s.ldb.Get(bucketKey(prefixBody, hash[:]), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("chainstore: reading block %s: %w", hash, err)
	}
	block := &wire.MsgBlock{}
	if err := block.Decode(bytes.NewReader(buf)); err != nil {
		return nil, false, fmt.Errorf("chainstore: decoding block %s: %w", hash, err)
	}
	return block, true, nil
}

// DeleteBlockBody removes a previously-stored block body. BlockChain calls
// this when it disconnects a block, unless its PersistenceStrictness is
// PersistFull.
func (s *Store) DeleteBlockBody(hash primitives.Hash256) error {
	return s.ldb.Delete(bucketKey(prefixBody, hash[:]), nil)
}

// coinKey packs an Outpoint into a fixed-size leveldb key under the coin
// bucket: the same 36-byte hash-then-index layout as spendables' trie key,
// but with the index written big-endian.
func coinKey(op wire.Outpoint) []byte {
	var suffix [36]byte
	copy(suffix[:32], op.Hash[:])
	binary.BigEndian.PutUint32(suffix[32:], op.Index)
	return bucketKey(prefixCoin, suffix[:])
}

// PutCoin persists one unspent output.
func (s *Store) PutCoin(coin spendables.Coin) error {
	buf := encodeCoin(coin)
	return s.ldb.Put(coinKey(coin.Outpoint), buf, nil)
}

// DeleteCoin removes a spent output.
func (s *Store) DeleteCoin(op wire.Outpoint) error {
	return s.ldb.Delete(coinKey(op), nil)
}

// GetCoin returns a persisted Coin, if present.
func (s *Store) GetCoin(op wire.Outpoint) (spendables.Coin, bool, error) {
	buf, err := s.ldb.Get(coinKey(op), nil)
	if err == leveldb.ErrNotFound {
		return spendables.Coin{}, false, nil
	}
	if err != nil {
		return spendables.Coin{}, false, fmt.Errorf("chainstore: reading coin %v: %w", op, err)
	}
	coin, err := decodeCoin(op, buf)
	return coin, err == nil, err
}

// CoinCount returns the number of coins currently persisted, for
// diagnostics; it walks the whole coin bucket and is not on any hot path.
func (s *Store) CoinCount() int {
	iter := s.ldb.NewIterator(util.BytesPrefix(prefixCoin), nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n
}

// ApplyDelta atomically applies one connected block's effect on the coin
// set — spent coins removed, new coins added — alongside the new head
// pointer and Spendables root, so a crash never observes a block as
// connected without its Spendables changes or vice versa (spec.md §4.5
// step 8's single commit point).
func (s *Store) ApplyDelta(head primitives.Hash256, height int32, spendablesRoot primitives.Hash256, added []spendables.Coin, removed []wire.Outpoint) error {
	batch := new(leveldb.Batch)
	batch.Put(prefixHead, head[:])
	var h [4]byte
	binary.LittleEndian.PutUint32(h[:], uint32(height))
	batch.Put(prefixHeight, h[:])
	batch.Put(prefixSpendables, spendablesRoot[:])
	for _, coin := range added {
		batch.Put(coinKey(coin.Outpoint), encodeCoin(coin))
	}
	for _, op := range removed {
		batch.Delete(coinKey(op))
	}
	return s.ldb.Write(batch, nil)
}

// PutDelta records, alongside the given block hash, exactly which coins it
// removed and which it added — the "delta journal" spec.md §4.5 step 8
// calls optional. A node carrying one can replay a disconnect without
// needing the block body or a tx-history lookup at all.
func (s *Store) PutDelta(hash primitives.Hash256, removed []spendables.Coin, added []wire.Outpoint) error {
	return s.ldb.Put(bucketKey(prefixDelta, hash[:]), encodeDelta(removed, added), nil)
}

// GetDelta returns a previously-recorded delta journal entry, if present.
func (s *Store) GetDelta(hash primitives.Hash256) (removed []spendables.Coin, added []wire.Outpoint, ok bool, err error) {
	buf, err := s.ldb.Get(bucketKey(prefixDelta, hash[:]), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("chainstore: reading delta %s: %w", hash, err)
	}
	removed, added, err = decodeDelta(buf)
	return removed, added, err == nil, err
}

// DeleteDelta discards a block's journal entry. BlockChain calls this when
// it disconnects the block.
func (s *Store) DeleteDelta(hash primitives.Hash256) error {
	return s.ldb.Delete(bucketKey(prefixDelta, hash[:]), nil)
}
