// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr implements the Endpoint pool (spec.md's C9): a persistent
// address book of reachable peers, each carrying a last-seen and last-try
// timestamp, with purge-on-age and a scoring rule for selecting the next
// outbound candidate.
package addrmgr

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"

	"github.com/coreledger-node/node/wire"
)

// purgeInterval and endpointExpiry mirror EndpointPool.cpp's purge(): don't
// bother scanning for stale entries more often than this, and drop anything
// not seen within this window.
const (
	purgeInterval  = 10 * time.Minute
	endpointExpiry = 14 * 24 * time.Hour

	// recentWindow is the horizon GetRecent uses by default, matching
	// EndpointPool::getRecent's "in the last 3 hours" call site.
	recentWindow = 3 * time.Hour

	// retryFloor is how long a candidate must sit untried again before
	// GetCandidate will offer it a second time (EndpointPool::getCandidate's
	// "now-60*60" cutoff).
	retryFloor = time.Hour
)

// knownEndpoint is one address book entry: the wire-level endpoint plus the
// memory-only lastTry bookkeeping the original Endpoint class keeps
// separate from its disk-persisted _time field.
type knownEndpoint struct {
	endpoint wire.Endpoint
	lastSeen time.Time
	lastTry  time.Time
}

// Manager is a concurrency-safe, disk-persisted Endpoint pool. Every
// mutation is written straight through to its leveldb database, the same
// durability model chainstore.Store uses for chain state — there is no
// separate Load/Save pass to forget to call.
type Manager struct {
	mu sync.Mutex

	ldb      *leveldb.DB
	localKey string

	endpoints map[string]*knownEndpoint

	lastPurge time.Time
	rng       *rand.Rand
}

// Open opens (creating if absent) the address-book database at path and
// loads its contents into memory. local, if non-nil, is excluded from every
// add and candidate lookup (a node never adds itself to its own pool).
func Open(path string, local net.IP) (*Manager, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{ErrorIfExist: false})
	if err != nil {
		return nil, fmt.Errorf("addrmgr: opening %s: %w", path, err)
	}
	m := &Manager{
		ldb:       ldb,
		endpoints: make(map[string]*knownEndpoint),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if local != nil {
		m.localKey = local.String()
	}

	iter := ldb.NewIterator(nil, nil)
	for iter.Next() {
		ke, err := decodeEndpoint(iter.Value())
		if err != nil {
			iter.Release()
			ldb.Close()
			return nil, err
		}
		m.endpoints[string(iter.Key())] = ke
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		ldb.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the underlying leveldb handle.
func (m *Manager) Close() error {
	return m.ldb.Close()
}

func (m *Manager) put(k string, ke *knownEndpoint) error {
	return m.ldb.Put([]byte(k), encodeEndpoint(ke), nil)
}

// encodeEndpoint packs a knownEndpoint as services(8) ‖ ipv6(16) ‖ port(2,
// BE) ‖ lastSeen-unix(8) ‖ lastTry-unix(8), reusing wire.Endpoint's own
// on-wire layout for its first three fields.
func encodeEndpoint(ke *knownEndpoint) []byte {
	buf := make([]byte, 8+16+2+8+8)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(ke.endpoint.Services))
	if ip4 := ke.endpoint.IP.To4(); ip4 != nil {
		buf[8+10], buf[8+11] = 0xff, 0xff
		copy(buf[8+12:8+16], ip4)
	} else {
		copy(buf[8:24], ke.endpoint.IP.To16())
	}
	binary.BigEndian.PutUint16(buf[24:26], ke.endpoint.Port)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(ke.lastSeen.Unix()))
	binary.LittleEndian.PutUint64(buf[34:42], uint64(ke.lastTry.Unix()))
	return buf
}

func decodeEndpoint(buf []byte) (*knownEndpoint, error) {
	if len(buf) != 8+16+2+8+8 {
		return nil, fmt.Errorf("addrmgr: truncated endpoint record")
	}
	services := binary.LittleEndian.Uint64(buf[0:8])
	ip := net.IP(append([]byte(nil), buf[8:24]...))
	port := binary.BigEndian.Uint16(buf[24:26])
	lastSeen := int64(binary.LittleEndian.Uint64(buf[26:34]))
	lastTry := int64(binary.LittleEndian.Uint64(buf[34:42]))

	ke := &knownEndpoint{
		endpoint: wire.Endpoint{Services: wire.ServiceFlag(services), IP: ip, Port: port},
		lastSeen: time.Unix(lastSeen, 0),
	}
	if lastTry != 0 {
		ke.lastTry = time.Unix(lastTry, 0)
	}
	return ke, nil
}

// AddAddress adds or refreshes an endpoint learned from a peer (e.g. via an
// addr message), penalizing its reported timestamp by penalty the way
// EndpointPool::addEndpoint discounts hearsay from anything but the peer
// that sent it directly. Unroutable endpoints and the node's own address
// are rejected (isNew is false, err is nil). isNew reports whether this was
// not already in the pool.
func (m *Manager) AddAddress(ep wire.Endpoint, penalty time.Duration) (isNew bool, err error) {
	if !isRoutable(ep.IP) {
		return false, nil
	}
	if m.localKey != "" && ep.IP.String() == m.localKey {
		return false, nil
	}

	seen := ep.Timestamp
	if seen.IsZero() {
		seen = time.Now()
	}
	seen = seen.Add(-penalty)

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(&ep)
	if existing, ok := m.endpoints[k]; ok {
		existing.endpoint.Services |= ep.Services
		if seen.After(existing.lastSeen) {
			existing.lastSeen = seen
		}
		return false, m.put(k, existing)
	}
	ke := &knownEndpoint{endpoint: ep, lastSeen: seen}
	m.endpoints[k] = ke
	return true, m.put(k, ke)
}

// Connected marks ep as currently reachable, refreshing its last-seen time
// the way EndpointPool::currentlyConnected does for an already-established
// session.
func (m *Manager) Connected(ep wire.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ke, ok := m.endpoints[key(&ep)]
	if !ok {
		return nil
	}
	ke.lastSeen = time.Now()
	return m.put(key(&ep), ke)
}

// SetLastTry records that a connection attempt to ep was just made,
// regardless of outcome (EndpointPool::setLastTry).
func (m *Manager) SetLastTry(ep wire.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ke, ok := m.endpoints[key(&ep)]
	if !ok {
		return nil
	}
	ke.lastTry = time.Now()
	return m.put(key(&ep), ke)
}

// NumAddresses returns the current size of the pool.
func (m *Manager) NumAddresses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.endpoints)
}

// GetRecent returns up to max endpoints seen within the last `within`
// window, for serving a getaddr request (spec.md §4.7: "serve getaddr with
// <=2500 recent endpoints"). within<=0 defaults to recentWindow.
func (m *Manager) GetRecent(within time.Duration, max int) []wire.Endpoint {
	if within <= 0 {
		within = recentWindow
	}
	if max > wire.MaxAddrPerMsg {
		max = wire.MaxAddrPerMsg
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	since := time.Now().Add(-within)
	candidates := make([]wire.Endpoint, 0, len(m.endpoints))
	for _, ke := range m.endpoints {
		if ke.lastSeen.After(since) {
			ep := ke.endpoint
			ep.Timestamp = ke.lastSeen
			candidates = append(candidates, ep)
		}
	}
	m.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// Purge drops endpoints not seen within endpointExpiry, at most once per
// purgeInterval (EndpointPool::purge).
func (m *Manager) Purge(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastPurge.IsZero() {
		m.lastPurge = now
		return nil
	}
	if now.Sub(m.lastPurge) < purgeInterval {
		return nil
	}
	m.lastPurge = now

	cutoff := now.Add(-endpointExpiry)
	batch := new(leveldb.Batch)
	for k, ke := range m.endpoints {
		if ke.lastSeen.Before(cutoff) {
			delete(m.endpoints, k)
			batch.Delete([]byte(k))
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return m.ldb.Write(batch, nil)
}

// GetCandidate picks an outbound connection candidate not in excludeGroups
// (the /16 or /32 network keys of currently-connected peers) and not tried
// within retryFloor, preferring the most recently seen endpoint
// (EndpointPool::getCandidate, simplified: this pool has no per-entry
// exponential backoff table, just the single retry floor spec.md names).
// The second return value is false if no endpoint qualifies.
func (m *Manager) GetCandidate(excludeGroups map[string]bool) (wire.Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var best *knownEndpoint
	for _, ke := range m.endpoints {
		if excludeGroups[groupKey(ke.endpoint.IP)] {
			continue
		}
		if !ke.lastTry.IsZero() && now.Sub(ke.lastTry) < retryFloor {
			continue
		}
		if best == nil || ke.lastSeen.After(best.lastSeen) {
			best = ke
		}
	}
	if best == nil {
		return wire.Endpoint{}, false
	}
	ep := best.endpoint
	ep.Timestamp = best.lastSeen
	return ep, true
}
