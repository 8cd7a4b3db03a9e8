// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements the Peer session state machine (spec.md §4.6,
// C10): one TCP connection's wire framing, version handshake, inventory
// relay, ask-for throttling, keep-alive and per-peer bloom filtering.
// Everything this package needs from the rest of the node (chain data,
// mempool, the address book) arrives through Config callbacks, the way
// original_source's Peer took a Chain reference and a MessageHandler
// rather than reaching into global state.
package peer

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreledger-node/node/bloomfilter"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// Connection-activity timeouts, per original_source/include/coinChain/Peer.h.
const (
	initialTimeout  = 60 * time.Second
	heartbeatPeriod = 30 * time.Minute
	suicideTimeout  = 90 * time.Minute
)

// askForExpiry is how long a requested-but-not-yet-received inventory
// entry blocks a re-request, per spec.md §4.6 ("2-minute dedup across all
// peers").
const askForExpiry = 2 * time.Minute

// maxGetBlocksResults and maxGetHeadersResults bound a single getblocks /
// getheaders reply, per spec.md §4.6 ("up to 500 entries").
const (
	maxGetBlocksResults  = 500
	maxGetHeadersResults = 2000
)

// State is the Peer session's position in the handshake state machine
// (spec.md §4.6).
type State int32

// Session states. A connection is born Connected and ends Closed; every
// other transition happens in pushVersionMsg, handleVersionMsg and
// handleVerAckMsg.
const (
	StateConnected State = iota
	StateVersionSent
	StateVersionReceived
	StateVerAckReceived
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateVersionSent:
		return "version-sent"
	case StateVersionReceived:
		return "version-received"
	case StateVerAckReceived:
		return "verack-received"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AskForTracker is the cross-peer "already requested" dedup table spec.md
// §4.6 asks for: once any peer has been asked for an inventory item, no
// other peer is asked again until askForExpiry has passed.
type AskForTracker struct {
	mu       sync.Mutex
	requests map[primitives.Hash256]time.Time
}

// NewAskForTracker builds an empty tracker.
func NewAskForTracker() *AskForTracker {
	return &AskForTracker{requests: make(map[primitives.Hash256]time.Time)}
}

// ShouldRequest reports whether hash should be asked for now, recording
// the attempt if so. A hash already requested within askForExpiry is
// refused a second time.
func (t *AskForTracker) ShouldRequest(hash primitives.Hash256) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.requests[hash]; ok && now.Sub(last) < askForExpiry {
		return false
	}
	t.requests[hash] = now
	return true
}

// Forget drops a hash from the tracker once it has actually arrived, so a
// later re-announcement is not needlessly throttled.
func (t *AskForTracker) Forget(hash primitives.Hash256) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requests, hash)
}

// Config supplies everything a Peer needs from the rest of the node:
// identity to advertise, and the callbacks that let it serve requests
// without importing the chain store, mempool or address manager directly.
type Config struct {
	ChainMagic       uint32
	ProtocolVersion  uint32
	Services         wire.ServiceFlag
	UserAgentName    string
	UserAgentVersion string
	DisableRelayTx   bool

	// SelectedTipHash and StartHeight report this node's own chain tip,
	// advertised in the outgoing version message.
	SelectedTipHash func() primitives.Hash256
	StartHeight     func() int32

	// AskFor is the shared dedup tracker across all of this node's peers.
	// If nil, a private one is created (useful for tests of a lone peer).
	AskFor *AskForTracker

	FetchTx          func(primitives.Hash256) (*wire.MsgTx, bool)
	FetchBlock       func(primitives.Hash256) (*wire.MsgBlock, bool)
	LocateBlockHashes func(locator wire.BlockLocator, stop primitives.Hash256, limit int) []primitives.Hash256
	LocateHeaders     func(locator wire.BlockLocator, stop primitives.Hash256, limit int) []*wire.BlockHeader
	RecentEndpoints   func(max int) []wire.Endpoint

	OnTx      func(p *Peer, tx *wire.MsgTx)
	OnBlock   func(p *Peer, block *wire.MsgBlock)
	OnAddr    func(p *Peer, addrs []*wire.Endpoint)
	OnVersion func(p *Peer, msg *wire.MsgVersion)
	OnReady   func(p *Peer)
}

func (cfg *Config) userAgent() string {
	return fmt.Sprintf("/%s:%s/", cfg.UserAgentName, cfg.UserAgentVersion)
}

// Peer manages one TCP connection's protocol session.
type Peer struct {
	cfg     *Config
	conn    net.Conn
	inbound bool

	handshake int32 // bitmask of handshakeSent*/handshakeRecv*, accessed atomically
	closed    int32 // 1 once Disconnect has run, accessed atomically

	localNonce uint64

	// Fields below are only safe to read once state has reached
	// StateReady; they are written exactly once from the connection's
	// own read goroutine during the handshake.
	userAgent             string
	services              wire.ServiceFlag
	protocolVersion       uint32
	advertisedProtocolVer uint32
	disableRelayTx        bool
	startHeight           int32

	selectedTipMu   sync.RWMutex
	selectedTipHash primitives.Hash256

	knownMu     sync.Mutex
	knownInv    map[primitives.Hash256]time.Time
	knownAddr   map[string]time.Time

	filterMu sync.Mutex
	filter   *bloomfilter.Filter

	outputQueue chan wire.Message
	quit        chan struct{}
	quitOnce    sync.Once
	wg          sync.WaitGroup

	lastRecv int64 // unix seconds, accessed atomically
	lastSend int64 // unix seconds, accessed atomically

	timeConnected time.Time

	privateAskFor *AskForTracker

	misbehaviorScore int32 // accessed atomically
}

// maxMisbehaviorScore is the cumulative penalty past which a peer is
// disconnected, per spec.md §7 ("connection carrying it is closed after a
// misbehaviour score bump"). Mirrors original_source's informal ban-score
// concept implicit in its MalformedData handling.
const maxMisbehaviorScore = 100

// AddMisbehavior bumps this peer's misbehaviour score by delta and
// disconnects it once the cumulative score exceeds maxMisbehaviorScore. It
// reports whether the connection was closed as a result.
func (p *Peer) AddMisbehavior(delta int, reason string) (disconnected bool) {
	score := atomic.AddInt32(&p.misbehaviorScore, int32(delta))
	log.Debugf("peer %s: misbehavior +%d (%s), score now %d", p.Addr(), delta, reason, score)
	if score <= maxMisbehaviorScore {
		return false
	}
	log.Warnf("peer %s: misbehavior score %d exceeds threshold, disconnecting", p.Addr(), score)
	p.Disconnect()
	return true
}

// MisbehaviorScore returns this peer's current cumulative misbehaviour score.
func (p *Peer) MisbehaviorScore() int {
	return int(atomic.LoadInt32(&p.misbehaviorScore))
}

// SendReject queues a reject message describing why cmd was refused, per
// spec.md §7.
func (p *Peer) SendReject(cmd string, code uint8, reason string) {
	p.QueueMessage(&wire.MsgReject{
		RejectedCommand: cmd,
		Code:            code,
		Reason:          reason,
	})
}

// New wraps an already-established connection (inbound accept or
// outbound dial both happen in the node orchestrator; this package only
// speaks the protocol once a socket exists).
func New(cfg *Config, conn net.Conn, inbound bool, localNonce uint64) *Peer {
	p := &Peer{
		cfg:           cfg,
		conn:          conn,
		inbound:       inbound,
		localNonce:    localNonce,
		knownInv:      make(map[primitives.Hash256]time.Time),
		knownAddr:     make(map[string]time.Time),
		outputQueue:   make(chan wire.Message, 50),
		quit:          make(chan struct{}),
		timeConnected: time.Now(),
	}
	if cfg.AskFor == nil {
		p.privateAskFor = NewAskForTracker()
	}
	return p
}

// Addr returns the remote address of the underlying connection.
func (p *Peer) Addr() string {
	if p.conn == nil {
		return ""
	}
	return p.conn.RemoteAddr().String()
}

// Inbound reports whether this session was accepted rather than dialed.
func (p *Peer) Inbound() bool { return p.inbound }

// Handshake progress bits. versionSent/versionRecv and verAckSent/verAckRecv
// each advance independently, since both sides of a connection drive their
// own version/verack pair concurrently; State() collapses the bitmask to
// the single linear progression spec.md §4.6 describes.
const (
	handshakeVersionSent int32 = 1 << iota
	handshakeVersionRecv
	handshakeVerAckSent
	handshakeVerAckRecv
)

const handshakeComplete = handshakeVersionSent | handshakeVersionRecv | handshakeVerAckSent | handshakeVerAckRecv

// State returns the peer's current handshake state.
func (p *Peer) State() State {
	if atomic.LoadInt32(&p.closed) != 0 {
		return StateClosed
	}
	bits := atomic.LoadInt32(&p.handshake)
	switch {
	case bits&handshakeComplete == handshakeComplete:
		return StateReady
	case bits&handshakeVerAckRecv != 0:
		return StateVerAckReceived
	case bits&handshakeVersionRecv != 0:
		return StateVersionReceived
	case bits&handshakeVersionSent != 0:
		return StateVersionSent
	default:
		return StateConnected
	}
}

func (p *Peer) setHandshakeBit(bit int32) (complete bool) {
	for {
		old := atomic.LoadInt32(&p.handshake)
		next := old | bit
		if atomic.CompareAndSwapInt32(&p.handshake, old, next) {
			return next&handshakeComplete == handshakeComplete && old&handshakeComplete != handshakeComplete
		}
	}
}

// IsReady reports whether the handshake has completed.
func (p *Peer) IsReady() bool {
	return p.State() == StateReady
}

// UserAgent returns the remote peer's advertised sub-version string. Only
// meaningful once IsReady is true.
func (p *Peer) UserAgent() string { return p.userAgent }

// Services returns the remote peer's advertised service bits.
func (p *Peer) Services() wire.ServiceFlag { return p.services }

// ProtocolVersion returns the negotiated (lower of the two sides')
// protocol version.
func (p *Peer) ProtocolVersion() uint32 { return p.protocolVersion }

// StartHeight returns the remote peer's reported chain height at
// handshake time.
func (p *Peer) StartHeight() int32 { return p.startHeight }

// SelectedTipHash returns the most recently announced tip for this peer.
func (p *Peer) SelectedTipHash() primitives.Hash256 {
	p.selectedTipMu.RLock()
	defer p.selectedTipMu.RUnlock()
	return p.selectedTipHash
}

func (p *Peer) setSelectedTipHash(h primitives.Hash256) {
	p.selectedTipMu.Lock()
	defer p.selectedTipMu.Unlock()
	p.selectedTipHash = h
}

// LastRecv and LastSend report the most recent read/write activity time,
// used by the node orchestrator's own idle bookkeeping.
func (p *Peer) LastRecv() time.Time { return time.Unix(atomic.LoadInt64(&p.lastRecv), 0) }
func (p *Peer) LastSend() time.Time { return time.Unix(atomic.LoadInt64(&p.lastSend), 0) }

// Start begins the handshake and launches the read/write/keep-alive
// goroutines. It returns once the initial version message has been
// queued; the handshake itself completes asynchronously and OnReady (if
// set) fires from the read goroutine when it does.
func (p *Peer) Start() error {
	p.wg.Add(3)
	spawn(p.outHandler)
	spawn(p.pingHandler)
	spawn(p.inHandler)
	return p.pushVersionMsg()
}

// Disconnect closes the connection and stops all of this peer's
// goroutines. Safe to call more than once.
func (p *Peer) Disconnect() {
	p.quitOnce.Do(func() {
		atomic.StoreInt32(&p.closed, 1)
		close(p.quit)
		if p.conn != nil {
			p.conn.Close()
		}
	})
}

// WaitForDisconnect blocks until the peer's goroutines have exited.
func (p *Peer) WaitForDisconnect() {
	p.wg.Wait()
}

// QueueMessage schedules msg for sending; it never blocks the caller for
// longer than it takes to hand the message to the output queue.
func (p *Peer) QueueMessage(msg wire.Message) {
	select {
	case p.outputQueue <- msg:
	case <-p.quit:
	}
}

func (p *Peer) pushVersionMsg() error {
	var height int32
	if p.cfg.StartHeight != nil {
		height = p.cfg.StartHeight()
	}
	msg := &wire.MsgVersion{
		ProtocolVersion: p.cfg.ProtocolVersion,
		Services:        p.cfg.Services,
		Timestamp:       time.Now(),
		Nonce:           p.localNonce,
		UserAgent:       p.cfg.userAgent(),
		StartHeight:     height,
		DisableRelayTx:  p.cfg.DisableRelayTx,
	}
	complete := p.setHandshakeBit(handshakeVersionSent)
	p.QueueMessage(msg)
	if complete {
		p.ready()
	}
	return nil
}

// inHandler is the single logical worker that processes every message
// from this peer in arrival order (spec.md §4.6's ordering rule).
func (p *Peer) inHandler() {
	defer p.wg.Done()
	defer p.Disconnect()

	idleTimer := time.AfterFunc(initialTimeout, func() {
		log.Debugf("peer %s: no activity, disconnecting", p.Addr())
		p.Disconnect()
	})
	defer idleTimer.Stop()

	for {
		msg, _, err := wire.ReadMessage(p.conn, p.cfg.ChainMagic)
		if err != nil {
			if err != io.EOF {
				log.Debugf("peer %s: read error: %s", p.Addr(), err)
			}
			return
		}
		idleTimer.Reset(suicideTimeout)
		atomic.StoreInt64(&p.lastRecv, time.Now().Unix())

		log.Tracef("peer %s: received %s", p.Addr(), newLogClosure(func() string {
			return messageSummary(msg)
		}))

		if err := p.handleMessage(msg); err != nil {
			log.Debugf("peer %s: %s", p.Addr(), err)
			return
		}
		if p.State() == StateClosed {
			return
		}
	}
}

// outHandler serialises every queued message to the connection, so all
// outbound writes are buffered through one channel (spec.md §4.6: "all
// outbound serialisation is buffered; flush coalesces writes").
func (p *Peer) outHandler() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.outputQueue:
			if err := wire.WriteMessage(p.conn, msg, p.cfg.ChainMagic); err != nil {
				log.Debugf("peer %s: write error: %s", p.Addr(), err)
				p.Disconnect()
				return
			}
			atomic.StoreInt64(&p.lastSend, time.Now().Unix())
		case <-p.quit:
			return
		}
	}
}

// pingHandler sends a keep-alive ping after heartbeatPeriod of no
// outbound activity, per spec.md §4.6.
func (p *Peer) pingHandler() {
	defer p.wg.Done()
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if time.Since(p.LastSend()) < heartbeatPeriod {
				continue
			}
			nonce := uint64(0)
			if p.protocolVersion >= 60000 {
				nonce = p.localNonce ^ uint64(time.Now().UnixNano())
			}
			p.QueueMessage(&wire.MsgPing{Nonce: nonce})
		case <-p.quit:
			return
		}
	}
}

func (p *Peer) knownInventory(hash primitives.Hash256) bool {
	p.knownMu.Lock()
	defer p.knownMu.Unlock()
	_, ok := p.knownInv[hash]
	return ok
}

func (p *Peer) rememberInventory(hash primitives.Hash256) {
	p.knownMu.Lock()
	defer p.knownMu.Unlock()
	p.knownInv[hash] = time.Now()
}

func (p *Peer) askFor() *AskForTracker {
	if p.cfg.AskFor != nil {
		return p.cfg.AskFor
	}
	return p.privateAskFor
}

func addrKey(ep *wire.Endpoint) string {
	return net.JoinHostPort(ep.IP.String(), strconv.Itoa(int(ep.Port)))
}
