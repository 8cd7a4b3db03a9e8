// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package node is the orchestrator spec.md calls C12: it owns the
// listener and outbound dialer loops, the set of live peer sessions, and
// wires each new peer.Config up to the chain engine, mempool, address
// manager, and filter handler so a byte arriving on any connection ends
// up routed through the same pipeline as a locally originated object.
// The Go shape of original_source/include/coinChain/Node.h and
// PeerManager.h, generalised past daglabs-btcd's app/protocol/protocol.go
// single-adapter model to the multi-filter, bare-peer architecture this
// module builds on.
package node

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coreledger-node/node/addrmgr"
	"github.com/coreledger-node/node/blockchain"
	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/filters"
	"github.com/coreledger-node/node/mempool"
	"github.com/coreledger-node/node/notify"
	"github.com/coreledger-node/node/peer"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

const (
	// defaultMaxOutbound and defaultMaxInbound together honour spec.md
	// §4.7's "up to 8 outbound and 117 inbound" (125 total, the same
	// split original_source's Node.h hard-codes).
	defaultMaxOutbound = 8
	defaultMaxInbound  = 117

	defaultConnectionTimeout = 5 * time.Second
	outboundRetryInterval    = 10 * time.Second
	purgeInterval            = 10 * time.Minute
	rebroadcastInterval      = 24 * time.Hour

	// medianFilterSize is the width of the "network best height" window,
	// per spec.md §4.7 ("median starting-height across the last five
	// peers").
	medianFilterSize = 5

	userAgentName = "coreledger"
)

// Config supplies everything the node orchestrator needs: chain
// parameters, listen/dial policy, and the storage and policy layers
// each peer session is wired to.
type Config struct {
	ChainParams *chaincfg.Params

	ListenAddr        string // empty disables inbound listening
	MaxOutbound       int    // 0 -> defaultMaxOutbound
	MaxInbound        int    // 0 -> defaultMaxInbound
	ConnectionTimeout time.Duration
	ProxyAddr         string // empty dials directly, no SOCKS4 hop

	UserAgentVersion string
	DisableRelayTx   bool

	// Chain is the chain engine this node serves and relays for. The
	// caller builds it (blockchain.New or blockchain.Open) and attaches
	// a chainstore.Store to it before constructing Config; the node
	// orchestrator only ever reads from and appends to it.
	Chain       *blockchain.BlockChain
	Pool        *mempool.Pool
	AddrManager *addrmgr.Manager
	Filters     *filters.Handler
}

func (cfg *Config) setDefaults() {
	if cfg.MaxOutbound == 0 {
		cfg.MaxOutbound = defaultMaxOutbound
	}
	if cfg.MaxInbound == 0 {
		cfg.MaxInbound = defaultMaxInbound
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = defaultConnectionTimeout
	}
}

// Node is the running orchestrator: one listener, one outbound dialer
// loop, and the registry of live peer sessions.
type Node struct {
	cfg   *Config
	chain *blockchain.BlockChain

	localNonce uint64
	listener   net.Listener

	mu          sync.Mutex
	peers       map[uint64]*peer.Peer
	nextPeerID  uint64
	outboundNum int
	inboundNum  int
	heights     *medianFilter

	notifications *notify.Hub

	quit chan struct{}
	wg   sync.WaitGroup
}

// New builds a Node around cfg.Chain, which the caller must already
// have constructed (and, for persistence, attached a chainstore.Store
// to) before calling New. A notify.Hub is created and registered on
// cfg.Chain's block hook immediately, so every block this node connects
// or disconnects from then on reaches whatever Subscribers Subscribe
// later adds, per spec.md §4.7's notification surface.
func New(cfg *Config) (*Node, error) {
	cfg.setDefaults()

	nonce, err := randomNonce()
	if err != nil {
		return nil, fmt.Errorf("generating node nonce: %w", err)
	}

	hub := notify.NewHub()
	cfg.Chain.OnBlock(hub.BlockHook)

	return &Node{
		cfg:           cfg,
		chain:         cfg.Chain,
		localNonce:    nonce,
		peers:         make(map[uint64]*peer.Peer),
		heights:       newMedianFilter(medianFilterSize, cfg.Chain.BestHeight()),
		notifications: hub,
		quit:          make(chan struct{}),
	}, nil
}

// Subscribe registers sub to receive every future connected/disconnected
// block event this node's chain produces (e.g. a websocket client
// freshly upgraded by an RPC layer built on top of this module).
func (n *Node) Subscribe(sub notify.Subscriber) {
	n.notifications.Add(sub)
}

// Unsubscribe stops sub from receiving further block events.
func (n *Node) Unsubscribe(sub notify.Subscriber) {
	n.notifications.Remove(sub)
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Start opens the listener (if configured) and begins the accept,
// outbound-dial, and maintenance loops.
func (n *Node) Start() error {
	if n.cfg.ListenAddr != "" {
		l, err := net.Listen("tcp", n.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", n.cfg.ListenAddr, err)
		}
		n.listener = l
		n.wg.Add(1)
		spawn(n.acceptLoop)
	}

	n.wg.Add(2)
	spawn(n.outboundLoop)
	spawn(n.maintenanceLoop)
	return nil
}

// Stop closes the listener, disconnects every peer, and waits for all
// of the node's own goroutines to exit.
func (n *Node) Stop() error {
	close(n.quit)
	if n.listener != nil {
		n.listener.Close()
	}

	n.mu.Lock()
	for _, p := range n.peers {
		p.Disconnect()
	}
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
				log.Warnf("accept error: %s", err)
				continue
			}
		}

		n.mu.Lock()
		full := n.inboundNum >= n.cfg.MaxInbound
		if !full {
			n.inboundNum++
		}
		n.mu.Unlock()
		if full {
			log.Debugf("rejecting inbound %s: at capacity (%d)", conn.RemoteAddr(), n.cfg.MaxInbound)
			conn.Close()
			continue
		}

		n.wg.Add(1)
		go n.runPeer(conn, true, wire.Endpoint{})
	}
}

// outboundLoop periodically tops up the outbound peer count from the
// address manager, excluding /16 (or /32) groups already represented
// among current peers, per spec.md §4.7.
func (n *Node) outboundLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(outboundRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.quit:
			return
		case <-ticker.C:
			n.fillOutbound()
		}
	}
}

func (n *Node) fillOutbound() {
	n.mu.Lock()
	deficit := n.cfg.MaxOutbound - n.outboundNum
	exclude := make(map[string]bool, len(n.peers))
	for _, p := range n.peers {
		if host, _, err := net.SplitHostPort(p.Addr()); err == nil {
			if ip := net.ParseIP(host); ip != nil {
				exclude[groupKey(ip)] = true
			}
		}
	}
	n.mu.Unlock()

	for i := 0; i < deficit; i++ {
		ep, ok := n.cfg.AddrManager.GetCandidate(exclude)
		if !ok {
			return
		}
		exclude[groupKey(ep.IP)] = true
		if err := n.cfg.AddrManager.SetLastTry(ep); err != nil {
			log.Debugf("recording dial attempt for %s: %s", ep.IP, err)
		}

		n.mu.Lock()
		n.outboundNum++
		n.mu.Unlock()

		n.wg.Add(1)
		go n.dialAndRun(ep)
	}
}

// groupKey mirrors addrmgr's unexported helper of the same purpose
// (keeping a node from filling its peer set with one operator's address
// block); addrmgr doesn't export it, so the node orchestrator, being an
// external package, keeps its own copy.
func groupKey(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		return net.IPv4(ip4[0], ip4[1], 0, 0).String()
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return ip.String()
	}
	group := make(net.IP, 16)
	copy(group[:4], ip16[:4])
	return group.String()
}

func (n *Node) dialAndRun(ep wire.Endpoint) {
	defer n.wg.Done()
	addr := net.JoinHostPort(ep.IP.String(), fmt.Sprintf("%d", ep.Port))

	var conn net.Conn
	var err error
	if n.cfg.ProxyAddr != "" {
		conn, err = dialSOCKS4(n.cfg.ProxyAddr, addr, n.cfg.ConnectionTimeout)
	} else {
		conn, err = net.DialTimeout("tcp", addr, n.cfg.ConnectionTimeout)
	}
	if err != nil {
		log.Debugf("dialing %s: %s", addr, err)
		n.mu.Lock()
		n.outboundNum--
		n.mu.Unlock()
		return
	}

	n.runPeer(conn, false, ep)
}

// runPeer wires a freshly connected socket to a *peer.Peer bound to this
// node's chain/mempool/addrmgr/filters, runs the handshake and session
// to completion, then unregisters it.
func (n *Node) runPeer(conn net.Conn, inbound bool, ep wire.Endpoint) {
	defer n.wg.Done()

	pcfg := &peer.Config{
		ChainMagic:       n.cfg.ChainParams.Net,
		ProtocolVersion:  wire.ProtocolVersion,
		Services:         wire.SFNodeNetwork,
		UserAgentName:    userAgentName,
		UserAgentVersion: n.cfg.UserAgentVersion,
		DisableRelayTx:   n.cfg.DisableRelayTx,

		SelectedTipHash: n.chain.BestHash,
		StartHeight:     n.chain.BestHeight,

		FetchTx: func(hash primitives.Hash256) (*wire.MsgTx, bool) {
			claim, ok := n.cfg.Pool.Get(hash)
			if !ok {
				return nil, false
			}
			return claim.Tx, true
		},
		FetchBlock:        n.chain.GetBlock,
		LocateBlockHashes: n.chain.LocateBlockHashes,
		LocateHeaders:     n.chain.LocateHeaders,
		RecentEndpoints: func(max int) []wire.Endpoint {
			return n.cfg.AddrManager.GetRecent(rebroadcastInterval, max)
		},

		OnTx: func(p *peer.Peer, tx *wire.MsgTx) {
			if err := n.cfg.Filters.Handle(p, &wire.MsgTxWire{MsgTx: *tx}); err != nil {
				log.Debugf("peer %s: tx filter error: %s", p.Addr(), err)
			}
		},
		OnBlock: func(p *peer.Peer, block *wire.MsgBlock) {
			if err := n.cfg.Filters.Handle(p, &wire.MsgBlockWire{MsgBlock: *block}); err != nil {
				log.Debugf("peer %s: block filter error: %s", p.Addr(), err)
			}
		},
		OnAddr: func(p *peer.Peer, addrs []*wire.Endpoint) {
			for _, ep := range addrs {
				if _, err := n.cfg.AddrManager.AddAddress(*ep, 0); err != nil {
					log.Debugf("peer %s: recording address %s: %s", p.Addr(), ep.IP, err)
				}
			}
		},
		OnReady: func(p *peer.Peer) {
			n.registerReady(p, ep, inbound)
		},
	}

	p := peer.New(pcfg, conn, inbound, n.localNonce)
	n.mu.Lock()
	id := n.nextPeerID
	n.nextPeerID++
	n.peers[id] = p
	n.mu.Unlock()

	if err := p.Start(); err != nil {
		log.Warnf("starting peer %s: %s", p.Addr(), err)
	}
	p.WaitForDisconnect()

	n.mu.Lock()
	delete(n.peers, id)
	if inbound {
		n.inboundNum--
	} else {
		n.outboundNum--
	}
	n.mu.Unlock()
}

func (n *Node) registerReady(p *peer.Peer, ep wire.Endpoint, inbound bool) {
	log.Infof("peer %s ready (inbound=%v, agent=%q, height=%d)", p.Addr(), inbound, p.UserAgent(), p.StartHeight())
	n.mu.Lock()
	n.heights.input(p.StartHeight())
	n.mu.Unlock()

	if !inbound {
		if err := n.cfg.AddrManager.Connected(ep); err != nil {
			log.Debugf("recording connected endpoint %s: %s", p.Addr(), err)
		}
	}
}

// Broadcast implements filters.Broadcaster: relay msg to every ready
// peer other than except.
func (n *Node) Broadcast(msg wire.Message, except filters.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		if !p.IsReady() {
			continue
		}
		if except != nil && p.Addr() == except.Addr() {
			continue
		}
		p.QueueMessage(msg)
	}
}

// localSession is the filters.Session used for locally originated
// objects posted via PostTx/PostBlock, which have no origin peer to
// reject or penalise.
type localSession struct{}

func (localSession) Addr() string              { return "local" }
func (localSession) QueueMessage(wire.Message) {}
func (localSession) SendReject(cmd string, code uint8, reason string) {
	log.Warnf("local %s rejected: %s", cmd, reason)
}
func (localSession) AddMisbehavior(delta int, reason string) bool { return false }

// PostTx routes a locally originated transaction through the same
// filter pipeline relayed ones use, per spec.md §4.7's post(tx).
func (n *Node) PostTx(tx *wire.MsgTx) error {
	return n.cfg.Filters.Handle(localSession{}, &wire.MsgTxWire{MsgTx: *tx})
}

// PostBlock routes a locally originated (e.g. mined) block through the
// same filter pipeline relayed ones use, per spec.md §4.7's post(block).
func (n *Node) PostBlock(block *wire.MsgBlock) error {
	return n.cfg.Filters.Handle(localSession{}, &wire.MsgBlockWire{MsgBlock: *block})
}

// NumOutbound and NumInbound report the current peer census
// (PeerManager::getNumOutbound/getNumInbound).
func (n *Node) NumOutbound() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.outboundNum
}

func (n *Node) NumInbound() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inboundNum
}

// BestHeight reports the larger of this node's own best height and the
// median starting-height across the last few peers, the IBD heuristic
// spec.md §4.7 asks for (PeerManager::getPeerMedianNumBlocks/getBestHeight).
func (n *Node) BestHeight() int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	own := n.chain.BestHeight()
	peerBest := n.heights.median()
	if peerBest > own {
		return peerBest
	}
	return own
}

// maintenanceLoop periodically purges stale endpoints and rebroadcasts
// this node's own address, per spec.md §4.7.
func (n *Node) maintenanceLoop() {
	defer n.wg.Done()
	purgeTicker := time.NewTicker(purgeInterval)
	rebroadcastTicker := time.NewTicker(rebroadcastInterval)
	defer purgeTicker.Stop()
	defer rebroadcastTicker.Stop()

	for {
		select {
		case <-n.quit:
			return
		case <-purgeTicker.C:
			if err := n.cfg.AddrManager.Purge(time.Now()); err != nil {
				log.Warnf("purging endpoint pool: %s", err)
			}
		case <-rebroadcastTicker.C:
			n.rebroadcastOwnAddress()
		}
	}
}

func (n *Node) rebroadcastOwnAddress() {
	if n.cfg.ListenAddr == "" {
		return
	}
	_, portStr, err := net.SplitHostPort(n.cfg.ListenAddr)
	if err != nil {
		return
	}
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)

	ep := wire.Endpoint{Services: wire.SFNodeNetwork, Port: port, Timestamp: time.Now()}
	n.Broadcast(&wire.MsgAddr{AddrList: []*wire.Endpoint{&ep}}, nil)
}
