// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"
	"time"

	"github.com/coreledger-node/node/bloomfilter"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/txscript"
	"github.com/coreledger-node/node/wire"
)

// handleMessage dispatches one decoded message to the appropriate
// handler. Pre-handshake, only version/verack are accepted; anything
// else before the peer reaches StateReady is returned as an error, which
// makes inHandler close the connection, mirroring
// original_source Peer::operator>>'s version-gated parsing.
func (p *Peer) handleMessage(msg wire.Message) error {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return p.handleVersionMsg(msg)
	case *wire.MsgVerAck:
		return p.handleVerAckMsg()
	}

	if !p.IsReady() {
		return fmt.Errorf("received %s before handshake completed", msg.Command())
	}

	switch msg := msg.(type) {
	case *wire.MsgPing:
		return p.handlePingMsg(msg)
	case *wire.MsgPong:
		return nil

	case *wire.MsgGetAddr:
		return p.handleGetAddrMsg()
	case *wire.MsgAddr:
		return p.handleAddrMsg(msg)

	case *wire.MsgInv:
		return p.handleInvMsg(msg)
	case *wire.MsgGetData:
		return p.handleGetDataMsg(msg)

	case *wire.MsgGetBlocks:
		return p.handleGetBlocksMsg(msg)
	case *wire.MsgGetHeaders:
		return p.handleGetHeadersMsg(msg)
	case *wire.MsgHeaders:
		return nil

	case *wire.MsgTxWire:
		return p.handleTxMsg(msg)
	case *wire.MsgBlockWire:
		return p.handleBlockMsg(msg)

	case *wire.MsgFilterLoad:
		return p.handleFilterLoadMsg(msg)
	case *wire.MsgFilterAdd:
		return p.handleFilterAddMsg(msg)
	case *wire.MsgFilterClear:
		p.filterMu.Lock()
		p.filter = nil
		p.filterMu.Unlock()
		return nil

	case *wire.MsgReject:
		log.Debugf("peer %s: reject %s", p.Addr(), newLogClosure(func() string {
			return messageSummary(msg)
		}))
		return nil

	case *wire.RawMessage:
		log.Debugf("peer %s: unrecognised command %s, ignoring", p.Addr(), msg.CommandName)
		return nil
	}
	return nil
}

// handleVersionMsg processes the remote side's version message: detects
// self-connection via nonce, negotiates the lower protocol version, and
// advances CONNECTED/VERSION_SENT to VERSION_RECEIVED (spec.md §4.6).
func (p *Peer) handleVersionMsg(msg *wire.MsgVersion) error {
	if p.protocolVersion != 0 {
		return fmt.Errorf("duplicate version message")
	}

	if msg.Nonce == p.localNonce {
		return fmt.Errorf("detected connection to self (nonce %d)", msg.Nonce)
	}

	p.advertisedProtocolVer = msg.ProtocolVersion
	p.protocolVersion = minUint32(p.cfg.ProtocolVersion, p.advertisedProtocolVer)
	p.services = msg.Services
	p.userAgent = msg.UserAgent
	p.disableRelayTx = msg.DisableRelayTx
	p.startHeight = msg.StartHeight

	log.Debugf("peer %s: negotiated protocol version %d (%s)", p.Addr(),
		p.protocolVersion, newLogClosure(func() string { return messageSummary(msg) }))

	if p.cfg.OnVersion != nil {
		p.cfg.OnVersion(p, msg)
	}

	complete := p.setHandshakeBit(handshakeVersionRecv)
	p.QueueMessage(&wire.MsgVerAck{})
	complete = p.setHandshakeBit(handshakeVerAckSent) || complete
	if complete {
		p.ready()
	}
	return nil
}

// handleVerAckMsg confirms the handshake from the remote side
// (spec.md §4.6: "verack confirms").
func (p *Peer) handleVerAckMsg() error {
	if complete := p.setHandshakeBit(handshakeVerAckRecv); complete {
		p.ready()
	}
	return nil
}

func (p *Peer) ready() {
	log.Infof("peer %s: handshake complete (agent %q, services %#x)", p.Addr(), p.userAgent, uint64(p.services))
	if p.cfg.SelectedTipHash != nil {
		tip := p.cfg.SelectedTipHash()
		p.QueueMessage(&wire.MsgInv{InvList: []*wire.InvVect{
			{Type: wire.InvTypeBlock, Hash: tip},
		}})
	}
	if p.cfg.OnReady != nil {
		p.cfg.OnReady(p)
	}
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func (p *Peer) handlePingMsg(msg *wire.MsgPing) error {
	if p.protocolVersion >= 60000 {
		p.QueueMessage(&wire.MsgPong{Nonce: msg.Nonce})
	}
	return nil
}

func (p *Peer) handleGetAddrMsg() error {
	if p.cfg.RecentEndpoints == nil {
		return nil
	}
	addrs := p.cfg.RecentEndpoints(wire.MaxAddrPerMsg)
	if len(addrs) == 0 {
		return nil
	}
	msg := &wire.MsgAddr{AddrList: make([]*wire.Endpoint, len(addrs))}
	for i := range addrs {
		ep := addrs[i]
		msg.AddrList[i] = &ep
	}
	p.QueueMessage(msg)
	return nil
}

func (p *Peer) handleAddrMsg(msg *wire.MsgAddr) error {
	if len(msg.AddrList) > wire.MaxAddrPerMsg {
		return fmt.Errorf("addr message exceeds maximum of %d addresses", wire.MaxAddrPerMsg)
	}
	now := time.Now()
	p.knownMu.Lock()
	for _, ep := range msg.AddrList {
		p.knownAddr[addrKey(ep)] = now
	}
	p.knownMu.Unlock()

	if p.cfg.OnAddr != nil {
		p.cfg.OnAddr(p, msg.AddrList)
	}
	return nil
}

// handleInvMsg honours an inv announcement: for each entry this peer has
// not already seen, schedule an ask-for subject to the cross-peer dedup
// window (spec.md §4.6).
func (p *Peer) handleInvMsg(msg *wire.MsgInv) error {
	tracker := p.askFor()
	var toRequest []*wire.InvVect
	for _, iv := range msg.InvList {
		if p.knownInventory(iv.Hash) {
			continue
		}
		p.rememberInventory(iv.Hash)
		if !tracker.ShouldRequest(iv.Hash) {
			continue
		}
		toRequest = append(toRequest, iv)
	}
	if len(toRequest) == 0 {
		return nil
	}
	p.QueueMessage(&wire.MsgGetData{InvList: toRequest})
	return nil
}

// handleGetDataMsg serves tx/block/merkleblock objects from whatever
// source the node configured (mempool, relay memory, or the chain store),
// per spec.md §4.6.
func (p *Peer) handleGetDataMsg(msg *wire.MsgGetData) error {
	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeTx:
			if p.cfg.FetchTx == nil {
				continue
			}
			tx, ok := p.cfg.FetchTx(iv.Hash)
			if !ok {
				continue
			}
			p.askFor().Forget(iv.Hash)
			p.QueueMessage(&wire.MsgTxWire{MsgTx: *tx})

		case wire.InvTypeBlock:
			if p.cfg.FetchBlock == nil {
				continue
			}
			block, ok := p.cfg.FetchBlock(iv.Hash)
			if !ok {
				continue
			}
			p.askFor().Forget(iv.Hash)
			p.sendBlockOrFiltered(block)
		}
	}
	return nil
}

// sendBlockOrFiltered sends the full block, or a merkleblock built from
// this peer's loaded bloom filter if one is set (scenario S6).
func (p *Peer) sendBlockOrFiltered(block *wire.MsgBlock) {
	p.filterMu.Lock()
	filter := p.filter
	p.filterMu.Unlock()

	if filter == nil {
		p.QueueMessage(&wire.MsgBlockWire{MsgBlock: *block})
		return
	}

	isPubKeyScript := func(script []byte) bool {
		return txscript.GetScriptClass(script) == txscript.PubKeyTy
	}
	matched := make([]bool, len(block.Transactions))
	leaves := make([]primitives.Hash256, len(block.Transactions))
	for i, tx := range block.Transactions {
		leaves[i] = tx.TxHash()
		matched[i] = filter.IsRelevantAndUpdate(tx, isPubKeyScript)
	}
	mb := wire.BuildMerkleBlock(block.Header, leaves, matched)
	p.QueueMessage(mb)
	for i, tx := range block.Transactions {
		if matched[i] {
			p.QueueMessage(&wire.MsgTxWire{MsgTx: *tx})
		}
	}
}

// handleGetBlocksMsg walks from the best common ancestor forward up to
// maxGetBlocksResults entries (spec.md §4.6).
func (p *Peer) handleGetBlocksMsg(msg *wire.MsgGetBlocks) error {
	if p.cfg.LocateBlockHashes == nil {
		return nil
	}
	hashes := p.cfg.LocateBlockHashes(msg.Locator, msg.HashStop, maxGetBlocksResults)
	if len(hashes) == 0 {
		return nil
	}
	inv := &wire.MsgInv{InvList: make([]*wire.InvVect, len(hashes))}
	for i, h := range hashes {
		inv.InvList[i] = &wire.InvVect{Type: wire.InvTypeBlock, Hash: h}
	}
	p.QueueMessage(inv)
	return nil
}

func (p *Peer) handleGetHeadersMsg(msg *wire.MsgGetHeaders) error {
	if p.cfg.LocateHeaders == nil {
		return nil
	}
	headers := p.cfg.LocateHeaders(msg.Locator, msg.HashStop, maxGetHeadersResults)
	if len(headers) == 0 {
		return nil
	}
	p.QueueMessage(&wire.MsgHeaders{Headers: headers})
	return nil
}

func (p *Peer) handleTxMsg(msg *wire.MsgTxWire) error {
	p.askFor().Forget(msg.TxHash())
	if p.cfg.OnTx != nil {
		p.cfg.OnTx(p, &msg.MsgTx)
	}
	return nil
}

func (p *Peer) handleBlockMsg(msg *wire.MsgBlockWire) error {
	p.askFor().Forget(msg.BlockHash())
	p.setSelectedTipHash(msg.BlockHash())
	if p.cfg.OnBlock != nil {
		p.cfg.OnBlock(p, &msg.MsgBlock)
	}
	return nil
}

// handleFilterLoadMsg installs a fresh bloom filter, replacing any filter
// previously loaded for this connection (scenario S6).
func (p *Peer) handleFilterLoadMsg(msg *wire.MsgFilterLoad) error {
	f := bloomfilter.LoadFromWire(msg)
	if !f.IsWithinSizeConstraints() {
		return fmt.Errorf("filterload exceeds size constraints")
	}
	p.filterMu.Lock()
	p.filter = f
	p.filterMu.Unlock()
	return nil
}

// handleFilterAddMsg adds a single element to the currently loaded
// filter, installing a brand new one if none exists yet.
func (p *Peer) handleFilterAddMsg(msg *wire.MsgFilterAdd) error {
	if len(msg.Data) > wire.MaxFilterAddDataSize {
		return fmt.Errorf("filteradd element too large")
	}
	p.filterMu.Lock()
	defer p.filterMu.Unlock()
	if p.filter == nil {
		p.filter = bloomfilter.New(1, 0.001, 0, bloomfilter.UpdateNone)
	}
	p.filter.Insert(msg.Data)
	return nil
}
