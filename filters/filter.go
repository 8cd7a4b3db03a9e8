// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package filters implements spec.md's C11 message-handler layer: the
// business logic that reacts to already-decoded peer messages (mempool
// admission, orphan tracking, relay, reject emission, misbehaviour
// scoring) separate from peer's wire-level session mechanics. It is the
// Go shape of original_source's Filter/MessageHandler split
// (include/btcNode/Filter.h, MessageHandler.h): a Filter declares the
// commands it cares about, and a Handler dispatches each message to
// every filter registered for its command, in installation order.
package filters

import (
	"sync"

	"github.com/coreledger-node/node/wire"
)

// Session is the minimal peer surface a filter needs: reply, reject, and
// misbehaviour scoring. Satisfied by *peer.Peer; kept as an interface so
// this package never imports peer and can be exercised with a fake in
// tests, the same Config-callback decoupling peer.Config itself uses to
// avoid importing chainstore/mempool/addrmgr.
type Session interface {
	Addr() string
	QueueMessage(msg wire.Message)
	SendReject(cmd string, code uint8, reason string)
	AddMisbehavior(delta int, reason string) (disconnected bool)
}

// Broadcaster relays a message to every other ready peer, the Go
// counterpart of original_source PeerManager::relayMessage. except may be
// nil when there is no originating peer to exclude (e.g. a locally
// resolved orphan).
type Broadcaster interface {
	Broadcast(msg wire.Message, except Session)
}

// Message pairs a decoded wire message with the session it arrived on,
// the Go shape of original_source's Message{origin, command, payload}.
type Message struct {
	Peer Session
	Msg  wire.Message
}

// Filter is implemented by each self-contained piece of business logic
// (TransactionFilter, BlockFilter, ...); Filter.h's "overload operator()"
// becomes Handle.
type Filter interface {
	// Commands lists the wire commands this filter wants to see.
	Commands() []string
	// Handle processes one message. A non-nil error stops the chain for
	// that message (mirroring Filter::operator() returning false).
	Handle(m *Message) error
}

// Handler is the per-node message router installed filters register
// with; spec.md's C11 component.
type Handler struct {
	mu    sync.RWMutex
	byCmd map[string][]Filter
}

// NewHandler builds an empty handler.
func NewHandler() *Handler {
	return &Handler{byCmd: make(map[string][]Filter)}
}

// Install registers f for every command it declares interest in.
func (h *Handler) Install(f Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cmd := range f.Commands() {
		h.byCmd[cmd] = append(h.byCmd[cmd], f)
	}
}

// Handle dispatches msg to every filter installed for its command, in
// registration order, stopping at the first error.
func (h *Handler) Handle(peer Session, msg wire.Message) error {
	h.mu.RLock()
	installed := h.byCmd[msg.Command()]
	h.mu.RUnlock()

	m := &Message{Peer: peer, Msg: msg}
	for _, f := range installed {
		if err := f.Handle(m); err != nil {
			return err
		}
	}
	return nil
}
