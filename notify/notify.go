// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notify is the push side of the notification surface
// spec.md's RPC layer would subscribe to, generalised from
// infrastructure/network/rpc/rpcwebsocket.go's websocket client
// fan-out. The JSON-RPC server itself is out of spec's scope, but
// nothing in the chain engine should have to know whether a given
// caller wants a socket push or some other delivery mechanism, so
// blockchain.BlockHook events are adapted here to a narrow Subscriber
// boundary instead. TxHook events are not adapted.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// BlockEvent describes one block connecting to or disconnecting from
// the trunk, the shape a Subscriber receives for every blockchain.BlockHook
// call.
type BlockEvent struct {
	Hash      primitives.Hash256 `json:"hash"`
	Height    int32              `json:"height"`
	Connected bool               `json:"connected"`
}

// Subscriber is anything that wants to hear about connected/disconnected
// blocks. The chain engine and node orchestrator depend only on this
// interface, never on a concrete transport, the same decoupling
// peer.Config and filters.ChainAcceptor use elsewhere in this module.
type Subscriber interface {
	NotifyBlock(event BlockEvent)
}

// WebSocketSubscriber pushes BlockEvents as JSON text frames to a single
// websocket client, matching the notifyBlockConnected/
// notifyBlockDisconnected push path rpcwebsocket.go drives off its
// client list, collapsed here to one connection per Subscriber since
// this module has no RPC server to fan a single feed out to many
// clients.
type WebSocketSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketSubscriber wraps an already-upgraded websocket connection.
func NewWebSocketSubscriber(conn *websocket.Conn) *WebSocketSubscriber {
	return &WebSocketSubscriber{conn: conn}
}

// NotifyBlock implements Subscriber. A write error is swallowed: a
// stuck or closed client shouldn't stall the chain engine's hook
// dispatch, the same "best effort" treatment rpcwebsocket.go's
// buffered send channel gives a slow client.
func (s *WebSocketSubscriber) NotifyBlock(event BlockEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection.
func (s *WebSocketSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Hub fans a single stream of BlockEvents out to every registered
// Subscriber, so a chain engine only ever needs to drive one hook.
type Hub struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Subscriber]struct{})}
}

// Add registers sub to receive future events.
func (h *Hub) Add(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

// Remove unregisters sub.
func (h *Hub) Remove(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// BlockHook adapts the Hub to blockchain.BlockHook's
// func(block, height, connected) signature, so it can be passed
// directly to (*blockchain.BlockChain).OnBlock without either package
// importing the other's concrete types.
func (h *Hub) BlockHook(block *wire.MsgBlock, height int32, connected bool) {
	event := BlockEvent{Hash: block.BlockHash(), Height: height, Connected: connected}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		sub.NotifyBlock(event)
	}
}
