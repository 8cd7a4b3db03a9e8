// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/coreledger-node/node/blockchain"
	"github.com/coreledger-node/node/chaincfg"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

type recordingSubscriber struct {
	events []BlockEvent
}

func (r *recordingSubscriber) NotifyBlock(event BlockEvent) {
	r.events = append(r.events, event)
}

func TestHubDispatchesToAllSubscribers(t *testing.T) {
	hub := NewHub()
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	hub.Add(a)
	hub.Add(b)

	block := &wire.MsgBlock{}
	hub.BlockHook(block, 7, true)

	for _, r := range []*recordingSubscriber{a, b} {
		if len(r.events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(r.events))
		}
		if r.events[0].Height != 7 || !r.events[0].Connected {
			t.Fatalf("unexpected event: %+v", r.events[0])
		}
		if r.events[0].Hash != block.BlockHash() {
			t.Fatalf("event hash does not match block hash")
		}
	}
}

func TestHubRemoveStopsDelivery(t *testing.T) {
	hub := NewHub()
	a := &recordingSubscriber{}
	hub.Add(a)
	hub.Remove(a)

	hub.BlockHook(&wire.MsgBlock{}, 1, true)
	if len(a.events) != 0 {
		t.Fatalf("expected no events after Remove, got %d", len(a.events))
	}
}

func TestWebSocketSubscriberWritesJSONFrame(t *testing.T) {
	var upgrader websocket.Upgrader
	received := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		received <- msg
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	defer conn.Close()

	sub := NewWebSocketSubscriber(conn)
	var hash primitives.Hash256
	hash[0] = 0x42
	sub.NotifyBlock(BlockEvent{Hash: hash, Height: 3, Connected: true})

	msg := <-received
	var got BlockEvent
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Height != 3 || !got.Connected || got.Hash != hash {
		t.Fatalf("unexpected event over the wire: %+v", got)
	}
}

// mineChild builds and mines a minimal single-coinbase child of parent,
// just enough for (*blockchain.BlockChain).AcceptBlock to connect it.
func mineChild(params *chaincfg.Params, parent *wire.MsgBlock) *wire.MsgBlock {
	coinbase := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{Index: wire.NullOutpointIndex},
			SignatureScript:  []byte{0x51},
			Sequence:         0xffffffff,
		}},
		TxOut: []*wire.TxOut{{Value: params.TotalSubsidy(1), ScriptPubKey: []byte{0x51}}},
	}
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version: 1,
			Prev:    parent.BlockHash(),
			Bits:    parent.Header.Bits,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block.Header.MerkleRoot = block.ComputeMerkleRoot()
	for nonce := uint32(0); ; nonce++ {
		block.Header.Nonce = nonce
		hash := block.Header.BlockHash()
		if params.CheckProofOfWork(hash[:], block.Header.Bits) {
			return block
		}
	}
}

func TestHubReceivesBlockChainConnectHook(t *testing.T) {
	params := chaincfg.RegressionNetParams
	bc := blockchain.New(&params)

	hub := NewHub()
	sub := &recordingSubscriber{}
	hub.Add(sub)
	bc.OnBlock(hub.BlockHook)

	child := mineChild(&params, params.GenesisBlock)
	if err := bc.AcceptBlock(child); err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}

	if len(sub.events) != 1 {
		t.Fatalf("expected 1 event from the chain's connect hook, got %d", len(sub.events))
	}
	if sub.events[0].Hash != child.BlockHash() || sub.events[0].Height != 1 || !sub.events[0].Connected {
		t.Fatalf("unexpected event from chain hook: %+v", sub.events[0])
	}
}
