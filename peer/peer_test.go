// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"net"
	"testing"
	"time"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

func testConfig() *Config {
	return &Config{
		ChainMagic:      0xd9b4bef9,
		ProtocolVersion: wire.ProtocolVersion,
		Services:        wire.SFNodeNetwork,
		UserAgentName:   "testsuite",
		UserAgentVersion: "0.1.0",
	}
}

func newTestPeerPair(t *testing.T) (*Peer, *Peer) {
	t.Helper()
	a, b := net.Pipe()
	local := New(testConfig(), a, false, 1)
	remote := New(testConfig(), b, true, 2)
	t.Cleanup(func() {
		local.Disconnect()
		remote.Disconnect()
	})
	return local, remote
}

func TestHandshakeCompletesOnBothSides(t *testing.T) {
	local, remote := newTestPeerPair(t)

	localReady := make(chan struct{}, 1)
	remoteReady := make(chan struct{}, 1)
	local.cfg.OnReady = func(*Peer) { localReady <- struct{}{} }
	remote.cfg.OnReady = func(*Peer) { remoteReady <- struct{}{} }

	if err := local.Start(); err != nil {
		t.Fatalf("local.Start: %v", err)
	}
	if err := remote.Start(); err != nil {
		t.Fatalf("remote.Start: %v", err)
	}

	timeout := time.After(5 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-localReady:
		case <-remoteReady:
		case <-timeout:
			t.Fatalf("handshake did not complete in time")
		}
	}

	if !local.IsReady() {
		t.Fatalf("local peer not ready after handshake")
	}
	if !remote.IsReady() {
		t.Fatalf("remote peer not ready after handshake")
	}
	if local.ProtocolVersion() != wire.ProtocolVersion {
		t.Fatalf("local negotiated version = %d, want %d", local.ProtocolVersion(), wire.ProtocolVersion)
	}
}

func TestReadyFiresExactlyOnceRegardlessOfBitOrder(t *testing.T) {
	p := New(testConfig(), nil, false, 1)
	var fired int
	order := []int32{handshakeVersionSent, handshakeVerAckRecv, handshakeVersionRecv, handshakeVerAckSent}
	for _, bit := range order {
		if p.setHandshakeBit(bit) {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("ready edge fired %d times, want exactly 1", fired)
	}
	// Setting any bit again (already set) must never re-trigger completion.
	if p.setHandshakeBit(handshakeVersionSent) {
		t.Fatalf("re-setting an already-set bit re-triggered completion")
	}
	if p.State() != StateReady {
		t.Fatalf("State() = %s, want ready", p.State())
	}
}

func TestHandleVersionMsgRejectsSelfConnection(t *testing.T) {
	p := New(testConfig(), nil, false, 42)
	err := p.handleVersionMsg(&wire.MsgVersion{
		ProtocolVersion: wire.ProtocolVersion,
		Nonce:           42,
	})
	if err == nil {
		t.Fatalf("expected self-connection to be rejected")
	}
}

func TestHandleVersionMsgNegotiatesLowerProtocolVersion(t *testing.T) {
	cfg := testConfig()
	cfg.ProtocolVersion = 70015
	p := New(cfg, nil, false, 1)
	if err := p.handleVersionMsg(&wire.MsgVersion{
		ProtocolVersion: 60002,
		Nonce:           2,
		UserAgent:       "/other:1.0/",
	}); err != nil {
		t.Fatalf("handleVersionMsg: %v", err)
	}
	if got := p.ProtocolVersion(); got != 60002 {
		t.Fatalf("negotiated protocol version = %d, want 60002 (the lower side)", got)
	}
}

func TestHandleVersionMsgRejectsDuplicate(t *testing.T) {
	p := New(testConfig(), nil, false, 1)
	v := &wire.MsgVersion{ProtocolVersion: wire.ProtocolVersion, Nonce: 2}
	if err := p.handleVersionMsg(v); err != nil {
		t.Fatalf("first handleVersionMsg: %v", err)
	}
	if err := p.handleVersionMsg(v); err == nil {
		t.Fatalf("expected duplicate version message to be rejected")
	}
}

func TestAskForTrackerDedupsWithinExpiryWindow(t *testing.T) {
	tr := NewAskForTracker()
	var h primitives.Hash256
	h[0] = 0xaa

	if !tr.ShouldRequest(h) {
		t.Fatalf("first request for a fresh hash should be allowed")
	}
	if tr.ShouldRequest(h) {
		t.Fatalf("second request within the dedup window should be refused")
	}

	tr.Forget(h)
	if !tr.ShouldRequest(h) {
		t.Fatalf("request after Forget should be allowed again")
	}
}

func TestHandleInvMsgSkipsAlreadyKnownInventory(t *testing.T) {
	p := New(testConfig(), nil, false, 1)
	var h primitives.Hash256
	h[0] = 0xbb
	p.rememberInventory(h)

	if !p.knownInventory(h) {
		t.Fatalf("knownInventory should report true after rememberInventory")
	}

	// handleInvMsg must not panic or queue anything for an already-known
	// hash. The output queue is buffered and nothing drains it here, so
	// the timeout only guards against a hang; the queue length afterwards
	// shows whether a getdata was queued.
	inv := &wire.MsgInv{InvList: []*wire.InvVect{{Type: wire.InvTypeBlock, Hash: h}}}
	done := make(chan struct{})
	go func() {
		p.handleInvMsg(inv)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("handleInvMsg blocked on an already-known inventory entry")
	}
	if n := len(p.outputQueue); n != 0 {
		t.Fatalf("handleInvMsg queued %d messages for an already-known inventory entry", n)
	}
}
