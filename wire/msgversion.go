// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"time"
)

// MaxUserAgentLen bounds the sub-version string.
const MaxUserAgentLen = 256

// ProtocolVersion is the version this node speaks.
const ProtocolVersion = 70016

// MsgVersion is the handshake message each side of a connection sends
// first: protocol version, services, timestamp, receiver/sender
// endpoints, nonce, sub-version string, starting height, relay flag
// (spec.md §4.6).
type MsgVersion struct {
	ProtocolVersion uint32
	Services        ServiceFlag
	Timestamp       time.Time
	AddrReceiver    Endpoint
	AddrFrom        Endpoint
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
	DisableRelayTx  bool
}

// Command implements Message.
func (m *MsgVersion) Command() string { return CmdVersion }

// Encode implements Message.
func (m *MsgVersion) Encode(w io.Writer) error {
	if err := writeUint32(w, m.ProtocolVersion); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(m.Services)); err != nil {
		return err
	}
	if err := writeInt64(w, m.Timestamp.Unix()); err != nil {
		return err
	}
	if err := m.AddrReceiver.Encode(w); err != nil {
		return err
	}
	if err := m.AddrFrom.Encode(w); err != nil {
		return err
	}
	if err := writeUint64(w, m.Nonce); err != nil {
		return err
	}
	if len(m.UserAgent) > MaxUserAgentLen {
		return messageError("MsgVersion.Encode", "user agent too long")
	}
	if err := WriteVarString(w, m.UserAgent); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(m.StartHeight)); err != nil {
		return err
	}
	relay := byte(0)
	if !m.DisableRelayTx {
		relay = 1
	}
	_, err := w.Write([]byte{relay})
	return err
}

// Decode implements Message.
func (m *MsgVersion) Decode(r io.Reader) error {
	pv, err := readUint32(r)
	if err != nil {
		return err
	}
	m.ProtocolVersion = pv

	services, err := readUint64(r)
	if err != nil {
		return err
	}
	m.Services = ServiceFlag(services)

	ts, err := readInt64(r)
	if err != nil {
		return err
	}
	m.Timestamp = time.Unix(ts, 0)

	if err := m.AddrReceiver.Decode(r); err != nil {
		return err
	}
	if err := m.AddrFrom.Decode(r); err != nil {
		return err
	}

	if m.Nonce, err = readUint64(r); err != nil {
		return err
	}

	ua, err := ReadVarString(r)
	if err != nil {
		return err
	}
	if len(ua) > MaxUserAgentLen {
		return messageError("MsgVersion.Decode", "user agent too long")
	}
	m.UserAgent = ua

	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.StartHeight = int32(h)

	var relay [1]byte
	if _, err := io.ReadFull(r, relay[:]); err != nil {
		return err
	}
	m.DisableRelayTx = relay[0] == 0
	return nil
}
