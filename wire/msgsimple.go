// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgVerAck acknowledges a version message; it carries no payload.
type MsgVerAck struct{}

// Command implements Message.
func (m *MsgVerAck) Command() string { return CmdVerAck }

// Encode implements Message.
func (m *MsgVerAck) Encode(w io.Writer) error { return nil }

// Decode implements Message.
func (m *MsgVerAck) Decode(r io.Reader) error { return nil }

// MsgGetAddr requests up to MaxAddrPerMsg known peer endpoints.
type MsgGetAddr struct{}

// Command implements Message.
func (m *MsgGetAddr) Command() string { return CmdGetAddr }

// Encode implements Message.
func (m *MsgGetAddr) Encode(w io.Writer) error { return nil }

// Decode implements Message.
func (m *MsgGetAddr) Decode(r io.Reader) error { return nil }

// MsgMemPool requests the peer's mempool transaction inventory.
type MsgMemPool struct{}

// Command implements Message.
func (m *MsgMemPool) Command() string { return CmdMemPool }

// Encode implements Message.
func (m *MsgMemPool) Encode(w io.Writer) error { return nil }

// Decode implements Message.
func (m *MsgMemPool) Decode(r io.Reader) error { return nil }

// MsgFilterClear removes a peer's loaded bloom filter.
type MsgFilterClear struct{}

// Command implements Message.
func (m *MsgFilterClear) Command() string { return CmdFilterClear }

// Encode implements Message.
func (m *MsgFilterClear) Encode(w io.Writer) error { return nil }

// Decode implements Message.
func (m *MsgFilterClear) Decode(r io.Reader) error { return nil }

// MsgPing is a keep-alive probe. Nonce is meaningful for protocol >= 60000
// per spec.md §4.6; below that version no pong is sent in reply.
type MsgPing struct {
	Nonce uint64
}

// Command implements Message.
func (m *MsgPing) Command() string { return CmdPing }

// Encode implements Message.
func (m *MsgPing) Encode(w io.Writer) error { return writeUint64(w, m.Nonce) }

// Decode implements Message.
func (m *MsgPing) Decode(r io.Reader) error {
	n, err := readUint64(r)
	m.Nonce = n
	return err
}

// MsgPong answers a MsgPing, echoing its nonce.
type MsgPong struct {
	Nonce uint64
}

// Command implements Message.
func (m *MsgPong) Command() string { return CmdPong }

// Encode implements Message.
func (m *MsgPong) Encode(w io.Writer) error { return writeUint64(w, m.Nonce) }

// Decode implements Message.
func (m *MsgPong) Decode(r io.Reader) error {
	n, err := readUint64(r)
	m.Nonce = n
	return err
}

// MsgAlert carries an operator-signed broadcast. Per SPEC_FULL.md, the
// payload is decoded and logged only; no alert-key trust logic acts on it.
type MsgAlert struct {
	Payload   []byte
	Signature []byte
}

// Command implements Message.
func (m *MsgAlert) Command() string { return CmdAlert }

// Encode implements Message.
func (m *MsgAlert) Encode(w io.Writer) error {
	if err := WriteVarBytes(w, m.Payload); err != nil {
		return err
	}
	return WriteVarBytes(w, m.Signature)
}

// Decode implements Message.
func (m *MsgAlert) Decode(r io.Reader) error {
	payload, err := ReadVarBytes(r, MaxMessagePayload, "alert payload")
	if err != nil {
		return err
	}
	m.Payload = payload
	sig, err := ReadVarBytes(r, 256, "alert signature")
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// MsgReject reports why an object or request was refused, per spec.md §7
// ("a reject message where supported").
type MsgReject struct {
	RejectedCommand string
	Code            uint8
	Reason          string
	ExtraData       []byte
}

// Reject codes, matching the ConsensusRejection/MalformedData taxonomy of
// spec.md §7.
const (
	RejectMalformed     uint8 = 0x01
	RejectInvalid       uint8 = 0x10
	RejectDuplicate     uint8 = 0x12
	RejectNonStandard   uint8 = 0x40
	RejectInsufficient  uint8 = 0x42
)

// Command implements Message.
func (m *MsgReject) Command() string { return CmdReject }

// Encode implements Message.
func (m *MsgReject) Encode(w io.Writer) error {
	if err := WriteVarString(w, m.RejectedCommand); err != nil {
		return err
	}
	if _, err := w.Write([]byte{m.Code}); err != nil {
		return err
	}
	if err := WriteVarString(w, m.Reason); err != nil {
		return err
	}
	_, err := w.Write(m.ExtraData)
	return err
}

// Decode implements Message.
func (m *MsgReject) Decode(r io.Reader) error {
	cmd, err := ReadVarString(r)
	if err != nil {
		return err
	}
	m.RejectedCommand = cmd

	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return err
	}
	m.Code = code[0]

	reason, err := ReadVarString(r)
	if err != nil {
		return err
	}
	m.Reason = reason

	extra, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.ExtraData = extra
	return nil
}
