// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/coreledger-node/node/primitives"
)

// CommandSize is the fixed size, in bytes, of a command string in a
// message header: NUL-padded ASCII.
const CommandSize = 12

// Known command strings, per spec.md §6.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdAddr        = "addr"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdGetBlocks   = "getblocks"
	CmdGetHeaders  = "getheaders"
	CmdTx          = "tx"
	CmdBlock       = "block"
	CmdHeaders     = "headers"
	CmdGetAddr     = "getaddr"
	CmdMemPool     = "mempool"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdAlert       = "alert"
	CmdFilterLoad  = "filterload"
	CmdFilterAdd   = "filteradd"
	CmdFilterClear = "filterclear"
	CmdMerkleBlock = "merkleblock"
	CmdReject      = "reject"
)

// Message is the interface implemented by every concrete wire message
// type plus the catch-all Raw variant used for forward compatibility (a
// Raw message preserves an unrecognised command rather than failing
// decode, per DESIGN NOTES §9 "Dynamic wire decoding").
type Message interface {
	Command() string
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

// RawMessage holds the payload of a command this node's Message registry
// does not recognise. It is logged and otherwise ignored, never treated
// as fatal.
type RawMessage struct {
	CommandName string
	Payload     []byte
}

// Command implements Message.
func (m *RawMessage) Command() string { return m.CommandName }

// Encode implements Message.
func (m *RawMessage) Encode(w io.Writer) error {
	_, err := w.Write(m.Payload)
	return err
}

// Decode implements Message.
func (m *RawMessage) Decode(r io.Reader) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Payload = buf
	return nil
}

func makeEmptyMessage(command string) Message {
	switch command {
	case CmdVersion:
		return &MsgVersion{}
	case CmdVerAck:
		return &MsgVerAck{}
	case CmdAddr:
		return &MsgAddr{}
	case CmdInv:
		return &MsgInv{}
	case CmdGetData:
		return &MsgGetData{}
	case CmdGetBlocks:
		return &MsgGetBlocks{}
	case CmdGetHeaders:
		return &MsgGetHeaders{}
	case CmdTx:
		return &MsgTxWire{}
	case CmdBlock:
		return &MsgBlockWire{}
	case CmdHeaders:
		return &MsgHeaders{}
	case CmdGetAddr:
		return &MsgGetAddr{}
	case CmdMemPool:
		return &MsgMemPool{}
	case CmdPing:
		return &MsgPing{}
	case CmdPong:
		return &MsgPong{}
	case CmdAlert:
		return &MsgAlert{}
	case CmdFilterLoad:
		return &MsgFilterLoad{}
	case CmdFilterAdd:
		return &MsgFilterAdd{}
	case CmdFilterClear:
		return &MsgFilterClear{}
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}
	case CmdReject:
		return &MsgReject{}
	default:
		return nil
	}
}

// MessageHeader is the fixed framing prefix of every wire message, per
// spec.md §6: magic(4) || command(12, NUL-padded) || length(4 LE) ||
// checksum(4 = first 4 bytes of SHA-256d of payload).
type MessageHeader struct {
	Magic    uint32
	Command  string
	Length   uint32
	Checksum [4]byte
}

// ErrInvalidMagic is returned by ReadMessage when the frame's magic bytes
// do not match the expected network magic; the caller must close the
// connection.
var ErrInvalidMagic = fmt.Errorf("wire: invalid magic bytes")

// WriteMessage serializes msg with the given network magic and writes the
// framed message to w.
func WriteMessage(w io.Writer, msg Message, magic uint32) error {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return err
	}
	if payload.Len() > MaxMessagePayload {
		return messageError("WriteMessage", fmt.Sprintf("payload %d exceeds max %d", payload.Len(), MaxMessagePayload))
	}

	var cmdBytes [CommandSize]byte
	cmd := msg.Command()
	if len(cmd) > CommandSize {
		return messageError("WriteMessage", "command string too long: "+cmd)
	}
	copy(cmdBytes[:], cmd)

	sum := primitives.Sha256D(payload.Bytes())

	var header bytes.Buffer
	if err := writeUint32(&header, magic); err != nil {
		return err
	}
	if _, err := header.Write(cmdBytes[:]); err != nil {
		return err
	}
	if err := writeUint32(&header, uint32(payload.Len())); err != nil {
		return err
	}
	if _, err := header.Write(sum[:4]); err != nil {
		return err
	}

	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// ReadMessage reads one framed message from r, verifying the magic and
// checksum. Per spec.md §9 open questions, the checksum is always
// required: there is no legacy unchecksummed compatibility mode.
func ReadMessage(r io.Reader, magic uint32) (Message, []byte, error) {
	var hdr [4 + CommandSize + 4 + 4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, nil, err
	}
	gotMagic := littleEndian.Uint32(hdr[0:4])
	if gotMagic != magic {
		return nil, nil, ErrInvalidMagic
	}
	cmdBytes := hdr[4 : 4+CommandSize]
	command := string(bytes.TrimRight(cmdBytes, "\x00"))
	length := littleEndian.Uint32(hdr[4+CommandSize : 4+CommandSize+4])
	var checksum [4]byte
	copy(checksum[:], hdr[4+CommandSize+4:])

	if length > MaxMessagePayload {
		return nil, nil, messageError("ReadMessage", fmt.Sprintf("payload %d exceeds max %d", length, MaxMessagePayload))
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}
	sum := primitives.Sha256D(payload)
	if !bytes.Equal(sum[:4], checksum[:]) {
		return nil, nil, messageError("ReadMessage", "checksum mismatch for command "+command)
	}

	msg := makeEmptyMessage(command)
	if msg == nil {
		return &RawMessage{CommandName: command, Payload: payload}, payload, nil
	}
	if err := msg.Decode(bytes.NewReader(payload)); err != nil {
		return nil, nil, err
	}
	return msg, payload, nil
}
