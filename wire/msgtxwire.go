// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgTxWire is the "tx" command: a single transaction broadcast or
// getdata response.
type MsgTxWire struct {
	MsgTx
}

// Command implements Message.
func (m *MsgTxWire) Command() string { return CmdTx }

// Encode implements Message.
func (m *MsgTxWire) Encode(w io.Writer) error { return m.MsgTx.Encode(w) }

// Decode implements Message.
func (m *MsgTxWire) Decode(r io.Reader) error { return m.MsgTx.Decode(r) }

// MsgBlockWire is the "block" command: a full block broadcast or getdata
// response.
type MsgBlockWire struct {
	MsgBlock
}

// Command implements Message.
func (m *MsgBlockWire) Command() string { return CmdBlock }

// Encode implements Message.
func (m *MsgBlockWire) Encode(w io.Writer) error { return m.MsgBlock.Encode(w) }

// Decode implements Message.
func (m *MsgBlockWire) Decode(r io.Reader) error { return m.MsgBlock.Decode(r) }
