// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgAddr relays up to MaxAddrPerMsg timestamped peer endpoints.
type MsgAddr struct {
	AddrList []*Endpoint
}

// Command implements Message.
func (m *MsgAddr) Command() string { return CmdAddr }

// Encode implements Message.
func (m *MsgAddr) Encode(w io.Writer) error {
	if len(m.AddrList) > MaxAddrPerMsg {
		return messageError("MsgAddr.Encode", "too many addresses")
	}
	if err := WriteVarInt(w, uint64(len(m.AddrList))); err != nil {
		return err
	}
	for _, ep := range m.AddrList {
		if err := ep.EncodeWithTimestamp(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode implements Message.
func (m *MsgAddr) Decode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		return messageError("MsgAddr.Decode", "too many addresses")
	}
	m.AddrList = make([]*Endpoint, count)
	for i := range m.AddrList {
		ep := &Endpoint{}
		if err := ep.DecodeWithTimestamp(r); err != nil {
			return err
		}
		m.AddrList[i] = ep
	}
	return nil
}
