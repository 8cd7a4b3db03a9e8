// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/coreledger-node/node/primitives"
)

// InvType identifies what an inventory vector refers to.
type InvType uint32

// Inventory object types.
const (
	InvTypeTx    InvType = 1
	InvTypeBlock InvType = 2
)

// MaxInvPerMsg bounds the number of entries in a single inv/getdata
// message.
const MaxInvPerMsg = 50000

// InvVect is one entry of an inv/getdata message.
type InvVect struct {
	Type InvType
	Hash primitives.Hash256
}

func (iv *InvVect) encode(w io.Writer) error {
	if err := writeUint32(w, uint32(iv.Type)); err != nil {
		return err
	}
	_, err := w.Write(iv.Hash[:])
	return err
}

func (iv *InvVect) decode(r io.Reader) error {
	t, err := readUint32(r)
	if err != nil {
		return err
	}
	iv.Type = InvType(t)
	_, err = io.ReadFull(r, iv.Hash[:])
	return err
}

func encodeInvList(w io.Writer, invList []*InvVect) error {
	if err := WriteVarInt(w, uint64(len(invList))); err != nil {
		return err
	}
	for _, iv := range invList {
		if err := iv.encode(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeInvList(r io.Reader) ([]*InvVect, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > MaxInvPerMsg {
		return nil, messageError("decodeInvList", "too many inventory entries")
	}
	out := make([]*InvVect, count)
	for i := range out {
		iv := &InvVect{}
		if err := iv.decode(r); err != nil {
			return nil, err
		}
		out[i] = iv
	}
	return out, nil
}

// MsgInv announces known objects to a peer (spec.md §4.6).
type MsgInv struct {
	InvList []*InvVect
}

// Command implements Message.
func (m *MsgInv) Command() string { return CmdInv }

// Encode implements Message.
func (m *MsgInv) Encode(w io.Writer) error { return encodeInvList(w, m.InvList) }

// Decode implements Message.
func (m *MsgInv) Decode(r io.Reader) error {
	list, err := decodeInvList(r)
	m.InvList = list
	return err
}

// MsgGetData requests the full objects named by InvList.
type MsgGetData struct {
	InvList []*InvVect
}

// Command implements Message.
func (m *MsgGetData) Command() string { return CmdGetData }

// Encode implements Message.
func (m *MsgGetData) Encode(w io.Writer) error { return encodeInvList(w, m.InvList) }

// Decode implements Message.
func (m *MsgGetData) Decode(r io.Reader) error {
	list, err := decodeInvList(r)
	m.InvList = list
	return err
}
