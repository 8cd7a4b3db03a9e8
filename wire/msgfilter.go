// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxFilterLoadSize bounds the raw filter byte array accepted on the wire,
// mirroring bloomfilter.MaxFilterSize (spec.md §4.6).
const MaxFilterLoadSize = 36000

// MaxFilterAddDataSize bounds a single filteradd element.
const MaxFilterAddDataSize = 520

// MsgFilterLoad installs a new bloom filter for the connection, replacing
// any filter previously loaded (scenario S6).
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     uint8
}

// Command implements Message.
func (m *MsgFilterLoad) Command() string { return CmdFilterLoad }

// Encode implements Message.
func (m *MsgFilterLoad) Encode(w io.Writer) error {
	if len(m.Filter) > MaxFilterLoadSize {
		return messageError("MsgFilterLoad.Encode", "filter too large")
	}
	if err := WriteVarBytes(w, m.Filter); err != nil {
		return err
	}
	if err := writeUint32(w, m.HashFuncs); err != nil {
		return err
	}
	if err := writeUint32(w, m.Tweak); err != nil {
		return err
	}
	_, err := w.Write([]byte{m.Flags})
	return err
}

// Decode implements Message.
func (m *MsgFilterLoad) Decode(r io.Reader) error {
	data, err := ReadVarBytes(r, MaxFilterLoadSize, "filterload filter")
	if err != nil {
		return err
	}
	m.Filter = data
	if m.HashFuncs, err = readUint32(r); err != nil {
		return err
	}
	if m.Tweak, err = readUint32(r); err != nil {
		return err
	}
	flag := make([]byte, 1)
	if _, err := io.ReadFull(r, flag); err != nil {
		return err
	}
	m.Flags = flag[0]
	return nil
}

// MsgFilterAdd adds a single element to the peer's currently loaded
// filter without transmitting the whole filter again.
type MsgFilterAdd struct {
	Data []byte
}

// Command implements Message.
func (m *MsgFilterAdd) Command() string { return CmdFilterAdd }

// Encode implements Message.
func (m *MsgFilterAdd) Encode(w io.Writer) error {
	if len(m.Data) > MaxFilterAddDataSize {
		return messageError("MsgFilterAdd.Encode", "element too large")
	}
	return WriteVarBytes(w, m.Data)
}

// Decode implements Message.
func (m *MsgFilterAdd) Decode(r io.Reader) error {
	data, err := ReadVarBytes(r, MaxFilterAddDataSize, "filteradd data")
	if err != nil {
		return err
	}
	m.Data = data
	return nil
}
