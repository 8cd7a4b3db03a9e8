// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"math"

	"github.com/coreledger-node/node/primitives"
)

// MaxSatoshi is the maximum value, in satoshis, that can ever exist: 21
// million bitcoin, per spec.md §3.
const MaxSatoshi = 21_000_000 * 100_000_000

// MaxBlockSize bounds the serialized size of a block, used by Script
// limits, Claims admission and block-template assembly.
const MaxBlockSize = 1_000_000

// MaxBlockSigOps bounds the number of signature operations in a block.
const MaxBlockSigOps = MaxBlockSize / 50

// NullOutpointIndex marks a coinbase input's null outpoint index.
const NullOutpointIndex = math.MaxUint32

// Outpoint identifies a transaction output being spent: (tx_hash, index).
type Outpoint struct {
	Hash  primitives.Hash256
	Index uint32
}

// IsNull reports whether this is the null outpoint (zero hash, 0xFFFFFFFF
// index) that marks a coinbase input.
func (o Outpoint) IsNull() bool {
	return o.Hash.IsZero() && o.Index == NullOutpointIndex
}

func (o *Outpoint) decode(r io.Reader) error {
	if _, err := io.ReadFull(r, o.Hash[:]); err != nil {
		return err
	}
	idx, err := readUint32(r)
	if err != nil {
		return err
	}
	o.Index = idx
	return nil
}

func (o *Outpoint) encode(w io.Writer) error {
	if _, err := w.Write(o.Hash[:]); err != nil {
		return err
	}
	return writeUint32(w, o.Index)
}

// TxIn is a transaction input (C3 Input).
type TxIn struct {
	PreviousOutpoint Outpoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOut is a transaction output (C3 Output). Value is constrained
// 0 <= v <= MaxSatoshi by consensus.
type TxOut struct {
	Value        int64
	ScriptPubKey []byte
}

// MsgTx is the transaction record (C3).
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// IsCoinBase reports whether tx is the distinguished first transaction of
// a block: exactly one input with a null outpoint and a signature script
// between 2 and 100 bytes, per spec.md §3.
func (tx *MsgTx) IsCoinBase() bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	in := tx.TxIn[0]
	if !in.PreviousOutpoint.IsNull() {
		return false
	}
	l := len(in.SignatureScript)
	return l >= 2 && l <= 100
}

// TxHash computes the canonical double-SHA-256 transaction hash.
func (tx *MsgTx) TxHash() primitives.Hash256 {
	var buf bytes.Buffer
	_ = tx.Encode(&buf)
	return primitives.Sha256D(buf.Bytes())
}

// SerializeSize returns the encoded byte length of tx.
func (tx *MsgTx) SerializeSize() int {
	var buf bytes.Buffer
	_ = tx.Encode(&buf)
	return buf.Len()
}

// Encode writes the canonical wire encoding of tx to w.
func (tx *MsgTx) Encode(w io.Writer) error {
	if err := writeUint32(w, uint32(tx.Version)); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(tx.TxIn))); err != nil {
		return err
	}
	for _, in := range tx.TxIn {
		if err := in.PreviousOutpoint.encode(w); err != nil {
			return err
		}
		if err := WriteVarBytes(w, in.SignatureScript); err != nil {
			return err
		}
		if err := writeUint32(w, in.Sequence); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(tx.TxOut))); err != nil {
		return err
	}
	for _, out := range tx.TxOut {
		if err := writeInt64(w, out.Value); err != nil {
			return err
		}
		if err := WriteVarBytes(w, out.ScriptPubKey); err != nil {
			return err
		}
	}
	return writeUint32(w, tx.LockTime)
}

// Decode reads the canonical wire encoding of a transaction from r.
func (tx *MsgTx) Decode(r io.Reader) error {
	v, err := readUint32(r)
	if err != nil {
		return err
	}
	tx.Version = int32(v)

	numIn, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if numIn == 0 {
		return messageError("MsgTx.Decode", "transaction has no inputs")
	}
	tx.TxIn = make([]*TxIn, numIn)
	for i := range tx.TxIn {
		in := &TxIn{}
		if err := in.PreviousOutpoint.decode(r); err != nil {
			return err
		}
		script, err := ReadVarBytes(r, MaxBlockSize, "tx input script")
		if err != nil {
			return err
		}
		in.SignatureScript = script
		if in.Sequence, err = readUint32(r); err != nil {
			return err
		}
		tx.TxIn[i] = in
	}

	numOut, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if numOut == 0 {
		return messageError("MsgTx.Decode", "transaction has no outputs")
	}
	tx.TxOut = make([]*TxOut, numOut)
	for i := range tx.TxOut {
		out := &TxOut{}
		if out.Value, err = readInt64(r); err != nil {
			return err
		}
		script, err := ReadVarBytes(r, MaxBlockSize, "tx output script")
		if err != nil {
			return err
		}
		out.ScriptPubKey = script
		tx.TxOut[i] = out
	}

	if tx.LockTime, err = readUint32(r); err != nil {
		return err
	}
	return nil
}

// Copy returns a deep copy of tx, used by the Script sighash machinery
// which mutates a working copy of the transaction.
func (tx *MsgTx) Copy() *MsgTx {
	out := &MsgTx{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		TxIn:     make([]*TxIn, len(tx.TxIn)),
		TxOut:    make([]*TxOut, len(tx.TxOut)),
	}
	for i, in := range tx.TxIn {
		script := make([]byte, len(in.SignatureScript))
		copy(script, in.SignatureScript)
		out.TxIn[i] = &TxIn{
			PreviousOutpoint: in.PreviousOutpoint,
			SignatureScript:  script,
			Sequence:         in.Sequence,
		}
	}
	for i, o := range tx.TxOut {
		script := make([]byte, len(o.ScriptPubKey))
		copy(script, o.ScriptPubKey)
		out.TxOut[i] = &TxOut{Value: o.Value, ScriptPubKey: script}
	}
	return out
}
