// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// SigHashType represents the SIGHASH modifier bits appended to a DER
// signature, per spec.md §4.1.
type SigHashType uint32

// Hash type bits, matching the classic Bitcoin SIGHASH encoding.
const (
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80

	sigHashMask = 0x1f
)

// CalcSignatureHash computes the transaction-hash a signature for input
// idx is made over: substitute subScript (the referenced output script,
// with any OP_CODESEPARATOR-prefixed portion removed) into that input's
// signature-script position, zero every other input's signature script,
// apply the requested SIGHASH variant, then double-SHA-256 the result
// (spec.md §4.1).
func CalcSignatureHash(subScript []byte, hashType SigHashType, tx *wire.MsgTx, idx int) ([]byte, error) {
	if idx >= len(tx.TxIn) || idx < 0 {
		return nil, scriptError(ErrInvalidIndex, "invalid input index for signature hash")
	}

	subScript = removeCodeSeparators(subScript)

	txCopy := tx.Copy()

	for i := range txCopy.TxIn {
		txCopy.TxIn[i].SignatureScript = nil
	}
	txCopy.TxIn[idx].SignatureScript = subScript

	switch hashType & sigHashMask {
	case SigHashNone:
		txCopy.TxOut = txCopy.TxOut[:0]
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}
	case SigHashSingle:
		if idx >= len(txCopy.TxOut) {
			// Historical quirk preserved from Bitcoin Core/btcsuite: out
			// of range SIGHASH_SINGLE signs the constant hash 0x01.
			var hashOne primitives.Hash256
			hashOne[0] = 0x01
			return hashOne[:], nil
		}
		txCopy.TxOut = txCopy.TxOut[:idx+1]
		for i := 0; i < idx; i++ {
			txCopy.TxOut[i] = &wire.TxOut{Value: -1}
		}
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}
	default:
		// SigHashAll: leave outputs untouched.
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		txCopy.TxIn = []*wire.TxIn{txCopy.TxIn[idx]}
	}

	var buf bytes.Buffer
	_ = txCopy.Encode(&buf)
	_ = writeHashTypeLE(&buf, hashType)

	h := primitives.Sha256D(buf.Bytes())
	return h[:], nil
}

func writeHashTypeLE(buf *bytes.Buffer, hashType SigHashType) error {
	b := []byte{
		byte(hashType), byte(hashType >> 8),
		byte(hashType >> 16), byte(hashType >> 24),
	}
	_, err := buf.Write(b)
	return err
}

// removeCodeSeparators strips OP_CODESEPARATOR bytes from script, since
// they must not appear in the substituted subscript used for sighash.
func removeCodeSeparators(script []byte) []byte {
	pops, err := parseScript(script)
	if err != nil {
		return script
	}
	var out []byte
	for _, pop := range pops {
		if pop.opcode.value == OpCodeSeparator {
			continue
		}
		out = append(out, reconstructOp(pop)...)
	}
	return out
}

func reconstructOp(pop parsedOpcode) []byte {
	if pop.opcode.length == 1 {
		return []byte{pop.opcode.value}
	}
	var prefix []byte
	switch {
	case pop.opcode.value <= OpData1 && pop.opcode.value != 0:
	}
	if pop.opcode.value <= 0x4b && pop.opcode.value > 0 {
		prefix = []byte{pop.opcode.value}
	} else {
		switch pop.opcode.value {
		case OpPushData1:
			prefix = []byte{OpPushData1, byte(len(pop.data))}
		case OpPushData2:
			prefix = []byte{OpPushData2, byte(len(pop.data)), byte(len(pop.data) >> 8)}
		case OpPushData4:
			n := len(pop.data)
			prefix = []byte{OpPushData4, byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
		default:
			prefix = []byte{pop.opcode.value}
		}
	}
	return append(prefix, pop.data...)
}
