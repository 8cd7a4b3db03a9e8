// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"

	"github.com/coreledger-node/node/internal/base58check"
	"github.com/coreledger-node/node/primitives"
)

// LockTimeThreshold is the value separating a transaction's LockTime
// field interpreted as a block height (below) from a Unix timestamp
// (at or above), per spec.md §3.
const LockTimeThreshold = 500000000

// ScriptClass identifies one of the standard templates a scriptPubKey
// may follow (spec.md §4.1).
type ScriptClass int

// Recognised standard templates.
const (
	NonStandardTy ScriptClass = iota
	PubKeyTy
	PubKeyHashTy
	ScriptHashTy
	MultiSigTy
	NullDataTy
)

func (c ScriptClass) String() string {
	switch c {
	case PubKeyTy:
		return "pubkey"
	case PubKeyHashTy:
		return "pubkeyhash"
	case ScriptHashTy:
		return "scripthash"
	case MultiSigTy:
		return "multisig"
	case NullDataTy:
		return "nulldata"
	default:
		return "nonstandard"
	}
}

// isScriptHash reports whether pops is the P2SH template:
// OP_HASH160 <20-byte hash> OP_EQUAL.
func isScriptHash(pops []parsedOpcode) bool {
	return len(pops) == 3 &&
		pops[0].opcode.value == OpHash160 &&
		pops[1].opcode.value == OpData1+19 &&
		len(pops[1].data) == 20 &&
		pops[2].opcode.value == OpEqual
}

// isPubKeyHash reports whether pops is the P2PKH template:
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func isPubKeyHash(pops []parsedOpcode) bool {
	return len(pops) == 5 &&
		pops[0].opcode.value == OpDup &&
		pops[1].opcode.value == OpHash160 &&
		pops[2].opcode.value == OpData1+19 &&
		len(pops[2].data) == 20 &&
		pops[3].opcode.value == OpEqualVerify &&
		pops[4].opcode.value == OpCheckSig
}

// isPubKey reports whether pops is the bare P2PK template:
// <33 or 65-byte pubkey> OP_CHECKSIG.
func isPubKey(pops []parsedOpcode) bool {
	if len(pops) != 2 || pops[1].opcode.value != OpCheckSig {
		return false
	}
	l := len(pops[0].data)
	return l == 33 || l == 65
}

// isMultiSig reports whether pops is the bare multisig template:
// OP_m <pubkey>... OP_n OP_CHECKMULTISIG.
func isMultiSig(pops []parsedOpcode) bool {
	if len(pops) < 4 {
		return false
	}
	if !isSmallInt(pops[0].opcode.value) {
		return false
	}
	numSigs := asSmallInt(pops[0].opcode.value)

	numPubKeys := len(pops) - 3
	for _, pop := range pops[1 : 1+numPubKeys] {
		l := len(pop.data)
		if l != 33 && l != 65 {
			return false
		}
	}
	last := pops[len(pops)-1]
	penult := pops[len(pops)-2]
	if last.opcode.value != OpCheckMultiSig {
		return false
	}
	if !isSmallInt(penult.opcode.value) {
		return false
	}
	if asSmallInt(penult.opcode.value) != numPubKeys {
		return false
	}
	return numSigs <= numPubKeys
}

// isNullData reports whether pops is an unspendable data-carrier output:
// OP_RETURN <push>.
func isNullData(pops []parsedOpcode) bool {
	if len(pops) < 1 || pops[0].opcode.value != OpReturn {
		return false
	}
	for _, pop := range pops[1:] {
		if pop.opcode.value > OpPushData4 {
			return false
		}
	}
	return true
}

func isSmallInt(op byte) bool { return op == OpFalse || (op >= Op1 && op <= Op16) }

func asSmallInt(op byte) int {
	if op == OpFalse {
		return 0
	}
	return int(op - Op1 + 1)
}

// GetScriptClass classifies scriptPubKey as one of the standard
// templates, or NonStandardTy if it matches none.
func GetScriptClass(scriptPubKey []byte) ScriptClass {
	pops, err := parseScript(scriptPubKey)
	if err != nil {
		return NonStandardTy
	}
	switch {
	case isPubKeyHash(pops):
		return PubKeyHashTy
	case isScriptHash(pops):
		return ScriptHashTy
	case isPubKey(pops):
		return PubKeyTy
	case isMultiSig(pops):
		return MultiSigTy
	case isNullData(pops):
		return NullDataTy
	default:
		return NonStandardTy
	}
}

// IsStandard reports whether scriptPubKey follows a recognised
// standard template, used by Claims admission's standardness check
// (spec.md §4.4 step 1).
func IsStandard(scriptPubKey []byte) bool {
	return GetScriptClass(scriptPubKey) != NonStandardTy
}

// PayToAddrScript builds the canonical P2PKH scriptPubKey paying the
// given 20-byte public-key hash.
func PayToAddrScript(pubKeyHash primitives.Hash160) []byte {
	var buf bytes.Buffer
	buf.WriteByte(OpDup)
	buf.WriteByte(OpHash160)
	buf.WriteByte(byte(len(pubKeyHash)))
	buf.Write(pubKeyHash[:])
	buf.WriteByte(OpEqualVerify)
	buf.WriteByte(OpCheckSig)
	return buf.Bytes()
}

// PayToScriptHashScript builds the canonical P2SH scriptPubKey paying
// the given 20-byte redeem-script hash.
func PayToScriptHashScript(scriptHash primitives.Hash160) []byte {
	var buf bytes.Buffer
	buf.WriteByte(OpHash160)
	buf.WriteByte(byte(len(scriptHash)))
	buf.Write(scriptHash[:])
	buf.WriteByte(OpEqual)
	return buf.Bytes()
}

// SignatureScript builds a standard P2PKH signature script from a DER
// signature (with hash-type byte already appended) and the spender's
// serialized public key.
func SignatureScript(sig, pubKey []byte) []byte {
	var buf bytes.Buffer
	writePush(&buf, sig)
	writePush(&buf, pubKey)
	return buf.Bytes()
}

func writePush(buf *bytes.Buffer, data []byte) {
	l := len(data)
	switch {
	case l <= 0x4b:
		buf.WriteByte(byte(l))
	case l <= 0xff:
		buf.WriteByte(OpPushData1)
		buf.WriteByte(byte(l))
	case l <= 0xffff:
		buf.WriteByte(OpPushData2)
		buf.WriteByte(byte(l))
		buf.WriteByte(byte(l >> 8))
	default:
		buf.WriteByte(OpPushData4)
		for i := 0; i < 4; i++ {
			buf.WriteByte(byte(l >> uint(8*i)))
		}
	}
	buf.Write(data)
}

// EncodeAddress base58check-encodes a public-key hash with the given
// chain's address version byte (spec.md's chain-parameterized address
// prefix, see chaincfg).
func EncodeAddress(pubKeyHash primitives.Hash160, version byte) string {
	return base58check.CheckEncode(pubKeyHash[:], version)
}
