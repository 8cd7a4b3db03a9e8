// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// GetSigOpCount counts the number of signature operations a script
// requires: OP_CHECKSIG and OP_CHECKSIGVERIFY count as one each;
// OP_CHECKMULTISIG and OP_CHECKMULTISIGVERIFY count as the number of
// public keys the immediately preceding small-integer push names, or 20
// (the protocol maximum) if no such push precedes it.
func GetSigOpCount(script []byte) int {
	pops, err := parseScript(script)
	if err != nil {
		return 0
	}
	return getSigOpCount(pops)
}

func getSigOpCount(pops []parsedOpcode) int {
	n := 0
	lastOp := byte(0xff) // no opcode occupies 0xff; never matches Op1..Op16
	for _, pop := range pops {
		switch pop.opcode.value {
		case OpCheckSig, OpCheckSigVerify:
			n++
		case OpCheckMultiSig, OpCheckMultiSigVerify:
			if lastOp >= Op1 && lastOp <= Op16 {
				n += int(lastOp - Op1 + 1)
			} else {
				n += 20
			}
		}
		lastOp = pop.opcode.value
	}
	return n
}

// GetScriptSigOpCount counts the sigops a signature script contributes
// towards a P2SH output: the data of sigScript's last push is parsed as
// the redeem script and its sigops are counted, rather than those of the
// (trivially sigop-free) P2SH scriptPubKey. It returns 0 if the last
// opcode is not a non-empty push or its data does not parse.
func GetScriptSigOpCount(sigScript []byte) int {
	pops, err := parseScript(sigScript)
	if err != nil || len(pops) == 0 {
		return 0
	}
	last := pops[len(pops)-1]
	if last.opcode.value > OpPushData4 || len(last.data) == 0 {
		return 0
	}
	redeemPops, err := parseScript(last.data)
	if err != nil {
		return 0
	}
	return getSigOpCount(redeemPops)
}
