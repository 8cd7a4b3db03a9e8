// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"github.com/coreledger-node/node/primitives/ecc"
)

// checkSig implements OP_CHECKSIG: pop a pubkey and signature, verify the
// signature against the transaction's SIGHASH-modified hash.
func (vm *Engine) checkSig() (bool, error) {
	pkBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}
	fullSig, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}
	if len(fullSig) == 0 {
		return false, nil
	}
	return vm.verifySignature(fullSig, pkBytes)
}

// verifySignature validates a single DER signature with trailing hash
// type byte against pubKeyBytes over the current script's subscript.
func (vm *Engine) verifySignature(fullSig, pubKeyBytes []byte) (bool, error) {
	hashType := SigHashType(fullSig[len(fullSig)-1])
	sigBytes := fullSig[:len(fullSig)-1]

	sig, err := ecc.ParseDERSignature(sigBytes)
	if err != nil {
		return false, nil
	}
	pubKey, err := ecc.ParsePublicKey(pubKeyBytes)
	if err != nil {
		return false, nil
	}

	subScript := vm.subScript()
	hash, err := CalcSignatureHash(subScript, hashType, vm.tx, vm.txIdx)
	if err != nil {
		return false, err
	}

	return ecc.Verify(pubKey, hash, sig), nil
}

// subScript returns the currently executing script, as the raw bytes
// following the last executed OP_CODESEPARATOR (spec.md §4.1).
func (vm *Engine) subScript() []byte {
	pops := vm.scripts[vm.scriptIdx][vm.lastCodeSep:]
	var out []byte
	for _, pop := range pops {
		out = append(out, reconstructOp(pop)...)
	}
	return out
}

// checkMultiSig implements OP_CHECKMULTISIG: pop the pubkey count and the
// pubkeys, the signature count and the signatures, and one extra unused
// item, then verify that every signature matches, in order, some subset
// of the given public keys.
func (vm *Engine) checkMultiSig() (bool, error) {
	numPubKeys, err := vm.dstack.PopInt()
	if err != nil {
		return false, err
	}
	if numPubKeys < 0 || numPubKeys > MaxPubKeysPerMultiSig {
		return false, scriptError(ErrInvalidPubKeyCount, "invalid pubkey count in OP_CHECKMULTISIG")
	}
	numKeys := int(numPubKeys)
	pubKeys := make([][]byte, numKeys)
	for i := 0; i < numKeys; i++ {
		pk, err := vm.dstack.PopByteArray()
		if err != nil {
			return false, err
		}
		pubKeys[numKeys-i-1] = pk
	}

	numSigs, err := vm.dstack.PopInt()
	if err != nil {
		return false, err
	}
	if numSigs < 0 || int(numSigs) > numKeys {
		return false, scriptError(ErrInvalidSignatureCount, "invalid signature count in OP_CHECKMULTISIG")
	}
	nSigs := int(numSigs)
	sigs := make([][]byte, nSigs)
	for i := 0; i < nSigs; i++ {
		s, err := vm.dstack.PopByteArray()
		if err != nil {
			return false, err
		}
		sigs[nSigs-i-1] = s
	}

	// Historical off-by-one bug preserved from Bitcoin Core: an extra
	// stack item is consumed and ignored.
	if _, err := vm.dstack.PopByteArray(); err != nil {
		return false, err
	}

	sigIdx, keyIdx := 0, 0
	for sigIdx < nSigs {
		if keyIdx >= numKeys {
			return false, nil
		}
		if len(sigs[sigIdx]) == 0 {
			keyIdx++
			continue
		}
		ok, err := vm.verifySignature(sigs[sigIdx], pubKeys[keyIdx])
		if err != nil {
			return false, err
		}
		if ok {
			sigIdx++
		}
		keyIdx++
	}
	return true, nil
}

// checkLockTimeVerify implements OP_CHECKLOCKTIMEVERIFY: the top stack
// item must be a lock time no later than the transaction's own LockTime,
// and the input under evaluation must not have final sequence (else the
// lock time has no effect and the check is meaningless by construction).
func (vm *Engine) checkLockTimeVerify() error {
	if !vm.hasFlag(ScriptVerifyCheckLockTimeVerify) {
		return nil
	}
	lockTime, err := vm.dstack.PeekInt(0)
	if err != nil {
		return err
	}
	if lockTime < 0 {
		return scriptError(ErrNegativeLockTime, "negative lock time")
	}
	if (lockTime < 500000000) != (scriptNum(vm.tx.LockTime) < 500000000) {
		return scriptError(ErrUnsatisfiedLockTime, "mismatched lock time type")
	}
	if lockTime > scriptNum(vm.tx.LockTime) {
		return scriptError(ErrUnsatisfiedLockTime, "lock time requirement not satisfied")
	}
	if vm.tx.TxIn[vm.txIdx].Sequence == 0xffffffff {
		return scriptError(ErrUnsatisfiedLockTime, "transaction input is final")
	}
	return nil
}

// checkSequenceVerify implements OP_CHECKSEQUENCEVERIFY: the top stack
// item's relative-lock-time bits must be no greater than the evaluated
// input's own sequence number.
func (vm *Engine) checkSequenceVerify() error {
	if !vm.hasFlag(ScriptVerifyCheckSequenceVerify) {
		return nil
	}
	sequence, err := vm.dstack.PeekInt(0)
	if err != nil {
		return err
	}
	if sequence < 0 {
		return scriptError(ErrNegativeLockTime, "negative sequence")
	}
	const sequenceLockTimeDisableFlag = 1 << 31
	if int64(sequence)&sequenceLockTimeDisableFlag != 0 {
		return nil
	}
	if vm.tx.Version < 2 {
		return scriptError(ErrUnsatisfiedLockTime, "version 1 transaction cannot use relative lock time")
	}
	txSequence := scriptNum(vm.tx.TxIn[vm.txIdx].Sequence)
	if int64(txSequence)&sequenceLockTimeDisableFlag != 0 {
		return scriptError(ErrUnsatisfiedLockTime, "input sequence disables relative lock time")
	}
	const sequenceLockTimeTypeFlag = 1 << 22
	const sequenceLockTimeMask = 0x0000ffff
	if (sequence&sequenceLockTimeTypeFlag != 0) != (txSequence&sequenceLockTimeTypeFlag != 0) {
		return scriptError(ErrUnsatisfiedLockTime, "mismatched relative lock time type")
	}
	if sequence&sequenceLockTimeMask > txSequence&sequenceLockTimeMask {
		return scriptError(ErrUnsatisfiedLockTime, "relative lock time requirement not satisfied")
	}
	return nil
}
