// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// Opcode values, per spec.md §4.1's opcode classes: constants, flow
// control, stack manipulation, bit logic, arithmetic, crypto, locktime.
const (
	OpFalse               = 0x00
	OpData1               = 0x01
	OpPushData1           = 0x4c
	OpPushData2           = 0x4d
	OpPushData4           = 0x4e
	Op1Negate             = 0x4f
	OpReserved            = 0x50
	OpTrue                = 0x51
	Op1                   = 0x51
	Op2                   = 0x52
	Op16                  = 0x60
	OpNop                 = 0x61
	OpIf                  = 0x63
	OpNotIf               = 0x64
	OpVerIf               = 0x65
	OpVerNotIf            = 0x66
	OpElse                = 0x67
	OpEndIf               = 0x68
	OpVerify              = 0x69
	OpReturn              = 0x6a
	OpToAltStack          = 0x6b
	OpFromAltStack        = 0x6c
	Op2Drop               = 0x6d
	Op2Dup                = 0x6e
	Op3Dup                = 0x6f
	Op2Over               = 0x70
	Op2Rot                = 0x71
	Op2Swap               = 0x72
	OpIfDup               = 0x73
	OpDepth               = 0x74
	OpDrop                = 0x75
	OpDup                 = 0x76
	OpNip                 = 0x77
	OpOver                = 0x78
	OpPick                = 0x79
	OpRoll                = 0x7a
	OpRot                 = 0x7b
	OpSwap                = 0x7c
	OpTuck                = 0x7d
	OpSize                = 0x82
	OpEqual               = 0x87
	OpEqualVerify         = 0x88
	Op1Add                = 0x8b
	Op1Sub                = 0x8c
	OpNegate              = 0x8f
	OpAbs                 = 0x90
	OpNot                 = 0x91
	Op0NotEqual           = 0x92
	OpAdd                 = 0x93
	OpSub                 = 0x94
	OpBoolAnd             = 0x9a
	OpBoolOr              = 0x9b
	OpNumEqual            = 0x9c
	OpNumEqualVerify      = 0x9d
	OpNumNotEqual         = 0x9e
	OpLessThan            = 0x9f
	OpGreaterThan         = 0xa0
	OpLessThanOrEqual     = 0xa1
	OpGreaterThanOrEqual  = 0xa2
	OpMin                 = 0xa3
	OpMax                 = 0xa4
	OpWithin              = 0xa5
	OpRipemd160           = 0xa6
	OpSha1                = 0xa7
	OpSha256              = 0xa8
	OpHash160             = 0xa9
	OpHash256             = 0xaa
	OpCodeSeparator       = 0xab
	OpCheckSig            = 0xac
	OpCheckSigVerify      = 0xad
	OpCheckMultiSig       = 0xae
	OpCheckMultiSigVerify = 0xaf
	OpNop1                = 0xb0
	OpCheckLockTimeVerify = 0xb1
	OpCheckSequenceVerify = 0xb2
	OpNop4                = 0xb3
	OpNop10               = 0xb9
	OpInvalid             = 0xff
)

// MaxScriptSize is the maximum allowed length of a raw script.
const MaxScriptSize = 10000

// MaxScriptElementSize is the maximum allowed size, in bytes, of an
// element pushed onto the stack.
const MaxScriptElementSize = 520

// MaxOpsPerScript is the maximum allowed number of non-push opcodes in a
// script.
const MaxOpsPerScript = 201

// MaxPubKeysPerMultiSig is the maximum number of public keys a bare
// multisig output may list.
const MaxPubKeysPerMultiSig = 20

type opcode struct {
	value  byte
	name   string
	length int
	opfunc func(*parsedOpcode, *Engine) error
}

// parsedOpcode is one decoded instruction of a script, paired with any
// pushed data that followed it.
type parsedOpcode struct {
	opcode *opcode
	data   []byte
}

func (pop *parsedOpcode) isDisabled() bool { return false }

func (pop *parsedOpcode) alwaysIllegal() bool {
	switch pop.opcode.value {
	case OpVerIf, OpVerNotIf:
		return true
	}
	return false
}

func (pop *parsedOpcode) isConditional() bool {
	switch pop.opcode.value {
	case OpIf, OpNotIf, OpElse, OpEndIf:
		return true
	}
	return false
}

func (pop *parsedOpcode) checkMinimalDataPush() error {
	data := pop.data
	opc := pop.opcode.value
	if opc > OpPushData4 {
		return nil
	}

	if opc == OpFalse {
		return nil
	} else if opc == OpData1 && len(data) == 1 && data[0] >= 1 && data[0] <= 16 {
		return scriptError(ErrMinimalData, "non-minimally encoded single byte push")
	} else if opc == Op1Negate && len(data) == 1 && data[0] == 0x81 {
		return nil
	}

	if len(data) == 0 {
		return nil
	}

	switch {
	case len(data) == 1 && data[0] >= 1 && data[0] <= 16:
	case len(data) == 1 && data[0] == 0x81:
	case len(data) <= 75:
		if int(opc) != len(data) {
			return scriptError(ErrMinimalData, "data push not using OP_DATA_N")
		}
	case len(data) <= 255:
		if opc != OpPushData1 {
			return scriptError(ErrMinimalData, "data push should have used OP_PUSHDATA1")
		}
	case len(data) <= 65535:
		if opc != OpPushData2 {
			return scriptError(ErrMinimalData, "data push should have used OP_PUSHDATA2")
		}
	}
	return nil
}

var opcodeArray [256]opcode

func init() {
	for i := 0; i <= 0x4b; i++ {
		opcodeArray[i] = opcode{byte(i), fmt.Sprintf("OP_DATA_%d", i), i + 1, opcodePushData}
	}
	opcodeArray[0] = opcode{0x00, "OP_0", 1, opcodePushData}
	opcodeArray[OpPushData1] = opcode{OpPushData1, "OP_PUSHDATA1", -1, opcodePushData}
	opcodeArray[OpPushData2] = opcode{OpPushData2, "OP_PUSHDATA2", -2, opcodePushData}
	opcodeArray[OpPushData4] = opcode{OpPushData4, "OP_PUSHDATA4", -4, opcodePushData}
	opcodeArray[Op1Negate] = opcode{Op1Negate, "OP_1NEGATE", 1, opcodeNNeg1}
	opcodeArray[OpReserved] = opcode{OpReserved, "OP_RESERVED", 1, opcodeReserved}
	for i := Op1; i <= Op16; i++ {
		n := byte(i - Op1 + 1)
		opcodeArray[i] = opcode{byte(i), fmt.Sprintf("OP_%d", n), 1, makeOpcodeN(n)}
	}
	opcodeArray[OpNop] = opcode{OpNop, "OP_NOP", 1, opcodeNop}
	opcodeArray[OpIf] = opcode{OpIf, "OP_IF", 1, opcodeIf}
	opcodeArray[OpNotIf] = opcode{OpNotIf, "OP_NOTIF", 1, opcodeNotIf}
	opcodeArray[OpVerIf] = opcode{OpVerIf, "OP_VERIF", 1, opcodeReserved}
	opcodeArray[OpVerNotIf] = opcode{OpVerNotIf, "OP_VERNOTIF", 1, opcodeReserved}
	opcodeArray[OpElse] = opcode{OpElse, "OP_ELSE", 1, opcodeElse}
	opcodeArray[OpEndIf] = opcode{OpEndIf, "OP_ENDIF", 1, opcodeEndif}
	opcodeArray[OpVerify] = opcode{OpVerify, "OP_VERIFY", 1, opcodeVerify}
	opcodeArray[OpReturn] = opcode{OpReturn, "OP_RETURN", 1, opcodeReturn}
	opcodeArray[OpToAltStack] = opcode{OpToAltStack, "OP_TOALTSTACK", 1, opcodeToAltStack}
	opcodeArray[OpFromAltStack] = opcode{OpFromAltStack, "OP_FROMALTSTACK", 1, opcodeFromAltStack}
	opcodeArray[Op2Drop] = opcode{Op2Drop, "OP_2DROP", 1, opcode2Drop}
	opcodeArray[Op2Dup] = opcode{Op2Dup, "OP_2DUP", 1, opcode2Dup}
	opcodeArray[Op3Dup] = opcode{Op3Dup, "OP_3DUP", 1, opcode3Dup}
	opcodeArray[Op2Over] = opcode{Op2Over, "OP_2OVER", 1, opcode2Over}
	opcodeArray[Op2Rot] = opcode{Op2Rot, "OP_2ROT", 1, opcode2Rot}
	opcodeArray[Op2Swap] = opcode{Op2Swap, "OP_2SWAP", 1, opcode2Swap}
	opcodeArray[OpIfDup] = opcode{OpIfDup, "OP_IFDUP", 1, opcodeIfDup}
	opcodeArray[OpDepth] = opcode{OpDepth, "OP_DEPTH", 1, opcodeDepth}
	opcodeArray[OpDrop] = opcode{OpDrop, "OP_DROP", 1, opcodeDrop}
	opcodeArray[OpDup] = opcode{OpDup, "OP_DUP", 1, opcodeDup}
	opcodeArray[OpNip] = opcode{OpNip, "OP_NIP", 1, opcodeNip}
	opcodeArray[OpOver] = opcode{OpOver, "OP_OVER", 1, opcodeOver}
	opcodeArray[OpPick] = opcode{OpPick, "OP_PICK", 1, opcodePick}
	opcodeArray[OpRoll] = opcode{OpRoll, "OP_ROLL", 1, opcodeRoll}
	opcodeArray[OpRot] = opcode{OpRot, "OP_ROT", 1, opcodeRot}
	opcodeArray[OpSwap] = opcode{OpSwap, "OP_SWAP", 1, opcodeSwap}
	opcodeArray[OpTuck] = opcode{OpTuck, "OP_TUCK", 1, opcodeTuck}
	opcodeArray[OpSize] = opcode{OpSize, "OP_SIZE", 1, opcodeSize}
	opcodeArray[OpEqual] = opcode{OpEqual, "OP_EQUAL", 1, opcodeEqual}
	opcodeArray[OpEqualVerify] = opcode{OpEqualVerify, "OP_EQUALVERIFY", 1, opcodeEqualVerify}
	opcodeArray[Op1Add] = opcode{Op1Add, "OP_1ADD", 1, opcode1Add}
	opcodeArray[Op1Sub] = opcode{Op1Sub, "OP_1SUB", 1, opcode1Sub}
	opcodeArray[OpNegate] = opcode{OpNegate, "OP_NEGATE", 1, opcodeNegate}
	opcodeArray[OpAbs] = opcode{OpAbs, "OP_ABS", 1, opcodeAbs}
	opcodeArray[OpNot] = opcode{OpNot, "OP_NOT", 1, opcodeNot}
	opcodeArray[Op0NotEqual] = opcode{Op0NotEqual, "OP_0NOTEQUAL", 1, opcode0NotEqual}
	opcodeArray[OpAdd] = opcode{OpAdd, "OP_ADD", 1, opcodeAdd}
	opcodeArray[OpSub] = opcode{OpSub, "OP_SUB", 1, opcodeSub}
	opcodeArray[OpBoolAnd] = opcode{OpBoolAnd, "OP_BOOLAND", 1, opcodeBoolAnd}
	opcodeArray[OpBoolOr] = opcode{OpBoolOr, "OP_BOOLOR", 1, opcodeBoolOr}
	opcodeArray[OpNumEqual] = opcode{OpNumEqual, "OP_NUMEQUAL", 1, opcodeNumEqual}
	opcodeArray[OpNumEqualVerify] = opcode{OpNumEqualVerify, "OP_NUMEQUALVERIFY", 1, opcodeNumEqualVerify}
	opcodeArray[OpNumNotEqual] = opcode{OpNumNotEqual, "OP_NUMNOTEQUAL", 1, opcodeNumNotEqual}
	opcodeArray[OpLessThan] = opcode{OpLessThan, "OP_LESSTHAN", 1, opcodeLessThan}
	opcodeArray[OpGreaterThan] = opcode{OpGreaterThan, "OP_GREATERTHAN", 1, opcodeGreaterThan}
	opcodeArray[OpLessThanOrEqual] = opcode{OpLessThanOrEqual, "OP_LESSTHANOREQUAL", 1, opcodeLessThanOrEqual}
	opcodeArray[OpGreaterThanOrEqual] = opcode{OpGreaterThanOrEqual, "OP_GREATERTHANOREQUAL", 1, opcodeGreaterThanOrEqual}
	opcodeArray[OpMin] = opcode{OpMin, "OP_MIN", 1, opcodeMin}
	opcodeArray[OpMax] = opcode{OpMax, "OP_MAX", 1, opcodeMax}
	opcodeArray[OpWithin] = opcode{OpWithin, "OP_WITHIN", 1, opcodeWithin}
	opcodeArray[OpRipemd160] = opcode{OpRipemd160, "OP_RIPEMD160", 1, opcodeRipemd160}
	opcodeArray[OpSha1] = opcode{OpSha1, "OP_SHA1", 1, opcodeSha1}
	opcodeArray[OpSha256] = opcode{OpSha256, "OP_SHA256", 1, opcodeSha256}
	opcodeArray[OpHash160] = opcode{OpHash160, "OP_HASH160", 1, opcodeHash160}
	opcodeArray[OpHash256] = opcode{OpHash256, "OP_HASH256", 1, opcodeHash256}
	opcodeArray[OpCodeSeparator] = opcode{OpCodeSeparator, "OP_CODESEPARATOR", 1, opcodeCodeSeparator}
	opcodeArray[OpCheckSig] = opcode{OpCheckSig, "OP_CHECKSIG", 1, opcodeCheckSig}
	opcodeArray[OpCheckSigVerify] = opcode{OpCheckSigVerify, "OP_CHECKSIGVERIFY", 1, opcodeCheckSigVerify}
	opcodeArray[OpCheckMultiSig] = opcode{OpCheckMultiSig, "OP_CHECKMULTISIG", 1, opcodeCheckMultiSig}
	opcodeArray[OpCheckMultiSigVerify] = opcode{OpCheckMultiSigVerify, "OP_CHECKMULTISIGVERIFY", 1, opcodeCheckMultiSigVerify}
	opcodeArray[OpCheckLockTimeVerify] = opcode{OpCheckLockTimeVerify, "OP_CHECKLOCKTIMEVERIFY", 1, opcodeCheckLockTimeVerify}
	opcodeArray[OpCheckSequenceVerify] = opcode{OpCheckSequenceVerify, "OP_CHECKSEQUENCEVERIFY", 1, opcodeCheckSequenceVerify}
	for i := OpNop1; i <= OpNop10; i++ {
		if i == OpCheckLockTimeVerify || i == OpCheckSequenceVerify {
			continue
		}
		opcodeArray[i] = opcode{byte(i), fmt.Sprintf("OP_NOP%d", i-OpNop1+1), 1, opcodeNop}
	}
}

func makeOpcodeN(n byte) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error {
		vm.dstack.PushInt(scriptNum(n))
		return nil
	}
}

// parseScript decodes a raw script into its sequence of parsedOpcodes.
func parseScript(script []byte) ([]parsedOpcode, error) {
	if len(script) > MaxScriptSize {
		return nil, scriptError(ErrScriptTooBig, "script too big")
	}
	var out []parsedOpcode
	i := 0
	for i < len(script) {
		instr := script[i]
		op := opcodeArray[instr]
		pop := parsedOpcode{opcode: &op}

		switch {
		case op.length == 1:
			i++
		case op.length > 1:
			if len(script[i:]) < op.length {
				return nil, scriptError(ErrInternal, "not enough data for push instruction")
			}
			pop.data = script[i+1 : i+op.length]
			i += op.length
		case op.length < 0:
			i++
			var l int
			switch op.length {
			case -1:
				if i >= len(script) {
					return nil, scriptError(ErrInternal, "not enough data for OP_PUSHDATA1")
				}
				l = int(script[i])
				i++
			case -2:
				if i+2 > len(script) {
					return nil, scriptError(ErrInternal, "not enough data for OP_PUSHDATA2")
				}
				l = int(binary.LittleEndian.Uint16(script[i:]))
				i += 2
			case -4:
				if i+4 > len(script) {
					return nil, scriptError(ErrInternal, "not enough data for OP_PUSHDATA4")
				}
				l = int(binary.LittleEndian.Uint32(script[i:]))
				i += 4
			}
			if i+l > len(script) {
				return nil, scriptError(ErrInternal, "not enough data for pushed value")
			}
			pop.data = script[i : i+l]
			i += l
		default:
			return nil, scriptError(ErrReservedOpcode, fmt.Sprintf("unassigned opcode 0x%02x", instr))
		}
		out = append(out, pop)
	}
	return out, nil
}

func opcodePushData(pop *parsedOpcode, vm *Engine) error {
	vm.dstack.PushByteArray(pop.data)
	return nil
}

func opcodeNNeg1(pop *parsedOpcode, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(-1))
	return nil
}

func opcodeReserved(pop *parsedOpcode, vm *Engine) error {
	return scriptError(ErrReservedOpcode, "reserved opcode executed")
}

func opcodeNop(pop *parsedOpcode, vm *Engine) error { return nil }

const (
	opCondFalse = iota
	opCondTrue
	opCondSkip
)

func opcodeIf(pop *parsedOpcode, vm *Engine) error {
	condVal := opCondSkip
	if vm.isBranchExecuting() {
		ok, err := vm.dstack.PopBool()
		if err != nil {
			return err
		}
		condVal = opCondFalse
		if ok {
			condVal = opCondTrue
		}
	}
	vm.condStack = append(vm.condStack, condVal)
	return nil
}

func opcodeNotIf(pop *parsedOpcode, vm *Engine) error {
	condVal := opCondSkip
	if vm.isBranchExecuting() {
		ok, err := vm.dstack.PopBool()
		if err != nil {
			return err
		}
		condVal = opCondTrue
		if ok {
			condVal = opCondFalse
		}
	}
	vm.condStack = append(vm.condStack, condVal)
	return nil
}

func opcodeElse(pop *parsedOpcode, vm *Engine) error {
	if len(vm.condStack) == 0 {
		return scriptError(ErrUnbalancedConditional, "encountered OP_ELSE with no matching OP_IF")
	}
	top := len(vm.condStack) - 1
	switch vm.condStack[top] {
	case opCondTrue:
		vm.condStack[top] = opCondFalse
	case opCondFalse:
		vm.condStack[top] = opCondTrue
	case opCondSkip:
	}
	return nil
}

func opcodeEndif(pop *parsedOpcode, vm *Engine) error {
	if len(vm.condStack) == 0 {
		return scriptError(ErrUnbalancedConditional, "encountered OP_ENDIF with no matching OP_IF")
	}
	vm.condStack = vm.condStack[:len(vm.condStack)-1]
	return nil
}

func opcodeVerify(pop *parsedOpcode, vm *Engine) error {
	verified, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !verified {
		return scriptError(ErrVerify, "OP_VERIFY failed")
	}
	return nil
}

func opcodeReturn(pop *parsedOpcode, vm *Engine) error {
	return scriptError(ErrEarlyReturn, "script hit OP_RETURN")
}

func opcodeToAltStack(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.astack.PushByteArray(v)
	return nil
}

func opcodeFromAltStack(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.astack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushByteArray(v)
	return nil
}

func opcode2Drop(pop *parsedOpcode, vm *Engine) error { return vm.dstack.DropN(2) }
func opcode2Dup(pop *parsedOpcode, vm *Engine) error  { return vm.dstack.DupN(2) }
func opcode3Dup(pop *parsedOpcode, vm *Engine) error  { return vm.dstack.DupN(3) }
func opcode2Over(pop *parsedOpcode, vm *Engine) error { return vm.dstack.OverN(2) }
func opcode2Rot(pop *parsedOpcode, vm *Engine) error  { return vm.dstack.RotN(2) }
func opcode2Swap(pop *parsedOpcode, vm *Engine) error { return vm.dstack.SwapN(2) }

func opcodeIfDup(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	if asBool(v) {
		vm.dstack.PushByteArray(v)
	}
	return nil
}

func opcodeDepth(pop *parsedOpcode, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(vm.dstack.Depth()))
	return nil
}

func opcodeDrop(pop *parsedOpcode, vm *Engine) error { return vm.dstack.DropN(1) }
func opcodeDup(pop *parsedOpcode, vm *Engine) error  { return vm.dstack.DupN(1) }
func opcodeNip(pop *parsedOpcode, vm *Engine) error  { return vm.dstack.NipN(1) }
func opcodeOver(pop *parsedOpcode, vm *Engine) error { return vm.dstack.OverN(1) }

func opcodePick(pop *parsedOpcode, vm *Engine) error {
	n, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v, err := vm.dstack.PeekByteArray(int(n))
	if err != nil {
		return err
	}
	vm.dstack.PushByteArray(v)
	return nil
}

func opcodeRoll(pop *parsedOpcode, vm *Engine) error {
	n, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v, err := vm.dstack.nipN(int(n))
	if err != nil {
		return err
	}
	vm.dstack.PushByteArray(v)
	return nil
}

func opcodeRot(pop *parsedOpcode, vm *Engine) error  { return vm.dstack.RotN(1) }
func opcodeSwap(pop *parsedOpcode, vm *Engine) error { return vm.dstack.SwapN(1) }
func opcodeTuck(pop *parsedOpcode, vm *Engine) error { return vm.dstack.Tuck() }

func opcodeSize(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	vm.dstack.PushInt(scriptNum(len(v)))
	return nil
}

func opcodeEqual(pop *parsedOpcode, vm *Engine) error {
	a, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	b, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(bytes.Equal(a, b))
	return nil
}

func opcodeEqualVerify(pop *parsedOpcode, vm *Engine) error {
	if err := opcodeEqual(pop, vm); err != nil {
		return err
	}
	ok, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !ok {
		return scriptError(ErrEqualVerify, "OP_EQUALVERIFY failed")
	}
	return nil
}

func binaryArith(vm *Engine, f func(a, b scriptNum) scriptNum) error {
	b, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	a, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushInt(f(a, b))
	return nil
}

func unaryArith(vm *Engine, f func(a scriptNum) scriptNum) error {
	a, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushInt(f(a))
	return nil
}

func opcode1Add(pop *parsedOpcode, vm *Engine) error {
	return unaryArith(vm, func(a scriptNum) scriptNum { return a + 1 })
}
func opcode1Sub(pop *parsedOpcode, vm *Engine) error {
	return unaryArith(vm, func(a scriptNum) scriptNum { return a - 1 })
}
func opcodeNegate(pop *parsedOpcode, vm *Engine) error {
	return unaryArith(vm, func(a scriptNum) scriptNum { return -a })
}
func opcodeAbs(pop *parsedOpcode, vm *Engine) error {
	return unaryArith(vm, func(a scriptNum) scriptNum {
		if a < 0 {
			return -a
		}
		return a
	})
}
func opcodeNot(pop *parsedOpcode, vm *Engine) error {
	return unaryArith(vm, func(a scriptNum) scriptNum {
		if a == 0 {
			return 1
		}
		return 0
	})
}
func opcode0NotEqual(pop *parsedOpcode, vm *Engine) error {
	return unaryArith(vm, func(a scriptNum) scriptNum {
		if a != 0 {
			return 1
		}
		return 0
	})
}
func opcodeAdd(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return a + b })
}
func opcodeSub(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return a - b })
}
func boolToNum(b bool) scriptNum {
	if b {
		return 1
	}
	return 0
}
func opcodeBoolAnd(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a != 0 && b != 0) })
}
func opcodeBoolOr(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a != 0 || b != 0) })
}
func opcodeNumEqual(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a == b) })
}
func opcodeNumEqualVerify(pop *parsedOpcode, vm *Engine) error {
	if err := opcodeNumEqual(pop, vm); err != nil {
		return err
	}
	ok, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !ok {
		return scriptError(ErrNumEqualVerify, "OP_NUMEQUALVERIFY failed")
	}
	return nil
}
func opcodeNumNotEqual(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a != b) })
}
func opcodeLessThan(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a < b) })
}
func opcodeGreaterThan(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a > b) })
}
func opcodeLessThanOrEqual(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a <= b) })
}
func opcodeGreaterThanOrEqual(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum { return boolToNum(a >= b) })
}
func opcodeMin(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum {
		if a < b {
			return a
		}
		return b
	})
}
func opcodeMax(pop *parsedOpcode, vm *Engine) error {
	return binaryArith(vm, func(a, b scriptNum) scriptNum {
		if a > b {
			return a
		}
		return b
	})
}

func opcodeWithin(pop *parsedOpcode, vm *Engine) error {
	maxV, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	minV, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	x, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(x >= minV && x < maxV)
	return nil
}

func opcodeRipemd160(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	h := ripemd160.New()
	h.Write(v)
	vm.dstack.PushByteArray(h.Sum(nil))
	return nil
}

func opcodeSha1(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	h := sha1.Sum(v)
	vm.dstack.PushByteArray(h[:])
	return nil
}

func opcodeSha256(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	h := sha256.Sum256(v)
	vm.dstack.PushByteArray(h[:])
	return nil
}

func opcodeHash160(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	sha := sha256.Sum256(v)
	rh := ripemd160.New()
	rh.Write(sha[:])
	vm.dstack.PushByteArray(rh.Sum(nil))
	return nil
}

func opcodeHash256(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	first := sha256.Sum256(v)
	second := sha256.Sum256(first[:])
	vm.dstack.PushByteArray(second[:])
	return nil
}

func opcodeCodeSeparator(pop *parsedOpcode, vm *Engine) error {
	vm.lastCodeSep = vm.scriptOff
	return nil
}

func opcodeCheckSig(pop *parsedOpcode, vm *Engine) error {
	ok, err := vm.checkSig()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(ok)
	return nil
}

func opcodeCheckSigVerify(pop *parsedOpcode, vm *Engine) error {
	if err := opcodeCheckSig(pop, vm); err != nil {
		return err
	}
	ok, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !ok {
		return scriptError(ErrCheckSigVerify, "OP_CHECKSIGVERIFY failed")
	}
	return nil
}

func opcodeCheckMultiSig(pop *parsedOpcode, vm *Engine) error {
	ok, err := vm.checkMultiSig()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(ok)
	return nil
}

func opcodeCheckMultiSigVerify(pop *parsedOpcode, vm *Engine) error {
	if err := opcodeCheckMultiSig(pop, vm); err != nil {
		return err
	}
	ok, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !ok {
		return scriptError(ErrCheckMultiSigVerify, "OP_CHECKMULTISIGVERIFY failed")
	}
	return nil
}

func opcodeCheckLockTimeVerify(pop *parsedOpcode, vm *Engine) error {
	return vm.checkLockTimeVerify()
}

func opcodeCheckSequenceVerify(pop *parsedOpcode, vm *Engine) error {
	return vm.checkSequenceVerify()
}
