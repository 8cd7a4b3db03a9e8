// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txscript implements the stack-based script evaluator of
// spec.md §4.1 (C2): the standard opcode set, P2PK/P2PKH/P2SH/bare
// multisig/null-data templates, SIGHASH-modified signature verification,
// and a pluggable eval-hook so alt-chain opcodes (e.g. name operations)
// can be layered over the default opcode table without forking it.
package txscript

import (
	"fmt"

	"github.com/coreledger-node/node/wire"
)

// ScriptFlags is a bitmask of additional verification rules.
type ScriptFlags uint32

// Verification flags.
const (
	ScriptNoFlags                   ScriptFlags = 0
	ScriptBip16                     ScriptFlags = 1 << 0
	ScriptVerifyDERSignature        ScriptFlags = 1 << 1
	ScriptVerifyLowS                ScriptFlags = 1 << 2
	ScriptVerifyCleanStack          ScriptFlags = 1 << 3
	ScriptVerifyCheckLockTimeVerify ScriptFlags = 1 << 4
	ScriptVerifyCheckSequenceVerify ScriptFlags = 1 << 5
)

// MaxStackSize is the maximum combined height of stack and alt stack.
const MaxStackSize = 1000

// EvalHook lets an alt-chain extend the default opcode set (spec.md
// §4.1, §9 "Script evaluator polymorphism"): TryEval is offered every
// opcode before the default table runs, and may claim it by returning
// handled=true.
type EvalHook interface {
	TryEval(opcodeValue byte, data []byte, vm *Engine) (handled bool, err error)
}

// Engine is the virtual machine that executes a signature script against
// a public key script.
type Engine struct {
	scripts         [][]parsedOpcode
	scriptIdx       int
	scriptOff       int
	lastCodeSep     int
	dstack          stack
	astack          stack
	condStack       []int
	numOps          int
	flags           ScriptFlags
	tx              *wire.MsgTx
	txIdx           int
	inputValue      int64
	isP2SH          bool
	savedFirstStack [][]byte
	hook            EvalHook
}

// NewEngine builds a script engine to validate txIdx's signature script
// against scriptPubKey.
func NewEngine(scriptPubKey []byte, tx *wire.MsgTx, txIdx int, flags ScriptFlags, hook EvalHook) (*Engine, error) {
	if txIdx < 0 || txIdx >= len(tx.TxIn) {
		return nil, scriptError(ErrInvalidIndex, "transaction input index out of bounds")
	}
	scriptSig := tx.TxIn[txIdx].SignatureScript

	sigPops, err := parseScript(scriptSig)
	if err != nil {
		return nil, err
	}
	pkPops, err := parseScript(scriptPubKey)
	if err != nil {
		return nil, err
	}

	for _, pop := range sigPops {
		if pop.opcode.value > Op16 {
			return nil, scriptError(ErrNotPushOnly, "signature script is not push only")
		}
	}

	vm := &Engine{
		scripts: [][]parsedOpcode{sigPops, pkPops},
		tx:      tx,
		txIdx:   txIdx,
		flags:   flags,
		hook:    hook,
	}

	if flags&ScriptBip16 != 0 && isScriptHash(pkPops) {
		vm.isP2SH = true
	}

	// Zero-length scripts occur in the wild (an empty signature script
	// is valid, e.g. some coinbase-like or anyone-can-spend outputs);
	// skip straight past them rather than tripping validPC on the very
	// first Step.
	for vm.scriptIdx < len(vm.scripts) && len(vm.scripts[vm.scriptIdx]) == 0 {
		vm.scriptIdx++
	}

	return vm, nil
}

func (vm *Engine) hasFlag(flag ScriptFlags) bool { return vm.flags&flag == flag }

func (vm *Engine) isBranchExecuting() bool {
	if len(vm.condStack) == 0 {
		return true
	}
	return vm.condStack[len(vm.condStack)-1] == opCondTrue
}

func (vm *Engine) executeOpcode(pop *parsedOpcode) error {
	if pop.alwaysIllegal() {
		return scriptError(ErrReservedOpcode, fmt.Sprintf("attempt to execute reserved opcode %s", pop.opcode.name))
	}

	if pop.opcode.value > Op16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			return scriptError(ErrTooManyOperations, fmt.Sprintf("exceeded max operation limit of %d", MaxOpsPerScript))
		}
	} else if len(pop.data) > MaxScriptElementSize {
		return scriptError(ErrElementTooBig, fmt.Sprintf("element size %d exceeds max allowed size %d", len(pop.data), MaxScriptElementSize))
	}

	if !vm.isBranchExecuting() && !pop.isConditional() {
		return nil
	}

	if vm.isBranchExecuting() && pop.opcode.value >= 0 && pop.opcode.value <= OpPushData4 {
		if err := pop.checkMinimalDataPush(); err != nil {
			return err
		}
	}

	if vm.hook != nil {
		handled, err := vm.hook.TryEval(pop.opcode.value, pop.data, vm)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	return pop.opcode.opfunc(pop, vm)
}

func (vm *Engine) validPC() error {
	if vm.scriptIdx >= len(vm.scripts) {
		return scriptError(ErrInvalidProgramCounter, "past input scripts")
	}
	if vm.scriptOff >= len(vm.scripts[vm.scriptIdx]) {
		return scriptError(ErrInvalidProgramCounter, "past input scripts")
	}
	return nil
}

// Step executes the next instruction, returning done=true once the last
// script has finished.
func (vm *Engine) Step() (done bool, err error) {
	if err := vm.validPC(); err != nil {
		return true, err
	}
	op := &vm.scripts[vm.scriptIdx][vm.scriptOff]
	vm.scriptOff++

	if err := vm.executeOpcode(op); err != nil {
		return true, err
	}

	if vm.dstack.Depth()+vm.astack.Depth() > MaxStackSize {
		return false, scriptError(ErrStackOverflow, "combined stack size exceeds limit")
	}

	if vm.scriptOff >= len(vm.scripts[vm.scriptIdx]) {
		if len(vm.condStack) != 0 {
			return false, scriptError(ErrUnbalancedConditional, "end of script reached in conditional execution")
		}

		_ = vm.astack.DropN(vm.astack.Depth())
		vm.numOps = 0
		vm.scriptOff = 0
		vm.lastCodeSep = 0

		if vm.scriptIdx == 0 && vm.isP2SH {
			vm.scriptIdx++
			vm.savedFirstStack = vm.getStack(&vm.dstack)
		} else if vm.scriptIdx == 1 && vm.isP2SH {
			vm.scriptIdx++
			if err := vm.CheckErrorCondition(false); err != nil {
				return false, err
			}
			redeemScript := vm.savedFirstStack[len(vm.savedFirstStack)-1]
			pops, err := parseScript(redeemScript)
			if err != nil {
				return false, err
			}
			vm.scripts = append(vm.scripts, pops)
			vm.setStack(&vm.dstack, vm.savedFirstStack[:len(vm.savedFirstStack)-1])
		} else {
			vm.scriptIdx++
		}

		if vm.scriptIdx < len(vm.scripts) && len(vm.scripts[vm.scriptIdx]) == 0 {
			vm.scriptIdx++
		}
		if vm.scriptIdx >= len(vm.scripts) {
			return true, nil
		}
	}
	return false, nil
}

func (vm *Engine) getStack(s *stack) [][]byte {
	out := make([][]byte, s.Depth())
	for i := range out {
		out[i], _ = s.PeekByteArray(len(out) - i - 1)
	}
	return out
}

func (vm *Engine) setStack(s *stack, data [][]byte) {
	_ = s.DropN(s.Depth())
	for _, d := range data {
		s.PushByteArray(d)
	}
}

// Execute runs the full engine to completion.
func (vm *Engine) Execute() error {
	done := false
	var err error
	for !done {
		done, err = vm.Step()
		if err != nil {
			return err
		}
	}
	return vm.CheckErrorCondition(true)
}

// CheckErrorCondition validates that execution left exactly one true
// value on the stack (and, if finalScript and ScriptVerifyCleanStack is
// set, nothing else).
func (vm *Engine) CheckErrorCondition(finalScript bool) error {
	if vm.scriptIdx < len(vm.scripts) {
		return scriptError(ErrScriptUnfinished, "error check when script unfinished")
	}
	if finalScript && vm.hasFlag(ScriptVerifyCleanStack) {
		if vm.dstack.Depth() > 1 {
			return scriptError(ErrCleanStack, "stack contains unexpected items")
		}
	}
	if vm.dstack.Depth() < 1 {
		return scriptError(ErrEmptyStack, "stack empty at end of script execution")
	}
	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		return scriptError(ErrEvalFalse, "false stack entry at end of script execution")
	}
	return nil
}

// ExecuteScriptPair verifies a signature script against a public key
// script, including recursive P2SH redemption (spec.md §4.1: "recursion
// forbidden inside P2SH redemption" is enforced by Engine never setting
// isP2SH again after the first expansion).
func ExecuteScriptPair(scriptSig, scriptPubKey []byte, tx *wire.MsgTx, txIdx int, flags ScriptFlags, hook EvalHook) error {
	if tx.TxIn[txIdx].SignatureScript == nil {
		tx.TxIn[txIdx].SignatureScript = scriptSig
	}
	vm, err := NewEngine(scriptPubKey, tx, txIdx, flags, hook)
	if err != nil {
		return err
	}
	return vm.Execute()
}
