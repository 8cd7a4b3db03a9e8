// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"testing"

	"github.com/coreledger-node/node/wire"
)

func dummyTx() *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{Index: 0},
			Sequence:         0xffffffff,
		}},
		TxOut: []*wire.TxOut{{Value: 1}},
	}
}

func runScripts(t *testing.T, scriptSig, scriptPubKey []byte) error {
	t.Helper()
	tx := dummyTx()
	tx.TxIn[0].SignatureScript = scriptSig
	vm, err := NewEngine(scriptPubKey, tx, 0, ScriptNoFlags, nil)
	if err != nil {
		return err
	}
	return vm.Execute()
}

func TestSimpleArithmeticScript(t *testing.T) {
	// scriptSig: OP_2 OP_3 ; scriptPubKey: OP_ADD OP_5 OP_EQUAL
	sig := []byte{Op2, byte(Op1 + 2)}
	pk := []byte{OpAdd, byte(Op1 + 4), OpEqual}
	if err := runScripts(t, sig, pk); err != nil {
		t.Fatalf("expected script to succeed, got %v", err)
	}
}

func TestArithmeticScriptFails(t *testing.T) {
	sig := []byte{Op2, byte(Op1 + 2)}
	pk := []byte{OpAdd, byte(Op1 + 5), OpEqual}
	if err := runScripts(t, sig, pk); err == nil {
		t.Fatal("expected script to fail")
	}
}

func TestIfElseBranching(t *testing.T) {
	// scriptSig: OP_TRUE ; scriptPubKey: OP_IF OP_1 OP_ELSE OP_0 OP_ENDIF
	sig := []byte{OpTrue}
	pk := []byte{OpIf, Op1, OpElse, OpFalse, OpEndIf}
	if err := runScripts(t, sig, pk); err != nil {
		t.Fatalf("expected true branch to leave a truthy value, got %v", err)
	}
}

func TestUnbalancedConditionalFails(t *testing.T) {
	sig := []byte{OpTrue}
	pk := []byte{OpIf, Op1}
	if err := runScripts(t, sig, pk); err == nil {
		t.Fatal("expected unbalanced conditional to fail")
	}
}

func TestNullDataIsUnspendable(t *testing.T) {
	pk := []byte{OpReturn}
	if err := runScripts(t, nil, pk); err == nil {
		t.Fatal("OP_RETURN must always fail evaluation")
	}
}

func TestScriptTooBig(t *testing.T) {
	big := make([]byte, MaxScriptSize+1)
	_, err := parseScript(big)
	if err == nil {
		t.Fatal("expected oversized script to be rejected")
	}
}
