// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"

	"github.com/coreledger-node/node/primitives"
)

func TestPayToAddrScriptClass(t *testing.T) {
	var pkh primitives.Hash160
	for i := range pkh {
		pkh[i] = byte(i)
	}
	script := PayToAddrScript(pkh)
	if GetScriptClass(script) != PubKeyHashTy {
		t.Fatalf("expected PubKeyHashTy, got %v", GetScriptClass(script))
	}
}

func TestPayToScriptHashClass(t *testing.T) {
	var sh primitives.Hash160
	script := PayToScriptHashScript(sh)
	if GetScriptClass(script) != ScriptHashTy {
		t.Fatalf("expected ScriptHashTy, got %v", GetScriptClass(script))
	}
}

func TestNullDataClass(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(OpReturn)
	writePush(&buf, []byte("hello"))
	if GetScriptClass(buf.Bytes()) != NullDataTy {
		t.Fatalf("expected NullDataTy, got %v", GetScriptClass(buf.Bytes()))
	}
}

func TestNonStandard(t *testing.T) {
	script := []byte{OpAdd, OpAdd}
	if IsStandard(script) {
		t.Fatal("arbitrary arithmetic script should not classify as standard")
	}
}

func TestMultiSigClass(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(Op2)
	pk1 := bytes.Repeat([]byte{0x02}, 33)
	pk2 := bytes.Repeat([]byte{0x03}, 33)
	writePush(&buf, pk1)
	writePush(&buf, pk2)
	buf.WriteByte(Op2)
	buf.WriteByte(OpCheckMultiSig)
	if GetScriptClass(buf.Bytes()) != MultiSigTy {
		t.Fatalf("expected MultiSigTy, got %v", GetScriptClass(buf.Bytes()))
	}
}
