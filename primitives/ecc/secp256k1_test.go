// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecc

import (
	"encoding/hex"
	"testing"
)

// Known-good compressed pubkey/DER-signature/message-hash triple, the same
// vector EXCCoin-exccd's exccec/secp256k1 example test verifies against.
func TestVerifyKnownVector(t *testing.T) {
	pubKeyBytes, err := hex.DecodeString("02f90e79cec51feff025f56cf071354c10716d6360fcfc53a543589c2d775e2fd1")
	if err != nil {
		t.Fatalf("decode pubkey: %v", err)
	}
	pub, err := ParsePublicKey(pubKeyBytes)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}

	sigBytes, err := hex.DecodeString("30450221009f6b38672f1d3228833567be33699339d2b146fd7a2b8a21e1ed8c8ed939e" +
		"34f022072d895d130a9c683013dcb103fab1bd6025e9c2260f02c504abfd0a48e7a8274")
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig, err := ParseDERSignature(sigBytes)
	if err != nil {
		t.Fatalf("ParseDERSignature: %v", err)
	}

	hash := Sha256([]byte("test message"))
	if !Verify(pub, hash[:], sig) {
		t.Fatal("expected known-good signature to verify")
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	pubKeyBytes, _ := hex.DecodeString("02f90e79cec51feff025f56cf071354c10716d6360fcfc53a543589c2d775e2fd1")
	pub, err := ParsePublicKey(pubKeyBytes)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	sigBytes, _ := hex.DecodeString("30450221009f6b38672f1d3228833567be33699339d2b146fd7a2b8a21e1ed8c8ed939e" +
		"34f022072d895d130a9c683013dcb103fab1bd6025e9c2260f02c504abfd0a48e7a8274")
	sig, err := ParseDERSignature(sigBytes)
	if err != nil {
		t.Fatalf("ParseDERSignature: %v", err)
	}

	hash := Sha256([]byte("a different message"))
	if Verify(pub, hash[:], sig) {
		t.Fatal("signature must not verify against a different message")
	}
}

func TestParsePublicKeyRejectsInvalidEncoding(t *testing.T) {
	if _, err := ParsePublicKey([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected an error for a malformed public key encoding")
	}
}

func TestParseDERSignatureRejectsTruncatedInput(t *testing.T) {
	if _, err := ParseDERSignature([]byte{0x30, 0x05, 0x02}); err == nil {
		t.Fatal("expected an error for a truncated DER signature")
	}
}
