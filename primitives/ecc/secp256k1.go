// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Kaspa developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ecc implements the secp256k1 curve operations needed by the
// Script evaluator's signature-checking opcodes: public key
// (de)serialization and ECDSA signature verification. It does not
// implement signing; the core is a validating node, not a signer (key
// management and signing live in the out-of-scope wallet). The curve
// arithmetic itself is github.com/decred/dcrd/dcrec/secp256k1/v4, the
// same family EXCCoin-exccd vendors under its own module path as
// exccec/secp256k1 and dcrec/secp256k1/v4 — we import the upstream
// module directly rather than a forked path.
package ecc

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PublicKey is a secp256k1 point used to verify a signature.
type PublicKey = secp256k1.PublicKey

// Signature is a parsed ECDSA (r, s) pair.
type Signature = ecdsa.Signature

// ParsePublicKey decodes a compressed (33-byte) or uncompressed (65-byte)
// SEC1 public key encoding, the encodings standard Script pushes carry.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	return secp256k1.ParsePubKey(b)
}

// ParseDERSignature decodes a strict-DER-encoded ECDSA signature, as
// required by the Script CHECKSIG family (the sighash-type byte, if
// present, must already have been stripped by the caller).
func ParseDERSignature(sig []byte) (*Signature, error) {
	return ecdsa.ParseDERSignature(sig)
}

// Verify checks sig against hash (a 32-byte message digest, typically the
// transaction sighash) under pub.
func Verify(pub *PublicKey, hash []byte, sig *Signature) bool {
	return sig.Verify(hash, pub)
}

// Sha256 is exported for callers computing the sighash digest that Verify
// expects, keeping the double-hash step explicit at the call site.
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}
