// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package base58check implements the Base58 alphabet and the
// version-byte + checksum wrapper used for address serialization (C1).
package base58check

import (
	"crypto/sha256"
	"errors"
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	bigRadix = big.NewInt(58)
	bigZero  = big.NewInt(0)
)

// Encode encodes b as a plain (unchecked) base58 string.
func Encode(b []byte) string {
	x := new(big.Int).SetBytes(b)

	answer := make([]byte, 0, len(b)*136/100+1)
	mod := new(big.Int)
	for x.Cmp(bigZero) > 0 {
		x.DivMod(x, bigRadix, mod)
		answer = append(answer, alphabet[mod.Int64()])
	}

	for _, i := range b {
		if i != 0 {
			break
		}
		answer = append(answer, alphabet[0])
	}

	for i, j := 0, len(answer)-1; i < j; i, j = i+1, j-1 {
		answer[i], answer[j] = answer[j], answer[i]
	}
	return string(answer)
}

// Decode decodes a plain base58 string back to bytes.
func Decode(s string) ([]byte, error) {
	answer := big.NewInt(0)
	scale := big.NewInt(1)
	for i := len(s) - 1; i >= 0; i-- {
		idx := indexOf(s[i])
		if idx == -1 {
			return nil, errors.New("base58check: invalid character")
		}
		answer.Add(answer, new(big.Int).Mul(scale, big.NewInt(int64(idx))))
		scale.Mul(scale, bigRadix)
	}

	tmpval := answer.Bytes()

	var numZeros int
	for numZeros = 0; numZeros < len(s); numZeros++ {
		if s[numZeros] != alphabet[0] {
			break
		}
	}
	flen := numZeros + len(tmpval)
	val := make([]byte, flen)
	copy(val[numZeros:], tmpval)
	return val, nil
}

func indexOf(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

func checksum(input []byte) (cksum [4]byte) {
	h := sha256.Sum256(input)
	h2 := sha256.Sum256(h[:])
	copy(cksum[:], h2[:4])
	return
}

// CheckEncode prepends ver to payload, appends a 4-byte double-SHA-256
// checksum, and base58-encodes the result. This is the address encoding
// used by the chain parameter's PubKeyHashAddrID/ScriptHashAddrID.
func CheckEncode(payload []byte, ver byte) string {
	b := make([]byte, 0, 1+len(payload)+4)
	b = append(b, ver)
	b = append(b, payload...)
	cksum := checksum(b)
	b = append(b, cksum[:]...)
	return Encode(b)
}

// CheckDecode decodes a check-encoded string, returning the payload and
// version byte, or an error if the checksum does not match.
func CheckDecode(input string) (payload []byte, version byte, err error) {
	decoded, err := Decode(input)
	if err != nil {
		return nil, 0, err
	}
	if len(decoded) < 5 {
		return nil, 0, errors.New("base58check: invalid format: too short")
	}
	version = decoded[0]
	var cksum [4]byte
	copy(cksum[:], decoded[len(decoded)-4:])
	if checksum(decoded[:len(decoded)-4]) != cksum {
		return nil, 0, errors.New("base58check: checksum mismatch")
	}
	payload = decoded[1 : len(decoded)-4]
	return payload, version, nil
}
