// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "fmt"

// defaultScriptNumLen is the default number of bytes a script integer is
// expected to occupy on the data stack, matching Bitcoin's 4-byte signed
// arithmetic (spec.md §4.1: "arithmetic on 4-byte signed integers").
const defaultScriptNumLen = 4

// scriptNum represents a numeric value used in script execution, encoded
// and decoded using the script's native little-endian sign-magnitude
// format rather than Go's native integer types.
type scriptNum int64

func makeScriptNum(v []byte, requireMinimal bool, scriptNumLen int) (scriptNum, error) {
	if len(v) > scriptNumLen {
		return 0, scriptError(ErrNumberTooBig,
			fmt.Sprintf("numeric value encoded as %d bytes exceeds max allowed %d", len(v), scriptNumLen))
	}
	if requireMinimal {
		if err := checkMinimalDataEncoding(v); err != nil {
			return 0, err
		}
	}
	if len(v) == 0 {
		return 0, nil
	}

	var result int64
	for i, b := range v {
		result |= int64(b) << uint8(8*i)
	}

	if v[len(v)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(v)-1)))
		return scriptNum(-result), nil
	}
	return scriptNum(result), nil
}

func checkMinimalDataEncoding(v []byte) error {
	if len(v) == 0 {
		return nil
	}
	if v[len(v)-1]&0x7f == 0 {
		if len(v) == 1 || v[len(v)-2]&0x80 == 0 {
			return scriptError(ErrMinimalData, "numeric value has unnecessary trailing zero byte")
		}
	}
	return nil
}

// Bytes returns the script-native little-endian sign-magnitude encoding of
// the number.
func (n scriptNum) Bytes() []byte {
	if n == 0 {
		return nil
	}

	isNegative := n < 0
	m := n
	if isNegative {
		m = -n
	}

	var result []byte
	for m > 0 {
		result = append(result, byte(m&0xff))
		m >>= 8
	}

	if result[len(result)-1]&0x80 != 0 {
		extra := byte(0x00)
		if isNegative {
			extra = 0x80
		}
		result = append(result, extra)
	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int32 returns the number clamped to the int32 range.
func (n scriptNum) Int32() int32 {
	if n > int64max32 {
		return int32(int64max32)
	}
	if n < int64min32 {
		return int32(int64min32)
	}
	return int32(n)
}

const int64max32 = 1<<31 - 1
const int64min32 = -1 << 31
