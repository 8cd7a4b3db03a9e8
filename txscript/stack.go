// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "fmt"

// stack represents a stack of byte arrays, as used for both the data stack
// and alt stack during script execution.
type stack struct {
	stk []parsedData
}

// parsedData is one stack item's raw bytes; PeekInt/PopInt decode a
// scriptNum from it when a number is needed.
type parsedData []byte

// Depth returns the number of items on the stack.
func (s *stack) Depth() int { return len(s.stk) }

// PushByteArray pushes raw data onto the stack.
func (s *stack) PushByteArray(so []byte) { s.stk = append(s.stk, so) }

// PushInt pushes a scriptNum's native encoding onto the stack.
func (s *stack) PushInt(val scriptNum) { s.PushByteArray(val.Bytes()) }

// PushBool pushes the script-encoding of a boolean.
func (s *stack) PushBool(val bool) {
	if val {
		s.PushByteArray([]byte{1})
	} else {
		s.PushByteArray(nil)
	}
}

// PeekByteArray returns the nth item from the top without removing it.
func (s *stack) PeekByteArray(idx int) ([]byte, error) {
	sz := len(s.stk)
	if idx < 0 || idx >= sz {
		return nil, scriptError(ErrInvalidIndex, "index out of range")
	}
	return s.stk[sz-idx-1], nil
}

// PeekInt returns the nth item interpreted as a scriptNum.
func (s *stack) PeekInt(idx int) (scriptNum, error) {
	b, err := s.PeekByteArray(idx)
	if err != nil {
		return 0, err
	}
	return makeScriptNum(b, true, defaultScriptNumLen)
}

// PeekBool returns the nth item interpreted as a boolean.
func (s *stack) PeekBool(idx int) (bool, error) {
	b, err := s.PeekByteArray(idx)
	if err != nil {
		return false, err
	}
	return asBool(b), nil
}

func asBool(b []byte) bool {
	for i := range b {
		if b[i] != 0 {
			if i == len(b)-1 && b[i] == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

// Pop pops the item at the top of the stack.
func (s *stack) Pop() ([]byte, error) {
	b, err := s.PeekByteArray(0)
	if err != nil {
		return nil, err
	}
	s.stk = s.stk[:len(s.stk)-1]
	return b, nil
}

// PopInt pops the item at the top interpreted as a scriptNum.
func (s *stack) PopInt() (scriptNum, error) {
	b, err := s.Pop()
	if err != nil {
		return 0, err
	}
	return makeScriptNum(b, true, defaultScriptNumLen)
}

// PopBool pops the item at the top interpreted as a boolean.
func (s *stack) PopBool() (bool, error) {
	b, err := s.Pop()
	if err != nil {
		return false, err
	}
	return asBool(b), nil
}

// DropN removes the top n items.
func (s *stack) DropN(n int) error {
	if n < 0 || n > len(s.stk) {
		return scriptError(ErrInvalidIndex, "index out of range")
	}
	s.stk = s.stk[:len(s.stk)-n]
	return nil
}

// DupN duplicates the top n items, in order.
func (s *stack) DupN(n int) error {
	if n < 1 {
		return scriptError(ErrInvalidIndex, "n must be positive")
	}
	for i := n; i > 0; i-- {
		v, err := s.PeekByteArray(n - 1)
		if err != nil {
			return err
		}
		s.PushByteArray(v)
	}
	return nil
}

// RotN rotates the top 3n items up by n.
func (s *stack) RotN(n int) error {
	entry := 3*n - 1
	for i := 0; i < n; i++ {
		nv, err := s.nipN(entry)
		if err != nil {
			return err
		}
		s.PushByteArray(nv)
	}
	return nil
}

// SwapN swaps the top n items with the next n items down.
func (s *stack) SwapN(n int) error {
	entry := 2*n - 1
	for i := 0; i < n; i++ {
		v, err := s.nipN(entry)
		if err != nil {
			return err
		}
		s.PushByteArray(v)
	}
	return nil
}

// OverN copies the item(s) below the top n to the top.
func (s *stack) OverN(n int) error {
	entry := 2*n - 1
	for ; n > 0; n-- {
		v, err := s.PeekByteArray(entry)
		if err != nil {
			return err
		}
		s.PushByteArray(v)
	}
	return nil
}

func (s *stack) nipN(idx int) ([]byte, error) {
	v, err := s.PeekByteArray(idx)
	if err != nil {
		return nil, err
	}
	sz := len(s.stk)
	copy(s.stk[sz-idx-1:], s.stk[sz-idx:])
	s.stk = s.stk[:sz-1]
	return v, nil
}

// NipN removes the item at position n, shifting the rest down.
func (s *stack) NipN(idx int) error {
	_, err := s.nipN(idx)
	return err
}

// Tuck copies the top item and inserts it before the second item.
func (s *stack) Tuck() error {
	v2, err := s.PopByteArray()
	if err != nil {
		return err
	}
	v1, err := s.PopByteArray()
	if err != nil {
		return err
	}
	s.PushByteArray(v2)
	s.PushByteArray(v1)
	s.PushByteArray(v2)
	return nil
}

// PopByteArray is an alias for Pop, kept for readability at call sites that
// pop compound values.
func (s *stack) PopByteArray() ([]byte, error) { return s.Pop() }

// String renders the stack for debug logging.
func (s *stack) String() string {
	var out string
	for _, v := range s.stk {
		out += fmt.Sprintf("%02x\n", []byte(v))
	}
	return out
}
