// Copyright (c) 2012 Michael Gronager
// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"encoding/binary"
	"fmt"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/spendables"
	"github.com/coreledger-node/node/wire"
)

// encodeCoin serializes a Coin's non-key fields: output value, scriptPubKey
// length-prefixed, confirmation height, and the coinbase flag.
func encodeCoin(coin spendables.Coin) []byte {
	buf := make([]byte, 8+4+len(coin.Output.ScriptPubKey)+4+1)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(coin.Output.Value))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(coin.Output.ScriptPubKey)))
	off += 4
	off += copy(buf[off:], coin.Output.ScriptPubKey)
	binary.LittleEndian.PutUint32(buf[off:], uint32(coin.Height))
	off += 4
	if coin.IsCoinbase {
		buf[off] = 1
	}
	return buf
}

func decodeCoin(op wire.Outpoint, buf []byte) (spendables.Coin, error) {
	if len(buf) < 8+4 {
		return spendables.Coin{}, fmt.Errorf("chainstore: truncated coin record")
	}
	off := 0
	value := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	scriptLen := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if len(buf) < off+scriptLen+4+1 {
		return spendables.Coin{}, fmt.Errorf("chainstore: truncated coin record")
	}
	script := append([]byte(nil), buf[off:off+scriptLen]...)
	off += scriptLen
	height := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	isCoinbase := buf[off] == 1

	return spendables.Coin{
		Outpoint:   op,
		Output:     wire.TxOut{Value: value, ScriptPubKey: script},
		Height:     height,
		IsCoinbase: isCoinbase,
	}, nil
}

// encodeDelta serializes a block's coin delta: a count-prefixed list of
// removed Coins (full record, since their key isn't recoverable from the
// outpoint alone once spent) followed by a count-prefixed list of added
// Outpoints.
func encodeDelta(removed []spendables.Coin, added []wire.Outpoint) []byte {
	var buf []byte
	var countBuf [4]byte

	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(removed)))
	buf = append(buf, countBuf[:]...)
	for _, coin := range removed {
		buf = append(buf, coin.Outpoint.Hash[:]...)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], coin.Outpoint.Index)
		buf = append(buf, idx[:]...)
		encoded := encodeCoin(coin)
		var encLen [4]byte
		binary.LittleEndian.PutUint32(encLen[:], uint32(len(encoded)))
		buf = append(buf, encLen[:]...)
		buf = append(buf, encoded...)
	}

	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(added)))
	buf = append(buf, countBuf[:]...)
	for _, op := range added {
		buf = append(buf, op.Hash[:]...)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], op.Index)
		buf = append(buf, idx[:]...)
	}
	return buf
}

func decodeDelta(buf []byte) ([]spendables.Coin, []wire.Outpoint, error) {
	read32 := func() (uint32, error) {
		if len(buf) < 4 {
			return 0, fmt.Errorf("chainstore: truncated delta record")
		}
		v := binary.LittleEndian.Uint32(buf[:4])
		buf = buf[4:]
		return v, nil
	}
	readHash := func() (primitives.Hash256, error) {
		var h primitives.Hash256
		if len(buf) < primitives.HashSize {
			return h, fmt.Errorf("chainstore: truncated delta record")
		}
		copy(h[:], buf[:primitives.HashSize])
		buf = buf[primitives.HashSize:]
		return h, nil
	}

	removedCount, err := read32()
	if err != nil {
		return nil, nil, err
	}
	removed := make([]spendables.Coin, 0, removedCount)
	for i := uint32(0); i < removedCount; i++ {
		hash, err := readHash()
		if err != nil {
			return nil, nil, err
		}
		index, err := read32()
		if err != nil {
			return nil, nil, err
		}
		encLen, err := read32()
		if err != nil {
			return nil, nil, err
		}
		if uint32(len(buf)) < encLen {
			return nil, nil, fmt.Errorf("chainstore: truncated delta record")
		}
		coin, err := decodeCoin(wire.Outpoint{Hash: hash, Index: index}, buf[:encLen])
		if err != nil {
			return nil, nil, err
		}
		buf = buf[encLen:]
		removed = append(removed, coin)
	}

	addedCount, err := read32()
	if err != nil {
		return nil, nil, err
	}
	added := make([]wire.Outpoint, 0, addedCount)
	for i := uint32(0); i < addedCount; i++ {
		hash, err := readHash()
		if err != nil {
			return nil, nil, err
		}
		index, err := read32()
		if err != nil {
			return nil, nil, err
		}
		added = append(added, wire.Outpoint{Hash: hash, Index: index})
	}

	return removed, added, nil
}
