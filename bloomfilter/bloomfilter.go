// Copyright (c) 2012 libcoin contributors, reworked for Go.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloomfilter implements the per-peer BIP37-style bloom filter
// service (spec.md §4.6: filterload/filteradd/filterclear) used to decide
// whether a transaction or block is relayed to a peer, and to build the
// partial Merkle tree served in a merkleblock response (scenario S6).
package bloomfilter

import (
	"encoding/binary"
	"math"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// MaxFilterSize bounds the filter's bit-array size in bytes.
const MaxFilterSize = 36000

// MaxHashFuncs bounds the number of hash rounds.
const MaxHashFuncs = 50

const ln2Squared = 0.4804530139182014246671025263266649717305529515945455

// UpdateFlag controls how IsRelevantAndUpdate mutates the filter as it
// matches transactions.
type UpdateFlag uint8

// Update flag values, matching original_source BloomFilter.h bloomflags.
const (
	UpdateNone         UpdateFlag = 0
	UpdateAll          UpdateFlag = 1
	UpdateP2PubkeyOnly UpdateFlag = 2
)

// Filter is a peer's loaded bloom filter.
type Filter struct {
	data      []byte
	hashFuncs uint32
	tweak     uint32
	flags     UpdateFlag
	full      bool
	empty     bool
}

// New builds a filter sized for elements items at the given false-positive
// rate, per the standard BIP37 sizing formula, clamped to the protocol
// bounds MaxFilterSize/MaxHashFuncs.
func New(elements uint32, fpRate float64, tweak uint32, flags UpdateFlag) *Filter {
	dataLen := uint32(-1 / ln2Squared * float64(elements) * math.Log(fpRate))
	dataLen = clampUint32(dataLen/8, 1, MaxFilterSize)

	hashFuncs := uint32(float64(dataLen*8) / float64(elements) * math.Ln2)
	hashFuncs = clampUint32(hashFuncs, 1, MaxHashFuncs)

	return &Filter{
		data:      make([]byte, dataLen),
		hashFuncs: hashFuncs,
		tweak:     tweak,
		flags:     flags,
		empty:     true,
	}
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LoadFromWire builds a Filter from a decoded MsgFilterLoad.
func LoadFromWire(msg *wire.MsgFilterLoad) *Filter {
	f := &Filter{
		data:      msg.Filter,
		hashFuncs: msg.HashFuncs,
		tweak:     msg.Tweak,
		flags:     UpdateFlag(msg.Flags),
	}
	f.updateEmptyFull()
	return f
}

// IsWithinSizeConstraints guards against a just-deserialized filter that
// exceeds the protocol bounds.
func (f *Filter) IsWithinSizeConstraints() bool {
	return uint32(len(f.data)) <= MaxFilterSize && f.hashFuncs <= MaxHashFuncs
}

func (f *Filter) murmurHash(hashNum uint32, data []byte) uint32 {
	seed := hashNum*0xfba4c795 + f.tweak
	return murmur3(seed, data)
}

// Insert adds key's bits to the filter.
func (f *Filter) Insert(key []byte) {
	if f.full || len(f.data) == 0 {
		return
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.murmurHash(i, key) % (uint32(len(f.data)) * 8)
		f.data[idx/8] |= 1 << (idx % 8)
	}
	f.empty = false
}

// InsertOutpoint adds a (hash,index) outpoint key, used to watch for the
// spend of a matched output.
func (f *Filter) InsertOutpoint(hash primitives.Hash256, index uint32) {
	buf := make([]byte, primitives.HashSize+4)
	copy(buf, hash[:])
	binary.LittleEndian.PutUint32(buf[primitives.HashSize:], index)
	f.Insert(buf)
}

// Contains reports whether key's bits are all set.
func (f *Filter) Contains(key []byte) bool {
	if f.full {
		return true
	}
	if f.empty {
		return false
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.murmurHash(i, key) % (uint32(len(f.data)) * 8)
		if f.data[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

func (f *Filter) updateEmptyFull() {
	full, empty := true, true
	for _, b := range f.data {
		if b != 0xff {
			full = false
		}
		if b != 0 {
			empty = false
		}
	}
	f.full = full || len(f.data) == 0
	f.empty = empty
}

// Flags reports the update policy this filter was loaded with.
func (f *Filter) Flags() UpdateFlag { return f.flags }

// IsRelevantAndUpdate reports whether tx is relevant to this filter: its
// own hash matches, one of its outputs' scripts contains a matched data
// element (in which case, depending on flags, the matched outpoint is
// folded into the filter so a later spend is also found without a
// round-trip), an input spends a watched outpoint, or an input's
// signature script contains a matched data element.
func (f *Filter) IsRelevantAndUpdate(tx *wire.MsgTx, isPubkeyScript func([]byte) bool) bool {
	if f.full {
		return true
	}
	if f.empty {
		return false
	}

	txHash := tx.TxHash()
	found := f.Contains(txHash[:])

	for i, out := range tx.TxOut {
		for _, data := range extractPushedData(out.ScriptPubKey) {
			if !f.Contains(data) {
				continue
			}
			found = true
			switch f.flags & 0x3 {
			case UpdateAll:
				f.InsertOutpoint(txHash, uint32(i))
			case UpdateP2PubkeyOnly:
				if isPubkeyScript != nil && isPubkeyScript(out.ScriptPubKey) {
					f.InsertOutpoint(txHash, uint32(i))
				}
			}
			break
		}
	}
	if found {
		return true
	}

	for _, in := range tx.TxIn {
		buf := make([]byte, primitives.HashSize+4)
		copy(buf, in.PreviousOutpoint.Hash[:])
		binary.LittleEndian.PutUint32(buf[primitives.HashSize:], in.PreviousOutpoint.Index)
		if f.Contains(buf) {
			return true
		}
		for _, data := range extractPushedData(in.SignatureScript) {
			if f.Contains(data) {
				return true
			}
		}
	}
	return false
}

// extractPushedData walks script and returns every data element directly
// pushed onto the stack by a push opcode, ignoring any other opcode. It
// does not execute the script; it only recognizes the push encodings
// (direct push 0x01-0x4b, OP_PUSHDATA1/2/4), matching the minimal
// tokenizing a bloom filter match needs.
func extractPushedData(script []byte) [][]byte {
	var out [][]byte
	i := 0
	for i < len(script) {
		op := script[i]
		i++
		switch {
		case op >= 0x01 && op <= 0x4b:
			n := int(op)
			if i+n > len(script) {
				return out
			}
			out = append(out, script[i:i+n])
			i += n
		case op == 0x4c: // OP_PUSHDATA1
			if i+1 > len(script) {
				return out
			}
			n := int(script[i])
			i++
			if i+n > len(script) {
				return out
			}
			out = append(out, script[i:i+n])
			i += n
		case op == 0x4d: // OP_PUSHDATA2
			if i+2 > len(script) {
				return out
			}
			n := int(binary.LittleEndian.Uint16(script[i:]))
			i += 2
			if i+n > len(script) {
				return out
			}
			out = append(out, script[i:i+n])
			i += n
		case op == 0x4e: // OP_PUSHDATA4
			if i+4 > len(script) {
				return out
			}
			n := int(binary.LittleEndian.Uint32(script[i:]))
			i += 4
			if i+n > len(script) {
				return out
			}
			out = append(out, script[i:i+n])
			i += n
		}
	}
	return out
}

// murmur3 is the 32-bit MurmurHash3 finalized-mix hash function used by
// the BIP37 bloom filter's k hash rounds.
func murmur3(seed uint32, data []byte) uint32 {
	const c1 = 0xcc9e2d51
	const c2 = 0x1b873593
	h := seed
	nBlocks := len(data) / 4
	for i := 0; i < nBlocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4:])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
		h = (h << 13) | (h >> 19)
		h = h*5 + 0xe6546b64
	}
	tail := data[nBlocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
	}
	h ^= uint32(len(data))
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
