// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/coreledger-node/node/primitives"
)

// BlockHeaderPayload is the number of bytes a block header occupies on the
// wire: version(4) + prev(32) + merkle_root(32) + time(4) + bits(4) +
// nonce(4), per spec.md §3.
const BlockHeaderPayload = 4 + primitives.HashSize + primitives.HashSize + 4 + 4 + 4

// BlockHeader is the 80-byte proof-of-work header of a Block (C3).
type BlockHeader struct {
	Version    int32
	Prev       primitives.Hash256
	MerkleRoot primitives.Hash256
	Timestamp  time.Time
	Bits       uint32
	Nonce      uint32
}

// BlockHash computes the double-SHA-256 hash of the 80-byte header
// encoding. This is the proof-of-work hash compared against target(bits).
func (h *BlockHeader) BlockHash() primitives.Hash256 {
	var buf bytes.Buffer
	_ = writeBlockHeader(&buf, h)
	return primitives.Sha256D(buf.Bytes())
}

// IsGenesis reports whether h has no predecessor.
func (h *BlockHeader) IsGenesis() bool {
	return h.Prev.IsZero()
}

// Decode reads a block header from r.
func (h *BlockHeader) Decode(r io.Reader) error {
	return readBlockHeader(r, h)
}

// Encode writes a block header to w.
func (h *BlockHeader) Encode(w io.Writer) error {
	return writeBlockHeader(w, h)
}

func readBlockHeader(r io.Reader, h *BlockHeader) error {
	v, err := readUint32(r)
	if err != nil {
		return err
	}
	h.Version = int32(v)

	if _, err := io.ReadFull(r, h.Prev[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return err
	}
	ts, err := readUint32(r)
	if err != nil {
		return err
	}
	h.Timestamp = time.Unix(int64(ts), 0)

	if h.Bits, err = readUint32(r); err != nil {
		return err
	}
	if h.Nonce, err = readUint32(r); err != nil {
		return err
	}
	return nil
}

func writeBlockHeader(w io.Writer, h *BlockHeader) error {
	if err := writeUint32(w, uint32(h.Version)); err != nil {
		return err
	}
	if _, err := w.Write(h.Prev[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(h.Timestamp.Unix())); err != nil {
		return err
	}
	if err := writeUint32(w, h.Bits); err != nil {
		return err
	}
	return writeUint32(w, h.Nonce)
}
