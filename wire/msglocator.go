// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/coreledger-node/node/primitives"
)

// MaxBlockLocatorsPerMsg bounds the number of locator hashes accepted.
const MaxBlockLocatorsPerMsg = 500

// BlockLocator is a set of block hashes, most recent first with
// exponentially increasing gaps, used to help a peer locate the point of
// divergence between two chains (spec.md §4.2 / §4.6).
type BlockLocator []primitives.Hash256

func encodeLocator(w io.Writer, locator BlockLocator) error {
	if err := WriteVarInt(w, uint64(len(locator))); err != nil {
		return err
	}
	for _, h := range locator {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

func decodeLocator(r io.Reader) (BlockLocator, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > MaxBlockLocatorsPerMsg {
		return nil, messageError("decodeLocator", "too many locator hashes")
	}
	out := make(BlockLocator, count)
	for i := range out {
		if _, err := io.ReadFull(r, out[i][:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MsgGetBlocks requests up to 500 block hashes starting after the best
// common ancestor found by walking Locator, stopping at HashStop (or the
// peer's tip if HashStop is zero).
type MsgGetBlocks struct {
	Locator  BlockLocator
	HashStop primitives.Hash256
}

// Command implements Message.
func (m *MsgGetBlocks) Command() string { return CmdGetBlocks }

// Encode implements Message.
func (m *MsgGetBlocks) Encode(w io.Writer) error {
	if err := encodeLocator(w, m.Locator); err != nil {
		return err
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

// Decode implements Message.
func (m *MsgGetBlocks) Decode(r io.Reader) error {
	loc, err := decodeLocator(r)
	if err != nil {
		return err
	}
	m.Locator = loc
	_, err = io.ReadFull(r, m.HashStop[:])
	return err
}

// MsgGetHeaders is identical in shape to MsgGetBlocks but requests
// headers only.
type MsgGetHeaders struct {
	Locator  BlockLocator
	HashStop primitives.Hash256
}

// Command implements Message.
func (m *MsgGetHeaders) Command() string { return CmdGetHeaders }

// Encode implements Message.
func (m *MsgGetHeaders) Encode(w io.Writer) error {
	if err := encodeLocator(w, m.Locator); err != nil {
		return err
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

// Decode implements Message.
func (m *MsgGetHeaders) Decode(r io.Reader) error {
	loc, err := decodeLocator(r)
	if err != nil {
		return err
	}
	m.Locator = loc
	_, err = io.ReadFull(r, m.HashStop[:])
	return err
}

// MsgHeaders answers getheaders with up to 2000 block headers.
type MsgHeaders struct {
	Headers []*BlockHeader
}

// MaxHeadersPerMsg bounds a single headers response.
const MaxHeadersPerMsg = 2000

// Command implements Message.
func (m *MsgHeaders) Command() string { return CmdHeaders }

// Encode implements Message.
func (m *MsgHeaders) Encode(w io.Writer) error {
	if err := WriteVarInt(w, uint64(len(m.Headers))); err != nil {
		return err
	}
	for _, h := range m.Headers {
		if err := h.Encode(w); err != nil {
			return err
		}
		// txCount is always zero on the wire for a headers-only
		// announcement; present for historical wire compatibility.
		if err := WriteVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

// Decode implements Message.
func (m *MsgHeaders) Decode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxHeadersPerMsg {
		return messageError("MsgHeaders.Decode", "too many headers")
	}
	m.Headers = make([]*BlockHeader, count)
	for i := range m.Headers {
		h := &BlockHeader{}
		if err := h.Decode(r); err != nil {
			return err
		}
		if _, err := ReadVarInt(r); err != nil {
			return err
		}
		m.Headers[i] = h
	}
	return nil
}
