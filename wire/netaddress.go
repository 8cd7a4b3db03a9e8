// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"net"
	"time"
)

// ServiceFlag identifies the services supported by a peer.
type ServiceFlag uint64

// SFNodeNetwork is the flag a full node advertises.
const SFNodeNetwork ServiceFlag = 1 << 0

// MaxAddrPerMsg caps the number of addresses returned in response to
// getaddr, per spec.md §4.7.
const MaxAddrPerMsg = 2500

// Endpoint is the wire record of a reachable peer: services, IP (as a
// 16-byte IPv6/v4-mapped address) and port. spec.md §6 says a timestamp is
// prefixed when the endpoint is serialized as part of an addr message;
// rather than the sentinel-driven codec the original source used (a
// _lastTry == UINT_MAX toggle, see SPEC_FULL.md open question #3), the two
// forms are distinct encode methods below.
type Endpoint struct {
	Services ServiceFlag
	IP       net.IP
	Port     uint16

	// Timestamp is populated when decoded with DecodeWithTimestamp and
	// used as the "last seen" field by the Endpoint pool; it is the
	// zero time for endpoints decoded via Decode (no-timestamp form).
	Timestamp time.Time
}

func (e *Endpoint) ipv6Bytes() [16]byte {
	var out [16]byte
	ip4 := e.IP.To4()
	if ip4 != nil {
		copy(out[10:], ip4)
		out[10], out[11] = 0xff, 0xff
		return out
	}
	copy(out[:], e.IP.To16())
	return out
}

// EncodeWithTimestamp writes the endpoint with a leading u32 unix
// timestamp, the form used inside an addr message.
func (e *Endpoint) EncodeWithTimestamp(w io.Writer) error {
	if err := writeUint32(w, uint32(e.Timestamp.Unix())); err != nil {
		return err
	}
	return e.Encode(w)
}

// Encode writes the endpoint without a timestamp, the form used inside a
// version message.
func (e *Endpoint) Encode(w io.Writer) error {
	if err := writeUint64(w, uint64(e.Services)); err != nil {
		return err
	}
	ipv6 := e.ipv6Bytes()
	if _, err := w.Write(ipv6[:]); err != nil {
		return err
	}
	return writeUint16BE(w, e.Port)
}

// DecodeWithTimestamp reads a timestamp-prefixed endpoint.
func (e *Endpoint) DecodeWithTimestamp(r io.Reader) error {
	ts, err := readUint32(r)
	if err != nil {
		return err
	}
	e.Timestamp = time.Unix(int64(ts), 0)
	return e.Decode(r)
}

// Decode reads an endpoint with no timestamp prefix.
func (e *Endpoint) Decode(r io.Reader) error {
	services, err := readUint64(r)
	if err != nil {
		return err
	}
	e.Services = ServiceFlag(services)
	var ipv6 [16]byte
	if _, err := io.ReadFull(r, ipv6[:]); err != nil {
		return err
	}
	e.IP = net.IP(ipv6[:]).To16()
	port, err := readUint16BE(r)
	if err != nil {
		return err
	}
	e.Port = port
	return nil
}
