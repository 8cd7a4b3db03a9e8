// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"net"
	"strconv"

	"github.com/coreledger-node/node/wire"
)

// key identifies an endpoint by IP and port, the same (ip, port) primary key
// EndpointPool.cpp's sqlite schema used.
func key(ep *wire.Endpoint) string {
	return net.JoinHostPort(ep.IP.String(), strconv.Itoa(int(ep.Port)))
}

// isRoutable reports whether ip could plausibly belong to a public peer:
// not unspecified, not loopback, not a link-local or private (RFC1918)
// address. Endpoint.h's isRFC1918/isLocal/isRoutable collapsed into one
// check, since this package has no per-class callers.
func isRoutable(ip net.IP) bool {
	if ip == nil || ip.IsUnspecified() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 10:
			return false
		case ip4[0] == 172 && ip4[1]&0xf0 == 16:
			return false
		case ip4[0] == 192 && ip4[1] == 168:
			return false
		case ip4[0] == 127:
			return false
		}
	}
	return true
}

// groupKey returns the /16 (IPv4) or /32 (IPv6) network an endpoint belongs
// to, used to keep a node from filling its peer set with one operator's
// address block (spec.md §4.7: "not sharing a /16 with current peers").
func groupKey(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		return net.IPv4(ip4[0], ip4[1], 0, 0).String()
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return ip.String()
	}
	var net32 net.IP = make(net.IP, 16)
	copy(net32, ip16[:4])
	return net32.String()
}
