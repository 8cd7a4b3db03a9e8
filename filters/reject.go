// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filters

import (
	"github.com/coreledger-node/node/cerrors"
	"github.com/coreledger-node/node/wire"
)

// rejectCode maps an admission/acceptance failure onto the wire.MsgReject
// code spec.md §7 asks a filter to report to the origin peer, classifying
// via cerrors instead of string-matching the error text.
func rejectCode(err error) uint8 {
	switch {
	case cerrors.Is(err, cerrors.MalformedData):
		return wire.RejectMalformed
	case cerrors.IsRejection(err, cerrors.NonStandard):
		return wire.RejectNonStandard
	case cerrors.Is(err, cerrors.ConsensusRejection):
		return wire.RejectInvalid
	default:
		return wire.RejectInvalid
	}
}
