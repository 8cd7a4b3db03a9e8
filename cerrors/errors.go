// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cerrors classifies every error the node's consensus and network
// layers can produce into the closed taxonomy spec.md §7 names, so a
// caller several layers up (a peer session deciding whether to bump
// misbehaviour, an RPC handler deciding what to report, the orchestrator
// deciding whether to keep running) can dispatch on Kind instead of
// string-matching or threading sentinel values across package boundaries.
package cerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the seven error categories spec.md §7 defines. Consensus
// rejections carry a further Subkind.
type Kind int

const (
	// MalformedData covers a message, block, or transaction that failed
	// context-free decoding or basic structural checks.
	MalformedData Kind = iota
	// ConsensusRejection covers an object that decoded fine but violates
	// a consensus rule; see Subkind for which one.
	ConsensusRejection
	// OrphanMissingParent covers a block whose parent hash isn't known yet.
	OrphanMissingParent
	// OrphanMissingInput covers a transaction spending an outpoint this
	// node hasn't seen confirmed or in its mempool yet.
	OrphanMissingInput
	// TransientIO covers a socket or disk error worth retrying.
	TransientIO
	// Overloaded covers a resource limit being at capacity: too many
	// peers, a full mempool, and similar.
	Overloaded
	// Fatal covers an invariant violation the engine cannot recover
	// from while continuing to accept writes.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case MalformedData:
		return "malformed-data"
	case ConsensusRejection:
		return "consensus-rejection"
	case OrphanMissingParent:
		return "orphan-missing-parent"
	case OrphanMissingInput:
		return "orphan-missing-input"
	case TransientIO:
		return "transient-io"
	case Overloaded:
		return "overloaded"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Subkind narrows a ConsensusRejection to the specific rule violated.
// Zero value SubkindNone is used (and ignored) for every other Kind.
type Subkind int

const (
	SubkindNone Subkind = iota
	BadPoW
	BadMerkle
	BadSignature
	DoubleSpend
	BadValue
	BadCoinbase
	TimestampOutOfRange
	NonStandard
)

func (s Subkind) String() string {
	switch s {
	case BadPoW:
		return "bad-pow"
	case BadMerkle:
		return "bad-merkle"
	case BadSignature:
		return "bad-signature"
	case DoubleSpend:
		return "double-spend"
	case BadValue:
		return "bad-value"
	case BadCoinbase:
		return "bad-coinbase"
	case TimestampOutOfRange:
		return "timestamp-out-of-range"
	case NonStandard:
		return "non-standard"
	default:
		return "none"
	}
}

// Error is the concrete type every constructor below returns. It wraps an
// underlying cause with github.com/pkg/errors so callers that want a stack
// trace can get one via errors.Cause/errors.StackTrace, while still
// exposing the closed Kind/Subkind classification spec.md §7 requires.
type Error struct {
	kind    Kind
	subkind Subkind
	cause   error
}

func (e *Error) Error() string {
	if e.subkind != SubkindNone {
		return fmt.Sprintf("%s/%s: %s", e.kind, e.subkind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.cause)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Subkind returns the error's consensus-rejection subcategory, or
// SubkindNone if e.Kind() != ConsensusRejection.
func (e *Error) Subkind() Subkind { return e.subkind }

func newError(kind Kind, subkind Subkind, format string, args ...interface{}) *Error {
	return &Error{
		kind:    kind,
		subkind: subkind,
		cause:   errors.Errorf(format, args...),
	}
}

// Malformed builds a MalformedData error.
func Malformed(format string, args ...interface{}) *Error {
	return newError(MalformedData, SubkindNone, format, args...)
}

// Rejected builds a ConsensusRejection error with the given subkind.
func Rejected(subkind Subkind, format string, args ...interface{}) *Error {
	return newError(ConsensusRejection, subkind, format, args...)
}

// MissingParent builds an OrphanMissingParent error.
func MissingParent(format string, args ...interface{}) *Error {
	return newError(OrphanMissingParent, SubkindNone, format, args...)
}

// MissingParentWrap is MissingParent for a site that already has a sentinel
// or lower-layer cause to preserve (e.g. a package-level ErrOrphanBlock an
// existing caller checks with errors.Is); cause remains reachable through
// Unwrap the same way IO's cause does.
func MissingParentWrap(cause error, format string, args ...interface{}) *Error {
	return &Error{kind: OrphanMissingParent, cause: errors.Wrapf(cause, format, args...)}
}

// MissingInput builds an OrphanMissingInput error.
func MissingInput(format string, args ...interface{}) *Error {
	return newError(OrphanMissingInput, SubkindNone, format, args...)
}

// MissingInputWrap is MissingInput for a site that already has a sentinel
// or lower-layer cause to preserve.
func MissingInputWrap(cause error, format string, args ...interface{}) *Error {
	return &Error{kind: OrphanMissingInput, cause: errors.Wrapf(cause, format, args...)}
}

// IO wraps an I/O-layer cause (socket or disk error) as TransientIO,
// preserving it via %w-style wrapping so errors.Is/As still reach it.
func IO(cause error, format string, args ...interface{}) *Error {
	return &Error{
		kind:  TransientIO,
		cause: errors.Wrapf(cause, format, args...),
	}
}

// Overload builds an Overloaded error.
func Overload(format string, args ...interface{}) *Error {
	return newError(Overloaded, SubkindNone, format, args...)
}

// Invariant builds a Fatal error for an invariant violation.
func Invariant(format string, args ...interface{}) *Error {
	return newError(Fatal, SubkindNone, format, args...)
}

// InvariantWrap is Invariant for a site with an underlying cause worth
// preserving (e.g. an authenticated trie operation that failed after its
// precondition was already checked by the caller).
func InvariantWrap(cause error, format string, args ...interface{}) *Error {
	return &Error{kind: Fatal, cause: errors.Wrapf(cause, format, args...)}
}

// RejectedWrap is Rejected for a site with an underlying cause worth
// preserving, such as a script-evaluator error behind a BadSignature
// rejection.
func RejectedWrap(subkind Subkind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: ConsensusRejection, subkind: subkind, cause: errors.Wrapf(cause, format, args...)}
}

// Is reports whether err is a *Error of the given kind, unwrapping through
// any wrapping layers in between (fmt.Errorf("...: %w", cerr) and similar).
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.kind == kind
	}
	return false
}

// IsRejection reports whether err is a ConsensusRejection of the given
// subkind specifically.
func IsRejection(err error, subkind Subkind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.kind == ConsensusRejection && ce.subkind == subkind
	}
	return false
}
