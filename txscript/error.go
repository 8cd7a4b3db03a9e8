// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// ErrorCode identifies a kind of script error.
type ErrorCode int

// Script error codes, per spec.md §4.1/§7 (evaluation failures surface as
// ConsensusRejection/BadSignature to the caller).
const (
	ErrInternal ErrorCode = iota
	ErrInvalidFlags
	ErrInvalidIndex
	ErrUnsupportedAddress
	ErrNotMultisigScript
	ErrTooManyRequiredSigs
	ErrTooManyOperations
	ErrStackOverflow
	ErrInvalidPubKeyCount
	ErrInvalidSignatureCount
	ErrInvalidProgramCounter
	ErrScriptTooBig
	ErrElementTooBig
	ErrUnbalancedConditional
	ErrMinimalData
	ErrInvalidSigHashType
	ErrSigTooShort
	ErrSigTooLong
	ErrSigInvalidSeqID
	ErrSigInvalidDataLen
	ErrSigMissingSTypeID
	ErrSigMissingSLen
	ErrSigInvalidSLen
	ErrSigInvalidRIntID
	ErrSigInvalidSIntID
	ErrSigZeroRLen
	ErrSigZeroSLen
	ErrSigNegativeR
	ErrSigNegativeS
	ErrSigTooMuchRPadding
	ErrSigTooMuchSPadding
	ErrSigHighS
	ErrNotPushOnly
	ErrPubKeyFormat
	ErrEvalFalse
	ErrEarlyReturn
	ErrEmptyStack
	ErrScriptUnfinished
	ErrCleanStack
	ErrDisabledOpcode
	ErrReservedOpcode
	ErrUnbalancedCond
	ErrVerify
	ErrEqualVerify
	ErrNumEqualVerify
	ErrCheckSigVerify
	ErrCheckMultiSigVerify
	ErrP2SHRecursion
	ErrNullFail
	ErrNegativeLockTime
	ErrUnsatisfiedLockTime
	ErrNumberTooBig
)

// Error implements the error interface by reporting the script error's
// message.
type Error struct {
	ErrCode ErrorCode
	Message string
}

func (e Error) Error() string { return e.Message }

func scriptError(code ErrorCode, desc string) Error {
	return Error{ErrCode: code, Message: desc}
}
