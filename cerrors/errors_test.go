// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cerrors

import (
	"fmt"
	"io"
	"testing"

	"github.com/pkg/errors"
)

func TestMalformedHasNoSubkind(t *testing.T) {
	err := Malformed("bad varint in %s", "message header")
	if !Is(err, MalformedData) {
		t.Fatalf("expected MalformedData, got %s", err)
	}
	if err.Subkind() != SubkindNone {
		t.Fatalf("expected SubkindNone, got %s", err.Subkind())
	}
}

func TestRejectedCarriesSubkind(t *testing.T) {
	err := Rejected(DoubleSpend, "outpoint %v already spent", "h:0")
	if !Is(err, ConsensusRejection) {
		t.Fatalf("expected ConsensusRejection, got %s", err)
	}
	if !IsRejection(err, DoubleSpend) {
		t.Fatalf("expected DoubleSpend subkind, got %s", err.Subkind())
	}
	if IsRejection(err, BadPoW) {
		t.Fatalf("did not expect BadPoW subkind to match")
	}
}

func TestMissingParentAndInputKinds(t *testing.T) {
	if !Is(MissingParent("unknown parent %x", []byte{1}), OrphanMissingParent) {
		t.Fatalf("expected OrphanMissingParent")
	}
	if !Is(MissingInput("unknown outpoint %v", "h:0"), OrphanMissingInput) {
		t.Fatalf("expected OrphanMissingInput")
	}
}

func TestIOWrapsUnderlyingCause(t *testing.T) {
	err := IO(io.ErrUnexpectedEOF, "reading block body")
	if !Is(err, TransientIO) {
		t.Fatalf("expected TransientIO, got %s", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected errors.Is to see through to io.ErrUnexpectedEOF, got %s", err)
	}
}

func TestOverloadAndInvariantKinds(t *testing.T) {
	if !Is(Overload("mempool full: %d entries", 5000), Overloaded) {
		t.Fatalf("expected Overloaded")
	}
	if !Is(Invariant("spendables root mismatch at height %d", 100), Fatal) {
		t.Fatalf("expected Fatal")
	}
}

func TestIsReturnsFalseForUnrelatedError(t *testing.T) {
	if Is(fmt.Errorf("plain error"), MalformedData) {
		t.Fatalf("expected Is to return false for a non-*Error")
	}
}

func TestErrorMessageFormatsSubkindWhenPresent(t *testing.T) {
	plain := Malformed("truncated payload")
	if got := plain.Error(); got != "malformed-data: truncated payload" {
		t.Fatalf("Error() = %q, want %q", got, "malformed-data: truncated payload")
	}

	rejected := Rejected(BadMerkle, "merkle root mismatch")
	want := "consensus-rejection/bad-merkle: merkle root mismatch"
	if got := rejected.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrapExposesCauseDirectly(t *testing.T) {
	err := Malformed("bad header")
	if err.Unwrap() == nil {
		t.Fatalf("expected Unwrap to return a non-nil cause")
	}
}
