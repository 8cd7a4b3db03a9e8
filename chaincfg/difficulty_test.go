// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"testing"
	"time"
)

func TestCompactToBigRoundTrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x1d00ffff}
	for _, bits := range cases {
		target := CompactToBig(bits)
		got := BigToCompact(target)
		if got != bits {
			t.Errorf("BigToCompact(CompactToBig(%#x)) = %#x, want %#x", bits, got, bits)
		}
	}
}

func TestCompactToBigKnownValue(t *testing.T) {
	// 0x1d00ffff is mainnet's genesis bits; its target's top bytes are
	// well known: 0x00ffff << (8 * (0x1d - 3)).
	target := CompactToBig(0x1d00ffff)
	want := new(big.Int).Lsh(big.NewInt(0x00ffff), 8*(0x1d-3))
	if target.Cmp(want) != 0 {
		t.Errorf("CompactToBig(0x1d00ffff) = %x, want %x", target, want)
	}
}

func TestNextWorkRequiredNoRetarget(t *testing.T) {
	p := &MainNetParams
	got := p.NextWorkRequired(1, time.Unix(0, 0), time.Unix(600, 0), 0x1d00ffff)
	if got != 0x1d00ffff {
		t.Errorf("expected unchanged bits outside retarget window, got %#x", got)
	}
}

func TestNextWorkRequiredRetargetFaster(t *testing.T) {
	p := &MainNetParams
	height := p.BlocksPerRetarget - 1
	first := time.Unix(0, 0)
	// Actual timespan is half the target: blocks came twice as fast as
	// expected, so difficulty should increase (bits numerically lower
	// in exponent terms, target smaller).
	targetSpan := p.TargetTimePerBlock * time.Duration(p.BlocksPerRetarget)
	last := first.Add(targetSpan / 2)

	oldBits := uint32(0x1d00ffff)
	newBits := p.NextWorkRequired(height, first, last, oldBits)

	oldTarget := CompactToBig(oldBits)
	newTarget := CompactToBig(newBits)
	if newTarget.Cmp(oldTarget) >= 0 {
		t.Errorf("expected target to shrink when blocks arrive faster than target spacing")
	}
}

func TestNextWorkRequiredClampedToPowLimit(t *testing.T) {
	p := &MainNetParams
	height := p.BlocksPerRetarget - 1
	first := time.Unix(0, 0)
	targetSpan := p.TargetTimePerBlock * time.Duration(p.BlocksPerRetarget)
	// Actual timespan vastly exceeds target * factor; should clamp.
	last := first.Add(targetSpan * time.Duration(p.RetargetAdjustmentFactor) * 10)

	newBits := p.NextWorkRequired(height, first, last, p.PowLimitBits)
	if newBits != p.PowLimitBits {
		t.Errorf("expected clamp to PowLimitBits %#x, got %#x", p.PowLimitBits, newBits)
	}
}

func TestCheckProofOfWorkRejectsHashAboveTarget(t *testing.T) {
	p := &RegressionNetParams
	// A target tighter (smaller) than the limit, with a hash that is
	// numerically larger than the target, should fail.
	hash := make([]byte, 32)
	hash[31] = 0xff // large as little-endian low byte -> large as big-endian high byte after reversal
	if p.CheckProofOfWork(hash, 0x1d00ffff) {
		t.Error("expected hash exceeding target to fail proof-of-work check")
	}
}

func TestCheckProofOfWorkRejectsTargetAboveLimit(t *testing.T) {
	p := &MainNetParams
	// RegressionNetParams' bits (0x207fffff) decode to a target above
	// mainnet's PowLimit, so mainnet must reject it outright.
	hash := make([]byte, 32)
	if p.CheckProofOfWork(hash, 0x207fffff) {
		t.Error("expected target exceeding chain's PowLimit to be rejected regardless of hash")
	}
}

func TestDifficultyOfGenesisBitsIsOne(t *testing.T) {
	d := MainNetParams.Difficulty(MainNetParams.PowLimitBits)
	if d < 0.999 || d > 1.001 {
		t.Errorf("difficulty at PowLimitBits should be ~1.0, got %f", d)
	}
}
