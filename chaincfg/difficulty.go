// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"
)

// CompactToBig expands a block header's 4-byte "bits" compact
// representation into the full 256-bit target it encodes (spec.md §3:
// "Difficulty / bits — compact encoding of a 256-bit PoW target").
func CompactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := bits >> 24

	var target *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target = big.NewInt(int64(mantissa))
	} else {
		target = big.NewInt(int64(mantissa))
		target.Lsh(target, uint(8*(exponent-3)))
	}

	if bits&0x00800000 != 0 {
		target = target.Neg(target)
	}
	return target
}

// BigToCompact packs target into the compact "bits" representation.
func BigToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(target.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(target.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(target)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	return uint32(exponent<<24) | mantissa
}

// CheckProofOfWork reports whether hash, interpreted as a big-endian
// 256-bit integer, is at or below the target that bits encodes, and
// that target does not exceed the chain's PoW limit.
func (p *Params) CheckProofOfWork(hashLE []byte, bits uint32) bool {
	target := CompactToBig(bits)
	if target.Sign() <= 0 || target.Cmp(p.PowLimit) > 0 {
		return false
	}

	hashNum := new(big.Int)
	reversed := make([]byte, len(hashLE))
	for i, b := range hashLE {
		reversed[len(hashLE)-1-i] = b
	}
	hashNum.SetBytes(reversed)

	return hashNum.Cmp(target) <= 0
}

// NextWorkRequired computes the "bits" value the next block after the
// chain described by (heights, timestamps, bits) must satisfy, per the
// classic Bitcoin retarget rule: every BlocksPerRetarget blocks, scale
// the previous target by the ratio of actual to expected timespan,
// clamped to RetargetAdjustmentFactor in either direction.
func (p *Params) NextWorkRequired(height int32, firstBlockTime, lastBlockTime time.Time, lastBits uint32) uint32 {
	if (height+1)%p.BlocksPerRetarget != 0 {
		if p.ReduceMinDifficulty {
			if lastBlockTime.Sub(firstBlockTime) > p.TargetTimePerBlock*2 {
				return BigToCompact(p.PowLimit)
			}
		}
		return lastBits
	}

	actualTimespan := lastBlockTime.Sub(firstBlockTime)
	targetTimespan := p.TargetTimePerBlock * time.Duration(p.BlocksPerRetarget)

	minTimespan := targetTimespan / time.Duration(p.RetargetAdjustmentFactor)
	maxTimespan := targetTimespan * time.Duration(p.RetargetAdjustmentFactor)
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	} else if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := CompactToBig(lastBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(targetTimespan)))

	if newTarget.Cmp(p.PowLimit) > 0 {
		newTarget = p.PowLimit
	}
	return BigToCompact(newTarget)
}

// CalcWork converts a block's compact difficulty bits into the amount of
// "work" the block contributes to a chain's accumulated work total:
// work = 2^256 / (target+1), the classic Bitcoin Core getBlockProof
// formula. BlockTree sums this across the trunk to pick the best chain
// (spec.md's "best chain = greatest accumulated work", not greatest
// height).
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, bigOne)
	numerator := new(big.Int).Lsh(bigOne, 256)
	return numerator.Div(numerator, denominator)
}

// Difficulty converts bits into the familiar "difficulty 1.0 = mainnet
// genesis target" ratio reported by the get_difficulty RPC query
// (spec.md §6).
func (p *Params) Difficulty(bits uint32) float64 {
	target := CompactToBig(bits)
	if target.Sign() == 0 {
		return 0
	}
	max := new(big.Float).SetInt(MainNetParams.PowLimit)
	cur := new(big.Float).SetInt(target)
	ratio := new(big.Float).Quo(max, cur)
	f, _ := ratio.Float64()
	return f
}
