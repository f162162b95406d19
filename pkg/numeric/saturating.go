// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package numeric provides the saturating arithmetic used by every
// ledger counter. Counters clamp at their numeric ceiling instead of
// wrapping or erroring.
package numeric

import "math"

// SatAdd64 returns a+b, clamped at MaxUint64.
func SatAdd64(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}

// SatAdd32 returns a+b, clamped at MaxUint32.
func SatAdd32(a, b uint32) uint32 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint32
}

// SatSub64 returns a-b, clamped at zero.
func SatSub64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// SatSub32 returns a-b, clamped at zero.
func SatSub32(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
