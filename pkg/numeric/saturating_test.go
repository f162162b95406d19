// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSatAdd64(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(3), SatAdd64(1, 2))
	require.Equal(uint64(math.MaxUint64), SatAdd64(math.MaxUint64, 1))
	require.Equal(uint64(math.MaxUint64), SatAdd64(math.MaxUint64-5, 100))
	require.Equal(uint64(math.MaxUint64), SatAdd64(math.MaxUint64, 0))
}

func TestSatAdd32(t *testing.T) {
	require := require.New(t)

	require.Equal(uint32(3), SatAdd32(1, 2))
	require.Equal(uint32(math.MaxUint32), SatAdd32(math.MaxUint32, 1))
	require.Equal(uint32(math.MaxUint32), SatAdd32(math.MaxUint32-1, 7))
}

func TestSatSub64(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(1), SatSub64(3, 2))
	require.Equal(uint64(0), SatSub64(2, 3))
	require.Equal(uint64(0), SatSub64(0, math.MaxUint64))
}

func TestSatSub32(t *testing.T) {
	require := require.New(t)

	require.Equal(uint32(1), SatSub32(3, 2))
	require.Equal(uint32(0), SatSub32(2, 3))
}
