package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddInt64(t *testing.T) {
	v, ok := AddInt64(1, 2)
	require.True(t, ok)
	require.EqualValues(t, 3, v)
	v, ok = AddInt64(math.MaxInt64, 1)
	require.False(t, ok)
	require.EqualValues(t, int64(math.MaxInt64), v)
	v, ok = AddInt64(math.MinInt64, -1)
	require.False(t, ok)
	require.EqualValues(t, int64(math.MinInt64), v)
}

func TestSubInt64(t *testing.T) {
	v, ok := SubInt64(5, 7)
	require.True(t, ok)
	require.EqualValues(t, -2, v)
	v, ok = SubInt64(1_700_000_000_000, math.MinInt64)
	require.False(t, ok)
	require.EqualValues(t, int64(math.MaxInt64), v)
	v, ok = SubInt64(-2, math.MaxInt64)
	require.False(t, ok)
	require.EqualValues(t, int64(math.MinInt64), v)
	v, ok = SubInt64(0, math.MinInt64+1)
	require.True(t, ok)
	require.EqualValues(t, int64(math.MaxInt64), v)
}
