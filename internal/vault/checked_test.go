package vault

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurnShare(t *testing.T) {
	tests := []struct {
		amount uint64
		bps    uint16
		want   uint64
	}{
		{1_000_000_000, 2000, 200_000_000},
		{1, 2000, 0},
		{4, 2500, 1},
		{9_999, 1, 0},
		{10_000, 1, 1},
		{123, 0, 0},
		{123, MaxBasisPoints, 123},
		{math.MaxUint64, MaxBasisPoints, math.MaxUint64},
	}
	for _, tt := range tests {
		got, err := burnShare(tt.amount, tt.bps)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "amount=%d bps=%d", tt.amount, tt.bps)
	}
}

func TestBurnShareWideIntermediate(t *testing.T) {
	amount := uint64(math.MaxUint64 - 12345)
	for _, bps := range []uint16{1, 3333, 9999} {
		want := new(big.Int).SetUint64(amount)
		want.Mul(want, big.NewInt(int64(bps)))
		want.Div(want, big.NewInt(MaxBasisPoints))

		got, err := burnShare(amount, bps)
		require.NoError(t, err)
		assert.Equal(t, want.Uint64(), got)
	}
}

func TestBurnShareRejectsBadRate(t *testing.T) {
	_, err := burnShare(100, MaxBasisPoints+1)
	assert.ErrorIs(t, err, ErrInvalidBurnPercentage)
}

func TestCheckedArithmetic(t *testing.T) {
	sum, err := checkedAdd(math.MaxUint64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), sum)

	_, err = checkedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	diff, err := checkedSub(5, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), diff)

	_, err = checkedSub(4, 5)
	assert.ErrorIs(t, err, ErrArithmeticUnderflow)
}

func TestReleaseTime(t *testing.T) {
	at, err := releaseTime(1_700_000_000, DefaultDelaySeconds)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_086_400), at)

	_, err = releaseTime(math.MaxInt64-10, MinDelaySeconds)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}
