package vault

import (
	"math"

	"github.com/holiman/uint256"
)

// burnShare returns floor(amount * bps / 10000). The product is formed in
// 256 bits so it cannot wrap.
func burnShare(amount uint64, bps uint16) (uint64, error) {
	if !validBasisPoints(bps) {
		return 0, ErrInvalidBurnPercentage.with("value", bps)
	}
	x := uint256.NewInt(amount)
	x.Mul(x, uint256.NewInt(uint64(bps)))
	x.Div(x, uint256.NewInt(MaxBasisPoints))
	if !x.IsUint64() {
		return 0, ErrArithmeticOverflow.with("op", "burn_share")
	}
	return x.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	if !sum.IsUint64() {
		return 0, ErrArithmeticOverflow.with("a", a, "b", b)
	}
	return sum.Uint64(), nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if underflow {
		return 0, ErrArithmeticUnderflow.with("a", a, "b", b)
	}
	return diff.Uint64(), nil
}

// releaseTime returns now + delay, failing on int64 overflow.
func releaseTime(now, delay int64) (int64, error) {
	if delay > 0 && now > math.MaxInt64-delay {
		return 0, ErrArithmeticOverflow.with("now", now, "delay", delay)
	}
	if delay < 0 && now < math.MinInt64-delay {
		return 0, ErrArithmeticUnderflow.with("now", now, "delay", delay)
	}
	return now + delay, nil
}
