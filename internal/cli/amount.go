package cli

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/vault"
)

// LamportsPerSOL is the lamport count of one SOL.
const LamportsPerSOL = 1_000_000_000

const solDecimals = 9

// ParseAmount reads a lamport amount. Plain integers are lamports; a "sol"
// suffix (any case) reads a decimal SOL amount, e.g. "0.0015sol" is
// 1500000 lamports.
func ParseAmount(s string) (uint64, error) {
	raw := strings.TrimSpace(s)
	lower := strings.ToLower(raw)
	inSOL := strings.HasSuffix(lower, "sol")
	if inSOL {
		raw = strings.TrimSpace(raw[:len(raw)-3])
	}
	if raw == "" {
		return 0, fmt.Errorf("amount %q: empty", s)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	if inSOL {
		d = d.Shift(solDecimals)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q: must not be negative", s)
	}
	if !d.IsInteger() {
		if inSOL {
			return 0, fmt.Errorf("amount %q: finer than one lamport", s)
		}
		return 0, fmt.Errorf("amount %q: lamports must be a whole number (use a sol suffix for SOL)", s)
	}

	n := d.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount %q: exceeds the maximum lamport amount", s)
	}
	return n.Uint64(), nil
}

// FormatSOL renders lamports as a SOL decimal without trailing zeros.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -solDecimals).String()
}

// ParseIdentity reads a base58 identity or one of the well-known names
// "vault" and "incinerator".
func ParseIdentity(s string) (ir.Identity, error) {
	switch strings.TrimSpace(s) {
	case "vault":
		addr, _, err := vault.Address()
		return addr, err
	case "incinerator":
		return ir.Incinerator, nil
	}
	return ir.ParseIdentity(strings.TrimSpace(s))
}
