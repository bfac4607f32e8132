package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// Params are the genesis parameters of the vault.
type Params struct {
	Authority         ir.Identity
	FeeBasisPoints    uint16
	BurnPercentageBps uint16

	// DelaySeconds defaults to DefaultDelaySeconds when unchanged.
	DelaySeconds Change[int64]
}

// Initialize creates the vault Record. It succeeds at most once.
func (v *Vault) Initialize(ctx context.Context, p Params) (VaultInitialized, error) {
	if p.Authority.IsZero() {
		return VaultInitialized{}, ErrInvalidAuthority
	}
	if !validBasisPoints(p.FeeBasisPoints) {
		return VaultInitialized{}, ErrInvalidFeeRate.with("value", p.FeeBasisPoints)
	}
	if !validBasisPoints(p.BurnPercentageBps) {
		return VaultInitialized{}, ErrInvalidBurnPercentage.with("value", p.BurnPercentageBps)
	}
	delay := p.DelaySeconds.Or(DefaultDelaySeconds)
	if !validDelay(delay) {
		return VaultInitialized{}, ErrInvalidDelay.with("value", delay, "min", MinDelaySeconds, "max", MaxDelaySeconds)
	}

	rec := Record{
		Authority:         p.Authority,
		FeeBasisPoints:    p.FeeBasisPoints,
		BurnPercentageBps: p.BurnPercentageBps,
		DelaySeconds:      delay,
		Bump:              v.bump,
	}
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		err := tx.CreateAccount(ctx, v.address, EncodeRecord(rec))
		if errors.Is(err, ledger.ErrAccountExists) {
			return ErrAlreadyInitialized
		}
		if err != nil {
			return fmt.Errorf("create vault: %w", err)
		}
		return v.commit(ctx, tx, rec)
	})
	if err != nil {
		return VaultInitialized{}, err
	}

	ev := VaultInitialized{
		Vault:             v.address,
		Authority:         rec.Authority,
		FeeBasisPoints:    rec.FeeBasisPoints,
		BurnPercentageBps: rec.BurnPercentageBps,
		DelaySeconds:      rec.DelaySeconds,
		Bump:              rec.Bump,
	}
	v.logger.Info("vault initialized",
		"vault", v.address,
		"authority", rec.Authority,
		"burn_bps", rec.BurnPercentageBps,
		"delay_seconds", rec.DelaySeconds)
	v.emit(ctx, ev)
	return ev, nil
}
