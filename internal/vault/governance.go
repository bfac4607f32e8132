package vault

import (
	"context"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// Proposal names the parameters to change. Unchanged fields keep their
// live values when the proposal executes.
type Proposal struct {
	BurnPercentageBps Change[uint16]
	DelaySeconds      Change[int64]
}

// IsEmpty reports whether the proposal changes nothing.
func (p Proposal) IsEmpty() bool {
	return !p.BurnPercentageBps.IsSet() && !p.DelaySeconds.IsSet()
}

func (p Proposal) validate() error {
	if p.IsEmpty() {
		return ErrNoChangeProposed
	}
	if bps, ok := p.BurnPercentageBps.Get(); ok && !validBasisPoints(bps) {
		return ErrInvalidBurnPercentage.with("value", bps)
	}
	if d, ok := p.DelaySeconds.Get(); ok && !validDelay(d) {
		return ErrInvalidDelay.with("value", d, "min", MinDelaySeconds, "max", MaxDelaySeconds)
	}
	return nil
}

// ProposeParameterUpdate records p as the pending proposal, replacing any
// earlier one, and starts the timelock with the current delay.
func (v *Vault) ProposeParameterUpdate(ctx context.Context, caller ir.Identity, p Proposal) (ParameterUpdateProposed, error) {
	now := v.clock.Now()
	var ev ParameterUpdateProposed
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := v.requireAuthority(rec, caller); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		releaseAt, err := releaseTime(now, rec.DelaySeconds)
		if err != nil {
			return err
		}
		if releaseAt <= 0 {
			return ErrArithmeticUnderflow.with("now", now, "delay", rec.DelaySeconds)
		}

		rec.PendingBurnPercentageBps = p.BurnPercentageBps
		rec.PendingDelaySeconds = p.DelaySeconds
		rec.PendingReleaseTime = releaseAt
		if err := v.commit(ctx, tx, rec); err != nil {
			return err
		}
		ev = ParameterUpdateProposed{
			BurnPercentageBps: p.BurnPercentageBps,
			DelaySeconds:      p.DelaySeconds,
			ReleaseAt:         releaseAt,
		}
		return nil
	})
	if err != nil {
		return ParameterUpdateProposed{}, err
	}

	v.logger.Info("parameter update proposed",
		"burn_bps", p.BurnPercentageBps,
		"delay_seconds", p.DelaySeconds,
		"release_at", ev.ReleaseAt)
	v.emit(ctx, ev)
	return ev, nil
}

// ExecuteParameterUpdate applies the pending proposal once its release
// time has passed.
func (v *Vault) ExecuteParameterUpdate(ctx context.Context, caller ir.Identity) (ParameterUpdateExecuted, error) {
	now := v.clock.Now()
	var ev ParameterUpdateExecuted
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := v.requireAuthority(rec, caller); err != nil {
			return err
		}
		if !rec.HasPending() {
			return ErrNoPendingUpdate
		}
		if now < rec.PendingReleaseTime {
			return ErrTimelockNotExpired.with(
				"now", now,
				"release_at", rec.PendingReleaseTime,
				"remaining_seconds", rec.PendingReleaseTime-now)
		}

		rec.BurnPercentageBps = rec.PendingBurnPercentageBps.Or(rec.BurnPercentageBps)
		rec.DelaySeconds = rec.PendingDelaySeconds.Or(rec.DelaySeconds)
		rec.clearPending()
		if err := v.commit(ctx, tx, rec); err != nil {
			return err
		}
		ev = ParameterUpdateExecuted{
			BurnPercentageBps: rec.BurnPercentageBps,
			DelaySeconds:      rec.DelaySeconds,
		}
		return nil
	})
	if err != nil {
		return ParameterUpdateExecuted{}, err
	}

	v.logger.Info("parameter update executed",
		"burn_bps", ev.BurnPercentageBps,
		"delay_seconds", ev.DelaySeconds)
	v.emit(ctx, ev)
	return ev, nil
}

// CancelParameterProposal discards the pending proposal.
func (v *Vault) CancelParameterProposal(ctx context.Context, caller ir.Identity) (ParameterUpdateCanceled, error) {
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := v.requireAuthority(rec, caller); err != nil {
			return err
		}
		if !rec.HasPending() {
			return ErrNoPendingUpdate
		}
		rec.clearPending()
		return v.commit(ctx, tx, rec)
	})
	if err != nil {
		return ParameterUpdateCanceled{}, err
	}

	v.logger.Info("parameter update canceled")
	v.emit(ctx, ParameterUpdateCanceled{})
	return ParameterUpdateCanceled{}, nil
}
