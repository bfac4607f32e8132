package vault

import (
	"context"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// withdrawable checks a burn or distribution amount against the dust floor
// and the accrued balance, returning the remaining balance.
func withdrawable(rec Record, amount uint64) (uint64, error) {
	if amount < MinDustThreshold {
		return 0, ErrAmountTooSmall.with("amount", amount, "min", MinDustThreshold)
	}
	if amount > rec.TotalAccrued {
		return 0, ErrInsufficientBalance.with("amount", amount, "total_accrued", rec.TotalAccrued)
	}
	return checkedSub(rec.TotalAccrued, amount)
}

// BurnSol sends amount of the accrued balance to the sink.
func (v *Vault) BurnSol(ctx context.Context, caller ir.Identity, amount uint64) (SolBurned, error) {
	var ev SolBurned
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := v.requireAuthority(rec, caller); err != nil {
			return err
		}
		remaining, err := withdrawable(rec, amount)
		if err != nil {
			return err
		}
		if err := v.checkSink(); err != nil {
			return err
		}

		if err := v.transfer(ctx, tx, v.address, v.sink, amount); err != nil {
			return err
		}
		rec.TotalAccrued = remaining
		if err := v.commit(ctx, tx, rec); err != nil {
			return err
		}
		ev = SolBurned{Amount: amount, Remaining: remaining}
		return nil
	})
	if err != nil {
		return SolBurned{}, err
	}

	v.logger.Info("sol burned", "amount", ev.Amount, "remaining", ev.Remaining)
	v.emit(ctx, ev)
	return ev, nil
}

// DistributeRewards sends amount of the accrued balance to recipient.
func (v *Vault) DistributeRewards(ctx context.Context, caller, recipient ir.Identity, amount uint64) (RewardsDistributed, error) {
	var ev RewardsDistributed
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := v.requireAuthority(rec, caller); err != nil {
			return err
		}
		if recipient == v.address {
			return ErrInvalidRecipient.with("recipient", recipient)
		}
		remaining, err := withdrawable(rec, amount)
		if err != nil {
			return err
		}

		if err := v.transfer(ctx, tx, v.address, recipient, amount); err != nil {
			return err
		}
		rec.TotalAccrued = remaining
		if err := v.commit(ctx, tx, rec); err != nil {
			return err
		}
		ev = RewardsDistributed{Recipient: recipient, Amount: amount, Remaining: remaining}
		return nil
	})
	if err != nil {
		return RewardsDistributed{}, err
	}

	v.logger.Info("rewards distributed",
		"recipient", recipient,
		"amount", ev.Amount,
		"remaining", ev.Remaining)
	v.emit(ctx, ev)
	return ev, nil
}
