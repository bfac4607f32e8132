package vault

import (
	"context"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// AccrueFee takes amount from payer, sends the burn share to the sink and
// adds the rest to TotalAccrued. Anyone may call it.
func (v *Vault) AccrueFee(ctx context.Context, payer ir.Identity, amount uint64) (FeeAccrued, error) {
	var ev FeeAccrued
	err := v.ledger.Update(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrAmountTooSmall.with("amount", amount, "min", 1)
		}
		// The vault paying itself would inflate TotalAccrued without moving
		// lamports.
		if payer == v.address {
			return ErrInvalidPayer.with("payer", payer)
		}
		if err := v.checkSink(); err != nil {
			return err
		}

		burned, err := burnShare(amount, rec.BurnPercentageBps)
		if err != nil {
			return err
		}
		net, err := checkedSub(amount, burned)
		if err != nil {
			return err
		}
		total, err := checkedAdd(rec.TotalAccrued, net)
		if err != nil {
			return err
		}

		if err := v.transfer(ctx, tx, payer, v.address, amount); err != nil {
			return err
		}
		if burned > 0 {
			if err := v.transfer(ctx, tx, v.address, v.sink, burned); err != nil {
				return err
			}
		}

		rec.TotalAccrued = total
		if err := v.commit(ctx, tx, rec); err != nil {
			return err
		}
		ev = FeeAccrued{Payer: payer, Gross: amount, Burned: burned, Net: net, TotalAccrued: total}
		return nil
	})
	if err != nil {
		return FeeAccrued{}, err
	}

	v.logger.Debug("fee accrued",
		"payer", payer,
		"gross", ev.Gross,
		"burned", ev.Burned,
		"total_accrued", ev.TotalAccrued)
	v.emit(ctx, ev)
	return ev, nil
}
