package vault

import (
	"context"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// Snapshot is a read-only view of the vault.
type Snapshot struct {
	Address  ir.Identity
	Record   Record
	Lamports uint64
}

// Surplus is the lamports held beyond TotalAccrued: deposits made without
// AccrueFee, which the authority cannot withdraw.
func (s Snapshot) Surplus() uint64 {
	return s.Lamports - s.Record.TotalAccrued
}

// State loads the current vault state.
func (v *Vault) State(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := v.ledger.View(ctx, func(tx ledger.Tx) error {
		rec, err := v.load(ctx, tx)
		if err != nil {
			return err
		}
		acct, err := tx.Account(ctx, v.address)
		if err != nil {
			return err
		}
		snap = Snapshot{Address: v.address, Record: rec, Lamports: acct.Lamports}
		return nil
	})
	return snap, err
}
