package vault

import (
	"strconv"

	"github.com/roach88/solforge/internal/ir"
)

// Record is the persistent state of the vault.
type Record struct {
	// Authority may burn, distribute and govern. Fixed at initialization.
	Authority ir.Identity

	// TotalAccrued is the net amount the authority may still dispose of.
	// It never exceeds the lamports held by the vault account.
	TotalAccrued uint64

	// FeeBasisPoints is advisory configuration; no operation reads it.
	FeeBasisPoints uint16

	// BurnPercentageBps is the share of every deposit sent to the sink.
	BurnPercentageBps uint16

	// DelaySeconds is the governance timelock.
	DelaySeconds int64

	// Bump is the derivation disambiguator of the vault address.
	Bump uint8

	PendingBurnPercentageBps Change[uint16]
	PendingDelaySeconds      Change[int64]

	// PendingReleaseTime is the earliest execution time of the pending
	// proposal, or 0 when none is pending.
	PendingReleaseTime int64
}

// HasPending reports whether a proposal is awaiting execution.
func (r Record) HasPending() bool {
	return r.PendingReleaseTime != 0
}

func (r *Record) clearPending() {
	r.PendingBurnPercentageBps = Unchanged[uint16]()
	r.PendingDelaySeconds = Unchanged[int64]()
	r.PendingReleaseTime = 0
}

// Validate checks the record's structural invariants.
func (r Record) Validate() error {
	switch {
	case r.Authority.IsZero():
		return ErrInvalidAccountData.with("field", "authority", "reason", "zero")
	case !validBasisPoints(r.FeeBasisPoints):
		return ErrInvalidAccountData.with("field", "fee_basis_points", "value", r.FeeBasisPoints)
	case !validBasisPoints(r.BurnPercentageBps):
		return ErrInvalidAccountData.with("field", "burn_percentage_bps", "value", r.BurnPercentageBps)
	case !validDelay(r.DelaySeconds):
		return ErrInvalidAccountData.with("field", "delay_seconds", "value", r.DelaySeconds)
	case r.PendingReleaseTime < 0:
		return ErrInvalidAccountData.with("field", "pending_release_time", "value", r.PendingReleaseTime)
	}

	pendingSet := r.PendingBurnPercentageBps.IsSet() || r.PendingDelaySeconds.IsSet()
	if pendingSet != r.HasPending() {
		return ErrInvalidAccountData.with(
			"field", "pending",
			"release_time", r.PendingReleaseTime,
			"values_set", strconv.FormatBool(pendingSet),
		)
	}
	if bps, ok := r.PendingBurnPercentageBps.Get(); ok && !validBasisPoints(bps) {
		return ErrInvalidAccountData.with("field", "pending_burn_percentage_bps", "value", bps)
	}
	if d, ok := r.PendingDelaySeconds.Get(); ok && !validDelay(d) {
		return ErrInvalidAccountData.with("field", "pending_delay_seconds", "value", d)
	}
	return nil
}
