package vault

import (
	"context"

	"github.com/roach88/solforge/internal/ir"
)

// Event is a structured record emitted after a successful operation.
type Event interface {
	// EventName is the stable name observers match on.
	EventName() string

	// Payload returns the event fields as an IR object.
	Payload() ir.IRObject
}

// EventSink receives events after the ledger commits. An Emit failure is
// logged by the vault and never undoes the operation.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event) error

// Emit calls f.
func (f EventSinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) error { return nil }

// VaultInitialized is emitted once, by Initialize.
type VaultInitialized struct {
	Vault             ir.Identity
	Authority         ir.Identity
	FeeBasisPoints    uint16
	BurnPercentageBps uint16
	DelaySeconds      int64
	Bump              uint8
}

func (VaultInitialized) EventName() string { return "VaultInitialized" }

func (e VaultInitialized) Payload() ir.IRObject {
	return ir.IRObject{
		"vault":               ir.IdentityValue(e.Vault),
		"authority":           ir.IdentityValue(e.Authority),
		"fee_basis_points":    ir.IRInt(e.FeeBasisPoints),
		"burn_percentage_bps": ir.IRInt(e.BurnPercentageBps),
		"delay_seconds":       ir.IRInt(e.DelaySeconds),
		"bump":                ir.IRInt(e.Bump),
	}
}

// FeeAccrued is emitted by AccrueFee.
type FeeAccrued struct {
	Payer        ir.Identity
	Gross        uint64
	Burned       uint64
	Net          uint64
	TotalAccrued uint64
}

func (FeeAccrued) EventName() string { return "FeeAccrued" }

func (e FeeAccrued) Payload() ir.IRObject {
	return ir.IRObject{
		"payer":         ir.IdentityValue(e.Payer),
		"gross":         ir.Lamports(e.Gross),
		"burned":        ir.Lamports(e.Burned),
		"net":           ir.Lamports(e.Net),
		"total_accrued": ir.Lamports(e.TotalAccrued),
	}
}

// SolBurned is emitted by BurnSol.
type SolBurned struct {
	Amount    uint64
	Remaining uint64
}

func (SolBurned) EventName() string { return "SolBurned" }

func (e SolBurned) Payload() ir.IRObject {
	return ir.IRObject{
		"amount":    ir.Lamports(e.Amount),
		"remaining": ir.Lamports(e.Remaining),
	}
}

// RewardsDistributed is emitted by DistributeRewards.
type RewardsDistributed struct {
	Recipient ir.Identity
	Amount    uint64
	Remaining uint64
}

func (RewardsDistributed) EventName() string { return "RewardsDistributed" }

func (e RewardsDistributed) Payload() ir.IRObject {
	return ir.IRObject{
		"recipient": ir.IdentityValue(e.Recipient),
		"amount":    ir.Lamports(e.Amount),
		"remaining": ir.Lamports(e.Remaining),
	}
}

// ParameterUpdateProposed is emitted by ProposeParameterUpdate. Unchanged
// fields are left out of the payload.
type ParameterUpdateProposed struct {
	BurnPercentageBps Change[uint16]
	DelaySeconds      Change[int64]
	ReleaseAt         int64
}

func (ParameterUpdateProposed) EventName() string { return "ParameterUpdateProposed" }

func (e ParameterUpdateProposed) Payload() ir.IRObject {
	obj := ir.IRObject{"release_at": ir.IRInt(e.ReleaseAt)}
	if bps, ok := e.BurnPercentageBps.Get(); ok {
		obj["proposed_burn_bps"] = ir.IRInt(bps)
	}
	if d, ok := e.DelaySeconds.Get(); ok {
		obj["proposed_delay_secs"] = ir.IRInt(d)
	}
	return obj
}

// ParameterUpdateExecuted carries the live values after execution.
type ParameterUpdateExecuted struct {
	BurnPercentageBps uint16
	DelaySeconds      int64
}

func (ParameterUpdateExecuted) EventName() string { return "ParameterUpdateExecuted" }

func (e ParameterUpdateExecuted) Payload() ir.IRObject {
	return ir.IRObject{
		"burn_percentage_bps": ir.IRInt(e.BurnPercentageBps),
		"delay_seconds":       ir.IRInt(e.DelaySeconds),
	}
}

// ParameterUpdateCanceled is emitted by CancelParameterProposal.
type ParameterUpdateCanceled struct{}

func (ParameterUpdateCanceled) EventName() string { return "ParameterUpdateCanceled" }

func (ParameterUpdateCanceled) Payload() ir.IRObject { return ir.IRObject{} }
