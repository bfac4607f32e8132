package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
	"github.com/roach88/solforge/internal/vault"
)

// Operation names accepted in Request.Operation.
const (
	OpInitialize              = "initialize"
	OpAccrueFee               = "accrue_fee"
	OpBurnSol                 = "burn_sol"
	OpDistributeRewards       = "distribute_rewards"
	OpProposeParameterUpdate  = "propose_parameter_update"
	OpExecuteParameterUpdate  = "execute_parameter_update"
	OpCancelParameterProposal = "cancel_parameter_proposal"

	// OpAirdrop credits lamports from nothing. Development faucet only.
	OpAirdrop = "airdrop"
)

// Argument keys.
const (
	ArgAuthority    = "authority"
	ArgFeeBps       = "fee_bps"
	ArgBurnBps      = "burn_bps"
	ArgDelaySeconds = "delay_seconds"
	ArgAmount       = "amount"
	ArgRecipient    = "recipient"
	ArgTo           = "to"
)

// boundOp is a decoded request ready to run against the vault.
type boundOp func(ctx context.Context, e *Engine) (vault.Event, error)

type binder func(req Request) (boundOp, error)

var binders = map[string]binder{
	OpInitialize:              bindInitialize,
	OpAccrueFee:               bindAccrueFee,
	OpBurnSol:                 bindBurnSol,
	OpDistributeRewards:       bindDistributeRewards,
	OpProposeParameterUpdate:  bindPropose,
	OpExecuteParameterUpdate:  bindExecute,
	OpCancelParameterProposal: bindCancel,
	OpAirdrop:                 bindAirdrop,
}

// Operations returns the accepted operation names, sorted.
func Operations() []string {
	ops := make([]string, 0, len(binders))
	for op := range binders {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// bind decodes req into a runnable operation.
func bind(req Request) (boundOp, error) {
	b, ok := binders[req.Operation]
	if !ok {
		return nil, &RuntimeError{
			Code:      ErrCodeUnknownOperation,
			Message:   fmt.Sprintf("unknown operation %q", req.Operation),
			RequestID: req.ID,
			Operation: req.Operation,
		}
	}
	op, err := b(req)
	if err != nil {
		return nil, newInvalidArgs(req, err)
	}
	return op, nil
}

func bindInitialize(req Request) (boundOp, error) {
	params := vault.Params{Authority: req.Caller}
	if req.Args.Has(ArgAuthority) {
		id, err := req.Args.Identity(ArgAuthority)
		if err != nil {
			return nil, err
		}
		params.Authority = id
	}
	var err error
	if params.FeeBasisPoints, err = basisPoints(req.Args, ArgFeeBps); err != nil {
		return nil, err
	}
	if params.BurnPercentageBps, err = basisPoints(req.Args, ArgBurnBps); err != nil {
		return nil, err
	}
	if req.Args.Has(ArgDelaySeconds) {
		d, err := req.Args.Int(ArgDelaySeconds)
		if err != nil {
			return nil, err
		}
		params.DelaySeconds = vault.SetTo(d)
	}
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.Initialize(ctx, params)
	}, nil
}

func bindAccrueFee(req Request) (boundOp, error) {
	amount, err := req.Args.Uint64(ArgAmount)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.AccrueFee(ctx, req.Caller, amount)
	}, nil
}

func bindBurnSol(req Request) (boundOp, error) {
	amount, err := req.Args.Uint64(ArgAmount)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.BurnSol(ctx, req.Caller, amount)
	}, nil
}

func bindDistributeRewards(req Request) (boundOp, error) {
	recipient, err := req.Args.Identity(ArgRecipient)
	if err != nil {
		return nil, err
	}
	amount, err := req.Args.Uint64(ArgAmount)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.DistributeRewards(ctx, req.Caller, recipient, amount)
	}, nil
}

func bindPropose(req Request) (boundOp, error) {
	var p vault.Proposal
	if req.Args.Has(ArgBurnBps) {
		bps, err := basisPoints(req.Args, ArgBurnBps)
		if err != nil {
			return nil, err
		}
		p.BurnPercentageBps = vault.SetTo(bps)
	}
	if req.Args.Has(ArgDelaySeconds) {
		d, err := req.Args.Int(ArgDelaySeconds)
		if err != nil {
			return nil, err
		}
		p.DelaySeconds = vault.SetTo(d)
	}
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.ProposeParameterUpdate(ctx, req.Caller, p)
	}, nil
}

func bindExecute(req Request) (boundOp, error) {
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.ExecuteParameterUpdate(ctx, req.Caller)
	}, nil
}

func bindCancel(req Request) (boundOp, error) {
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		return e.vault.CancelParameterProposal(ctx, req.Caller)
	}, nil
}

func bindAirdrop(req Request) (boundOp, error) {
	to := req.Caller
	if req.Args.Has(ArgTo) {
		id, err := req.Args.Identity(ArgTo)
		if err != nil {
			return nil, err
		}
		to = id
	}
	amount, err := req.Args.Uint64(ArgAmount)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, e *Engine) (vault.Event, error) {
		if err := ledger.Airdrop(ctx, e.ledger, to, amount); err != nil {
			return nil, err
		}
		ev := Airdropped{To: to, Amount: amount}
		e.pending = append(e.pending, ev)
		return ev, nil
	}, nil
}

// basisPoints reads a uint16 rate. Values above 10000 pass through so the
// vault reports the range error as a completion. Values outside the field's
// width (negative or above 65535) cannot be encoded at all, so they are
// malformed arguments and the request is never sequenced.
func basisPoints(args ir.IRObject, key string) (uint16, error) {
	n, err := args.Int(key)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxUint16 {
		return 0, fmt.Errorf("field %q: %d is not a basis-point value", key, n)
	}
	return uint16(n), nil
}

// Airdropped records a faucet credit.
type Airdropped struct {
	To     ir.Identity
	Amount uint64
}

func (Airdropped) EventName() string { return "Airdropped" }

func (a Airdropped) Payload() ir.IRObject {
	return ir.IRObject{
		"to":     ir.IdentityValue(a.To),
		"amount": ir.Lamports(a.Amount),
	}
}
