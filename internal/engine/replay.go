package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// JournalSource reads a recorded request history. *store.Store implements it.
type JournalSource interface {
	ReadAllInvocations(ctx context.Context) ([]ir.Invocation, error)
	ReadAllCompletions(ctx context.Context) ([]ir.Completion, error)
}

// Divergence is one recorded request whose replay did not reproduce the
// journal.
type Divergence struct {
	Seq          int64
	InvocationID string
	Operation    string
	Reason       string
	Recorded     string
	Replayed     string
}

func (d Divergence) String() string {
	return fmt.Sprintf("seq %d %s: %s (recorded %q, replayed %q)",
		d.Seq, d.Operation, d.Reason, d.Recorded, d.Replayed)
}

// ReplayReport is the outcome of replaying a journal.
type ReplayReport struct {
	Requests    int
	Divergences []Divergence

	// Accounts is the ledger state the replay produced, sorted by address.
	Accounts []ledger.Account
}

// Deterministic reports whether replay reproduced every recorded id.
func (r ReplayReport) Deterministic() bool {
	return len(r.Divergences) == 0
}

// Replay re-executes a journal against an empty in-memory ledger.
//
// Requests run in recorded seq order with their recorded timestamps, so
// the vault observes exactly the times it observed originally. Every
// invocation and completion id is recomputed and compared; ids are content
// hashes, so any difference in arguments, outcome, or result shows up as a
// divergence, and every recorded completion must still hash to its own id.
// Invocations without a completion are replayed and reported.
func Replay(ctx context.Context, src JournalSource, opts ...Option) (ReplayReport, error) {
	var report ReplayReport

	invs, err := src.ReadAllInvocations(ctx)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	comps, err := src.ReadAllCompletions(ctx)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	recorded := make(map[string]ir.Completion, len(comps))
	for _, c := range comps {
		recorded[c.InvocationID] = c
	}

	mem := ledger.NewMemory()
	e, err := New(mem, nil, opts...)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, inv := range invs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("replay: %w", err)
		}
		report.Requests++

		req := Request{
			ID:        inv.RequestID,
			Operation: inv.Operation,
			Caller:    inv.Caller,
			Args:      inv.Args,
		}
		if req.Args == nil {
			req.Args = ir.IRObject{}
		}
		diverge := func(reason, rec, rep string) {
			report.Divergences = append(report.Divergences, Divergence{
				Seq:          inv.Seq,
				InvocationID: inv.ID,
				Operation:    inv.Operation,
				Reason:       reason,
				Recorded:     rec,
				Replayed:     rep,
			})
		}

		op, err := bind(req)
		if err != nil {
			diverge("arguments no longer bind", "", err.Error())
			continue
		}
		res, err := e.apply(ctx, req, op, inv.Seq, inv.Timestamp)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", inv.Seq, err)
		}

		if res.Invocation.ID != inv.ID {
			diverge("invocation id mismatch", inv.ID, res.Invocation.ID)
		}
		comp, ok := recorded[inv.ID]
		switch {
		case !ok:
			diverge("completion missing", "", res.Completion.OutputCase)
		case comp.OutputCase != res.Completion.OutputCase:
			diverge("output case mismatch", comp.OutputCase, res.Completion.OutputCase)
		case comp.ID != res.Completion.ID:
			diverge("completion id mismatch", comp.ID, res.Completion.ID)
		default:
			// Same id as replayed; the stored row must still hash to it.
			stored, err := ir.CompletionID(comp.InvocationID, comp.OutputCase, comp.Result, comp.Seq)
			if err != nil || stored != comp.ID {
				diverge("recorded completion altered", comp.ID, stored)
			}
		}
	}

	report.Accounts = mem.Accounts()
	e.logger.Info("replay finished",
		slog.Int("requests", report.Requests),
		slog.Int("divergences", len(report.Divergences)),
	)
	return report, nil
}
