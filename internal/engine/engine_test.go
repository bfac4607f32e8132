package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
	"github.com/roach88/solforge/internal/store"
	"github.com/roach88/solforge/internal/testutil"
	"github.com/roach88/solforge/internal/vault"
)

const t0 int64 = 1_700_000_000

func identity(b byte) ir.Identity {
	var id ir.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var (
	authority = identity(1)
	payer     = identity(2)
	stranger  = identity(3)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	path   string
	store  *store.Store
	wall   *testutil.ManualClock
	engine *Engine
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := &harness{
		t:     t,
		ctx:   context.Background(),
		path:  path,
		store: s,
		wall:  testutil.NewManualClock(t0),
	}
	opts = append([]Option{
		WithWallClock(h.wall),
		WithRequestIDs(testutil.NewSequentialRequestIDs("req")),
		WithLogger(quietLogger()),
	}, opts...)
	h.engine, err = New(s, s, opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) do(caller ir.Identity, op string, args ir.IRObject) Result {
	h.t.Helper()
	res, err := h.engine.Execute(h.ctx, Request{Operation: op, Caller: caller, Args: args})
	require.NoError(h.t, err)
	return res
}

func (h *harness) ok(caller ir.Identity, op string, args ir.IRObject) Result {
	h.t.Helper()
	res := h.do(caller, op, args)
	require.NoError(h.t, res.Err)
	require.True(h.t, res.Completion.Succeeded(), "output case %s", res.Completion.OutputCase)
	return res
}

func (h *harness) journal() store.JournalState {
	h.t.Helper()
	st, err := h.store.GetJournalState(h.ctx)
	require.NoError(h.t, err)
	return st
}

// runScenario drives the reference flow: fund, initialize, accrue, propose,
// an early execute that fails, and an execute at the release time.
func runScenario(h *harness) {
	h.t.Helper()
	h.ok(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(1_000_000_000)})
	h.ok(authority, OpInitialize, ir.IRObject{
		ArgFeeBps:       ir.IRInt(500),
		ArgBurnBps:      ir.IRInt(2000),
		ArgDelaySeconds: ir.IRInt(86_400),
	})
	h.ok(payer, OpAccrueFee, ir.IRObject{ArgAmount: ir.Lamports(1_000_000_000)})
	h.ok(authority, OpProposeParameterUpdate, ir.IRObject{ArgBurnBps: ir.IRInt(3000)})

	h.wall.Set(t0 + 86_399)
	early := h.do(authority, OpExecuteParameterUpdate, nil)
	require.ErrorIs(h.t, early.Err, vault.ErrTimelockNotExpired)

	h.wall.Set(t0 + 86_400)
	h.ok(authority, OpExecuteParameterUpdate, nil)
}

func TestEngine_ConcreteScenario(t *testing.T) {
	h := newHarness(t)
	runScenario(h)

	snap, err := h.engine.Vault().State(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(800_000_000), snap.Record.TotalAccrued)
	assert.Equal(t, uint64(800_000_000), snap.Lamports)
	assert.Equal(t, uint16(3000), snap.Record.BurnPercentageBps)
	assert.False(t, snap.Record.HasPending())

	burned, err := ledger.Balance(h.ctx, h.store, ir.Incinerator)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000_000), burned)

	st := h.journal()
	assert.Equal(t, 6, st.Invocations)
	assert.Equal(t, 6, st.Completions)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, int64(6), st.LastSeq)
	assert.Empty(t, st.Pending)

	events, err := h.store.ReadEvents(h.ctx, store.EventFilter{})
	require.NoError(t, err)
	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{
		"Airdropped",
		"VaultInitialized",
		"FeeAccrued",
		"ParameterUpdateProposed",
		"ParameterUpdateExecuted",
	}, names)
}

func TestEngine_FailedCompletionRecordsVaultCode(t *testing.T) {
	h := newHarness(t)
	h.ok(authority, OpInitialize, ir.IRObject{ArgFeeBps: ir.IRInt(500), ArgBurnBps: ir.IRInt(2000)})

	res := h.do(stranger, OpBurnSol, ir.IRObject{ArgAmount: ir.Lamports(5_000_000)})
	require.ErrorIs(t, res.Err, vault.ErrUnauthorized)
	assert.Equal(t, "Unauthorized", res.Completion.OutputCase)
	assert.False(t, res.Completion.Succeeded())
	assert.Empty(t, res.Events)

	msg, err := res.Completion.Result.String("message")
	require.NoError(t, err)
	assert.Equal(t, vault.ErrUnauthorized.Message, msg)

	stored, err := h.store.ReadCompletion(h.ctx, res.Invocation.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Completion.ID, stored.ID)
	assert.Equal(t, "Unauthorized", stored.OutputCase)
}

func TestEngine_FailureDetailsAreRecorded(t *testing.T) {
	h := newHarness(t)

	res := h.do(authority, OpInitialize, ir.IRObject{ArgFeeBps: ir.IRInt(10_001), ArgBurnBps: ir.IRInt(0)})
	require.ErrorIs(t, res.Err, vault.ErrInvalidFeeRate)
	assert.Equal(t, "InvalidFeeRate", res.Completion.OutputCase)

	value, err := res.Completion.Result.String("value")
	require.NoError(t, err)
	assert.Equal(t, "10001", value)
}

func TestEngine_InvocationRecordsRequest(t *testing.T) {
	h := newHarness(t)
	res := h.ok(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(42)})

	inv, err := h.store.ReadInvocation(h.ctx, res.Invocation.ID)
	require.NoError(t, err)
	assert.Equal(t, "req-0001", inv.RequestID)
	assert.Equal(t, OpAirdrop, inv.Operation)
	assert.Equal(t, payer, inv.Caller)
	assert.Equal(t, int64(1), inv.Seq)
	assert.Equal(t, t0, inv.Timestamp)
	assert.Equal(t, ir.EngineVersion, inv.EngineVersion)
	assert.Equal(t, ir.IRVersion, inv.IRVersion)

	want, err := ir.InvocationID(inv.RequestID, inv.Operation, inv.Caller, inv.Args, inv.Seq, inv.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, want, inv.ID, "invocation id is the content hash")
}

func TestEngine_ExplicitRequestID(t *testing.T) {
	h := newHarness(t)
	res, err := h.engine.Execute(h.ctx, Request{
		ID:        "client-7",
		Operation: OpAirdrop,
		Caller:    payer,
		Args:      ir.IRObject{ArgAmount: ir.Lamports(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "client-7", res.Invocation.RequestID)
}

func TestEngine_InitializeAuthorityDefaultsToCaller(t *testing.T) {
	h := newHarness(t)
	h.ok(authority, OpInitialize, ir.IRObject{ArgFeeBps: ir.IRInt(0), ArgBurnBps: ir.IRInt(0)})

	snap, err := h.engine.Vault().State(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, authority, snap.Record.Authority)
	assert.Equal(t, vault.DefaultDelaySeconds, snap.Record.DelaySeconds)
}

func TestEngine_InitializeExplicitAuthority(t *testing.T) {
	h := newHarness(t)
	h.ok(payer, OpInitialize, ir.IRObject{
		ArgAuthority: ir.IdentityValue(authority),
		ArgFeeBps:    ir.IRInt(0),
		ArgBurnBps:   ir.IRInt(0),
	})

	snap, err := h.engine.Vault().State(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, authority, snap.Record.Authority)
}

func TestEngine_RejectedBeforeSequencing(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		check func(error) bool
	}{
		{
			name:  "unknown operation",
			req:   Request{Operation: "mint", Caller: payer},
			check: IsUnknownOperation,
		},
		{
			name:  "missing amount",
			req:   Request{Operation: OpAccrueFee, Caller: payer},
			check: IsInvalidArgs,
		},
		{
			name: "amount is not a number",
			req: Request{Operation: OpBurnSol, Caller: authority, Args: ir.IRObject{
				ArgAmount: ir.IRString("lots"),
			}},
			check: IsInvalidArgs,
		},
		{
			name: "basis points do not fit",
			req: Request{Operation: OpInitialize, Caller: authority, Args: ir.IRObject{
				ArgFeeBps:  ir.IRInt(70_000),
				ArgBurnBps: ir.IRInt(0),
			}},
			check: IsInvalidArgs,
		},
		{
			name: "recipient is not an identity",
			req: Request{Operation: OpDistributeRewards, Caller: authority, Args: ir.IRObject{
				ArgRecipient: ir.IRString("not-base58-0OIl"),
				ArgAmount:    ir.Lamports(1),
			}},
			check: IsInvalidArgs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.engine.Execute(h.ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)

			assert.Equal(t, int64(0), h.engine.Seq(), "rejected request consumed a seq")
			assert.Equal(t, 0, h.journal().Invocations)
		})
	}
}

// burn_bps is a 16-bit field. Values that fit reach the vault and fail its
// range check as a recorded completion; values that do not fit are
// malformed and never sequenced.
func TestEngine_BurnBpsFieldWidth(t *testing.T) {
	h := newHarness(t)
	h.ok(authority, OpInitialize, ir.IRObject{ArgFeeBps: ir.IRInt(500), ArgBurnBps: ir.IRInt(2000)})

	for _, bps := range []int64{10_001, math.MaxUint16} {
		res := h.do(authority, OpProposeParameterUpdate, ir.IRObject{ArgBurnBps: ir.IRInt(bps)})
		assert.ErrorIs(t, res.Err, vault.ErrInvalidBurnPercentage, "bps %d", bps)
		assert.Equal(t, "InvalidBurnPercentage", res.Completion.OutputCase, "bps %d", bps)
	}

	seq := h.engine.Seq()
	for _, bps := range []int64{-1, math.MaxUint16 + 1} {
		_, err := h.engine.Execute(h.ctx, Request{
			Operation: OpProposeParameterUpdate,
			Caller:    authority,
			Args:      ir.IRObject{ArgBurnBps: ir.IRInt(bps)},
		})
		assert.True(t, IsInvalidArgs(err), "bps %d: %v", bps, err)
	}
	assert.Equal(t, seq, h.engine.Seq())
	assert.Equal(t, int(seq), h.journal().Invocations)
}

func TestEngine_ProposeArgsAreOptional(t *testing.T) {
	h := newHarness(t)
	h.ok(authority, OpInitialize, ir.IRObject{ArgFeeBps: ir.IRInt(0), ArgBurnBps: ir.IRInt(0)})

	res := h.do(authority, OpProposeParameterUpdate, nil)
	require.ErrorIs(t, res.Err, vault.ErrNoChangeProposed)

	res = h.ok(authority, OpProposeParameterUpdate, ir.IRObject{ArgDelaySeconds: ir.IRInt(7200)})
	delay, err := res.Completion.Result.Int("proposed_delay_secs")
	require.NoError(t, err)
	assert.Equal(t, int64(7200), delay)
	assert.False(t, res.Completion.Result.Has("proposed_burn_bps"))

	h.ok(authority, OpCancelParameterProposal, nil)
	res = h.do(authority, OpCancelParameterProposal, nil)
	require.ErrorIs(t, res.Err, vault.ErrNoPendingUpdate)
}

func TestEngine_DistributeRewards(t *testing.T) {
	h := newHarness(t)
	h.ok(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(vault.LamportsPerSOL)})
	h.ok(authority, OpInitialize, ir.IRObject{ArgFeeBps: ir.IRInt(0), ArgBurnBps: ir.IRInt(0)})
	h.ok(payer, OpAccrueFee, ir.IRObject{ArgAmount: ir.Lamports(vault.LamportsPerSOL)})

	h.ok(authority, OpDistributeRewards, ir.IRObject{
		ArgRecipient: ir.IdentityValue(stranger),
		ArgAmount:    ir.Lamports(250_000_000),
	})
	got, err := ledger.Balance(h.ctx, h.store, stranger)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), got)

	h.ok(authority, OpBurnSol, ir.IRObject{ArgAmount: ir.Lamports(250_000_000)})
	snap, err := h.engine.Vault().State(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), snap.Record.TotalAccrued)
}

func TestEngine_AirdropOverflowIsAFailedCompletion(t *testing.T) {
	h := newHarness(t)
	h.ok(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(^uint64(0))})

	res := h.do(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(1)})
	require.ErrorIs(t, res.Err, ledger.ErrBalanceOverflow)
	assert.Equal(t, ir.OutputFailure, res.Completion.OutputCase)

	msg, err := res.Completion.Result.String("message")
	require.NoError(t, err)
	assert.Equal(t, ledger.ErrBalanceOverflow.Error(), msg)
}

func TestEngine_ResumesSequence(t *testing.T) {
	h := newHarness(t)
	runScenario(h)
	last := h.journal().LastSeq

	e, err := New(h.store, h.store,
		WithSequencer(NewClockAt(last)),
		WithWallClock(h.wall),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	res, err := e.Execute(h.ctx, Request{Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(1)}})
	require.NoError(t, err)
	assert.Equal(t, last+1, res.Invocation.Seq)
}

// Two engines resumed at the same seq over one database file, as two CLI
// processes would be, must still record distinct seqs in the order they
// ran.
func TestEngine_SharedJournalAllocatesDistinctSeqs(t *testing.T) {
	h := newHarness(t)
	h.ok(authority, OpInitialize, ir.IRObject{
		ArgFeeBps:       ir.IRInt(500),
		ArgBurnBps:      ir.IRInt(2000),
		ArgDelaySeconds: ir.IRInt(86_400),
	})
	last := h.journal().LastSeq
	require.Equal(t, int64(1), last)

	other, err := store.Open(h.path)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	a, err := New(h.store, h.store, WithSequencer(NewClockAt(last)), WithWallClock(h.wall), WithLogger(quietLogger()))
	require.NoError(t, err)
	b, err := New(other, other, WithSequencer(NewClockAt(last)), WithWallClock(h.wall), WithLogger(quietLogger()))
	require.NoError(t, err)

	funded, err := b.Execute(h.ctx, Request{Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(1_000)}})
	require.NoError(t, err)
	require.NoError(t, funded.Err)

	accrued, err := a.Execute(h.ctx, Request{Operation: OpAccrueFee, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(1_000)}})
	require.NoError(t, err)
	require.NoError(t, accrued.Err, "accrue must see the airdrop made through the other store")

	assert.Equal(t, int64(2), funded.Invocation.Seq)
	assert.Equal(t, int64(3), accrued.Invocation.Seq)
	assert.Equal(t, int64(3), a.Seq())

	report, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Requests)
	assert.True(t, report.Deterministic(), "divergences: %v", report.Divergences)
}

// A clock behind the journal is moved past the journal's last seq.
func TestEngine_JournalSeqWinsOverStaleClock(t *testing.T) {
	h := newHarness(t)
	h.ok(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(10)})

	// Another writer recorded seq 99.
	_, err := h.store.DB().Exec(`
		INSERT INTO invocations (id, request_id, operation, caller, args, seq, timestamp, engine_version, ir_version)
		SELECT 'elsewhere', 'elsewhere', operation, caller, args, 99, timestamp, engine_version, ir_version
		FROM invocations WHERE seq = 1
	`)
	require.NoError(t, err)

	res := h.ok(payer, OpAirdrop, ir.IRObject{ArgAmount: ir.Lamports(5)})
	assert.Equal(t, int64(100), res.Invocation.Seq)
	assert.Equal(t, int64(100), h.engine.Seq())
}

type completionFailingStore struct {
	*store.Store
	err error
}

func (s completionFailingStore) WriteCompletion(context.Context, ir.Completion) error { return s.err }

// A request that fails to journal inside the serialized transaction leaves
// nothing behind: no invocation and no ledger change.
func TestEngine_SerializedFailureRollsBackRequest(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("disk full")
	e, err := New(h.store, completionFailingStore{Store: h.store, err: boom}, WithWallClock(h.wall), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = e.Execute(h.ctx, Request{Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(10)}})
	require.ErrorIs(t, err, boom)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeJournal, re.Code)
	assert.Equal(t, "completion", re.Details["stage"])

	assert.Equal(t, 0, h.journal().Invocations)
	balance, err := ledger.Balance(h.ctx, h.store, payer)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

type failingJournal struct {
	nopJournal
	err error
}

func (j failingJournal) WriteInvocation(context.Context, ir.Invocation) error { return j.err }

func TestEngine_JournalFailureLeavesLedgerUntouched(t *testing.T) {
	mem := ledger.NewMemory()
	boom := errors.New("disk full")
	e, err := New(mem, failingJournal{err: boom}, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), Request{
		Operation: OpAirdrop,
		Caller:    payer,
		Args:      ir.IRObject{ArgAmount: ir.Lamports(10)},
	})
	require.ErrorIs(t, err, boom)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeJournal, re.Code)
	assert.Equal(t, "invocation", re.Details["stage"])
	assert.Empty(t, mem.Accounts())
}

func TestEngine_NilJournal(t *testing.T) {
	mem := ledger.NewMemory()
	e, err := New(mem, nil, WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), Request{
		Operation: OpAirdrop,
		Caller:    payer,
		Args:      ir.IRObject{ArgAmount: ir.Lamports(10)},
	})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Airdropped", res.Events[0].Name)
}

func TestEngine_SubmitThroughRunLoop(t *testing.T) {
	h := newHarness(t)

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(h.ctx) }()

	res, err := h.engine.Submit(h.ctx, Request{Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(7)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Invocation.Seq)

	h.engine.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = h.engine.Submit(h.ctx, Request{Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(7)}})
	assert.True(t, IsStopped(err), "unexpected error: %v", err)
}

// A request whose submitter gave up before the Run loop reached it is
// never applied.
func TestEngine_SubmitWithdrawnBeforeRun(t *testing.T) {
	h := newHarness(t)

	gone, cancel := context.WithCancel(h.ctx)
	cancel()
	_, err := h.engine.Submit(gone, Request{ID: "gone", Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(7)}})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, h.engine.QueueLen())

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(h.ctx) }()

	res, err := h.engine.Submit(h.ctx, Request{Operation: OpAirdrop, Caller: payer, Args: ir.IRObject{ArgAmount: ir.Lamports(5)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Invocation.Seq)

	h.engine.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.Equal(t, 1, h.journal().Invocations)
	balance, err := ledger.Balance(h.ctx, h.store, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(h.ctx)

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngine_StopFailsQueuedRequests(t *testing.T) {
	h := newHarness(t)

	j := &job{req: Request{ID: "queued", Operation: OpAirdrop}, done: make(chan outcome, 1)}
	require.True(t, h.engine.queue.Enqueue(j))
	h.engine.Stop()

	out := <-j.done
	assert.True(t, IsStopped(out.err))
	assert.Equal(t, 0, h.engine.QueueLen())
}

func TestOperations_Sorted(t *testing.T) {
	assert.Equal(t, []string{
		OpAccrueFee,
		OpAirdrop,
		OpBurnSol,
		OpCancelParameterProposal,
		OpDistributeRewards,
		OpExecuteParameterUpdate,
		OpInitialize,
		OpProposeParameterUpdate,
	}, Operations())
}
