package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
	"github.com/roach88/solforge/internal/vault"
)

// Journal persists the request history. *store.Store implements it.
type Journal interface {
	WriteInvocation(ctx context.Context, inv ir.Invocation) error
	WriteCompletion(ctx context.Context, comp ir.Completion) error
	AppendEvents(ctx context.Context, events []ir.EventRecord) error
}

// Serializer is implemented by journals that can run a whole request inside
// one transaction holding the database write lock. lastSeq is the highest
// seq recorded by any writer. *store.Store implements it.
type Serializer interface {
	Serialize(ctx context.Context, fn func(ctx context.Context, lastSeq int64) error) error
}

type nopJournal struct{}

func (nopJournal) WriteInvocation(context.Context, ir.Invocation) error { return nil }
func (nopJournal) WriteCompletion(context.Context, ir.Completion) error { return nil }
func (nopJournal) AppendEvents(context.Context, []ir.EventRecord) error { return nil }

// Request asks the engine to run one vault operation.
type Request struct {
	// ID correlates the request across logs and the journal. Generated
	// when empty.
	ID        string
	Operation string
	Caller    ir.Identity
	Args      ir.IRObject
}

// Result is what the engine recorded for a request.
//
// Err is the vault's rejection, if any. A rejected request is still a
// completed request: it has a journaled invocation and completion.
type Result struct {
	Invocation ir.Invocation
	Completion ir.Completion
	Events     []ir.EventRecord
	Err        error
}

// Engine is the single writer in front of the vault.
//
// Every request is bound, stamped with a seq and a wall-clock timestamp,
// journaled as an invocation, applied, and journaled as a completion. The
// timestamp on the invocation is the only time the vault ever observes.
//
// Thread-safety model:
//   - Execute, Submit, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Execute and the Run loop share a mutex, so requests are applied one at a
// time in seq order no matter how they arrive.
type Engine struct {
	ledger  ledger.Ledger
	journal Journal
	vault   *vault.Vault
	seq     Sequencer
	wall    WallClock
	ids     RequestIDGenerator
	queue   *requestQueue
	logger  *slog.Logger

	mu      sync.Mutex
	now     int64
	pending []vault.Event
}

// Option configures an Engine.
type Option func(*Engine)

// WithSequencer replaces the logical clock. Use NewClockAt to resume an
// existing journal.
func WithSequencer(s Sequencer) Option {
	return func(e *Engine) { e.seq = s }
}

// WithWallClock replaces the time source recorded on invocations.
func WithWallClock(w WallClock) Option {
	return func(e *Engine) { e.wall = w }
}

// WithRequestIDs replaces the generator used for requests without an ID.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger for the engine and its vault.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over l. A nil journal disables persistence of the
// request history.
func New(l ledger.Ledger, j Journal, opts ...Option) (*Engine, error) {
	if j == nil {
		j = nopJournal{}
	}
	e := &Engine{
		ledger:  l,
		journal: j,
		seq:     NewClock(),
		wall:    SystemWallClock{},
		ids:     UUIDv7Generator{},
		queue:   newRequestQueue(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	v, err := vault.New(l,
		vault.WithClock(vault.ClockFunc(func() int64 { return e.now })),
		vault.WithEventSink(vault.EventSinkFunc(func(_ context.Context, ev vault.Event) error {
			e.pending = append(e.pending, ev)
			return nil
		})),
		vault.WithLogger(e.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	e.vault = v
	return e, nil
}

// Vault returns the vault the engine drives. Use it for reads only;
// mutations through it bypass the journal.
func (e *Engine) Vault() *vault.Vault {
	return e.vault
}

// Ledger returns the ledger the engine writes to.
func (e *Engine) Ledger() ledger.Ledger {
	return e.ledger
}

// Seq returns the last seq handed out.
func (e *Engine) Seq() int64 {
	return e.seq.Current()
}

// QueueLen returns the number of submitted requests not yet picked up by Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Execute runs req synchronously.
//
// The returned error is a *RuntimeError when the request could not be run
// at all; rejected vault operations are reported in Result.Err instead.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = e.ids.Generate()
	}
	if req.Args == nil {
		req.Args = ir.IRObject{}
	}
	op, err := bind(req)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.journal.(Serializer)
	if !ok {
		return e.apply(ctx, req, op, e.seq.Next(), e.wall.Now())
	}

	// The invocation, the ledger change, the completion and the events
	// commit together, and the seq is taken under the same lock, so several
	// engines may share one database.
	var res Result
	err = s.Serialize(ctx, func(ctx context.Context, lastSeq int64) error {
		var err error
		res, err = e.apply(ctx, req, op, e.nextSeq(lastSeq), e.wall.Now())
		return err
	})
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			return Result{}, err
		}
		return Result{}, newJournalError(req, "serialize", err)
	}
	return res, nil
}

// nextSeq moves the sequencer past lastSeq, then hands out the next seq.
func (e *Engine) nextSeq(lastSeq int64) int64 {
	if a, ok := e.seq.(interface{ AdvanceTo(int64) }); ok {
		a.AdvanceTo(lastSeq)
	} else {
		for e.seq.Current() < lastSeq {
			e.seq.Next()
		}
	}
	return e.seq.Next()
}

// Submit queues req for the Run loop and waits for its result.
//
// If ctx ends while the request is still queued, the request is withdrawn
// and never applied, and Submit returns ctx.Err(). Once the Run loop has
// taken the request it runs to completion and Submit returns its result.
func (e *Engine) Submit(ctx context.Context, req Request) (Result, error) {
	j := &job{req: req, done: make(chan outcome, 1)}
	if !e.queue.Enqueue(j) {
		return Result{}, stoppedError(req)
	}
	select {
	case out := <-j.done:
		return out.result, out.err
	case <-ctx.Done():
		if j.withdraw() {
			return Result{}, ctx.Err()
		}
		out := <-j.done
		return out.result, out.err
	}
}

// Run processes submitted requests until ctx is canceled or Stop is called.
//
// Must be called from exactly ONE goroutine. Requests still queued when
// the loop exits fail with ENGINE_STOPPED.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "seq", e.seq.Current())

	for {
		if j, ok := e.queue.TryDequeue(); ok {
			if !j.take() {
				e.logger.Debug("request withdrawn", "request_id", j.req.ID, "operation", j.req.Operation)
				continue
			}
			res, err := e.Execute(ctx, j.req)
			if err != nil {
				e.logger.Error("request failed",
					"request_id", j.req.ID,
					"operation", j.req.Operation,
					"error", err,
				)
			}
			j.done <- outcome{result: res, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			failJobs(e.queue.Close())
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Stop, so this fires at once.
			if e.queue.Len() == 0 && e.stopped() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once it notices; requests that were
// still queued fail with ENGINE_STOPPED.
func (e *Engine) Stop() {
	failJobs(e.queue.Close())
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

func failJobs(jobs []*job) {
	for _, j := range jobs {
		j.done <- outcome{err: stoppedError(j.req)}
	}
}

func stoppedError(req Request) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeStopped,
		Message:   "engine is not accepting requests",
		RequestID: req.ID,
		Operation: req.Operation,
	}
}

// apply journals and runs one bound request at the given seq and time.
// Callers hold e.mu.
func (e *Engine) apply(ctx context.Context, req Request, op boundOp, seq, now int64) (Result, error) {
	invID, err := ir.InvocationID(req.ID, req.Operation, req.Caller, req.Args, seq, now)
	if err != nil {
		return Result{}, newInvalidArgs(req, err)
	}
	inv := ir.Invocation{
		ID:            invID,
		RequestID:     req.ID,
		Operation:     req.Operation,
		Caller:        req.Caller,
		Args:          req.Args,
		Seq:           seq,
		Timestamp:     now,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if err := e.journal.WriteInvocation(ctx, inv); err != nil {
		return Result{}, newJournalError(req, "invocation", err)
	}

	e.now = now
	e.pending = e.pending[:0]

	ev, opErr := op(ctx, e)
	outputCase, result := outcomeOf(ev, opErr)

	compID, err := ir.CompletionID(inv.ID, outputCase, result, seq)
	if err != nil {
		return Result{}, newJournalError(req, "completion", err)
	}
	comp := ir.Completion{
		ID:           compID,
		InvocationID: inv.ID,
		OutputCase:   outputCase,
		Result:       result,
		Seq:          seq,
	}
	if err := e.journal.WriteCompletion(ctx, comp); err != nil {
		return Result{}, newJournalError(req, "completion", err)
	}

	records := make([]ir.EventRecord, 0, len(e.pending))
	for i, pe := range e.pending {
		payload := pe.Payload()
		id, err := ir.EventID(inv.ID, pe.EventName(), payload, i)
		if err != nil {
			return Result{}, newJournalError(req, "events", err)
		}
		records = append(records, ir.EventRecord{
			ID:           id,
			InvocationID: inv.ID,
			Seq:          seq,
			Name:         pe.EventName(),
			Payload:      payload,
		})
	}
	if len(records) > 0 {
		// The completion already records the outcome; a lost event row is
		// logged, not fatal.
		if err := e.journal.AppendEvents(ctx, records); err != nil {
			e.logger.Warn("event append failed",
				"invocation_id", inv.ID,
				"events", len(records),
				"error", err,
			)
		}
	}

	level := slog.LevelDebug
	if opErr != nil {
		level = slog.LevelInfo
	}
	e.logger.Log(ctx, level, "request completed",
		"request_id", req.ID,
		"operation", req.Operation,
		"seq", seq,
		"output_case", outputCase,
	)

	return Result{Invocation: inv, Completion: comp, Events: records, Err: opErr}, nil
}

// outcomeOf maps an operation's result to the completion's output case
// and result payload.
func outcomeOf(ev vault.Event, err error) (string, ir.IRObject) {
	if err == nil {
		return ir.OutputSuccess, ev.Payload()
	}

	var ve *vault.Error
	if errors.As(err, &ve) {
		result := ir.IRObject{"message": ir.IRString(ve.Message)}
		for k, v := range ve.Details {
			if k == "message" {
				continue
			}
			result[k] = ir.IRString(v)
		}
		return string(ve.Code), result
	}

	// Ledger sentinels have stable text across ledger implementations;
	// anything else is recorded as is.
	msg := err.Error()
	for _, sentinel := range []error{
		ledger.ErrBalanceOverflow,
		ledger.ErrInsufficientFunds,
		ledger.ErrAccountNotFound,
		ledger.ErrReadOnly,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			msg = sentinel.Error()
			break
		}
	}
	return ir.OutputFailure, ir.IRObject{"message": ir.IRString(msg)}
}
