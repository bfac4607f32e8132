package cli

import (
	"context"
	"fmt"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/store"
)

// session is an engine over the journal database, resumed at the last
// recorded seq.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

func openStore(opts *RootOptions) (*store.Store, error) {
	opts.logger().Debug("opening database", "path", opts.DB)
	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	logger := opts.logger()

	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}

	state, err := st.GetJournalState(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if len(state.Pending) > 0 {
		logger.Warn("journal has invocations without completions",
			"count", len(state.Pending),
			"first", state.Pending[0],
		)
	}

	engineOpts := []engine.Option{
		engine.WithSequencer(engine.NewClockAt(state.LastSeq)),
		engine.WithLogger(logger),
	}
	if opts.WallClock != nil {
		engineOpts = append(engineOpts, engine.WithWallClock(opts.WallClock))
	}
	if opts.RequestIDs != nil {
		engineOpts = append(engineOpts, engine.WithRequestIDs(opts.RequestIDs))
	}

	eng, err := engine.New(st, st, engineOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	logger.Debug("engine ready", "db", opts.DB, "last_seq", state.LastSeq)
	return &session{store: st, engine: eng}, nil
}

func (s *session) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
