package store

import (
	"context"
	"fmt"
)

// JournalState summarizes the journal for recovery and reporting.
type JournalState struct {
	Invocations int
	Completions int
	Failures    int
	Events      int

	// LastSeq is the highest seq recorded; the engine resumes its clock
	// from here.
	LastSeq int64

	// Pending lists invocations that never completed, in seq order. A
	// non-empty list means the process stopped mid-request.
	Pending []string
}

// GetJournalState reads the journal summary.
func (s *Store) GetJournalState(ctx context.Context) (JournalState, error) {
	var state JournalState

	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM invocations),
			(SELECT COUNT(*) FROM completions),
			(SELECT COUNT(*) FROM completions WHERE output_case <> 'Success'),
			(SELECT COUNT(*) FROM events),
			COALESCE((SELECT MAX(seq) FROM invocations), 0)
	`).Scan(&state.Invocations, &state.Completions, &state.Failures, &state.Events, &state.LastSeq)
	if err != nil {
		return state, fmt.Errorf("get journal state: %w", err)
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT i.id
		FROM invocations i
		LEFT JOIN completions c ON c.invocation_id = i.id
		WHERE c.id IS NULL
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`)
	if err != nil {
		return state, fmt.Errorf("get journal state: pending: %w", err)
	}
	defer rows.Close()

	state.Pending = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return state, fmt.Errorf("get journal state: scan pending: %w", err)
		}
		state.Pending = append(state.Pending, id)
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("get journal state: iterate pending: %w", err)
	}
	return state, nil
}
