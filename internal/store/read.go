package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/solforge/internal/ir"
)

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.Invocation, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, request_id, operation, caller, args, seq, timestamp, engine_version, ir_version
		FROM invocations
		WHERE id = ?
	`, id)
	return scanInvocation(row)
}

// ReadCompletion retrieves the completion of an invocation.
// Returns sql.ErrNoRows if the invocation has not completed.
func (s *Store) ReadCompletion(ctx context.Context, invocationID string) (ir.Completion, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, invocation_id, output_case, result, seq
		FROM completions
		WHERE invocation_id = ?
	`, invocationID)
	return scanCompletion(row)
}

// ReadAllInvocations returns the journal's invocations in sequence order.
// Used for replay.
func (s *Store) ReadAllInvocations(ctx context.Context) ([]ir.Invocation, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, request_id, operation, caller, args, seq, timestamp, engine_version, ir_version
		FROM invocations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []ir.Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

// ReadAllCompletions returns the journal's completions in sequence order.
func (s *Store) ReadAllCompletions(ctx context.Context) ([]ir.Completion, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, invocation_id, output_case, result, seq
		FROM completions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	completions := []ir.Completion{}
	for rows.Next() {
		comp, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return completions, nil
}

// EventFilter narrows ReadEvents.
type EventFilter struct {
	// Name selects one event type. Empty means all.
	Name string

	// Limit keeps only the most recent N events. Zero means all.
	Limit int
}

// ReadEvents returns events in emission order (seq, then index within the
// invocation).
func (s *Store) ReadEvents(ctx context.Context, filter EventFilter) ([]ir.EventRecord, error) {
	query := `
		SELECT id, invocation_id, seq, name, payload
		FROM events
		WHERE (? = '' OR name = ?)
		ORDER BY seq DESC, idx DESC
	`
	args := []any{filter.Name, filter.Name}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.EventRecord{}
	for rows.Next() {
		var ev ir.EventRecord
		var payload string
		if err := rows.Scan(&ev.ID, &ev.InvocationID, &ev.Seq, &ev.Name, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Payload, err = unmarshalObject(payload); err != nil {
			return nil, fmt.Errorf("scan event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// Selected newest first so LIMIT keeps the tail; return oldest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (ir.Invocation, error) {
	var inv ir.Invocation
	var caller, args string
	err := row.Scan(
		&inv.ID,
		&inv.RequestID,
		&inv.Operation,
		&caller,
		&args,
		&inv.Seq,
		&inv.Timestamp,
		&inv.EngineVersion,
		&inv.IRVersion,
	)
	if err == sql.ErrNoRows {
		return ir.Invocation{}, err
	}
	if err != nil {
		return ir.Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}

	if inv.Caller, err = ir.ParseIdentity(caller); err != nil {
		return ir.Invocation{}, fmt.Errorf("scan invocation %s: caller: %w", inv.ID, err)
	}
	if inv.Args, err = unmarshalObject(args); err != nil {
		return ir.Invocation{}, fmt.Errorf("scan invocation %s: %w", inv.ID, err)
	}
	return inv, nil
}

func scanCompletion(row rowScanner) (ir.Completion, error) {
	var comp ir.Completion
	var result string
	err := row.Scan(
		&comp.ID,
		&comp.InvocationID,
		&comp.OutputCase,
		&result,
		&comp.Seq,
	)
	if err == sql.ErrNoRows {
		return ir.Completion{}, err
	}
	if err != nil {
		return ir.Completion{}, fmt.Errorf("scan completion: %w", err)
	}

	if comp.Result, err = unmarshalObject(result); err != nil {
		return ir.Completion{}, fmt.Errorf("scan completion %s: %w", comp.ID, err)
	}
	return comp, nil
}
