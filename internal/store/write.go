package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/solforge/internal/ir"
)

// ErrSeqTaken is returned when another invocation already holds the seq.
var ErrSeqTaken = errors.New("seq already recorded")

// WriteInvocation inserts an invocation record into the journal.
// Duplicate IDs are silently ignored; a different invocation at an existing
// seq fails with ErrSeqTaken.
//
// Args are serialized to canonical JSON per RFC 8785 for deterministic replay.
func (s *Store) WriteInvocation(ctx context.Context, inv ir.Invocation) error {
	argsJSON, err := marshalObject(inv.Args)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	result, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO invocations
		(id, request_id, operation, caller, args, seq, timestamp, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		inv.ID,
		inv.RequestID,
		inv.Operation,
		inv.Caller.String(),
		argsJSON,
		inv.Seq,
		inv.Timestamp,
		inv.EngineVersion,
		inv.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write invocation: rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM invocations WHERE id = ?`, inv.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("write invocation: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("write invocation %s: %w: %d", inv.ID, ErrSeqTaken, inv.Seq)
		}
	}
	return nil
}

// WriteCompletion inserts a completion record into the journal.
// Each invocation has exactly ONE completion (UNIQUE invocation_id); a
// second write for the same invocation is silently ignored.
//
// Note: The invocation referenced by InvocationID must exist (foreign key constraint).
func (s *Store) WriteCompletion(ctx context.Context, comp ir.Completion) error {
	resultJSON, err := marshalObject(comp.Result)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}

	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO completions
		(id, invocation_id, output_case, result, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		comp.ID,
		comp.InvocationID,
		comp.OutputCase,
		resultJSON,
		comp.Seq,
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

// AppendEvents writes a batch of events in one transaction. Events already
// present (same id) are skipped.
func (s *Store) AppendEvents(ctx context.Context, events []ir.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	if c, ok := conn(ctx); ok {
		return savepoint(ctx, c, "append_events", func() error {
			return insertEvents(ctx, c, events)
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx querier, events []ir.EventRecord) error {
	for i, ev := range events {
		payloadJSON, err := marshalObject(ev.Payload)
		if err != nil {
			return fmt.Errorf("append events: %s: %w", ev.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(id, invocation_id, seq, idx, name, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			ev.ID,
			ev.InvocationID,
			ev.Seq,
			i,
			ev.Name,
			payloadJSON,
		)
		if err != nil {
			return fmt.Errorf("append events: %s: %w", ev.Name, err)
		}
	}
	return nil
}
