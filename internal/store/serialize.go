package store

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type connKey struct{}

// conn returns the connection Serialize bound to ctx, if any.
func conn(ctx context.Context) (*sql.Conn, bool) {
	c, ok := ctx.Value(connKey{}).(*sql.Conn)
	return c, ok
}

// q routes a statement onto the serialized connection when ctx carries one.
// The pool holds a single connection, so going through s.db there would
// block forever.
func (s *Store) q(ctx context.Context) querier {
	if c, ok := conn(ctx); ok {
		return c
	}
	return s.db
}

// Serialize runs fn inside one IMMEDIATE transaction, which holds the
// database write lock from the start. lastSeq is the highest seq in the
// journal at that moment, so a seq derived from it cannot collide with one
// handed out by another process on the same file.
//
// Every Store call made with the ctx passed to fn joins the transaction;
// Update and AppendEvents become savepoints. The transaction commits only
// if fn returns nil.
func (s *Store) Serialize(ctx context.Context, fn func(ctx context.Context, lastSeq int64) error) error {
	if _, ok := conn(ctx); ok {
		return fmt.Errorf("serialize: already inside a serialized transaction")
	}

	c, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("serialize: acquire connection: %w", err)
	}
	defer c.Close()

	// busy_timeout makes BEGIN IMMEDIATE wait for a writer in another
	// process instead of failing straight away.
	if _, err := c.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("serialize: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			// ctx may already be done; the rollback must still run.
			_, _ = c.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var lastSeq int64
	if err := c.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM invocations`).Scan(&lastSeq); err != nil {
		return fmt.Errorf("serialize: read last seq: %w", err)
	}

	if err := fn(context.WithValue(ctx, connKey{}, c), lastSeq); err != nil {
		return err
	}

	if _, err := c.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("serialize: commit: %w", err)
	}
	committed = true
	return nil
}

// savepoint runs fn between SAVEPOINT and RELEASE on c, rolling back to the
// savepoint when fn fails. The enclosing transaction stays open.
func savepoint(ctx context.Context, c *sql.Conn, name string, fn func() error) error {
	if _, err := c.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		_, _ = c.ExecContext(context.Background(), "ROLLBACK TO "+name)
		_, _ = c.ExecContext(context.Background(), "RELEASE "+name)
		return err
	}
	if _, err := c.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}
