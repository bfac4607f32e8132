package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

var _ ledger.Ledger = (*Store)(nil)

// Update implements ledger.Ledger. fn runs inside one SQL transaction that
// commits only if fn returns nil. Inside Serialize it runs as a savepoint
// of the serialized transaction.
func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if c, ok := conn(ctx); ok {
		return savepoint(ctx, c, "ledger_update", func() error {
			return fn(&accountTx{tx: c})
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger update: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&accountTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger update: commit: %w", err)
	}
	return nil
}

// View implements ledger.Ledger. The transaction is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if c, ok := conn(ctx); ok {
		return fn(&accountTx{tx: c, readOnly: true})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger view: begin tx: %w", err)
	}
	defer tx.Rollback()

	return fn(&accountTx{tx: tx, readOnly: true})
}

// Accounts returns every account sorted by address bytes, the same order
// as ledger.Memory.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT address, lamports, data
		FROM accounts
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		var addr, lamports string
		var data []byte
		if err := rows.Scan(&addr, &lamports, &data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acct, err := decodeAccount(addr, lamports, data)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	// Base58 text order is not byte order.
	slices.SortFunc(accounts, func(a, b ledger.Account) int {
		return slices.Compare(a.Address[:], b.Address[:])
	})
	return accounts, nil
}

type accountTx struct {
	tx       querier
	readOnly bool
}

func (a *accountTx) Account(ctx context.Context, addr ir.Identity) (ledger.Account, error) {
	var lamports string
	var data []byte
	err := a.tx.QueryRowContext(ctx, `
		SELECT lamports, data FROM accounts WHERE address = ?
	`, addr.String()).Scan(&lamports, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("read account %s: %w", addr, err)
	}
	return decodeAccount(addr.String(), lamports, data)
}

func (a *accountTx) CreateAccount(ctx context.Context, addr ir.Identity, data []byte) error {
	if a.readOnly {
		return ledger.ErrReadOnly
	}
	existing, err := a.Account(ctx, addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
	case err != nil:
		return err
	case len(existing.Data) > 0:
		return fmt.Errorf("%w: %s", ledger.ErrAccountExists, addr)
	}

	_, err = a.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, lamports, data)
		VALUES (?, '0', ?)
		ON CONFLICT(address) DO UPDATE SET data = excluded.data
	`, addr.String(), nonNil(data))
	if err != nil {
		return fmt.Errorf("create account %s: %w", addr, err)
	}
	return nil
}

func (a *accountTx) SetData(ctx context.Context, addr ir.Identity, data []byte) error {
	if a.readOnly {
		return ledger.ErrReadOnly
	}
	result, err := a.tx.ExecContext(ctx, `
		UPDATE accounts SET data = ? WHERE address = ?
	`, nonNil(data), addr.String())
	if err != nil {
		return fmt.Errorf("set data %s: %w", addr, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set data %s: rows affected: %w", addr, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	return nil
}

func (a *accountTx) Transfer(ctx context.Context, from, to ir.Identity, lamports uint64) error {
	if a.readOnly {
		return ledger.ErrReadOnly
	}
	if lamports == 0 {
		return nil
	}
	src, err := a.Account(ctx, from)
	if err != nil {
		return fmt.Errorf("transfer from %s: %w", from, err)
	}
	if src.Lamports < lamports {
		return fmt.Errorf("transfer from %s: %w (have %d, need %d)", from, ledger.ErrInsufficientFunds, src.Lamports, lamports)
	}
	if from == to {
		return nil
	}
	dst, err := a.balance(ctx, to)
	if err != nil {
		return err
	}
	if dst > ^uint64(0)-lamports {
		return fmt.Errorf("transfer to %s: %w", to, ledger.ErrBalanceOverflow)
	}
	if err := a.setLamports(ctx, from, src.Lamports-lamports); err != nil {
		return err
	}
	return a.setLamports(ctx, to, dst+lamports)
}

func (a *accountTx) Credit(ctx context.Context, to ir.Identity, lamports uint64) error {
	if a.readOnly {
		return ledger.ErrReadOnly
	}
	dst, err := a.balance(ctx, to)
	if err != nil {
		return err
	}
	if dst > ^uint64(0)-lamports {
		return fmt.Errorf("credit %s: %w", to, ledger.ErrBalanceOverflow)
	}
	return a.setLamports(ctx, to, dst+lamports)
}

// balance returns 0 for unknown addresses.
func (a *accountTx) balance(ctx context.Context, addr ir.Identity) (uint64, error) {
	acct, err := a.Account(ctx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

func (a *accountTx) setLamports(ctx context.Context, addr ir.Identity, lamports uint64) error {
	_, err := a.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, lamports)
		VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET lamports = excluded.lamports
	`, addr.String(), strconv.FormatUint(lamports, 10))
	if err != nil {
		return fmt.Errorf("set lamports %s: %w", addr, err)
	}
	return nil
}

func decodeAccount(addr, lamports string, data []byte) (ledger.Account, error) {
	id, err := ir.ParseIdentity(addr)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("decode account address: %w", err)
	}
	n, err := strconv.ParseUint(lamports, 10, 64)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("decode lamports of %s: %w", addr, err)
	}
	return ledger.Account{Address: id, Lamports: n, Data: data}, nil
}

// nonNil keeps NOT NULL blob columns satisfied.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
