// Package ledger defines the account substrate the vault runs on.
//
// A Ledger holds accounts (lamports plus opaque data) and exposes a single
// transactional boundary, Update: every read, transfer and data write made
// through the Tx handed to the callback commits together, or none of them
// do. The vault never moves value outside an Update.
//
// Two implementations exist: Memory (this package) for tests and replay,
// and the sqlite-backed store.Store for durable deployments.
package ledger

import (
	"context"
	"errors"

	"github.com/roach88/solforge/internal/ir"
)

var (
	// ErrAccountNotFound is returned when reading an address that was never
	// created or credited.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned by CreateAccount for a live address.
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds is returned when a transfer source holds fewer
	// lamports than requested.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOverflow is returned when a credit would overflow uint64.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrReadOnly is returned by mutating calls made inside View.
	ErrReadOnly = errors.New("ledger transaction is read-only")
)

// Account is a snapshot of one ledger entry.
type Account struct {
	Address  ir.Identity
	Lamports uint64
	Data     []byte
}

// Tx is the ledger view inside one atomic unit of work.
type Tx interface {
	// Account returns the account at addr or ErrAccountNotFound.
	Account(ctx context.Context, addr ir.Identity) (Account, error)

	// CreateAccount attaches data to addr, keeping any lamports already
	// credited there. Returns ErrAccountExists if the address holds data.
	CreateAccount(ctx context.Context, addr ir.Identity, data []byte) error

	// SetData replaces the data of an existing account.
	SetData(ctx context.Context, addr ir.Identity, data []byte) error

	// Transfer moves lamports between accounts, creating the destination
	// if needed. A zero transfer is a no-op.
	Transfer(ctx context.Context, from, to ir.Identity, lamports uint64) error

	// Credit mints lamports into an account. Only the development faucet
	// uses it; vault operations never do.
	Credit(ctx context.Context, to ir.Identity, lamports uint64) error
}

// Ledger is the transactional account store.
type Ledger interface {
	// Update runs fn inside a read-write transaction. If fn returns an
	// error every change it made is discarded.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn inside a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Balance returns the lamports held at addr, or 0 for an unknown address.
func Balance(ctx context.Context, l Ledger, addr ir.Identity) (uint64, error) {
	var lamports uint64
	err := l.View(ctx, func(tx Tx) error {
		acct, err := tx.Account(ctx, addr)
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		lamports = acct.Lamports
		return nil
	})
	return lamports, err
}

// Airdrop credits lamports to addr in its own transaction.
func Airdrop(ctx context.Context, l Ledger, to ir.Identity, lamports uint64) error {
	return l.Update(ctx, func(tx Tx) error {
		return tx.Credit(ctx, to, lamports)
	})
}
