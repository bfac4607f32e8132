package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

// Vault runs operations against the vault account stored in a ledger.
//
// Vault does not serialize callers itself; the ledger's Update boundary
// provides atomicity and the engine provides ordering.
type Vault struct {
	ledger  ledger.Ledger
	clock   Clock
	events  EventSink
	logger  *slog.Logger
	sink    ir.Identity
	address ir.Identity
	bump    uint8
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock sets the time source used by governance.
func WithClock(c Clock) Option {
	return func(v *Vault) { v.clock = c }
}

// WithEventSink sets where events go after commit.
func WithEventSink(s EventSink) Option {
	return func(v *Vault) { v.events = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// New returns a Vault bound to l.
func New(l ledger.Ledger, opts ...Option) (*Vault, error) {
	addr, bump, err := Address()
	if err != nil {
		return nil, fmt.Errorf("derive vault address: %w", err)
	}
	v := &Vault{
		ledger:  l,
		clock:   SystemClock{},
		events:  discardSink{},
		logger:  slog.Default(),
		sink:    ir.Incinerator,
		address: addr,
		bump:    bump,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Address returns the vault account address.
func (v *Vault) Address() ir.Identity {
	return v.address
}

// Bump returns the derivation bump of the vault address.
func (v *Vault) Bump() uint8 {
	return v.bump
}

// load reads, decodes and validates the Record.
func (v *Vault) load(ctx context.Context, tx ledger.Tx) (Record, error) {
	acct, err := tx.Account(ctx, v.address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return Record{}, ErrNotInitialized
	}
	if err != nil {
		return Record{}, fmt.Errorf("load vault: %w", err)
	}
	if len(acct.Data) == 0 {
		return Record{}, ErrNotInitialized
	}

	rec, err := DecodeRecord(acct.Data)
	if err != nil {
		return Record{}, err
	}
	if err := verifyAddress(v.address, rec.Bump); err != nil {
		return Record{}, err
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	if acct.Lamports < rec.TotalAccrued {
		return Record{}, ErrInvalidAccountData.with("reason", "undercollateralized", "lamports", acct.Lamports, "total_accrued", rec.TotalAccrued)
	}
	return rec, nil
}

// commit validates and writes the Record, then confirms custody still
// covers total_accrued.
func (v *Vault) commit(ctx context.Context, tx ledger.Tx, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := tx.SetData(ctx, v.address, EncodeRecord(rec)); err != nil {
		return fmt.Errorf("store vault: %w", err)
	}
	acct, err := tx.Account(ctx, v.address)
	if err != nil {
		return fmt.Errorf("store vault: %w", err)
	}
	if acct.Lamports < rec.TotalAccrued {
		return ErrInvalidAccountData.with("reason", "undercollateralized", "lamports", acct.Lamports, "total_accrued", rec.TotalAccrued)
	}
	return nil
}

func (v *Vault) requireAuthority(rec Record, caller ir.Identity) error {
	if caller != rec.Authority {
		return ErrUnauthorized.with("caller", caller)
	}
	return nil
}

func (v *Vault) checkSink() error {
	if v.sink != ir.Incinerator {
		return ErrInvalidSink.with("sink", v.sink)
	}
	return nil
}

func (v *Vault) transfer(ctx context.Context, tx ledger.Tx, from, to ir.Identity, lamports uint64) error {
	if err := tx.Transfer(ctx, from, to, lamports); err != nil {
		return ErrTransferFailed.wrap(err)
	}
	return nil
}

// emit delivers ev after commit.
func (v *Vault) emit(ctx context.Context, ev Event) {
	if err := v.events.Emit(ctx, ev); err != nil {
		v.logger.Warn("event emission failed",
			"event", ev.EventName(),
			"error", err)
	}
}
