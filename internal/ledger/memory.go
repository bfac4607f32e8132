package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/solforge/internal/ir"
)

// Memory is an in-process Ledger.
//
// Update works on a copy of the account map and swaps it in only when the
// callback succeeds, which gives all-or-nothing semantics without undo
// logs. Updates are serialized by a mutex.
type Memory struct {
	mu       sync.Mutex
	accounts map[ir.Identity]Account
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[ir.Identity]Account)}
}

// Update implements Ledger.
func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{accounts: maps.Clone(m.accounts)}
	if err := fn(tx); err != nil {
		return err
	}
	m.accounts = tx.accounts
	return nil
}

// View implements Ledger.
func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{accounts: m.accounts, readOnly: true})
}

// Accounts returns every account sorted by address. Used by tests and the
// harness to dump final state.
func (m *Memory) Accounts() []Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Account, 0, len(m.accounts))
	for _, acct := range m.accounts {
		out = append(out, cloneAccount(acct))
	}
	slices.SortFunc(out, func(a, b Account) int {
		return slices.Compare(a.Address[:], b.Address[:])
	})
	return out
}

// memTx mutates its own copy of the account map. Account values are
// replaced, never modified in place, so the clone stays isolated from the
// committed map.
type memTx struct {
	accounts map[ir.Identity]Account
	readOnly bool
}

func (tx *memTx) Account(_ context.Context, addr ir.Identity) (Account, error) {
	acct, ok := tx.accounts[addr]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return cloneAccount(acct), nil
}

func (tx *memTx) CreateAccount(_ context.Context, addr ir.Identity, data []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	acct, ok := tx.accounts[addr]
	if ok && len(acct.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	acct.Address = addr
	acct.Data = slices.Clone(data)
	tx.accounts[addr] = acct
	return nil
}

func (tx *memTx) SetData(_ context.Context, addr ir.Identity, data []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	acct, ok := tx.accounts[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	acct.Data = slices.Clone(data)
	tx.accounts[addr] = acct
	return nil
}

func (tx *memTx) Transfer(_ context.Context, from, to ir.Identity, lamports uint64) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	if lamports == 0 {
		return nil
	}
	src, ok := tx.accounts[from]
	if !ok {
		return fmt.Errorf("transfer from %s: %w", from, ErrAccountNotFound)
	}
	if src.Lamports < lamports {
		return fmt.Errorf("transfer from %s: %w (have %d, need %d)", from, ErrInsufficientFunds, src.Lamports, lamports)
	}
	if from == to {
		return nil
	}
	dst := tx.accounts[to]
	dst.Address = to
	if dst.Lamports > ^uint64(0)-lamports {
		return fmt.Errorf("transfer to %s: %w", to, ErrBalanceOverflow)
	}
	src.Lamports -= lamports
	dst.Lamports += lamports
	tx.accounts[from] = src
	tx.accounts[to] = dst
	return nil
}

func (tx *memTx) Credit(_ context.Context, to ir.Identity, lamports uint64) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	dst := tx.accounts[to]
	dst.Address = to
	if dst.Lamports > ^uint64(0)-lamports {
		return fmt.Errorf("credit %s: %w", to, ErrBalanceOverflow)
	}
	dst.Lamports += lamports
	tx.accounts[to] = dst
	return nil
}

func cloneAccount(a Account) Account {
	a.Data = slices.Clone(a.Data)
	return a
}
