package vault

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
)

func TestAccrueFeeSplit(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		burned uint64
	}{
		{"one lamport", 1, 0},
		{"four lamports", 4, 0},
		{"five lamports", 5, 1},
		{"round", 1_000_000_000, 200_000_000},
		{"odd", 123_456_789, 24_691_357},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := initialized(t)
			vaultBefore := f.balance(f.vault.Address())

			ev := f.accrue(tt.amount)

			assert.Equal(t, tt.amount, ev.Gross)
			assert.Equal(t, tt.burned, ev.Burned)
			assert.Equal(t, tt.amount-tt.burned, ev.Net)
			assert.Equal(t, tt.amount-tt.burned, ev.TotalAccrued)
			assert.Equal(t, payer, ev.Payer)

			assert.Equal(t, tt.burned, f.balance(ir.Incinerator))
			assert.Equal(t, uint64(0), f.balance(payer))
			assert.Equal(t, vaultBefore+tt.amount-tt.burned, f.balance(f.vault.Address()))
			assert.Equal(t, tt.amount-tt.burned, f.state().Record.TotalAccrued)
		})
	}
}

func TestAccrueFeeAccumulates(t *testing.T) {
	f := initialized(t)
	f.accrue(1_000)
	f.accrue(2_000)
	ev := f.accrue(3)

	assert.Equal(t, uint64(800+1_600+3), ev.TotalAccrued)
	assert.Equal(t, uint64(200+400), f.balance(ir.Incinerator))
	assert.Equal(t, []string{"VaultInitialized", "FeeAccrued", "FeeAccrued", "FeeAccrued"}, f.events.names())
}

func TestAccrueFeeFullBurn(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Initialize(f.ctx, Params{Authority: authority, BurnPercentageBps: MaxBasisPoints})
	require.NoError(t, err)

	ev := f.accrue(math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), ev.Burned)
	assert.Equal(t, uint64(0), ev.Net)
	assert.Equal(t, uint64(math.MaxUint64), f.balance(ir.Incinerator))
	assert.Equal(t, uint64(0), f.state().Record.TotalAccrued)
}

func TestAccrueFeeZeroAmount(t *testing.T) {
	f := initialized(t)
	f.fund(payer, 100)
	before := f.state()

	_, err := f.vault.AccrueFee(f.ctx, payer, 0)
	assert.ErrorIs(t, err, ErrAmountTooSmall)
	assert.Equal(t, before, f.state())
	assert.Equal(t, uint64(100), f.balance(payer))
}

func TestAccrueFeeRejectsVaultAsPayer(t *testing.T) {
	f := initialized(t)
	f.fund(f.vault.Address(), 10)

	_, err := f.vault.AccrueFee(f.ctx, f.vault.Address(), 10)
	assert.ErrorIs(t, err, ErrInvalidPayer)
	assert.Equal(t, uint64(0), f.state().Record.TotalAccrued)
}

func TestAccrueFeeAcceptsZeroIdentityPayer(t *testing.T) {
	f := initialized(t)
	var zero ir.Identity
	f.fund(zero, 100)

	ev, err := f.vault.AccrueFee(f.ctx, zero, 100)
	require.NoError(t, err)
	assert.Equal(t, zero, ev.Payer)
	assert.Equal(t, uint64(100), ev.Gross)
	assert.Equal(t, uint64(0), f.balance(zero))
}

func TestAccrueFeePayerWithoutFunds(t *testing.T) {
	f := initialized(t)
	f.fund(payer, 99)

	_, err := f.vault.AccrueFee(f.ctx, payer, 100)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, KindSubstrate, KindOf(err))
	assert.Equal(t, uint64(99), f.balance(payer))
	assert.Equal(t, uint64(0), f.state().Record.TotalAccrued)
}

func TestAccrueFeeOverflow(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Initialize(f.ctx, Params{Authority: authority})
	require.NoError(t, err)
	f.accrue(math.MaxUint64)
	require.Equal(t, uint64(math.MaxUint64), f.state().Record.TotalAccrued)

	other := identity(9)
	f.fund(other, 1)
	_, err = f.vault.AccrueFee(f.ctx, other, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	assert.Equal(t, uint64(1), f.balance(other))
	assert.Equal(t, uint64(math.MaxUint64), f.state().Record.TotalAccrued)
}

func TestAccrueFeeRollsBackWhenBurnTransferFails(t *testing.T) {
	f := initialized(t)
	v := f.newVault(&faultyLedger{Ledger: f.mem, failTo: ir.Incinerator})
	f.fund(payer, 1_000)
	f.events.events = nil

	_, err := v.AccrueFee(f.ctx, payer, 1_000)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, uint64(1_000), f.balance(payer))
	assert.Equal(t, uint64(0), f.balance(f.vault.Address()))
	assert.Equal(t, uint64(0), f.balance(ir.Incinerator))
	assert.Equal(t, uint64(0), f.state().Record.TotalAccrued)
	assert.Empty(t, f.events.events)
}

func TestAccrueFeeZeroBurnSkipsSinkTransfer(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Initialize(f.ctx, Params{Authority: authority})
	require.NoError(t, err)
	v := f.newVault(&faultyLedger{Ledger: f.mem, failTo: ir.Incinerator})

	f.fund(payer, 500)
	ev, err := v.AccrueFee(f.ctx, payer, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ev.Burned)
	assert.Equal(t, uint64(500), ev.TotalAccrued)
}

func TestAccrueFeeValidatesSink(t *testing.T) {
	f := initialized(t)
	f.vault.sink = identity(99)
	f.fund(payer, 1_000)

	_, err := f.vault.AccrueFee(f.ctx, payer, 1_000)
	assert.ErrorIs(t, err, ErrInvalidSink)
	assert.Equal(t, uint64(1_000), f.balance(payer))
	assert.Equal(t, uint64(0), f.balance(identity(99)))
}
