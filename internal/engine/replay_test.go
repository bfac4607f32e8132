package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solforge/internal/ledger"
)

// sameAccounts compares balances and data, treating nil and empty data as
// equal.
func sameAccounts(t *testing.T, want, got []ledger.Account) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Address, got[i].Address)
		assert.Equal(t, want[i].Lamports, got[i].Lamports, "lamports of %s", want[i].Address)
		assert.True(t, bytes.Equal(want[i].Data, got[i].Data), "data of %s", want[i].Address)
	}
}

func TestReplay_ReproducesJournal(t *testing.T) {
	h := newHarness(t)
	runScenario(h)

	report, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 6, report.Requests)
	assert.True(t, report.Deterministic(), "divergences: %v", report.Divergences)

	live, err := h.store.Accounts(h.ctx)
	require.NoError(t, err)
	sameAccounts(t, live, report.Accounts)
}

func TestReplay_Idempotent(t *testing.T) {
	h := newHarness(t)
	runScenario(h)

	first, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	second, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Equal(t, first.Divergences, second.Divergences)
	sameAccounts(t, first.Accounts, second.Accounts)
}

func TestReplay_DetectsTamperedTimestamp(t *testing.T) {
	h := newHarness(t)
	runScenario(h)

	// Moving the final execute one second earlier makes it fail the timelock.
	_, err := h.store.DB().Exec(`UPDATE invocations SET timestamp = timestamp - 1 WHERE seq = 6`)
	require.NoError(t, err)

	report, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Len(t, report.Divergences, 2)

	assert.Equal(t, int64(6), report.Divergences[0].Seq)
	assert.Equal(t, "invocation id mismatch", report.Divergences[0].Reason)
	assert.Equal(t, "output case mismatch", report.Divergences[1].Reason)
	assert.Equal(t, "Success", report.Divergences[1].Recorded)
	assert.Equal(t, "TimelockNotExpired", report.Divergences[1].Replayed)
}

func TestReplay_DetectsTamperedResult(t *testing.T) {
	h := newHarness(t)
	runScenario(h)

	_, err := h.store.DB().Exec(`UPDATE completions SET result = '{"message":"edited"}' WHERE seq = 5`)
	require.NoError(t, err)

	report, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, int64(5), report.Divergences[0].Seq)
	assert.Equal(t, "recorded completion altered", report.Divergences[0].Reason)
}

func TestReplay_ReportsMissingCompletion(t *testing.T) {
	h := newHarness(t)
	runScenario(h)

	_, err := h.store.DB().Exec(`DELETE FROM completions WHERE seq = 6`)
	require.NoError(t, err)

	report, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, "completion missing", report.Divergences[0].Reason)
	assert.Contains(t, report.Divergences[0].String(), OpExecuteParameterUpdate)
}

func TestReplay_EmptyJournal(t *testing.T) {
	h := newHarness(t)

	report, err := Replay(h.ctx, h.store, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Zero(t, report.Requests)
	assert.True(t, report.Deterministic())
	assert.Empty(t, report.Accounts)
}
