package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ledger"
)

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Requests      int      `json:"requests"`
	Divergences   []string `json:"divergences"`
	Accounts      int      `json:"accounts"`
	LedgerDrift   []string `json:"ledger_drift"`
	Deterministic bool     `json:"deterministic"`
}

func (r ReplayResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "Replay Summary: %d request(s), %d account(s)\n", r.Requests, r.Accounts)
	for _, d := range r.Divergences {
		fmt.Fprintf(w, "  ✗ %s\n", d)
	}
	for _, d := range r.LedgerDrift {
		fmt.Fprintf(w, "  ✗ %s\n", d)
	}
	if r.Deterministic {
		fmt.Fprintln(w, "✓ Journal replays deterministically")
	}
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Re-execute every journaled request, in seq order and at its recorded
time, against an empty ledger. Each recomputed invocation and completion
must match the journal, and the replayed balances must match the database.

Exit codes:
  0 - The journal replays deterministically
  1 - Divergences detected
  2 - Command error (database not readable, etc.)

Examples:
  solforge replay --db ./solforge.db
  solforge replay --format json`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := engine.Replay(ctx, st, engine.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay journal", err)
	}
	stored, err := st.Accounts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read accounts", err)
	}

	result := ReplayResult{
		Requests:    report.Requests,
		Divergences: make([]string, 0, len(report.Divergences)),
		Accounts:    len(stored),
		LedgerDrift: compareAccounts(stored, report.Accounts),
	}
	for _, d := range report.Divergences {
		result.Divergences = append(result.Divergences, d.String())
	}
	result.Deterministic = report.Deterministic() && len(result.LedgerDrift) == 0

	out := opts.formatter(cmd)
	if !result.Deterministic {
		_ = out.Failure(CodeDeterminism, "determinism verification failed", result)
		return reported(NewExitError(ExitFailure, "determinism verification failed"))
	}
	return out.Success(result)
}

// compareAccounts lists differences between the stored ledger and the
// replayed one. Both are sorted by address bytes.
func compareAccounts(stored, replayed []ledger.Account) []string {
	drift := []string{}
	i, j := 0, 0
	for i < len(stored) || j < len(replayed) {
		switch {
		case j == len(replayed) || (i < len(stored) && bytes.Compare(stored[i].Address[:], replayed[j].Address[:]) < 0):
			drift = append(drift, fmt.Sprintf("%s: in database only", stored[i].Address))
			i++
		case i == len(stored) || bytes.Compare(stored[i].Address[:], replayed[j].Address[:]) > 0:
			drift = append(drift, fmt.Sprintf("%s: in replay only", replayed[j].Address))
			j++
		default:
			s, r := stored[i], replayed[j]
			if s.Lamports != r.Lamports {
				drift = append(drift, fmt.Sprintf("%s: lamports %d in database, %d replayed",
					s.Address, s.Lamports, r.Lamports))
			}
			if !bytes.Equal(s.Data, r.Data) {
				drift = append(drift, fmt.Sprintf("%s: account data differs", s.Address))
			}
			i++
			j++
		}
	}
	return drift
}
