package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/ledger"
	"github.com/roach88/solforge/internal/store"
	"github.com/roach88/solforge/internal/vault"
)

// NewAddressCommand creates the address command.
func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the derived vault address",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, bump, err := vault.Address()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to derive vault address", err)
			}
			return rootOpts.formatter(cmd).Success(AddressView{
				Address:     addr.String(),
				Bump:        bump,
				Incinerator: ir.Incinerator.String(),
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the vault state",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := rootOpts.formatter(cmd)
			snap, err := sess.engine.Vault().State(ctx)
			if err != nil {
				if code := vault.CodeOf(err); code != "" {
					_ = out.Error(string(code), err.Error(), nil)
					return reported(WrapExitError(ExitFailure, "vault unavailable", err))
				}
				return WrapExitError(ExitCommandError, "failed to read vault", err)
			}
			return out.Success(newVaultView(snap))
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <identity>",
		Short: "Print an account balance",
		Long: `Print the lamports held by an account. The identity is base58, or
"vault" or "incinerator". Accounts that do not exist hold zero.

Example:
  solforge balance incinerator`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ParseIdentity(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid identity", err)
			}

			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			lamports, err := ledger.Balance(cmd.Context(), st, id)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read balance", err)
			}
			return rootOpts.formatter(cmd).Success(BalanceView{
				Address:  id.String(),
				Lamports: lamports,
				SOL:      FormatSOL(lamports),
			})
		},
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var filter store.EventFilter

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Long: `Print journaled events oldest first.

Examples:
  solforge events --limit 10
  solforge events --name FeeAccrued`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Limit < 0 {
				return NewExitError(ExitCommandError, "--limit must not be negative")
			}
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			events, err := st.ReadEvents(cmd.Context(), filter)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read events", err)
			}
			view := EventsView{Events: make([]EventView, 0, len(events))}
			for _, ev := range events {
				view.Events = append(view.Events, newEventView(ev))
			}
			return rootOpts.formatter(cmd).Success(view)
		},
	}

	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "show only the most recent N events (0 for all)")
	cmd.Flags().StringVar(&filter.Name, "name", "", "show only events with this name")
	return cmd
}
