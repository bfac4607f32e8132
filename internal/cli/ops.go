package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/manifest"
	"github.com/roach88/solforge/internal/vault"
)

// requestFlags are shared by commands that submit one vault request.
type requestFlags struct {
	caller string
	amount string
}

// resolveCaller returns the --caller identity, falling back to
// SOLFORGE_CALLER.
func resolveCaller(opts *RootOptions, flag, name string) (ir.Identity, error) {
	s := flag
	if s == "" {
		s = opts.Config.Caller
	}
	if s == "" {
		return ir.Identity{}, NewExitError(ExitCommandError,
			"--"+name+" is required (or set SOLFORGE_CALLER)")
	}
	id, err := ParseIdentity(s)
	if err != nil {
		return ir.Identity{}, WrapExitError(ExitCommandError, "invalid --"+name, err)
	}
	return id, nil
}

func parseAmountFlag(s string) (uint64, error) {
	if s == "" {
		return 0, NewExitError(ExitCommandError, "--amount is required")
	}
	n, err := ParseAmount(s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid --amount", err)
	}
	return n, nil
}

// submit runs one request against the journal database and prints its
// outcome. A vault rejection exits with ExitFailure.
func submit(cmd *cobra.Command, opts *RootOptions, op string, caller ir.Identity, args ir.IRObject) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := opts.formatter(cmd)
	res, err := sess.engine.Execute(ctx, engine.Request{
		Operation: op,
		Caller:    caller,
		Args:      args,
	})
	if err != nil {
		code := CodeCommand
		if engine.IsInvalidArgs(err) {
			code = CodeInvalidArgs
		}
		_ = out.Error(code, err.Error(), nil)
		return reported(WrapExitError(ExitCommandError, "request failed", err))
	}

	view := newRequestView(res)
	if res.Err != nil {
		_ = out.Failure(res.Completion.OutputCase, res.Err.Error(), view)
		if hint := rejectionHint(res.Err); hint != "" {
			fmt.Fprintf(out.GetErrWriter(), "hint: %s\n", hint)
		}
		return reported(WrapExitError(ExitFailure, "request rejected", res.Err))
	}
	return out.Success(view)
}

// rejectionHint suggests the next step for rejections a user can act on.
func rejectionHint(err error) string {
	switch {
	case vault.IsAuthorizationError(err):
		return "only the vault authority may do this; pass its identity as --caller"
	case vault.IsTimelockError(err):
		return "the proposal is still timelocked; `solforge show` prints its release time"
	}
	return ""
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		caller       string
		authority    string
		feeBps       uint16
		burnBps      uint16
		delay        int64
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the vault",
		Long: `Create the vault with its authority, fee rate, burn share and timelock.

Parameters come from flags or a CUE manifest; flags that are set override
the manifest. The caller defaults to the authority.

Examples:
  solforge init --authority <id> --fee-bps 500 --burn-bps 2000
  solforge init --manifest vault.cue --delay 3600`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestPath == "" {
				manifestPath = rootOpts.Config.Manifest
			}

			reqArgs := ir.IRObject{}
			if manifestPath != "" {
				m, err := manifest.LoadFile(manifestPath)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid manifest", err)
				}
				reqArgs[engine.ArgAuthority] = ir.IdentityValue(m.Authority)
				reqArgs[engine.ArgFeeBps] = ir.IRInt(m.FeeBasisPoints)
				reqArgs[engine.ArgBurnBps] = ir.IRInt(m.BurnBps)
				if d, ok := m.DelaySeconds.Get(); ok {
					reqArgs[engine.ArgDelaySeconds] = ir.IRInt(d)
				}
			}

			if flagChanged(cmd, "authority") {
				id, err := ParseIdentity(authority)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --authority", err)
				}
				reqArgs[engine.ArgAuthority] = ir.IdentityValue(id)
			}
			if flagChanged(cmd, "fee-bps") || !reqArgs.Has(engine.ArgFeeBps) {
				reqArgs[engine.ArgFeeBps] = ir.IRInt(feeBps)
			}
			if flagChanged(cmd, "burn-bps") || !reqArgs.Has(engine.ArgBurnBps) {
				reqArgs[engine.ArgBurnBps] = ir.IRInt(burnBps)
			}
			if flagChanged(cmd, "delay") {
				reqArgs[engine.ArgDelaySeconds] = ir.IRInt(delay)
			}
			if !reqArgs.Has(engine.ArgAuthority) {
				return NewExitError(ExitCommandError, "--authority or --manifest is required")
			}

			signer, err := reqArgs.Identity(engine.ArgAuthority)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid authority", err)
			}
			if caller != "" {
				if signer, err = resolveCaller(rootOpts, caller, "caller"); err != nil {
					return err
				}
			}
			return submit(cmd, rootOpts, engine.OpInitialize, signer, reqArgs)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "signer (default: the authority)")
	cmd.Flags().StringVar(&authority, "authority", "", "vault authority identity")
	cmd.Flags().Uint16Var(&feeBps, "fee-bps", 0, "advisory fee rate in basis points")
	cmd.Flags().Uint16Var(&burnBps, "burn-bps", 0, "burn share of each deposit in basis points")
	cmd.Flags().Int64Var(&delay, "delay", 0, "timelock in seconds (default 86400)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "CUE manifest with the vault parameters")

	return cmd
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	var to string
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Credit lamports to an account (development faucet)",
		Long: `Credit lamports to an account from nothing. Intended for local
development and scenario setup.

Example:
  solforge airdrop --to <id> --amount 2sol`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := resolveCaller(rootOpts, to, "to")
			if err != nil {
				return err
			}
			amount, err := parseAmountFlag(flags.amount)
			if err != nil {
				return err
			}
			return submit(cmd, rootOpts, engine.OpAirdrop, recipient, ir.IRObject{
				engine.ArgTo:     ir.IdentityValue(recipient),
				engine.ArgAmount: ir.Lamports(amount),
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "account to credit")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "lamports, or SOL with a sol suffix")
	return cmd
}

// NewAccrueCommand creates the accrue command.
func NewAccrueCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Pay a fee into the vault",
		Long: `Transfer a fee from the payer. The burn share goes to the incinerator
and the rest is credited to the vault's accrued balance.

Example:
  solforge accrue --payer <id> --amount 0.5sol`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := resolveCaller(rootOpts, flags.caller, "payer")
			if err != nil {
				return err
			}
			amount, err := parseAmountFlag(flags.amount)
			if err != nil {
				return err
			}
			return submit(cmd, rootOpts, engine.OpAccrueFee, payer, ir.IRObject{
				engine.ArgAmount: ir.Lamports(amount),
			})
		},
	}

	cmd.Flags().StringVar(&flags.caller, "payer", "", "paying account")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "lamports, or SOL with a sol suffix")
	return cmd
}

// NewBurnCommand creates the burn command.
func NewBurnCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Burn accrued lamports (authority only)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := resolveCaller(rootOpts, flags.caller, "caller")
			if err != nil {
				return err
			}
			amount, err := parseAmountFlag(flags.amount)
			if err != nil {
				return err
			}
			return submit(cmd, rootOpts, engine.OpBurnSol, caller, ir.IRObject{
				engine.ArgAmount: ir.Lamports(amount),
			})
		},
	}

	cmd.Flags().StringVar(&flags.caller, "caller", "", "signer")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "lamports, or SOL with a sol suffix")
	return cmd
}

// NewDistributeCommand creates the distribute command.
func NewDistributeCommand(rootOpts *RootOptions) *cobra.Command {
	var to string
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Pay accrued lamports to a recipient (authority only)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := resolveCaller(rootOpts, flags.caller, "caller")
			if err != nil {
				return err
			}
			if to == "" {
				return NewExitError(ExitCommandError, "--to is required")
			}
			recipient, err := ParseIdentity(to)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --to", err)
			}
			amount, err := parseAmountFlag(flags.amount)
			if err != nil {
				return err
			}
			return submit(cmd, rootOpts, engine.OpDistributeRewards, caller, ir.IRObject{
				engine.ArgRecipient: ir.IdentityValue(recipient),
				engine.ArgAmount:    ir.Lamports(amount),
			})
		},
	}

	cmd.Flags().StringVar(&flags.caller, "caller", "", "signer")
	cmd.Flags().StringVar(&to, "to", "", "recipient")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "lamports, or SOL with a sol suffix")
	return cmd
}

// NewProposeCommand creates the propose command.
func NewProposeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		caller  string
		burnBps uint16
		delay   int64
	)

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Propose a burn share or timelock change (authority only)",
		Long: `Record a pending parameter change. It can be executed once the current
timelock has elapsed. A new proposal replaces the pending one and restarts
the timelock.

Example:
  solforge propose --caller <id> --burn-bps 3000`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := resolveCaller(rootOpts, caller, "caller")
			if err != nil {
				return err
			}
			reqArgs := ir.IRObject{}
			if flagChanged(cmd, "burn-bps") {
				reqArgs[engine.ArgBurnBps] = ir.IRInt(burnBps)
			}
			if flagChanged(cmd, "delay") {
				reqArgs[engine.ArgDelaySeconds] = ir.IRInt(delay)
			}
			return submit(cmd, rootOpts, engine.OpProposeParameterUpdate, signer, reqArgs)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "signer")
	cmd.Flags().Uint16Var(&burnBps, "burn-bps", 0, "proposed burn share in basis points")
	cmd.Flags().Int64Var(&delay, "delay", 0, "proposed timelock in seconds")
	return cmd
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	return newGovernanceCommand(rootOpts, "execute", "Apply the pending proposal once its timelock expires",
		engine.OpExecuteParameterUpdate)
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return newGovernanceCommand(rootOpts, "cancel", "Discard the pending proposal",
		engine.OpCancelParameterProposal)
}

func newGovernanceCommand(rootOpts *RootOptions, use, short, op string) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   use,
		Short: short + " (authority only)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := resolveCaller(rootOpts, caller, "caller")
			if err != nil {
				return err
			}
			return submit(cmd, rootOpts, op, signer, ir.IRObject{})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "signer")
	return cmd
}
