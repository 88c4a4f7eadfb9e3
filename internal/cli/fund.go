package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/config"
	"github.com/roach88/diamond/internal/ir"
)

// FundResult is an account balance after funding.
type FundResult struct {
	Account ir.Address `json:"account"`
	Balance uint64     `json:"balance"`
}

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <account> <amount>",
		Short: "Credit value to an account",
		Long: `Credit value to an account outside of any message, so it can attach
value to calls.

Examples:
  diamond fund alice 1000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFund(cmd.Context(), rootOpts, args[0], args[1], cmd)
		},
	}
}

func runFund(ctx context.Context, opts *RootOptions, account, amount string, cmd *cobra.Command) error {
	addr, err := config.ResolveAccount(account)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid account", err)
	}
	n, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}

	e, err := openEnv(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.engine.Fund(ctx, addr, n); err != nil {
		return WrapExitError(ExitFailure, "fund failed", err)
	}
	bal, err := e.engine.BalanceOf(ctx, addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read balance", err)
	}
	return e.out.Success(FundResult{Account: addr, Balance: bal}, fmt.Sprintf("%s balance %d", addr, bal))
}
