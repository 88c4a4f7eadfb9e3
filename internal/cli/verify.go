package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/diamond"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Diamond string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay the audit log and compare it with the live registry",
		Long: `Rebuild the routing table from the diamond's DiamondCut logs alone and
compare its digest with the live registry's. Also checks the live
registry's internal consistency.

Exit codes:
  0 - Replay matches and the registry is consistent
  1 - Mismatch or inconsistency detected
  2 - Command error (database not found, etc.)

Examples:
  diamond verify
  diamond verify --diamond 0x1f... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Diamond, "diamond", "", "diamond address (default: the one created by init)")

	return cmd
}

func runVerify(ctx context.Context, opts *VerifyOptions, cmd *cobra.Command) error {
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	addr, err := e.diamond(ctx, opts.Diamond)
	if err != nil {
		return err
	}
	res, err := diamond.Verify(ctx, e.engine, addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "verification failed", err)
	}

	if !res.OK() {
		msg := fmt.Sprintf("live digest %s does not match replayed %s", res.Live, res.Replayed)
		if res.Violation != "" {
			msg = res.Violation
		}
		if err := e.out.Error("E_VERIFY", msg, res); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "verification failed")
	}
	return e.out.Success(res,
		fmt.Sprintf("Replayed %d cuts: digest %s matches", res.Cuts, res.Live))
}
