package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/manifest"
)

// CutOptions holds flags for the cut command.
type CutOptions struct {
	*RootOptions
	messageFlags
}

// NewCutCommand creates the cut command.
func NewCutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cut <manifest>",
		Short: "Apply a cut manifest to a diamond",
		Long: `Apply the add, replace and remove items of a YAML or CUE manifest in one
atomic diamondCut, then run its initializer. Facets are catalog names or
0x addresses; a catalog facet with no function list contributes all of
its selectors.

Exit codes:
  0 - Cut applied
  1 - Cut reverted (the error code is printed; nothing changed)
  2 - Command error (invalid manifest, database not found, etc.)

Examples:
  diamond cut upgrade.yaml --from alice
  diamond cut upgrade.cue --diamond 0x1f... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd.Context(), opts, args[0], cmd)
		},
	}
	opts.register(cmd)

	return cmd
}

func runCut(ctx context.Context, opts *CutOptions, path string, cmd *cobra.Command) error {
	m, err := manifest.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := m.Resolve(e.catalog)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}
	c, err := e.client(ctx, opts.Diamond, opts.From)
	if err != nil {
		return err
	}
	e.out.VerboseLog("cut %s: %d items, init %s", c.Diamond, len(res.Cuts), e.catalog.NameOf(res.Init))

	r, err := c.Cut(ctx, res.Cuts, res.Init, res.Calldata)
	if err != nil {
		return WrapExitError(ExitCommandError, "cut failed", err)
	}
	if r.Err == nil {
		e.logger.Info("cut applied", "diamond", c.Diamond, "items", len(res.Cuts), "tx_id", r.TxID)
	}
	return e.out.Receipt(r)
}
