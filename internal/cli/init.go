package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/ir"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Owner  string
	Facets []string
	Init   string
	Nonce  uint64
}

// InitResult describes a bootstrapped diamond.
type InitResult struct {
	Diamond  ir.Address   `json:"diamond"`
	Owner    ir.Address   `json:"owner"`
	CutFacet ir.Address   `json:"cut_facet"`
	Facets   []ir.Address `json:"facets"`
	Init     ir.Address   `json:"init"`
	TxID     string       `json:"tx_id"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a diamond with the standard facets",
		Long: `Deploy every catalog module, then a diamond proxy owned by --owner with
the cut, loupe and ownership facets plus any --facet, initialized by the
standard initializer in the same cut.

The new diamond becomes the default for commands run without --diamond.

Examples:
  diamond init --owner alice
  diamond init --owner alice --facet counter
  diamond init --owner 0x5a1c... --nonce 1 --init none`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner account label or 0x address (default: config sender)")
	cmd.Flags().StringSliceVar(&opts.Facets, "facet", nil, "business facet from the catalog (repeatable)")
	cmd.Flags().StringVar(&opts.Init, "init", "init", `initializer from the catalog, or "none"`)
	cmd.Flags().Uint64Var(&opts.Nonce, "nonce", 0, "proxy salt nonce, for several diamonds per owner")

	return cmd
}

func runInit(ctx context.Context, opts *InitOptions, cmd *cobra.Command) error {
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	owner, err := e.sender(opts.Owner)
	if err != nil {
		return err
	}
	if err := e.catalog.Deploy(ctx, e.engine, owner); err != nil {
		return WrapExitError(ExitCommandError, "failed to deploy catalog", err)
	}

	bopts, err := e.catalog.Standard(owner, opts.Facets...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid facets", err)
	}
	bopts.Nonce = opts.Nonce
	switch opts.Init {
	case "init":
	case "none", "":
		bopts.Init = nil
	default:
		entry, ok := e.catalog.Lookup(opts.Init)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown initializer %q", opts.Init))
		}
		bopts.Init = entry.Module
	}

	b, err := diamond.Bootstrap(ctx, e.engine, bopts)
	if err != nil {
		return WrapExitError(ExitFailure, "bootstrap failed", err)
	}
	if err := e.setDefaultDiamond(ctx, b.Diamond); err != nil {
		return WrapExitError(ExitCommandError, "failed to record diamond", err)
	}
	e.logger.Info("diamond bootstrapped", "diamond", b.Diamond, "owner", owner, "facets", len(b.Facets))

	res := InitResult{
		Diamond:  b.Diamond,
		Owner:    owner,
		CutFacet: b.CutFacet,
		Facets:   b.Facets,
		Init:     b.Init,
		TxID:     b.Receipt.TxID,
	}
	lines := []string{
		fmt.Sprintf("Diamond deployed at %s", b.Diamond),
		fmt.Sprintf("  owner:     %s", owner),
		fmt.Sprintf("  cut facet: %s", b.CutFacet),
	}
	for _, f := range b.Facets {
		lines = append(lines, fmt.Sprintf("  facet:     %s (%s)", f, e.catalog.NameOf(f)))
	}
	return e.out.Success(res, lines...)
}
