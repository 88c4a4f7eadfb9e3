package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/config"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/ir"
)

// LoupeOptions holds flags for the loupe commands.
type LoupeOptions struct {
	*RootOptions
	messageFlags
}

// FacetResult is one facet and its selectors.
type FacetResult struct {
	Address   ir.Address    `json:"address"`
	Name      string        `json:"name,omitempty"`
	Selectors []ir.Selector `json:"selectors"`
}

// NewLoupeCommand creates the loupe command group.
func NewLoupeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoupeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "loupe",
		Short: "Inspect a diamond's routing table",
		Long: `Query the diamond's loupe facet. Every subcommand sends a read-only
message through the proxy, exactly as an external caller would.

Examples:
  diamond loupe facets
  diamond loupe selectors counter
  diamond loupe address "getX()"
  diamond loupe supports 0x48e2b093`,
	}
	opts.messageFlags.registerPersistent(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:           "facets",
		Short:         "List facets and their selectors",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, e *env, c *diamond.Client) error {
				return runFacets(ctx, e, c)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "selectors <facet>",
		Short:         "List the selectors routed to a facet",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, e *env, c *diamond.Client) error {
				return runSelectors(ctx, e, c, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "address <function>",
		Short:         "Show the facet a function routes to",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, e *env, c *diamond.Client) error {
				return runFacetAddress(ctx, e, c, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "supports <interface-id>",
		Short:         "Ask supportsInterface",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, e *env, c *diamond.Client) error {
				return runSupports(ctx, e, c, args[0])
			})
		},
	})

	return cmd
}

func (m *messageFlags) registerPersistent(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&m.Diamond, "diamond", "", "diamond address (default: the one created by init)")
	cmd.PersistentFlags().StringVar(&m.From, "from", "", "sender account label or 0x address (default: config sender)")
}

func withClient(cmd *cobra.Command, opts *LoupeOptions, fn func(context.Context, *env, *diamond.Client) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := e.client(ctx, opts.Diamond, opts.From)
	if err != nil {
		return err
	}
	return fn(ctx, e, c)
}

func runFacets(ctx context.Context, e *env, c *diamond.Client) error {
	facets, err := c.Facets(ctx)
	if err != nil {
		return readError("facets()", err)
	}
	out := make([]FacetResult, len(facets))
	var lines []string
	for i, f := range facets {
		out[i] = FacetResult{Address: f.FacetAddress, Selectors: f.FunctionSelectors}
		if entry, ok := e.catalog.ByAddress(f.FacetAddress); ok {
			out[i].Name = entry.Name
		}
		lines = append(lines, fmt.Sprintf("%s %s", f.FacetAddress, out[i].Name))
		for _, sel := range f.FunctionSelectors {
			lines = append(lines, "  "+describeSelector(e.catalog, f.FacetAddress, sel))
		}
	}
	if len(lines) == 0 {
		lines = []string{"No facets."}
	}
	return e.out.Success(out, lines...)
}

func runSelectors(ctx context.Context, e *env, c *diamond.Client, facetRef string) error {
	facet, err := e.catalog.Resolve(facetRef)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid facet", err)
	}
	sels, err := c.FacetFunctionSelectors(ctx, facet)
	if err != nil {
		return readError("facetFunctionSelectors()", err)
	}
	lines := make([]string, len(sels))
	for i, sel := range sels {
		lines[i] = describeSelector(e.catalog, facet, sel)
	}
	if len(lines) == 0 {
		lines = []string{"No selectors."}
	}
	return e.out.Success(FacetResult{Address: facet, Name: facetName(e.catalog, facet), Selectors: sels}, lines...)
}

func runFacetAddress(ctx context.Context, e *env, c *diamond.Client, function string) error {
	sel, err := parseFunction(function)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid function", err)
	}
	facet, err := c.FacetAddress(ctx, sel)
	if err != nil {
		return readError("facetAddress()", err)
	}
	res := map[string]any{"selector": sel, "facet": facet}
	if facet.IsZero() {
		return e.out.Success(res, fmt.Sprintf("%s is not routed", sel))
	}
	if name := facetName(e.catalog, facet); name != "" {
		res["name"] = name
	}
	return e.out.Success(res, fmt.Sprintf("%s -> %s %s", sel, facet, facetName(e.catalog, facet)))
}

func runSupports(ctx context.Context, e *env, c *diamond.Client, id string) error {
	sel, err := ir.ParseSelector(id)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid interface id", err)
	}
	ok, err := c.SupportsInterface(ctx, sel)
	if err != nil {
		return readError("supportsInterface()", err)
	}
	return e.out.Success(map[string]any{"interface": sel, "supported": ok}, fmt.Sprintf("%s supported: %t", sel, ok))
}

// parseFunction accepts a signature or a 0x selector.
func parseFunction(s string) (ir.Selector, error) {
	if strings.HasPrefix(s, "0x") {
		return ir.ParseSelector(s)
	}
	return abi.SelectorOf(s)
}

func facetName(cat *catalog.Catalog, addr ir.Address) string {
	if entry, ok := cat.ByAddress(addr); ok {
		return entry.Name
	}
	return ""
}

// describeSelector shows a selector with its signature when the facet is a
// catalog module.
func describeSelector(cat *catalog.Catalog, facet ir.Address, sel ir.Selector) string {
	entry, ok := cat.ByAddress(facet)
	if !ok {
		return sel.String()
	}
	for _, sig := range entry.Signatures() {
		if s, err := abi.SelectorOf(sig); err == nil && s == sel {
			return fmt.Sprintf("%s %s", sel, sig)
		}
	}
	return sel.String()
}

// NewOwnerCommand creates the owner command.
func NewOwnerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoupeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "owner",
		Short:         "Show the diamond's owner",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, e *env, c *diamond.Client) error {
				owner, err := c.Owner(ctx)
				if err != nil {
					return readError("owner()", err)
				}
				return e.out.Success(map[string]ir.Address{"owner": owner}, owner.Hex())
			})
		},
	}
	opts.register(cmd)
	return cmd
}

// NewTransferOwnershipCommand creates the transfer-ownership command.
func NewTransferOwnershipCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoupeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "transfer-ownership <account>",
		Short: "Hand the diamond to a new owner",
		Long: `Send transferOwnership from --from. Only the current owner may call it,
and the new owner must not be the zero address.

Examples:
  diamond transfer-ownership bob --from alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, e *env, c *diamond.Client) error {
				next, err := config.ResolveAccount(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid account", err)
				}
				r, err := c.TransferOwnership(ctx, next)
				if err != nil {
					return WrapExitError(ExitCommandError, "transfer failed", err)
				}
				return e.out.Receipt(r)
			})
		},
	}
	opts.register(cmd)
	return cmd
}
