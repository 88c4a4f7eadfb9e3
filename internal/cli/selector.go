package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/ir"
)

// SelectorResult is one computed selector.
type SelectorResult struct {
	Signature string      `json:"signature"`
	Selector  ir.Selector `json:"selector"`
}

// NewSelectorCommand creates the selector command.
func NewSelectorCommand(rootOpts *RootOptions) *cobra.Command {
	var iface bool

	cmd := &cobra.Command{
		Use:   "selector <signature>...",
		Short: "Compute function selectors",
		Long: `Print the normalized signature and 4-byte selector of each function.
With --interface, also print the ERC-165 interface ID: the XOR of all
the selectors.

Examples:
  diamond selector "getX()" "transfer(address to, uint amount)"
  diamond selector --interface "owner()" "transferOwnership(address)"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			results := make([]SelectorResult, len(args))
			sels := make([]ir.Selector, len(args))
			lines := make([]string, 0, len(args)+1)
			for i, a := range args {
				norm, err := abi.NormalizeSignature(a)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid signature", err)
				}
				sels[i] = ir.SelectorOf(norm)
				results[i] = SelectorResult{Signature: norm, Selector: sels[i]}
				lines = append(lines, fmt.Sprintf("%s %s", sels[i], norm))
			}
			if !iface {
				return out.Success(results, lines...)
			}
			id := ir.InterfaceID(sels...)
			lines = append(lines, fmt.Sprintf("interface %s", id))
			return out.Success(map[string]any{"selectors": results, "interface": id}, lines...)
		},
	}
	cmd.Flags().BoolVar(&iface, "interface", false, "also print the XOR interface ID")

	return cmd
}
