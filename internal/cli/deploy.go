package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	From string
	Salt string
}

// DeployResult is a deployed module.
type DeployResult struct {
	Module    string        `json:"module"`
	Address   ir.Address    `json:"address"`
	Code      ir.Hash       `json:"code_hash"`
	Selectors []ir.Selector `json:"selectors,omitempty"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy <module>",
		Short: "Deploy a catalog module",
		Long: `Deploy a module from the built-in catalog and print its address.

The address depends only on the module's code and the salt, so deploying
the same module twice is a no-op. The proxy is deployed by init.

Examples:
  diamond deploy counter-v2
  diamond deploy counter --salt 0x01`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "deployer account (default: config sender)")
	cmd.Flags().StringVar(&opts.Salt, "salt", "", "32-byte salt in hex (default: zero)")

	return cmd
}

func runDeploy(ctx context.Context, opts *DeployOptions, name string, cmd *cobra.Command) error {
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	entry, ok := e.catalog.Lookup(name)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown module %q (known: %v)", name, e.catalog.Names()))
	}
	if _, ok := entry.Module.(engine.Constructor); ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("module %q needs constructor arguments; use init", name))
	}
	var salt ir.Hash
	if opts.Salt != "" {
		b, err := ir.ParseBytes(opts.Salt)
		if err != nil || len(b) > len(salt) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid salt %q", opts.Salt))
		}
		copy(salt[len(salt)-len(b):], b)
	}
	from, err := e.sender(opts.From)
	if err != nil {
		return err
	}

	addr, err := diamond.DeployModule(ctx, e.engine, from, entry.Module, salt)
	if err != nil {
		return WrapExitError(ExitFailure, "deploy failed", err)
	}
	e.logger.Info("module deployed", "module", name, "address", addr)

	return e.out.Success(DeployResult{
		Module:    name,
		Address:   addr,
		Code:      ir.CodeHash(entry.Module.Code()),
		Selectors: entry.Selectors(),
	}, fmt.Sprintf("%s deployed at %s", name, addr))
}
