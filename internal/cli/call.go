package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/engine"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	messageFlags
	Value    uint64
	GasLimit uint64
	Query    bool
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <function> [args...]",
		Short: "Send a message to a diamond",
		Long: `Send a call to a diamond. The function is a signature such as
"transferOwnership(address)" or a raw 0x selector without arguments.
Arguments are parsed by the signature's parameter types.

With --query the call runs read-only and its effects are discarded.

Exit codes:
  0 - Message succeeded
  1 - Message reverted
  2 - Command error

Examples:
  diamond call "getX()" --query
  diamond call "changeX()" --from alice
  diamond call "transferOwnership(address)" bob --from alice`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), opts, args[0], args[1:], cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().Uint64Var(&opts.Value, "value", 0, "value to attach")
	cmd.Flags().Uint64Var(&opts.GasLimit, "gas", 0, "gas limit (default: config gas_limit)")
	cmd.Flags().BoolVar(&opts.Query, "query", false, "run read-only")

	return cmd
}

func runCall(ctx context.Context, opts *CallOptions, function string, args []string, cmd *cobra.Command) error {
	data, err := abi.EncodeTextCall(function, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid call", err)
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	to, err := e.diamond(ctx, opts.Diamond)
	if err != nil {
		return err
	}
	from, err := e.sender(opts.From)
	if err != nil {
		return err
	}

	msg := engine.Message{From: from, To: to, Value: opts.Value, Data: data, GasLimit: opts.GasLimit}
	var r *engine.Receipt
	if opts.Query {
		r, err = e.engine.Query(ctx, msg)
	} else {
		r, err = e.engine.Execute(ctx, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "call failed", err)
	}
	return e.out.Receipt(r)
}
