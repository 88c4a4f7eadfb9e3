package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/server"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Diamond string
	All     bool
	Event   string
	After   int64
	Limit   int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print a diamond's audit log",
		Long: `Print committed logs in sequence order: DiamondCut records for every
applied cut, OwnershipTransferred, and any events facets emit.

Examples:
  diamond log
  diamond log --event DiamondCut --format json
  diamond log --all --after 10 --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Diamond, "diamond", "", "diamond address (default: the one created by init)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "logs of every address")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only this event")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only logs with a greater sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of logs (0 for all)")

	return cmd
}

func runLog(ctx context.Context, opts *LogOptions, cmd *cobra.Command) error {
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	filter := ir.LogFilter{Event: opts.Event, AfterSeq: opts.After, Limit: opts.Limit}
	if !opts.All {
		if filter.Address, err = e.diamond(ctx, opts.Diamond); err != nil {
			return err
		}
	}
	logs, err := e.engine.Logs(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read logs", err)
	}

	out := server.NewLogs(logs)
	if out == nil {
		out = []server.Log{}
	}
	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = fmt.Sprintf("#%d %s %s %s %s", l.Seq, l.TxID, e.catalog.NameOf(l.Address), l.Event, l.Data)
	}
	if len(lines) == 0 {
		lines = []string{"No logs."}
	}
	return e.out.Success(out, lines...)
}
