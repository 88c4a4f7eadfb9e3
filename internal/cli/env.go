package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/config"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/store"
)

// metaDiamond records the diamond created by init, used when --diamond is
// omitted.
const metaDiamond = "cli.diamond"

// env is what a command needs to send messages: an open store, an engine
// with every catalog module registered and an output formatter.
type env struct {
	opts    *RootOptions
	store   *store.Store
	engine  *engine.Engine
	catalog *catalog.Catalog
	logger  *slog.Logger
	out     *OutputFormatter
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(w io.Writer, cfg config.Config) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openEnv opens the configured database and an engine over it.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command, extra ...engine.EngineOption) (*env, error) {
	cfg := opts.Config
	logger := NewLogger(cmd.ErrOrStderr(), cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	cat := catalog.Default()
	eopts := []engine.EngineOption{
		engine.WithGasLimit(cfg.GasLimit),
		engine.WithModules(cat.Modules()...),
		engine.WithLogger(logger),
	}
	e, err := engine.New(ctx, st, append(eopts, extra...)...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	logger.Debug("database opened", "path", cfg.DBPath)
	return &env{
		opts:    opts,
		store:   st,
		engine:  e,
		catalog: cat,
		logger:  logger,
		out:     newFormatter(opts, cmd),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// sender resolves --from, falling back to the configured sender.
func (e *env) sender(flag string) (ir.Address, error) {
	if flag == "" {
		flag = e.opts.Config.Sender
	}
	addr, err := config.ResolveAccount(flag)
	if err != nil {
		return ir.Address{}, WrapExitError(ExitCommandError, "invalid sender", err)
	}
	return addr, nil
}

// diamond resolves --diamond, falling back to the one init recorded.
func (e *env) diamond(ctx context.Context, flag string) (ir.Address, error) {
	if flag == "" {
		v, ok, err := e.store.Meta(ctx, metaDiamond)
		if err != nil {
			return ir.Address{}, WrapExitError(ExitCommandError, "failed to read metadata", err)
		}
		if !ok {
			return ir.Address{}, NewExitError(ExitCommandError, "no diamond: pass --diamond or run init first")
		}
		flag = v
	}
	addr, err := ir.ParseAddress(flag)
	if err != nil {
		return ir.Address{}, WrapExitError(ExitCommandError, "invalid diamond address", err)
	}
	return addr, nil
}

// client returns a loupe/ownership client for the selected diamond.
func (e *env) client(ctx context.Context, diamondFlag, fromFlag string) (*diamond.Client, error) {
	d, err := e.diamond(ctx, diamondFlag)
	if err != nil {
		return nil, err
	}
	from, err := e.sender(fromFlag)
	if err != nil {
		return nil, err
	}
	return diamond.NewClient(e.engine, d, from), nil
}

func (e *env) setDefaultDiamond(ctx context.Context, addr ir.Address) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetMeta(metaDiamond, addr.Hex()); err != nil {
		return err
	}
	return tx.Commit()
}

// messageFlags are shared by commands that send to a diamond.
type messageFlags struct {
	Diamond string
	From    string
}

func (m *messageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.Diamond, "diamond", "", "diamond address (default: the one created by init)")
	cmd.Flags().StringVar(&m.From, "from", "", "sender account label or 0x address (default: config sender)")
}

// readError wraps a failed loupe or ownership read.
func readError(what string, err error) error {
	if code := diamond.ErrorCode(err); code != "" {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s reverted (%s)", what, code), err)
	}
	return WrapExitError(ExitCommandError, what+" failed", err)
}
