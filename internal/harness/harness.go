package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/store"
)

// FundAmount is the balance every scenario account starts with.
const FundAmount uint64 = 1_000_000_000

// Harness is the test execution engine.
// It runs scenarios against a real engine with deterministic transaction
// IDs.
type Harness struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	logger  *slog.Logger

	accounts map[string]ir.Address
	names    *strings.Replacer
	diamond  *diamond.Bootstrapped
}

// Option configures a run.
type Option func(*options)

type options struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	dir     string
}

// WithCatalog replaces the default module catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithLogger sets the logger for engine and harness records.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDir stores the scenario database under dir instead of in memory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh database for isolation. Transaction IDs
// come from a SequenceGenerator, so the trace is reproducible.
//
// Execution flow:
// 1. Create a fresh database and engine with every catalog module
// 2. Fund accounts, deploy catalog modules and bootstrap the diamond
// 3. Execute steps, checking expect clauses
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		catalog: catalog.Default(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	path := store.MemoryPath
	if o.dir != "" {
		path = filepath.Join(o.dir, scenario.Name+".db")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	prefix := scenario.TxPrefix
	if prefix == "" {
		prefix = "tx"
	}
	eng, err := engine.New(ctx, st,
		engine.WithTxIDGenerator(&engine.SequenceGenerator{Prefix: prefix}),
		engine.WithModules(o.catalog.Modules()...),
		engine.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		engine:   eng,
		catalog:  o.catalog,
		logger:   o.logger,
		accounts: make(map[string]ir.Address),
	}

	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.trace(result, 0, "bootstrap", scenario.Diamond.Owner, diamond.SigDiamondCut, nil, h.diamond.Receipt)

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Client:  diamond.NewClient(eng, h.diamond.Diamond, h.accounts[scenario.Diamond.Owner]),
		Catalog: o.catalog,
		Account: h.account,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// setup funds accounts and bootstraps the diamond.
func (h *Harness) setup(ctx context.Context, s *Scenario) error {
	labels := append([]string{s.Diamond.Owner}, s.Accounts...)
	for _, label := range labels {
		if _, seen := h.accounts[label]; seen {
			continue
		}
		addr := ir.AccountAddress(label)
		h.accounts[label] = addr
		if err := h.engine.Fund(ctx, addr, FundAmount); err != nil {
			return fmt.Errorf("fund %s: %w", label, err)
		}
	}

	// Every catalog module a manifest can name must have code. Modules
	// with constructors are deployed by the steps that need them.
	owner := h.accounts[s.Diamond.Owner]
	if err := h.catalog.Deploy(ctx, h.engine, owner); err != nil {
		return err
	}

	opts, err := h.catalog.Standard(owner, s.Diamond.Facets...)
	if err != nil {
		return err
	}
	switch s.Diamond.Init {
	case "":
	case "none":
		opts.Init = nil
	default:
		entry, ok := h.catalog.Lookup(s.Diamond.Init)
		if !ok {
			return fmt.Errorf("unknown init module %q", s.Diamond.Init)
		}
		opts.Init = entry.Module
	}

	h.diamond, err = diamond.Bootstrap(ctx, h.engine, opts)
	if err != nil {
		return err
	}
	h.names = h.symbols()

	h.logger.Info("diamond bootstrapped",
		"diamond", h.diamond.Diamond,
		"owner", s.Diamond.Owner,
		"facets", len(h.diamond.Facets),
	)
	return nil
}

// symbols maps every known address to a stable name.
func (h *Harness) symbols() *strings.Replacer {
	var pairs []string
	pairs = append(pairs, h.diamond.Diamond.Hex(), "diamond")
	for label, addr := range h.accounts {
		pairs = append(pairs, addr.Hex(), label)
	}
	for _, e := range h.catalog.Entries() {
		pairs = append(pairs, e.Address().Hex(), e.Name)
	}
	return strings.NewReplacer(pairs...)
}

func (h *Harness) account(label string) (ir.Address, error) {
	if addr, ok := h.accounts[label]; ok {
		return addr, nil
	}
	if strings.HasPrefix(label, "0x") {
		return ir.ParseAddress(label)
	}
	return ir.Address{}, fmt.Errorf("unknown account %q", label)
}

// executeStep sends one step's message and checks its expect clause.
// Only infrastructure failures are returned; mismatches are recorded on
// result.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	var (
		kind     string
		fromName string
		function string
		args     []string
		receipt  *engine.Receipt
	)

	switch {
	case step.Cut != nil:
		kind, fromName, function = "cut", step.Cut.From, diamond.SigDiamondCut
		from, err := h.account(fromName)
		if err != nil {
			return err
		}
		res, err := step.Cut.Manifest.Resolve(h.catalog)
		if err != nil {
			return fmt.Errorf("resolve manifest: %w", err)
		}
		receipt, err = diamond.SendCut(ctx, h.engine, from, h.diamond.Diamond, res.Cuts, res.Init, res.Calldata)
		if err != nil {
			return err
		}

	case step.Call != nil:
		kind, fromName, function, args = "call", step.Call.From, step.Call.Function, step.Call.Args
		if step.Call.Query {
			kind = "query"
		}
		from, err := h.account(fromName)
		if err != nil {
			return err
		}
		data, err := abi.EncodeTextCall(step.Call.Function, step.Call.Args)
		if err != nil {
			return err
		}
		msg := engine.Message{From: from, To: h.diamond.Diamond, Value: step.Call.Value, Data: data}
		if step.Call.Query {
			receipt, err = h.engine.Query(ctx, msg)
		} else {
			receipt, err = h.engine.Execute(ctx, msg)
		}
		if err != nil {
			return err
		}

	case step.TransferOwnership != nil:
		kind, fromName, function = "transfer_ownership", step.TransferOwnership.From, diamond.SigTransferOwnership
		from, err := h.account(fromName)
		if err != nil {
			return err
		}
		to, err := h.account(step.TransferOwnership.To)
		if err != nil {
			return err
		}
		args = []string{step.TransferOwnership.To}
		receipt, err = diamond.NewClient(h.engine, h.diamond.Diamond, from).TransferOwnership(ctx, to)
		if err != nil {
			return err
		}
	}

	ev := h.trace(result, n, kind, fromName, function, args, receipt)
	label := fmt.Sprintf("step %d (%s %s)", n, kind, function)
	if step.Name != "" {
		label = fmt.Sprintf("step %d %q", n, step.Name)
	}
	checkExpect(result, label, step.Expect, ev)

	h.logger.Info("step completed",
		"step", n,
		"kind", kind,
		"tx_id", receipt.TxID,
		"error", ev.Error,
	)
	return nil
}

// trace records receipt as a symbolic trace event and returns it.
func (h *Harness) trace(result *Result, n int, kind, from, function string, args []string, r *engine.Receipt) TraceEvent {
	ev := TraceEvent{
		Step:     n,
		Kind:     kind,
		From:     from,
		Function: function,
		Args:     args,
		TxID:     r.TxID,
		GasUsed:  r.GasUsed,
	}
	if r.Err != nil {
		ev.Error = diamond.ErrorCode(r.Err)
		if ev.Error == "" {
			ev.Error = "ERROR"
		}
	} else if vals, err := abi.FormatValues(r.Return); err == nil {
		for _, v := range vals {
			ev.Return = append(ev.Return, h.names.Replace(v))
		}
	}
	for _, l := range r.Logs {
		ev.Logs = append(ev.Logs, TraceLog{
			Seq:   l.Seq,
			Event: l.Event,
			Data:  h.names.Replace(string(l.Data)),
		})
	}
	result.AddTrace(ev)
	return ev
}

func checkExpect(result *Result, label string, want *ExpectClause, got TraceEvent) {
	if want == nil || want.Error == "" {
		if got.Error != "" {
			result.AddError(fmt.Sprintf("%s: expected success, got %s", label, got.Error))
			return
		}
	}
	if want == nil {
		return
	}
	if want.Error != "" && got.Error != want.Error {
		actual := got.Error
		if actual == "" {
			actual = "success"
		}
		result.AddError(fmt.Sprintf("%s: expected error %s, got %s", label, want.Error, actual))
	}
	if want.Return != nil && !slices.Equal(want.Return, got.Return) {
		result.AddError(fmt.Sprintf("%s: expected return %v, got %v", label, want.Return, got.Return))
	}
}
