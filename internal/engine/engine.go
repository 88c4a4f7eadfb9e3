package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/store"
)

// TxIDGenerator generates transaction IDs for messages.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TxIDGenerator interface {
	Generate() string
}

// Message is a top-level call submitted by an external account.
type Message struct {
	From     ir.Address
	To       ir.Address
	Value    uint64
	Data     []byte
	GasLimit uint64 // 0 uses the engine default
}

// Deployment describes a module to deploy.
type Deployment struct {
	From   ir.Address
	Module Module
	Salt   ir.Hash
	Args   []any // constructor arguments
}

// Receipt is the outcome of a message.
//
// Err holds the execution failure of a reverted message: every state
// change was rolled back and Logs is empty. Infrastructure failures are
// returned by Execute itself, not recorded here.
type Receipt struct {
	TxID    string
	Return  []byte
	GasUsed uint64
	Logs    []ir.Log
	Address ir.Address // deployed address, for deployments
	Err     error
}

// Failed reports whether the message reverted.
func (r *Receipt) Failed() bool {
	return r.Err != nil
}

// Engine is the single-writer execution environment.
//
// Every top-level message runs to completion inside one store transaction
// before the next starts. Nested calls run under savepoints.
//
// Thread-safety model:
//   - Submit(), SubmitQuery(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Execute(), Query(), Deploy(), Fund(), Inspect(): call from one
//     goroutine at a time (the Run loop when serving)
type Engine struct {
	store    *store.Store
	clock    *Clock
	txids    TxIDGenerator
	queue    *eventQueue
	gasLimit uint64
	logger   *slog.Logger
	metrics  *Metrics

	mu    sync.RWMutex
	impls map[ir.Hash]Module
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithGasLimit sets the default per-message gas limit.
//
// Default: 30,000,000 (DefaultGasLimit)
func WithGasLimit(limit uint64) EngineOption {
	return func(e *Engine) {
		e.gasLimit = limit
	}
}

// WithTxIDGenerator replaces the UUIDv7 transaction ID generator.
// Tests use FixedGenerator for deterministic traces.
func WithTxIDGenerator(g TxIDGenerator) EngineOption {
	return func(e *Engine) {
		e.txids = g
	}
}

// WithClock sets the logical clock used to stamp logs. By default the
// clock resumes from the highest sequence number in the store.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithModules registers module implementations at construction time.
func WithModules(mods ...Module) EngineOption {
	return func(e *Engine) {
		for _, m := range mods {
			e.impls[ir.CodeHash(m.Code())] = m
		}
	}
}

// New creates an Engine over s.
//
// Unless WithClock is given, the clock resumes from the store's highest log
// sequence number so reopened databases keep a strictly increasing seq.
func New(ctx context.Context, s *store.Store, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:    s,
		txids:    UUIDv7Generator{},
		queue:    newEventQueue(),
		gasLimit: DefaultGasLimit,
		logger:   slog.Default(),
		impls:    make(map[ir.Hash]Module),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.clock == nil {
		seq, err := s.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		e.clock = NewClockAt(seq)
	}

	return e, nil
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Register binds a Go implementation to the hash of its code.
// Re-registering the same code is a no-op.
func (e *Engine) Register(m Module) ir.Hash {
	h := ir.CodeHash(m.Code())
	e.mu.Lock()
	defer e.mu.Unlock()
	e.impls[h] = m
	return h
}

// AddressOf returns the address m deploys to with salt.
func AddressOf(m Module, salt ir.Hash) ir.Address {
	return ir.CreateAddress(salt, ir.CodeHash(m.Code()))
}

func (e *Engine) implementation(h ir.Hash) (Module, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.impls[h]
	return m, ok
}

// execution is the state of one top-level message.
type execution struct {
	ctx    context.Context
	engine *Engine
	tx     *store.Tx
	gas    *gasMeter
	txID   string
	origin ir.Address
	logs   []ir.Log
}

func (run *execution) codeAt(addr ir.Address) ([]byte, error) {
	acct, ok, err := run.tx.Account(addr)
	if err != nil {
		return nil, fatal(err)
	}
	if !ok || !acct.HasCode {
		return nil, nil
	}
	code, _, err := run.tx.Code(acct.CodeHash)
	if err != nil {
		return nil, fatal(err)
	}
	return code, nil
}

// begin opens the transaction of a top-level message.
func (e *Engine) begin(ctx context.Context, origin ir.Address, gasLimit uint64) (*execution, error) {
	if gasLimit == 0 {
		gasLimit = e.gasLimit
	}
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &execution{
		ctx:    ctx,
		engine: e,
		tx:     tx,
		gas:    newGasMeter(gasLimit),
		txID:   e.txids.Generate(),
		origin: origin,
	}, nil
}

// commit stamps pending logs with sequence numbers and commits.
func (e *Engine) commit(run *execution) ([]ir.Log, error) {
	logs := run.logs
	for i := range logs {
		logs[i].Seq = e.clock.Next()
		if err := run.tx.AppendLog(logs[i]); err != nil {
			return nil, err
		}
	}
	if err := run.tx.Commit(); err != nil {
		return nil, err
	}
	for _, l := range logs {
		e.metrics.recordLog(l.Event)
	}
	return logs, nil
}

// Execute runs a message to completion.
//
// Execution failures (reverts, typed module errors, OUT_OF_GAS) roll back
// every state change and are reported in Receipt.Err. The returned error
// is reserved for infrastructure failures such as a broken store.
func (e *Engine) Execute(ctx context.Context, msg Message) (*Receipt, error) {
	start := time.Now()
	run, err := e.begin(ctx, msg.From, msg.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer run.tx.Rollback()

	receipt := &Receipt{TxID: run.txID}
	ret, err := e.runMessage(run, msg, false)
	receipt.GasUsed = run.gas.used

	if err != nil {
		var fe *fatalError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("execute %s: %w", run.txID, fe.err)
		}
		receipt.Err = err
		e.metrics.recordMessage("call", "reverted", receipt.GasUsed, time.Since(start))
		e.logger.Debug("message reverted",
			"tx_id", run.txID,
			"from", msg.From,
			"to", msg.To,
			"selector", selectorOf(msg.Data),
			"gas_used", receipt.GasUsed,
			"error", err,
		)
		return receipt, nil
	}

	logs, err := e.commit(run)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", run.txID, err)
	}
	receipt.Return = ret
	receipt.Logs = logs
	e.metrics.recordMessage("call", "success", receipt.GasUsed, time.Since(start))
	e.logger.Debug("message committed",
		"tx_id", run.txID,
		"from", msg.From,
		"to", msg.To,
		"selector", selectorOf(msg.Data),
		"gas_used", receipt.GasUsed,
		"logs", len(logs),
	)
	return receipt, nil
}

// Query runs a message as a static call and always rolls back.
// Any attempted state change fails WRITE_PROTECTION.
func (e *Engine) Query(ctx context.Context, msg Message) (*Receipt, error) {
	start := time.Now()
	run, err := e.begin(ctx, msg.From, msg.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer run.tx.Rollback()

	receipt := &Receipt{TxID: run.txID}
	ret, err := e.runMessage(run, msg, true)
	receipt.GasUsed = run.gas.used
	if err != nil {
		var fe *fatalError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("query: %w", fe.err)
		}
		receipt.Err = err
		e.metrics.recordMessage("query", "reverted", receipt.GasUsed, time.Since(start))
		return receipt, nil
	}
	receipt.Return = ret
	e.metrics.recordMessage("query", "success", receipt.GasUsed, time.Since(start))
	return receipt, nil
}

func (e *Engine) runMessage(run *execution, msg Message, static bool) ([]byte, error) {
	if err := run.gas.charge(GasMessage); err != nil {
		return nil, err
	}
	if static && msg.Value > 0 {
		return nil, newWriteProtection(msg.To, "value transfer")
	}
	return e.call(run, callParams{
		caller:   msg.From,
		self:     msg.To,
		codeAddr: msg.To,
		value:    msg.Value,
		transfer: true,
		input:    msg.Data,
		static:   static,
		depth:    0,
	})
}

// Inspect opens a read-only frame on addr's storage and runs fn in it.
// Used by tooling to read module state without sending a message.
func (e *Engine) Inspect(ctx context.Context, addr ir.Address, fn func(f *Frame) error) error {
	run, err := e.begin(ctx, ir.ZeroAddress, 0)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	defer run.tx.Rollback()

	f := &Frame{
		run:      run,
		self:     addr,
		codeAddr: addr,
		static:   true,
	}
	if err := fn(f); err != nil {
		var fe *fatalError
		if errors.As(err, &fe) {
			return fmt.Errorf("inspect %s: %w", addr, fe.err)
		}
		return err
	}
	return nil
}

// Deploy stores a module's code at its content address and runs its
// constructor. Deploying identical code with the same salt again returns
// the existing address without running the constructor.
func (e *Engine) Deploy(ctx context.Context, d Deployment) (*Receipt, error) {
	start := time.Now()
	code := d.Module.Code()
	codeHash := e.Register(d.Module)
	addr := ir.CreateAddress(d.Salt, codeHash)

	run, err := e.begin(ctx, d.From, 0)
	if err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	defer run.tx.Rollback()

	receipt := &Receipt{TxID: run.txID, Address: addr}
	err = e.deploy(run, d, addr, codeHash, code)
	receipt.GasUsed = run.gas.used
	if err != nil {
		var fe *fatalError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("deploy %s: %w", addr, fe.err)
		}
		receipt.Err = err
		e.metrics.recordMessage("deploy", "reverted", receipt.GasUsed, time.Since(start))
		return receipt, nil
	}

	logs, err := e.commit(run)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", addr, err)
	}
	receipt.Logs = logs
	e.metrics.recordMessage("deploy", "success", receipt.GasUsed, time.Since(start))
	e.logger.Info("module deployed",
		"address", addr,
		"code_hash", codeHash,
		"from", d.From,
		"tx_id", run.txID,
	)
	return receipt, nil
}

func (e *Engine) deploy(run *execution, d Deployment, addr ir.Address, codeHash ir.Hash, code []byte) error {
	if err := run.gas.charge(GasMessage + deployCost(code)); err != nil {
		return err
	}

	acct, _, err := run.tx.Account(addr)
	if err != nil {
		return fatal(err)
	}
	if acct.HasCode {
		if acct.CodeHash == codeHash {
			return nil
		}
		return &ExecutionError{
			Code:    ErrCodeAddressCollision,
			Message: "address already holds different code",
			Address: addr,
		}
	}

	if err := run.tx.PutCode(codeHash, code); err != nil {
		return fatal(err)
	}
	if err := run.tx.SetCode(addr, codeHash); err != nil {
		return fatal(err)
	}

	ctor, ok := d.Module.(Constructor)
	if !ok {
		return nil
	}
	input, err := abi.EncodeValues(d.Args...)
	if err != nil {
		return &ExecutionError{Code: ErrCodeInvalidInput, Message: err.Error(), Address: addr}
	}
	return ctor.Construct(&Frame{
		run:         run,
		caller:      d.From,
		self:        addr,
		codeAddr:    addr,
		input:       input,
		constructor: true,
	})
}

// Fund credits amount to addr outside of any message.
func (e *Engine) Fund(ctx context.Context, addr ir.Address, amount uint64) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("fund: %w", err)
	}
	defer tx.Rollback()

	acct, _, err := tx.Account(addr)
	if err != nil {
		return fmt.Errorf("fund: %w", err)
	}
	if acct.Balance+amount < acct.Balance {
		return fmt.Errorf("fund %s: balance overflow", addr)
	}
	if err := tx.SetBalance(addr, acct.Balance+amount); err != nil {
		return fmt.Errorf("fund: %w", err)
	}
	return tx.Commit()
}

// BalanceOf returns the committed balance of addr.
func (e *Engine) BalanceOf(ctx context.Context, addr ir.Address) (uint64, error) {
	acct, _, err := e.store.Account(ctx, addr)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// CodeAt returns the committed code at addr (nil if none).
func (e *Engine) CodeAt(ctx context.Context, addr ir.Address) ([]byte, error) {
	acct, ok, err := e.store.Account(ctx, addr)
	if err != nil || !ok || !acct.HasCode {
		return nil, err
	}
	code, _, err := e.store.Code(ctx, acct.CodeHash)
	return code, err
}

// Logs reads committed logs.
func (e *Engine) Logs(ctx context.Context, filter ir.LogFilter) ([]ir.Log, error) {
	return e.store.Logs(ctx, filter)
}

// callParams describes one call frame to create.
type callParams struct {
	caller   ir.Address
	self     ir.Address
	codeAddr ir.Address
	value    uint64
	transfer bool // move value from caller to self
	input    []byte
	static   bool
	depth    int
}

// call runs one frame under a savepoint. A failing frame rolls back to the
// savepoint and drops the logs it emitted; the error is returned to the
// calling frame unchanged.
func (e *Engine) call(run *execution, p callParams) (ret []byte, err error) {
	if p.depth > MaxCallDepth {
		return nil, &ExecutionError{
			Code:    ErrCodeCallDepth,
			Message: fmt.Sprintf("call depth exceeds %d", MaxCallDepth),
			Address: p.codeAddr,
		}
	}
	if err := run.ctx.Err(); err != nil {
		return nil, fatal(err)
	}
	if p.depth > 0 {
		if err := run.gas.charge(GasCall); err != nil {
			return nil, err
		}
	}

	sp, err := run.tx.Savepoint()
	if err != nil {
		return nil, fatal(err)
	}
	logMark := len(run.logs)
	defer func() {
		if err != nil {
			run.logs = run.logs[:logMark]
			if rbErr := run.tx.RollbackTo(sp); rbErr != nil {
				err = fatal(rbErr)
			}
			return
		}
		if relErr := run.tx.Release(sp); relErr != nil {
			err = fatal(relErr)
		}
	}()

	if p.transfer && p.value > 0 {
		if err := run.transfer(p.caller, p.self, p.value); err != nil {
			return nil, err
		}
	}

	acct, _, err := run.tx.Account(p.codeAddr)
	if err != nil {
		return nil, fatal(err)
	}
	if !acct.HasCode {
		return nil, nil
	}
	impl, ok := e.implementation(acct.CodeHash)
	if !ok {
		return nil, &ExecutionError{
			Code:    ErrCodeNoImplementation,
			Message: fmt.Sprintf("no module registered for code %s", acct.CodeHash),
			Address: p.codeAddr,
		}
	}

	f := &Frame{
		run:      run,
		caller:   p.caller,
		self:     p.self,
		codeAddr: p.codeAddr,
		value:    p.value,
		input:    p.input,
		static:   p.static,
		depth:    p.depth,
	}
	return invoke(impl, f)
}

// invoke runs module code, converting a panic into a revert so one broken
// module cannot take down the engine.
func invoke(m Module, f *Frame) (ret []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret = nil
			err = &ExecutionError{
				Code:     ErrCodeRevert,
				Message:  fmt.Sprintf("module panicked: %v", r),
				Address:  f.codeAddr,
				Selector: f.Selector(),
			}
		}
	}()
	return m.Invoke(f)
}

func (run *execution) transfer(from, to ir.Address, amount uint64) error {
	src, _, err := run.tx.Account(from)
	if err != nil {
		return fatal(err)
	}
	if src.Balance < amount {
		return &ExecutionError{
			Code:    ErrCodeInsufficientBalance,
			Message: fmt.Sprintf("balance %d below transfer of %d", src.Balance, amount),
			Address: from,
		}
	}
	if err := run.tx.SetBalance(from, src.Balance-amount); err != nil {
		return fatal(err)
	}
	dst, _, err := run.tx.Account(to)
	if err != nil {
		return fatal(err)
	}
	if err := run.tx.SetBalance(to, dst.Balance+amount); err != nil {
		return fatal(err)
	}
	return nil
}

func selectorOf(data []byte) string {
	if len(data) == 0 {
		return "receive"
	}
	sel, _, _ := abi.SplitCall(data)
	return sel.Hex()
}
