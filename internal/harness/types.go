package harness

// TraceEvent records one step of a scenario run. Addresses in every field
// are rendered symbolically (account labels, catalog names, "diamond"), so
// traces are stable across code changes that move deployment addresses.
type TraceEvent struct {
	Step     int        `json:"step"`
	Kind     string     `json:"kind"` // "bootstrap", "cut", "call", "query" or "transfer_ownership"
	From     string     `json:"from"`
	Function string     `json:"function,omitempty"`
	Args     []string   `json:"args,omitempty"`
	TxID     string     `json:"tx_id"`
	GasUsed  uint64     `json:"gas_used"`
	Return   []string   `json:"return,omitempty"`
	Error    string     `json:"error,omitempty"`
	Logs     []TraceLog `json:"logs,omitempty"`
}

// TraceLog is one log emitted by a step.
type TraceLog struct {
	Seq   int64  `json:"seq"`
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every step matched its expect
	// clause and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, bootstrap first.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
