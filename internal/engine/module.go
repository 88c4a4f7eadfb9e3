package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/ir"
)

// Module is deployable code. Code returns the immutable code identity that
// the deployment address is derived from; Invoke runs one call.
type Module interface {
	Code() []byte
	Invoke(f *Frame) ([]byte, error)
}

// Constructor is implemented by modules that run setup logic once, inside
// the deployment transaction. The frame's input is the CBOR array of
// constructor arguments.
type Constructor interface {
	Construct(f *Frame) error
}

// Handler implements one function of a FunctionTable.
type Handler func(f *Frame) ([]byte, error)

// FunctionTable is a Module built from signature to handler pairs.
//
// Tables are assembled once at startup; Handle panics on malformed or
// duplicate signatures the same way http.ServeMux panics on conflicting
// patterns.
type FunctionTable struct {
	name       string
	version    string
	signatures []string
	selectors  []ir.Selector
	handlers   map[ir.Selector]Handler
}

// NewFunctionTable creates an empty table. Name and version are part of
// the code identity.
func NewFunctionTable(name, version string) *FunctionTable {
	return &FunctionTable{
		name:     name,
		version:  version,
		handlers: make(map[ir.Selector]Handler),
	}
}

// Handle registers h for signature and returns the table for chaining.
func (t *FunctionTable) Handle(signature string, h Handler) *FunctionTable {
	sig, err := abi.ParseSignature(signature)
	if err != nil {
		panic(fmt.Sprintf("engine: %s: %v", t.name, err))
	}
	sel := sig.Selector()
	if _, dup := t.handlers[sel]; dup {
		panic(fmt.Sprintf("engine: %s: duplicate selector %s for %s", t.name, sel, sig))
	}
	t.handlers[sel] = h
	t.signatures = append(t.signatures, sig.String())
	t.selectors = append(t.selectors, sel)
	return t
}

// Name returns the table's name.
func (t *FunctionTable) Name() string {
	return t.name
}

// Selectors returns every selector the table defines, in registration
// order.
func (t *FunctionTable) Selectors() []ir.Selector {
	out := make([]ir.Selector, len(t.selectors))
	copy(out, t.selectors)
	return out
}

// Signatures returns the normalized signatures in registration order.
func (t *FunctionTable) Signatures() []string {
	out := make([]string, len(t.signatures))
	copy(out, t.signatures)
	return out
}

// Defines reports whether the table has a handler for sel.
func (t *FunctionTable) Defines(sel ir.Selector) bool {
	_, ok := t.handlers[sel]
	return ok
}

// Code derives the code identity from name, version and signatures.
func (t *FunctionTable) Code() []byte {
	var b strings.Builder
	b.WriteString("module:")
	b.WriteString(t.name)
	b.WriteString("@")
	b.WriteString(t.version)
	for _, s := range t.signatures {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return []byte(b.String())
}

// Invoke dispatches on the frame's selector.
func (t *FunctionTable) Invoke(f *Frame) ([]byte, error) {
	sel := f.Selector()
	h, ok := t.handlers[sel]
	if !ok {
		return nil, &ExecutionError{
			Code:     ErrCodeUnknownMethod,
			Message:  fmt.Sprintf("%s has no function %s", t.name, sel),
			Address:  f.CodeAddress(),
			Selector: sel,
		}
	}
	return h(f)
}
