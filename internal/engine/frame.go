package engine

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/ir"
)

// Frame is the view a running module has of its call.
//
// Self is the storage context: the account whose slots Storage reads and
// writes and whose address Emit records. CodeAddress is the account whose
// code is running. They differ under DelegateCall, where Caller and Value
// are also inherited from the delegating frame.
type Frame struct {
	run      *execution
	caller   ir.Address
	self     ir.Address
	codeAddr ir.Address
	value    uint64
	input    []byte
	static   bool
	depth    int

	// constructor frames carry bare arguments with no selector.
	constructor bool
}

// Context returns the context of the message being executed.
func (f *Frame) Context() context.Context { return f.run.ctx }

// Caller returns the immediate caller.
func (f *Frame) Caller() ir.Address { return f.caller }

// Self returns the storage context address.
func (f *Frame) Self() ir.Address { return f.self }

// CodeAddress returns the address whose code is executing.
func (f *Frame) CodeAddress() ir.Address { return f.codeAddr }

// Origin returns the sender of the top-level message.
func (f *Frame) Origin() ir.Address { return f.run.origin }

// Value returns the value attached to the call.
func (f *Frame) Value() uint64 { return f.value }

// Input returns the raw call data.
func (f *Frame) Input() []byte { return f.input }

// IsStatic reports whether state changes are forbidden.
func (f *Frame) IsStatic() bool { return f.static }

// Depth returns the nesting depth (0 for the top-level frame).
func (f *Frame) Depth() int { return f.depth }

// TxID returns the transaction ID of the message being executed.
func (f *Frame) TxID() string { return f.run.txID }

// GasLeft returns the remaining gas of the message.
func (f *Frame) GasLeft() uint64 { return f.run.gas.remaining() }

// Selector returns the first four bytes of the input, zero padded.
// Constructor frames have no selector.
func (f *Frame) Selector() ir.Selector {
	if f.constructor {
		return ir.Selector{}
	}
	sel, _, _ := abi.SplitCall(f.input)
	return sel
}

// Args decodes the argument payload into out, one pointer per parameter.
func (f *Frame) Args(out ...any) error {
	payload := f.input
	if !f.constructor {
		var err error
		if _, payload, err = abi.SplitCall(f.input); err != nil {
			return &ExecutionError{Code: ErrCodeInvalidInput, Message: err.Error(), Address: f.codeAddr}
		}
	}
	if err := abi.DecodeValues(payload, out...); err != nil {
		return &ExecutionError{
			Code:     ErrCodeInvalidInput,
			Message:  err.Error(),
			Address:  f.codeAddr,
			Selector: f.Selector(),
		}
	}
	return nil
}

// Storage returns the namespace partition ns of the storage context.
func (f *Frame) Storage(ns ir.Hash) *Storage {
	return &Storage{f: f, ns: ns}
}

// CodeSize returns the length of the code deployed at addr (0 if none).
func (f *Frame) CodeSize(addr ir.Address) (int, error) {
	if err := f.run.gas.charge(GasLoad); err != nil {
		return 0, err
	}
	code, err := f.run.codeAt(addr)
	if err != nil {
		return 0, err
	}
	return len(code), nil
}

// Balance returns the balance of addr.
func (f *Frame) Balance(addr ir.Address) (uint64, error) {
	if err := f.run.gas.charge(GasLoad); err != nil {
		return 0, err
	}
	acct, _, err := f.run.tx.Account(addr)
	if err != nil {
		return 0, fatal(err)
	}
	return acct.Balance, nil
}

// Emit records an event attributed to the storage context. The payload is
// encoded as RFC 8785 canonical JSON. Events of a call that later fails
// are discarded.
func (f *Frame) Emit(event string, data map[string]any) error {
	if f.static {
		return newWriteProtection(f.self, "emit "+event)
	}
	payload, err := ir.MarshalCanonical(data)
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	if err := f.run.gas.charge(logCost(payload)); err != nil {
		return err
	}
	f.run.logs = append(f.run.logs, ir.Log{
		TxID:    f.run.txID,
		Address: f.self,
		Event:   event,
		Data:    payload,
	})
	return nil
}

// Call executes to's code in to's own storage context, moving value from
// the current storage context to to.
func (f *Frame) Call(to ir.Address, value uint64, data []byte) ([]byte, error) {
	if f.static && value > 0 {
		return nil, newWriteProtection(f.self, "value transfer")
	}
	return f.run.engine.call(f.run, callParams{
		caller:   f.self,
		self:     to,
		codeAddr: to,
		value:    value,
		transfer: true,
		input:    data,
		static:   f.static,
		depth:    f.depth + 1,
	})
}

// DelegateCall executes to's code against the current storage context,
// keeping the current caller and value.
func (f *Frame) DelegateCall(to ir.Address, data []byte) ([]byte, error) {
	return f.run.engine.call(f.run, callParams{
		caller:   f.caller,
		self:     f.self,
		codeAddr: to,
		value:    f.value,
		input:    data,
		static:   f.static,
		depth:    f.depth + 1,
	})
}

// StaticCall executes to's code in to's storage context with every state
// change forbidden.
func (f *Frame) StaticCall(to ir.Address, data []byte) ([]byte, error) {
	return f.run.engine.call(f.run, callParams{
		caller:   f.self,
		self:     to,
		codeAddr: to,
		input:    data,
		static:   true,
		depth:    f.depth + 1,
	})
}

// Storage is one namespace partition of an account's persistent state.
// Absent keys read as empty; storing an empty value deletes the key.
type Storage struct {
	f  *Frame
	ns ir.Hash
}

// Load reads a raw value (nil when absent).
func (s *Storage) Load(key []byte) ([]byte, error) {
	if err := s.f.run.gas.charge(GasLoad); err != nil {
		return nil, err
	}
	v, err := s.f.run.tx.LoadSlot(s.f.self, s.ns, key)
	if err != nil {
		return nil, fatal(err)
	}
	return v, nil
}

// Store writes a raw value. An empty value clears the key.
func (s *Storage) Store(key, value []byte) error {
	if len(value) == 0 {
		return s.Clear(key)
	}
	if s.f.static {
		return newWriteProtection(s.f.self, "storage write")
	}
	if err := s.f.run.gas.charge(GasStore); err != nil {
		return err
	}
	if err := s.f.run.tx.StoreSlot(s.f.self, s.ns, key, value); err != nil {
		return fatal(err)
	}
	return nil
}

// Clear deletes a key.
func (s *Storage) Clear(key []byte) error {
	if s.f.static {
		return newWriteProtection(s.f.self, "storage clear")
	}
	if err := s.f.run.gas.charge(GasClear); err != nil {
		return err
	}
	if err := s.f.run.tx.ClearSlot(s.f.self, s.ns, key); err != nil {
		return fatal(err)
	}
	return nil
}

// LoadUint64 reads a big-endian uint64 (0 when absent).
func (s *Storage) LoadUint64(key []byte) (uint64, error) {
	v, err := s.Load(key)
	if err != nil || v == nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("slot %q: want 8 bytes, got %d", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// StoreUint64 writes a big-endian uint64. Zero clears the key.
func (s *Storage) StoreUint64(key []byte, v uint64) error {
	if v == 0 {
		return s.Clear(key)
	}
	return s.Store(key, binary.BigEndian.AppendUint64(nil, v))
}

// LoadAddress reads an address (zero when absent).
func (s *Storage) LoadAddress(key []byte) (ir.Address, error) {
	v, err := s.Load(key)
	if err != nil || v == nil {
		return ir.Address{}, err
	}
	if len(v) != ir.AddressLength {
		return ir.Address{}, fmt.Errorf("slot %q: want %d bytes, got %d", key, ir.AddressLength, len(v))
	}
	return ir.BytesToAddress(v), nil
}

// StoreAddress writes an address. The zero address clears the key.
func (s *Storage) StoreAddress(key []byte, a ir.Address) error {
	if a.IsZero() {
		return s.Clear(key)
	}
	return s.Store(key, a[:])
}
