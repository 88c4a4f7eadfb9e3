package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = errors.New("store: transaction already committed or rolled back")

// Tx is a write transaction with nested savepoints.
//
// A Tx is not safe for concurrent use. The engine's single-writer loop is
// the only owner of an open Tx.
type Tx struct {
	ctx  context.Context
	tx   *sql.Tx
	next int
	done bool
}

// Begin opens a transaction. The context governs every statement run
// through the returned Tx.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{ctx: ctx, tx: tx}, nil
}

// Savepoint marks a nested rollback point and returns its name.
func (t *Tx) Savepoint() (string, error) {
	if t.done {
		return "", ErrTxDone
	}
	t.next++
	name := fmt.Sprintf("sp_%d", t.next)
	if _, err := t.tx.ExecContext(t.ctx, "SAVEPOINT "+name); err != nil {
		return "", fmt.Errorf("savepoint %s: %w", name, err)
	}
	return name, nil
}

// RollbackTo undoes every write since the named savepoint and discards it.
func (t *Tx) RollbackTo(name string) error {
	if t.done {
		return ErrTxDone
	}
	if _, err := t.tx.ExecContext(t.ctx, "ROLLBACK TO "+name); err != nil {
		return fmt.Errorf("rollback to %s: %w", name, err)
	}
	if _, err := t.tx.ExecContext(t.ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// Release keeps the writes made since the named savepoint.
func (t *Tx) Release(name string) error {
	if t.done {
		return ErrTxDone
	}
	if _, err := t.tx.ExecContext(t.ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// Commit makes every write of the transaction durable.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit (no-op),
// so it can be deferred.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
