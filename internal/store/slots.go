package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
)

// Slot is one stored key/value pair of an account namespace.
type Slot struct {
	Key   []byte
	Value []byte
}

// LoadSlot reads a slot. Absent slots return nil.
func (t *Tx) LoadSlot(addr ir.Address, ns ir.Hash, key []byte) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT value FROM slots WHERE address = ? AND namespace = ? AND key = ?
	`, addr[:], ns[:], key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	return value, nil
}

// StoreSlot writes a slot. An empty value deletes the slot so storage
// never holds dead entries.
func (t *Tx) StoreSlot(addr ir.Address, ns ir.Hash, key, value []byte) error {
	if len(value) == 0 {
		return t.ClearSlot(addr, ns, key)
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO slots (address, namespace, key, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(address, namespace, key) DO UPDATE SET value = excluded.value
	`, addr[:], ns[:], key, value)
	if err != nil {
		return fmt.Errorf("store slot: %w", err)
	}
	return nil
}

// ClearSlot deletes a slot. Clearing an absent slot is a no-op.
func (t *Tx) ClearSlot(addr ir.Address, ns ir.Hash, key []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM slots WHERE address = ? AND namespace = ? AND key = ?
	`, addr[:], ns[:], key)
	if err != nil {
		return fmt.Errorf("clear slot: %w", err)
	}
	return nil
}

// Slots lists every slot of an account namespace ordered by key bytes.
// Two namespaces with equal listings are byte-identical.
func (t *Tx) Slots(addr ir.Address, ns ir.Hash) ([]Slot, error) {
	return readSlots(t.ctx, t.tx, addr, ns)
}

// Slots lists an account namespace outside of any transaction.
func (s *Store) Slots(ctx context.Context, addr ir.Address, ns ir.Hash) ([]Slot, error) {
	return readSlots(ctx, s.db, addr, ns)
}

func readSlots(ctx context.Context, q querier, addr ir.Address, ns ir.Hash) ([]Slot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT key, value FROM slots
		WHERE address = ? AND namespace = ?
		ORDER BY key COLLATE BINARY ASC
	`, addr[:], ns[:])
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	slots := []Slot{}
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}
