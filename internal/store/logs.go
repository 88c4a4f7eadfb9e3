package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/diamond/internal/ir"
)

// AppendLog inserts a committed log record. Seq must be unique.
func (t *Tx) AppendLog(l ir.Log) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO logs (seq, tx_id, address, event, data) VALUES (?, ?, ?, ?, ?)
	`, l.Seq, l.TxID, l.Address[:], l.Event, string(l.Data))
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Logs reads logs matching filter inside the transaction.
func (t *Tx) Logs(filter ir.LogFilter) ([]ir.Log, error) {
	return readLogs(t.ctx, t.tx, filter)
}

// SetMeta writes a metadata value.
func (t *Tx) SetMeta(key, value string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

func readLogs(ctx context.Context, q querier, filter ir.LogFilter) ([]ir.Log, error) {
	var (
		where []string
		args  []any
	)
	if !filter.Address.IsZero() {
		where = append(where, "address = ?")
		args = append(args, filter.Address[:])
	}
	if filter.Event != "" {
		where = append(where, "event = ?")
		args = append(args, filter.Event)
	}
	where = append(where, "seq > ?")
	args = append(args, filter.AfterSeq)

	query := `SELECT seq, tx_id, address, event, data FROM logs WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY seq ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	logs := []ir.Log{}
	for rows.Next() {
		var (
			l    ir.Log
			addr []byte
			data string
		)
		if err := rows.Scan(&l.Seq, &l.TxID, &addr, &l.Event, &data); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		l.Address = ir.BytesToAddress(addr)
		l.Data = []byte(data)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return logs, nil
}

func readMeta(ctx context.Context, q querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %q: %w", key, err)
	}
	return value, true, nil
}
