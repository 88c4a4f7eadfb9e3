package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
)

// Account is a stored account record.
type Account struct {
	Address  ir.Address
	CodeHash ir.Hash
	HasCode  bool
	Balance  uint64
}

// PutCode stores module code under its hash. Idempotent.
func (t *Tx) PutCode(hash ir.Hash, code []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO code (hash, code) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash[:], code)
	if err != nil {
		return fmt.Errorf("put code: %w", err)
	}
	return nil
}

// Code reads module code by hash.
func (t *Tx) Code(hash ir.Hash) ([]byte, bool, error) {
	return readCode(t.ctx, t.tx, hash)
}

// SetCode attaches code to an account, creating the account if needed.
// The code must already be stored with PutCode.
func (t *Tx) SetCode(addr ir.Address, hash ir.Hash) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (address, code_hash, balance) VALUES (?, ?, 0)
		ON CONFLICT(address) DO UPDATE SET code_hash = excluded.code_hash
	`, addr[:], hash[:])
	if err != nil {
		return fmt.Errorf("set code %s: %w", addr, err)
	}
	return nil
}

// Account reads an account. Missing accounts return ok=false.
func (t *Tx) Account(addr ir.Address) (Account, bool, error) {
	return readAccount(t.ctx, t.tx, addr)
}

// SetBalance writes an account balance, creating the account if needed.
func (t *Tx) SetBalance(addr ir.Address, balance uint64) error {
	// Stored as the int64 bit pattern; the driver rejects uint64 values
	// with the high bit set.
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (address, code_hash, balance) VALUES (?, NULL, ?)
		ON CONFLICT(address) DO UPDATE SET balance = excluded.balance
	`, addr[:], int64(balance))
	if err != nil {
		return fmt.Errorf("set balance %s: %w", addr, err)
	}
	return nil
}

func readCode(ctx context.Context, q querier, hash ir.Hash) ([]byte, bool, error) {
	var code []byte
	err := q.QueryRowContext(ctx, `SELECT code FROM code WHERE hash = ?`, hash[:]).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read code: %w", err)
	}
	return code, true, nil
}

func readAccount(ctx context.Context, q querier, addr ir.Address) (Account, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT address, code_hash, balance FROM accounts WHERE address = ?
	`, addr[:])
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{Address: addr}, false, nil
	}
	if err != nil {
		return Account{}, false, fmt.Errorf("read account %s: %w", addr, err)
	}
	return acct, true, nil
}

func readAccounts(ctx context.Context, q querier) ([]Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT address, code_hash, balance FROM accounts
		ORDER BY address COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (Account, error) {
	var (
		addr     []byte
		codeHash []byte
		balance  int64
	)
	if err := row.Scan(&addr, &codeHash, &balance); err != nil {
		return Account{}, err
	}
	acct := Account{
		Address: ir.BytesToAddress(addr),
		Balance: uint64(balance),
	}
	if codeHash != nil {
		acct.HasCode = true
		copy(acct.CodeHash[:], codeHash)
	}
	return acct, nil
}
