// Package storage adapts database/sql handles (including *bun.DB) to the
// pkg/storage.Provider contract used by the SQL local entry backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/storage"
)

var (
	// ErrNestedTransaction is returned when a transaction attempts to open another.
	ErrNestedTransaction = errors.New("storage: nested transactions are not supported")
	// ErrTransactionsUnsupported is returned when the wrapped executor cannot begin transactions.
	ErrTransactionsUnsupported = errors.New("storage: executor does not support transactions")
)

// SQLExecutor is the subset of *sql.DB and *bun.DB used by the adapter.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type txHandle interface {
	SQLExecutor
	Commit() error
	Rollback() error
}

type sqlBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// SQLAdapter implements storage.Provider over a SQL executor.
type SQLAdapter struct {
	db    SQLExecutor
	begin func(ctx context.Context) (txHandle, error)
}

var _ storage.Provider = (*SQLAdapter)(nil)

// NewSQLAdapter wraps db. Passing a *bun.DB keeps query hooks and lets bun
// rewrite ? placeholders for the active dialect.
func NewSQLAdapter(db SQLExecutor) *SQLAdapter {
	adapter := &SQLAdapter{db: db}
	switch conn := db.(type) {
	case *bun.DB:
		adapter.begin = func(ctx context.Context) (txHandle, error) {
			tx, err := conn.BeginTx(ctx, nil)
			if err != nil {
				return nil, err
			}
			return tx, nil
		}
	case sqlBeginner:
		adapter.begin = func(ctx context.Context) (txHandle, error) {
			tx, err := conn.BeginTx(ctx, nil)
			if err != nil {
				return nil, err
			}
			return tx, nil
		}
	}
	return adapter
}

func (a *SQLAdapter) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	return queryRows(a.db.QueryContext(ctx, query, args...))
}

func (a *SQLAdapter) Exec(ctx context.Context, query string, args ...any) (storage.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

// Transaction commits when fn returns nil and rolls back otherwise.
func (a *SQLAdapter) Transaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	if a.begin == nil {
		return ErrTransactionsUnsupported
	}
	tx, err := a.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("storage: rollback failed after %w: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func queryRows(rows *sql.Rows, err error) (storage.Rows, error) {
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return emptyRows{}, nil
	}
	return rows, nil
}

type emptyRows struct{}

func (emptyRows) Next() bool        { return false }
func (emptyRows) Scan(...any) error { return sql.ErrNoRows }
func (emptyRows) Err() error        { return nil }
func (emptyRows) Close() error      { return nil }

type sqlTx struct {
	tx txHandle
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	return queryRows(t.tx.QueryContext(ctx, query, args...))
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (storage.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *sqlTx) Transaction(context.Context, func(storage.Transaction) error) error {
	return ErrNestedTransaction
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }
