package storage

import "context"

// Provider encapsulates the SQL operations the local entry backend needs. The
// bun adapter in internal/adapters/storage satisfies it for sqlite and postgres.
type Provider interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	Transaction(ctx context.Context, fn func(tx Transaction) error) error
}

// Config captures the connection settings for a SQL provider.
type Config struct {
	Name     string
	Driver   string
	DSN      string
	ReadOnly bool
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

type Transaction interface {
	Provider
	Commit() error
	Rollback() error
}
