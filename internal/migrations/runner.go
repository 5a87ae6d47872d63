// Package migrations applies the embedded SQL schema with bun/migrate.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// Root is the directory inside the migrations filesystem holding one
// subdirectory per dialect.
const Root = "data/sql/migrations"

var (
	ErrDatabaseRequired   = errors.New("migrations: database is required")
	ErrFilesystemRequired = errors.New("migrations: filesystem is required")
	ErrDialectUnsupported = errors.New("migrations: unsupported dialect")
)

// DialectDir maps a bun dialect to its migration subdirectory.
func DialectDir(name dialect.Name) (string, error) {
	switch name {
	case dialect.PG:
		return "postgres", nil
	case dialect.SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrDialectUnsupported, name)
	}
}

// Runner applies and rolls back migrations for one database.
type Runner struct {
	db     *bun.DB
	fsys   fs.FS
	logger interfaces.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner binds fsys (rooted above Root) to db.
func NewRunner(db *bun.DB, fsys fs.FS, opts ...Option) *Runner {
	r := &Runner{db: db, fsys: fsys, logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Up applies pending migrations. The returned group is zero when the schema
// is already current.
func (r *Runner) Up(ctx context.Context) (*migrate.MigrationGroup, error) {
	migrator, err := r.migrator(ctx)
	if err != nil {
		return nil, err
	}
	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("migrations: lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			r.logger.Warn("migrations.unlock.failed", "error", err)
		}
	}()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrations: migrate: %w", err)
	}
	if group.IsZero() {
		r.logger.Debug("migrations.current")
	} else {
		r.logger.Info("migrations.applied", "group", group.String())
	}
	return group, nil
}

// Down rolls back the most recent migration group.
func (r *Runner) Down(ctx context.Context) (*migrate.MigrationGroup, error) {
	migrator, err := r.migrator(ctx)
	if err != nil {
		return nil, err
	}
	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("migrations: lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			r.logger.Warn("migrations.unlock.failed", "error", err)
		}
	}()

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrations: rollback: %w", err)
	}
	if !group.IsZero() {
		r.logger.Info("migrations.rolled_back", "group", group.String())
	}
	return group, nil
}

func (r *Runner) migrator(ctx context.Context) (*migrate.Migrator, error) {
	if r == nil || r.db == nil {
		return nil, ErrDatabaseRequired
	}
	if r.fsys == nil {
		return nil, ErrFilesystemRequired
	}
	dir, err := DialectDir(r.db.Dialect().Name())
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(r.fsys, path.Join(Root, dir))
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", dir, err)
	}

	set := migrate.NewMigrations()
	if err := set.Discover(sub); err != nil {
		return nil, fmt.Errorf("migrations: discover %s: %w", dir, err)
	}
	migrator := migrate.NewMigrator(r.db, set)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	return migrator, nil
}
