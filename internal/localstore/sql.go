package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/storage"
)

// SQLBackend stores entries in the local_entries table, one row per
// (area, key).
type SQLBackend struct {
	provider storage.Provider
	area     string
	now      func() time.Time
}

// NewSQLBackend returns a backend scoped to area. The table is created by the
// embedded migrations.
func NewSQLBackend(provider storage.Provider, area string) *SQLBackend {
	if area == "" {
		area = "default"
	}
	return &SQLBackend{provider: provider, area: area, now: time.Now}
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rows, err := b.provider.Query(ctx, "SELECT value FROM local_entries WHERE area = ? AND key = ?", b.area, key)
	if err != nil {
		return nil, false, fmt.Errorf("localstore: sql get %q: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("localstore: sql get %q: %w", key, err)
		}
		return nil, false, nil
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("localstore: sql scan %q: %w", key, err)
	}
	return []byte(value), true, nil
}

func (b *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.provider.Exec(ctx,
		"INSERT INTO local_entries (area, key, value, updated_at) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT (area, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		b.area, key, string(value), b.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("localstore: sql set %q: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.provider.Exec(ctx, "DELETE FROM local_entries WHERE area = ? AND key = ?", b.area, key); err != nil {
		return fmt.Errorf("localstore: sql delete %q: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.provider.Query(ctx, "SELECT key FROM local_entries WHERE area = ? ORDER BY key", b.area)
	if err != nil {
		return nil, fmt.Errorf("localstore: sql keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("localstore: sql keys: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: sql keys: %w", err)
	}
	return keys, nil
}
