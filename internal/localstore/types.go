package localstore

import (
	"context"
	"encoding/json"
	"errors"
)

// EventLocalStorageUpdated names the notification dispatched after every write.
const EventLocalStorageUpdated = "localStorageUpdated"

var (
	ErrEmptyKey      = errors.New("localstore: key is required")
	ErrQuotaExceeded = errors.New("localstore: quota exceeded")
	ErrSerialization = errors.New("localstore: value is not serializable")
	ErrClosed        = errors.New("localstore: store is closed")
)

// Origin records which producer delivered a change. Consumers never need to
// branch on it.
type Origin string

const (
	// OriginSynthetic marks the same-context dispatch that follows a write.
	OriginSynthetic Origin = "synthetic"
	// OriginNative marks changes made by another context sharing the area.
	OriginNative Origin = "native"
)

// Change carries {key, newValue}. A nil NewValue means the key was removed.
type Change struct {
	Key      string          `json:"key"`
	NewValue json.RawMessage `json:"newValue"`
	Origin   Origin          `json:"-"`
}

// Type returns the event name for the change.
func (Change) Type() string { return EventLocalStorageUpdated }

// Removed reports whether the change deleted the key.
func (c Change) Removed() bool { return c.NewValue == nil }

// Backend persists raw JSON documents for one area.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Notifier relays changes between processes sharing a backend.
type Notifier interface {
	Notify(ctx context.Context, change Change) error
	Listen(ctx context.Context, fn func(Change)) (stop func(), err error)
}
