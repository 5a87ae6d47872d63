package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/events"
)

// Store is one context's handle on an Area. Native and synthetic changes reach
// subscribers through the same Subscribe call.
type Store struct {
	area   *Area
	id     uint64
	name   string
	bus    *events.Bus[Change]
	closed atomic.Bool
}

// Name returns the context name given to Open.
func (s *Store) Name() string { return s.name }

// Read returns the JSON stored under key. Missing keys, backend failures and
// malformed documents all report absent.
func (s *Store) Read(key string) (json.RawMessage, bool) {
	if strings.TrimSpace(key) == "" {
		return nil, false
	}
	ctx, cancel := s.area.backendContext()
	defer cancel()

	raw, ok, err := s.area.backend.Get(ctx, key)
	if err != nil {
		s.area.logger.Warn("localstore.read.failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !json.Valid(raw) {
		s.area.logger.Debug("localstore.read.malformed", "key", key)
		return nil, false
	}
	return json.RawMessage(raw), true
}

// Write serializes value and persists it, then dispatches the change. A
// failed write leaves the previous value in place and dispatches nothing.
func (s *Store) Write(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if s.closed.Load() {
		return ErrClosed
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	err = s.area.commit(s, func(ctx context.Context) (Change, error) {
		if err := s.area.backend.Set(ctx, key, payload); err != nil {
			return Change{}, err
		}
		return Change{Key: key, NewValue: json.RawMessage(payload)}, nil
	})
	if err != nil {
		s.area.logger.Warn("localstore.write.failed", "key", key, "store", s.name, "error", err)
		return err
	}
	return nil
}

// Update replaces the value under key with the result of fn, which receives
// the current document (ok is false when absent or malformed). No other write
// to the area runs between the read and the write. fn must not use the area.
// When fn fails nothing is written or dispatched.
func (s *Store) Update(key string, fn func(current json.RawMessage, ok bool) (any, error)) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.area.commit(s, func(ctx context.Context) (Change, error) {
		raw, ok, err := s.area.backend.Get(ctx, key)
		if err != nil {
			return Change{}, err
		}
		if ok && !json.Valid(raw) {
			s.area.logger.Debug("localstore.read.malformed", "key", key)
			ok = false
		}
		if !ok {
			raw = nil
		}
		value, err := fn(json.RawMessage(raw), ok)
		if err != nil {
			return Change{}, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return Change{}, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		if err := s.area.backend.Set(ctx, key, payload); err != nil {
			return Change{}, err
		}
		return Change{Key: key, NewValue: json.RawMessage(payload)}, nil
	})
	if err != nil {
		s.area.logger.Warn("localstore.update.failed", "key", key, "store", s.name, "error", err)
		return err
	}
	return nil
}

// Remove deletes key and dispatches a change with a nil NewValue.
func (s *Store) Remove(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return s.area.commit(s, func(ctx context.Context) (Change, error) {
		if err := s.area.backend.Delete(ctx, key); err != nil {
			return Change{}, err
		}
		return Change{Key: key}, nil
	})
}

// Keys lists the keys currently stored in the area.
func (s *Store) Keys() ([]string, error) {
	ctx, cancel := s.area.backendContext()
	defer cancel()
	return s.area.backend.Keys(ctx)
}

// Subscribe registers fn for every change visible to this context. fn may
// write to the area; such writes are delivered after the current change.
func (s *Store) Subscribe(fn func(Change)) func() {
	return s.bus.Subscribe(fn)
}

// Close detaches the store from its area. Further writes fail with ErrClosed.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.area.detach(s.id)
	}
}
