package localstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryBackend keeps entries in process memory. A positive quota caps the
// summed size of keys and values in bytes.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
	quota   int
	used    int
}

// NewMemoryBackend constructs an empty backend. quota <= 0 disables the cap.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte), quota: quota}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + len(key) + len(value)
	if prev, ok := m.entries[key]; ok {
		used -= len(key) + len(prev)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.entries[key] = slices.Clone(value)
	m.used = used
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[key]; ok {
		m.used -= len(key) + len(prev)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryBackend) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.entries)), nil
}

// Used reports the bytes currently counted against the quota.
func (m *MemoryBackend) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
