// Package binding exposes the handles UI surfaces use to read, edit and
// observe content. Bindings hold derived state only; every write goes through
// the section store or the field service.
package binding

import (
	"errors"
	"maps"
	"sync"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/events"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

var (
	ErrClosed         = errors.New("binding: closed")
	ErrNothingPending = errors.New("binding: no pending edits")
)

// Section binds one section of the unified store. Change listeners run on the
// store's dispatch path and must not write to the store synchronously.
type Section struct {
	store    *sections.Store
	id       string
	kind     sections.Kind
	defaults map[string]any

	mu      sync.RWMutex
	content map[string]any
	pending map[string]any
	closed  bool

	changes     events.Bus[map[string]any]
	unsubscribe func()
}

// NewSection binds sectionID. Nil defaults fall back to the defaults
// registered on the store.
func NewSection(store *sections.Store, sectionID string, kind sections.Kind, defaults map[string]any) *Section {
	if defaults == nil {
		defaults = store.Defaults(sectionID)
	}
	b := &Section{
		store:    store,
		id:       sectionID,
		kind:     kind,
		defaults: maps.Clone(defaults),
		pending:  map[string]any{},
	}
	b.content = store.Get(sectionID, b.defaults)
	b.unsubscribe = store.Subscribe(sectionID, b.apply)
	return b
}

// ID returns the bound section id.
func (b *Section) ID() string { return b.id }

// Content returns a copy of the current merged content.
func (b *Section) Content() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.content)
}

// Update writes content through the store. The binding state changes only
// when the store emits the resulting event, so a failed write leaves it as is.
func (b *Section) Update(content map[string]any) error {
	if b.isClosed() {
		return ErrClosed
	}
	return b.store.Set(b.id, b.kind, content)
}

// Edit stages a field value without persisting it.
func (b *Section) Edit(field string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[field] = value
}

// Pending returns a copy of the staged edits.
func (b *Section) Pending() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.pending)
}

// Cancel discards staged edits.
func (b *Section) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.pending)
}

// Save promotes staged edits through Update. Staged edits survive a failed
// save so the editor can retry.
func (b *Section) Save() error {
	pending := b.Pending()
	if len(pending) == 0 {
		return ErrNothingPending
	}
	if err := b.Update(pending); err != nil {
		return err
	}
	b.Cancel()
	return nil
}

// OnChange registers fn for content changes and returns its unsubscribe.
func (b *Section) OnChange(fn func(map[string]any)) func() {
	return b.changes.Subscribe(fn)
}

// Close detaches the binding from the store.
func (b *Section) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.unsubscribe()
}

func (b *Section) apply(ev sections.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if ev.Deleted {
		b.content = sections.Merge(b.defaults)
	} else {
		b.content = sections.Merge(b.defaults, ev.Data)
	}
	snapshot := maps.Clone(b.content)
	b.mu.Unlock()

	b.changes.Publish(snapshot)
}

func (b *Section) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
