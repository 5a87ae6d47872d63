// Package sections is the authoritative per-section content map used by admin
// mode. Reads merge persisted overrides over caller defaults; writes go
// through the local store and are broadcast as unifiedContentUpdated events.
package sections

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/events"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/extract"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/validation"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// Store reads and writes section content for one context.
//
// Events are produced by translating the local store's change notifications,
// so writes made here and writes made by other contexts reach subscribers the
// same way. Subscribers may call Set and Delete; the resulting events follow
// the one being handled.
type Store struct {
	local     *localstore.Store
	extractor extract.Extractor
	logger    interfaces.Logger

	mu       sync.RWMutex
	defaults map[string]map[string]any
	schemas  map[string]*validation.Schema

	bus         events.Bus[Event]
	unsubscribe func()
}

// Option configures the store.
type Option func(*Store)

// WithExtractor sets the fallback used when no override is persisted.
func WithExtractor(extractor extract.Extractor) Option {
	return func(s *Store) {
		if extractor != nil {
			s.extractor = extractor
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchema validates section-kind writes for sectionID against schema.
func WithSchema(sectionID string, schema *validation.Schema) Option {
	return func(s *Store) {
		if schema != nil {
			s.schemas[sectionID] = schema
		}
	}
}

// WithDefaults registers hardcoded defaults for several sections at once.
func WithDefaults(defaults map[string]map[string]any) Option {
	return func(s *Store) {
		for id, values := range defaults {
			s.defaults[id] = maps.Clone(values)
		}
	}
}

// NewStore binds a section store to a local store context.
func NewStore(local *localstore.Store, opts ...Option) *Store {
	s := &Store{
		local:     local,
		extractor: extract.NoopExtractor{},
		logger:    logging.NoOp(),
		defaults:  make(map[string]map[string]any),
		schemas:   make(map[string]*validation.Schema),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.unsubscribe = local.Subscribe(s.translate)
	return s
}

// Close stops translating local store changes.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// RegisterDefaults records the hardcoded defaults for sectionID. They are the
// base layer for Set and the fallback for Get when the caller passes nil.
func (s *Store) RegisterDefaults(sectionID string, defaults map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[sectionID] = maps.Clone(defaults)
}

// Defaults returns a copy of the registered defaults for sectionID.
func (s *Store) Defaults(sectionID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.defaults[sectionID])
}

// RegisterSchema attaches a JSON schema used for section-kind writes.
func (s *Store) RegisterSchema(sectionID string, schema *validation.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema == nil {
		delete(s.schemas, sectionID)
		return
	}
	s.schemas[sectionID] = schema
}

// Get returns defaults merged with the persisted override. When nothing is
// persisted the extractor result is merged instead. Get never fails and has
// no side effects.
func (s *Store) Get(sectionID string, defaults map[string]any) map[string]any {
	if defaults == nil {
		defaults = s.Defaults(sectionID)
	}
	if strings.TrimSpace(sectionID) == "" {
		return Merge(defaults)
	}
	if override, ok := s.override(sectionID); ok {
		return Merge(defaults, override)
	}
	return Merge(defaults, s.extract(sectionID))
}

// Set merges content over the current value over the registered defaults,
// validates it for kind and persists the result. The current value is the
// persisted override or, when none exists yet, the extracted values. On error
// nothing is written and no event is emitted.
func (s *Store) Set(sectionID string, kind Kind, content map[string]any) error {
	if strings.TrimSpace(sectionID) == "" {
		return ErrSectionIDRequired
	}
	if _, ok := ParseKind(string(kind)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	s.mu.RLock()
	schema := s.schemas[sectionID]
	s.mu.RUnlock()
	defaults := s.Defaults(sectionID)

	var invalid error
	err := s.local.Update(Key(sectionID), func(raw json.RawMessage, ok bool) (any, error) {
		current, decoded := decodeOverride(raw, ok)
		if !decoded {
			current = s.extract(sectionID)
		}
		merged := Merge(defaults, current, content)
		if err := validateKind(kind, content, merged, schema); err != nil {
			invalid = err
			return nil, err
		}
		return merged, nil
	})
	switch {
	case invalid != nil:
		s.logger.Warn("sections.set.invalid", "section_id", sectionID, "kind", kind, "error", invalid)
		return invalid
	case err != nil:
		s.logger.Warn("sections.set.failed", "section_id", sectionID, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	s.logger.Debug("sections.set.success", "section_id", sectionID, "kind", kind)
	return nil
}

// Delete removes the persisted override and emits a deleted event.
func (s *Store) Delete(sectionID string) error {
	if strings.TrimSpace(sectionID) == "" {
		return ErrSectionIDRequired
	}
	if err := s.local.Remove(Key(sectionID)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// List returns the ids of sections with a persisted override.
func (s *Store) List() []string {
	keys, err := s.local.Keys()
	if err != nil {
		s.logger.Warn("sections.list.failed", "error", err)
		return nil
	}
	var ids []string
	for _, key := range keys {
		if id, ok := SectionIDFromKey(key); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Subscribe delivers events for sectionID only, in write order.
func (s *Store) Subscribe(sectionID string, fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	return s.bus.Subscribe(func(ev Event) {
		if ev.SectionID == sectionID {
			fn(ev.clone())
		}
	})
}

// SubscribeAll delivers every section event.
func (s *Store) SubscribeAll(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	return s.bus.Subscribe(func(ev Event) { fn(ev.clone()) })
}

func (s *Store) override(sectionID string) (map[string]any, bool) {
	raw, ok := s.local.Read(Key(sectionID))
	override, decoded := decodeOverride(raw, ok)
	if ok && !decoded {
		s.logger.Debug("sections.override.malformed", "section_id", sectionID)
	}
	return override, decoded
}

func decodeOverride(raw json.RawMessage, ok bool) (map[string]any, bool) {
	if !ok {
		return nil, false
	}
	var override map[string]any
	if err := json.Unmarshal(raw, &override); err != nil || override == nil {
		return nil, false
	}
	return override, true
}

func (s *Store) extract(sectionID string) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("sections.extract.panic", "section_id", sectionID, "panic", r)
			out = nil
		}
	}()
	values := s.extractor.Extract(sectionID)
	if len(values) == 0 {
		return nil
	}
	out = make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func (s *Store) translate(change localstore.Change) {
	sectionID, ok := SectionIDFromKey(change.Key)
	if !ok {
		return
	}
	if change.Removed() {
		s.bus.Publish(Event{SectionID: sectionID, Deleted: true})
		return
	}
	var data map[string]any
	if err := json.Unmarshal(change.NewValue, &data); err != nil || data == nil {
		s.logger.Debug("sections.change.malformed", "section_id", sectionID, "origin", change.Origin)
		return
	}
	s.bus.Publish(Event{SectionID: sectionID, Data: data})
}
