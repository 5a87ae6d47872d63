// Package legacy carries content saved under the pre-unification local key
// layouts forward into section_<id> entries.
package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

const (
	// MarkerKey records the layout version of the last successful run.
	MarkerKey = "content_migration_version"
	// LayoutVersion is the unified layout produced by this migrator.
	LayoutVersion = 1
)

var ErrStoreRequired = errors.New("legacy: local store is required")

// Report lists the sections written and the sections left untouched because
// a unified entry already existed or the legacy data was unusable.
type Report struct {
	Migrated []string `json:"migrated"`
	Skipped  []string `json:"skipped"`
	// AlreadyCurrent is set when the marker showed the layout was migrated.
	AlreadyCurrent bool `json:"already_current"`
}

// Migrator copies legacy entries forward. Legacy keys are never modified or
// removed, and an existing unified entry always wins.
type Migrator struct {
	store  *localstore.Store
	logger interfaces.Logger

	mu   sync.Mutex
	done bool
	last Report
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the migrator logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMigrator binds a migrator to a local store context.
func NewMigrator(store *localstore.Store, opts ...Option) *Migrator {
	m := &Migrator{store: store, logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Migrate runs at most once per Migrator. A failed run may be retried; later
// calls after a success return the first report.
func (m *Migrator) Migrate() (Report, error) {
	if m == nil || m.store == nil {
		return Report{}, ErrStoreRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return m.last, nil
	}
	report, err := m.run()
	if err != nil {
		return report, err
	}
	m.done = true
	m.last = report
	return report, nil
}

func (m *Migrator) run() (Report, error) {
	if raw, ok := m.store.Read(MarkerKey); ok {
		var version int
		if json.Unmarshal(raw, &version) == nil && version >= LayoutVersion {
			m.logger.Debug("legacy.migrate.current", "version", version)
			return Report{AlreadyCurrent: true}, nil
		}
	}

	keys, err := m.store.Keys()
	if err != nil {
		return Report{}, fmt.Errorf("legacy: list keys: %w", err)
	}

	groups := m.collect(keys)
	report := Report{}
	for _, sectionID := range slices.Sorted(maps.Keys(groups)) {
		if _, exists := m.store.Read(sections.Key(sectionID)); exists {
			report.Skipped = append(report.Skipped, sectionID)
			continue
		}
		content := groups[sectionID].content()
		if len(content) == 0 {
			report.Skipped = append(report.Skipped, sectionID)
			continue
		}
		if err := m.store.Write(sections.Key(sectionID), content); err != nil {
			return report, fmt.Errorf("legacy: write section %q: %w", sectionID, err)
		}
		report.Migrated = append(report.Migrated, sectionID)
	}

	if err := m.store.Write(MarkerKey, LayoutVersion); err != nil {
		return report, fmt.Errorf("legacy: write marker: %w", err)
	}
	m.logger.Info("legacy.migrate.completed", "migrated", len(report.Migrated), "skipped", len(report.Skipped))
	return report, nil
}

// group gathers every legacy entry belonging to one section. Layers are
// applied blob first, then per-field values, then the image entry.
type group struct {
	blobs  []map[string]any
	fields map[string]any
	image  map[string]any
}

func (g *group) content() map[string]any {
	layers := append([]map[string]any{}, g.blobs...)
	layers = append(layers, g.fields, g.image)
	return sections.Merge(layers...)
}

func (m *Migrator) collect(keys []string) map[string]*group {
	groups := map[string]*group{}
	get := func(id string) *group {
		g, ok := groups[id]
		if !ok {
			g = &group{fields: map[string]any{}, image: map[string]any{}}
			groups[id] = g
		}
		return g
	}

	// Blob layouts are applied in a fixed order regardless of key order.
	slices.SortStableFunc(keys, func(a, b string) int { return blobRank(a) - blobRank(b) })

	for _, key := range keys {
		layout, sectionID, field := Classify(key)
		if layout == LayoutNone {
			continue
		}
		raw, ok := m.store.Read(key)
		if !ok {
			m.logger.Warn("legacy.entry.unreadable", "key", key)
			continue
		}
		switch layout {
		case LayoutBlob:
			var blob map[string]any
			if err := json.Unmarshal(raw, &blob); err != nil || blob == nil {
				m.logger.Warn("legacy.entry.malformed", "key", key)
				continue
			}
			g := get(sectionID)
			g.blobs = append(g.blobs, blob)
		case LayoutField:
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				continue
			}
			get(sectionID).fields[field] = value
		case LayoutImage:
			image, ok := decodeImage(raw)
			if !ok {
				m.logger.Warn("legacy.entry.malformed", "key", key)
				continue
			}
			get(sectionID).image = image
		}
	}
	return groups
}

func decodeImage(raw json.RawMessage) (map[string]any, bool) {
	var src string
	if err := json.Unmarshal(raw, &src); err == nil {
		if src == "" {
			return nil, false
		}
		return map[string]any{sections.FieldImage: src}, true
	}
	var entry struct {
		Src string `json:"src"`
		URL string `json:"url"`
		Alt string `json:"alt"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.Src == "" {
		entry.Src = entry.URL
	}
	if entry.Src == "" {
		return nil, false
	}
	out := map[string]any{sections.FieldImage: entry.Src}
	if entry.Alt != "" {
		out[sections.FieldImageAlt] = entry.Alt
	}
	return out, true
}

// Layout identifies a legacy key scheme.
type Layout int

const (
	LayoutNone Layout = iota
	LayoutBlob
	LayoutField
	LayoutImage
)

// Classify maps a key to its legacy layout. Field keys split the section id
// at the first underscore after the field_ prefix.
func Classify(key string) (layout Layout, sectionID, field string) {
	switch {
	case key == MarkerKey, strings.HasPrefix(key, sections.KeyPrefix):
		return LayoutNone, "", ""
	case strings.HasPrefix(key, "field_"):
		id, name, ok := strings.Cut(strings.TrimPrefix(key, "field_"), "_")
		if ok && id != "" && name != "" {
			return LayoutField, id, name
		}
	case strings.HasPrefix(key, "image_"):
		if id := strings.TrimPrefix(key, "image_"); id != "" {
			return LayoutImage, id, ""
		}
	case strings.HasPrefix(key, "content_"):
		if id := strings.TrimPrefix(key, "content_"); id != "" {
			return LayoutBlob, id, ""
		}
	case strings.HasSuffix(key, "_content"):
		if id := strings.TrimSuffix(key, "_content"); id != "" {
			return LayoutBlob, id, ""
		}
	case strings.HasSuffix(key, "Content"):
		id := strings.TrimSuffix(key, "Content")
		if id != "" && !unicode.IsUpper(rune(id[len(id)-1])) {
			return LayoutBlob, id, ""
		}
	}
	return LayoutNone, "", ""
}

func blobRank(key string) int {
	switch {
	case strings.HasPrefix(key, "content_"):
		return 0
	case strings.HasSuffix(key, "_content"):
		return 1
	case strings.HasSuffix(key, "Content"):
		return 2
	default:
		return 3
	}
}
