package sections

import (
	"errors"
	"maps"
	"strings"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/extract"
)

const (
	// KeyPrefix prefixes every unified section entry in the local store.
	KeyPrefix = "section_"
	// EventUnifiedContentUpdated names the notification emitted per section change.
	EventUnifiedContentUpdated = "unifiedContentUpdated"

	// FieldImage and FieldImageAlt are the image-kind fields. Extraction and
	// legacy migration produce the same names.
	FieldImage    = extract.FieldImage
	FieldImageAlt = extract.FieldImageAlt
)

var (
	ErrSectionIDRequired = errors.New("sections: section id is required")
	ErrUnknownKind       = errors.New("sections: unknown content kind")
	ErrInvalidContent    = errors.New("sections: content failed validation")
	ErrWriteFailed       = errors.New("sections: write failed")
)

// Kind is the closed set of content variants a section can hold.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindRichText Kind = "rich_text"
	KindSection  Kind = "section"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindText, KindImage, KindRichText, KindSection}
}

// ParseKind maps a string to a Kind, reporting false for unknown values.
func ParseKind(value string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, k := range Kinds() {
		if k == kind {
			return kind, true
		}
	}
	return "", false
}

// Event is the payload of unifiedContentUpdated. Deleted events carry no data
// and subscribers fall back to their own defaults.
type Event struct {
	SectionID string         `json:"sectionId"`
	Data      map[string]any `json:"data,omitempty"`
	Deleted   bool           `json:"deleted,omitempty"`
}

// Type returns the event name.
func (Event) Type() string { return EventUnifiedContentUpdated }

func (e Event) clone() Event {
	e.Data = maps.Clone(e.Data)
	return e
}

// Key returns the local store key holding sectionID.
func Key(sectionID string) string {
	return KeyPrefix + sectionID
}

// SectionIDFromKey reverses Key.
func SectionIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Merge layers maps left to right; later keys win. The result is a new map
// and nested values are not merged.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		maps.Copy(out, layer)
	}
	return out
}
