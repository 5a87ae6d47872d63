// Package extract recovers best-effort section values from rendered markup
// when no override has been persisted yet.
package extract

import "maps"

// Image field names. An image is stored as its source under FieldImage and its
// alternative text under FieldImageAlt; explicitly named images use the same
// "_alt" suffix.
const (
	FieldImage    = "image"
	FieldImageAlt = FieldImage + AltSuffix
	AltSuffix     = "_alt"
)

// Extractor returns advisory field values for a section. Implementations
// never fail: any difficulty yields an empty map.
type Extractor interface {
	Extract(sectionID string) map[string]string
}

// NoopExtractor always returns an empty map.
type NoopExtractor struct{}

func (NoopExtractor) Extract(string) map[string]string { return map[string]string{} }

// FixtureExtractor serves static values per section.
type FixtureExtractor map[string]map[string]string

func (f FixtureExtractor) Extract(sectionID string) map[string]string {
	values := maps.Clone(f[sectionID])
	if values == nil {
		return map[string]string{}
	}
	return values
}

// Func adapts a function to Extractor.
type Func func(sectionID string) map[string]string

func (fn Func) Extract(sectionID string) map[string]string {
	if fn == nil {
		return map[string]string{}
	}
	return fn(sectionID)
}
