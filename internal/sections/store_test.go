package sections_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/extract"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/validation"
)

func newStore(t *testing.T, opts ...sections.Option) (*sections.Store, *localstore.Area) {
	t.Helper()
	area := localstore.NewArea(nil)
	store := sections.NewStore(area.Open("tab"), opts...)
	t.Cleanup(store.Close)
	return store, area
}

func TestGetWithoutOverrideReturnsDefaults(t *testing.T) {
	store, _ := newStore(t)
	defaults := map[string]any{"title": "Hi", "count": 2}

	got := store.Get("hero", defaults)
	if !reflect.DeepEqual(got, defaults) {
		t.Fatalf("expected defaults, got %v", got)
	}
	got["title"] = "mutated"
	if defaults["title"] != "Hi" {
		t.Fatal("Get must not alias the caller defaults")
	}
}

func TestGetMergePrecedence(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Set("hero", sections.KindSection, map[string]any{"b": 3}); err != nil {
		t.Fatalf("set: %v", err)
	}

	got := store.Get("hero", map[string]any{"a": 1, "b": 2})
	if got["a"] != 1 || got["b"] != float64(3) {
		t.Fatalf("unexpected merge result %v", got)
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Set("hero", sections.KindText, map[string]any{"title": "X"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := store.Get("hero", map[string]any{"title": "Hi", "subtitle": "Sub"})
	want := map[string]any{"title": "X", "subtitle": "Sub"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractionOverridesDefaultsWhenNothingPersisted(t *testing.T) {
	extractor := extract.NewHTMLExtractor([]byte(`<section id="hero"><h1>Hello World</h1></section>`))
	store, _ := newStore(t, sections.WithExtractor(extractor))

	got := store.Get("hero", map[string]any{"title": "Hi"})
	if got["title"] != "Hello World" {
		t.Fatalf("expected extracted title, got %v", got)
	}

	if err := store.Set("hero", sections.KindText, map[string]any{"title": "Saved"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := store.Get("hero", map[string]any{"title": "Hi"}); got["title"] != "Saved" {
		t.Fatalf("expected persisted override to win over extraction, got %v", got)
	}
}

func TestPanickingExtractorFallsBackToDefaults(t *testing.T) {
	store, _ := newStore(t, sections.WithExtractor(extract.Func(func(string) map[string]string {
		panic("boom")
	})))
	got := store.Get("hero", map[string]any{"title": "Hi"})
	if got["title"] != "Hi" {
		t.Fatalf("expected defaults, got %v", got)
	}
}

func TestSetEmitsExactlyOneEventForSection(t *testing.T) {
	store, _ := newStore(t)

	var hero, about []sections.Event
	store.Subscribe("hero", func(ev sections.Event) { hero = append(hero, ev) })
	store.Subscribe("about", func(ev sections.Event) { about = append(about, ev) })

	if err := store.Set("hero", sections.KindSection, map[string]any{"title": "X"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if len(hero) != 1 || hero[0].Data["title"] != "X" || hero[0].SectionID != "hero" {
		t.Fatalf("unexpected hero events %+v", hero)
	}
	if len(about) != 0 {
		t.Fatalf("expected no about events, got %+v", about)
	}
	if hero[0].Type() != sections.EventUnifiedContentUpdated {
		t.Fatalf("unexpected event type %q", hero[0].Type())
	}
}

func TestCrossContextWritesReachSubscribers(t *testing.T) {
	area := localstore.NewArea(nil)
	tabA := sections.NewStore(area.Open("a"))
	tabB := sections.NewStore(area.Open("b"))
	defer tabA.Close()
	defer tabB.Close()

	var received []sections.Event
	tabB.Subscribe("hero", func(ev sections.Event) { received = append(received, ev) })

	if err := tabA.Set("hero", sections.KindText, map[string]any{"title": "one"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tabA.Set("hero", sections.KindText, map[string]any{"title": "two"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if len(received) != 2 || received[0].Data["title"] != "one" || received[1].Data["title"] != "two" {
		t.Fatalf("expected ordered cross-context events, got %+v", received)
	}
	if got := tabB.Get("hero", nil); got["title"] != "two" {
		t.Fatalf("expected other context to converge, got %v", got)
	}
}

func TestSetFailureLeavesStateAndEmitsNothing(t *testing.T) {
	area := localstore.NewArea(localstore.NewMemoryBackend(80))
	store := sections.NewStore(area.Open("tab"))
	defer store.Close()

	if err := store.Set("hero", sections.KindText, map[string]any{"title": "ok"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var events int
	store.Subscribe("hero", func(sections.Event) { events++ })

	err := store.Set("hero", sections.KindText, map[string]any{"title": strings.Repeat("x", 200)})
	if !errors.Is(err, sections.ErrWriteFailed) || !errors.Is(err, localstore.ErrQuotaExceeded) {
		t.Fatalf("expected quota write failure, got %v", err)
	}
	if events != 0 {
		t.Fatalf("expected no events, got %d", events)
	}
	if got := store.Get("hero", nil); got["title"] != "ok" {
		t.Fatalf("expected previous content, got %v", got)
	}
}

func TestSetValidatesKinds(t *testing.T) {
	cases := []struct {
		name    string
		kind    sections.Kind
		content map[string]any
		wantErr bool
	}{
		{"text scalars", sections.KindText, map[string]any{"title": "a", "n": 1, "on": true}, false},
		{"text nested", sections.KindText, map[string]any{"items": []string{"a"}}, true},
		{"rich text string", sections.KindRichText, map[string]any{"body": "**hi**"}, false},
		{"rich text number", sections.KindRichText, map[string]any{"body": 4}, true},
		{"image with source", sections.KindImage, map[string]any{"image": "/a.jpg", "image_alt": "A"}, false},
		{"image missing source", sections.KindImage, map[string]any{"image_alt": "A"}, true},
		{"image bad alt", sections.KindImage, map[string]any{"image": "/a.jpg", "image_alt": 3}, true},
		{"image source not string", sections.KindImage, map[string]any{"image": 7}, true},
		{"section nested", sections.KindSection, map[string]any{"items": []any{map[string]any{"q": "a"}}}, false},
		{"section unserializable", sections.KindSection, map[string]any{"fn": func() {}}, true},
		{"unknown kind", sections.Kind("video"), map[string]any{"image": "x"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newStore(t)
			err := store.Set("s", tc.kind, tc.content)
			if tc.wantErr {
				if err == nil || !sections.IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if len(store.List()) != 0 {
					t.Fatal("expected nothing to be persisted")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSectionSchemaValidation(t *testing.T) {
	schema, err := validation.Compile([]byte(`{"type":"object","required":["title"],"properties":{"title":{"type":"string"}}}`))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	store, _ := newStore(t, sections.WithSchema("hero", schema))

	if err := store.Set("hero", sections.KindSection, map[string]any{"subtitle": "x"}); !errors.Is(err, validation.ErrSchemaValidation) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if err := store.Set("hero", sections.KindSection, map[string]any{"title": "ok"}); err != nil {
		t.Fatalf("expected valid content, got %v", err)
	}
}

func TestSetMergesOverRegisteredDefaultsAndPersisted(t *testing.T) {
	store, _ := newStore(t)
	store.RegisterDefaults("portrait", map[string]any{"image": "/default.jpg", "image_alt": "Default"})

	if err := store.Set("portrait", sections.KindImage, map[string]any{"image_alt": "Custom"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := store.Get("portrait", nil)
	if got["image"] != "/default.jpg" || got["image_alt"] != "Custom" {
		t.Fatalf("unexpected content %v", got)
	}
}

func TestTextEditKeepsStructuredFieldsItDoesNotTouch(t *testing.T) {
	store, _ := newStore(t)
	defaults := map[string]any{"title": "Pricing", "features": []any{"a", "b"}}
	store.RegisterDefaults("pricing", defaults)

	if err := store.Set("pricing", sections.KindText, map[string]any{"title": "New"}); err != nil {
		t.Fatalf("text edit rejected: %v", err)
	}
	got := store.Get("pricing", defaults)
	want := map[string]any{"title": "New", "features": []any{"a", "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := store.Set("pricing", sections.KindRichText, map[string]any{"body": "**hi**"}); err != nil {
		t.Fatalf("rich text edit rejected: %v", err)
	}
	if err := store.Set("pricing", sections.KindText, map[string]any{"features": []any{"c"}}); !sections.IsValidationError(err) {
		t.Fatalf("expected text edit of a list to fail validation, got %v", err)
	}
}

func TestImageEditOverExtractedImage(t *testing.T) {
	extractor := extract.NewHTMLExtractor([]byte(`<section id="hero"><img src="/a.png" alt="A"></section>`))
	store, _ := newStore(t, sections.WithExtractor(extractor))

	if err := store.Set("hero", sections.KindImage, map[string]any{sections.FieldImage: "/b.png"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := store.Get("hero", nil)
	if got[sections.FieldImage] != "/b.png" || got[sections.FieldImageAlt] != "A" {
		t.Fatalf("expected new source with extracted alt, got %v", got)
	}
}

func TestSubscriberMayWriteOtherSections(t *testing.T) {
	store, _ := newStore(t)

	var order []string
	store.SubscribeAll(func(ev sections.Event) {
		order = append(order, ev.SectionID)
	})
	store.Subscribe("hero", func(ev sections.Event) {
		if err := store.Set("footer", sections.KindText, map[string]any{"tagline": ev.Data["title"]}); err != nil {
			t.Errorf("mirror write: %v", err)
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- store.Set("hero", sections.KindText, map[string]any{"title": "X"})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("set: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("set did not return")
	}

	if got := store.Get("footer", nil); got["tagline"] != "X" {
		t.Fatalf("expected mirrored footer, got %v", got)
	}
	if !reflect.DeepEqual(order, []string{"hero", "footer"}) {
		t.Fatalf("expected events in write order, got %v", order)
	}
	if err := store.Set("about", sections.KindText, map[string]any{"title": "still writable"}); err != nil {
		t.Fatalf("later write: %v", err)
	}
}

func TestSubscriberMayRewriteItsOwnSection(t *testing.T) {
	store, _ := newStore(t)

	var titles []any
	store.Subscribe("hero", func(ev sections.Event) {
		titles = append(titles, ev.Data["title"])
		if ev.Data["title"] == "draft" {
			if err := store.Set("hero", sections.KindText, map[string]any{"title": "final"}); err != nil {
				t.Errorf("rewrite: %v", err)
			}
		}
	})

	if err := store.Set("hero", sections.KindText, map[string]any{"title": "draft"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !reflect.DeepEqual(titles, []any{"draft", "final"}) {
		t.Fatalf("unexpected event sequence %v", titles)
	}
	if got := store.Get("hero", nil); got["title"] != "final" {
		t.Fatalf("expected rewritten title, got %v", got)
	}
}

func TestDeleteEmitsDeletedEvent(t *testing.T) {
	store, _ := newStore(t)
	_ = store.Set("hero", sections.KindText, map[string]any{"title": "X"})

	var got []sections.Event
	store.Subscribe("hero", func(ev sections.Event) { got = append(got, ev) })

	if err := store.Delete("hero"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(got) != 1 || !got[0].Deleted || got[0].Data != nil {
		t.Fatalf("expected deleted event, got %+v", got)
	}
	if v := store.Get("hero", map[string]any{"title": "Hi"}); v["title"] != "Hi" {
		t.Fatalf("expected defaults after delete, got %v", v)
	}
}

func TestListAndSubscribeAll(t *testing.T) {
	store, area := newStore(t)
	var all []string
	store.SubscribeAll(func(ev sections.Event) { all = append(all, ev.SectionID) })

	_ = store.Set("b", sections.KindText, map[string]any{"x": "1"})
	_ = store.Set("a", sections.KindText, map[string]any{"x": "1"})
	_ = area.Open("other").Write("unrelated", 1)

	if ids := store.List(); !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("unexpected ids %v", ids)
	}
	if !reflect.DeepEqual(all, []string{"b", "a"}) {
		t.Fatalf("unexpected events %v", all)
	}
}

func TestSeedDefaultsFromMarkdown(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults/hero.md":  {Data: []byte("---\ntitle: Welcome\n---\n")},
		"defaults/other.md": {Data: []byte("---\nsection: about\ntitle: About\n---\n\nBody text.\n")},
		"defaults/skip.txt": {Data: []byte("ignored")},
	}
	store, _ := newStore(t)
	if err := store.SeedDefaults(fsys, "defaults"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if got := store.Get("hero", nil); got["title"] != "Welcome" {
		t.Fatalf("unexpected hero defaults %v", got)
	}
	about := store.Get("about", nil)
	if about["title"] != "About" || about["body"] != "Body text." {
		t.Fatalf("unexpected about defaults %v", about)
	}
	if _, ok := about["section"]; ok {
		t.Fatal("section key must not leak into defaults")
	}
}
