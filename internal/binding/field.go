package binding

import (
	"bytes"
	"context"
	"html"
	"sync"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/events"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/markdown"
)

// FieldState is the observable state of a Field binding.
type FieldState struct {
	Value       fields.Value
	ContentType fields.ContentType
	Found       bool
}

func (s FieldState) equal(other FieldState) bool {
	return s.Found == other.Found &&
		s.ContentType == other.ContentType &&
		bytes.Equal(s.Value, other.Value)
}

// FieldOption configures a Field binding.
type FieldOption func(*Field)

// WithRenderer overrides the markdown renderer used for rich_text values.
func WithRenderer(renderer *markdown.Renderer) FieldOption {
	return func(f *Field) {
		if renderer != nil {
			f.renderer = renderer
		}
	}
}

// Field binds one (page_id, content_key) pair of the remote field service.
type Field struct {
	svc        fields.Service
	pageID     string
	contentKey string
	renderer   *markdown.Renderer

	mu     sync.RWMutex
	state  FieldState
	closed bool

	changes     events.Bus[FieldState]
	unsubscribe func()
}

// NewField binds pageID/contentKey. The binding is empty until Load succeeds
// or the service reports a save for the pair.
func NewField(svc fields.Service, pageID, contentKey string, opts ...FieldOption) *Field {
	f := &Field{
		svc:        svc,
		pageID:     pageID,
		contentKey: contentKey,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.renderer == nil {
		f.renderer = markdown.NewRenderer(markdown.Options{})
	}
	f.unsubscribe = svc.Subscribe(func(ev fields.Event) {
		if ev.PageID == f.pageID && ev.ContentKey == f.contentKey {
			f.set(FieldState{Value: ev.Value, ContentType: ev.ContentType, Found: true})
		}
	})
	return f
}

// Load fetches the current value. An absent field is not an error; remote
// failures are returned and leave the state unchanged.
func (f *Field) Load(ctx context.Context) error {
	if f.isClosed() {
		return ErrClosed
	}
	record, found, err := f.svc.GetContent(ctx, f.pageID, f.contentKey)
	if err != nil {
		return err
	}
	if !found {
		f.set(FieldState{})
		return nil
	}
	f.set(FieldState{Value: record.ContentValue, ContentType: record.ContentType, Found: true})
	return nil
}

// State returns the current state.
func (f *Field) State() FieldState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Value returns the current value and whether one exists.
func (f *Field) Value() (fields.Value, bool) {
	state := f.State()
	return state.Value, state.Found
}

// Save persists value through the service. A save that completes after Close
// is not applied to the binding.
func (f *Field) Save(ctx context.Context, value any, contentType fields.ContentType) (*fields.PageContent, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	saved, err := f.svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID:      f.pageID,
		ContentKey:  f.contentKey,
		Value:       value,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	f.set(FieldState{Value: saved.ContentValue, ContentType: saved.ContentType, Found: true})
	return saved, nil
}

// Rendered returns the value as HTML: markdown for rich_text, escaped text
// otherwise. Image values render as their src.
func (f *Field) Rendered() (string, error) {
	state := f.State()
	if !state.Found {
		return "", nil
	}
	switch state.ContentType {
	case fields.ContentTypeRichText:
		return f.renderer.RenderString(state.Value.String())
	case fields.ContentTypeImage:
		var image struct {
			Src string `json:"src"`
		}
		if err := state.Value.Decode(&image); err == nil && image.Src != "" {
			return html.EscapeString(image.Src), nil
		}
	}
	return html.EscapeString(state.Value.String()), nil
}

// OnChange registers fn for state changes and returns its unsubscribe.
func (f *Field) OnChange(fn func(FieldState)) func() {
	return f.changes.Subscribe(fn)
}

// Close detaches the binding. Loads and saves still in flight are dropped
// when they complete.
func (f *Field) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()
	f.unsubscribe()
}

func (f *Field) set(state FieldState) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.state.equal(state) {
		f.mu.Unlock()
		return
	}
	f.state = state
	f.mu.Unlock()
	f.changes.Publish(state)
}

func (f *Field) isClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}
