package http

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/auth"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// SectionStore is the section store surface used by the API.
type SectionStore interface {
	Get(sectionID string, defaults map[string]any) map[string]any
	Set(sectionID string, kind sections.Kind, content map[string]any) error
	Delete(sectionID string) error
	List() []string
	SubscribeAll(fn func(sections.Event)) func()
}

// API registers the site content endpoints.
type API struct {
	basePath     string
	sections     SectionStore
	fields       fields.Service
	logger       interfaces.Logger
	actors       interfaces.ActorResolver
	upgrader     websocket.Upgrader
	streamBuffer int
	stream       bool
}

// Option mutates the API configuration.
type Option func(*API)

// NewAPI constructs an API instance.
func NewAPI(opts ...Option) *API {
	api := &API{
		basePath:     "/api",
		logger:       logging.NoOp(),
		actors:       auth.ContextResolver{},
		streamBuffer: 64,
		stream:       true,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	return api
}

// WithBasePath overrides the base API path (defaults to "/api").
func WithBasePath(path string) Option {
	return func(api *API) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			api.basePath = trimmed
		}
	}
}

// WithSectionStore wires the unified section store.
func WithSectionStore(store SectionStore) Option {
	return func(api *API) {
		api.sections = store
	}
}

// WithFieldService wires the remote field service.
func WithFieldService(service fields.Service) Option {
	return func(api *API) {
		api.fields = service
	}
}

// WithLogger sets the API logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(api *API) {
		if logger != nil {
			api.logger = logger
		}
	}
}

// WithActorResolver overrides how write endpoints find the caller.
func WithActorResolver(resolver interfaces.ActorResolver) Option {
	return func(api *API) {
		if resolver != nil {
			api.actors = resolver
		}
	}
}

// WithAllowedOrigins restricts websocket upgrades to the listed origins. An
// empty list keeps gorilla's same-host check.
func WithAllowedOrigins(origins []string) Option {
	return func(api *API) {
		allowed := make([]string, 0, len(origins))
		for _, origin := range origins {
			if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
				allowed = append(allowed, strings.ToLower(trimmed))
			}
		}
		if len(allowed) == 0 {
			api.upgrader.CheckOrigin = nil
			return
		}
		api.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.Contains(allowed, strings.ToLower(u.Scheme+"://"+u.Host))
		}
	}
}

// WithStreamBuffer sets how many events a slow websocket client may lag
// behind before events are dropped for it.
func WithStreamBuffer(size int) Option {
	return func(api *API) {
		if size > 0 {
			api.streamBuffer = size
		}
	}
}

// WithEventStream toggles the websocket event endpoint.
func WithEventStream(enabled bool) Option {
	return func(api *API) {
		api.stream = enabled
	}
}

// Register attaches the endpoints to mux.
func (api *API) Register(mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("http: mux is required")
	}
	if api == nil {
		return fmt.Errorf("http: api is nil")
	}

	base := joinPath(api.basePath, "")
	api.registerSectionRoutes(mux, base)
	api.registerFieldRoutes(mux, base)
	if api.stream {
		mux.HandleFunc("GET "+joinPath(base, "events"), api.handleEvents)
	}
	mux.HandleFunc("GET "+joinPath(base, "openapi.json"), api.handleOpenAPI)
	return nil
}

// requireActor writes a 401 and reports false when the request is anonymous.
func (api *API) requireActor(w http.ResponseWriter, r *http.Request) (interfaces.Actor, bool) {
	actor, ok := api.actors.ResolveActor(r.Context())
	if !ok || actor.IsZero() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "authenticated actor required"})
		return interfaces.Actor{}, false
	}
	return actor, true
}
