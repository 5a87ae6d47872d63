package http

import (
	"net/http"
	"strings"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

type sectionResponse struct {
	SectionID string         `json:"sectionId"`
	Content   map[string]any `json:"content"`
}

type sectionUpdatePayload struct {
	Kind    string         `json:"kind"`
	Content map[string]any `json:"content"`
}

func (api *API) registerSectionRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "sections")
	mux.HandleFunc("GET "+root, api.handleSectionList)
	mux.HandleFunc("GET "+root+"/{id}", api.handleSectionGet)
	mux.HandleFunc("PUT "+root+"/{id}", api.handleSectionUpdate)
	mux.HandleFunc("DELETE "+root+"/{id}", api.handleSectionDelete)
}

func (api *API) handleSectionList(w http.ResponseWriter, r *http.Request) {
	if api.sections == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	ids := api.sections.List()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": ids})
}

func (api *API) handleSectionGet(w http.ResponseWriter, r *http.Request) {
	if api.sections == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	content := api.sections.Get(id, nil)
	if content == nil {
		content = map[string]any{}
	}
	writeJSON(w, http.StatusOK, sectionResponse{SectionID: id, Content: content})
}

func (api *API) handleSectionUpdate(w http.ResponseWriter, r *http.Request) {
	if api.sections == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	actor, ok := api.requireActor(w, r)
	if !ok {
		return
	}
	var payload sectionUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if payload.Content == nil {
		badRequest(w, "content is required")
		return
	}
	kind := sections.KindSection
	if strings.TrimSpace(payload.Kind) != "" {
		parsed, ok := sections.ParseKind(payload.Kind)
		if !ok {
			writeError(w, sections.ErrUnknownKind)
			return
		}
		kind = parsed
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if err := api.sections.Set(id, kind, payload.Content); err != nil {
		api.logger.Warn("http.sections.update.failed", "section_id", id, "actor", actor.ID, "error", err)
		writeError(w, err)
		return
	}
	api.logger.Info("http.sections.update.success", "section_id", id, "actor", actor.ID)
	writeJSON(w, http.StatusOK, sectionResponse{SectionID: id, Content: api.sections.Get(id, nil)})
}

func (api *API) handleSectionDelete(w http.ResponseWriter, r *http.Request) {
	if api.sections == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	if _, ok := api.requireActor(w, r); !ok {
		return
	}
	if err := api.sections.Delete(strings.TrimSpace(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
