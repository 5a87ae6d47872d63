package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
)

type contentUpdatePayload struct {
	Value       any    `json:"value"`
	ContentType string `json:"content_type"`
}

func (api *API) registerFieldRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "content")
	mux.HandleFunc("GET "+root+"/{page}", api.handleContentList)
	mux.HandleFunc("GET "+root+"/{page}/{key}", api.handleContentGet)
	mux.HandleFunc("PUT "+root+"/{page}/{key}", api.handleContentSave)
	mux.HandleFunc("GET "+root+"/{page}/{key}/versions", api.handleContentVersions)
	mux.HandleFunc("POST "+root+"/{page}/{key}/versions/{version}/restore", api.handleContentRestore)
}

func (api *API) handleContentList(w http.ResponseWriter, r *http.Request) {
	if api.fields == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	records, err := api.fields.ListPage(r.Context(), r.PathValue("page"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*fields.PageContent{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (api *API) handleContentGet(w http.ResponseWriter, r *http.Request) {
	if api.fields == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	page, key := r.PathValue("page"), r.PathValue("key")
	record, found, err := api.fields.GetContent(r.Context(), page, key)
	if err != nil {
		api.logger.Warn("http.content.get.failed", "page_id", page, "content_key", key, "error", err)
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "content not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (api *API) handleContentSave(w http.ResponseWriter, r *http.Request) {
	if api.fields == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	actor, ok := api.requireActor(w, r)
	if !ok {
		return
	}
	var payload contentUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	record, err := api.fields.SaveContent(r.Context(), fields.SaveContentRequest{
		PageID:      r.PathValue("page"),
		ContentKey:  r.PathValue("key"),
		Value:       payload.Value,
		ContentType: fields.ContentType(strings.TrimSpace(payload.ContentType)),
		Actor:       actor.ID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (api *API) handleContentVersions(w http.ResponseWriter, r *http.Request) {
	if api.fields == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	limit := parseIntQuery(r.URL.Query().Get("limit"), 0)
	versions, err := api.fields.ListVersions(r.Context(), r.PathValue("page"), r.PathValue("key"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (api *API) handleContentRestore(w http.ResponseWriter, r *http.Request) {
	if api.fields == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	actor, ok := api.requireActor(w, r)
	if !ok {
		return
	}
	number, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("version")), 10, 64)
	if err != nil || number <= 0 {
		badRequest(w, "version must be a positive integer")
		return
	}
	record, err := api.fields.RestoreVersion(r.Context(), fields.RestoreVersionRequest{
		PageID:        r.PathValue("page"),
		ContentKey:    r.PathValue("key"),
		VersionNumber: number,
		Actor:         actor.ID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
