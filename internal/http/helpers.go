package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/validation"
)

type errorResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Issues  []validation.Issue `json:"issues,omitempty"`
}

func joinPath(base, suffix string) string {
	trimmedBase := strings.TrimSpace(base)
	trimmedSuffix := strings.TrimSpace(suffix)
	if trimmedBase == "" {
		if trimmedSuffix == "" {
			return "/"
		}
		return "/" + strings.Trim(trimmedSuffix, "/")
	}
	baseClean := "/" + strings.Trim(trimmedBase, "/")
	if trimmedSuffix == "" {
		return baseClean
	}
	return baseClean + "/" + strings.Trim(trimmedSuffix, "/")
}

func decodeJSON(r *http.Request, target any) error {
	if r == nil || r.Body == nil {
		return io.EOF
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status, payload := mapError(err)
	writeJSON(w, status, payload)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: "unknown_error"}
	}

	if errors.Is(err, fields.ErrUnauthorized) {
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: err.Error()}
	}

	var notFound *fields.NotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fields.ErrVersionNotFound) {
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()}
	}

	if errors.Is(err, fields.ErrBackupFailed) || errors.Is(err, fields.ErrRemoteUnavailable) {
		return http.StatusServiceUnavailable, errorResponse{Error: "remote_unavailable", Message: err.Error()}
	}

	if errors.Is(err, localstore.ErrQuotaExceeded) {
		return http.StatusInsufficientStorage, errorResponse{Error: "quota_exceeded", Message: err.Error()}
	}

	if sections.IsValidationError(err) ||
		errors.Is(err, validation.ErrSchemaValidation) ||
		errors.Is(err, localstore.ErrSerialization) {
		return http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
			Issues:  validation.Issues(err),
		}
	}

	if errors.Is(err, sections.ErrSectionIDRequired) ||
		errors.Is(err, fields.ErrPageIDRequired) ||
		errors.Is(err, fields.ErrContentKeyRequired) ||
		errors.Is(err, fields.ErrContentTypeInvalid) ||
		errors.Is(err, fields.ErrValueInvalid) ||
		errors.Is(err, fields.ErrVersionRequired) {
		return http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()}
}

func parseIntQuery(value string, defaultValue int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return defaultValue
	}
	return parsed
}
