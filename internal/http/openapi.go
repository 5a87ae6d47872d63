package http

import (
	"net/http"
	"strconv"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/openapi"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

const bearerScheme = "bearerAuth"

// Describe returns the OpenAPI document for the routes Register attaches.
func (api *API) Describe() *openapi.Document {
	doc := openapi.NewDocument("Site content API", "1.0.0")
	doc.AddBearerAuth(bearerScheme)

	kinds := make([]any, 0, len(sections.Kinds()))
	for _, kind := range sections.Kinds() {
		kinds = append(kinds, string(kind))
	}
	doc.AddSchema("Error", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"error":   map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
			"issues":  map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
	})
	doc.AddSchema("Section", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sectionId": map[string]any{"type": "string"},
			"content":   map[string]any{"type": "object"},
		},
	})
	doc.AddSchema("SectionUpdate", map[string]any{
		"type":     "object",
		"required": []any{"content"},
		"properties": map[string]any{
			"kind":    map[string]any{"type": "string", "enum": kinds},
			"content": map[string]any{"type": "object"},
		},
	})
	doc.AddSchema("PageContent", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":            map[string]any{"type": "string", "format": "uuid"},
			"page_id":       map[string]any{"type": "string"},
			"content_key":   map[string]any{"type": "string"},
			"content_value": map[string]any{},
			"content_type":  map[string]any{"type": "string"},
			"updated_at":    map[string]any{"type": "string", "format": "date-time"},
			"updated_by":    map[string]any{"type": "string", "format": "uuid"},
		},
	})
	doc.AddSchema("ContentUpdate", map[string]any{
		"type":     "object",
		"required": []any{"value", "content_type"},
		"properties": map[string]any{
			"value": map[string]any{},
			"content_type": map[string]any{"type": "string", "enum": []any{
				string(fields.ContentTypeText), string(fields.ContentTypeRichText), string(fields.ContentTypeImage),
			}},
		},
	})
	doc.AddSchema("ContentVersion", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":             map[string]any{"type": "string", "format": "uuid"},
			"content_id":     map[string]any{"type": "string", "format": "uuid"},
			"version_number": map[string]any{"type": "integer", "format": "int64"},
			"content_value":  map[string]any{},
			"created_by":     map[string]any{"type": "string", "format": "uuid"},
			"created_at":     map[string]any{"type": "string", "format": "date-time"},
		},
	})

	secured := []map[string][]any{{bearerScheme: {}}}
	errorBody := openapi.JSON(openapi.Ref("Error"))
	ok := func(schema map[string]any) map[string]openapi.Response {
		return map[string]openapi.Response{"200": {Description: "OK", Content: openapi.JSON(schema)}}
	}
	withErrors := func(responses map[string]openapi.Response, codes ...int) map[string]openapi.Response {
		for _, code := range codes {
			responses[strconv.Itoa(code)] = openapi.Response{Description: http.StatusText(code), Content: errorBody}
		}
		return responses
	}

	base := joinPath(api.basePath, "")
	sectionsPath := joinPath(base, "sections")
	doc.AddOperation(http.MethodGet, sectionsPath, openapi.Operation{
		Summary: "List persisted section overrides", OperationID: "listSections",
		Responses: ok(map[string]any{"type": "object", "properties": map[string]any{
			"sections": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}}),
	})
	doc.AddOperation(http.MethodGet, sectionsPath+"/{id}", openapi.Operation{
		Summary: "Read a section merged over its defaults", OperationID: "getSection",
		Responses: ok(openapi.Ref("Section")),
	})
	doc.AddOperation(http.MethodPut, sectionsPath+"/{id}", openapi.Operation{
		Summary: "Write a section override", OperationID: "setSection",
		RequestBody: &openapi.RequestBody{Required: true, Content: openapi.JSON(openapi.Ref("SectionUpdate"))},
		Responses:   withErrors(ok(openapi.Ref("Section")), 400, 401, 422, 507),
		Security:    secured,
	})
	doc.AddOperation(http.MethodDelete, sectionsPath+"/{id}", openapi.Operation{
		Summary: "Remove a section override", OperationID: "deleteSection",
		Responses: withErrors(map[string]openapi.Response{"204": {Description: "Deleted"}}, 401),
		Security:  secured,
	})

	contentPath := joinPath(base, "content")
	doc.AddOperation(http.MethodGet, contentPath+"/{page}", openapi.Operation{
		Summary: "List the fields of a page", OperationID: "listPageContent",
		Responses: withErrors(ok(map[string]any{"type": "array", "items": openapi.Ref("PageContent")}), 503),
	})
	doc.AddOperation(http.MethodGet, contentPath+"/{page}/{key}", openapi.Operation{
		Summary: "Read one field", OperationID: "getContent",
		Responses: withErrors(ok(openapi.Ref("PageContent")), 404, 503),
	})
	doc.AddOperation(http.MethodPut, contentPath+"/{page}/{key}", openapi.Operation{
		Summary: "Save one field, backing up the previous value", OperationID: "saveContent",
		RequestBody: &openapi.RequestBody{Required: true, Content: openapi.JSON(openapi.Ref("ContentUpdate"))},
		Responses:   withErrors(ok(openapi.Ref("PageContent")), 400, 401, 503),
		Security:    secured,
	})
	doc.AddOperation(http.MethodGet, contentPath+"/{page}/{key}/versions", openapi.Operation{
		Summary: "List backups newest first", OperationID: "listContentVersions",
		Parameters: []openapi.Parameter{{Name: "limit", In: "query", Schema: map[string]any{"type": "integer"}}},
		Responses:  withErrors(ok(map[string]any{"type": "array", "items": openapi.Ref("ContentVersion")}), 503),
	})
	doc.AddOperation(http.MethodPost, contentPath+"/{page}/{key}/versions/{version}/restore", openapi.Operation{
		Summary: "Restore a backup as the live value", OperationID: "restoreContentVersion",
		Responses: withErrors(ok(openapi.Ref("PageContent")), 400, 401, 404, 503),
		Security:  secured,
	})

	if api.stream {
		doc.AddOperation(http.MethodGet, joinPath(base, "events"), openapi.Operation{
			Summary: "Websocket stream of section and field updates", OperationID: "streamEvents",
			Responses: map[string]openapi.Response{"101": {Description: "Switching Protocols"}},
		})
	}
	return doc
}

func (api *API) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.Describe())
}
