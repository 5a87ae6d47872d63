// Package openapi builds the OpenAPI description served next to the site
// content API.
package openapi

import "strings"

// Document is a minimal OpenAPI 3 document.
type Document struct {
	OpenAPI    string                          `json:"openapi"`
	Info       Info                            `json:"info"`
	Paths      map[string]map[string]Operation `json:"paths"`
	Components Components                      `json:"components,omitempty"`
}

type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type Components struct {
	Schemas         map[string]any `json:"schemas,omitempty"`
	SecuritySchemes map[string]any `json:"securitySchemes,omitempty"`
}

// Operation describes one method on a path.
type Operation struct {
	Summary     string              `json:"summary"`
	OperationID string              `json:"operationId"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
	Security    []map[string][]any  `json:"security,omitempty"`
}

type Parameter struct {
	Name     string         `json:"name"`
	In       string         `json:"in"`
	Required bool           `json:"required,omitempty"`
	Schema   map[string]any `json:"schema"`
}

type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

type MediaType struct {
	Schema map[string]any `json:"schema"`
}

// NewDocument constructs an empty document.
func NewDocument(title, version string) *Document {
	return &Document{
		OpenAPI:    "3.0.3",
		Info:       Info{Title: title, Version: version},
		Paths:      map[string]map[string]Operation{},
		Components: Components{Schemas: map[string]any{}},
	}
}

// AddOperation registers op for method on path. Path parameters in {braces}
// are added as required string parameters when op does not declare them.
func (d *Document) AddOperation(method, path string, op Operation) {
	if d == nil || path == "" || method == "" {
		return
	}
	for _, name := range pathParams(path) {
		if !hasParam(op.Parameters, name) {
			op.Parameters = append(op.Parameters, Parameter{
				Name: name, In: "path", Required: true, Schema: map[string]any{"type": "string"},
			})
		}
	}
	if d.Paths[path] == nil {
		d.Paths[path] = map[string]Operation{}
	}
	d.Paths[path][strings.ToLower(method)] = op
}

// AddSchema registers a component schema.
func (d *Document) AddSchema(name string, schema map[string]any) {
	if d == nil || name == "" || schema == nil {
		return
	}
	if d.Components.Schemas == nil {
		d.Components.Schemas = map[string]any{}
	}
	d.Components.Schemas[name] = schema
}

// AddBearerAuth declares the bearer JWT security scheme.
func (d *Document) AddBearerAuth(name string) {
	if d == nil || name == "" {
		return
	}
	if d.Components.SecuritySchemes == nil {
		d.Components.SecuritySchemes = map[string]any{}
	}
	d.Components.SecuritySchemes[name] = map[string]any{
		"type": "http", "scheme": "bearer", "bearerFormat": "JWT",
	}
}

// Ref returns a schema reference to a registered component.
func Ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

// JSON wraps schema as an application/json media map.
func JSON(schema map[string]any) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: schema}}
}

func pathParams(path string) []string {
	var out []string
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			out = append(out, strings.TrimSuffix(strings.TrimPrefix(segment, "{"), "}"))
		}
	}
	return out
}

func hasParam(params []Parameter, name string) bool {
	for _, p := range params {
		if p.Name == name && p.In == "path" {
			return true
		}
	}
	return false
}
