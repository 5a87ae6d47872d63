package openapi_test

import (
	"encoding/json"
	"testing"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/openapi"
)

func TestAddOperationDeclaresPathParameters(t *testing.T) {
	doc := openapi.NewDocument("Site content API", "1.0.0")
	doc.AddOperation("GET", "/api/content/{page}/{key}", openapi.Operation{
		OperationID: "getContent",
		Parameters:  []openapi.Parameter{{Name: "page", In: "path", Required: true, Schema: map[string]any{"type": "string", "minLength": 1}}},
		Responses:   map[string]openapi.Response{"200": {Description: "OK"}},
	})

	op, ok := doc.Paths["/api/content/{page}/{key}"]["get"]
	if !ok {
		t.Fatalf("expected lower-cased method entry, got %v", doc.Paths)
	}
	if len(op.Parameters) != 2 {
		t.Fatalf("expected page and key parameters, got %+v", op.Parameters)
	}
	if op.Parameters[0].Schema["minLength"] != 1 || op.Parameters[1].Name != "key" {
		t.Fatalf("declared parameter must be kept and key appended, got %+v", op.Parameters)
	}
}

func TestDocumentEncodesComponents(t *testing.T) {
	doc := openapi.NewDocument("Site content API", "1.0.0")
	doc.AddSchema("Section", map[string]any{"type": "object"})
	doc.AddSchema("", map[string]any{"type": "object"})
	doc.AddBearerAuth("bearerAuth")

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	components := decoded["components"].(map[string]any)
	if schemas := components["schemas"].(map[string]any); len(schemas) != 1 {
		t.Fatalf("expected one schema, got %v", schemas)
	}
	scheme := components["securitySchemes"].(map[string]any)["bearerAuth"].(map[string]any)
	if scheme["scheme"] != "bearer" {
		t.Fatalf("unexpected security scheme %v", scheme)
	}
	if ref := openapi.Ref("Section")["$ref"]; ref != "#/components/schemas/Section" {
		t.Fatalf("unexpected ref %v", ref)
	}
}
