package fields

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ContentType is the closed set of field value variants.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeRichText ContentType = "rich_text"
)

// Valid reports whether t is a supported content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeImage, ContentTypeRichText:
		return true
	}
	return false
}

// Value is a JSON document stored in a jsonb (postgres) or text (sqlite)
// column.
type Value json.RawMessage

// NewValue encodes v as a Value.
func NewValue(v any) (Value, error) {
	switch typed := v.(type) {
	case Value:
		v = json.RawMessage(typed)
	case *Value:
		if typed != nil {
			v = json.RawMessage(*typed)
		}
	}
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("fields: invalid json value")
		}
		return Value(bytes.Clone(raw)), nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Value(encoded), nil
}

// Decode unmarshals the value into target.
func (v Value) Decode(target any) error {
	if len(v) == 0 {
		return json.Unmarshal([]byte("null"), target)
	}
	return json.Unmarshal(v, target)
}

// String returns the value as a string when it holds a JSON string, and the
// raw document otherwise.
func (v Value) String() string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Value(bytes.Clone(data))
	return nil
}

func (v Value) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "null", nil
	}
	return string(v), nil
}

func (v *Value) Scan(src any) error {
	switch typed := src.(type) {
	case nil:
		*v = nil
	case []byte:
		*v = Value(bytes.Clone(typed))
	case string:
		*v = Value(typed)
	default:
		return fmt.Errorf("fields: cannot scan %T into Value", src)
	}
	return nil
}

// PageContent is the live value of one (page_id, content_key) field.
type PageContent struct {
	bun.BaseModel `bun:"table:page_content,alias:pc"`

	ID           uuid.UUID   `bun:",pk,type:uuid"                 json:"id"`
	PageID       string      `bun:"page_id,notnull"               json:"page_id"`
	ContentKey   string      `bun:"content_key,notnull"           json:"content_key"`
	ContentValue Value       `bun:"content_value,type:jsonb,notnull" json:"content_value"`
	ContentType  ContentType `bun:"content_type,notnull"          json:"content_type"`
	UpdatedAt    time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
	UpdatedBy    uuid.UUID   `bun:"updated_by,type:uuid"          json:"updated_by"`
}

// ContentVersion is an immutable backup of a PageContent value taken before
// an overwrite.
type ContentVersion struct {
	bun.BaseModel `bun:"table:content_versions,alias:cv"`

	ID            uuid.UUID `bun:",pk,type:uuid"             json:"id"`
	ContentID     uuid.UUID `bun:"content_id,notnull,type:uuid" json:"content_id"`
	VersionNumber int64     `bun:"version_number,notnull"    json:"version_number"`
	ContentValue  Value     `bun:"content_value,type:jsonb,notnull" json:"content_value"`
	CreatedBy     uuid.UUID `bun:"created_by,type:uuid"      json:"created_by"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Event is published after a successful save.
type Event struct {
	PageID      string      `json:"pageId"`
	ContentKey  string      `json:"contentKey"`
	Value       Value       `json:"value"`
	ContentType ContentType `json:"contentType"`
}

// EventFieldContentUpdated names Event.
const EventFieldContentUpdated = "fieldContentUpdated"

// Type returns the event name.
func (Event) Type() string { return EventFieldContentUpdated }

func clonePageContent(src *PageContent) *PageContent {
	if src == nil {
		return nil
	}
	copied := *src
	copied.ContentValue = Value(bytes.Clone(src.ContentValue))
	return &copied
}

func cloneVersion(src *ContentVersion) *ContentVersion {
	if src == nil {
		return nil
	}
	copied := *src
	copied.ContentValue = Value(bytes.Clone(src.ContentValue))
	return &copied
}
