package contentcmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

const (
	saveContentMessageType    = "cms.content.save"
	restoreVersionMessageType = "cms.content.restore_version"
	migrateLegacyMessageType  = "cms.content.migrate_legacy"
	setSectionMessageType     = "cms.sections.set"
	deleteSectionMessageType  = "cms.sections.delete"
)

// SaveContentCommand writes one remote field.
type SaveContentCommand struct {
	PageID      string    `json:"page_id"`
	ContentKey  string    `json:"content_key"`
	Value       any       `json:"value"`
	ContentType string    `json:"content_type"`
	ActorID     uuid.UUID `json:"actor_id,omitempty"`
}

// Type implements command.Message.
func (SaveContentCommand) Type() string { return saveContentMessageType }

// Validate checks addressing and content type before the handler runs.
func (cmd SaveContentCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.PageID, validation.Required, validation.By(notBlank("cms.content.save.page_id_required", "page id is required"))),
		validation.Field(&cmd.ContentKey, validation.Required, validation.By(notBlank("cms.content.save.content_key_required", "content key is required"))),
		validation.Field(&cmd.ContentType, validation.Required, validation.In(contentTypes()...)),
	)
}

// RestoreVersionCommand re-saves a stored field version.
type RestoreVersionCommand struct {
	PageID        string    `json:"page_id"`
	ContentKey    string    `json:"content_key"`
	VersionNumber int64     `json:"version_number"`
	ActorID       uuid.UUID `json:"actor_id,omitempty"`
}

// Type implements command.Message.
func (RestoreVersionCommand) Type() string { return restoreVersionMessageType }

func (cmd RestoreVersionCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.PageID, validation.Required),
		validation.Field(&cmd.ContentKey, validation.Required),
		validation.Field(&cmd.VersionNumber, validation.Required, validation.Min(int64(1))),
	)
}

// MigrateLegacyCommand upgrades legacy local storage layouts.
type MigrateLegacyCommand struct{}

// Type implements command.Message.
func (MigrateLegacyCommand) Type() string { return migrateLegacyMessageType }

func (MigrateLegacyCommand) Validate() error { return nil }

// SetSectionCommand writes a section override.
type SetSectionCommand struct {
	SectionID string         `json:"section_id"`
	Kind      string         `json:"kind"`
	Content   map[string]any `json:"content"`
}

// Type implements command.Message.
func (SetSectionCommand) Type() string { return setSectionMessageType }

func (cmd SetSectionCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.SectionID, validation.Required, validation.By(notBlank("cms.sections.set.section_id_required", "section id is required"))),
		validation.Field(&cmd.Kind, validation.Required, validation.In(sectionKinds()...)),
		validation.Field(&cmd.Content, validation.NotNil),
	)
}

// DeleteSectionCommand removes a section override.
type DeleteSectionCommand struct {
	SectionID string `json:"section_id"`
}

// Type implements command.Message.
func (DeleteSectionCommand) Type() string { return deleteSectionMessageType }

func (cmd DeleteSectionCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.SectionID, validation.Required, validation.By(notBlank("cms.sections.delete.section_id_required", "section id is required"))),
	)
}

func notBlank(code, message string) validation.RuleFunc {
	return func(value any) error {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return validation.NewError(code, message)
		}
		return nil
	}
}

func contentTypes() []any {
	return []any{
		string(fields.ContentTypeText),
		string(fields.ContentTypeImage),
		string(fields.ContentTypeRichText),
	}
}

func sectionKinds() []any {
	kinds := sections.Kinds()
	out := make([]any, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}
