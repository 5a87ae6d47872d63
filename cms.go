package cms

import (
	"net/http"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/binding"
	contentcmd "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/commands/content"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/di"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/legacy"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

// FieldService exports the remote field service contract.
type FieldService = fields.Service

// SectionStore exports the unified section store.
type SectionStore = *sections.Store

// LocalStore exports one context on the local key-value area.
type LocalStore = *localstore.Store

// SectionKind exports the closed set of section content kinds.
type SectionKind = sections.Kind

const (
	KindText     = sections.KindText
	KindImage    = sections.KindImage
	KindRichText = sections.KindRichText
	KindSection  = sections.KindSection
)

// SectionBinding exports the editable section view.
type SectionBinding = *binding.Section

// FieldBinding exports the editable remote field view.
type FieldBinding = *binding.Field

// MigrationReport exports the legacy migration summary.
type MigrationReport = legacy.Report

// Module represents the top level site content runtime facade.
type Module struct {
	container *di.Container
}

// New constructs a module using the provided configuration and optional DI
// overrides. The embedded SQL migrations are applied for database backends.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	options := append([]di.Option{di.WithMigrations(GetMigrationsFS())}, opts...)
	container, err := di.NewContainer(cfg, options...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Sections returns the unified section store.
func (m *Module) Sections() SectionStore {
	return m.container.SectionStore()
}

// Fields returns the remote field service.
func (m *Module) Fields() FieldService {
	return m.container.FieldService()
}

// LocalStore returns the server context on the local area.
func (m *Module) LocalStore() LocalStore {
	return m.container.LocalStore()
}

// MigrationReport returns the result of the startup legacy migration.
func (m *Module) MigrationReport() MigrationReport {
	return m.container.MigrationReport()
}

// Section binds an editable view to sectionID. Nil defaults fall back to the
// registered defaults.
func (m *Module) Section(sectionID string, kind SectionKind, defaults map[string]any) SectionBinding {
	return binding.NewSection(m.container.SectionStore(), sectionID, kind, defaults)
}

// Field binds an editable view to one remote field. Rich text is rendered with
// the module's markdown renderer.
func (m *Module) Field(pageID, contentKey string) FieldBinding {
	return binding.NewField(m.container.FieldService(), pageID, contentKey,
		binding.WithRenderer(m.container.MarkdownRenderer()))
}

// Handler returns the HTTP API.
func (m *Module) Handler() (http.Handler, error) {
	return m.container.Handler()
}

// Commands returns the go-command handlers for content operations.
func (m *Module) Commands() contentcmd.Handlers {
	return m.container.Commands()
}

// Close releases listeners and owned connections.
func (m *Module) Close() {
	if m == nil || m.container == nil {
		return
	}
	m.container.Close()
}
