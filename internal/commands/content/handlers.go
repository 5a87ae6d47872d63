// Package contentcmd exposes content operations as go-command messages.
package contentcmd

import (
	"context"
	"errors"
	"sync"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/commands"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/legacy"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

const (
	saveOperation          = "content.save"
	restoreOperation       = "content.restore_version"
	migrateOperation       = "content.migrate_legacy"
	setSectionOperation    = "sections.set"
	deleteSectionOperation = "sections.delete"
)

var (
	_ command.Commander[SaveContentCommand]    = (*SaveContentHandler)(nil)
	_ command.Commander[RestoreVersionCommand] = (*RestoreVersionHandler)(nil)
	_ command.Commander[MigrateLegacyCommand]  = (*MigrateLegacyHandler)(nil)
	_ command.Commander[SetSectionCommand]     = (*SetSectionHandler)(nil)
	_ command.Commander[DeleteSectionCommand]  = (*DeleteSectionHandler)(nil)
)

// SectionWriter is the part of the section store the section commands use.
type SectionWriter interface {
	Set(sectionID string, kind sections.Kind, content map[string]any) error
	Delete(sectionID string) error
}

// LegacyMigrator runs the legacy layout migration.
type LegacyMigrator interface {
	Migrate() (legacy.Report, error)
}

// fieldInputErrors are the service errors caused by the message itself.
var fieldInputErrors = []error{
	fields.ErrPageIDRequired,
	fields.ErrContentKeyRequired,
	fields.ErrContentTypeInvalid,
	fields.ErrValueInvalid,
	fields.ErrVersionRequired,
	fields.ErrVersionNotFound,
}

func classifyFieldError(err error) error {
	for _, target := range fieldInputErrors {
		if errors.Is(err, target) {
			return commands.InvalidInput(err)
		}
	}
	return err
}

// SaveContentHandler executes SaveContentCommand.
type SaveContentHandler struct {
	inner *commands.Handler[SaveContentCommand]
}

// NewSaveContentHandler binds the handler to the field service.
func NewSaveContentHandler(service fields.Service, logger interfaces.Logger, opts ...commands.HandlerOption[SaveContentCommand]) *SaveContentHandler {
	baseLogger := commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg SaveContentCommand) error {
		saved, err := service.SaveContent(ctx, fields.SaveContentRequest{
			PageID:      msg.PageID,
			ContentKey:  msg.ContentKey,
			Value:       msg.Value,
			ContentType: fields.ContentType(msg.ContentType),
			Actor:       msg.ActorID,
		})
		if err != nil {
			return classifyFieldError(err)
		}
		baseLogger.Debug("content.command.save.completed", "content_id", saved.ID)
		return nil
	}

	handlerOpts := []commands.HandlerOption[SaveContentCommand]{
		commands.WithLogger[SaveContentCommand](baseLogger),
		commands.WithOperation[SaveContentCommand](saveOperation),
		commands.WithMessageFields(func(msg SaveContentCommand) map[string]any {
			return map[string]any{
				"page_id":      msg.PageID,
				"content_key":  msg.ContentKey,
				"content_type": msg.ContentType,
			}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[SaveContentCommand]()),
	}
	return &SaveContentHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[SaveContentCommand].
func (h *SaveContentHandler) Execute(ctx context.Context, msg SaveContentCommand) error {
	return h.inner.Execute(ctx, msg)
}

// RestoreVersionHandler executes RestoreVersionCommand.
type RestoreVersionHandler struct {
	inner *commands.Handler[RestoreVersionCommand]
}

// NewRestoreVersionHandler binds the handler to the field service.
func NewRestoreVersionHandler(service fields.Service, logger interfaces.Logger, opts ...commands.HandlerOption[RestoreVersionCommand]) *RestoreVersionHandler {
	exec := func(ctx context.Context, msg RestoreVersionCommand) error {
		_, err := service.RestoreVersion(ctx, fields.RestoreVersionRequest{
			PageID:        msg.PageID,
			ContentKey:    msg.ContentKey,
			VersionNumber: msg.VersionNumber,
			Actor:         msg.ActorID,
		})
		return classifyFieldError(err)
	}

	handlerOpts := []commands.HandlerOption[RestoreVersionCommand]{
		commands.WithLogger[RestoreVersionCommand](logger),
		commands.WithOperation[RestoreVersionCommand](restoreOperation),
		commands.WithMessageFields(func(msg RestoreVersionCommand) map[string]any {
			return map[string]any{
				"page_id":        msg.PageID,
				"content_key":    msg.ContentKey,
				"version_number": msg.VersionNumber,
			}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[RestoreVersionCommand]()),
	}
	return &RestoreVersionHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[RestoreVersionCommand].
func (h *RestoreVersionHandler) Execute(ctx context.Context, msg RestoreVersionCommand) error {
	return h.inner.Execute(ctx, msg)
}

// MigrateLegacyHandler executes MigrateLegacyCommand and keeps the last
// successful report.
type MigrateLegacyHandler struct {
	inner *commands.Handler[MigrateLegacyCommand]

	mu     sync.Mutex
	report legacy.Report
}

// NewMigrateLegacyHandler binds the handler to migrator.
func NewMigrateLegacyHandler(migrator LegacyMigrator, logger interfaces.Logger, opts ...commands.HandlerOption[MigrateLegacyCommand]) *MigrateLegacyHandler {
	baseLogger := commands.EnsureLogger(logger)
	h := &MigrateLegacyHandler{}

	exec := func(ctx context.Context, _ MigrateLegacyCommand) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := migrator.Migrate()
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.report = report
		h.mu.Unlock()

		logging.WithFields(baseLogger, map[string]any{
			"migrated_count":  len(report.Migrated),
			"skipped_count":   len(report.Skipped),
			"already_current": report.AlreadyCurrent,
		}).Info("content.command.migrate_legacy.completed")
		return nil
	}

	handlerOpts := []commands.HandlerOption[MigrateLegacyCommand]{
		commands.WithLogger[MigrateLegacyCommand](baseLogger),
		commands.WithOperation[MigrateLegacyCommand](migrateOperation),
		commands.WithTelemetry(commands.DefaultTelemetry[MigrateLegacyCommand]()),
	}
	h.inner = commands.NewHandler(exec, append(handlerOpts, opts...)...)
	return h
}

// Execute satisfies command.Commander[MigrateLegacyCommand].
func (h *MigrateLegacyHandler) Execute(ctx context.Context, msg MigrateLegacyCommand) error {
	return h.inner.Execute(ctx, msg)
}

// Report returns the report of the last successful run.
func (h *MigrateLegacyHandler) Report() legacy.Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

// SetSectionHandler executes SetSectionCommand.
type SetSectionHandler struct {
	inner *commands.Handler[SetSectionCommand]
}

// NewSetSectionHandler binds the handler to the section store.
func NewSetSectionHandler(store SectionWriter, logger interfaces.Logger, opts ...commands.HandlerOption[SetSectionCommand]) *SetSectionHandler {
	exec := func(_ context.Context, msg SetSectionCommand) error {
		kind, _ := sections.ParseKind(msg.Kind)
		err := store.Set(msg.SectionID, kind, msg.Content)
		if sections.IsValidationError(err) {
			return commands.InvalidInput(err)
		}
		return err
	}

	handlerOpts := []commands.HandlerOption[SetSectionCommand]{
		commands.WithLogger[SetSectionCommand](logger),
		commands.WithOperation[SetSectionCommand](setSectionOperation),
		commands.WithMessageFields(func(msg SetSectionCommand) map[string]any {
			return map[string]any{"section_id": msg.SectionID, "kind": msg.Kind}
		}),
	}
	return &SetSectionHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[SetSectionCommand].
func (h *SetSectionHandler) Execute(ctx context.Context, msg SetSectionCommand) error {
	return h.inner.Execute(ctx, msg)
}

// DeleteSectionHandler executes DeleteSectionCommand.
type DeleteSectionHandler struct {
	inner *commands.Handler[DeleteSectionCommand]
}

// NewDeleteSectionHandler binds the handler to the section store.
func NewDeleteSectionHandler(store SectionWriter, logger interfaces.Logger, opts ...commands.HandlerOption[DeleteSectionCommand]) *DeleteSectionHandler {
	exec := func(_ context.Context, msg DeleteSectionCommand) error {
		return store.Delete(msg.SectionID)
	}

	handlerOpts := []commands.HandlerOption[DeleteSectionCommand]{
		commands.WithLogger[DeleteSectionCommand](logger),
		commands.WithOperation[DeleteSectionCommand](deleteSectionOperation),
		commands.WithMessageFields(func(msg DeleteSectionCommand) map[string]any {
			return map[string]any{"section_id": msg.SectionID}
		}),
	}
	return &DeleteSectionHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute satisfies command.Commander[DeleteSectionCommand].
func (h *DeleteSectionHandler) Execute(ctx context.Context, msg DeleteSectionCommand) error {
	return h.inner.Execute(ctx, msg)
}

// Handlers groups the content command handlers. Nil members are skipped by
// Subscribe.
type Handlers struct {
	Save          *SaveContentHandler
	Restore       *RestoreVersionHandler
	MigrateLegacy *MigrateLegacyHandler
	SetSection    *SetSectionHandler
	DeleteSection *DeleteSectionHandler
}

// Subscribe registers the handlers on the go-command dispatcher and returns a
// function that removes them again.
func (h Handlers) Subscribe() func() {
	var unsubscribers []func()
	if h.Save != nil {
		sub := dispatcher.SubscribeCommand(h.Save)
		unsubscribers = append(unsubscribers, sub.Unsubscribe)
	}
	if h.Restore != nil {
		sub := dispatcher.SubscribeCommand(h.Restore)
		unsubscribers = append(unsubscribers, sub.Unsubscribe)
	}
	if h.MigrateLegacy != nil {
		sub := dispatcher.SubscribeCommand(h.MigrateLegacy)
		unsubscribers = append(unsubscribers, sub.Unsubscribe)
	}
	if h.SetSection != nil {
		sub := dispatcher.SubscribeCommand(h.SetSection)
		unsubscribers = append(unsubscribers, sub.Unsubscribe)
	}
	if h.DeleteSection != nil {
		sub := dispatcher.SubscribeCommand(h.DeleteSection)
		unsubscribers = append(unsubscribers, sub.Unsubscribe)
	}
	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}
