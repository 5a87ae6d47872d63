package contentcmd_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-command/dispatcher"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	contentcmd "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/commands/content"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/legacy"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

func TestSaveContentHandlerPersists(t *testing.T) {
	svc := fields.NewService(fields.NewMemoryRepository())
	handler := contentcmd.NewSaveContentHandler(svc, nil)

	err := handler.Execute(context.Background(), contentcmd.SaveContentCommand{
		PageID:      "home",
		ContentKey:  "hero_title",
		Value:       "Grow with intention",
		ContentType: "text",
		ActorID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	record, found, err := svc.GetContent(context.Background(), "home", "hero_title")
	if err != nil || !found || record.ContentValue.String() != "Grow with intention" {
		t.Fatalf("unexpected record %+v found=%v err=%v", record, found, err)
	}
}

func TestSaveContentHandlerRejectsInvalidMessages(t *testing.T) {
	svc := fields.NewService(fields.NewMemoryRepository())
	handler := contentcmd.NewSaveContentHandler(svc, nil)

	cases := map[string]contentcmd.SaveContentCommand{
		"missing page":   {ContentKey: "k", ContentType: "text", ActorID: uuid.New()},
		"blank key":      {PageID: "home", ContentKey: "  ", ContentType: "text", ActorID: uuid.New()},
		"unknown type":   {PageID: "home", ContentKey: "k", ContentType: "video", ActorID: uuid.New()},
		"missing type":   {PageID: "home", ContentKey: "k", ActorID: uuid.New()},
		"bad value type": {PageID: "home", ContentKey: "k", ContentType: "text", Value: make(chan int), ActorID: uuid.New()},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := handler.Execute(context.Background(), msg)
			if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
				t.Fatalf("expected validation category, got %v", err)
			}
		})
	}
}

func TestSaveContentHandlerUnauthorizedIsCommandFailure(t *testing.T) {
	svc := fields.NewService(fields.NewMemoryRepository())
	handler := contentcmd.NewSaveContentHandler(svc, nil)

	err := handler.Execute(context.Background(), contentcmd.SaveContentCommand{
		PageID: "home", ContentKey: "k", ContentType: "text", Value: "x",
	})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if _, found, _ := svc.GetContent(context.Background(), "home", "k"); found {
		t.Fatal("unauthorized command must not persist")
	}
}

func TestRestoreVersionHandler(t *testing.T) {
	ctx := context.Background()
	svc := fields.NewService(fields.NewMemoryRepository())
	actor := uuid.New()
	for _, value := range []string{"v1", "v2"} {
		if _, err := svc.SaveContent(ctx, fields.SaveContentRequest{
			PageID: "home", ContentKey: "k", Value: value, ContentType: fields.ContentTypeText, Actor: actor,
		}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	versions, err := svc.ListVersions(ctx, "home", "k", 0)
	if err != nil || len(versions) != 1 {
		t.Fatalf("expected one version, got %d err=%v", len(versions), err)
	}

	handler := contentcmd.NewRestoreVersionHandler(svc, nil)
	if err := handler.Execute(ctx, contentcmd.RestoreVersionCommand{PageID: "home", ContentKey: "k", ActorID: actor}); !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation error for missing version, got %v", err)
	}
	if err := handler.Execute(ctx, contentcmd.RestoreVersionCommand{
		PageID: "home", ContentKey: "k", VersionNumber: versions[0].VersionNumber, ActorID: actor,
	}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	record, _, _ := svc.GetContent(ctx, "home", "k")
	if record.ContentValue.String() != "v1" {
		t.Fatalf("expected restored value, got %s", record.ContentValue)
	}
}

func TestSectionCommandsThroughDispatcher(t *testing.T) {
	area := localstore.NewArea(nil)
	store := sections.NewStore(area.Open("admin"))
	t.Cleanup(store.Close)

	unsubscribe := contentcmd.Handlers{
		SetSection:    contentcmd.NewSetSectionHandler(store, nil),
		DeleteSection: contentcmd.NewDeleteSectionHandler(store, nil),
	}.Subscribe()
	t.Cleanup(unsubscribe)

	ctx := context.Background()
	if err := dispatcher.Dispatch(ctx, contentcmd.SetSectionCommand{
		SectionID: "hero", Kind: "text", Content: map[string]any{"title": "Dispatched"},
	}); err != nil {
		t.Fatalf("dispatch set: %v", err)
	}
	if got := store.Get("hero", nil)["title"]; got != "Dispatched" {
		t.Fatalf("expected dispatched title, got %v", got)
	}

	err := dispatcher.Dispatch(ctx, contentcmd.SetSectionCommand{
		SectionID: "hero", Kind: "rich_text", Content: map[string]any{"body": 3},
	})
	if err == nil {
		t.Fatal("expected invalid rich_text content to fail")
	}

	if err := dispatcher.Dispatch(ctx, contentcmd.DeleteSectionCommand{SectionID: "hero"}); err != nil {
		t.Fatalf("dispatch delete: %v", err)
	}
	if ids := store.List(); len(ids) != 0 {
		t.Fatalf("expected no overrides, got %v", ids)
	}
}

func TestSetSectionHandlerClassifiesInvalidContent(t *testing.T) {
	store := sections.NewStore(localstore.NewArea(nil).Open("admin"))
	t.Cleanup(store.Close)
	handler := contentcmd.NewSetSectionHandler(store, nil)

	err := handler.Execute(context.Background(), contentcmd.SetSectionCommand{
		SectionID: "hero", Kind: "image", Content: map[string]any{"image_alt": "no source"},
	})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}

	err = handler.Execute(context.Background(), contentcmd.SetSectionCommand{SectionID: "hero", Kind: "carousel", Content: map[string]any{}})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category for unknown kind, got %v", err)
	}
}

func TestMigrateLegacyHandlerKeepsReport(t *testing.T) {
	backend := localstore.NewMemoryBackend(0)
	if err := backend.Set(context.Background(), "content_hero", []byte(`{"title":"Legacy"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	local := localstore.NewArea(backend).Open("boot")
	handler := contentcmd.NewMigrateLegacyHandler(legacy.NewMigrator(local), nil)

	if err := handler.Execute(context.Background(), contentcmd.MigrateLegacyCommand{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	report := handler.Report()
	if len(report.Migrated) != 1 || report.Migrated[0] != "hero" {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, ok := local.Read("section_hero"); !ok {
		t.Fatal("expected unified entry after migration")
	}
}
