package fields_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/auth"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type recordingSink struct {
	records []interfaces.ActivityRecord
}

func (s *recordingSink) Log(_ context.Context, record interfaces.ActivityRecord) error {
	s.records = append(s.records, record)
	return nil
}

func newService(t *testing.T, repo fields.Repository, opts ...fields.ServiceOption) (fields.Service, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]fields.ServiceOption{fields.WithClock(clock.Now)}, opts...)
	return fields.NewService(repo, opts...), clock
}

func TestGetContentAbsentIsNotAnError(t *testing.T) {
	svc, _ := newService(t, fields.NewMemoryRepository())

	record, found, err := svc.GetContent(context.Background(), "home", "hero_title")
	if err != nil || found || record != nil {
		t.Fatalf("expected absent result, got %v %v %v", record, found, err)
	}
}

func TestGetContentRemoteFailureIsDistinct(t *testing.T) {
	svc, _ := newService(t, failingRepository{err: errors.New("connection refused")})

	_, found, err := svc.GetContent(context.Background(), "home", "hero_title")
	if found || !errors.Is(err, fields.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got found=%v err=%v", found, err)
	}
}

func TestSaveContentCreatesThenBacksUpBeforeOverwrite(t *testing.T) {
	repo := fields.NewMemoryRepository()
	sink := &recordingSink{}
	svc, clock := newService(t, repo, fields.WithActivitySink(sink))
	actor := uuid.New()
	ctx := context.Background()

	created, err := svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID: "home", ContentKey: "hero_title", Value: "V0", ContentType: fields.ContentTypeText, Actor: actor,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if versions, _ := repo.ListVersions(ctx, created.ID, 0); len(versions) != 0 {
		t.Fatalf("create must not write a version, got %d", len(versions))
	}

	clock.now = clock.now.Add(time.Minute)
	updated, err := svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID: "home", ContentKey: "hero_title", Value: "V1", ContentType: fields.ContentTypeText, Actor: actor,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || updated.ContentValue.String() != "V1" || !updated.UpdatedAt.Equal(clock.now) {
		t.Fatalf("unexpected live record %+v", updated)
	}

	versions, err := repo.ListVersions(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 1 || versions[0].ContentValue.String() != "V0" {
		t.Fatalf("expected one backup of V0, got %+v", versions)
	}
	if versions[0].VersionNumber != clock.now.UnixMilli() {
		t.Fatalf("expected wall clock version number, got %d", versions[0].VersionNumber)
	}

	if len(sink.records) != 2 || sink.records[0].Verb != "create" || sink.records[1].Verb != "update" {
		t.Fatalf("unexpected activity %+v", sink.records)
	}
	if sink.records[1].ActorID != actor || sink.records[1].ObjectID != created.ID.String() {
		t.Fatalf("unexpected activity record %+v", sink.records[1])
	}
}

func TestSaveContentVersionNumbersStayMonotonic(t *testing.T) {
	repo := fields.NewMemoryRepository()
	svc, _ := newService(t, repo)
	actor := uuid.New()
	ctx := context.Background()

	for _, value := range []string{"a", "b", "c", "d"} {
		if _, err := svc.SaveContent(ctx, fields.SaveContentRequest{
			PageID: "home", ContentKey: "k", Value: value, ContentType: fields.ContentTypeText, Actor: actor,
		}); err != nil {
			t.Fatalf("save %q: %v", value, err)
		}
	}

	versions, err := svc.ListVersions(ctx, "home", "k", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i-1].VersionNumber <= versions[i].VersionNumber {
			t.Fatalf("expected strictly decreasing numbers newest first, got %d then %d",
				versions[i-1].VersionNumber, versions[i].VersionNumber)
		}
	}
	if versions[0].ContentValue.String() != "c" {
		t.Fatalf("expected newest backup to hold c, got %s", versions[0].ContentValue)
	}
}

func TestSaveContentBackupFailureAbortsOverwrite(t *testing.T) {
	repo := fields.NewMemoryRepository()
	svc, _ := newService(t, repo)
	actor := uuid.New()
	ctx := context.Background()

	if _, err := svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID: "home", ContentKey: "k", Value: "V0", ContentType: fields.ContentTypeText, Actor: actor,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo.FailVersionWrites = errors.New("disk full")
	_, err := svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID: "home", ContentKey: "k", Value: "V1", ContentType: fields.ContentTypeText, Actor: actor,
	})
	if !errors.Is(err, fields.ErrBackupFailed) || !errors.Is(err, fields.ErrRemoteUnavailable) {
		t.Fatalf("expected backup failure, got %v", err)
	}

	record, _, _ := svc.GetContent(ctx, "home", "k")
	if record.ContentValue.String() != "V0" {
		t.Fatalf("live record must be unchanged, got %s", record.ContentValue)
	}
}

func TestSaveContentRequiresActor(t *testing.T) {
	repo := fields.NewMemoryRepository()
	svc, _ := newService(t, repo)
	ctx := context.Background()

	_, err := svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID: "home", ContentKey: "k", Value: "x", ContentType: fields.ContentTypeText,
	})
	if !errors.Is(err, fields.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, found, _ := svc.GetContent(ctx, "home", "k"); found {
		t.Fatal("unauthorized save must not create a record")
	}

	// The unauthorized check runs before any repository access.
	failing, _ := newService(t, failingRepository{err: errors.New("should not be called")})
	if _, err := failing.SaveContent(ctx, fields.SaveContentRequest{PageID: "home", ContentKey: "k"}); !errors.Is(err, fields.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before I/O, got %v", err)
	}
}

func TestSaveContentUsesContextActor(t *testing.T) {
	svc, _ := newService(t, fields.NewMemoryRepository())
	actor := interfaces.Actor{ID: uuid.New(), Subject: "coach"}
	ctx := auth.WithActor(context.Background(), actor)

	saved, err := svc.SaveContent(ctx, fields.SaveContentRequest{
		PageID: "home", ContentKey: "hero_image", Value: map[string]string{"src": "/a.jpg"}, ContentType: fields.ContentTypeImage,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.UpdatedBy != actor.ID {
		t.Fatalf("expected context actor, got %s", saved.UpdatedBy)
	}
}

func TestSaveContentValidatesInput(t *testing.T) {
	svc, _ := newService(t, fields.NewMemoryRepository())
	actor := uuid.New()
	ctx := context.Background()

	cases := []struct {
		name string
		req  fields.SaveContentRequest
		want error
	}{
		{"page", fields.SaveContentRequest{ContentKey: "k", ContentType: fields.ContentTypeText, Actor: actor}, fields.ErrPageIDRequired},
		{"key", fields.SaveContentRequest{PageID: "p", ContentType: fields.ContentTypeText, Actor: actor}, fields.ErrContentKeyRequired},
		{"type", fields.SaveContentRequest{PageID: "p", ContentKey: "k", ContentType: "video", Actor: actor}, fields.ErrContentTypeInvalid},
		{"value", fields.SaveContentRequest{PageID: "p", ContentKey: "k", ContentType: fields.ContentTypeText, Value: func() {}, Actor: actor}, fields.ErrValueInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SaveContent(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSaveContentPublishesEvent(t *testing.T) {
	svc, _ := newService(t, fields.NewMemoryRepository())
	var got []fields.Event
	svc.Subscribe(func(ev fields.Event) { got = append(got, ev) })

	_, err := svc.SaveContent(context.Background(), fields.SaveContentRequest{
		PageID: "home", ContentKey: "intro", Value: "**hi**", ContentType: fields.ContentTypeRichText, Actor: uuid.New(),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(got) != 1 || got[0].ContentKey != "intro" || got[0].Value.String() != "**hi**" || got[0].Type() != fields.EventFieldContentUpdated {
		t.Fatalf("unexpected events %+v", got)
	}
}

func TestRestoreVersion(t *testing.T) {
	repo := fields.NewMemoryRepository()
	svc, clock := newService(t, repo, fields.WithHistoryLimit(10))
	actor := uuid.New()
	ctx := context.Background()

	for _, value := range []string{"first", "second"} {
		clock.now = clock.now.Add(time.Second)
		if _, err := svc.SaveContent(ctx, fields.SaveContentRequest{
			PageID: "home", ContentKey: "k", Value: value, ContentType: fields.ContentTypeText, Actor: actor,
		}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	versions, _ := svc.ListVersions(ctx, "home", "k", 0)
	if len(versions) != 1 {
		t.Fatalf("expected one version, got %d", len(versions))
	}

	clock.now = clock.now.Add(time.Second)
	restored, err := svc.RestoreVersion(ctx, fields.RestoreVersionRequest{
		PageID: "home", ContentKey: "k", VersionNumber: versions[0].VersionNumber, Actor: actor,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ContentValue.String() != "first" {
		t.Fatalf("expected restored value, got %s", restored.ContentValue)
	}
	if versions, _ := svc.ListVersions(ctx, "home", "k", 0); len(versions) != 2 || versions[0].ContentValue.String() != "second" {
		t.Fatalf("restore must back up the replaced value, got %+v", versions)
	}

	if _, err := svc.RestoreVersion(ctx, fields.RestoreVersionRequest{PageID: "home", ContentKey: "k", VersionNumber: 1, Actor: actor}); !errors.Is(err, fields.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

type failingRepository struct {
	err error
}

func (f failingRepository) GetByKey(context.Context, string, string) (*fields.PageContent, error) {
	return nil, f.err
}
func (f failingRepository) ListByPage(context.Context, string) ([]*fields.PageContent, error) {
	return nil, f.err
}
func (f failingRepository) Create(context.Context, *fields.PageContent) (*fields.PageContent, error) {
	return nil, f.err
}
func (f failingRepository) Update(context.Context, *fields.PageContent) (*fields.PageContent, error) {
	return nil, f.err
}
func (f failingRepository) CreateVersion(context.Context, *fields.ContentVersion) (*fields.ContentVersion, error) {
	return nil, f.err
}
func (f failingRepository) LatestVersion(context.Context, uuid.UUID) (*fields.ContentVersion, error) {
	return nil, f.err
}
func (f failingRepository) GetVersion(context.Context, uuid.UUID, int64) (*fields.ContentVersion, error) {
	return nil, f.err
}
func (f failingRepository) ListVersions(context.Context, uuid.UUID, int) ([]*fields.ContentVersion, error) {
	return nil, f.err
}
