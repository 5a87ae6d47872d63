// Package fields persists individual page fields addressed by
// (page_id, content_key) and keeps a backup of every overwritten value.
package fields

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/auth"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/events"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/identity"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// Service is the remote field content API.
//
// Concurrent saves to the same (page_id, content_key) are not serialized:
// the last overwrite wins and each racing save backs up whatever value it
// read.
type Service interface {
	// GetContent reports (nil, false, nil) when the field does not exist. A
	// non-nil error always means the repository could not be reached.
	GetContent(ctx context.Context, pageID, contentKey string) (*PageContent, bool, error)
	ListPage(ctx context.Context, pageID string) ([]*PageContent, error)
	SaveContent(ctx context.Context, req SaveContentRequest) (*PageContent, error)
	ListVersions(ctx context.Context, pageID, contentKey string, limit int) ([]*ContentVersion, error)
	RestoreVersion(ctx context.Context, req RestoreVersionRequest) (*PageContent, error)
	Subscribe(fn func(Event)) func()
}

// SaveContentRequest carries a field write. Actor may be left nil when the
// context carries an authenticated actor.
type SaveContentRequest struct {
	PageID      string
	ContentKey  string
	Value       any
	ContentType ContentType
	Actor       uuid.UUID
}

// RestoreVersionRequest re-saves a stored version as the live value.
type RestoreVersionRequest struct {
	PageID        string
	ContentKey    string
	VersionNumber int64
	Actor         uuid.UUID
}

var (
	ErrUnauthorized       = errors.New("fields: authenticated actor required")
	ErrRemoteUnavailable  = errors.New("fields: remote content unavailable")
	ErrPageIDRequired     = errors.New("fields: page id is required")
	ErrContentKeyRequired = errors.New("fields: content key is required")
	ErrContentTypeInvalid = errors.New("fields: content type must be text, image or rich_text")
	ErrValueInvalid       = errors.New("fields: value is not serializable")
	ErrBackupFailed       = errors.New("fields: backup version could not be written")
	ErrVersionRequired    = errors.New("fields: version number is required")
	ErrVersionNotFound    = errors.New("fields: version not found")
)

// ServiceOption configures the service at construction time.
type ServiceOption func(*service)

// WithClock overrides the clock used to stamp records and version numbers.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

type IDGenerator func() uuid.UUID

func WithIDGenerator(generator IDGenerator) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActorResolver overrides how the actor is read from the context.
func WithActorResolver(resolver interfaces.ActorResolver) ServiceOption {
	return func(s *service) {
		if resolver != nil {
			s.actors = resolver
		}
	}
}

// WithActivitySink reports each save as a go-users activity record.
func WithActivitySink(sink interfaces.ActivitySink) ServiceOption {
	return func(s *service) {
		s.activity = sink
	}
}

// WithHistoryLimit caps ListVersions when the caller passes no limit.
func WithHistoryLimit(limit int) ServiceOption {
	return func(s *service) {
		if limit < 0 {
			limit = 0
		}
		s.historyLimit = limit
	}
}

// WithDeterministicIDs derives new record ids from the page and key.
func WithDeterministicIDs() ServiceOption {
	return func(s *service) {
		s.recordID = identity.PageContentUUID
	}
}

type service struct {
	repo         Repository
	now          func() time.Time
	id           IDGenerator
	recordID     func(pageID, contentKey string) uuid.UUID
	logger       interfaces.Logger
	actors       interfaces.ActorResolver
	activity     interfaces.ActivitySink
	historyLimit int
	bus          events.Bus[Event]
}

// NewService constructs the field content service.
func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		now:    time.Now,
		id:     uuid.New,
		logger: logging.NoOp(),
		actors: auth.ContextResolver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recordID == nil {
		s.recordID = func(string, string) uuid.UUID { return s.id() }
	}
	return s
}

// keyLookup is implemented by repositories that can serve point reads from a
// cache.
type keyLookup interface {
	LookupByKey(ctx context.Context, pageID, contentKey string) (*PageContent, error)
}

func (s *service) GetContent(ctx context.Context, pageID, contentKey string) (*PageContent, bool, error) {
	pageID, contentKey = strings.TrimSpace(pageID), strings.TrimSpace(contentKey)
	if pageID == "" {
		return nil, false, ErrPageIDRequired
	}
	if contentKey == "" {
		return nil, false, ErrContentKeyRequired
	}

	lookup := s.repo.GetByKey
	if cached, ok := s.repo.(keyLookup); ok {
		lookup = cached.LookupByKey
	}
	record, err := lookup(ctx, pageID, contentKey)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		s.logger.Warn("fields.get.failed", "page_id", pageID, "content_key", contentKey, "error", err)
		return nil, false, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return record, true, nil
}

func (s *service) ListPage(ctx context.Context, pageID string) ([]*PageContent, error) {
	if strings.TrimSpace(pageID) == "" {
		return nil, ErrPageIDRequired
	}
	records, err := s.repo.ListByPage(ctx, strings.TrimSpace(pageID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return records, nil
}

// SaveContent backs up the current value before overwriting it. When the
// backup cannot be written the live record is left untouched.
func (s *service) SaveContent(ctx context.Context, req SaveContentRequest) (*PageContent, error) {
	actor := req.Actor
	if actor == uuid.Nil {
		if resolved, ok := s.actors.ResolveActor(ctx); ok {
			actor = resolved.ID
		}
	}
	if actor == uuid.Nil {
		return nil, ErrUnauthorized
	}

	pageID, key := strings.TrimSpace(req.PageID), strings.TrimSpace(req.ContentKey)
	if pageID == "" {
		return nil, ErrPageIDRequired
	}
	if key == "" {
		return nil, ErrContentKeyRequired
	}
	if !req.ContentType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrContentTypeInvalid, req.ContentType)
	}
	value, err := NewValue(req.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValueInvalid, err)
	}

	logger := logging.WithFields(s.logger, map[string]any{
		"page_id":     pageID,
		"content_key": key,
		"actor":       actor,
	})
	now := s.now().UTC()

	existing, err := s.repo.GetByKey(ctx, pageID, key)
	if err != nil && !IsNotFound(err) {
		logger.Warn("fields.save.lookup_failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	var saved *PageContent
	verb := "update"
	if existing == nil {
		verb = "create"
		saved, err = s.repo.Create(ctx, &PageContent{
			ID:           s.recordID(pageID, key),
			PageID:       pageID,
			ContentKey:   key,
			ContentValue: value,
			ContentType:  req.ContentType,
			UpdatedAt:    now,
			UpdatedBy:    actor,
		})
	} else {
		if err := s.backup(ctx, existing, actor, now); err != nil {
			logger.Error("fields.save.backup_failed", "error", err)
			return nil, err
		}
		updated := clonePageContent(existing)
		updated.ContentValue = value
		updated.ContentType = req.ContentType
		updated.UpdatedAt = now
		updated.UpdatedBy = actor
		saved, err = s.repo.Update(ctx, updated)
	}
	if err != nil {
		logger.Error("fields.save.failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	logger.Info("fields.save.success", "operation", verb)
	s.bus.Publish(Event{PageID: pageID, ContentKey: key, Value: value, ContentType: req.ContentType})
	s.recordActivity(ctx, verb, saved, actor, now)
	return saved, nil
}

func (s *service) backup(ctx context.Context, existing *PageContent, actor uuid.UUID, now time.Time) error {
	number := now.UnixMilli()
	latest, err := s.repo.LatestVersion(ctx, existing.ID)
	switch {
	case err == nil && latest.VersionNumber >= number:
		number = latest.VersionNumber + 1
	case err != nil && !IsNotFound(err):
		return fmt.Errorf("%w: %w: %w", ErrBackupFailed, ErrRemoteUnavailable, err)
	}

	_, err = s.repo.CreateVersion(ctx, &ContentVersion{
		ID:            s.id(),
		ContentID:     existing.ID,
		VersionNumber: number,
		ContentValue:  existing.ContentValue,
		CreatedBy:     actor,
		CreatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ErrBackupFailed, ErrRemoteUnavailable, err)
	}
	return nil
}

func (s *service) ListVersions(ctx context.Context, pageID, contentKey string, limit int) ([]*ContentVersion, error) {
	record, found, err := s.GetContent(ctx, pageID, contentKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return []*ContentVersion{}, nil
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	versions, err := s.repo.ListVersions(ctx, record.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return versions, nil
}

// RestoreVersion saves a stored version as the live value, which backs up the
// value it replaces.
func (s *service) RestoreVersion(ctx context.Context, req RestoreVersionRequest) (*PageContent, error) {
	if req.VersionNumber <= 0 {
		return nil, ErrVersionRequired
	}
	record, found, err := s.GetContent(ctx, req.PageID, req.ContentKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Resource: pageContentNamespace, Key: contentKey(req.PageID, req.ContentKey)}
	}
	version, err := s.repo.GetVersion(ctx, record.ID, req.VersionNumber)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrVersionNotFound, req.VersionNumber)
		}
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return s.SaveContent(ctx, SaveContentRequest{
		PageID:      record.PageID,
		ContentKey:  record.ContentKey,
		Value:       version.ContentValue,
		ContentType: record.ContentType,
		Actor:       req.Actor,
	})
}

func (s *service) Subscribe(fn func(Event)) func() {
	return s.bus.Subscribe(fn)
}

func (s *service) recordActivity(ctx context.Context, verb string, record *PageContent, actor uuid.UUID, now time.Time) {
	if s.activity == nil || record == nil {
		return
	}
	err := s.activity.Log(ctx, interfaces.ActivityRecord{
		ActorID:    actor,
		UserID:     actor,
		Verb:       verb,
		ObjectType: "page_content",
		ObjectID:   record.ID.String(),
		Channel:    "sitecontent",
		Data: map[string]any{
			"page_id":      record.PageID,
			"content_key":  record.ContentKey,
			"content_type": string(record.ContentType),
		},
		OccurredAt: now,
	})
	if err != nil {
		s.logger.Warn("fields.activity.failed", "error", err)
	}
}
