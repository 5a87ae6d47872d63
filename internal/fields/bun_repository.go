package fields

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	cache "github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

const (
	pageContentNamespace    = "page_content"
	contentVersionNamespace = "content_version"
)

// NewPageContentRepository builds the go-repository-bun repository for page_content.
func NewPageContentRepository(db *bun.DB) repository.Repository[*PageContent] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PageContent]{
		NewRecord: func() *PageContent { return &PageContent{} },
		GetID: func(p *PageContent) uuid.UUID {
			return p.ID
		},
		SetID: func(p *PageContent, id uuid.UUID) {
			p.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(p *PageContent) string {
			if p == nil {
				return ""
			}
			return p.ID.String()
		},
	})
}

// NewContentVersionRepository builds the go-repository-bun repository for content_versions.
func NewContentVersionRepository(db *bun.DB) repository.Repository[*ContentVersion] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*ContentVersion]{
		NewRecord: func() *ContentVersion { return &ContentVersion{} },
		GetID: func(v *ContentVersion) uuid.UUID {
			return v.ID
		},
		SetID: func(v *ContentVersion, id uuid.UUID) {
			v.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(v *ContentVersion) string {
			if v == nil {
				return ""
			}
			return v.ID.String()
		},
	})
}

// BunRepository implements Repository over bun. When a cache is configured,
// LookupByKey serves public point reads from it while the write path keeps
// reading the database directly.
type BunRepository struct {
	contents     repository.Repository[*PageContent]
	cached       repository.Repository[*PageContent]
	versions     repository.Repository[*ContentVersion]
	cacheService cache.CacheService
	logger       interfaces.Logger
}

var _ Repository = (*BunRepository)(nil)

// BunRepositoryOption configures a BunRepository.
type BunRepositoryOption func(*BunRepository)

// WithRepositoryLogger sets the logger used for cache diagnostics.
func WithRepositoryLogger(logger interfaces.Logger) BunRepositoryOption {
	return func(r *BunRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewBunRepository creates a repository without caching.
func NewBunRepository(db *bun.DB, opts ...BunRepositoryOption) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil, opts...)
}

// NewBunRepositoryWithCache creates a repository whose lookups go through
// go-repository-cache.
func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...BunRepositoryOption) *BunRepository {
	base := NewPageContentRepository(db)
	r := &BunRepository{
		contents: base,
		cached:   base,
		versions: NewContentVersionRepository(db),
		logger:   logging.NoOp(),
	}
	if cacheService != nil && keySerializer != nil {
		r.cached = repositorycache.New(base, cacheService, keySerializer)
		r.cacheService = cacheService
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *BunRepository) GetByKey(ctx context.Context, pageID, key string) (*PageContent, error) {
	return r.getByKey(ctx, r.contents, pageID, key)
}

// LookupByKey is GetByKey through the cache, when one is configured.
func (r *BunRepository) LookupByKey(ctx context.Context, pageID, key string) (*PageContent, error) {
	return r.getByKey(ctx, r.cached, pageID, key)
}

func (r *BunRepository) getByKey(ctx context.Context, repo repository.Repository[*PageContent], pageID, key string) (*PageContent, error) {
	records, _, err := repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID).
				Where("?TableAlias.content_key = ?", key)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, pageContentNamespace, contentKey(pageID, key))
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: pageContentNamespace, Key: contentKey(pageID, key)}
	}
	return records[0], nil
}

func (r *BunRepository) ListByPage(ctx context.Context, pageID string) ([]*PageContent, error) {
	records, _, err := r.cached.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID).
				OrderExpr("?TableAlias.content_key ASC")
		}),
	)
	return records, err
}

func (r *BunRepository) Create(ctx context.Context, record *PageContent) (*PageContent, error) {
	created, err := r.contents.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	r.invalidateAfterWrite(ctx, created)
	return created, nil
}

func (r *BunRepository) Update(ctx context.Context, record *PageContent) (*PageContent, error) {
	updated, err := r.contents.Update(ctx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns("content_value", "content_type", "updated_at", "updated_by"),
	)
	if err != nil {
		return nil, mapRepositoryError(err, pageContentNamespace, record.ID.String())
	}
	r.invalidateAfterWrite(ctx, updated)
	return updated, nil
}

func (r *BunRepository) CreateVersion(ctx context.Context, version *ContentVersion) (*ContentVersion, error) {
	return r.versions.Create(ctx, version)
}

func (r *BunRepository) LatestVersion(ctx context.Context, contentID uuid.UUID) (*ContentVersion, error) {
	records, err := r.ListVersions(ctx, contentID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: contentVersionNamespace, Key: contentID.String()}
	}
	return records[0], nil
}

func (r *BunRepository) GetVersion(ctx context.Context, contentID uuid.UUID, number int64) (*ContentVersion, error) {
	records, _, err := r.versions.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.content_id = ?", contentID).
				Where("?TableAlias.version_number = ?", number)
		}),
		repository.SelectPaginate(1, 0),
	)
	key := fmt.Sprintf("%s@%d", contentID, number)
	if err != nil {
		return nil, mapRepositoryError(err, contentVersionNamespace, key)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: contentVersionNamespace, Key: key}
	}
	return records[0], nil
}

func (r *BunRepository) ListVersions(ctx context.Context, contentID uuid.UUID, limit int) ([]*ContentVersion, error) {
	newestFirst := repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.content_id = ?", contentID).
			OrderExpr("?TableAlias.version_number DESC")
	})

	var (
		records []*ContentVersion
		err     error
	)
	if limit > 0 {
		records, _, err = r.versions.List(ctx, newestFirst, repository.SelectPaginate(limit, 0))
	} else {
		records, _, err = r.versions.List(ctx, newestFirst)
	}
	if err != nil {
		return nil, mapRepositoryError(err, contentVersionNamespace, contentID.String())
	}
	return records, nil
}

// InvalidateCache drops cached page content lookups.
func (r *BunRepository) InvalidateCache(ctx context.Context) error {
	return r.invalidate(ctx)
}

// invalidateAfterWrite runs once the row is committed, so a cache failure is
// logged rather than reported as a failed write. Cached lookups may be stale
// until the entries expire.
func (r *BunRepository) invalidateAfterWrite(ctx context.Context, record *PageContent) {
	if err := r.invalidate(ctx); err != nil {
		r.logger.Error("fields.cache.invalidate.failed",
			"page_id", record.PageID, "content_key", record.ContentKey, "error", err)
	}
}

func (r *BunRepository) invalidate(ctx context.Context) error {
	if r.cacheService == nil {
		return nil
	}
	return r.cacheService.DeleteByPrefix(ctx, pageContentNamespace+cache.KeySeparator)
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}
