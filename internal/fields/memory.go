package fields

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and local previews.
type MemoryRepository struct {
	mu       sync.RWMutex
	contents map[uuid.UUID]*PageContent
	keyIndex map[string]uuid.UUID
	versions map[uuid.UUID][]*ContentVersion

	// FailVersionWrites makes CreateVersion fail, for exercising the
	// backup-before-overwrite path.
	FailVersionWrites error
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		contents: make(map[uuid.UUID]*PageContent),
		keyIndex: make(map[string]uuid.UUID),
		versions: make(map[uuid.UUID][]*ContentVersion),
	}
}

func (m *MemoryRepository) GetByKey(_ context.Context, pageID, key string) (*PageContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.keyIndex[contentKey(pageID, key)]
	if !ok {
		return nil, &NotFoundError{Resource: "page_content", Key: contentKey(pageID, key)}
	}
	return clonePageContent(m.contents[id]), nil
}

func (m *MemoryRepository) ListByPage(_ context.Context, pageID string) ([]*PageContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PageContent
	for _, rec := range m.contents {
		if rec.PageID == pageID {
			out = append(out, clonePageContent(rec))
		}
	}
	slices.SortFunc(out, func(a, b *PageContent) int {
		switch {
		case a.ContentKey < b.ContentKey:
			return -1
		case a.ContentKey > b.ContentKey:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, record *PageContent) (*PageContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := contentKey(record.PageID, record.ContentKey)
	if _, exists := m.keyIndex[key]; exists {
		return nil, fmt.Errorf("page_content %q already exists", key)
	}
	copied := clonePageContent(record)
	m.contents[copied.ID] = copied
	m.keyIndex[key] = copied.ID
	return clonePageContent(copied), nil
}

func (m *MemoryRepository) Update(_ context.Context, record *PageContent) (*PageContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contents[record.ID]; !ok {
		return nil, &NotFoundError{Resource: "page_content", Key: record.ID.String()}
	}
	copied := clonePageContent(record)
	m.contents[copied.ID] = copied
	return clonePageContent(copied), nil
}

func (m *MemoryRepository) CreateVersion(_ context.Context, version *ContentVersion) (*ContentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailVersionWrites != nil {
		return nil, m.FailVersionWrites
	}
	copied := cloneVersion(version)
	m.versions[copied.ContentID] = append(m.versions[copied.ContentID], copied)
	return cloneVersion(copied), nil
}

func (m *MemoryRepository) LatestVersion(_ context.Context, contentID uuid.UUID) (*ContentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *ContentVersion
	for _, v := range m.versions[contentID] {
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			latest = v
		}
	}
	if latest == nil {
		return nil, &NotFoundError{Resource: "content_version", Key: contentID.String()}
	}
	return cloneVersion(latest), nil
}

func (m *MemoryRepository) GetVersion(_ context.Context, contentID uuid.UUID, number int64) (*ContentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions[contentID] {
		if v.VersionNumber == number {
			return cloneVersion(v), nil
		}
	}
	return nil, &NotFoundError{Resource: "content_version", Key: fmt.Sprintf("%s@%d", contentID, number)}
}

func (m *MemoryRepository) ListVersions(_ context.Context, contentID uuid.UUID, limit int) ([]*ContentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ContentVersion, 0, len(m.versions[contentID]))
	for _, v := range m.versions[contentID] {
		out = append(out, cloneVersion(v))
	}
	slices.SortFunc(out, func(a, b *ContentVersion) int {
		switch {
		case a.VersionNumber > b.VersionNumber:
			return -1
		case a.VersionNumber < b.VersionNumber:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
