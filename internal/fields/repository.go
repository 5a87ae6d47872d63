package fields

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository persists live field values and their version log.
type Repository interface {
	GetByKey(ctx context.Context, pageID, contentKey string) (*PageContent, error)
	ListByPage(ctx context.Context, pageID string) ([]*PageContent, error)
	Create(ctx context.Context, record *PageContent) (*PageContent, error)
	Update(ctx context.Context, record *PageContent) (*PageContent, error)

	CreateVersion(ctx context.Context, version *ContentVersion) (*ContentVersion, error)
	LatestVersion(ctx context.Context, contentID uuid.UUID) (*ContentVersion, error)
	GetVersion(ctx context.Context, contentID uuid.UUID, number int64) (*ContentVersion, error)
	// ListVersions returns versions newest first; limit <= 0 means all.
	ListVersions(ctx context.Context, contentID uuid.UUID, limit int) ([]*ContentVersion, error)
}

// NotFoundError represents missing records from repository lookups.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func contentKey(pageID, key string) string {
	return pageID + "/" + key
}
