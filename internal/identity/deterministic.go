// Package identity derives stable UUIDs for editors and content records.
package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from key using go-hashid. Keys should be
// namespaced by kind so unrelated entities never collide.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// EditorUUID maps a token subject to an editor id. Subjects that already are
// UUIDs are returned unchanged.
func EditorUUID(subject string) uuid.UUID {
	subject = strings.TrimSpace(subject)
	if id, err := uuid.Parse(subject); err == nil {
		return id
	}
	return UUID("sitecontent:editor:" + strings.ToLower(subject))
}

// PageContentUUID returns the id used when a page content record is first
// created, so replays on a fresh database reuse the same identifier.
func PageContentUUID(pageID, contentKey string) uuid.UUID {
	return UUID("sitecontent:page_content:" + strings.TrimSpace(pageID) + ":" + strings.TrimSpace(contentKey))
}
