// Package storage abstracts the document store holding uploaded files.
package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists named binary blobs and resolves a public retrieval URL for
// each. There is no dedup and no versioning; names are expected to be unique
// and URLs are assumed stable for the lifetime of the record referencing them.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
	PublicURL(name string) string
}

// ObjectName returns a collision-resistant name for an uploaded file,
// keeping the original extension so the served file stays openable.
func ObjectName(original string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(original))
}
