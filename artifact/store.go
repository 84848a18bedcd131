// Package artifact stores generated migration plan documents.
package artifact

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no artifact exists under a key.
var ErrNotFound = errors.New("artifact not found")

// Store defines the interface for artifact storage backends. Keys are
// slash-separated relative paths such as "database/migrations/x.json".
type Store interface {
	// Put stores the reader's content under key, replacing any previous
	// artifact.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get retrieves an artifact. The caller closes the returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the artifacts whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Artifact, error)

	// Delete removes an artifact. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Artifact represents metadata about a stored artifact.
type Artifact struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"` // SHA256 hex digest
}
