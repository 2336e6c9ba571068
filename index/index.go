// Package index provides the per-tender semantic index: chunk vectors built
// once per extraction, queried per field, and released when the tender's
// record is assembled.
package index

import (
	"context"

	"github.com/quantia/licitator/ingestion"
)

// Index answers nearest-neighbor queries over one tender's chunk set. It is
// read-only after construction and must be closed when the tender is done;
// Close releases every held resource and may be called on every exit path.
type Index interface {
	Query(ctx context.Context, text string, k int) ([]ingestion.Chunk, error)
	Close(ctx context.Context) error
}

// Builder constructs a fresh Index for one tender's chunks.
type Builder interface {
	Build(ctx context.Context, chunks []ingestion.Chunk) (Index, error)
}
