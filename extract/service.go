package extract

import (
	"context"
	"fmt"
	"log"

	"github.com/quantia/licitator/catalog"
	"github.com/quantia/licitator/index"
	"github.com/quantia/licitator/ingestion"
)

// Record maps field names to canonical text values. The key set always
// matches the catalog; the identifier field is present even when everything
// else failed.
type Record map[string]string

// ProgressFunc is notified synchronously before each field's resolution.
type ProgressFunc func(current, total int, field string)

// Service drives the extraction of one tender: chunk, index, resolve every
// field in catalog order, normalize, release the index.
type Service struct {
	builder  index.Builder
	resolver *Resolver
	chunker  *ingestion.Chunker
	catalog  catalog.Catalog
	logger   *log.Logger
}

func NewService(builder index.Builder, resolver *Resolver, chunker *ingestion.Chunker, cat catalog.Catalog, logger *log.Logger) (*Service, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	if chunker == nil {
		chunker = ingestion.NewChunker(0)
	}
	return &Service{
		builder:  builder,
		resolver: resolver,
		chunker:  chunker,
		catalog:  cat,
		logger:   logger,
	}, nil
}

// Extract produces the tender's record. Field resolution runs strictly in
// catalog order and per-field failures surface as marker values, never as
// errors; only an index build failure aborts the tender.
func (s *Service) Extract(ctx context.Context, docs []ingestion.Document, identifier string, progress ProgressFunc) (Record, error) {
	idField, _ := s.catalog.Identifier()

	combined := ingestion.Combined(docs)
	if ingestion.Normalize(combined) == "" {
		s.logger.Printf("tender %s has no extractable text", identifier)
		return Record{idField.Name: identifier}, nil
	}

	chunks := s.chunker.Chunk(combined)
	s.logger.Printf("tender %s: %d chunks", identifier, len(chunks))

	idx, err := s.builder.Build(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	defer func() {
		// Release must happen even when the surrounding context is gone.
		if closeErr := idx.Close(context.WithoutCancel(ctx)); closeErr != nil {
			s.logger.Printf("release index for %s: %v", identifier, closeErr)
		}
	}()

	raw := make(map[string]string, len(s.catalog))
	total := len(s.catalog)
	for i, field := range s.catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(i, total, field.Name)
		}
		raw[field.Name] = s.resolver.Resolve(ctx, field, idx, identifier)
	}

	return Normalize(raw, s.catalog), nil
}

// Catalog returns the service's field catalog.
func (s *Service) Catalog() catalog.Catalog {
	return s.catalog
}
