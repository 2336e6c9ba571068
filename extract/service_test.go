package extract

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/quantia/licitator/catalog"
	"github.com/quantia/licitator/index"
	"github.com/quantia/licitator/ingestion"
)

type stubBuilder struct {
	idx    *stubIndex
	err    error
	builds int
}

func (b *stubBuilder) Build(ctx context.Context, chunks []ingestion.Chunk) (index.Index, error) {
	b.builds++
	if b.err != nil {
		return nil, b.err
	}
	b.idx.chunks = chunks
	return b.idx, nil
}

var _ index.Builder = (*stubBuilder)(nil)

func serviceCatalog(t *testing.T) catalog.Catalog {
	t.Helper()
	cat := catalog.Catalog{
		{Name: "nombre carpeta", Kind: catalog.KindIdentifier},
		{Name: "plazo de presentación de la oferta"},
		{Name: "prórroga"},
	}
	if err := cat.Validate(); err != nil {
		t.Fatalf("test catalog invalid: %v", err)
	}
	return cat
}

func newTestService(t *testing.T, builder index.Builder, client *stubLLM, cat catalog.Catalog) *Service {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	svc, err := NewService(builder, NewResolver(client, Backoff{Attempts: 1}, 0, logger), nil, cat, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func tenderDocs() []ingestion.Document {
	return []ingestion.Document{
		{Name: "pliego.pdf", Text: "El plazo de presentación de ofertas finaliza el 15/03/2025. El contrato admite prórroga por un año."},
	}
}

func TestExtractProducesFullRecord(t *testing.T) {
	cat := serviceCatalog(t)
	builder := &stubBuilder{idx: &stubIndex{}}
	client := &stubLLM{answer: "valor extraído"}
	svc := newTestService(t, builder, client, cat)

	record, err := svc.Extract(context.Background(), tenderDocs(), "licitacion_1", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(record) != len(cat) {
		t.Fatalf("expected %d fields, got %d", len(cat), len(record))
	}
	for _, field := range cat {
		if _, ok := record[field.Name]; !ok {
			t.Fatalf("missing field %q", field.Name)
		}
	}
	if record["nombre carpeta"] != "licitacion_1" {
		t.Fatalf("identifier not carried: %q", record["nombre carpeta"])
	}
	if !builder.idx.closed {
		t.Fatal("index was not released")
	}
}

func TestExtractEmptyDocumentsSkipsIndexing(t *testing.T) {
	cat := serviceCatalog(t)
	builder := &stubBuilder{idx: &stubIndex{}}
	client := &stubLLM{answer: "irrelevante"}
	svc := newTestService(t, builder, client, cat)

	record, err := svc.Extract(context.Background(), []ingestion.Document{{Name: "vacío.pdf", Text: "  \n "}}, "licitacion_2", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(record) != 1 || record["nombre carpeta"] != "licitacion_2" {
		t.Fatalf("expected identifier-only record, got %v", record)
	}
	if builder.builds != 0 || client.calls != 0 {
		t.Fatalf("empty tender must not index or generate (builds=%d calls=%d)", builder.builds, client.calls)
	}
}

func TestExtractIsolatesFieldFailures(t *testing.T) {
	cat := serviceCatalog(t)
	builder := &stubBuilder{idx: &stubIndex{}}
	client := &stubLLM{answer: "valor", failFor: `el campo "prórroga"`}
	svc := newTestService(t, builder, client, cat)

	record, err := svc.Extract(context.Background(), tenderDocs(), "licitacion_3", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if !IsError(record["prórroga"]) {
		t.Fatalf("expected error marker for failing field, got %q", record["prórroga"])
	}
	if IsError(record["plazo de presentación de la oferta"]) {
		t.Fatalf("sibling field contaminated: %q", record["plazo de presentación de la oferta"])
	}
	if !builder.idx.closed {
		t.Fatal("index was not released after partial failure")
	}
}

func TestExtractReportsProgressInCatalogOrder(t *testing.T) {
	cat := serviceCatalog(t)
	builder := &stubBuilder{idx: &stubIndex{}}
	client := &stubLLM{answer: "valor"}
	svc := newTestService(t, builder, client, cat)

	var seen []string
	_, err := svc.Extract(context.Background(), tenderDocs(), "licitacion_4", func(current, total int, field string) {
		if total != len(cat) {
			t.Fatalf("unexpected total %d", total)
		}
		if current != len(seen) {
			t.Fatalf("progress out of order: current=%d after %d calls", current, len(seen))
		}
		seen = append(seen, field)
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(seen) != len(cat) {
		t.Fatalf("expected %d progress calls, got %d", len(cat), len(seen))
	}
	for i, field := range cat {
		if seen[i] != field.Name {
			t.Fatalf("progress order mismatch at %d: %q", i, seen[i])
		}
	}
}

func TestExtractFailsWhenIndexBuildFails(t *testing.T) {
	cat := serviceCatalog(t)
	builder := &stubBuilder{err: errors.New("embedding service down")}
	client := &stubLLM{answer: "valor"}
	svc := newTestService(t, builder, client, cat)

	_, err := svc.Extract(context.Background(), tenderDocs(), "licitacion_5", nil)
	if err == nil {
		t.Fatal("expected index build failure to abort the tender")
	}
	if !strings.Contains(err.Error(), "embedding service down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractStopsOnCancelledContext(t *testing.T) {
	cat := serviceCatalog(t)
	builder := &stubBuilder{idx: &stubIndex{}}
	client := &stubLLM{answer: "valor"}
	svc := newTestService(t, builder, client, cat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Extract(ctx, tenderDocs(), "licitacion_6", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !builder.idx.closed {
		t.Fatal("index was not released after cancellation")
	}
}

func TestNewServiceRejectsInvalidCatalog(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	bad := catalog.Catalog{{Name: "sin identificador"}}
	if _, err := NewService(&stubBuilder{idx: &stubIndex{}}, NewResolver(&stubLLM{}, Backoff{}, 0, logger), nil, bad, logger); err == nil {
		t.Fatal("expected invalid catalog error")
	}
}
