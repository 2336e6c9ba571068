package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quantia/licitator/extract"
	"github.com/quantia/licitator/ingestion"
)

type stubExtractor struct {
	record     extract.Record
	err        error
	identifier string
	docs       []ingestion.Document
	calls      int
}

func (s *stubExtractor) Extract(ctx context.Context, docs []ingestion.Document, identifier string, progress extract.ProgressFunc) (extract.Record, error) {
	s.calls++
	s.identifier = identifier
	s.docs = docs
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

var _ Extractor = (*stubExtractor)(nil)

func testServer(extractor Extractor) *Server {
	return New(extractor, log.New(io.Discard, "", 0))
}

func uploadRequest(t *testing.T, tender string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if tender != "" {
		if err := writer.WriteField("tender", tender); err != nil {
			t.Fatalf("write tender field: %v", err)
		}
	}
	for name, data := range files {
		part, err := writer.CreateFormFile("documents", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(&stubExtractor{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExtractEndpoint(t *testing.T) {
	extractor := &stubExtractor{record: extract.Record{"nombre carpeta": "licitacion_obras"}}
	server := testServer(extractor)

	req := uploadRequest(t, "licitacion_obras", map[string][]byte{"pliego.pdf": []byte("no es un pdf")})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if extractor.calls != 1 || extractor.identifier != "licitacion_obras" {
		t.Fatalf("extractor not invoked as expected: calls=%d identifier=%q", extractor.calls, extractor.identifier)
	}
	// Unparseable uploads are skipped rather than failing the request.
	if len(extractor.docs) != 0 {
		t.Fatalf("expected no parsed documents, got %d", len(extractor.docs))
	}

	var payload struct {
		Tender string            `json:"tender"`
		Record map[string]string `json:"record"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Tender != "licitacion_obras" || payload.Record["nombre carpeta"] != "licitacion_obras" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestExtractGeneratesIdentifierWhenMissing(t *testing.T) {
	extractor := &stubExtractor{record: extract.Record{}}
	server := testServer(extractor)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "", map[string][]byte{"pliego.pdf": []byte("x")}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(extractor.identifier, "licitacion_") {
		t.Fatalf("expected generated identifier, got %q", extractor.identifier)
	}
}

func TestExtractRejectsEmptyUpload(t *testing.T) {
	extractor := &stubExtractor{}
	server := testServer(extractor)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "licitacion_1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if extractor.calls != 0 {
		t.Fatalf("extractor must not run without documents, got %d calls", extractor.calls)
	}
}

func TestExtractReportsPipelineFailure(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("index build failed")}
	server := testServer(extractor)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "licitacion_1", map[string][]byte{"pliego.pdf": []byte("x")}))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(payload.Error, "index build failed") {
		t.Fatalf("unexpected error payload: %q", payload.Error)
	}
}

func TestExtractRejectsWrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(&stubExtractor{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/extract", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", allow)
	}
}
