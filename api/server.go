// Package api exposes the extraction pipeline over HTTP for the upload UI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quantia/licitator/extract"
	"github.com/quantia/licitator/ingestion"
)

const maxUploadBytes = 64 << 20

// Extractor is the part of extract.Service the server depends on.
type Extractor interface {
	Extract(ctx context.Context, docs []ingestion.Document, identifier string, progress extract.ProgressFunc) (extract.Record, error)
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type extractResponse struct {
	Tender string         `json:"tender"`
	Record extract.Record `json:"record"`
}

// Server exposes HTTP handlers for the core extraction workflow.
type Server struct {
	extractor Extractor
	logger    *log.Logger
	handler   http.Handler
}

func New(extractor Extractor, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{extractor: extractor, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/extract", s.handleExtract)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// handleExtract accepts a multipart upload of one tender's PDFs under the
// "documents" field and responds with the extracted record.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	identifier := strings.TrimSpace(r.FormValue("tender"))
	if identifier == "" {
		identifier = "licitacion_" + uuid.NewString()[:8]
	}

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("no documents uploaded"))
		return
	}

	docs := make([]ingestion.Document, 0, len(files))
	for _, header := range files {
		part, err := header.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("open %s: %w", header.Filename, err))
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("read %s: %w", header.Filename, err))
			return
		}

		text, err := ingestion.ExtractPDFText(data)
		if err != nil {
			s.logger.Printf("skip %s: %v", header.Filename, err)
			continue
		}
		docs = append(docs, ingestion.Document{Name: header.Filename, Text: text})
	}

	progress := func(current, total int, field string) {
		s.logger.Printf("tender %s: field %d/%d %q", identifier, current+1, total, field)
	}

	record, err := s.extractor.Extract(r.Context(), docs, identifier, progress)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("extraction failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, extractResponse{Tender: identifier, Record: record})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("http %d: %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}
