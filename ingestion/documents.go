// Package ingestion turns a tender's source documents into the chunked,
// section-tagged corpus the semantic index is built from.
package ingestion

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Document is one source file reduced to plain text.
type Document struct {
	Name string
	Text string
}

// Loader reads tender folders from disk.
type Loader struct {
	logger *log.Logger
}

func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{logger: logger}
}

// ReadTenderDir extracts text from every PDF in dir, in name order. A file
// that cannot be parsed is logged and skipped so one broken attachment does
// not sink the whole tender.
func (l *Loader) ReadTenderDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tender directory: %w", err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Printf("skip %s: %v", path, err)
			continue
		}

		text, err := ExtractPDFText(data)
		if err != nil {
			l.logger.Printf("skip %s: %v", path, err)
			continue
		}

		docs = append(docs, Document{Name: entry.Name(), Text: text})
	}

	return docs, nil
}

// Combined joins the extracted texts of all documents in order.
func Combined(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Text)
	}
	return strings.Join(parts, "\n")
}
