package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantia/licitator/api"
	"github.com/quantia/licitator/catalog"
	"github.com/quantia/licitator/config"
	"github.com/quantia/licitator/database"
	"github.com/quantia/licitator/embeddings"
	"github.com/quantia/licitator/export"
	"github.com/quantia/licitator/extract"
	"github.com/quantia/licitator/index"
	"github.com/quantia/licitator/ingestion"
	"github.com/quantia/licitator/llm"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	switch os.Args[1] {
	case "extract":
		extractCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "fields":
		fieldsCmd(cfg, logger)
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func extractCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("extract", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "directory holding one subfolder of PDFs per tender")
	outFile := flags.String("out", cfg.ResultsFile, "XLSX workbook to append results to")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse extract flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup()

	entries, err := os.ReadDir(*dataDir)
	if err != nil {
		logger.Fatalf("read data directory: %v", err)
	}

	loader := ingestion.NewLoader(logger)
	records := make([]extract.Record, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tender := entry.Name()
		logger.Printf("processing tender %s", tender)

		docs, err := loader.ReadTenderDir(filepath.Join(*dataDir, tender))
		if err != nil {
			logger.Printf("tender %s failed: %v", tender, err)
			continue
		}

		record, err := svc.Extract(ctx, docs, tender, func(current, total int, field string) {
			logger.Printf("tender %s: field %d/%d %q", tender, current+1, total, field)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			// One broken tender must not block the rest of the batch.
			logger.Printf("tender %s failed: %v", tender, err)
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		logger.Println("no records extracted")
		return
	}

	if err := export.AppendRecords(*outFile, svc.Catalog().Names(), records); err != nil {
		logger.Fatalf("save results: %v", err)
	}
	logger.Printf("saved %d records to %s", len(records), *outFile)
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup()

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(svc, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func fieldsCmd(cfg config.Config, logger *log.Logger) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	for _, field := range cat {
		fmt.Println(field.Name)
	}
}

// newService assembles the extraction pipeline for the configured providers
// and index backend. The returned cleanup releases shared connections.
func newService(ctx context.Context, cfg config.Config, logger *log.Logger) (*extract.Service, func(), error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	cleanup := func() {}
	var builder index.Builder
	switch cfg.IndexBackend {
	case config.BackendPgvector:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		cleanup = pool.Close
		builder = index.PgvectorBuilder{
			Pool:          pool,
			Embedder:      embedder,
			Dimension:     cfg.Embeddings.Dimension,
			MinSimilarity: cfg.MinSimilarity,
		}
	default:
		builder = index.MemoryBuilder{Embedder: embedder, MinSimilarity: cfg.MinSimilarity}
	}

	resolver := extract.NewResolver(
		llmClient,
		extract.Backoff{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay},
		cfg.RequestDelay,
		logger,
	)

	svc, err := extract.NewService(builder, resolver, ingestion.NewChunker(0), cat, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func loadCatalog(cfg config.Config) (catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}
	cat := catalog.Default()
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

func printUsage() {
	fmt.Println("Usage: licitator <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  extract  Process every tender folder under the data directory and append results to the XLSX workbook")
	fmt.Println("  serve    Expose the extraction pipeline over HTTP")
	fmt.Println("  fields   Print the field catalog in output order")
}
