package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vitalsource-rag/internal/app"
	"vitalsource-rag/internal/cli"
	"vitalsource-rag/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, loadServices); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadServices wires the same components the API server uses. Logs go to
// stderr so command output stays pipeable.
func loadServices(ctx context.Context) (*cli.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := app.NewLogger(cfg, os.Stderr)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &cli.Services{
		Ingest:            a.IngestService,
		Query:             a.QueryService,
		Extractor:         a.Extractor,
		Store:             a.VectorStore,
		Collection:        cfg.QdrantCollection,
		AllowedExtensions: cfg.AllowedExtensions,
		Close:             a.Close,
	}, nil
}
