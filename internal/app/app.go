// Package app wires the docsift components together: configuration, logging,
// stores, embedder, ingestion pipeline, and retrieval engine. The CLI builds
// one App per invocation.
package app

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/logging"
	"github.com/docsift/docsift/internal/pipeline"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/store"
	"github.com/docsift/docsift/internal/telemetry"
)

// Options tweaks assembly for special invocations.
type Options struct {
	// ConfigPath is an optional explicit config file.
	ConfigPath string

	// Offline forces the static embedder, skipping any provider network
	// traffic.
	Offline bool

	// Debug raises the log level to debug.
	Debug bool
}

// App is the assembled application.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Vectors      *store.HNSWIndex
	Lexical      *store.BleveIndex
	Objects      *store.FSObjectStore
	Registry     *store.SQLiteRegistry
	Embedder     embed.Embedder
	Orchestrator *pipeline.Orchestrator
	Engine       *search.Engine
	Metrics      *telemetry.Store

	vectorDir  string
	logCleanup func()
}

// Open loads configuration and assembles every component. Call Close when
// done; it persists the vector index and releases resources.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Offline {
		cfg.Embeddings.Provider = "static"
	}

	logLevel := cfg.Logging.Level
	if opts.Debug {
		logLevel = "debug"
	}
	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:    logLevel,
		FilePath: cfg.Logging.FilePath,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		vectorDir:  filepath.Join(cfg.Storage.DataDir, "vectors"),
		logCleanup: logCleanup,
	}

	a.Embedder, err = embed.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		a.close()
		return nil, err
	}

	a.Vectors, err = store.NewHNSWIndex(a.Embedder.Dimensions())
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.Vectors.Load(a.vectorDir); err != nil {
		a.close()
		return nil, err
	}

	a.Lexical = store.NewBleveIndex(filepath.Join(cfg.Storage.DataDir, "lexical"))

	a.Objects, err = store.NewFSObjectStore(cfg.Storage.ObjectRoot)
	if err != nil {
		a.close()
		return nil, err
	}

	a.Registry, err = store.NewSQLiteRegistry(filepath.Join(cfg.Storage.DataDir, "documents.db"))
	if err != nil {
		a.close()
		return nil, err
	}

	a.Metrics, err = telemetry.NewStore(filepath.Join(cfg.Storage.DataDir, "metrics.db"))
	if err != nil {
		a.close()
		return nil, err
	}

	stages := pipeline.DefaultStages(cfg, extract.NewPDFExtractor(), a.Embedder,
		a.Vectors, a.Lexical, a.Objects)
	a.Orchestrator = pipeline.NewOrchestrator(stages, a.Registry,
		a.Vectors, a.Lexical, a.Objects, logger)

	a.Engine = search.NewEngine(a.Embedder, a.Vectors, a.Lexical, a.Objects, logger)

	return a, nil
}

// Close persists the vector index and releases every component.
func (a *App) Close() error {
	var firstErr error
	if a.Vectors != nil {
		if err := a.Vectors.Save(a.vectorDir); err != nil {
			a.Logger.Error("persist vector index", slog.String("error", err.Error()))
			firstErr = err
		}
	}
	a.close()
	return firstErr
}

func (a *App) close() {
	if a.Metrics != nil {
		_ = a.Metrics.Close()
	}
	if a.Registry != nil {
		_ = a.Registry.Close()
	}
	if a.Lexical != nil {
		_ = a.Lexical.Close()
	}
	if a.Vectors != nil {
		_ = a.Vectors.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}
