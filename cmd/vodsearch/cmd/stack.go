package cmd

import (
	"fmt"
	"log/slog"

	"vodsearch/internal/catalog"
	"vodsearch/internal/config"
	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/jobs"
	"vodsearch/internal/search"
	"vodsearch/internal/status"
	"vodsearch/internal/store"
)

// stack holds the wired storage, status, orchestration, and query
// components a command needs. Close releases them in reverse order.
type stack struct {
	cfg     *config.Config
	indexes *store.IndexManager
	meta    *store.MetadataStore
	status  status.Store
	orch    *jobs.Orchestrator
	engine  *search.Engine

	// logCleanup closes the log writer opened for this stack, if any.
	logCleanup func()
}

// openStack wires the full component stack against the configured data
// directory. statusBackend overrides cfg.Status.Backend when non-empty;
// one-shot commands pass config.StatusBackendMemory since the job runs
// and dies with the process.
func openStack(cfg *config.Config, logger *slog.Logger, statusBackend string) (*stack, error) {
	indexes, err := store.NewIndexManager(cfg.Paths.DataDir, cfg.Search.OpenIndexes)
	if err != nil {
		return nil, fmt.Errorf("failed to open index manager: %w", err)
	}

	meta, err := store.NewMetadataStore(cfg.Paths.DataDir)
	if err != nil {
		_ = indexes.Close()
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	if statusBackend == "" {
		statusBackend = cfg.Status.Backend
	}
	var st status.Store
	switch statusBackend {
	case config.StatusBackendMemory:
		st = status.NewMemoryStore(cfg.Status.JobTTL)
	default:
		st, err = status.NewRedisStore(cfg.Status.RedisAddr, cfg.Status.RedisDB, cfg.Status.JobTTL)
		if err != nil {
			_ = meta.Close()
			_ = indexes.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Status.RedisAddr, err)
		}
	}

	lister := catalog.NewYouTubeLister(catalog.YouTubeListerConfig{
		BaseURL:  cfg.Catalog.BaseURL,
		APIKey:   cfg.Catalog.APIKey,
		PageSize: cfg.Catalog.PageSize,
		Timeout:  cfg.Catalog.Timeout,
	})
	fetcher := catalog.NewTimedTextClient(catalog.TimedTextConfig{
		Timeout: cfg.Indexing.TranscriptTimeout,
	})

	worker := &jobs.Worker{
		Transcripts: fetcher,
		Indexes:     indexes,
		Meta:        meta,
		Retry: vserrors.RetryConfig{
			MaxRetries:   cfg.Indexing.MaxRetries,
			InitialDelay: cfg.Indexing.RetryDelay,
			MaxDelay:     30 * cfg.Indexing.RetryDelay,
			Multiplier:   2.0,
		},
		TranscriptTimeout: cfg.Indexing.TranscriptTimeout,
		IndexTimeout:      cfg.Indexing.IndexTimeout,
		Logger:            logger,
	}

	orch := jobs.NewOrchestrator(jobs.Config{
		Workers:      cfg.Indexing.Workers,
		PollInterval: cfg.Indexing.PollInterval,
	}, lister, worker, st, meta, logger)

	engine := search.NewEngine(search.Config{
		MaxResults: cfg.Search.MaxResults,
		FacetSize:  cfg.Search.FacetSize,
	}, indexes, meta, logger)

	return &stack{
		cfg:     cfg,
		indexes: indexes,
		meta:    meta,
		status:  st,
		orch:    orch,
		engine:  engine,
	}, nil
}

// Close releases all stack resources. Errors are dropped; there is
// nothing a command can do with a failed close on exit.
func (s *stack) Close() {
	_ = s.status.Close()
	_ = s.meta.Close()
	_ = s.indexes.Close()
	if s.logCleanup != nil {
		s.logCleanup()
	}
}
