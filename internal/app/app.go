// Package app builds the long-lived components shared by the binaries from a
// loaded common.Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/contract-intelligence/internal/async"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm/gemini"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm/openai"
	"github.com/joseph-ayodele/contract-intelligence/internal/ocr"
	"github.com/joseph-ayodele/contract-intelligence/internal/pipeline"
	"github.com/joseph-ayodele/contract-intelligence/internal/repository"
	"github.com/joseph-ayodele/contract-intelligence/internal/retry"
	"github.com/joseph-ayodele/contract-intelligence/internal/scoring"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

// InMemoryDSN is a private SQLite database that lives as long as the process.
const InMemoryDSN = "file::memory:"

// Database is an open, migrated store.
type Database struct {
	DB        *repository.DB
	Contracts repository.ContractRepository
	logger    *slog.Logger
}

// Close releases the connection pool.
func (d *Database) Close() {
	repository.Close(d.DB, d.logger)
}

// Ping checks connectivity; it backs the health endpoints.
func (d *Database) Ping(ctx context.Context) error {
	return repository.HealthCheck(ctx, d.DB, 5*time.Second, d.logger)
}

// OpenDatabase connects, pings and migrates when configured to. inmem swaps
// the configured database for a throwaway SQLite one.
func OpenDatabase(ctx context.Context, cfg common.DatabaseConfig, inmem bool, logger *slog.Logger) (*Database, error) {
	rc := repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}
	migrate := cfg.AutoMigrate
	if inmem {
		rc.Driver = repository.DriverSQLite
		rc.DSN = InMemoryDSN
		migrate = true
	}

	db, err := repository.Open(ctx, rc, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		repository.Close(db, logger)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if migrate {
		if err := repository.Migrate(ctx, db, logger); err != nil {
			repository.Close(db, logger)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return &Database{
		DB:        db,
		Contracts: repository.NewContractRepository(db, logger),
		logger:    logger,
	}, nil
}

// NewBlobStore returns the configured blob backend.
func NewBlobStore(ctx context.Context, cfg common.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "", "fs":
		return storage.NewFSStore(cfg.UploadDir)
	case "minio":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewTextExtractor picks local poppler/tesseract extraction or OCR.space.
func NewTextExtractor(cfg common.OCRConfig, logger *slog.Logger) (ocr.TextExtractor, error) {
	switch cfg.Provider {
	case "", "local":
		return ocr.NewExtractor(ocr.Config{
			TesseractLang:       cfg.Language,
			TessdataDir:         cfg.TessdataDir,
			MaxPages:            cfg.MaxPages,
			MinTextChars:        cfg.MinTextChars,
			EnableTSVConfidence: true,
		}, logger), nil
	case "ocrspace":
		return ocr.NewSpaceClient(ocr.SpaceConfig{
			APIKey:       cfg.APIKey,
			Endpoint:     cfg.Endpoint,
			Language:     cfg.Language,
			Timeout:      cfg.Timeout,
			MinTextChars: cfg.MinTextChars,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", cfg.Provider)
	}
}

// NewCompleter returns the chat client of the configured provider.
func NewCompleter(cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "", "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// NewFieldExtractor wraps the configured completer in the schema extractor.
func NewFieldExtractor(cfg common.LLMConfig, logger *slog.Logger) (*llm.Extractor, error) {
	completer, err := NewCompleter(cfg, logger)
	if err != nil {
		return nil, err
	}
	return llm.NewExtractor(completer, llm.ExtractorConfig{
		MaxInputChars:     cfg.MaxInputChars,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger)
}

// NewScorer builds the scoring engine with the configured gap threshold.
func NewScorer(cfg common.PipelineConfig) *scoring.Engine {
	return scoring.NewEngine(scoring.Config{GapThreshold: cfg.GapThreshold})
}

// PipelineConfig translates the config section into orchestrator knobs.
func PipelineConfig(cfg common.PipelineConfig) pipeline.Config {
	return pipeline.Config{
		Retry: retry.Policy{
			MaxRetries:  cfg.MaxRetries,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			IsRetryable: common.IsRetryable,
		},
		StageTimeout:   cfg.StageTimeout,
		PersistRetries: cfg.PersistRetries,
	}
}

// Pipeline is everything needed to process one contract.
type Pipeline struct {
	Store    pipeline.Store
	Blobs    storage.BlobStore
	Text     ocr.TextExtractor
	Fields   llm.FieldExtractor
	Scorer   pipeline.Scorer
	Recorder pipeline.Recorder
}

// NewOrchestrator wires the three stages behind the orchestrator.
func NewOrchestrator(p Pipeline, cfg common.PipelineConfig, logger *slog.Logger) *pipeline.Orchestrator {
	opts := []pipeline.Option{}
	if p.Recorder != nil {
		opts = append(opts, pipeline.WithRecorder(p.Recorder))
	}
	return pipeline.NewOrchestrator(
		p.Store,
		pipeline.NewTextStage(p.Blobs, p.Text, logger),
		pipeline.NewDataStage(p.Fields, logger),
		pipeline.NewScoringStage(p.Scorer),
		PipelineConfig(cfg),
		logger,
		opts...,
	)
}

// NewQueue starts the configured dispatcher around proc.
func NewQueue(cfg common.QueueConfig, proc async.Processor, m async.Metrics, logger *slog.Logger) (async.Queue, error) {
	opts := []async.Option{
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(cfg.Size),
		async.WithProcessTimeout(cfg.ProcessTimeout),
		async.WithLeaseTTL(cfg.LeaseTTL),
	}
	if m != nil {
		opts = append(opts, async.WithMetrics(m))
	}

	switch cfg.Backend {
	case "", "memory":
		return async.NewProcessorQueue(proc, logger, opts...), nil
	case "redis":
		client, err := async.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		q := async.NewRedisQueue(client, cfg.RedisKey, proc, logger, opts...)
		q.Start()
		return q, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
