package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/contract-intelligence/internal/app"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/export"
	"github.com/joseph-ayodele/contract-intelligence/internal/ingest"
	"github.com/joseph-ayodele/contract-intelligence/internal/metrics"
	"github.com/joseph-ayodele/contract-intelligence/internal/pipeline"
	"github.com/joseph-ayodele/contract-intelligence/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("contractsd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := app.OpenDatabase(ctx, cfg.Database, false, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := app.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	text, err := app.NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		return err
	}
	fields, err := app.NewFieldExtractor(cfg.LLM, logger)
	if err != nil {
		return err
	}

	rec := metrics.New()
	orch := app.NewOrchestrator(app.Pipeline{
		Store:    db.Contracts,
		Blobs:    blobs,
		Text:     text,
		Fields:   fields,
		Scorer:   app.NewScorer(cfg.Pipeline),
		Recorder: rec,
	}, cfg.Pipeline, logger)

	queue, err := app.NewQueue(cfg.Queue, orch, rec, logger)
	if err != nil {
		return err
	}

	// Pick up work a previous process left unfinished.
	if n, err := pipeline.RecoverIncomplete(ctx, db.Contracts, queue, logger); err != nil {
		logger.Warn("recovery incomplete", "requeued", n, "error", err)
	} else if n > 0 {
		logger.Info("recovered contracts", "requeued", n)
	}

	svc := server.NewContractService(
		db.Contracts,
		ingest.NewService(db.Contracts, blobs, cfg.Server.MaxUploadBytes, logger),
		queue,
		blobs,
		export.NewService(db.Contracts, logger),
		rec,
		logger,
	)

	httpSrv := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewRouter(server.RouterConfig{
			Service:        svc,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			Health:         db.Ping,
			Metrics:        rec.Handler(),
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv, health := server.NewGRPCServer(svc, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		grpcSrv.GracefulStop()
		queue.Shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}
