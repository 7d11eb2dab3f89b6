package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/app"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/export"
	"github.com/joseph-ayodele/contract-intelligence/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem      = flag.Bool("inmem", false, "use an in-memory SQLite database")
		dir        = flag.String("dir", "", "directory of contracts to process (required)")
		out        = flag.String("out", "", "output XLSX path (defaults to <parent of dir>/contracts.xlsx)")
		statusStr  = flag.String("status", "", "only export contracts in this status")
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "contracts.xlsx")
	}
	var status *constants.Status
	if *statusStr != "" {
		st, ok := constants.ParseStatus(*statusStr)
		if !ok {
			printError("Error: --status must be one of %v\n", constants.StatusValues())
			os.Exit(1)
		}
		status = &st
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := app.OpenDatabase(ctx, cfg.Database, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	blobs, err := app.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}
	text, err := app.NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to build text extractor", "error", err)
		os.Exit(1)
	}
	fields, err := app.NewFieldExtractor(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build field extractor", "error", err)
		os.Exit(1)
	}
	orch := app.NewOrchestrator(app.Pipeline{
		Store:  db.Contracts,
		Blobs:  blobs,
		Text:   text,
		Fields: fields,
		Scorer: app.NewScorer(cfg.Pipeline),
	}, cfg.Pipeline, logger)

	ingester := ingest.NewService(db.Contracts, blobs, cfg.Server.MaxUploadBytes, logger)

	logger.Info("starting ingestion", "dir", *dir)
	results, stats, err := ingester.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}

	var ingested []uuid.UUID
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("skipped file", "path", r.Path, "error", r.Err)
			continue
		}
		ingested = append(ingested, r.ContractID)
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed)

	processed, failures := 0, 0
	for _, id := range ingested {
		if err := orch.Run(ctx, id); err != nil {
			logger.Error("failed to process contract", "contract_id", id, "error", err)
			failures++
			continue
		}
		processed++
	}

	logger.Info("exporting to XLSX", "output", *out)
	xlsx, err := export.NewService(db.Contracts, logger).ExportXLSX(ctx, status)
	if err != nil {
		logger.Error("failed to export contracts", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Contracts ingested: %d\n", len(ingested))
	fmt.Printf("- Contracts processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}
