package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/contract-intelligence/internal/app"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/ocr"
)

func main() {
	full := flag.Bool("full", false, "print the whole text instead of a preview")
	flag.Parse()

	cfg, err := common.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-full] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	tx, err := app.NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("build extractor", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := tx.Extract(ctx, ocr.Document{Data: data, Filename: filepath.Base(path)})
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed",
			"error", err, "kind", common.KindOf(err), "retryable", common.IsRetryable(err), "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"low_quality", res.LowQuality,
		"warnings", res.Warnings,
		"duration_ms", dur.Milliseconds(),
	)
	text := res.Text
	if !*full && len(text) > 2000 {
		text = text[:2000] + "\n..."
	}
	fmt.Println(text)
}
