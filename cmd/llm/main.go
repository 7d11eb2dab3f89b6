package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/contract-intelligence/internal/app"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm"
)

type output struct {
	Model   string                `json:"model"`
	Data    entity.StructuredData `json:"structured_data"`
	Dropped []string              `json:"dropped_keys,omitempty"`
	Invalid []string              `json:"invalid_fields,omitempty"`
	Report  entity.ScoreReport    `json:"score_report"`
}

func main() {
	flag.Parse()

	cfg, err := common.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage: llm <contract.txt>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	text, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	fe, err := app.NewFieldExtractor(cfg.LLM, logger)
	if err != nil {
		logger.Error("build extractor", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	ext, err := fe.ExtractFields(ctx, llm.ExtractRequest{Text: string(text), Filename: filepath.Base(path)})
	if err != nil {
		logger.Error("structured extraction failed",
			"error", err, "kind", common.KindOf(err), "retryable", common.IsRetryable(err))
		os.Exit(1)
	}
	report := app.NewScorer(cfg.Pipeline).Score(ext.Data)
	logger.Info("extraction OK",
		"model", ext.Model,
		"present_fields", ext.Data.PresentCount(),
		"overall_score", report.OverallScore,
		"duration_ms", time.Since(start).Milliseconds())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{
		Model:   ext.Model,
		Data:    ext.Data,
		Dropped: ext.Dropped,
		Invalid: ext.Invalid,
		Report:  report,
	}); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
