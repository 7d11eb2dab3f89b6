package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/ocr"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

// TextStage reads the stored upload and turns it into raw text.
type TextStage struct {
	Blobs         storage.BlobStore
	TextExtractor ocr.TextExtractor
	Logger        *slog.Logger
}

func NewTextStage(blobs storage.BlobStore, tx ocr.TextExtractor, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStage{Blobs: blobs, TextExtractor: tx, Logger: logger}
}

func (s *TextStage) Name() constants.Stage { return constants.StageExtractingText }

func (s *TextStage) Done(c *entity.Contract) bool { return c.RawText != nil }

func (s *TextStage) Enter() float64 { return constants.ProgressTextStarted }

// Run needs the stored blob; a missing blob cannot be retried into existence.
func (s *TextStage) Run(ctx context.Context, c *entity.Contract) (func(*entity.Contract), error) {
	if c.BlobKey == "" {
		return nil, &MissingInputError{Input: "blob_key"}
	}
	data, err := storage.ReadAll(ctx, s.Blobs, c.BlobKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, &MissingInputError{Input: "stored document " + c.BlobKey}
		}
		return nil, err
	}

	res, err := s.TextExtractor.Extract(ctx, ocr.Document{Data: data, MimeType: c.MimeType, Filename: c.Filename})
	if err != nil {
		return nil, err
	}
	if res.LowQuality {
		return nil, &LowQualityTextError{Chars: utf8.RuneCountInString(res.Text), Method: res.Method}
	}

	s.Logger.Info("pipeline.text.ok",
		"contract_id", c.ID,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
	)

	text, conf, method := res.Text, res.Confidence, res.Method
	return func(c *entity.Contract) {
		c.RawText = &text
		c.TextConfidence = &conf
		c.TextMethod = &method
		c.ProgressPercentage = max(c.ProgressPercentage, constants.ProgressTextDone)
	}, nil
}
