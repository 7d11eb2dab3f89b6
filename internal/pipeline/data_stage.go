package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm"
)

// DataStage runs structured extraction over the raw text.
type DataStage struct {
	Extractor llm.FieldExtractor
	Logger    *slog.Logger
}

func NewDataStage(fe llm.FieldExtractor, logger *slog.Logger) *DataStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataStage{Extractor: fe, Logger: logger}
}

func (s *DataStage) Name() constants.Stage { return constants.StageExtractingData }

func (s *DataStage) Done(c *entity.Contract) bool { return c.StructuredData != nil }

func (s *DataStage) Enter() float64 { return constants.ProgressDataStarted }

func (s *DataStage) Run(ctx context.Context, c *entity.Contract) (func(*entity.Contract), error) {
	if c.RawText == nil {
		return nil, &MissingInputError{Input: "raw_text"}
	}

	s.Logger.Debug("pipeline.data.start", "contract_id", c.ID, "text_chars", len(*c.RawText))
	ext, err := s.Extractor.ExtractFields(ctx, llm.ExtractRequest{Text: *c.RawText, Filename: c.Filename})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("pipeline.data.ok",
		"contract_id", c.ID,
		"model", ext.Model,
		"present", ext.Data.PresentCount(),
		"fields", len(ext.Data),
		"dropped", len(ext.Dropped),
		"invalid", len(ext.Invalid),
	)

	data := ext.Data
	return func(c *entity.Contract) {
		c.StructuredData = data
		c.ProgressPercentage = max(c.ProgressPercentage, constants.ProgressDataDone)
	}, nil
}
