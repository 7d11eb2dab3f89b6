// Package export renders contracts and their gap reports as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

const (
	contractsSheet = "Contracts"
	gapsSheet      = "Gaps"
)

// Lister loads contracts by status.
type Lister interface {
	ListByStatus(ctx context.Context, statuses ...constants.Status) ([]*entity.Contract, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	contracts Lister
	logger    *slog.Logger
}

func NewService(contracts Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{contracts: contracts, logger: logger}
}

// ExportXLSX loads contracts, all of them when status is nil, and renders them.
func (s *Service) ExportXLSX(ctx context.Context, status *constants.Status) ([]byte, error) {
	statuses := []constants.Status{
		constants.StatusPending, constants.StatusProcessing, constants.StatusCompleted, constants.StatusFailed,
	}
	if status != nil {
		statuses = []constants.Status{*status}
	}
	items, err := s.contracts.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	return s.ContractsXLSX(ctx, items)
}

// ContractsXLSX writes one row per contract on "Contracts" and one row per
// gap on "Gaps". Contracts without a score report leave the score columns blank.
func (s *Service) ContractsXLSX(_ context.Context, contracts []*entity.Contract) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", contractsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(gapsSheet); err != nil {
		return nil, err
	}

	categories := constants.ScoredCategories()
	headers := []string{"Contract ID", "Filename", "Status", "Overall Score"}
	for _, c := range categories {
		headers = append(headers, c.Label())
	}
	headers = append(headers, "Revenue Confidence", "Gap Count", "Processed At", "Failure")
	writeRow(f, contractsSheet, 1, headers)
	writeRow(f, gapsSheet, 1, []any{"Contract ID", "Filename", "Field", "Category", "Reason", "Confidence"})

	row, gapRow := 2, 2
	gaps := 0
	for _, c := range contracts {
		values := []any{c.ID.String(), c.Filename, string(c.Status)}
		if r := c.ScoreReport; r != nil {
			values = append(values, r.OverallScore)
			for _, cat := range categories {
				values = append(values, round2(r.CategoryScores[cat]))
			}
			values = append(values, round2(r.RevenueClassificationConfidence), len(r.Gaps))
		} else {
			for i := 0; i < len(categories)+3; i++ {
				values = append(values, "")
			}
		}
		processed := ""
		if c.ProcessedAt != nil {
			processed = c.ProcessedAt.UTC().Format(time.RFC3339)
		}
		failure := ""
		if c.ErrorDetails != nil {
			failure = fmt.Sprintf("%s: %s", c.ErrorDetails.Stage, c.ErrorDetails.Cause)
		}
		values = append(values, processed, failure)
		writeRow(f, contractsSheet, row, values)
		row++

		if c.ScoreReport == nil {
			continue
		}
		for _, g := range c.ScoreReport.GapDetails {
			writeRow(f, gapsSheet, gapRow, []any{
				c.ID.String(), c.Filename, g.Field, g.Category.Label(), g.Reason, round2(g.Confidence),
			})
			gapRow++
			gaps++
		}
	}

	_ = f.SetColWidth(contractsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(contractsSheet, "B", "B", 32) // filename
	_ = f.SetColWidth(contractsSheet, "E", "I", 16)
	_ = f.SetColWidth(contractsSheet, "L", "M", 24)
	_ = f.SetColWidth(gapsSheet, "A", "A", 38)
	_ = f.SetColWidth(gapsSheet, "B", "D", 26)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"contracts", len(contracts),
		"gaps", gaps,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
