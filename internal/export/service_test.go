package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

type fakeLister struct {
	items []*entity.Contract
	asked []constants.Status
	err   error
}

func (f *fakeLister) ListByStatus(_ context.Context, statuses ...constants.Status) ([]*entity.Contract, error) {
	f.asked = statuses
	return f.items, f.err
}

func completedContract() *entity.Contract {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := entity.NewContract("msa.pdf", constants.MIMEPDF, 10, now)
	c.Status = constants.StatusCompleted
	c.ProcessedAt = &now
	c.ScoreReport = &entity.ScoreReport{
		OverallScore: 62,
		CategoryScores: map[constants.Category]float64{
			constants.PartyIdentification: 25,
			constants.FinancialDetails:    22.456,
			constants.PaymentStructure:    15,
		},
		RevenueClassificationConfidence: 0.8,
		Gaps:                            []string{"billing_details", "support_terms"},
		GapDetails: []entity.Gap{
			{Field: "billing_details", Category: constants.AccountInformation, Reason: entity.GapAbsent},
			{Field: "support_terms", Category: constants.ServiceLevelAgreements, Reason: entity.GapLowConfidence, Confidence: 0.3},
		},
	}
	return c
}

func failedContract() *entity.Contract {
	c := entity.NewContract("scan.pdf", constants.MIMEPDF, 10, time.Now())
	c.Status = constants.StatusFailed
	c.ErrorDetails = &entity.ErrorDetails{Stage: constants.StageExtractingText, Cause: "encrypted pdf"}
	return c
}

func newService(l Lister) *Service {
	return NewService(l, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestContractsXLSX(t *testing.T) {
	done, failed := completedContract(), failedContract()

	raw, err := newService(&fakeLister{}).ContractsXLSX(context.Background(), []*entity.Contract{done, failed})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Contracts", "Gaps"}, f.GetSheetList())

	rows, err := f.GetRows("Contracts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Contract ID", rows[0][0])
	assert.Equal(t, "Party Identification", rows[0][4])
	assert.Equal(t, []string{
		done.ID.String(), "msa.pdf", "completed", "62",
		"25", "0", "22.46", "15", "0", "0.8", "2", "2024-03-01T12:00:00Z",
	}, rows[1])
	assert.Equal(t, failed.ID.String(), rows[2][0])
	assert.Equal(t, "failed", rows[2][2])
	assert.Equal(t, "extracting_text: encrypted pdf", rows[2][len(rows[2])-1])

	gaps, err := f.GetRows("Gaps")
	require.NoError(t, err)
	require.Len(t, gaps, 3)
	assert.Equal(t, []string{done.ID.String(), "msa.pdf", "billing_details", "Account Information", "absent", "0"}, gaps[1])
	assert.Equal(t, "low_confidence", gaps[2][4])
	assert.Equal(t, "0.3", gaps[2][5])
}

func TestExportXLSX_StatusFilter(t *testing.T) {
	l := &fakeLister{items: []*entity.Contract{completedContract()}}
	svc := newService(l)

	status := constants.StatusCompleted
	_, err := svc.ExportXLSX(context.Background(), &status)
	require.NoError(t, err)
	assert.Equal(t, []constants.Status{constants.StatusCompleted}, l.asked)

	_, err = svc.ExportXLSX(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, l.asked, 4)

	l.err = errors.New("db down")
	_, err = svc.ExportXLSX(context.Background(), nil)
	assert.ErrorContains(t, err, "query contracts")
}
