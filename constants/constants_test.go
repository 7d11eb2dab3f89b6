package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoredCategoriesSumToHundred(t *testing.T) {
	var total float64
	for _, c := range ScoredCategories() {
		total += c.MaxPoints()
	}
	assert.Equal(t, 100.0, total)
	assert.Zero(t, RevenueClassification.MaxPoints())
}

func TestStageStatus(t *testing.T) {
	assert.Equal(t, StatusPending, StageQueued.Status())
	assert.Equal(t, StatusProcessing, StageExtractingText.Status())
	assert.Equal(t, StatusProcessing, StageExtractingData.Status())
	assert.Equal(t, StatusProcessing, StageScoring.Status())
	assert.Equal(t, StatusCompleted, StageCompleted.Status())
	assert.Equal(t, StatusFailed, StageFailed.Status())
}

func TestCanonicalize(t *testing.T) {
	c, ok := Canonicalize(" SLA ")
	assert.True(t, ok)
	assert.Equal(t, ServiceLevelAgreements, c)

	c, ok = Canonicalize("financial_details")
	assert.True(t, ok)
	assert.Equal(t, FinancialDetails, c)

	_, ok = Canonicalize("weather")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("completed")
	assert.True(t, ok)
	assert.True(t, s.Terminal())

	_, ok = ParseStatus("COMPLETED")
	assert.False(t, ok)
}
