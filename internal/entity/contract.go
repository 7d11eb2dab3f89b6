package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
)

// Contract represents a contract record for data transfer between layers.
type Contract struct {
	ID                 uuid.UUID        `json:"id"`
	Filename           string           `json:"filename"`
	MimeType           string           `json:"mime_type"`
	FileSize           int64            `json:"file_size"`
	BlobKey            string           `json:"-"`
	Status             constants.Status `json:"status"`
	Stage              constants.Stage  `json:"stage"`
	ProgressPercentage float64          `json:"progress_percentage"`
	RawText            *string          `json:"raw_text,omitempty"`
	TextConfidence     *float32         `json:"text_confidence,omitempty"`
	TextMethod         *string          `json:"text_method,omitempty"`
	StructuredData     StructuredData   `json:"structured_data,omitempty"`
	ScoreReport        *ScoreReport     `json:"score_report,omitempty"`
	ErrorDetails       *ErrorDetails    `json:"error_details,omitempty"`
	RetryCount         int              `json:"retry_count"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	ProcessedAt        *time.Time       `json:"processed_at,omitempty"`
}

// NewContract builds a freshly uploaded record: pending, queued, nothing derived.
func NewContract(filename, mimeType string, size int64, now time.Time) *Contract {
	id := uuid.New()
	return &Contract{
		ID:                 id,
		Filename:           filename,
		MimeType:           mimeType,
		FileSize:           size,
		BlobKey:            id.String(),
		Status:             constants.StatusPending,
		Stage:              constants.StageQueued,
		ProgressPercentage: constants.ProgressPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// FieldValue is one extracted schema field.
type FieldValue struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Present    bool    `json:"present"`
}

// Absent is the explicit marker for a field the extractor could not fill.
func Absent() FieldValue { return FieldValue{} }

// StructuredData maps schema field names to their extracted values.
type StructuredData map[string]FieldValue

// PresentCount returns how many fields carry a value.
func (d StructuredData) PresentCount() int {
	n := 0
	for _, v := range d {
		if v.Present {
			n++
		}
	}
	return n
}

// Gap reasons.
const (
	GapAbsent        = "absent"
	GapLowConfidence = "low_confidence"
)

// Gap describes one missing or weak field.
type Gap struct {
	Field      string             `json:"field"`
	Category   constants.Category `json:"category"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"`
}

// ScoreReport is the scoring engine output.
type ScoreReport struct {
	OverallScore                    int                            `json:"overall_score"`
	CategoryScores                  map[constants.Category]float64 `json:"category_scores"`
	RevenueClassificationConfidence float64                        `json:"revenue_classification_confidence"`
	Gaps                            []string                       `json:"gaps"`
	GapDetails                      []Gap                          `json:"gap_details"`
	Recommendations                 []string                       `json:"recommendations"`
	Threshold                       float64                        `json:"threshold"`
}

// ErrorDetails is present only on failed contracts.
type ErrorDetails struct {
	Stage            constants.Stage `json:"stage"`
	Cause            string          `json:"cause"`
	Kind             string          `json:"kind"`
	Retryable        bool            `json:"retryable"`
	RetryCount       int             `json:"retry_count"`
	RetriesExhausted bool            `json:"retries_exhausted"`
	FailedAt         time.Time       `json:"failed_at"`
}
