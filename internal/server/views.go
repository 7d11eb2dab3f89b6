package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

type statusView struct {
	ID                 uuid.UUID            `json:"id"`
	Filename           string               `json:"filename"`
	Status             constants.Status     `json:"status"`
	Stage              constants.Stage      `json:"stage"`
	ProgressPercentage float64              `json:"progress_percentage"`
	RetryCount         int                  `json:"retry_count"`
	ErrorDetails       *entity.ErrorDetails `json:"error_details"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	ProcessedAt        *time.Time           `json:"processed_at"`
}

func newStatusView(c *entity.Contract) statusView {
	return statusView{
		ID:                 c.ID,
		Filename:           c.Filename,
		Status:             c.Status,
		Stage:              c.Stage,
		ProgressPercentage: c.ProgressPercentage,
		RetryCount:         c.RetryCount,
		ErrorDetails:       c.ErrorDetails,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		ProcessedAt:        c.ProcessedAt,
	}
}

type summaryView struct {
	ID                 uuid.UUID        `json:"id"`
	Filename           string           `json:"filename"`
	FileSize           int64            `json:"file_size"`
	Status             constants.Status `json:"status"`
	Stage              constants.Stage  `json:"stage"`
	ProgressPercentage float64          `json:"progress_percentage"`
	OverallScore       *int             `json:"overall_score"`
	GapCount           int              `json:"gap_count"`
	CreatedAt          time.Time        `json:"created_at"`
	ProcessedAt        *time.Time       `json:"processed_at"`
}

func newSummaryView(c *entity.Contract) summaryView {
	v := summaryView{
		ID:                 c.ID,
		Filename:           c.Filename,
		FileSize:           c.FileSize,
		Status:             c.Status,
		Stage:              c.Stage,
		ProgressPercentage: c.ProgressPercentage,
		CreatedAt:          c.CreatedAt,
		ProcessedAt:        c.ProcessedAt,
	}
	if c.ScoreReport != nil {
		score := c.ScoreReport.OverallScore
		v.OverallScore = &score
		v.GapCount = len(c.ScoreReport.Gaps)
	}
	return v
}

type pageView struct {
	Items   []summaryView `json:"items"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	HasNext bool          `json:"has_next"`
	HasPrev bool          `json:"has_prev"`
}

func newPageView(p Page) pageView {
	items := make([]summaryView, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, newSummaryView(c))
	}
	return pageView{
		Items:   items,
		Total:   p.Total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasNext: p.HasNext,
		HasPrev: p.HasPrev,
	}
}

type uploadView struct {
	ID       uuid.UUID        `json:"id"`
	Filename string           `json:"filename"`
	Status   constants.Status `json:"status"`
	Message  string           `json:"message"`
}

type errorBody struct {
	Error errorView `json:"error"`
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toStruct converts a JSON-tagged view into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal view: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal view: %w", err)
	}
	return structpb.NewStruct(m)
}
