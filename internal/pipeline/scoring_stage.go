package pipeline

import (
	"context"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

// Scorer is the pure scoring engine.
type Scorer interface {
	Score(data entity.StructuredData) entity.ScoreReport
}

// ScoringStage scores the structured data. Its success completes the contract.
type ScoringStage struct {
	Scorer Scorer
}

func NewScoringStage(s Scorer) *ScoringStage { return &ScoringStage{Scorer: s} }

func (s *ScoringStage) Name() constants.Stage { return constants.StageScoring }

func (s *ScoringStage) Done(c *entity.Contract) bool { return c.ScoreReport != nil }

func (s *ScoringStage) Enter() float64 { return constants.ProgressScoringStart }

func (s *ScoringStage) Run(_ context.Context, c *entity.Contract) (func(*entity.Contract), error) {
	if c.StructuredData == nil {
		return nil, &MissingInputError{Input: "structured_data"}
	}
	report := s.Scorer.Score(c.StructuredData)
	return func(c *entity.Contract) {
		c.ScoreReport = &report
	}, nil
}
