// Package scoring turns structured contract data into a completeness and
// confidence score with a gap report. Everything here is pure.
package scoring

import (
	"math"
	"slices"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/schema"
)

// DefaultGapThreshold is the confidence below which a present field is a gap.
const DefaultGapThreshold = 0.5

// Config for the Engine.
type Config struct {
	GapThreshold float64 // 0 -> DefaultGapThreshold
}

// Engine scores structured data against a fixed field list.
type Engine struct {
	threshold float64
	fields    []schema.Field
	gapOrder  []schema.Field
}

func NewEngine(cfg Config) *Engine {
	return newEngine(cfg, schema.Fields())
}

func newEngine(cfg Config, fields []schema.Field) *Engine {
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = DefaultGapThreshold
	}
	return &Engine{
		threshold: cfg.GapThreshold,
		fields:    fields,
		gapOrder:  gapOrder(fields),
	}
}

// gapOrder sorts by descending category maximum, then declaration order.
func gapOrder(fields []schema.Field) []schema.Field {
	out := slices.Clone(fields)
	slices.SortStableFunc(out, func(a, b schema.Field) int {
		ma, mb := a.Category.MaxPoints(), b.Category.MaxPoints()
		switch {
		case ma > mb:
			return -1
		case ma < mb:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Score computes the report for data. Identical input yields an identical report.
func (e *Engine) Score(data entity.StructuredData) entity.ScoreReport {
	report := entity.ScoreReport{
		CategoryScores:  make(map[constants.Category]float64, len(constants.ScoredCategories())),
		Gaps:            []string{},
		GapDetails:      []entity.Gap{},
		Recommendations: []string{},
		Threshold:       e.threshold,
	}

	var total float64
	for _, c := range constants.ScoredCategories() {
		earned := c.MaxPoints() * e.weightedConfidence(c, data)
		report.CategoryScores[c] = earned
		total += earned
	}
	report.OverallScore = clamp(int(math.Round(total)), 0, 100)
	report.RevenueClassificationConfidence = e.weightedConfidence(constants.RevenueClassification, data)

	withGaps := map[constants.Category]bool{}
	var gapCats []constants.Category
	for _, f := range e.gapOrder {
		v, ok := data[f.Name]
		conf := confidence(v)
		var reason string
		switch {
		case !ok || !v.Present:
			reason = entity.GapAbsent
		case conf < e.threshold:
			reason = entity.GapLowConfidence
		default:
			continue
		}
		report.Gaps = append(report.Gaps, f.Name)
		report.GapDetails = append(report.GapDetails, entity.Gap{
			Field:      f.Name,
			Category:   f.Category,
			Reason:     reason,
			Confidence: conf,
		})
		if !withGaps[f.Category] {
			withGaps[f.Category] = true
			gapCats = append(gapCats, f.Category)
		}
	}
	for _, c := range gapCats {
		report.Recommendations = append(report.Recommendations, recommendation(c))
	}
	return report
}

// weightedConfidence is sum(weight*confidence)/sum(weight) over every field of
// the category; absent fields contribute zero.
func (e *Engine) weightedConfidence(c constants.Category, data entity.StructuredData) float64 {
	var num, den float64
	for _, f := range e.fields {
		if f.Category != c {
			continue
		}
		den += f.Weight
		if v, ok := data[f.Name]; ok && v.Present {
			num += f.Weight * confidence(v)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func confidence(v entity.FieldValue) float64 {
	if !v.Present || math.IsNaN(v.Confidence) {
		return 0
	}
	return math.Min(1, math.Max(0, v.Confidence))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var recommendations = map[constants.Category]string{
	constants.PartyIdentification:    "Confirm the full legal names, registration details and signatories of every party.",
	constants.AccountInformation:     "Add billing details, account references and named billing and technical contacts.",
	constants.FinancialDetails:       "State the total contract value, currency, priced line items and applicable taxes.",
	constants.PaymentStructure:       "Define payment terms, schedule, due dates and accepted payment methods.",
	constants.ServiceLevelAgreements: "Specify measurable service levels with penalties, remedies and support commitments.",
	constants.RevenueClassification:  "Clarify whether charges are recurring or one-time, the billing cycle and renewal terms.",
}

func recommendation(c constants.Category) string {
	if r, ok := recommendations[c]; ok {
		return r
	}
	return "Review the " + c.Label() + " section."
}
