package constants

import "strings"

// Category groups schema fields for scoring.
type Category string

const (
	PartyIdentification   Category = "party_identification"
	AccountInformation     Category = "account_information"
	FinancialDetails       Category = "financial_details"
	PaymentStructure       Category = "payment_structure"
	ServiceLevelAgreements Category = "service_level_agreements"
	RevenueClassification  Category = "revenue_classification"
)

// maxPoints is the fixed point allocation per category. The scored
// categories sum to 100; revenue classification is reported on its own.
var maxPoints = map[Category]float64{
	PartyIdentification:    25,
	AccountInformation:     10,
	FinancialDetails:       30,
	PaymentStructure:       20,
	ServiceLevelAgreements: 15,
	RevenueClassification:  0,
}

// scoredCategories is the fixed summation order.
var scoredCategories = []Category{
	PartyIdentification,
	AccountInformation,
	FinancialDetails,
	PaymentStructure,
	ServiceLevelAgreements,
}

var labels = map[Category]string{
	PartyIdentification:    "Party Identification",
	AccountInformation:     "Account Information",
	FinancialDetails:       "Financial Details",
	PaymentStructure:       "Payment Structure",
	ServiceLevelAgreements: "Service Level Agreements",
	RevenueClassification:  "Revenue Classification",
}

// MaxPoints returns the category's maximum contribution to the overall score.
func (c Category) MaxPoints() float64 { return maxPoints[c] }

// Label is the human readable name.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// ScoredCategories returns the categories that add up to the 100 point total.
func ScoredCategories() []Category {
	out := make([]Category, len(scoredCategories))
	copy(out, scoredCategories)
	return out
}

// Canonicalize maps the section names a model tends to produce onto categories.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Category{
		"parties":                PartyIdentification,
		"party_info":             PartyIdentification,
		"account_info":           AccountInformation,
		"account":                AccountInformation,
		"financial":              FinancialDetails,
		"financials":             FinancialDetails,
		"payment_terms":          PaymentStructure,
		"payment":                PaymentStructure,
		"sla":                    ServiceLevelAgreements,
		"slas":                   ServiceLevelAgreements,
		"service_level":          ServiceLevelAgreements,
		"revenue":                RevenueClassification,
		"revenue_classification": RevenueClassification,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}
	for cat := range maxPoints {
		if normalized == string(cat) {
			return cat, true
		}
	}
	return "", false
}
