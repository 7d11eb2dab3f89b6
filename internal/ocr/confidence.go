package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b(19|20)\d{2}[-/.]\d{1,2}[-/.]\d{1,2}\b|\b\d{1,2}[-/.]\d{1,2}[-/.](19|20)\d{2}\b|\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy|chf)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reLegal  = regexp.MustCompile(`\b(agreement|contract|parties|party|whereas|hereinafter|effective date|termination|governing law)\b`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }
func hasLegalPattern(s string) bool    { return reLegal.MatchString(s) }

// heuristicConfidence scores decoded text by the contract cues it contains.
func heuristicConfidence(txt string) float32 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasCurrencyPattern(txtL) {
		score += 0.15
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if hasLegalPattern(txtL) {
		score += 0.2
	}
	if len(txt) > 500 {
		score += 0.15
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// assess fills the derived quality fields of a result.
func assess(res *Result, minChars int) {
	res.Text = Normalize(res.Text)
	if res.Confidence == 0 {
		res.Confidence = heuristicConfidence(res.Text)
	}
	res.LowQuality = len([]rune(res.Text)) < minChars
}
