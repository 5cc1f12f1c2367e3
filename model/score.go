package model

import (
	"math"
	"strconv"
)

// ScoreDigits is the fixed number of decimal digits every score is rounded to
// before rendering or hashing. Independent recomputations must produce
// bit-identical canonical bytes, so all score arithmetic funnels through
// RoundScore before leaving the core.
const ScoreDigits = 4

const scoreScale = 1e4

// RoundScore rounds x to ScoreDigits decimal digits, half away from zero.
func RoundScore(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x*scoreScale) / scoreScale
}

// FormatScore renders a score with exactly ScoreDigits decimal digits.
func FormatScore(x float64) string {
	return strconv.FormatFloat(RoundScore(x), 'f', ScoreDigits, 64)
}

// ParseScore parses a score previously produced by FormatScore.
func ParseScore(s string) (float64, error) {
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, wrapError(KindParse, "RBQ-PARSE-020", "invalid score literal", err)
	}
	if !IsValidScore(x) {
		return 0, newError(KindValidation, "RBQ-VAL-002", "score "+s+" outside [0,1]")
	}
	return x, nil
}

// IsValidScore reports whether x is a finite value in [0,1].
func IsValidScore(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x >= 0 && x <= 1
}

// Clamp constrains x to [lo,hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// QualityLabel is a discrete quality band assigned to a final score.
type QualityLabel string

const (
	LabelExcellent  QualityLabel = "EXCELLENT"
	LabelGood       QualityLabel = "GOOD"
	LabelAcceptable QualityLabel = "ACCEPTABLE"
	LabelDeficient  QualityLabel = "DEFICIENT"
)

// KnownLabel reports whether l is one of the four quality bands.
func KnownLabel(l QualityLabel) bool {
	switch l {
	case LabelExcellent, LabelGood, LabelAcceptable, LabelDeficient:
		return true
	}
	return false
}
