package fuse

import "rubriq.co/rubriq/model"

// Bands maps a final score onto a discrete quality band via three descending
// lower bounds.
//
// Bands are supplied externally and versioned alongside the weight profile.
// The source calibrations disagree on the authoritative thresholds
// (0.70/0.50/0.30 in one cohort, 0.85/0.70/0.55 in another), so the engine
// never hardcodes either set.
type Bands struct {
	Excellent  float64 `json:"excellent" yaml:"excellent"`
	Good       float64 `json:"good" yaml:"good"`
	Acceptable float64 `json:"acceptable" yaml:"acceptable"`
}

// Validate requires strictly descending bounds within [0,1].
func (b Bands) Validate() error {
	for _, t := range []struct {
		name string
		x    float64
	}{
		{"excellent", b.Excellent},
		{"good", b.Good},
		{"acceptable", b.Acceptable},
	} {
		if t.x < 0 || t.x > 1 {
			return invalidThreshold(t.name, t.x)
		}
	}
	if !(b.Excellent > b.Good && b.Good > b.Acceptable) {
		return model.NewError(model.KindValidation, "RBQ-VAL-021",
			"band thresholds must be strictly descending")
	}
	return nil
}

// Label assigns the quality band containing score.
func (b Bands) Label(score float64) model.QualityLabel {
	switch {
	case score >= b.Excellent:
		return model.LabelExcellent
	case score >= b.Good:
		return model.LabelGood
	case score >= b.Acceptable:
		return model.LabelAcceptable
	default:
		return model.LabelDeficient
	}
}
