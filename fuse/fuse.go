// Package fuse implements the deterministic score-fusion pipeline: the
// Choquet-style combination of the eight layer signals, the ordered hard-gate
// veto rules, and the quality-band labeler.
//
// Everything here is a pure function over validated inputs. Fusion of
// independent units may run fully in parallel; serialization happens later,
// at the ledger.
package fuse

import (
	"fmt"

	"rubriq.co/rubriq/model"
	"rubriq.co/rubriq/profile"
)

// Fuse combines a layer vector and a weight profile into a raw fused score.
//
// raw = Σ linear[l]·value[l] + Σ interaction[(l,k)]·min(value[l], value[k])
//
// This is the discrete Choquet integral restricted to pairwise interactions:
// each interaction term rewards only the weaker of two correlated signals, so
// correlated strengths are not double-counted. Both terms are non-decreasing
// in every component, which makes the whole fusion monotone.
//
// The caller must have validated both inputs; an invalid vector or profile is
// a caller error, reported before any arithmetic.
func Fuse(v model.LayerVector, p *profile.WeightProfile) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if err := v.Validate(); err != nil {
		return 0, err
	}

	raw := 0.0
	for _, l := range model.Layers {
		x, _ := v.Value(l)
		raw += p.Linear[l] * x
	}
	for _, it := range p.InteractionList() {
		a, _ := v.Value(it.Pair.A)
		b, _ := v.Value(it.Pair.B)
		raw += it.Weight * min(a, b)
	}

	// Weights sum to one and every component is in [0,1], so raw is in
	// [0,1] up to float error; clamp before rounding for bit-exact hashes.
	return model.RoundScore(model.Clamp(raw, 0, 1)), nil
}

// Result is the outcome of one full fusion+gating+labeling evaluation.
type Result struct {
	Raw        float64
	Final      float64
	GateReason GateReason
	Label      model.QualityLabel
}

// Evaluate runs the full pipeline for one unit: fuse, gate, label.
func Evaluate(v model.LayerVector, p *profile.WeightProfile, gates GateThresholds, bands Bands) (Result, error) {
	if err := gates.Validate(); err != nil {
		return Result{}, err
	}
	if err := bands.Validate(); err != nil {
		return Result{}, err
	}

	raw, err := Fuse(v, p)
	if err != nil {
		return Result{}, err
	}
	final, reason := ApplyGates(raw, v, gates)
	return Result{
		Raw:        raw,
		Final:      final,
		GateReason: reason,
		Label:      bands.Label(final),
	}, nil
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func invalidThreshold(field string, x float64) error {
	return model.NewError(model.KindValidation, "RBQ-VAL-020",
		fmt.Sprintf("threshold %s = %v outside [0,1]", field, x))
}
