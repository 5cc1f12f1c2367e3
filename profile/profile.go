// Package profile holds versioned, immutable fusion weight profiles.
//
// A profile is validated once at load time and never mutated afterwards.
// Certificates record which profile produced them, so profiles from different
// calibration cohorts may coexist under distinct IDs.
package profile

import (
	"fmt"
	"math"
	"sort"

	"rubriq.co/rubriq/model"
)

// NormalizationTolerance bounds the drift allowed when checking that linear
// and interaction weights sum to one.
const NormalizationTolerance = 1e-6

// InteractionPair names an unordered pair of layers whose weaker signal is
// rewarded by an interaction term.
type InteractionPair struct {
	A model.Layer `json:"a" yaml:"a"`
	B model.Layer `json:"b" yaml:"b"`
}

// Key returns a stable identifier for the pair, independent of order.
func (p InteractionPair) Key() string {
	a, b := string(p.A), string(p.B)
	if b < a {
		a, b = b, a
	}
	return a + "," + b
}

// WeightProfile is one versioned set of fusion weights: eight linear weights
// plus a small set of pairwise interaction weights.
//
// Invariant: sum(linear) + sum(interactions) == 1 within
// NormalizationTolerance. Enforced by Validate before any fusion.
type WeightProfile struct {
	ID           string                      `json:"id" yaml:"id"`
	Linear       map[model.Layer]float64     `json:"linear" yaml:"linear"`
	Interactions map[InteractionPair]float64 `json:"-" yaml:"-"`
}

// InteractionList returns the interaction terms sorted by pair key.
// Fusion iterates this order so results are reproducible.
func (p *WeightProfile) InteractionList() []Interaction {
	out := make([]Interaction, 0, len(p.Interactions))
	for pair, w := range p.Interactions {
		out = append(out, Interaction{Pair: pair, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.Key() < out[j].Pair.Key() })
	return out
}

// Interaction is one pairwise interaction term.
type Interaction struct {
	Pair   InteractionPair
	Weight float64
}

// Validate checks the profile invariants. A profile failing validation is
// rejected at load time and never used for fusion.
func (p *WeightProfile) Validate() error {
	if p == nil {
		return model.NewError(model.KindProfile, "RBQ-PROF-000", "nil weight profile")
	}
	if p.ID == "" {
		return model.NewError(model.KindProfile, "RBQ-PROF-001", "weight profile missing id")
	}
	if len(p.Linear) != len(model.Layers) {
		return model.NewError(model.KindProfile, "RBQ-PROF-002",
			fmt.Sprintf("profile %q: expected %d linear weights, got %d", p.ID, len(model.Layers), len(p.Linear)))
	}

	sum := 0.0
	for l, w := range p.Linear {
		if !model.KnownLayer(l) {
			return model.NewError(model.KindProfile, "RBQ-PROF-003",
				fmt.Sprintf("profile %q: unknown layer %q", p.ID, l))
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return model.NewError(model.KindProfile, "RBQ-PROF-004",
				fmt.Sprintf("profile %q: invalid linear weight for layer %q", p.ID, l))
		}
		sum += w
	}

	seen := make(map[string]bool, len(p.Interactions))
	for pair, w := range p.Interactions {
		if !model.KnownLayer(pair.A) || !model.KnownLayer(pair.B) {
			return model.NewError(model.KindProfile, "RBQ-PROF-005",
				fmt.Sprintf("profile %q: interaction references unknown layer (%s,%s)", p.ID, pair.A, pair.B))
		}
		if pair.A == pair.B {
			return model.NewError(model.KindProfile, "RBQ-PROF-006",
				fmt.Sprintf("profile %q: interaction pairs a layer with itself (%s)", p.ID, pair.A))
		}
		if seen[pair.Key()] {
			return model.NewError(model.KindProfile, "RBQ-PROF-007",
				fmt.Sprintf("profile %q: duplicate interaction pair (%s,%s)", p.ID, pair.A, pair.B))
		}
		seen[pair.Key()] = true
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return model.NewError(model.KindProfile, "RBQ-PROF-008",
				fmt.Sprintf("profile %q: invalid interaction weight (%s,%s)", p.ID, pair.A, pair.B))
		}
		sum += w
	}

	if math.Abs(sum-1.0) > NormalizationTolerance {
		return model.NewError(model.KindProfile, "RBQ-PROF-009",
			fmt.Sprintf("profile %q: weights sum to %.9f, want 1.0 ± %g", p.ID, sum, NormalizationTolerance))
	}
	return nil
}
