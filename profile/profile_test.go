package profile

import (
	"testing"

	"rubriq.co/rubriq/model"
)

// baselineProfile mirrors the calibration set used across the scoring tests.
func baselineProfile(t *testing.T) *WeightProfile {
	t.Helper()
	return &WeightProfile{
		ID: "cohort-2025a",
		Linear: map[model.Layer]float64{
			model.LayerBase:      0.17,
			model.LayerChain:     0.13,
			model.LayerQuestion:  0.08,
			model.LayerDimension: 0.07,
			model.LayerPolicy:    0.06,
			model.LayerContract:  0.08,
			model.LayerUnit:      0.04,
			model.LayerMaturity:  0.04,
		},
		Interactions: map[InteractionPair]float64{
			{A: model.LayerUnit, B: model.LayerChain}:     0.13,
			{A: model.LayerChain, B: model.LayerContract}: 0.10,
			{A: model.LayerQuestion, B: model.LayerDimension}: 0.10,
		},
	}
}

func TestWeightProfileValidates(t *testing.T) {
	p := baselineProfile(t)
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestWeightProfileNormalizationTolerance(t *testing.T) {
	p := baselineProfile(t)
	p.Linear[model.LayerBase] += 5e-7 // inside tolerance
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate rejected in-tolerance drift: %v", err)
	}

	p.Linear[model.LayerBase] += 1e-3 // far outside
	err := p.Validate()
	if err == nil {
		t.Fatalf("Validate accepted non-normalized weights")
	}
	if model.RuleID(err) != "RBQ-PROF-009" {
		t.Fatalf("RuleID = %q", model.RuleID(err))
	}
}

func TestWeightProfileRejections(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		p := baselineProfile(t)
		p.ID = ""
		if model.RuleID(p.Validate()) != "RBQ-PROF-001" {
			t.Fatalf("wrong rule for missing id")
		}
	})

	t.Run("unknown layer", func(t *testing.T) {
		p := baselineProfile(t)
		delete(p.Linear, model.LayerBase)
		p.Linear[model.Layer("z")] = 0.17
		if model.RuleID(p.Validate()) != "RBQ-PROF-003" {
			t.Fatalf("wrong rule for unknown layer")
		}
	})

	t.Run("negative weight", func(t *testing.T) {
		p := baselineProfile(t)
		p.Linear[model.LayerBase] = -0.17
		if model.RuleID(p.Validate()) != "RBQ-PROF-004" {
			t.Fatalf("wrong rule for negative weight")
		}
	})

	t.Run("self interaction", func(t *testing.T) {
		p := baselineProfile(t)
		delete(p.Interactions, InteractionPair{A: model.LayerUnit, B: model.LayerChain})
		p.Interactions[InteractionPair{A: model.LayerChain, B: model.LayerChain}] = 0.13
		if model.RuleID(p.Validate()) != "RBQ-PROF-006" {
			t.Fatalf("wrong rule for self interaction")
		}
	})

	t.Run("duplicate pair both orders", func(t *testing.T) {
		p := baselineProfile(t)
		// (chain,u) duplicates the registered (u,chain) pair.
		p.Interactions[InteractionPair{A: model.LayerChain, B: model.LayerUnit}] = 0.0
		if model.RuleID(p.Validate()) != "RBQ-PROF-007" {
			t.Fatalf("wrong rule for duplicate pair")
		}
	})

	t.Run("wrong linear count", func(t *testing.T) {
		p := baselineProfile(t)
		delete(p.Linear, model.LayerMaturity)
		if model.RuleID(p.Validate()) != "RBQ-PROF-002" {
			t.Fatalf("wrong rule for missing linear weight")
		}
	})
}

func TestInteractionListSorted(t *testing.T) {
	p := baselineProfile(t)
	list := p.InteractionList()
	if len(list) != 3 {
		t.Fatalf("InteractionList size = %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Pair.Key() >= list[i].Pair.Key() {
			t.Fatalf("InteractionList not sorted: %q then %q", list[i-1].Pair.Key(), list[i].Pair.Key())
		}
	}
}

func TestRegistry(t *testing.T) {
	a := baselineProfile(t)
	b := baselineProfile(t)
	b.ID = "cohort-2025b"

	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	got, err := reg.Get("cohort-2025a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "cohort-2025a" {
		t.Fatalf("Get returned %q", got.ID)
	}

	if _, err := reg.Get("cohort-1999"); model.RuleID(err) != "RBQ-PROF-011" {
		t.Fatalf("Get(unknown) = %v", err)
	}

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "cohort-2025a" || ids[1] != "cohort-2025b" {
		t.Fatalf("IDs = %v", ids)
	}

	dup := baselineProfile(t)
	if _, err := NewRegistry(a, dup); model.RuleID(err) != "RBQ-PROF-010" {
		t.Fatalf("duplicate id accepted: %v", err)
	}
}
