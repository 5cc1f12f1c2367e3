package model

import (
	"errors"
	"math"
	"testing"
)

func TestLayerVectorValueCoversAllLayers(t *testing.T) {
	v := LayerVector{Base: 0.1, Chain: 0.2, Question: 0.3, Dimension: 0.4, Policy: 0.5, Contract: 0.6, Unit: 0.7, Maturity: 0.8}
	want := map[Layer]float64{
		LayerBase: 0.1, LayerChain: 0.2, LayerQuestion: 0.3, LayerDimension: 0.4,
		LayerPolicy: 0.5, LayerContract: 0.6, LayerUnit: 0.7, LayerMaturity: 0.8,
	}
	for _, l := range Layers {
		got, ok := v.Value(l)
		if !ok {
			t.Fatalf("Value(%s) not ok", l)
		}
		if got != want[l] {
			t.Fatalf("Value(%s) = %v, want %v", l, got, want[l])
		}
	}
	if _, ok := v.Value(Layer("x")); ok {
		t.Fatalf("Value accepted unknown layer")
	}
}

func TestLayerVectorValidate(t *testing.T) {
	valid := LayerVector{Base: 0, Chain: 1, Question: 0.5, Dimension: 0.5, Policy: 0.5, Contract: 0.5, Unit: 0.5, Maturity: 0.5}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate(valid): %v", err)
	}

	cases := []struct {
		name string
		v    LayerVector
	}{
		{"negative", valid.WithValue(LayerBase, -0.01)},
		{"above one", valid.WithValue(LayerContract, 1.01)},
		{"nan", valid.WithValue(LayerChain, math.NaN())},
		{"inf", valid.WithValue(LayerUnit, math.Inf(1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.v.Validate()
			if err == nil {
				t.Fatalf("Validate accepted invalid vector")
			}
			if !IsKind(err, KindValidation) {
				t.Fatalf("Validate kind = %v, want Validation", err)
			}
			if RuleID(err) != "RBQ-VAL-001" {
				t.Fatalf("RuleID = %q", RuleID(err))
			}
		})
	}
}

func TestRoundScoreFixedPrecision(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.71899999999, 0.719},
		{0.500049999, 0.5},
		{0.50005, 0.5001},
		{0, 0},
		{1, 1},
	}
	for _, tc := range cases {
		if got := RoundScore(tc.in); got != tc.want {
			t.Fatalf("RoundScore(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatScoreStable(t *testing.T) {
	if got := FormatScore(0.719); got != "0.7190" {
		t.Fatalf("FormatScore = %q", got)
	}
	if got := FormatScore(0); got != "0.0000" {
		t.Fatalf("FormatScore(0) = %q", got)
	}
	x, err := ParseScore("0.7190")
	if err != nil {
		t.Fatalf("ParseScore: %v", err)
	}
	if x != 0.719 {
		t.Fatalf("ParseScore round trip = %v", x)
	}
	if _, err := ParseScore("1.5"); err == nil {
		t.Fatalf("ParseScore accepted out-of-range score")
	}
}

func TestUnitRecordValidate(t *testing.T) {
	layers := LayerVector{Base: 0.9, Chain: 0.8, Question: 0.7, Dimension: 0.6, Policy: 0.5, Contract: 0.9, Unit: 0.6, Maturity: 0.5}

	rec := UnitRecord{UnitID: "unit-1", ProfileID: "cohort-a", Layers: layers}
	if err := rec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := (UnitRecord{ProfileID: "cohort-a", Layers: layers}).Validate(); RuleID(err) != "RBQ-VAL-010" {
		t.Fatalf("missing unitID: got %v", err)
	}
	if err := (UnitRecord{UnitID: "unit-1", Layers: layers}).Validate(); RuleID(err) != "RBQ-VAL-011" {
		t.Fatalf("missing profileID: got %v", err)
	}
}

func TestStructuredErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(KindLedger, "RBQ-LEDGER-001", "chain broken", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("Unwrap lost cause")
	}
	if !IsKind(err, KindLedger) {
		t.Fatalf("IsKind failed")
	}
	idx := NewIndexedError(KindLedger, "RBQ-LEDGER-002", "bad link", 7)
	if ErrorIndex(idx) != 7 {
		t.Fatalf("ErrorIndex = %d", ErrorIndex(idx))
	}
	if ErrorIndex(cause) != -1 {
		t.Fatalf("ErrorIndex(plain) = %d", ErrorIndex(cause))
	}
}
