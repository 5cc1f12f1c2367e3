package config

import (
	"os"
	"path/filepath"
	"testing"

	"rubriq.co/rubriq/model"
)

const baselineYAML = `engine_id: rubriq-engine-reference
imbalance_penalty: 0.5
gates:
  base_min: 0.3
  contract_min: 0.5
  contract_cap: 0.5
bands:
  excellent: 0.85
  good: 0.70
  acceptable: 0.55
profiles:
  - id: cohort-2025a
    linear:
      b: 0.17
      chain: 0.13
      q: 0.08
      d: 0.07
      p: 0.06
      C: 0.08
      u: 0.04
      m: 0.04
    interactions:
      - {a: u, b: chain, weight: 0.13}
      - {a: chain, b: C, weight: 0.10}
      - {a: q, b: d, weight: 0.10}
`

func TestParseBaseline(t *testing.T) {
	rt, err := Parse([]byte(baselineYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rt.EngineID != "rubriq-engine-reference" {
		t.Fatalf("EngineID = %q", rt.EngineID)
	}
	if rt.ImbalancePenalty != 0.5 {
		t.Fatalf("ImbalancePenalty = %v", rt.ImbalancePenalty)
	}
	if rt.Bands.Excellent != 0.85 || rt.Bands.Good != 0.70 || rt.Bands.Acceptable != 0.55 {
		t.Fatalf("Bands = %+v", rt.Bands)
	}
	if rt.Gates.BaseMin != 0.3 || rt.Gates.ContractMin != 0.5 || rt.Gates.ContractCap != 0.5 {
		t.Fatalf("Gates = %+v", rt.Gates)
	}

	p, err := rt.Profiles.Get("cohort-2025a")
	if err != nil {
		t.Fatalf("Profiles.Get: %v", err)
	}
	if p.Linear[model.LayerBase] != 0.17 || len(p.Interactions) != 3 {
		t.Fatalf("profile = %+v", p)
	}
}

func TestParseDefaultsGates(t *testing.T) {
	doc := `bands:
  excellent: 0.70
  good: 0.50
  acceptable: 0.30
profiles:
  - id: legacy
    linear: {b: 0.2, chain: 0.2, q: 0.1, d: 0.1, p: 0.1, C: 0.1, u: 0.1, m: 0.1}
`
	rt, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rt.Gates.BaseMin != 0.3 || rt.Gates.ContractMin != 0.5 {
		t.Fatalf("gates did not take defaults: %+v", rt.Gates)
	}
}

func TestParseRejectsUnknownKey(t *testing.T) {
	doc := `bandz:
  excellent: 0.85
`
	if _, err := Parse([]byte(doc)); model.RuleID(err) != "RBQ-PARSE-050" {
		t.Fatalf("typoed key accepted: %v", err)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		doc    string
		ruleID string
	}{
		"missing bands": {
			doc: `profiles:
  - id: p
    linear: {b: 0.2, chain: 0.2, q: 0.1, d: 0.1, p: 0.1, C: 0.1, u: 0.1, m: 0.1}
`,
			ruleID: "RBQ-VAL-021",
		},
		"negative penalty": {
			doc: `imbalance_penalty: -1
bands: {excellent: 0.85, good: 0.70, acceptable: 0.55}
profiles:
  - id: p
    linear: {b: 0.2, chain: 0.2, q: 0.1, d: 0.1, p: 0.1, C: 0.1, u: 0.1, m: 0.1}
`,
			ruleID: "RBQ-VAL-071",
		},
		"no profiles": {
			doc:    `bands: {excellent: 0.85, good: 0.70, acceptable: 0.55}`,
			ruleID: "RBQ-VAL-072",
		},
		"unnormalized profile": {
			doc: `bands: {excellent: 0.85, good: 0.70, acceptable: 0.55}
profiles:
  - id: p
    linear: {b: 0.5, chain: 0.2, q: 0.1, d: 0.1, p: 0.1, C: 0.1, u: 0.1, m: 0.1}
`,
			ruleID: "RBQ-PROF-009",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); model.RuleID(err) != tc.ruleID {
				t.Fatalf("Parse: %v, want %s", err, tc.ruleID)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubriq.yaml")
	if err := os.WriteFile(path, []byte(baselineYAML), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rt, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if rt.EngineID != "rubriq-engine-reference" {
		t.Fatalf("EngineID = %q", rt.EngineID)
	}

	if _, err := LoadFile(""); model.RuleID(err) != "RBQ-VAL-070" {
		t.Fatalf("empty path: %v", err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); model.RuleID(err) != "RBQ-VAL-070" {
		t.Fatalf("missing file: %v", err)
	}
}
