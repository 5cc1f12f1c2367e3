package fuse

import "rubriq.co/rubriq/model"

// GateReason names the hard-gate rule that overrode (or capped) a fused
// score. Gate triggering is a recorded outcome, not an error.
type GateReason string

const (
	// GateNone means no veto rule fired; the raw score stands.
	GateNone GateReason = ""

	// GateBaseQuality fires when base quality is below the configured
	// floor. The unit scores zero regardless of every other signal.
	GateBaseQuality GateReason = "base_quality_gate"

	// GateBrokenChain fires when the orchestration-integrity signal is
	// exactly zero: a broken chain is non-compensable.
	GateBrokenChain GateReason = "broken_chain_gate"

	// GateContractCap caps the score when contract compliance falls below
	// the configured minimum.
	GateContractCap GateReason = "contract_noncompliance_cap"
)

// GateThresholds configures the hard-gate rules. The values are versioned
// alongside the weight profiles; nothing in the engine hardcodes them.
type GateThresholds struct {
	// BaseMin is the base-quality floor; below it the unit scores zero.
	BaseMin float64 `json:"baseMin" yaml:"baseMin"`

	// ContractMin is the contract-compliance floor; below it the fused
	// score is capped at ContractCap.
	ContractMin float64 `json:"contractMin" yaml:"contractMin"`

	// ContractCap is the ceiling applied when ContractMin is violated.
	ContractCap float64 `json:"contractCap" yaml:"contractCap"`
}

// DefaultGateThresholds returns the baseline calibration gate set.
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{BaseMin: 0.3, ContractMin: 0.5, ContractCap: 0.5}
}

// Validate rejects thresholds outside [0,1].
func (g GateThresholds) Validate() error {
	if g.BaseMin < 0 || g.BaseMin > 1 {
		return invalidThreshold("baseMin", g.BaseMin)
	}
	if g.ContractMin < 0 || g.ContractMin > 1 {
		return invalidThreshold("contractMin", g.ContractMin)
	}
	if g.ContractCap < 0 || g.ContractCap > 1 {
		return invalidThreshold("contractCap", g.ContractCap)
	}
	return nil
}

// ApplyGates applies the ordered veto rules to a raw fused score.
//
// The rule list is first-match-wins and its order is part of the contract:
//
//  1. base quality below BaseMin        → final 0
//  2. chain integrity exactly zero      → final 0
//  3. contract compliance below ContractMin → final min(raw, ContractCap)
//  4. otherwise                         → final raw
//
// Every rule tests the raw layer vector, never an already-gated score, so the
// triggering conditions are independent of rule order; only the recorded
// effect is ordered. Exactly one reason (or none) is ever recorded.
func ApplyGates(raw float64, v model.LayerVector, g GateThresholds) (float64, GateReason) {
	switch {
	case v.Base < g.BaseMin:
		return 0, GateBaseQuality
	case v.Chain == 0:
		return 0, GateBrokenChain
	case v.Contract < g.ContractMin:
		return model.RoundScore(min(raw, g.ContractCap)), GateContractCap
	default:
		return raw, GateNone
	}
}
