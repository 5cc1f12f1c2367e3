package model

// UnitRecord is the boundary input for one evaluated unit: the unit identity,
// the eight-layer signal vector produced externally, and the weight profile
// the caller wants the fusion performed under.
//
// Records are validated at the boundary; out-of-range values never reach the
// fusion engine or the ledger.
type UnitRecord struct {
	UnitID    string      `json:"unitID" yaml:"unitID"`
	UnitType  string      `json:"unitType,omitempty" yaml:"unitType,omitempty"`
	ProfileID string      `json:"profileID" yaml:"profileID"`
	Layers    LayerVector `json:"layers" yaml:"layers"`
}

// Validate rejects records with missing identity or an invalid layer vector.
func (r UnitRecord) Validate() error {
	if r.UnitID == "" {
		return newError(KindValidation, "RBQ-VAL-010", "unit record missing unitID")
	}
	if r.ProfileID == "" {
		return newError(KindValidation, "RBQ-VAL-011", "unit record missing profileID")
	}
	return r.Layers.Validate()
}
