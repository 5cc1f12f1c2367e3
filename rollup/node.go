package rollup

import "rubriq.co/rubriq/model"

// State tracks a node through its lifecycle. Sealed is terminal: a later
// change to any child produces a replacement node and the sealed one is
// archived, never rewritten.
type State string

const (
	StatePending  State = "PENDING"
	StateComputed State = "COMPUTED"
	StateSealed   State = "SEALED"
	StateArchived State = "ARCHIVED"
)

// ChildRef is a non-owning reference to an aggregated child: a node ID for
// inner tiers, a unit ID at the MICRO boundary. A zero weight means the
// child takes the uniform default.
type ChildRef struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight,omitempty"`
}

// Node is one aggregate in the hierarchy. Score is the dispersion-penalized
// aggregate of the children, Mean and Variance the intermediate moments it
// was derived from.
type Node struct {
	ID       string     `json:"node_id"`
	Level    Level      `json:"level"`
	Key      string     `json:"key"`
	Children []ChildRef `json:"children"`

	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Score    float64 `json:"score"`

	State        State  `json:"state"`
	SealedSeq    uint64 `json:"sealed_seq,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

func validateChildren(children []ChildRef) error {
	if len(children) == 0 {
		return model.NewError(model.KindValidation, "RBQ-AGG-003", "aggregation requires at least one child")
	}
	seen := make(map[string]struct{}, len(children))
	weighted := false
	for _, c := range children {
		if c.ID == "" {
			return model.NewError(model.KindValidation, "RBQ-AGG-003", "child reference without an identifier")
		}
		if _, dup := seen[c.ID]; dup {
			return model.NewError(model.KindValidation, "RBQ-AGG-003", "duplicate child reference "+c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.Weight < 0 {
			return model.NewError(model.KindValidation, "RBQ-AGG-004", "negative weight for child "+c.ID)
		}
		if c.Weight > 0 {
			weighted = true
		}
	}
	if weighted {
		for _, c := range children {
			if c.Weight == 0 {
				return model.NewError(model.KindValidation, "RBQ-AGG-004",
					"child "+c.ID+" has no weight while siblings are weighted")
			}
		}
	}
	return nil
}
