package rollup

import "rubriq.co/rubriq/model"

// Level names a tier of the aggregation hierarchy. MICRO is the leaf tier
// and holds sealed unit scores; every other tier aggregates the tier below.
type Level string

const (
	LevelMicro     Level = "MICRO"
	LevelDimension Level = "DIMENSION"
	LevelArea      Level = "AREA"
	LevelCluster   Level = "CLUSTER"
	LevelMacro     Level = "MACRO"
)

// Hierarchy lists the levels from leaf to root.
var Hierarchy = []Level{LevelMicro, LevelDimension, LevelArea, LevelCluster, LevelMacro}

func (l Level) Known() bool {
	for _, k := range Hierarchy {
		if l == k {
			return true
		}
	}
	return false
}

// Below returns the tier a node at level l aggregates. MICRO has no tier
// below it and cannot be aggregated into.
func (l Level) Below() (Level, bool) {
	for i := 1; i < len(Hierarchy); i++ {
		if Hierarchy[i] == l {
			return Hierarchy[i-1], true
		}
	}
	return "", false
}

func (l Level) validateAggregable() error {
	if !l.Known() {
		return model.NewError(model.KindValidation, "RBQ-AGG-001", "unknown aggregation level "+string(l))
	}
	if l == LevelMicro {
		return model.NewError(model.KindValidation, "RBQ-AGG-002",
			"MICRO is the leaf level and holds sealed unit scores, not aggregates")
	}
	return nil
}
