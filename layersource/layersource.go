// Package layersource maps unit types to pure functions that derive the
// eight-layer fusion input from a unit's raw document bytes. The scoring
// core never inspects documents itself; it only consumes the vectors the
// registered producers emit.
package layersource

import (
	"sort"
	"sync"

	"rubriq.co/rubriq/model"
)

// Producer derives a layer vector from a unit document. Producers must be
// pure: same bytes in, same vector out, no I/O and no shared state.
type Producer func(doc []byte) (model.LayerVector, error)

// Source is a build-time plugin binding a unit type to its producer.
//
// Sources typically register themselves in init():
//
//	layersource.MustRegister(layersource.Source{ ... })
//
// The binary must import the source package for registration to occur.
type Source struct {
	UnitType    string
	Description string
	Produce     Producer
}

var (
	mu      sync.RWMutex
	sources = map[string]Source{}
)

// Register registers a source for its unit type.
func Register(s Source) error {
	if s.UnitType == "" {
		return model.NewError(model.KindValidation, "RBQ-VAL-060", "layer source requires a unit type")
	}
	if s.Produce == nil {
		return model.NewError(model.KindValidation, "RBQ-VAL-060",
			"layer source "+s.UnitType+" missing producer")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := sources[s.UnitType]; exists {
		return model.NewError(model.KindValidation, "RBQ-VAL-061",
			"layer source "+s.UnitType+" already registered")
	}
	sources[s.UnitType] = s
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(s Source) {
	if err := Register(s); err != nil {
		panic(err)
	}
}

// List returns all registered sources, sorted by unit type.
func List() []Source {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitType < out[j].UnitType })
	return out
}

// Names returns registered unit types, sorted.
func Names() []string {
	ss := List()
	n := make([]string, 0, len(ss))
	for _, s := range ss {
		n = append(n, s.UnitType)
	}
	return n
}

// Produce derives and validates the layer vector for a unit of the named
// type.
func Produce(unitType string, doc []byte) (model.LayerVector, error) {
	mu.RLock()
	s, ok := sources[unitType]
	mu.RUnlock()
	if !ok {
		return model.LayerVector{}, model.NewError(model.KindValidation, "RBQ-VAL-062",
			"no layer source for unit type "+unitType)
	}
	v, err := s.Produce(doc)
	if err != nil {
		return model.LayerVector{}, err
	}
	if err := v.Validate(); err != nil {
		return model.LayerVector{}, err
	}
	return v, nil
}
