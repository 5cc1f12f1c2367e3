package profile

import (
	"fmt"
	"sort"

	"rubriq.co/rubriq/model"
)

// Registry is an immutable collection of validated weight profiles keyed by
// cohort ID. It is constructed once and then only read; engines hold it by
// reference instead of consulting process-wide state.
type Registry struct {
	profiles map[string]*WeightProfile
}

// NewRegistry validates every profile and builds a registry.
// Duplicate IDs are rejected.
func NewRegistry(profiles ...*WeightProfile) (*Registry, error) {
	m := make(map[string]*WeightProfile, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := m[p.ID]; exists {
			return nil, model.NewError(model.KindProfile, "RBQ-PROF-010",
				fmt.Sprintf("duplicate profile id %q", p.ID))
		}
		m[p.ID] = p
	}
	return &Registry{profiles: m}, nil
}

// Get returns the profile registered under id.
func (r *Registry) Get(id string) (*WeightProfile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, model.NewError(model.KindProfile, "RBQ-PROF-011",
			fmt.Sprintf("unknown profile id %q", id))
	}
	return p, nil
}

// IDs returns the registered profile IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
