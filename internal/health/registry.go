// Package health holds the per-source health-slot registries the REST
// worker pool and the RSS loop each own exclusively: every SourceHealth slot
// is owned by exactly one loop at a time.
package health

import "github.com/sawpanic/marketfeed/internal/model"

// Registry is a fixed set of health slots indexed by source name. It is not
// safe for concurrent mutation from more than one goroutine — callers must
// honor the single-owner discipline.
type Registry struct {
	slots map[string]*model.SourceHealth
}

// NewRegistry creates one zero-valued SourceHealth slot per name.
func NewRegistry(names []string) *Registry {
	r := &Registry{slots: make(map[string]*model.SourceHealth, len(names))}
	for _, n := range names {
		r.slots[n] = &model.SourceHealth{}
	}
	return r
}

// Get returns the slot for name, creating one if it is not already present
// (sources added after startup still get tracked).
func (r *Registry) Get(name string) *model.SourceHealth {
	h, ok := r.slots[name]
	if !ok {
		h = &model.SourceHealth{}
		r.slots[name] = h
	}
	return h
}
