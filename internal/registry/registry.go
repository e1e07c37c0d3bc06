// Package registry manages the set of available detection modules: which
// are enabled, their weight and priority, and the alias map callers may use
// to refer to them.
package registry

import (
	"fmt"
	"sort"

	"imageguard/internal/core"
)

// ModuleEntry binds a module implementation to its registry metadata.
type ModuleEntry struct {
	ID       string
	Module   core.Module
	Config   core.ModuleConfig
	Enabled  bool
	Priority int // lower runs first; ties broken by ID for determinism
}

// aliases maps caller-facing shorthand to canonical module ids.
var aliases = map[string]string{
	"text":      "text_extraction",
	"hidden":    "hidden_text",
	"frequency": "frequency_analysis",
	"stego":     "steganography",
	"struct":    "structural",
}

// Registry holds the full module set and the subset currently enabled.
type Registry struct {
	entries map[string]*ModuleEntry
	order   []string // canonical ids in registration order, for stable defaults
}

// New builds an empty registry; callers populate it via Register.
func New() *Registry {
	return &Registry{entries: make(map[string]*ModuleEntry)}
}

// Register adds or replaces a module entry under its canonical id.
func (r *Registry) Register(entry ModuleEntry) {
	if _, exists := r.entries[entry.ID]; !exists {
		r.order = append(r.order, entry.ID)
	}
	e := entry
	r.entries[entry.ID] = &e
}

// Resolve expands a caller-provided module name through the alias map
// into its canonical id. Names already canonical pass through
// unchanged.
func Resolve(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// EnabledSet returns the canonical module ids enabled in the registry's own
// configuration, used to expand the "all" alias.
func (r *Registry) EnabledSet() []string {
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.entries[id].Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResolveRequested maps caller-requested module names into canonical,
// deduplicated, priority-ordered entries. "all" expands to
// EnabledSet(). An unknown name (after alias resolution) surfaces as a
// core.ErrKindConfigError.
func (r *Registry) ResolveRequested(names []string) ([]*ModuleEntry, error) {
	var ids []string
	if len(names) == 0 {
		ids = r.EnabledSet()
	} else {
		seen := make(map[string]bool)
		for _, raw := range names {
			if raw == "all" {
				for _, id := range r.EnabledSet() {
					if !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
				}
				continue
			}
			canonical := Resolve(raw)
			if _, ok := r.entries[canonical]; !ok {
				return nil, &core.AnalysisError{
					Kind:    core.ErrKindConfigError,
					Message: fmt.Sprintf("unknown module %q", raw),
				}
			}
			if !seen[canonical] {
				seen[canonical] = true
				ids = append(ids, canonical)
			}
		}
	}

	entries := make([]*ModuleEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, r.entries[id])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// SetWeight overrides a registered module's weight. Config weights are
// applied at registration; explicit caller overrides win.
func (r *Registry) SetWeight(id string, weight float64) error {
	e, ok := r.entries[id]
	if !ok {
		return &core.AnalysisError{Kind: core.ErrKindConfigError, Message: fmt.Sprintf("unknown module %q", id)}
	}
	e.Config.Weight = weight
	return nil
}

// Get returns a single entry by canonical id.
func (r *Registry) Get(id string) (*ModuleEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Weights returns the canonical-id → weight map used by scoring.WeightedAverage.
func (r *Registry) Weights() map[string]float64 {
	w := make(map[string]float64, len(r.entries))
	for id, e := range r.entries {
		w[id] = e.Config.Weight
	}
	return w
}
