package param

import (
	"fmt"
	"sort"
)

// Registry is the fixed set of parameter specs for one device. Construction
// validates the whole set; a Registry that exists is internally consistent.
type Registry struct {
	specs        map[ID]*Spec
	order        []ID // ascending id
	topo         []ID // governors before governed
	byController map[uint8]ID
	byName       map[string]ID
	governs      map[ID][]ID // governor -> governed, ascending
}

// NewRegistry validates specs and builds lookup structures. It fails on
// duplicate ids, duplicate CC controllers, CC parameters with domains wider
// than 7 bits, rules referencing unknown parameters, defaults outside their
// own domain, and cycles in the dependency graph.
func NewRegistry(specs []*Spec) (*Registry, error) {
	r := &Registry{
		specs:        make(map[ID]*Spec, len(specs)),
		byController: make(map[uint8]ID),
		byName:       make(map[string]ID, len(specs)),
		governs:      make(map[ID][]ID),
	}

	for _, s := range specs {
		if _, dup := r.specs[s.ID]; dup {
			return nil, fmt.Errorf("duplicate parameter id %d", s.ID)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %q", s.Name)
		}
		r.byName[s.Name] = s.ID
		if !s.Domain.Contains(s.Default) {
			return nil, fmt.Errorf("%s: default %d outside domain", s.Name, s.Default)
		}
		if s.Encoding.Kind == EncodeCC {
			lo, hi := s.Domain.Bounds()
			if lo < 0 || hi > 127 {
				return nil, fmt.Errorf("%s: domain %d..%d too wide for CC", s.Name, lo, hi)
			}
			if prev, dup := r.byController[s.Encoding.Controller]; dup {
				return nil, fmt.Errorf("%s: controller %d already mapped to id %d",
					s.Name, s.Encoding.Controller, prev)
			}
			r.byController[s.Encoding.Controller] = s.ID
		}
		r.specs[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })

	for _, s := range specs {
		for _, rule := range s.Rules {
			if _, ok := r.specs[rule.Governing]; !ok {
				return nil, fmt.Errorf("%s: rule references unknown parameter %d",
					s.Name, rule.Governing)
			}
			r.governs[rule.Governing] = append(r.governs[rule.Governing], s.ID)
		}
	}
	for g := range r.governs {
		sort.Slice(r.governs[g], func(i, j int) bool {
			return r.governs[g][i] < r.governs[g][j]
		})
	}

	topo, err := r.topoSort()
	if err != nil {
		return nil, err
	}
	r.topo = topo

	return r, nil
}

// topoSort orders ids so every governor precedes everything it governs.
// Kahn's algorithm; a leftover node means a cycle, which is a configuration
// error, never a runtime case.
func (r *Registry) topoSort() ([]ID, error) {
	indeg := make(map[ID]int, len(r.specs))
	for id := range r.specs {
		indeg[id] = 0
	}
	for _, s := range r.specs {
		for range s.Rules {
			indeg[s.ID]++
		}
	}

	// Seed with all rule-free parameters, in ascending id order so the
	// evaluation order is deterministic run to run.
	var ready []ID
	for _, id := range r.order {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]ID, 0, len(r.specs))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, governed := range r.governs[id] {
			indeg[governed]--
			if indeg[governed] == 0 {
				ready = append(ready, governed)
			}
		}
	}

	if len(out) != len(r.specs) {
		var stuck []ID
		for _, id := range r.order {
			if indeg[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("dependency cycle among parameters %v", stuck)
	}
	return out, nil
}

// Lookup returns the spec for id.
func (r *Registry) Lookup(id ID) (*Spec, bool) {
	s, ok := r.specs[id]
	return s, ok
}

// ByName maps a parameter's human name back to its id.
func (r *Registry) ByName(name string) (ID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// ByController maps a CC controller number back to a parameter id.
func (r *Registry) ByController(controller uint8) (ID, bool) {
	id, ok := r.byController[controller]
	return id, ok
}

// IDs returns every parameter id in ascending order.
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}

// SysExIDs returns the ids of all SysEx-addressed parameters, ascending.
// This is the set a full-table query covers.
func (r *Registry) SysExIDs() []ID {
	var out []ID
	for _, id := range r.order {
		if r.specs[id].Encoding.Kind == EncodeSysEx {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of parameters.
func (r *Registry) Len() int { return len(r.specs) }

// governed returns the ids directly governed by id.
func (r *Registry) governed(id ID) []ID { return r.governs[id] }
