package param

import "fmt"

// Change is one secondary adjustment produced by a cascade.
type Change struct {
	ID    ID
	Value int
}

// Resolution is the accepted outcome of a proposal. Value is the normalized
// result; Forced/Clamped report when a dependency rule overrode or constrained
// the request, so callers can reflect what actually happened. Cascade lists
// adjustments to other parameters, in dependency order.
type Resolution struct {
	ID        ID
	Requested int
	Value     int
	Forced    bool
	Clamped   bool
	Cascade   []Change
}

// Changes returns the primary change followed by the cascade, the unit a
// caller should apply and transmit together.
func (r Resolution) Changes() []Change {
	out := make([]Change, 0, 1+len(r.Cascade))
	out = append(out, Change{r.ID, r.Value})
	out = append(out, r.Cascade...)
	return out
}

// Resolver is the single gate every value change passes through before it
// reaches a Table, whether it came from the panel, the device, or a preset.
type Resolver struct {
	reg *Registry
}

// NewResolver returns a resolver over reg. The registry has already proven
// the dependency graph acyclic, which is what bounds the cascade.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg}
}

// constraintOn evaluates the live constraint on id given the values in view.
// With several rules, Disabled wins, then Forced, then the tightest clamp.
func (r *Resolver) constraintOn(view map[ID]int, s *Spec) Constraint {
	result := Unconstrained()
	for _, rule := range s.Rules {
		c := rule.Condition(view[rule.Governing])
		switch c.Kind {
		case Disabled:
			return c
		case Forced:
			result = c
		case Clamped:
			if result.Kind == Forced {
				continue
			}
			if result.Kind == Clamped {
				if c.Min > result.Min {
					result.Min = c.Min
				}
				if c.Max < result.Max {
					result.Max = c.Max
				}
			} else {
				result = c
			}
		}
	}
	return result
}

// Enabled reports whether id is currently available given the table state.
// Disabled parameters keep their stored value but are never sent.
func (r *Resolver) Enabled(t *Table, id ID) bool {
	s, ok := r.reg.Lookup(id)
	if !ok {
		return false
	}
	c := r.constraintOn(t.Snapshot(), s)
	return c.Kind != Disabled
}

// Propose validates requested against the spec domain and the live dependency
// constraints, computes the cascade, and returns the normalized outcome.
// Nothing is written; call Apply with the result to commit it.
func (r *Resolver) Propose(t *Table, id ID, requested int) (Resolution, error) {
	s, ok := r.reg.Lookup(id)
	if !ok {
		return Resolution{}, fmt.Errorf("parameter %d: %w", id, ErrUnknownParameter)
	}
	if !s.Domain.Contains(requested) {
		return Resolution{}, fmt.Errorf("%s: %d: %w", s.Name, requested, ErrOutOfDomain)
	}

	view := t.Snapshot()
	res := Resolution{ID: id, Requested: requested, Value: requested}

	switch c := r.constraintOn(view, s); c.Kind {
	case Disabled:
		return Resolution{}, fmt.Errorf("%s: %w", s.Name, ErrParameterDisabled)
	case Forced:
		if requested != c.Value {
			res.Forced = true
		}
		res.Value = c.Value
	case Clamped:
		clamped := clampInt(requested, c.Min, c.Max)
		if clamped != requested {
			res.Clamped = true
		}
		res.Value = clamped
	}

	view[id] = res.Value
	res.Cascade = r.cascade(view, id)
	return res, nil
}

// cascade walks everything transitively governed by changed, in the
// registry's topological order, re-clamping or forcing stored values that the
// new state invalidates. One pass reaches the fixed point: by the time a
// parameter is visited every governor upstream of it is already settled, so
// no rule fires twice. view is mutated as adjustments land so downstream
// constraints see them.
func (r *Resolver) cascade(view map[ID]int, changed ID) []Change {
	dirty := map[ID]bool{}
	var mark func(id ID)
	mark = func(id ID) {
		for _, g := range r.reg.governed(id) {
			if !dirty[g] {
				dirty[g] = true
				mark(g)
			}
		}
	}
	mark(changed)
	if len(dirty) == 0 {
		return nil
	}

	var out []Change
	for _, id := range r.reg.topo {
		if !dirty[id] {
			continue
		}
		s, _ := r.reg.Lookup(id)
		stored := view[id]
		next := stored
		switch c := r.constraintOn(view, s); c.Kind {
		case Forced:
			next = c.Value
		case Clamped:
			next = clampInt(stored, c.Min, c.Max)
		}
		// Disabled and None leave the stored value in place.
		if next != stored {
			view[id] = next
			out = append(out, Change{ID: id, Value: next})
		}
	}
	return out
}

// Apply commits an accepted resolution to the table, primary change and
// cascade as one unit.
func (r *Resolver) Apply(t *Table, res Resolution) {
	for _, c := range res.Changes() {
		t.setRaw(c.ID, c.Value)
	}
}
