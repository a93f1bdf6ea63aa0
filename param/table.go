package param

import (
	"fmt"
	"sync"
)

// Table holds the current value of every parameter. Cardinality is fixed at
// construction: one entry per registry spec, no more, no less. The only
// mutation path is the Resolver; everything else reads.
type Table struct {
	reg    *Registry
	mu     sync.RWMutex
	values map[ID]int
}

// NewTable builds a table at factory defaults.
func NewTable(reg *Registry) *Table {
	t := &Table{reg: reg, values: make(map[ID]int, reg.Len())}
	for _, id := range reg.IDs() {
		s, _ := reg.Lookup(id)
		t.values[id] = s.Default
	}
	return t
}

// Registry returns the spec set this table was built from.
func (t *Table) Registry() *Registry { return t.reg }

// Get returns the current value of id. Unknown ids should be unreachable
// given fixed cardinality, but are checked, not assumed.
func (t *Table) Get(id ID) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[id]
	if !ok {
		return 0, fmt.Errorf("parameter %d: %w", id, ErrUnknownParameter)
	}
	return v, nil
}

// Snapshot copies the full value map. Safe to call concurrently with reads;
// the copy is detached from the live table.
func (t *Table) Snapshot() map[ID]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ID]int, len(t.values))
	for id, v := range t.values {
		out[id] = v
	}
	return out
}

// setRaw writes without validation. Resolver only; it has already validated.
func (t *Table) setRaw(id ID, v int) {
	t.mu.Lock()
	t.values[id] = v
	t.mu.Unlock()
}
