package param

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatriarchRegistryBuilds(t *testing.T) {
	reg := Matriarch()
	require.Equal(t, 78, reg.Len())

	// Reserved firmware slots are absent.
	_, ok := reg.Lookup(33)
	require.False(t, ok)
	_, ok = reg.Lookup(34)
	require.False(t, ok)

	s, ok := reg.Lookup(ArpSeqSwing)
	require.True(t, ok)
	require.Equal(t, "Arp/Seq Swing", s.Name)
	require.Equal(t, 16383, s.Domain.Max)
}

func TestRegistryRejectsCycle(t *testing.T) {
	a := &Spec{ID: 1, Name: "A", Domain: Domain{Kind: Toggle},
		Rules: []Rule{{Governing: 2, Condition: whenEquals(0, Disable())}}}
	b := &Spec{ID: 2, Name: "B", Domain: Domain{Kind: Toggle},
		Rules: []Rule{{Governing: 1, Condition: whenEquals(0, Disable())}}}

	_, err := NewRegistry([]*Spec{a, b})
	require.ErrorContains(t, err, "cycle")
}

func TestRegistryRejectsIndirectCycle(t *testing.T) {
	a := &Spec{ID: 1, Name: "A", Domain: Domain{Kind: Toggle},
		Rules: []Rule{{Governing: 3, Condition: whenEquals(0, Disable())}}}
	b := &Spec{ID: 2, Name: "B", Domain: Domain{Kind: Toggle},
		Rules: []Rule{{Governing: 1, Condition: whenEquals(0, Disable())}}}
	c := &Spec{ID: 3, Name: "C", Domain: Domain{Kind: Toggle},
		Rules: []Rule{{Governing: 2, Condition: whenEquals(0, Disable())}}}

	_, err := NewRegistry([]*Spec{a, b, c})
	require.ErrorContains(t, err, "cycle")
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	_, err := NewRegistry([]*Spec{
		{ID: 1, Name: "A", Domain: Domain{Kind: Toggle}},
		{ID: 1, Name: "B", Domain: Domain{Kind: Toggle}},
	})
	require.ErrorContains(t, err, "duplicate parameter id")
}

func TestRegistryRejectsWideCCDomain(t *testing.T) {
	_, err := NewRegistry([]*Spec{{
		ID: 1, Name: "Wide", Domain: Domain{Kind: Range, Min: 0, Max: 16383},
		Encoding: Encoding{Kind: EncodeCC, Controller: 1},
	}})
	require.ErrorContains(t, err, "too wide for CC")
}

func TestRegistryRejectsRuleToUnknown(t *testing.T) {
	_, err := NewRegistry([]*Spec{{
		ID: 1, Name: "A", Domain: Domain{Kind: Toggle},
		Rules: []Rule{{Governing: 42, Condition: whenEquals(0, Disable())}},
	}})
	require.ErrorContains(t, err, "unknown parameter")
}

func TestTopoOrderGovernorsFirst(t *testing.T) {
	reg := Matriarch()
	pos := make(map[ID]int, len(reg.topo))
	for i, id := range reg.topo {
		pos[id] = i
	}
	for _, id := range reg.IDs() {
		s, _ := reg.Lookup(id)
		for _, rule := range s.Rules {
			require.Less(t, pos[rule.Governing], pos[id],
				"governor %d must precede %d", rule.Governing, id)
		}
	}
	// Deterministic: rebuilding yields the identical order.
	require.Equal(t, reg.topo, Matriarch().topo)
}

func TestByControllerAndByName(t *testing.T) {
	reg := Matriarch()

	id, ok := reg.ByController(5)
	require.True(t, ok)
	require.Equal(t, GlideTime, id)

	_, ok = reg.ByController(99)
	require.False(t, ok)

	id, ok = reg.ByName("Paraphony Mode")
	require.True(t, ok)
	require.Equal(t, ParaphonyMode, id)
}

func TestSysExIDsExcludeCC(t *testing.T) {
	reg := Matriarch()
	ids := reg.SysExIDs()
	require.Len(t, ids, 74)
	for _, id := range ids {
		s, _ := reg.Lookup(id)
		require.Equal(t, EncodeSysEx, s.Encoding.Kind)
	}
}
