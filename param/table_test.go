package param

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTableAtDefaults(t *testing.T) {
	reg := Matriarch()
	tbl := NewTable(reg)

	for _, id := range reg.IDs() {
		s, _ := reg.Lookup(id)
		v, err := tbl.Get(id)
		require.NoError(t, err)
		require.Equal(t, s.Default, v, s.Name)
	}
}

func TestGetUnknownParameter(t *testing.T) {
	tbl := NewTable(Matriarch())
	_, err := tbl.Get(ID(33))
	require.ErrorIs(t, err, ErrUnknownParameter)
}

func TestSnapshotIsDetached(t *testing.T) {
	tbl := NewTable(Matriarch())
	snap := tbl.Snapshot()
	require.Len(t, snap, tbl.Registry().Len())

	snap[PitchBendRange] = 12
	v, err := tbl.Get(PitchBendRange)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestChoiceClampNearestMember(t *testing.T) {
	d := Domain{Kind: Choice, Choices: map[int]string{0: "A", 2: "B", 5: "C"}}

	require.Equal(t, 2, d.Clamp(3))
	require.Equal(t, 5, d.Clamp(9))
	require.Equal(t, 0, d.Clamp(-1))
	// Equidistant resolves to the lower member.
	require.Equal(t, 0, d.Clamp(1))
}

func TestDomainContains(t *testing.T) {
	require.True(t, Domain{Kind: Toggle}.Contains(1))
	require.False(t, Domain{Kind: Toggle}.Contains(2))
	require.True(t, Domain{Kind: Channel}.Contains(15))
	require.False(t, Domain{Kind: Channel}.Contains(16))
	require.True(t, Domain{Kind: Range, Min: 0, Max: 24}.Contains(24))
	require.False(t, Domain{Kind: Range, Min: 0, Max: 24}.Contains(25))
}

func TestRender(t *testing.T) {
	reg := Matriarch()

	s, _ := reg.Lookup(ArpSeqSwing)
	require.Equal(t, "50.0%", s.Render(8192))

	s, _ = reg.Lookup(ParaphonyMode)
	require.Equal(t, "Duo (2 Voice)", s.Render(1))

	s, _ = reg.Lookup(HardSyncEnable)
	require.Equal(t, "On", s.Render(1))
	require.Equal(t, "Off", s.Render(0))
}
