package param

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*Registry, *Table, *Resolver) {
	t.Helper()
	reg := Matriarch()
	return reg, NewTable(reg), NewResolver(reg)
}

// mustSet applies a proposal that the test expects to succeed.
func mustSet(t *testing.T, r *Resolver, tbl *Table, id ID, v int) Resolution {
	t.Helper()
	res, err := r.Propose(tbl, id, v)
	require.NoError(t, err)
	r.Apply(tbl, res)
	return res
}

func TestProposeOutOfDomain(t *testing.T) {
	_, tbl, r := newFixture(t)

	_, err := r.Propose(tbl, PitchBendRange, 13)
	require.ErrorIs(t, err, ErrOutOfDomain)

	_, err = r.Propose(tbl, ParaphonyMode, 3)
	require.ErrorIs(t, err, ErrOutOfDomain)

	_, err = r.Propose(tbl, ID(999), 0)
	require.ErrorIs(t, err, ErrUnknownParameter)
}

func TestDisabledRejection(t *testing.T) {
	_, tbl, r := newFixture(t)

	// Hard Sync Enable defaults Off, which disables the per-osc sync switches.
	v, err := tbl.Get(HardSyncEnable)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	_, err = r.Propose(tbl, Osc2HardSync, 1)
	require.ErrorIs(t, err, ErrParameterDisabled)

	// Enabling the governor makes the governed parameter available.
	mustSet(t, r, tbl, HardSyncEnable, 1)
	res := mustSet(t, r, tbl, Osc2HardSync, 1)
	require.Equal(t, 1, res.Value)
	require.False(t, res.Forced)
}

func TestClampedRangeClampsNeverRejects(t *testing.T) {
	_, tbl, r := newFixture(t)

	mustSet(t, r, tbl, HardSyncEnable, 1)

	// 24 is inside the parameter's own domain but beyond the rule's clamp.
	res, err := r.Propose(tbl, Osc2FreqKnobRange, 24)
	require.NoError(t, err)
	require.True(t, res.Clamped)
	require.Equal(t, 12, res.Value)

	res, err = r.Propose(tbl, Osc2FreqKnobRange, 5)
	require.NoError(t, err)
	require.False(t, res.Clamped)
	require.Equal(t, 5, res.Value)
}

func TestForcedValueSupersedesRequest(t *testing.T) {
	_, tbl, r := newFixture(t)

	// Step-advance trigger mode forces swing straight.
	mustSet(t, r, tbl, ClockInputMode, 1)

	res, err := r.Propose(tbl, ArpSeqSwing, 100)
	require.NoError(t, err)
	require.True(t, res.Forced)
	require.Equal(t, 8192, res.Value)

	// Asking for the forced value itself is not an override.
	res, err = r.Propose(tbl, ArpSeqSwing, 8192)
	require.NoError(t, err)
	require.False(t, res.Forced)
	require.Equal(t, 8192, res.Value)
}

func TestCascadeClampsStoredValues(t *testing.T) {
	_, tbl, r := newFixture(t)

	mustSet(t, r, tbl, Osc2FreqKnobRange, 20)
	mustSet(t, r, tbl, Osc3FreqKnobRange, 24)
	mustSet(t, r, tbl, Osc4FreqKnobRange, 3)

	// Enabling hard sync clamps the stored knob ranges down to 12.
	res := mustSet(t, r, tbl, HardSyncEnable, 1)
	require.Equal(t, []Change{
		{Osc2FreqKnobRange, 12},
		{Osc3FreqKnobRange, 12},
	}, res.Cascade)

	v, _ := tbl.Get(Osc2FreqKnobRange)
	require.Equal(t, 12, v)
	v, _ = tbl.Get(Osc4FreqKnobRange)
	require.Equal(t, 3, v) // already inside the clamp, untouched
}

func TestCascadeIsIdempotent(t *testing.T) {
	_, tbl, r := newFixture(t)

	mustSet(t, r, tbl, ArpSeqSwing, 12000)
	res := mustSet(t, r, tbl, ClockInputMode, 1)
	require.Equal(t, []Change{{ArpSeqSwing, 8192}}, res.Cascade)

	// Re-running the same change against the resulting table cascades nothing.
	res, err := r.Propose(tbl, ClockInputMode, 1)
	require.NoError(t, err)
	require.Empty(t, res.Cascade)
}

func TestCascadeForcesDependentToggle(t *testing.T) {
	_, tbl, r := newFixture(t)

	v, _ := tbl.Get(FollowSongPosition)
	require.Equal(t, 1, v)

	res := mustSet(t, r, tbl, MIDIClockInput, 2)
	require.Equal(t, []Change{{FollowSongPosition, 0}}, res.Cascade)

	v, _ = tbl.Get(FollowSongPosition)
	require.Equal(t, 0, v)
}

func TestDisableRetainsStoredValue(t *testing.T) {
	_, tbl, r := newFixture(t)

	mustSet(t, r, tbl, ParaphonyMode, 2)
	mustSet(t, r, tbl, ParaphonicUnison, 1)
	mustSet(t, r, tbl, UpdateUnisonNoteOff, 1)

	// Dropping back to mono disables the chain but rewrites nothing.
	res := mustSet(t, r, tbl, ParaphonyMode, 0)
	require.Empty(t, res.Cascade)

	v, _ := tbl.Get(ParaphonicUnison)
	require.Equal(t, 1, v)
	require.False(t, r.Enabled(tbl, ParaphonicUnison))
	require.False(t, r.Enabled(tbl, UpdateUnisonNoteOff))

	_, err := r.Propose(tbl, ParaphonicUnison, 0)
	require.ErrorIs(t, err, ErrParameterDisabled)
}

func TestChangesBatchesPrimaryAndCascade(t *testing.T) {
	_, tbl, r := newFixture(t)

	mustSet(t, r, tbl, Osc2FreqKnobRange, 20)
	res, err := r.Propose(tbl, HardSyncEnable, 1)
	require.NoError(t, err)

	changes := res.Changes()
	require.Equal(t, Change{HardSyncEnable, 1}, changes[0])
	require.Contains(t, changes, Change{Osc2FreqKnobRange, 12})
}
