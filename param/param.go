package param

import (
	"errors"
	"fmt"
)

// ID identifies a single device parameter. SysEx-addressed parameters use the
// id from the Matriarch global parameter table; CC-mapped performance
// parameters live above CCBase so the two spaces never collide.
type ID int

// CCBase is the first id used for CC-mapped performance parameters.
const CCBase ID = 100

// Errors surfaced by table access and proposal validation.
var (
	ErrUnknownParameter  = errors.New("unknown parameter")
	ErrOutOfDomain       = errors.New("value out of domain")
	ErrParameterDisabled = errors.New("parameter disabled")
)

// Group is the panel section a parameter belongs to.
type Group int

const (
	GroupMIDI Group = iota
	GroupKeyboard
	GroupArpSeq
	GroupAudioCV
	GroupAdvanced
)

func (g Group) String() string {
	switch g {
	case GroupMIDI:
		return "MIDI & Communication"
	case GroupKeyboard:
		return "Performance & Keyboard"
	case GroupArpSeq:
		return "Arp/Sequencer"
	case GroupAudioCV:
		return "Audio & CV"
	case GroupAdvanced:
		return "Advanced"
	}
	return "Unknown"
}

// DomainKind tags the closed set of value domains the hardware uses.
type DomainKind int

const (
	Toggle  DomainKind = iota // 0/1
	Choice                    // discrete labelled values
	Range                     // contiguous min..max
	Channel                   // MIDI channel, stored 0-15, shown 1-16
)

// Domain is a parameter's value domain.
type Domain struct {
	Kind     DomainKind
	Min, Max int
	Choices  map[int]string // Choice only
}

// Bounds returns the inclusive low/high ends of the domain.
func (d Domain) Bounds() (int, int) {
	switch d.Kind {
	case Toggle:
		return 0, 1
	case Channel:
		return 0, 15
	case Choice:
		lo, hi := 0, 0
		first := true
		for v := range d.Choices {
			if first || v < lo {
				lo = v
			}
			if first || v > hi {
				hi = v
			}
			first = false
		}
		return lo, hi
	}
	return d.Min, d.Max
}

// Contains reports whether v is a member of the domain.
func (d Domain) Contains(v int) bool {
	switch d.Kind {
	case Toggle:
		return v == 0 || v == 1
	case Channel:
		return v >= 0 && v <= 15
	case Choice:
		_, ok := d.Choices[v]
		return ok
	}
	return v >= d.Min && v <= d.Max
}

// Clamp pulls v to the nearest domain member.
func (d Domain) Clamp(v int) int {
	switch d.Kind {
	case Toggle:
		if v != 0 {
			return 1
		}
		return 0
	case Channel:
		return clampInt(v, 0, 15)
	case Choice:
		if _, ok := d.Choices[v]; ok {
			return v
		}
		best, bestDist := 0, -1
		for c := range d.Choices {
			dist := c - v
			if dist < 0 {
				dist = -dist
			}
			// Tie-break toward the lower value so the result is deterministic.
			if bestDist < 0 || dist < bestDist || (dist == bestDist && c < best) {
				best, bestDist = c, dist
			}
		}
		return best
	}
	return clampInt(v, d.Min, d.Max)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodingKind tags how a parameter travels over MIDI.
type EncodingKind int

const (
	EncodeSysEx EncodingKind = iota // 17-byte parameter frame, 14-bit value
	EncodeCC                        // 3-byte control change, 7-bit value
)

// Encoding describes a parameter's wire representation. SysEx parameters are
// addressed by their ID inside the frame; CC parameters by controller number.
type Encoding struct {
	Kind       EncodingKind
	Controller uint8 // CC only
}

// ConstraintKind tags the outcome of a dependency rule.
type ConstraintKind int

const (
	None ConstraintKind = iota
	Disabled
	Clamped
	Forced
)

// Constraint is what a governing parameter's current value imposes on a
// governed one.
type Constraint struct {
	Kind     ConstraintKind
	Min, Max int // Clamped
	Value    int // Forced
}

// Unconstrained leaves the governed parameter alone.
func Unconstrained() Constraint { return Constraint{Kind: None} }

// Disable makes the governed parameter unavailable (kept locally, never sent).
func Disable() Constraint { return Constraint{Kind: Disabled} }

// ClampedRange restricts the governed parameter to [min, max].
func ClampedRange(min, max int) Constraint {
	return Constraint{Kind: Clamped, Min: min, Max: max}
}

// ForcedValue pins the governed parameter to v.
func ForcedValue(v int) Constraint { return Constraint{Kind: Forced, Value: v} }

// Rule ties a governed parameter to a governing one. Condition receives the
// governing parameter's current value.
type Rule struct {
	Governing ID
	Condition func(governing int) Constraint
}

// Spec is the static descriptor for one parameter. Immutable after registry
// construction; shared by reference everywhere.
type Spec struct {
	ID       ID
	Name     string
	Group    Group
	Domain   Domain
	Encoding Encoding
	Default  int
	Rules    []Rule // rules constraining this parameter
	Format   func(v int) string
}

// Render returns the human-readable form of v for this parameter.
func (s *Spec) Render(v int) string {
	if s.Format != nil {
		return s.Format(v)
	}
	switch s.Domain.Kind {
	case Toggle:
		if v != 0 {
			return "On"
		}
		return "Off"
	case Choice:
		if label, ok := s.Domain.Choices[v]; ok {
			return label
		}
		return fmt.Sprintf("Unknown (%d)", v)
	case Channel:
		return fmt.Sprintf("Channel %d", v+1)
	}
	return fmt.Sprintf("%d", v)
}
