package param

import "fmt"

// Moog Matriarch global parameters, ids per the MIDI implementation in the
// manual (pages 76-79). Ids 33 and 34 are reserved slots the firmware skips;
// they are absent here on purpose.
const (
	UnitID               ID = 0
	TuningScale          ID = 1
	KnobMode             ID = 2
	NotePriority         ID = 3
	SendProgramChange    ID = 4
	ReceiveProgramChange ID = 5
	MIDIInputPorts       ID = 6
	MIDIOutputPorts      ID = 7
	MIDIEchoUSBIn        ID = 8
	MIDIEchoDINIn        ID = 9
	MIDIInputChannel     ID = 10
	MIDIOutputChannel    ID = 11
	FilterKeys           ID = 12
	FilterWheels         ID = 13
	FilterPanel          ID = 14
	Output14BitCC        ID = 15
	LocalKeys            ID = 16
	LocalWheels          ID = 17
	LocalPanel           ID = 18
	LocalArpSeq          ID = 19
	SeqTransposeMode     ID = 20
	KeyedTimingReset     ID = 21
	ArpFWBWRepeats       ID = 22
	ArpSeqSwing          ID = 23
	SeqKeyboardControl   ID = 24
	DelaySeqChange       ID = 25
	SeqKeyedRestart      ID = 26
	ClockInputMode       ID = 27
	ClockOutputMode      ID = 28
	ArpMIDIOutput        ID = 29
	MIDIClockInput       ID = 30
	MIDIClockOutput      ID = 31
	FollowSongPosition   ID = 32
	ClockInputPPQN       ID = 35
	ClockOutputPPQN      ID = 36
	PitchBendRange       ID = 37
	KeyboardOctave       ID = 38
	DelayedOctaveShift   ID = 39
	GlideType            ID = 40
	GatedGlide           ID = 41
	LegatoGlide          ID = 42
	Osc2FreqKnobRange    ID = 43
	Osc3FreqKnobRange    ID = 44
	Osc4FreqKnobRange    ID = 45
	HardSyncEnable       ID = 46
	Osc2HardSync         ID = 47
	Osc3HardSync         ID = 48
	Osc4HardSync         ID = 49
	DelayPingPong        ID = 50
	DelaySync            ID = 51
	DelayFilterBright    ID = 52
	DelayCVSyncBend      ID = 53
	TapTempoPersistence  ID = 54
	ParaphonyMode        ID = 55
	ParaphonicUnison     ID = 56
	MultiTrig            ID = 57
	PitchVariance        ID = 58
	KBCVOutRange         ID = 59
	ArpSeqCVOutRange     ID = 60
	KBVelOutRange        ID = 61
	ArpSeqVelOutRange    ID = 62
	KBATOutRange         ID = 63
	ModWhlOutRange       ID = 64
	KBGateOutRange       ID = 65
	ArpSeqGateOutRange   ID = 66
	RoundRobinMode       ID = 67
	RestoreStolenVoices  ID = 68
	UpdateUnisonNoteOff  ID = 69
	ModOscSquarePolarity ID = 70
	NoiseFilterCutoff    ID = 71
	ArpSeqRandomRepeats  ID = 72
	ArpSeqMirrorsKB      ID = 73
	KBMirrorsArpSeq      ID = 74
	VelocityCurve        ID = 75

	// CC-mapped performance parameters (not part of the SysEx global table).
	ModWheel     ID = CCBase + 0 // CC 1
	GlideTime    ID = CCBase + 1 // CC 5
	MasterVolume ID = CCBase + 2 // CC 7
	GlideSwitch  ID = CCBase + 3 // CC 65
)

func toggle(id ID, name string, g Group, def int) *Spec {
	return &Spec{ID: id, Name: name, Group: g, Default: def,
		Domain: Domain{Kind: Toggle}}
}

func choice(id ID, name string, g Group, def int, labels map[int]string) *Spec {
	return &Spec{ID: id, Name: name, Group: g, Default: def,
		Domain: Domain{Kind: Choice, Choices: labels}}
}

func ranged(id ID, name string, g Group, def, min, max int) *Spec {
	return &Spec{ID: id, Name: name, Group: g, Default: def,
		Domain: Domain{Kind: Range, Min: min, Max: max}}
}

func channel(id ID, name string, g Group) *Spec {
	return &Spec{ID: id, Name: name, Group: g, Domain: Domain{Kind: Channel}}
}

func cc(id ID, controller uint8, name string, g Group, def, min, max int) *Spec {
	return &Spec{ID: id, Name: name, Group: g, Default: def,
		Domain:   Domain{Kind: Range, Min: min, Max: max},
		Encoding: Encoding{Kind: EncodeCC, Controller: controller}}
}

func ccToggle(id ID, controller uint8, name string, g Group, def int) *Spec {
	return &Spec{ID: id, Name: name, Group: g, Default: def,
		Domain:   Domain{Kind: Toggle},
		Encoding: Encoding{Kind: EncodeCC, Controller: controller}}
}

// whenEquals applies c while the governing parameter equals v.
func whenEquals(v int, c Constraint) func(int) Constraint {
	return func(governing int) Constraint {
		if governing == v {
			return c
		}
		return Unconstrained()
	}
}

var (
	portChoices = map[int]string{0: "None", 1: "DIN Only", 2: "USB Only", 3: "Both DIN and USB"}
	echoChoices = map[int]string{0: "Off", 1: "Echo to DIN Out", 2: "Echo to USB Out", 3: "Echo to Both"}
	ppqnChoices = map[int]string{
		0: "1 PPQN", 1: "2 PPQN", 2: "3 PPQN", 3: "4 PPQN", 4: "5 PPQN",
		5: "6 PPQN", 6: "7 PPQN", 7: "8 PPQN", 8: "9 PPQN", 9: "10 PPQN",
		10: "11 PPQN", 11: "12 PPQN", 12: "24 PPQN", 13: "48 PPQN",
	}
	cvRangeBipolar  = map[int]string{0: "-5V to +5V", 1: "0V to +10V"}
	cvRangeUnipolar = map[int]string{0: "0V to +5V", 1: "0V to +10V"}
	gateRange       = map[int]string{0: "+5V", 1: "+10V"}
)

func swingPercent(v int) string {
	return fmt.Sprintf("%.1f%%", float64(v)/16383.0*100)
}

func semitones(v int) string {
	if v == 0 {
		return "None"
	}
	if v == 1 {
		return "1 semitone"
	}
	return fmt.Sprintf("%d semitones", v)
}

func variance(v int) string {
	if v == 0 {
		return "Off"
	}
	return fmt.Sprintf("±%.1f cents", float64(v)*0.1)
}

// matriarchSpecs builds the full descriptor set. Separate from Matriarch so
// tests can perturb a copy without touching the shared registry.
func matriarchSpecs() []*Spec {
	specs := []*Spec{
		ranged(UnitID, "Unit ID", GroupAdvanced, 0, 0, 15),
		ranged(TuningScale, "Tuning Scale", GroupAdvanced, 0, 0, 31),
		choice(KnobMode, "Knob Mode", GroupAdvanced, 2,
			map[int]string{0: "Snap", 1: "Pass-Thru", 2: "Relative"}),
		choice(NotePriority, "Note Priority", GroupKeyboard, 2,
			map[int]string{0: "Low", 1: "High", 2: "Last Note"}),
		toggle(SendProgramChange, "Send Program Change", GroupMIDI, 0),
		toggle(ReceiveProgramChange, "Receive Program Change", GroupMIDI, 1),
		choice(MIDIInputPorts, "MIDI Input Ports", GroupMIDI, 3, portChoices),
		choice(MIDIOutputPorts, "MIDI Output Ports", GroupMIDI, 3, portChoices),
		choice(MIDIEchoUSBIn, "MIDI Echo USB In", GroupMIDI, 0, echoChoices),
		choice(MIDIEchoDINIn, "MIDI Echo DIN In", GroupMIDI, 0, echoChoices),
		channel(MIDIInputChannel, "MIDI Input Channel", GroupMIDI),
		channel(MIDIOutputChannel, "MIDI Output Channel", GroupMIDI),
		toggle(FilterKeys, "MIDI Out Filter - Keys", GroupMIDI, 1),
		toggle(FilterWheels, "MIDI Out Filter - Wheels", GroupMIDI, 1),
		toggle(FilterPanel, "MIDI Out Filter - Panel", GroupMIDI, 1),
		toggle(Output14BitCC, "Output 14-bit MIDI CCs", GroupMIDI, 0),
		toggle(LocalKeys, "Local Control: Keys", GroupMIDI, 1),
		toggle(LocalWheels, "Local Control: Wheels", GroupMIDI, 1),
		toggle(LocalPanel, "Local Control: Panel", GroupMIDI, 1),
		toggle(LocalArpSeq, "Local Control: Arp/Seq", GroupMIDI, 1),
		choice(SeqTransposeMode, "Sequence Transpose Mode", GroupArpSeq, 0,
			map[int]string{0: "Relative to First Note", 1: "Relative to Middle C"}),
		toggle(KeyedTimingReset, "Arp/Seq Keyed Timing Reset", GroupArpSeq, 0),
		toggle(ArpFWBWRepeats, "Arp FW/BW Repeats", GroupArpSeq, 1),
		ranged(ArpSeqSwing, "Arp/Seq Swing", GroupArpSeq, 8192, 0, 16383),
		toggle(SeqKeyboardControl, "Sequence Keyboard Control", GroupArpSeq, 1),
		toggle(DelaySeqChange, "Delay Sequence Change", GroupArpSeq, 0),
		toggle(SeqKeyedRestart, "Sequence Keyed Restart", GroupArpSeq, 0),
		choice(ClockInputMode, "Arp/Seq Clock Input Mode", GroupArpSeq, 0,
			map[int]string{0: "Clock", 1: "Step-Advance Trigger"}),
		choice(ClockOutputMode, "Arp/Seq Clock Output", GroupArpSeq, 1,
			map[int]string{0: "Always", 1: "Only When Playing"}),
		toggle(ArpMIDIOutput, "Arp MIDI Output", GroupArpSeq, 1),
		choice(MIDIClockInput, "MIDI Clock Input", GroupMIDI, 0,
			map[int]string{0: "Follow Clock + Start/Stop", 1: "Follow Clock Only", 2: "Ignore All"}),
		choice(MIDIClockOutput, "MIDI Clock Output", GroupMIDI, 0,
			map[int]string{0: "Send Clock + Start/Stop", 1: "Send Clock Only", 2: "Send Nothing"}),
		toggle(FollowSongPosition, "Follow Song Position Pointer", GroupMIDI, 1),
		choice(ClockInputPPQN, "Clock Input PPQN", GroupArpSeq, 3, ppqnChoices),
		choice(ClockOutputPPQN, "Clock Output PPQN", GroupArpSeq, 3, ppqnChoices),
		ranged(PitchBendRange, "Pitch Bend Range", GroupKeyboard, 2, 0, 12),
		choice(KeyboardOctave, "Keyboard Octave Transpose", GroupKeyboard, 2,
			map[int]string{0: "-2 Octaves", 1: "-1 Octave", 2: "Normal", 3: "+1 Octave", 4: "+2 Octaves"}),
		toggle(DelayedOctaveShift, "Delayed Keyboard Octave Shift", GroupKeyboard, 1),
		choice(GlideType, "Glide Type", GroupKeyboard, 0,
			map[int]string{0: "Linear Constant Rate", 1: "Linear Constant Time", 2: "Exponential"}),
		toggle(GatedGlide, "Gated Glide", GroupKeyboard, 1),
		toggle(LegatoGlide, "Legato Glide", GroupKeyboard, 1),
		ranged(Osc2FreqKnobRange, "Osc 2 Freq Knob Range", GroupAudioCV, 7, 0, 24),
		ranged(Osc3FreqKnobRange, "Osc 3 Freq Knob Range", GroupAudioCV, 7, 0, 24),
		ranged(Osc4FreqKnobRange, "Osc 4 Freq Knob Range", GroupAudioCV, 7, 0, 24),
		toggle(HardSyncEnable, "Hard Sync Enable", GroupAudioCV, 0),
		toggle(Osc2HardSync, "Osc 2 Hard Sync", GroupAudioCV, 0),
		toggle(Osc3HardSync, "Osc 3 Hard Sync", GroupAudioCV, 0),
		toggle(Osc4HardSync, "Osc 4 Hard Sync", GroupAudioCV, 0),
		toggle(DelayPingPong, "Delay Ping Pong", GroupAudioCV, 0),
		toggle(DelaySync, "Delay Sync", GroupAudioCV, 0),
		choice(DelayFilterBright, "Delay Filter Brightness", GroupAudioCV, 1,
			map[int]string{0: "Dark", 1: "Bright"}),
		toggle(DelayCVSyncBend, "Delay CV Sync-Bend", GroupAudioCV, 0),
		toggle(TapTempoPersistence, "Tap-Tempo Clock Division Persistence", GroupArpSeq, 0),
		choice(ParaphonyMode, "Paraphony Mode", GroupKeyboard, 0,
			map[int]string{0: "Mono (1 Voice)", 1: "Duo (2 Voice)", 2: "Quad (4 Voice)"}),
		toggle(ParaphonicUnison, "Paraphonic Unison", GroupKeyboard, 0),
		toggle(MultiTrig, "Multi Trig", GroupKeyboard, 0),
		ranged(PitchVariance, "Pitch Variance", GroupAdvanced, 0, 0, 400),
		choice(KBCVOutRange, "KB CV OUT Range", GroupAudioCV, 0, cvRangeBipolar),
		choice(ArpSeqCVOutRange, "Arp/Seq CV OUT Range", GroupAudioCV, 0, cvRangeBipolar),
		choice(KBVelOutRange, "KB VEL OUT Range", GroupAudioCV, 0, cvRangeUnipolar),
		choice(ArpSeqVelOutRange, "Arp/Seq VEL OUT Range", GroupAudioCV, 0, cvRangeUnipolar),
		choice(KBATOutRange, "KB AT OUT Range", GroupAudioCV, 0, cvRangeUnipolar),
		choice(ModWhlOutRange, "MOD WHL OUT Range", GroupAudioCV, 0, cvRangeUnipolar),
		choice(KBGateOutRange, "KB GATE OUT Range", GroupAudioCV, 0, gateRange),
		choice(ArpSeqGateOutRange, "Arp/Seq GATE OUT Range", GroupAudioCV, 0, gateRange),
		choice(RoundRobinMode, "Round-Robin Mode", GroupKeyboard, 1,
			map[int]string{0: "Off", 1: "On with Reset", 2: "On"}),
		toggle(RestoreStolenVoices, "Restore Stolen Voices", GroupKeyboard, 0),
		toggle(UpdateUnisonNoteOff, "Update Unison on Note-Off", GroupKeyboard, 0),
		choice(ModOscSquarePolarity, "Mod Oscillator Square Wave Polarity", GroupAdvanced, 1,
			map[int]string{0: "Unipolar", 1: "Bipolar"}),
		ranged(NoiseFilterCutoff, "Noise Filter Cutoff", GroupAudioCV, 16383, 0, 16383),
		choice(ArpSeqRandomRepeats, "Arp/Seq Random Repeats", GroupArpSeq, 1,
			map[int]string{0: "No Repeats", 1: "Allow Repeats"}),
		toggle(ArpSeqMirrorsKB, "ARP/SEQ CV OUT Mirrors KB CV", GroupAudioCV, 0),
		toggle(KBMirrorsArpSeq, "KB CV OUT Mirrors ARP/SEQ CV", GroupAudioCV, 0),
		choice(VelocityCurve, "MIDI Velocity Curves", GroupMIDI, 0,
			map[int]string{0: "Base", 1: "Linear", 2: "Hard", 3: "Soft"}),

		cc(ModWheel, 1, "Mod Wheel", GroupKeyboard, 0, 0, 127),
		cc(GlideTime, 5, "Glide Time", GroupKeyboard, 0, 0, 127),
		cc(MasterVolume, 7, "Master Volume", GroupKeyboard, 100, 0, 127),
		ccToggle(GlideSwitch, 65, "Glide On/Off", GroupKeyboard, 0),
	}

	byID := make(map[ID]*Spec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}
	byID[ArpSeqSwing].Format = swingPercent
	byID[Osc2FreqKnobRange].Format = semitones
	byID[Osc3FreqKnobRange].Format = semitones
	byID[Osc4FreqKnobRange].Format = semitones
	byID[PitchBendRange].Format = semitones
	byID[PitchVariance].Format = variance

	// Panel dependencies. The hard sync switches and the knob-range clamps
	// hang off Hard Sync Enable; the voice-assignment settings off Paraphony
	// Mode; Update Unison on Note-Off off Paraphonic Unison (so a Paraphony
	// Mode change cascades two levels deep); the clock settings off their
	// respective mode selectors.
	rules := map[ID][]Rule{
		Osc2HardSync:        {{HardSyncEnable, whenEquals(0, Disable())}},
		Osc3HardSync:        {{HardSyncEnable, whenEquals(0, Disable())}},
		Osc4HardSync:        {{HardSyncEnable, whenEquals(0, Disable())}},
		Osc2FreqKnobRange:   {{HardSyncEnable, whenEquals(1, ClampedRange(0, 12))}},
		Osc3FreqKnobRange:   {{HardSyncEnable, whenEquals(1, ClampedRange(0, 12))}},
		Osc4FreqKnobRange:   {{HardSyncEnable, whenEquals(1, ClampedRange(0, 12))}},
		ParaphonicUnison:    {{ParaphonyMode, whenEquals(0, Disable())}},
		RoundRobinMode:      {{ParaphonyMode, whenEquals(0, Disable())}},
		RestoreStolenVoices: {{ParaphonyMode, whenEquals(0, Disable())}},
		UpdateUnisonNoteOff: {{ParaphonicUnison, whenEquals(0, Disable())}},
		DelayCVSyncBend:     {{DelaySync, whenEquals(0, Disable())}},
		ClockInputPPQN:      {{ClockInputMode, whenEquals(1, Disable())}},
		ArpSeqSwing:         {{ClockInputMode, whenEquals(1, ForcedValue(8192))}},
		FollowSongPosition:  {{MIDIClockInput, whenEquals(2, ForcedValue(0))}},
		ClockOutputPPQN:     {{MIDIClockOutput, whenEquals(2, Disable())}},
		GatedGlide:          {{GlideSwitch, whenEquals(0, Disable())}},
		LegatoGlide:         {{GlideSwitch, whenEquals(0, Disable())}},
	}
	for id, rs := range rules {
		byID[id].Rules = rs
	}

	return specs
}

// Matriarch returns the registry for the Moog Matriarch. The built-in table
// is validated at construction; an invalid table is a programming error.
func Matriarch() *Registry {
	r, err := NewRegistry(matriarchSpecs())
	if err != nil {
		panic("param: invalid Matriarch table: " + err.Error())
	}
	return r
}
