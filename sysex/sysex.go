// Package sysex translates between (parameter, value) pairs and raw MIDI
// bytes for the Moog Matriarch. Pure and stateless: nothing here talks to a
// port or remembers a frame.
package sysex

import (
	"errors"
	"fmt"

	"matriarchctl/param"
)

// Wire constants from the Matriarch MIDI implementation (manual pages 76-79).
const (
	Start = 0xF0
	End   = 0xF7

	MfgMoog0 = 0x04 // Moog Music manufacturer id, first byte
	MfgMoog1 = 0x17

	CmdSet         = 0x23 // set parameter; also the response to a get
	CmdGet         = 0x3E // request one parameter
	CmdDump        = 0x10 // full global table dump
	CmdDumpRequest = 0x00 // request a full dump

	paramFrameLen = 17
	responseIdx   = 14 // 1 on device-originated responses
	unitIdx       = 15

	// Dump payload: two 7-bit bytes per global parameter slot, slots 0-75.
	// Reserved slots ride along as zeros.
	dumpSlots      = 76
	dumpPayloadLen = dumpSlots * 2
	dumpFrameLen   = 5 + dumpPayloadLen + 2 // header, payload, checksum, F7
)

// Errors. Decode failures are dropped-and-logged by callers, never fatal.
var (
	ErrEncodingOutOfRange     = errors.New("value out of range for encoding")
	ErrCorruptFrame           = errors.New("corrupt sysex frame")
	ErrUnrecognizedController = errors.New("unrecognized controller")
	ErrNotQueryable           = errors.New("parameter not queryable over sysex")
)

// Update is one decoded parameter value.
type Update struct {
	ID    param.ID
	Value int
}

// Codec encodes and decodes Matriarch messages. Unit is the SysEx unit id
// (0-15), Channel the CC channel (0-15). Codec values are immutable; build a
// new one to change either.
type Codec struct {
	reg     *param.Registry
	Unit    uint8
	Channel uint8
}

// NewCodec returns a codec over reg.
func NewCodec(reg *param.Registry, unit, channel uint8) *Codec {
	return &Codec{reg: reg, Unit: unit & 0x0F, Channel: channel & 0x0F}
}

func split14(v int) (msb, lsb byte) {
	return byte(v>>7) & 0x7F, byte(v) & 0x7F
}

func join14(msb, lsb byte) int {
	return int(msb&0x7F)<<7 | int(lsb&0x7F)
}

// checksum is the device's additive checksum: sum of payload bytes mod 128.
func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum = (sum + b) & 0x7F
	}
	return sum
}

// Encode produces the wire bytes that set id to value: a 17-byte SysEx frame
// for global parameters, a 3-byte CC message for performance parameters.
// Out-of-domain values are rejected here even though callers validate first.
func (c *Codec) Encode(id param.ID, value int) ([]byte, error) {
	s, ok := c.reg.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("parameter %d: %w", id, param.ErrUnknownParameter)
	}
	if !s.Domain.Contains(value) {
		return nil, fmt.Errorf("%s: %d: %w", s.Name, value, ErrEncodingOutOfRange)
	}

	if s.Encoding.Kind == param.EncodeCC {
		if value < 0 || value > 127 {
			return nil, fmt.Errorf("%s: %d: %w", s.Name, value, ErrEncodingOutOfRange)
		}
		wire := byte(value)
		// Switch controllers read 0-63 as off and 64-127 as on; a stored 1
		// must go out full scale or the device treats it as off.
		if s.Domain.Kind == param.Toggle && value == 1 {
			wire = 127
		}
		return []byte{0xB0 | c.Channel, s.Encoding.Controller, wire}, nil
	}

	if value < 0 || value > 16383 {
		return nil, fmt.Errorf("%s: %d: %w", s.Name, value, ErrEncodingOutOfRange)
	}
	msb, lsb := split14(value)
	frame := make([]byte, paramFrameLen)
	frame[0] = Start
	frame[1], frame[2] = MfgMoog0, MfgMoog1
	frame[3] = CmdSet
	frame[4] = byte(id)
	frame[5], frame[6] = msb, lsb
	frame[responseIdx] = 0 // host-originated frames never set the response flag
	frame[unitIdx] = c.Unit
	frame[paramFrameLen-1] = End
	return frame, nil
}

// EncodeQuery produces the GET frame for one global parameter.
func (c *Codec) EncodeQuery(id param.ID) ([]byte, error) {
	s, ok := c.reg.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("parameter %d: %w", id, param.ErrUnknownParameter)
	}
	if s.Encoding.Kind != param.EncodeSysEx {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrNotQueryable)
	}
	frame := make([]byte, paramFrameLen)
	frame[0] = Start
	frame[1], frame[2] = MfgMoog0, MfgMoog1
	frame[3] = CmdGet
	frame[4] = byte(id)
	frame[unitIdx] = c.Unit
	frame[paramFrameLen-1] = End
	return frame, nil
}

// EncodeDumpRequest produces the full-table dump request.
func (c *Codec) EncodeDumpRequest() []byte {
	return []byte{Start, MfgMoog0, MfgMoog1, CmdDumpRequest, c.Unit, End}
}

// EncodeDump packs values into a full-table dump frame with checksum. Only
// global (SysEx-addressed) parameters appear; missing ids dump as zero.
func (c *Codec) EncodeDump(values map[param.ID]int) ([]byte, error) {
	payload := make([]byte, dumpPayloadLen)
	for _, id := range c.reg.SysExIDs() {
		v, ok := values[id]
		if !ok {
			continue
		}
		s, _ := c.reg.Lookup(id)
		if !s.Domain.Contains(v) {
			return nil, fmt.Errorf("%s: %d: %w", s.Name, v, ErrEncodingOutOfRange)
		}
		msb, lsb := split14(v)
		payload[2*int(id)] = msb
		payload[2*int(id)+1] = lsb
	}

	frame := make([]byte, 0, dumpFrameLen)
	frame = append(frame, Start, MfgMoog0, MfgMoog1, CmdDump, c.Unit)
	frame = append(frame, payload...)
	frame = append(frame, checksum(payload), End)
	return frame, nil
}

// Decode turns one inbound message into a batch of parameter updates.
// CC messages map a controller to exactly one parameter. Parameter frames
// yield one update; dump frames yield the whole table or, on a checksum
// mismatch, nothing at all. Partial decode of a torn frame is never surfaced.
func (c *Codec) Decode(msg []byte) ([]Update, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("empty message: %w", ErrCorruptFrame)
	}
	if msg[0] != Start {
		return c.decodeCC(msg)
	}
	if msg[len(msg)-1] != End {
		return nil, fmt.Errorf("unterminated frame: %w", ErrCorruptFrame)
	}
	if len(msg) < 6 || msg[1] != MfgMoog0 || msg[2] != MfgMoog1 {
		return nil, fmt.Errorf("not a Moog frame: %w", ErrCorruptFrame)
	}

	switch msg[3] {
	case CmdSet:
		return c.decodeParamFrame(msg)
	case CmdDump:
		return c.decodeDump(msg)
	case CmdGet, CmdDumpRequest:
		// A query echoed back carries no state.
		return nil, nil
	default:
		return nil, fmt.Errorf("command 0x%02X: %w", msg[3], ErrCorruptFrame)
	}
}

func (c *Codec) decodeParamFrame(msg []byte) ([]Update, error) {
	// The device pads responses with trailing zeros before the unit id, so
	// accept anything long enough to carry the value bytes.
	if len(msg) < paramFrameLen {
		return nil, fmt.Errorf("parameter frame length %d: %w", len(msg), ErrCorruptFrame)
	}
	id := param.ID(msg[4])
	if _, ok := c.reg.Lookup(id); !ok {
		return nil, fmt.Errorf("parameter %d: %w", id, param.ErrUnknownParameter)
	}
	return []Update{{ID: id, Value: join14(msg[5], msg[6])}}, nil
}

func (c *Codec) decodeDump(msg []byte) ([]Update, error) {
	if len(msg) != dumpFrameLen {
		return nil, fmt.Errorf("dump frame length %d: %w", len(msg), ErrCorruptFrame)
	}
	payload := msg[5 : 5+dumpPayloadLen]
	if got, want := msg[len(msg)-2], checksum(payload); got != want {
		return nil, fmt.Errorf("checksum 0x%02X, expected 0x%02X: %w", got, want, ErrCorruptFrame)
	}
	var out []Update
	for _, id := range c.reg.SysExIDs() {
		v := join14(payload[2*int(id)], payload[2*int(id)+1])
		out = append(out, Update{ID: id, Value: v})
	}
	return out, nil
}

// IsResponse reports whether a parameter frame was originated by the device
// (response flag set) rather than echoed from another controller.
func IsResponse(msg []byte) bool {
	return len(msg) >= paramFrameLen && msg[0] == Start && msg[3] == CmdSet &&
		msg[responseIdx] == 1
}

func (c *Codec) decodeCC(msg []byte) ([]Update, error) {
	if len(msg) != 3 || msg[0]&0xF0 != 0xB0 {
		return nil, fmt.Errorf("not a control change: %w", ErrCorruptFrame)
	}
	id, ok := c.reg.ByController(msg[1])
	if !ok {
		return nil, fmt.Errorf("controller %d: %w", msg[1], ErrUnrecognizedController)
	}
	v := int(msg[2] & 0x7F)
	s, _ := c.reg.Lookup(id)
	if s.Domain.Kind == param.Toggle {
		// Fold the switch-controller halves back onto the stored 0/1.
		if v >= 64 {
			v = 1
		} else {
			v = 0
		}
	}
	return []Update{{ID: id, Value: v}}, nil
}
