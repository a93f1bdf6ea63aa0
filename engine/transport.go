package engine

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Transport is the duplex MIDI link the engine talks through. The caller
// opens ports and demultiplexes the raw byte stream; the engine only ever
// sees discrete messages. A failed Send drives the engine to Disconnected.
type Transport interface {
	// Send writes one outbound message (SysEx frame or CC).
	Send(msg []byte) error
	// Inbound is the stream of discrete inbound messages. Closing it tells
	// the engine the transport is gone.
	Inbound() <-chan []byte
}

// MIDITransport adapts an opened gomidi in/out port pair to Transport.
type MIDITransport struct {
	out     drivers.Out
	send    func(gomidi.Message) error
	stopFn  func()
	inbound chan []byte
}

// NewMIDITransport wires an already-opened port pair. SysEx and control
// change messages are forwarded; everything else (clock, notes, active
// sensing) is dropped here so the engine never sees it.
func NewMIDITransport(in drivers.In, out drivers.Out) (*MIDITransport, error) {
	t := &MIDITransport{
		out:     out,
		inbound: make(chan []byte, 64),
	}

	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	t.send = send

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		b := msg.Bytes()
		if len(b) == 0 {
			return
		}
		if b[0] != 0xF0 && b[0]&0xF0 != 0xB0 {
			return
		}
		out := make([]byte, len(b))
		copy(out, b)
		select {
		case t.inbound <- out:
		default:
			// Inbound full means the consumer stalled; dropping beats blocking
			// the MIDI driver callback.
		}
	}, gomidi.UseSysEx(), gomidi.SysExBufferSize(1024))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	t.stopFn = stop

	return t, nil
}

// Send writes msg to the output port.
func (t *MIDITransport) Send(msg []byte) error {
	return t.send(gomidi.Message(msg))
}

// Inbound returns the inbound message stream.
func (t *MIDITransport) Inbound() <-chan []byte { return t.inbound }

// Close stops listening and closes the inbound stream.
func (t *MIDITransport) Close() {
	if t.stopFn != nil {
		t.stopFn()
		t.stopFn = nil
	}
	close(t.inbound)
}
