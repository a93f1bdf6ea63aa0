package sysex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"matriarchctl/param"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec(param.Matriarch(), 0, 0)
}

func TestEncodeParamFrameBytes(t *testing.T) {
	c := newCodec(t)

	// Arp/Seq Swing (id 23) to 8192: MSB 64, LSB 0.
	frame, err := c.Encode(param.ArpSeqSwing, 8192)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0xF0, 0x04, 0x17, 0x23, 23, 64, 0,
		0, 0, 0, 0, 0, 0, 0,
		0, 0, 0xF7,
	}, frame)
}

func TestEncodeCarriesUnitID(t *testing.T) {
	c := NewCodec(param.Matriarch(), 5, 0)
	frame, err := c.Encode(param.HardSyncEnable, 1)
	require.NoError(t, err)
	require.Equal(t, byte(5), frame[15])
}

func TestEncodeRejectsOutOfDomain(t *testing.T) {
	c := newCodec(t)
	_, err := c.Encode(param.PitchBendRange, 13)
	require.ErrorIs(t, err, ErrEncodingOutOfRange)
}

func TestEncodeUnknownParameter(t *testing.T) {
	c := newCodec(t)
	_, err := c.Encode(param.ID(33), 0)
	require.ErrorIs(t, err, param.ErrUnknownParameter)
}

func TestEncodeCC(t *testing.T) {
	c := NewCodec(param.Matriarch(), 0, 3)
	msg, err := c.Encode(param.MasterVolume, 100)
	require.NoError(t, err)
	require.Equal(t, []byte{0xB3, 7, 100}, msg)
}

func TestSwitchControllerFullScale(t *testing.T) {
	c := newCodec(t)

	// Glide on must leave the host as 127, not the stored 1: the device
	// reads 0-63 as off and 64-127 as on.
	msg, err := c.Encode(param.GlideSwitch, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xB0, 65, 127}, msg)
	require.GreaterOrEqual(t, msg[2], byte(64))

	msg, err = c.Encode(param.GlideSwitch, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{0xB0, 65, 0}, msg)

	// Inbound folds both halves back onto 0/1.
	ups, err := c.Decode([]byte{0xB0, 65, 100})
	require.NoError(t, err)
	require.Equal(t, []Update{{ID: param.GlideSwitch, Value: 1}}, ups)

	ups, err = c.Decode([]byte{0xB0, 65, 63})
	require.NoError(t, err)
	require.Equal(t, []Update{{ID: param.GlideSwitch, Value: 0}}, ups)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newCodec(t)
	reg := param.Matriarch()

	for _, id := range reg.IDs() {
		s, _ := reg.Lookup(id)
		lo, hi := s.Domain.Bounds()
		for _, v := range []int{lo, hi, s.Default} {
			if !s.Domain.Contains(v) {
				continue
			}
			msg, err := c.Encode(id, v)
			require.NoError(t, err, s.Name)
			ups, err := c.Decode(msg)
			require.NoError(t, err, s.Name)
			require.Equal(t, []Update{{ID: id, Value: v}}, ups, s.Name)
		}
	}
}

func TestEncodeQuery(t *testing.T) {
	c := newCodec(t)
	frame, err := c.EncodeQuery(param.NoiseFilterCutoff)
	require.NoError(t, err)
	require.Len(t, frame, 17)
	require.Equal(t, byte(0x3E), frame[3])
	require.Equal(t, byte(71), frame[4])

	// A query echoed back to us decodes to nothing.
	ups, err := c.Decode(frame)
	require.NoError(t, err)
	require.Empty(t, ups)
}

func TestEncodeQueryRejectsCC(t *testing.T) {
	c := newCodec(t)
	_, err := c.EncodeQuery(param.ModWheel)
	require.ErrorIs(t, err, ErrNotQueryable)
}

func TestDumpRoundTrip(t *testing.T) {
	c := newCodec(t)
	reg := param.Matriarch()

	values := make(map[param.ID]int)
	for _, id := range reg.SysExIDs() {
		s, _ := reg.Lookup(id)
		_, hi := s.Domain.Bounds()
		values[id] = s.Domain.Clamp(hi)
	}

	frame, err := c.EncodeDump(values)
	require.NoError(t, err)
	require.Len(t, frame, 159)

	ups, err := c.Decode(frame)
	require.NoError(t, err)
	require.Len(t, ups, len(values))
	for _, u := range ups {
		require.Equal(t, values[u.ID], u.Value)
	}
}

func TestDumpChecksumMismatchYieldsNothing(t *testing.T) {
	c := newCodec(t)
	frame, err := c.EncodeDump(map[param.ID]int{param.PitchBendRange: 7})
	require.NoError(t, err)

	frame[len(frame)-2] ^= 0x01
	ups, err := c.Decode(frame)
	require.ErrorIs(t, err, ErrCorruptFrame)
	require.Empty(t, ups)
}

func TestDecodeRejectsTornFrames(t *testing.T) {
	c := newCodec(t)

	cases := map[string][]byte{
		"empty":              {},
		"unterminated":       {0xF0, 0x04, 0x17, 0x23, 0, 0, 0},
		"wrong manufacturer": {0xF0, 0x00, 0x20, 0x23, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xF7},
		"unknown command":    {0xF0, 0x04, 0x17, 0x55, 0, 0xF7},
		"short set frame":    {0xF0, 0x04, 0x17, 0x23, 0, 0, 0xF7},
	}
	for name, msg := range cases {
		_, err := c.Decode(msg)
		require.ErrorIs(t, err, ErrCorruptFrame, name)
	}
}

func TestDecodeCC(t *testing.T) {
	c := newCodec(t)

	ups, err := c.Decode([]byte{0xB0, 5, 64})
	require.NoError(t, err)
	require.Equal(t, []Update{{ID: param.GlideTime, Value: 64}}, ups)

	_, err = c.Decode([]byte{0xB0, 99, 1})
	require.ErrorIs(t, err, ErrUnrecognizedController)
}

func TestIsResponse(t *testing.T) {
	c := newCodec(t)
	frame, err := c.Encode(param.HardSyncEnable, 1)
	require.NoError(t, err)
	require.False(t, IsResponse(frame))

	frame[14] = 1
	require.True(t, IsResponse(frame))
}
