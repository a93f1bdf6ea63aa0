package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 3000, cfg.Sync.QueryTimeoutMS)
	require.Equal(t, 400, cfg.Sync.QueryDelayMS)
	require.Equal(t, 3, cfg.Sync.MaxAttempts)
	require.Equal(t, uint8(0), cfg.MIDI.Unit)
}

func TestEngineConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MIDI.Unit = 5
	cfg.MIDI.Channel = 2

	ec := cfg.Engine()
	require.Equal(t, uint8(5), ec.Unit)
	require.Equal(t, uint8(2), ec.Channel)
	require.Equal(t, 3*time.Second, ec.QueryTimeout)
	require.Equal(t, 400*time.Millisecond, ec.QueryDelay)
	require.Equal(t, 3, ec.MaxAttempts)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.MIDI.InputPort = "Matriarch MIDI In"
	cfg.MIDI.Unit = 3
	cfg.Debug = true
	require.NoError(t, cfg.Save())

	back, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg, back)
}
