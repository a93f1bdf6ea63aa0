package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"matriarchctl/param"
)

func TestExportResolveRoundTrip(t *testing.T) {
	reg := param.Matriarch()
	values := map[param.ID]int{
		param.PitchBendRange: 7,
		param.ArpSeqSwing:    12000,
		param.ParaphonyMode:  2,
	}

	p := Export(reg, values)
	require.Equal(t, Version, p.Version)
	require.Equal(t, "Moog Matriarch", p.Device)
	require.Equal(t, 7, p.Values["Pitch Bend Range"])

	resolved, unknown := p.Resolve(reg)
	require.Empty(t, unknown)
	require.Equal(t, values, resolved)
}

func TestResolveReportsUnknownNames(t *testing.T) {
	reg := param.Matriarch()
	p := &Preset{
		Version: Version,
		Values: map[string]int{
			"Pitch Bend Range":    7,
			"Paraphony Mode":      1,
			"Hard Sync Enable":    1,
			"Osc 2 Hard Sync":     1,
			"Delay Ping Pong":     1,
			"Glide Type":          2,
			"Multi Trig":          1,
			"Arp/Seq Swing":       9000,
			"Noise Filter Cutoff": 12,
			"ZebraParam42":        1, // from some other firmware's export
		},
	}

	resolved, unknown := p.Resolve(reg)
	require.Len(t, resolved, 9)
	require.Equal(t, []string{"ZebraParam42"}, unknown)
}

func TestYAMLRoundTrip(t *testing.T) {
	reg := param.Matriarch()
	p := Export(reg, map[param.ID]int{
		param.HardSyncEnable: 1,
		param.MasterVolume:   90,
	})

	data, err := p.Marshal()
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, p, back)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte(":\n\t- nope"))
	require.Error(t, err)
}

func TestUnmarshalEmptyDocument(t *testing.T) {
	p, err := Unmarshal([]byte("version: 1\n"))
	require.NoError(t, err)
	require.NotNil(t, p.Values)
	require.Empty(t, p.Values)
}

func TestSaveLoad(t *testing.T) {
	reg := param.Matriarch()
	p := Export(reg, map[param.ID]int{param.GlideType: 2})

	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, p.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, p, back)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
