// Package preset serializes the parameter table to a portable YAML document
// and back. A preset is a detached snapshot: its lifetime is independent of
// the live table, and importing one routes every entry through the dependency
// resolver rather than overwriting the table wholesale.
package preset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"matriarchctl/param"
)

// Version written to new presets. Compatibility across versions is handled by
// the skip-unknown-name rule, not by version branching.
const Version = 1

// Preset is the document: parameter names to raw values. Names, not numeric
// ids, so files stay readable and survive table renumbering.
type Preset struct {
	Version int            `yaml:"version"`
	Device  string         `yaml:"device,omitempty"`
	Values  map[string]int `yaml:"values"`
}

// Export snapshots values into a preset document.
func Export(reg *param.Registry, values map[param.ID]int) *Preset {
	p := &Preset{
		Version: Version,
		Device:  "Moog Matriarch",
		Values:  make(map[string]int, len(values)),
	}
	for id, v := range values {
		s, ok := reg.Lookup(id)
		if !ok {
			continue
		}
		p.Values[s.Name] = v
	}
	return p
}

// Resolve maps the document's entries onto registry ids. Unknown names are
// returned separately, sorted; they are skipped and counted, never fatal.
func (p *Preset) Resolve(reg *param.Registry) (map[param.ID]int, []string) {
	values := make(map[param.ID]int, len(p.Values))
	var unknown []string
	for name, v := range p.Values {
		id, ok := reg.ByName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		values[id] = v
	}
	sort.Strings(unknown)
	return values, unknown
}

// Marshal renders the document as YAML.
func (p *Preset) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Unmarshal parses a YAML document.
func Unmarshal(data []byte) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	if p.Values == nil {
		p.Values = map[string]int{}
	}
	return &p, nil
}

// Save writes the preset to path.
func (p *Preset) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a preset from path.
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
