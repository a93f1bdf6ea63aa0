package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"matriarchctl/engine"
)

// MIDIConfig stores the port and addressing settings
type MIDIConfig struct {
	InputPort  string `json:"inputPort,omitempty"`
	OutputPort string `json:"outputPort,omitempty"`
	Unit       uint8  `json:"unit"`    // SysEx unit id, 0-15
	Channel    uint8  `json:"channel"` // CC channel, 0-15
}

// SyncConfig stores the query handshake tuning
type SyncConfig struct {
	QueryTimeoutMS int `json:"queryTimeoutMs,omitempty"`
	QueryDelayMS   int `json:"queryDelayMs,omitempty"`
	MaxAttempts    int `json:"maxAttempts,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	MIDI  MIDIConfig `json:"midi"`
	Sync  SyncConfig `json:"sync"`
	Debug bool       `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			QueryTimeoutMS: 3000,
			QueryDelayMS:   400,
			MaxAttempts:    3,
		},
	}
}

// Engine converts the file settings into an engine configuration
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Unit:         c.MIDI.Unit,
		Channel:      c.MIDI.Channel,
		QueryTimeout: time.Duration(c.Sync.QueryTimeoutMS) * time.Millisecond,
		QueryDelay:   time.Duration(c.Sync.QueryDelayMS) * time.Millisecond,
		MaxAttempts:  c.Sync.MaxAttempts,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "matriarchctl"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
