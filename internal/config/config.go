// Package config loads the optional TOML configuration. Every field has
// a default, so a missing file (or any missing key) is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const FileName = "config.toml"

type Config struct {
	// DBDriver and DBDSN select the store backend. Only the sqlite
	// driver is linked into the binary.
	DBDriver string `toml:"db_driver"`
	DBDSN    string `toml:"db_dsn"`

	// SpawnIDInt stores spawn ids as big integers instead of strings.
	SpawnIDInt bool `toml:"spawn_id_int"`

	// Stage2 lists the stage-2 evolution pokemon ids of interest.
	Stage2 []int `toml:"stage2"`

	// ReportSince floors every reporting query that honors it. RFC 3339;
	// empty disables the floor.
	ReportSince string `toml:"report_since"`

	// AnomalyLog is the append-only file receiving double-spawn lines.
	AnomalyLog string `toml:"anomaly_log"`
}

// Default returns the configuration used when no file exists.
func Default(dataDir string) *Config {
	return &Config{
		DBDriver:   "sqlite",
		AnomalyLog: filepath.Join(dataDir, "double_spawns.txt"),
	}
}

func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load reads dataDir/config.toml, falling back to defaults for a missing
// file and for any field left unset.
func Load(dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	data, err := os.ReadFile(Path(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.AnomalyLog == "" {
		cfg.AnomalyLog = filepath.Join(dataDir, "double_spawns.txt")
	}
	return cfg, nil
}

// Save writes the configuration to dataDir/config.toml.
func (c *Config) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(Path(dataDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SinceUnix parses ReportSince into a unix timestamp; zero means the
// floor is disabled.
func (c *Config) SinceUnix() (int64, error) {
	if c.ReportSince == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, c.ReportSince)
	if err != nil {
		return 0, fmt.Errorf("invalid report_since %q: %w", c.ReportSince, err)
	}
	return t.Unix(), nil
}
