// Package config loads the aggregator's settings and credentials files.
//
// Both files are YAML, live in a single config directory, and are written
// out with defaults on first run so a new install has a template to edit.
// The loaded Config is an explicit value passed to each component; there is
// no process-wide cached copy, so the control panel can rewrite the files
// and the next pipeline run picks the changes up by reloading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default file names inside the config directory.
const (
	SettingsFilename    = "settings.yaml"
	CredentialsFilename = "credentials.yaml"
)

// Global holds the settings shared by every component.
type Global struct {
	OutputDir         string `yaml:"output_dir" json:"output_dir"`
	LogDir            string `yaml:"log_dir" json:"log_dir"`
	LogLevel          string `yaml:"log_level" json:"log_level"`
	DataRetentionDays int    `yaml:"data_retention_days" json:"data_retention_days"`
	SharedDriveCSV    string `yaml:"shared_drive_csv" json:"shared_drive_csv"`
	ControlPort       int    `yaml:"control_port" json:"control_port"`
}

// Report configures one report within a report-scoped worker.
type Report struct {
	Label   string `yaml:"label" json:"label"`
	Folder  string `yaml:"folder,omitempty" json:"folder,omitempty"`
	Name    string `yaml:"name" json:"name"`
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// WorkerSettings is the per-source configuration block. Only Enabled is
// interpreted by the pipeline itself; the rest is read by the worker that
// owns the block.
type WorkerSettings struct {
	Enabled *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	BaseURL string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Reports []Report `yaml:"reports,omitempty" json:"reports,omitempty"`
}

// Config is the full settings file.
type Config struct {
	Global  Global                    `yaml:"global" json:"global"`
	Workers map[string]WorkerSettings `yaml:"workers" json:"workers"`

	// baseDir is the directory the settings file was loaded from.
	// Relative paths in the file resolve against it.
	baseDir string
}

// WorkerCredentials is one source's login pair.
type WorkerCredentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Credentials maps source name to its login pair.
type Credentials map[string]WorkerCredentials

// Default returns the settings a fresh install starts from.
func Default() Config {
	return Config{
		Global: Global{
			OutputDir:         "output",
			LogDir:            "logs",
			LogLevel:          "info",
			DataRetentionDays: 90,
			SharedDriveCSV:    "",
			ControlPort:       8580,
		},
		Workers: map[string]WorkerSettings{
			"example": {Enabled: boolPtr(false)},
		},
	}
}

// Load reads settings.yaml from dir. If the file does not exist, the
// defaults are written there first so the user has a template, then
// returned.
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, SettingsFilename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.baseDir = dir
		// Best effort: a read-only config dir still yields usable
		// in-memory defaults.
		_ = writeYAML(path, cfg)
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse settings: %w", err)
	}
	cfg.baseDir = dir
	return cfg, nil
}

// LoadCredentials reads credentials.yaml from dir, writing an empty
// template on first run.
func LoadCredentials(dir string) (Credentials, error) {
	path := filepath.Join(dir, CredentialsFilename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		creds := Credentials{"example": {}}
		_ = writeYAML(path, creds)
		return creds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

// Save writes the settings back to the directory they were loaded from.
func (c Config) Save() error {
	if c.baseDir == "" {
		return fmt.Errorf("config has no base directory")
	}
	return writeYAML(filepath.Join(c.baseDir, SettingsFilename), c)
}

// SaveCredentials writes credentials to dir.
func SaveCredentials(dir string, creds Credentials) error {
	return writeYAML(filepath.Join(dir, CredentialsFilename), creds)
}

// BaseDir returns the directory the settings were loaded from.
func (c Config) BaseDir() string { return c.baseDir }

// ResolveOutputDir returns the absolute output directory, creating it if
// needed. The database, the CSV snapshot and the data dictionary all live
// here.
func (c Config) ResolveOutputDir() (string, error) {
	return c.resolveDir(c.Global.OutputDir, "output")
}

// ResolveLogDir returns the absolute log directory, creating it if needed.
func (c Config) ResolveLogDir() (string, error) {
	return c.resolveDir(c.Global.LogDir, "logs")
}

// WorkerEnabled reports whether a source should run. Sources without a
// settings block default to enabled; only an explicit `enabled: false`
// disables one.
func (c Config) WorkerEnabled(source string) bool {
	ws, ok := c.Workers[source]
	if !ok || ws.Enabled == nil {
		return true
	}
	return *ws.Enabled
}

func (c Config) resolveDir(rel, fallback string) (string, error) {
	if rel == "" {
		rel = fallback
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.baseDir, rel)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", fallback, err)
	}
	return path, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func boolPtr(b bool) *bool { return &b }
