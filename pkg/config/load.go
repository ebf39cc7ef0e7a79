package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound indicates the configuration file does not exist.
var ErrConfigNotFound = fmt.Errorf("configuration file not found: %w", fs.ErrNotExist)

// Load reads the configuration file at path over the defaults and validates
// the result. When optional is true a missing file yields the defaults.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && optional:
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", path, ErrConfigNotFound)
	default:
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML from r into cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	return nil
}

// Overrides carries command-line values that take precedence over the file.
// Nil fields are left alone.
type Overrides struct {
	WorkDir     *string
	Identifiers *string
	Jobs        *int
	LogLevel    *string
	JSON        *bool
	NoCleanup   *bool
}

// Apply writes the set overrides into cfg and revalidates it.
func (o Overrides) Apply(cfg *Config) error {
	if o.WorkDir != nil {
		cfg.WorkDir = *o.WorkDir
	}
	if o.Identifiers != nil {
		cfg.Identifiers = *o.Identifiers
	}
	if o.Jobs != nil {
		cfg.Jobs = *o.Jobs
	}
	if o.LogLevel != nil {
		cfg.Telemetry.Logging.Level = *o.LogLevel
	}
	if o.JSON != nil && *o.JSON {
		cfg.Telemetry.Logging.Format = "json"
	}
	if o.NoCleanup != nil && *o.NoCleanup {
		cfg.Cleanup = false
	}
	return cfg.Validate()
}
