// Package config provides configuration loading for the plume simulator.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/plume/concentration"
	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
	"github.com/pthm-cable/plume/wind"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// Config holds all simulation configuration parameters.
type Config struct {
	Region        geom.Rect            `yaml:"region"`
	Wind          wind.Config          `yaml:"wind"`
	Plume         plume.Config         `yaml:"plume"`
	Concentration concentration.Config `yaml:"concentration"`
	Grid          GridConfig           `yaml:"grid"`
	Probes        []geom.Point         `yaml:"probes"`
	Run           RunConfig            `yaml:"run"`
	Telemetry     TelemetryConfig      `yaml:"telemetry"`
}

// GridConfig is the concentration grid written with each snapshot.
type GridConfig struct {
	NX int     `yaml:"nx"`
	NY int     `yaml:"ny"`
	Z  float64 `yaml:"z"` // slice height
}

// RunConfig holds stepping parameters.
type RunConfig struct {
	DT    float64 `yaml:"dt"` // seconds
	Steps int     `yaml:"steps"`
	Seed  uint64  `yaml:"seed"`
}

// TelemetryConfig holds output cadence settings. Intervals are in steps; zero
// disables the output.
type TelemetryConfig struct {
	StatsEvery          int `yaml:"stats_every"`
	SnapshotEvery       int `yaml:"snapshot_every"`
	PerfCollectorWindow int `yaml:"perf_collector_window"`
}

// Load loads configuration from a YAML file, merging with embedded defaults,
// and validates the result. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded default configuration.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// merge overlays a YAML document; only fields present in data change.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func (c *Config) merge(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var schema = jsonschema.MustCompileString("plume-config.json", schemaJSON)

// Validate checks the document against the embedded JSON schema, then runs
// each component's own checks.
func (c *Config) Validate() error {
	doc, err := c.document()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := c.Region.Validate(); err != nil {
		return fmt.Errorf("region: %w", err)
	}
	if err := c.Wind.Validate(); err != nil {
		return fmt.Errorf("wind: %w", err)
	}
	if err := c.Wind.Noise.Validate(); err != nil {
		return fmt.Errorf("wind.noise: %w", err)
	}
	if err := c.Plume.Validate(c.Region); err != nil {
		return fmt.Errorf("plume: %w", err)
	}
	if err := c.Concentration.Validate(); err != nil {
		return fmt.Errorf("concentration: %w", err)
	}
	return nil
}

// document converts the config to the generic JSON value the schema
// validator expects, using the YAML field names.
func (c *Config) document() (any, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("re-reading config: %w", err)
	}
	js, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("converting config to json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding config json: %w", err)
	}
	return doc, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
