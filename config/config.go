package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/nbhdsim/core/factory"
	"github.com/kilianp07/nbhdsim/core/metrics"
	"github.com/kilianp07/nbhdsim/infra/mqtt"
)

// EnvPrefix marks environment variables that override file settings.
// Nested keys are separated by a double underscore, for example
// NBHD_SIMULATION__HOUSEHOLDS=40.
const EnvPrefix = "NBHD_"

type Config struct {
	Simulation SimulationConfig     `json:"simulation"`
	MQTT       mqtt.Config          `json:"mqtt"`
	Metrics    metrics.Config       `json:"metrics"`
	Store      factory.ModuleConfig `json:"store"`
	Logging    LoggingConfig        `json:"logging"`
	Sentry     SentryConfig         `json:"sentry"`
	API        APIConfig            `json:"api"`
	Export     ExportConfig         `json:"export"`
}

// Load reads a YAML or JSON file, applies environment overrides, fills
// defaults and validates every section. An empty path loads defaults and the
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
	c.Export.SetDefaults()
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "nbhdsim"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "nbhdsim-" + c.Simulation.NeighborhoodID
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Sentry.Validate(); err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos %d out of range", c.MQTT.QoS)
	}
	return nil
}
