package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `simulation:
  neighborhood_id: "nb7"
  households: 20
  seed: 42
  baseline_kwh: 100
  resolution: "1m"
  start: "2024-06-01T00:00:00Z"
  workers: 4
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  topic_prefix: "cosim"
  qos: 1
metrics:
  prometheus_port: ":9100"
  sinks:
    - type: "nop"
store:
  type: "sqlite"
  conf:
    path: "steps.db"
logging:
  level: "debug"
api:
  addr: ":8080"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"neighborhood_id", cfg.Simulation.NeighborhoodID, "nb7"},
		{"households", cfg.Simulation.Households, 20},
		{"seed", cfg.Simulation.Seed, int64(42)},
		{"baseline", cfg.Simulation.BaselineKWh, 100.0},
		{"resolution", cfg.Simulation.Resolution, time.Minute},
		{"workers", cfg.Simulation.Workers, 4},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "cosim"},
		{"qos", cfg.MQTT.QoS, byte(1)},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prometheus_port", cfg.Metrics.PrometheusPort, ":9100"},
		{"store", cfg.Store.Type, "sqlite"},
		{"store.path", cfg.Store.Conf["path"], "steps.db"},
		{"level", cfg.Logging.Level, "debug"},
		{"api", cfg.API.Addr, ":8080"},
		{"steps default", cfg.Simulation.Steps, 96},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	p := cfg.Simulation.Period(time.Now())
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), p.Start)
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"simulation":{"households":5},"logging":{"level":"info"}}`)
	t.Setenv("NBHD_SIMULATION__HOUSEHOLDS", "12")
	t.Setenv("NBHD_LOGGING__LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Simulation.Households)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "nbhdsim", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "nbhdsim-nbhd01", cfg.MQTT.ClientID)
	assert.Equal(t, []string{"*"}, cfg.API.AllowedOrigins)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Simulation.Households)
	assert.Equal(t, time.Minute, cfg.Simulation.Resolution)
	assert.Equal(t, []string{"csv", "json", "html"}, cfg.Export.Formats)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"negative households": "simulation:\n  households: -1\n",
		"bad level":           "logging:\n  level: loud\n",
		"bad start":           "simulation:\n  start: yesterday\n",
		"bad format":          "export:\n  formats: [xlsx]\n",
		"bad sample rate":     "sentry:\n  traces_sample_rate: 2\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "c.yaml", data))
			assert.Error(t, err)
		})
	}
	_, err := Load(writeConfig(t, "c.toml", ""))
	assert.Error(t, err)
}
