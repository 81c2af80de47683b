package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/nbhdsim/core/model"
)

// SimulationConfig describes the neighborhood to build.
type SimulationConfig struct {
	NeighborhoodID string `json:"neighborhood_id"`
	// Households is the number of households to simulate.
	Households int `json:"households"`
	// HouseholdsFile holds descriptions; when empty they are drawn from Seed.
	HouseholdsFile string        `json:"households_file"`
	Seed           int64         `json:"seed"`
	BaselineKWh    float64       `json:"baseline_kwh"`
	Resolution     time.Duration `json:"resolution"`
	// Start is RFC 3339. Empty means the last period boundary before now.
	Start   string `json:"start"`
	Workers int    `json:"workers"`
	// StepDuration (in resolution units) and Steps drive offline runs.
	StepDuration int64 `json:"step_duration"`
	Steps        int   `json:"steps"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.NeighborhoodID == "" {
		c.NeighborhoodID = "nbhd01"
	}
	if c.Households == 0 {
		c.Households = 10
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.Resolution == 0 {
		c.Resolution = model.DefaultResolution
	}
	if c.StepDuration == 0 {
		c.StepDuration = 15
	}
	if c.Steps == 0 {
		c.Steps = 96
	}
}

// Validate checks mandatory fields.
func (c SimulationConfig) Validate() error {
	if c.NeighborhoodID == "" {
		return errors.New("neighborhood_id is required")
	}
	if c.Households <= 0 {
		return fmt.Errorf("households must be positive, got %d", c.Households)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %s", c.Resolution)
	}
	if c.StepDuration < 0 || c.Steps < 0 {
		return errors.New("step_duration and steps must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.startTime(); err != nil {
		return err
	}
	return nil
}

func (c SimulationConfig) startTime() (time.Time, error) {
	if c.Start == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("start: %w", err)
	}
	return t.UTC(), nil
}

// Period resolves the configured start against now.
func (c SimulationConfig) Period(now time.Time) model.TimePeriod {
	start, err := c.startTime()
	if err != nil || start.IsZero() {
		return model.LastPeriod(c.Resolution, now)
	}
	return model.TimePeriod{Start: start, Resolution: c.Resolution}
}
