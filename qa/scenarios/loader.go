package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/nbhdsim/core/model"
)

// StepDef is one or more identical steps.
type StepDef struct {
	Duration int64        `yaml:"duration"`
	Repeat   int          `yaml:"repeat,omitempty"`
	Inputs   model.Inputs `yaml:"inputs,omitempty"`
}

type Expected struct {
	Steps            int64              `yaml:"steps"`
	EnergyBalanceKWh *float64           `yaml:"energy_balance_kwh,omitempty"`
	ChargeKWh        map[string]float64 `yaml:"charge_kwh,omitempty"`
	GridExchangeKWh  map[string]float64 `yaml:"grid_exchange_kwh,omitempty"`
	Tolerance        float64            `yaml:"tolerance,omitempty"`
}

type Scenario struct {
	Name           string                       `yaml:"name"`
	Description    string                       `yaml:"description,omitempty"`
	NeighborhoodID string                       `yaml:"neighborhood_id"`
	BaselineKWh    float64                      `yaml:"baseline_kwh"`
	Start          time.Time                    `yaml:"start"`
	Resolution     time.Duration                `yaml:"resolution"`
	Households     []model.HouseholdDescription `yaml:"households"`
	Count          int                          `yaml:"count,omitempty"`
	Steps          []StepDef                    `yaml:"steps"`
	Expected       Expected                     `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Count == 0 {
		sc.Count = len(sc.Households)
	}
	return &sc, nil
}
