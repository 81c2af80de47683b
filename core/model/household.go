package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidDescription reports static household parameters that cannot be
// simulated.
var ErrInvalidDescription = errors.New("invalid household description")

// HouseholdType selects which flows of the profile a household has.
type HouseholdType string

const (
	// Consumer households only draw load.
	Consumer HouseholdType = "Consumer"
	// PV households only generate.
	PV HouseholdType = "PV"
	// Prosumer households both generate and consume.
	Prosumer HouseholdType = "Prosumer"
)

// Valid reports whether t is a known household type.
func (t HouseholdType) Valid() bool {
	return t == Consumer || t == PV || t == Prosumer
}

// ProfileKind defines the shape of the generation curve.
type ProfileKind string

const (
	ProfileConstant ProfileKind = "constant"
	ProfileSolar    ProfileKind = "solar"
)

// Profile describes the household's own generation and load. Values are
// peak powers in MW.
type Profile struct {
	Kind         ProfileKind `json:"kind" yaml:"kind"`
	GenerationMW float64     `json:"generation_mw" yaml:"generation_mw"`
	LoadMW       float64     `json:"load_mw" yaml:"load_mw"`
}

// HouseholdDescription holds the static parameters of one household. It is
// never modified once a neighborhood has been built from it.
type HouseholdDescription struct {
	Type             HouseholdType `json:"household_type" yaml:"household_type"`
	CapacityKWh      float64       `json:"battery_capacity_kwh" yaml:"battery_capacity_kwh"`
	InitialChargeKWh float64       `json:"initial_charge_kwh" yaml:"initial_charge_kwh"`
	Profile          Profile       `json:"profile" yaml:"profile"`
	EIDPrefix        string        `json:"eid_prefix,omitempty" yaml:"eid_prefix,omitempty"`
}

// Validate checks the description can back a battery simulator.
func (d HouseholdDescription) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown household type %q", ErrInvalidDescription, d.Type)
	}
	if !(d.CapacityKWh > 0) || math.IsInf(d.CapacityKWh, 0) {
		return fmt.Errorf("%w: battery capacity must be positive, got %v", ErrInvalidDescription, d.CapacityKWh)
	}
	if d.InitialChargeKWh < 0 || d.InitialChargeKWh > d.CapacityKWh {
		return fmt.Errorf("%w: initial charge %v outside [0, %v]", ErrInvalidDescription, d.InitialChargeKWh, d.CapacityKWh)
	}
	for name, v := range map[string]float64{"generation": d.Profile.GenerationMW, "load": d.Profile.LoadMW} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite non-negative power, got %v", ErrInvalidDescription, name, v)
		}
	}
	switch d.Profile.Kind {
	case "", ProfileConstant, ProfileSolar:
	default:
		return fmt.Errorf("%w: unknown profile kind %q", ErrInvalidDescription, d.Profile.Kind)
	}
	return nil
}

// EID returns the entity id of the household at the given position.
func (d HouseholdDescription) EID(index int) string {
	return fmt.Sprintf("%s%s_%d", d.EIDPrefix, d.Type, index)
}

// PowerMW returns generation and load at simulated time t.
func (d HouseholdDescription) PowerMW(t time.Time) (generation, load float64) {
	if d.Type != Consumer {
		generation = d.Profile.GenerationMW
		if d.Profile.Kind == ProfileSolar {
			generation *= solarShape(t)
		}
	}
	if d.Type != PV {
		load = d.Profile.LoadMW
	}
	return generation, load
}

// solarShape is a half sine between 05:00 and 21:00.
func solarShape(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	if hour < 5 || hour > 21 {
		return 0
	}
	return math.Max(0, math.Sin((hour-5)/16*math.Pi))
}
