package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/nbhdsim/core/model"
)

var noon = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func prosumer(capacity, initial, gen, load float64) model.HouseholdDescription {
	return model.HouseholdDescription{
		Type:             model.Prosumer,
		CapacityKWh:      capacity,
		InitialChargeKWh: initial,
		Profile:          model.Profile{Kind: model.ProfileConstant, GenerationMW: gen, LoadMW: load},
	}
}

func TestHouseholdRejectsInvalidDescription(t *testing.T) {
	_, err := NewHouseholdBatterySim("h", prosumer(0, 0, 0, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidDescription))

	_, err = NewHouseholdBatterySim("h", prosumer(10, 12, 0, 0))
	assert.ErrorIs(t, err, model.ErrInvalidDescription)
}

func TestHouseholdChargesWithinCapacity(t *testing.T) {
	h, err := NewHouseholdBatterySim("h", prosumer(10, 5, 0.004, 0.001))
	require.NoError(t, err)

	// 3 kW net for 30 minutes is 1.5 kWh.
	out := h.Step(noon, 1800, nil)
	assert.InDelta(t, 1.5, out.EnergyDeltaKWh, 1e-12)
	assert.InDelta(t, 1.5, out.StoredKWh, 1e-12)
	assert.InDelta(t, 0, out.GridExchangeKWh, 1e-12)
	assert.InDelta(t, 6.5, h.SoCKWh(), 1e-12)
	assert.True(t, out.EnergyDemandMet)
	assert.InDelta(t, 0.003, out.TimeStepDeltaMW, 1e-12)
	assert.Equal(t, 0.0, out.ExportMW)
}

func TestHouseholdSpillsToGridWhenFull(t *testing.T) {
	h, err := NewHouseholdBatterySim("h", prosumer(10, 9.5, 0.004, 0))
	require.NoError(t, err)

	out := h.Step(noon, 3600, nil)
	assert.Equal(t, 10.0, h.SoCKWh())
	assert.InDelta(t, 0.5, out.StoredKWh, 1e-12)
	assert.InDelta(t, 3.5, out.GridExchangeKWh, 1e-12)
	assert.InDelta(t, 0.0035, out.ExportMW, 1e-12)
	assert.InDelta(t, out.EnergyDeltaKWh, out.StoredKWh+out.GridExchangeKWh, 1e-12)
	// Only the 0.5 kWh that reached the battery counts as the step flow.
	assert.InDelta(t, 0.0005, out.TimeStepDeltaMW, 1e-12)
}

func TestHouseholdImportsWhenEmpty(t *testing.T) {
	h, err := NewHouseholdBatterySim("h", prosumer(10, 1, 0, 0.002))
	require.NoError(t, err)

	out := h.Step(noon, 3600, nil)
	assert.Equal(t, 0.0, h.SoCKWh())
	assert.InDelta(t, -1, out.StoredKWh, 1e-12)
	assert.InDelta(t, -1, out.GridExchangeKWh, 1e-12)
	assert.InDelta(t, 0.001, out.ImportMW, 1e-12)
	assert.InDelta(t, 0.001, out.FeedInMW, 1e-12)
	assert.InDelta(t, -0.001, out.TimeStepDeltaMW, 1e-12)
	assert.False(t, out.EnergyDemandMet)
}

func TestHouseholdInputOverrides(t *testing.T) {
	h, err := NewHouseholdBatterySim("h", prosumer(10, 5, 0.004, 0.001))
	require.NoError(t, err)

	out := h.Step(noon, 3600, model.Inputs{"h": {model.AttrLoadMW: 0.004}})
	assert.Equal(t, 0.004, out.LoadMW)
	assert.Equal(t, 0.0, out.EnergyDeltaKWh)

	out = h.Step(noon, 3600, model.Inputs{"h": {model.AttrNetMW: -0.002}})
	assert.InDelta(t, -2, out.EnergyDeltaKWh, 1e-12)
	assert.InDelta(t, 3, h.SoCKWh(), 1e-12)

	// Inputs for other households are ignored.
	out = h.Step(noon, 3600, model.Inputs{"other": {model.AttrNetMW: 1}})
	assert.InDelta(t, 3, out.EnergyDeltaKWh, 1e-12)
}

func TestHouseholdZeroDurationIsIdle(t *testing.T) {
	h, err := NewHouseholdBatterySim("h", prosumer(10, 5, 0.004, 0.001))
	require.NoError(t, err)
	out := h.Step(noon, 0, nil)
	assert.Equal(t, 0.0, out.EnergyDeltaKWh)
	assert.Equal(t, 5.0, h.SoCKWh())
	assert.Equal(t, 0.0, out.TimeStepDeltaMW)
}

func TestHouseholdNaNPropagates(t *testing.T) {
	h, err := NewHouseholdBatterySim("h", prosumer(10, 5, 0, 0))
	require.NoError(t, err)
	out := h.Step(noon, 60, model.Inputs{"h": {model.AttrNetMW: math.NaN()}})
	assert.True(t, math.IsNaN(out.EnergyDeltaKWh))
	assert.True(t, math.IsNaN(h.SoCKWh()))
}
