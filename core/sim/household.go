package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/nbhdsim/core/model"
)

// HouseholdOutput is what one household reports after a step. Energies are
// in kWh and flows in MW. Positive grid exchange is export.
type HouseholdOutput struct {
	EID             string              `json:"eid"`
	Type            model.HouseholdType `json:"household_type"`
	GenerationMW    float64             `json:"p_mw_pv"`
	LoadMW          float64             `json:"p_mw_load"`
	EnergyDeltaKWh  float64             `json:"energy_delta_kWh"`
	StoredKWh       float64             `json:"stored_kWh"`
	GridExchangeKWh float64             `json:"grid_exchange_kWh"`
	SoCKWh          float64             `json:"current_charge_kWh"`
	TimeStepDeltaMW float64             `json:"time_step_delta_mW"`
	ExportMW        float64             `json:"export_to_public_grid_mW"`
	ImportMW        float64             `json:"import_from_public_grid_mW"`
	FeedInMW        float64             `json:"feed_in_to_home_mW"`
	EnergyDemandMet bool                `json:"energy_demand_met"`
}

// HouseholdBatterySim holds the mutable state of a single household. It has
// no pointers so a plain value copy is independent of the original.
type HouseholdBatterySim struct {
	eid  string
	desc model.HouseholdDescription
	soc  float64
	last HouseholdOutput
}

// NewHouseholdBatterySim validates desc and starts the battery at its
// initial charge.
func NewHouseholdBatterySim(eid string, desc model.HouseholdDescription) (HouseholdBatterySim, error) {
	if err := desc.Validate(); err != nil {
		return HouseholdBatterySim{}, fmt.Errorf("household %s: %w", eid, err)
	}
	h := HouseholdBatterySim{eid: eid, desc: desc, soc: desc.InitialChargeKWh}
	h.last = HouseholdOutput{EID: eid, Type: desc.Type, SoCKWh: h.soc, EnergyDemandMet: true}
	return h, nil
}

// EID returns the household's entity id.
func (h *HouseholdBatterySim) EID() string { return h.eid }

// Description returns the static parameters the household was built from.
func (h *HouseholdBatterySim) Description() model.HouseholdDescription { return h.desc }

// SoCKWh returns the current battery charge in kWh.
func (h *HouseholdBatterySim) SoCKWh() float64 { return h.soc }

// CapacityKWh returns the battery capacity in kWh.
func (h *HouseholdBatterySim) CapacityKWh() float64 { return h.desc.CapacityKWh }

// Last returns the output of the most recent step.
func (h *HouseholdBatterySim) Last() HouseholdOutput { return h.last }

// Step applies one time step of the given length at simulated time now.
// Inputs override the profile attribute by attribute.
func (h *HouseholdBatterySim) Step(now time.Time, seconds float64, in model.Inputs) HouseholdOutput {
	gen, load := h.desc.PowerMW(now)
	if v, ok := in.Lookup(h.eid, model.AttrGenerationMW); ok {
		gen = v
	}
	if v, ok := in.Lookup(h.eid, model.AttrLoadMW); ok {
		load = v
	}
	net := gen - load
	if v, ok := in.Lookup(h.eid, model.AttrNetMW); ok {
		net = v
	}

	prev := h.soc
	delta := model.MWToKWh(net, seconds)
	next := clamp(prev+delta, 0, h.desc.CapacityKWh)
	stored := next - prev
	grid := delta - stored

	out := HouseholdOutput{
		EID:             h.eid,
		Type:            h.desc.Type,
		GenerationMW:    gen,
		LoadMW:          load,
		EnergyDeltaKWh:  delta,
		StoredKWh:       stored,
		GridExchangeKWh: grid,
		SoCKWh:          next,
		EnergyDemandMet: delta > 0 || math.Abs(delta) <= prev,
	}
	if seconds > 0 {
		out.TimeStepDeltaMW = model.KWhToMW(seconds, stored)
		switch {
		case grid > 0:
			out.ExportMW = model.KWhToMW(seconds, grid)
		case grid < 0:
			out.ImportMW = model.KWhToMW(seconds, -grid)
		}
		if stored < 0 {
			out.FeedInMW = model.KWhToMW(seconds, -stored)
		}
	}

	h.soc = next
	h.last = out
	return out
}

// clamp keeps NaN as NaN so degenerate inputs stay visible.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
