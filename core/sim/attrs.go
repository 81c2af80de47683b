package sim

import (
	"fmt"
	"sort"
)

// Household output attributes readable through Outputs.
const (
	AttrGenerationMW    = "p_mw_pv"
	AttrLoadMW          = "p_mw_load"
	AttrEnergyDeltaKWh  = "energy_delta_kWh"
	AttrStoredKWh       = "stored_kWh"
	AttrGridExchangeKWh = "grid_exchange_kWh"
	AttrSoCKWh          = "current_charge_kWh"
	AttrCapacityKWh     = "battery_capacity_kWh"
	AttrTimeStepDeltaMW = "time_step_delta_mW"
	AttrExportMW        = "export_to_public_grid_mW"
	AttrImportMW        = "import_from_public_grid_mW"
	AttrFeedInMW        = "feed_in_to_home_mW"
	AttrEnergyDemandMet = "energy_demand_met"
	AttrHouseholdType   = "household_type"
)

// Neighborhood aggregate attributes, read with the neighborhood id as eid.
const (
	AttrTotalGridExchangeKWh = "total_grid_exchange_kWh"
	AttrTotalExportKWh       = "total_export_kWh"
	AttrTotalImportKWh       = "total_import_kWh"
	AttrTotalStoredKWh       = "total_stored_kWh"
	AttrTotalChargeKWh       = "total_charge_kWh"
	AttrMeanSoC              = "mean_soc"
	AttrEnergyBalanceKWh     = "energy_balance_kWh"
	AttrGridPowerLoadMW      = "grid_power_load_mW"
	AttrStep                 = "step"
	AttrTime                 = "time"
)

func householdAttr(h *HouseholdBatterySim, attr string) (any, bool) {
	o := h.last
	switch attr {
	case AttrGenerationMW:
		return o.GenerationMW, true
	case AttrLoadMW:
		return o.LoadMW, true
	case AttrEnergyDeltaKWh:
		return o.EnergyDeltaKWh, true
	case AttrStoredKWh:
		return o.StoredKWh, true
	case AttrGridExchangeKWh:
		return o.GridExchangeKWh, true
	case AttrSoCKWh:
		return h.soc, true
	case AttrCapacityKWh:
		return h.desc.CapacityKWh, true
	case AttrTimeStepDeltaMW:
		return o.TimeStepDeltaMW, true
	case AttrExportMW:
		return o.ExportMW, true
	case AttrImportMW:
		return o.ImportMW, true
	case AttrFeedInMW:
		return o.FeedInMW, true
	case AttrEnergyDemandMet:
		return o.EnergyDemandMet, true
	case AttrHouseholdType:
		return string(h.desc.Type), true
	}
	return nil, false
}

func aggregateAttr(a Aggregate, attr string) (any, bool) {
	switch attr {
	case AttrTotalGridExchangeKWh:
		return a.TotalGridExchangeKWh, true
	case AttrTotalExportKWh:
		return a.TotalExportKWh, true
	case AttrTotalImportKWh:
		return a.TotalImportKWh, true
	case AttrTotalStoredKWh:
		return a.TotalStoredKWh, true
	case AttrTotalChargeKWh:
		return a.TotalChargeKWh, true
	case AttrMeanSoC:
		return a.MeanSoC, true
	case AttrEnergyBalanceKWh:
		return a.EnergyBalanceKWh, true
	case AttrGridPowerLoadMW:
		return a.GridPowerLoadMW, true
	case AttrStep:
		return a.Step, true
	case AttrTime:
		return a.Time, true
	}
	return nil, false
}

// HouseholdAttrs lists every attribute a household entity exposes.
func HouseholdAttrs() []string {
	return []string{
		AttrGenerationMW, AttrLoadMW, AttrEnergyDeltaKWh, AttrStoredKWh,
		AttrGridExchangeKWh, AttrSoCKWh, AttrCapacityKWh, AttrTimeStepDeltaMW,
		AttrExportMW, AttrImportMW, AttrFeedInMW, AttrEnergyDemandMet, AttrHouseholdType,
	}
}

// NeighborhoodAttrs lists every attribute of the neighborhood entity.
func NeighborhoodAttrs() []string {
	return []string{
		AttrTotalGridExchangeKWh, AttrTotalExportKWh, AttrTotalImportKWh,
		AttrTotalStoredKWh, AttrTotalChargeKWh, AttrMeanSoC, AttrEnergyBalanceKWh,
		AttrGridPowerLoadMW, AttrStep, AttrTime,
	}
}

// Outputs answers a read request of attributes per entity id. The neighborhood
// id addresses the aggregate. Unknown entities or attributes are reported as
// ErrUnknownEntity or ErrUnknownAttribute.
func (n *Neighborhood) Outputs(req map[string][]string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(req))
	eids := make([]string, 0, len(req))
	for eid := range req {
		eids = append(eids, eid)
	}
	sort.Strings(eids)
	for _, eid := range eids {
		attrs := req[eid]
		vals := make(map[string]any, len(attrs))
		if eid == n.id {
			for _, a := range attrs {
				v, ok := aggregateAttr(n.last, a)
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, eid, a)
				}
				vals[a] = v
			}
			out[eid] = vals
			continue
		}
		idx, ok := n.index[eid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, eid)
		}
		h := &n.households[idx]
		for _, a := range attrs {
			v, ok := householdAttr(h, a)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, eid, a)
			}
			vals[a] = v
		}
		out[eid] = vals
	}
	return out, nil
}
