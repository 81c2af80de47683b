package scenarios

import (
	"errors"
	"fmt"
	"math"

	coremetrics "github.com/kilianp07/nbhdsim/core/metrics"
	"github.com/kilianp07/nbhdsim/core/model"
	"github.com/kilianp07/nbhdsim/core/sim"
)

// Outcome is the state of the neighborhood after a scenario.
type Outcome struct {
	Results  []sim.StepResult
	Snapshot sim.Snapshot
}

// Run builds the scenario neighborhood and plays every step, recording each
// one on sink when it is non-nil.
func Run(sc *Scenario, sink coremetrics.MetricsSink) (*Outcome, error) {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	period := model.TimePeriod{Start: sc.Start, Resolution: sc.Resolution}
	nb, err := sim.InitModel(sc.NeighborhoodID, period, sc.BaselineKWh, sc.Households, sc.Count)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	out := &Outcome{}
	for i, def := range sc.Steps {
		repeat := max(def.Repeat, 1)
		for r := 0; r < repeat; r++ {
			res, err := nb.Step(def.Duration, def.Inputs)
			if err != nil {
				return nil, fmt.Errorf("scenario %s step %d: %w", sc.Name, i, err)
			}
			if err := sink.RecordStep(coremetrics.StepSample{
				RunID:          sc.Name,
				NeighborhoodID: res.NeighborhoodID,
				Seconds:        res.Seconds,
				Aggregate:      res.Aggregate,
				Households:     res.Households,
			}); err != nil {
				return nil, err
			}
			out.Results = append(out.Results, res)
		}
	}
	out.Snapshot = nb.Snapshot()
	return out, nil
}

// Check compares the outcome with the expectations and joins every mismatch.
func (e Expected) Check(o *Outcome) error {
	tol := e.Tolerance
	if tol == 0 {
		tol = 1e-9
	}
	var errs []error
	if e.Steps != 0 && o.Snapshot.Steps != e.Steps {
		errs = append(errs, fmt.Errorf("steps: got %d want %d", o.Snapshot.Steps, e.Steps))
	}
	if e.EnergyBalanceKWh != nil {
		if got := o.Snapshot.Aggregate.EnergyBalanceKWh; !within(got, *e.EnergyBalanceKWh, tol) {
			errs = append(errs, fmt.Errorf("energy balance: got %v want %v", got, *e.EnergyBalanceKWh))
		}
	}
	byEID := make(map[string]sim.HouseholdOutput, len(o.Snapshot.Households))
	for _, h := range o.Snapshot.Households {
		byEID[h.EID] = h
	}
	for eid, want := range e.ChargeKWh {
		h, ok := byEID[eid]
		if !ok {
			errs = append(errs, fmt.Errorf("charge: unknown household %s", eid))
			continue
		}
		if !within(h.SoCKWh, want, tol) {
			errs = append(errs, fmt.Errorf("charge %s: got %v want %v", eid, h.SoCKWh, want))
		}
	}
	for eid, want := range e.GridExchangeKWh {
		h, ok := byEID[eid]
		if !ok {
			errs = append(errs, fmt.Errorf("grid exchange: unknown household %s", eid))
			continue
		}
		if !within(h.GridExchangeKWh, want, tol) {
			errs = append(errs, fmt.Errorf("grid exchange %s: got %v want %v", eid, h.GridExchangeKWh, want))
		}
	}
	return errors.Join(errs...)
}

// within is false for NaN on either side.
func within(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}
