// Package record persists the outcome of neighborhood steps so runs can be
// inspected and exported afterwards. Records are never read back into a
// simulation.
package record

import (
	"context"
	"time"

	"github.com/kilianp07/nbhdsim/core/sim"
)

// Record captures one neighborhood step.
type Record struct {
	RunID          string                `json:"run_id"`
	NeighborhoodID string                `json:"neighborhood_id"`
	Step           int64                 `json:"step"`
	SimTime        time.Time             `json:"sim_time"`
	Seconds        float64               `json:"seconds"`
	Aggregate      sim.Aggregate         `json:"aggregate"`
	Households     []sim.HouseholdOutput `json:"households"`
	RecordedAt     time.Time             `json:"recorded_at"`
}

// FromStep builds a Record from a step result.
func FromStep(runID string, res sim.StepResult, at time.Time) Record {
	return Record{
		RunID:          runID,
		NeighborhoodID: res.NeighborhoodID,
		Step:           res.Aggregate.Step,
		SimTime:        res.Aggregate.Time,
		Seconds:        res.Seconds,
		Aggregate:      res.Aggregate,
		Households:     res.Households,
		RecordedAt:     at,
	}
}

// Query filters records. Zero values disable a filter.
type Query struct {
	RunID          string
	NeighborhoodID string
	FromStep       int64
	ToStep         int64
	Start          time.Time
	End            time.Time
	Limit          int
}

// Match reports whether r satisfies the filters other than Limit.
func (q Query) Match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.NeighborhoodID != "" && r.NeighborhoodID != q.NeighborhoodID {
		return false
	}
	if q.FromStep > 0 && r.Step < q.FromStep {
		return false
	}
	if q.ToStep > 0 && r.Step > q.ToStep {
		return false
	}
	if !q.Start.IsZero() && r.SimTime.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.SimTime.After(q.End) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
