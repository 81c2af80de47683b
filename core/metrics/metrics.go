package metrics

import (
	"time"

	"github.com/kilianp07/nbhdsim/core/sim"
)

// StepSample is one neighborhood step to be recorded.
type StepSample struct {
	RunID          string
	NeighborhoodID string
	Seconds        float64
	Aggregate      sim.Aggregate
	Households     []sim.HouseholdOutput
	// Latency is the wall time spent computing the step.
	Latency time.Duration
}

// MetricsSink records simulation steps for observability purposes.
type MetricsSink interface {
	RecordStep(s StepSample) error
}

// HouseholdCountRecorder records the size of a neighborhood when it is built.
type HouseholdCountRecorder interface {
	RecordHouseholdCount(neighborhoodID string, n int) error
}

// RequestRecorder records co-simulation requests handled by a participant.
type RequestRecorder interface {
	RecordRequest(kind string, ok bool) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordStep(StepSample) error            { return nil }
func (NopSink) RecordHouseholdCount(string, int) error { return nil }
func (NopSink) RecordRequest(string, bool) error       { return nil }
