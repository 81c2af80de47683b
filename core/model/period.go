package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPeriod is returned for a time period without a positive resolution.
var ErrInvalidPeriod = errors.New("invalid time period")

// DefaultResolution is used when no step resolution is configured.
const DefaultResolution = time.Minute

// MaxElapsedSeconds is the largest offset from Start that At can represent.
// One second of headroom keeps the nanosecond conversion inside int64.
var MaxElapsedSeconds = time.Duration(math.MaxInt64).Seconds() - 1

// TimePeriod anchors simulated time and defines the unit in which step
// durations are expressed.
type TimePeriod struct {
	Start      time.Time     `json:"start" yaml:"start"`
	Resolution time.Duration `json:"resolution" yaml:"resolution"`
}

// LastPeriod returns the most recent period boundary at or before now.
func LastPeriod(resolution time.Duration, now time.Time) TimePeriod {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return TimePeriod{Start: now.UTC().Truncate(resolution), Resolution: resolution}
}

// Validate checks the resolution is usable.
func (p TimePeriod) Validate() error {
	if p.Resolution <= 0 {
		return fmt.Errorf("%w: resolution %s", ErrInvalidPeriod, p.Resolution)
	}
	return nil
}

// Seconds converts a step duration given in resolution units into seconds.
func (p TimePeriod) Seconds(duration int64) float64 {
	return float64(duration) * p.Resolution.Seconds()
}

// At returns the simulated wall time after elapsed seconds. Offsets beyond
// MaxElapsedSeconds are not representable.
func (p TimePeriod) At(elapsed float64) time.Time {
	return p.Start.Add(time.Duration(elapsed * float64(time.Second)))
}
