package events

import (
	"time"

	"github.com/kilianp07/nbhdsim/core/sim"
)

// StepEvent is published after every successful neighborhood step.
type StepEvent struct {
	RunID     string
	Duration  int64
	Result    sim.StepResult
	Elapsed   time.Duration
	Timestamp time.Time
}

// Households returns the number of households in the step.
func (e StepEvent) Households() int { return len(e.Result.Households) }
