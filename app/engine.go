package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/nbhdsim/config"
	"github.com/kilianp07/nbhdsim/core/events"
	"github.com/kilianp07/nbhdsim/core/logger"
	"github.com/kilianp07/nbhdsim/core/model"
	"github.com/kilianp07/nbhdsim/core/sim"
	"github.com/kilianp07/nbhdsim/internal/eventbus"
)

// Engine serializes access to a neighborhood and publishes every step on the
// bus. It satisfies the MQTT participant's Stepper.
type Engine struct {
	mu    sync.Mutex
	nb    *sim.Neighborhood
	bus   *eventbus.TypedBus[events.StepEvent]
	runID string
	log   logger.Logger
}

// NewEngine wraps nb. A nil bus disables publishing.
func NewEngine(nb *sim.Neighborhood, bus *eventbus.TypedBus[events.StepEvent], log logger.Logger) *Engine {
	return &Engine{nb: nb, bus: bus, runID: uuid.NewString(), log: logger.OrNop(log)}
}

// BuildNeighborhood loads or draws household descriptions and initializes
// the neighborhood described by cfg.
func BuildNeighborhood(cfg config.SimulationConfig, log logger.Logger, now time.Time) (*sim.Neighborhood, error) {
	descs, err := Descriptions(cfg)
	if err != nil {
		return nil, err
	}
	nb, err := sim.InitModel(cfg.NeighborhoodID, cfg.Period(now), cfg.BaselineKWh, descs, cfg.Households,
		sim.WithWorkers(cfg.Workers), sim.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("init neighborhood: %w", err)
	}
	return nb, nil
}

// Descriptions returns the descriptions named by cfg: the households file
// when set, otherwise Households random descriptions drawn from Seed.
func Descriptions(cfg config.SimulationConfig) ([]model.HouseholdDescription, error) {
	if cfg.HouseholdsFile != "" {
		descs, err := model.LoadDescriptions(cfg.HouseholdsFile)
		if err != nil {
			return nil, fmt.Errorf("households file: %w", err)
		}
		return descs, nil
	}
	return model.RandomDescriptions(rand.New(rand.NewSource(cfg.Seed)), cfg.Households), nil
}

// RunID identifies this engine's results in records and metrics.
func (e *Engine) RunID() string { return e.runID }

// Step advances the neighborhood by duration units of the configured
// resolution.
func (e *Engine) Step(ctx context.Context, duration int64, inputs model.Inputs) (sim.StepResult, error) {
	if err := ctx.Err(); err != nil {
		return sim.StepResult{}, err
	}
	e.mu.Lock()
	start := time.Now()
	res, err := e.nb.Step(duration, inputs)
	elapsed := time.Since(start)
	e.mu.Unlock()
	if err != nil {
		return sim.StepResult{}, err
	}
	e.log.Debugw("step", map[string]any{
		"step":     res.Aggregate.Step,
		"duration": duration,
		"grid_kwh": res.Aggregate.TotalGridExchangeKWh,
		"elapsed":  elapsed.String(),
	})
	if e.bus != nil {
		e.bus.Publish(events.StepEvent{
			RunID:     e.runID,
			Duration:  duration,
			Result:    res,
			Elapsed:   elapsed,
			Timestamp: time.Now(),
		})
	}
	return res, nil
}

// Run steps steps times with a fixed duration and no inputs.
func (e *Engine) Run(ctx context.Context, duration int64, steps int) ([]sim.StepResult, error) {
	results := make([]sim.StepResult, 0, steps)
	for i := 0; i < steps; i++ {
		res, err := e.Step(ctx, duration, nil)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Outputs reads the requested attributes under the engine lock.
func (e *Engine) Outputs(req map[string][]string) (map[string]map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Outputs(req)
}

// Meta describes the neighborhood and its entities.
func (e *Engine) Meta() sim.Meta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Meta()
}

// Snapshot copies the latest household outputs and aggregate.
func (e *Engine) Snapshot() sim.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Snapshot()
}
