package sim

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/nbhdsim/core/logger"
	"github.com/kilianp07/nbhdsim/core/model"
)

var (
	// ErrInvalidCount is returned when the household count is not positive or
	// exceeds the number of descriptions supplied.
	ErrInvalidCount = errors.New("invalid household count")
	// ErrInvalidID is returned for an empty neighborhood id.
	ErrInvalidID = errors.New("invalid neighborhood id")
	// ErrDuplicateEntity is returned when a household eid equals the
	// neighborhood id.
	ErrDuplicateEntity = errors.New("duplicate entity id")
	// ErrNegativeDuration is returned by Step for a negative duration.
	ErrNegativeDuration = errors.New("negative step duration")
	// ErrDurationOverflow is returned by Step when the step would end past
	// the last representable simulated time.
	ErrDurationOverflow = errors.New("step duration overflows simulated time")
	// ErrUnknownEntity is returned by Outputs for an eid it does not own.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownAttribute is returned by Outputs for an unsupported attribute.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Aggregate summarizes a neighborhood after a step.
type Aggregate struct {
	Step                 int64     `json:"step"`
	Time                 time.Time `json:"time"`
	TotalGridExchangeKWh float64   `json:"total_grid_exchange_kWh"`
	TotalExportKWh       float64   `json:"total_export_kWh"`
	TotalImportKWh       float64   `json:"total_import_kWh"`
	TotalStoredKWh       float64   `json:"total_stored_kWh"`
	TotalChargeKWh       float64   `json:"total_charge_kWh"`
	MeanSoC              float64   `json:"mean_soc"`
	EnergyBalanceKWh     float64   `json:"energy_balance_kWh"`
	GridPowerLoadMW      float64   `json:"grid_power_load_mW"`
}

// StepResult is returned by Step. Households are in collection order.
type StepResult struct {
	NeighborhoodID string            `json:"neighborhood_id"`
	Seconds        float64           `json:"seconds"`
	Households     []HouseholdOutput `json:"households"`
	Aggregate      Aggregate         `json:"aggregate"`
}

// Option customizes a Neighborhood.
type Option func(*Neighborhood)

// WithWorkers steps households on up to n goroutines. Values below 2 keep
// stepping on the calling goroutine.
func WithWorkers(n int) Option {
	return func(nb *Neighborhood) { nb.workers = n }
}

// WithLogger sets the logger used for construction warnings.
func WithLogger(l logger.Logger) Option {
	return func(nb *Neighborhood) { nb.log = logger.OrNop(l) }
}

// Neighborhood owns a fixed set of household battery simulators and the
// aggregate state built from them. It is not safe for concurrent use.
type Neighborhood struct {
	id         string
	period     model.TimePeriod
	baseline   float64
	households []HouseholdBatterySim
	index      map[string]int

	elapsed float64
	steps   int64
	balance float64
	last    Aggregate

	workers int
	log     logger.Logger
}

// InitModel builds a neighborhood of count households from the first count
// descriptions. Extra descriptions are ignored with a warning.
func InitModel(id string, period model.TimePeriod, baseline float64, descs []model.HouseholdDescription, count int, opts ...Option) (*Neighborhood, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := period.Validate(); err != nil {
		return nil, fmt.Errorf("neighborhood %s: %w", id, err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count %d must be positive", ErrInvalidCount, count)
	}
	if len(descs) < count {
		return nil, fmt.Errorf("%w: count %d but only %d descriptions", ErrInvalidCount, count, len(descs))
	}

	n := &Neighborhood{
		id:       id,
		period:   period,
		baseline: baseline,
		balance:  baseline,
		index:    make(map[string]int, count),
		log:      logger.Nop{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if len(descs) > count {
		n.log.Warnf("neighborhood %s: using %d of %d household descriptions", id, count, len(descs))
	}

	n.households = make([]HouseholdBatterySim, 0, count)
	for i, d := range descs[:count] {
		if d.EIDPrefix == "" {
			d.EIDPrefix = id + "_"
		}
		eid := d.EID(i)
		if eid == id {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, eid)
		}
		h, err := NewHouseholdBatterySim(eid, d)
		if err != nil {
			return nil, fmt.Errorf("neighborhood %s: %w", id, err)
		}
		n.index[eid] = i
		n.households = append(n.households, h)
	}
	n.last = n.aggregate(0, nil)
	n.log.Debugw("neighborhood initialized", map[string]any{
		"id": id, "households": count, "baseline_kWh": baseline, "start": period.Start,
	})
	return n, nil
}

// Step advances simulated time by duration resolution units. Each household
// is evaluated at the simulated time the step starts.
func (n *Neighborhood) Step(duration int64, inputs model.Inputs) (StepResult, error) {
	if duration < 0 {
		return StepResult{}, fmt.Errorf("%w: %d", ErrNegativeDuration, duration)
	}
	seconds := n.period.Seconds(duration)
	if n.elapsed+seconds > model.MaxElapsedSeconds {
		return StepResult{}, fmt.Errorf("%w: %d x %s after %.0fs", ErrDurationOverflow, duration, n.period.Resolution, n.elapsed)
	}
	now := n.period.At(n.elapsed)

	outs := make([]HouseholdOutput, len(n.households))
	if n.workers > 1 && len(n.households) > 1 {
		var g errgroup.Group
		g.SetLimit(n.workers)
		for i := range n.households {
			g.Go(func() error {
				outs[i] = n.households[i].Step(now, seconds, inputs)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range n.households {
			outs[i] = n.households[i].Step(now, seconds, inputs)
		}
	}

	n.elapsed += seconds
	n.steps++
	n.last = n.aggregate(seconds, outs)
	return StepResult{
		NeighborhoodID: n.id,
		Seconds:        seconds,
		Households:     outs,
		Aggregate:      n.last,
	}, nil
}

func (n *Neighborhood) aggregate(seconds float64, outs []HouseholdOutput) Aggregate {
	grid := make([]float64, len(outs))
	stored := make([]float64, len(outs))
	var export, imp float64
	for i, o := range outs {
		grid[i] = o.GridExchangeKWh
		stored[i] = o.StoredKWh
		if o.GridExchangeKWh > 0 {
			export += o.GridExchangeKWh
		} else {
			imp -= o.GridExchangeKWh
		}
	}
	charge := make([]float64, len(n.households))
	soc := make([]float64, len(n.households))
	for i := range n.households {
		h := &n.households[i]
		charge[i] = h.soc
		soc[i] = h.soc / h.desc.CapacityKWh
	}

	totalGrid := floats.Sum(grid)
	n.balance += totalGrid
	a := Aggregate{
		Step:                 n.steps,
		Time:                 n.period.At(n.elapsed),
		TotalGridExchangeKWh: totalGrid,
		TotalExportKWh:       export,
		TotalImportKWh:       imp,
		TotalStoredKWh:       floats.Sum(stored),
		TotalChargeKWh:       floats.Sum(charge),
		EnergyBalanceKWh:     n.balance,
	}
	if len(soc) > 0 {
		a.MeanSoC = stat.Mean(soc, nil)
	}
	if seconds > 0 {
		a.GridPowerLoadMW = model.KWhToMW(seconds, totalGrid)
	}
	return a
}

// Clone returns an independent copy. Stepping the copy never affects n.
func (n *Neighborhood) Clone() *Neighborhood {
	c := *n
	c.households = slices.Clone(n.households)
	c.index = maps.Clone(n.index)
	return &c
}

func (n *Neighborhood) ID() string               { return n.id }
func (n *Neighborhood) Period() model.TimePeriod { return n.period }
func (n *Neighborhood) Baseline() float64        { return n.baseline }
func (n *Neighborhood) Count() int               { return len(n.households) }
func (n *Neighborhood) Steps() int64             { return n.steps }
func (n *Neighborhood) ElapsedSeconds() float64  { return n.elapsed }
func (n *Neighborhood) Now() time.Time           { return n.period.At(n.elapsed) }
func (n *Neighborhood) LastAggregate() Aggregate { return n.last }

// EntityIDs returns household ids in collection order.
func (n *Neighborhood) EntityIDs() []string {
	ids := make([]string, len(n.households))
	for i := range n.households {
		ids[i] = n.households[i].eid
	}
	return ids
}

// Households returns the latest output of every household in collection
// order. Before the first step these carry the initial charge only.
func (n *Neighborhood) Households() []HouseholdOutput {
	outs := make([]HouseholdOutput, len(n.households))
	for i := range n.households {
		outs[i] = n.households[i].last
	}
	return outs
}
