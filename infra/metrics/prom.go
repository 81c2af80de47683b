package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/nbhdsim/core/metrics"
)

// PromSink records neighborhood steps in Prometheus metrics.
type PromSink struct {
	steps      *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	grid       *prometheus.GaugeVec
	balance    *prometheus.GaugeVec
	charge     *prometheus.GaugeVec
	meanSoC    *prometheus.GaugeVec
	household  *prometheus.GaugeVec
	households *prometheus.GaugeVec
	requests   *prometheus.CounterVec
}

// NewPromSink registers step metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	nb := []string{"neighborhood"}
	s := &PromSink{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbhd_steps_total",
			Help: "Total number of neighborhood steps",
		}, nb),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nbhd_step_duration_seconds",
			Help:    "Wall time spent computing a step",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, nb),
		grid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbhd_grid_exchange_kwh",
			Help: "Net grid exchange of the last step, positive is export",
		}, nb),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbhd_energy_balance_kwh",
			Help: "Baseline plus cumulative grid exchange",
		}, nb),
		charge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbhd_total_charge_kwh",
			Help: "Energy stored in all household batteries",
		}, nb),
		meanSoC: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbhd_mean_soc_ratio",
			Help: "Mean battery state of charge as a fraction of capacity",
		}, nb),
		household: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbhd_household_charge_kwh",
			Help: "Battery charge per household",
		}, []string{"neighborhood", "household", "household_type"}),
		households: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbhd_households",
			Help: "Number of households in the neighborhood",
		}, nb),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbhd_participant_requests_total",
			Help: "Co-simulation requests handled",
		}, []string{"kind", "ok"}),
	}

	var err error
	if s.steps, err = register(reg, s.steps); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.grid, err = register(reg, s.grid); err != nil {
		return nil, err
	}
	if s.balance, err = register(reg, s.balance); err != nil {
		return nil, err
	}
	if s.charge, err = register(reg, s.charge); err != nil {
		return nil, err
	}
	if s.meanSoC, err = register(reg, s.meanSoC); err != nil {
		return nil, err
	}
	if s.household, err = register(reg, s.household); err != nil {
		return nil, err
	}
	if s.households, err = register(reg, s.households); err != nil {
		return nil, err
	}
	if s.requests, err = register(reg, s.requests); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordStep updates counters and gauges from the step sample.
func (s *PromSink) RecordStep(st coremetrics.StepSample) error {
	id := st.NeighborhoodID
	a := st.Aggregate
	s.steps.WithLabelValues(id).Inc()
	s.latency.WithLabelValues(id).Observe(st.Latency.Seconds())
	s.grid.WithLabelValues(id).Set(a.TotalGridExchangeKWh)
	s.balance.WithLabelValues(id).Set(a.EnergyBalanceKWh)
	s.charge.WithLabelValues(id).Set(a.TotalChargeKWh)
	s.meanSoC.WithLabelValues(id).Set(a.MeanSoC)
	for _, h := range st.Households {
		s.household.WithLabelValues(id, h.EID, string(h.Type)).Set(h.SoCKWh)
	}
	return nil
}

// RecordHouseholdCount sets the household gauge.
func (s *PromSink) RecordHouseholdCount(id string, n int) error {
	s.households.WithLabelValues(id).Set(float64(n))
	return nil
}

// RecordRequest counts a participant request.
func (s *PromSink) RecordRequest(kind string, ok bool) error {
	s.requests.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
	return nil
}
