package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/nbhdsim/core/metrics"
	"github.com/kilianp07/nbhdsim/infra/logger"
)

// InfluxSink writes neighborhood steps to an InfluxDB instance using the
// official client. Points carry the simulated time, not the wall time.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	// PerHousehold also writes one point per household.
	PerHousehold bool
}

// InfluxConfig holds connection settings.
type InfluxConfig struct {
	URL          string `json:"url"`
	Token        string `json:"token"`
	Org          string `json:"org"`
	Bucket       string `json:"bucket"`
	PerHousehold bool   `json:"per_household"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:       client,
		writeAPI:     client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:          logger.New("influx-sink"),
		PerHousehold: cfg.PerHousehold,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordStep writes the aggregate, and optionally each household, as line
// protocol points.
func (s *InfluxSink) RecordStep(st coremetrics.StepSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := []*write.Point{aggregatePoint(st)}
	if s.PerHousehold {
		for _, h := range st.Households {
			points = append(points, write.NewPointWithMeasurement("household_step").
				AddTag("neighborhood", st.NeighborhoodID).
				AddTag("household", h.EID).
				AddTag("household_type", string(h.Type)).
				AddField("charge_kwh", round3(h.SoCKWh)).
				AddField("grid_exchange_kwh", round3(h.GridExchangeKWh)).
				AddField("stored_kwh", round3(h.StoredKWh)).
				AddField("demand_met", h.EnergyDemandMet).
				SetTime(st.Aggregate.Time))
		}
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func aggregatePoint(st coremetrics.StepSample) *write.Point {
	a := st.Aggregate
	p := write.NewPointWithMeasurement("neighborhood_step").
		AddTag("neighborhood", st.NeighborhoodID)
	if st.RunID != "" {
		p = p.AddTag("run_id", st.RunID)
	}
	return p.AddField("step", a.Step).
		AddField("grid_exchange_kwh", round3(a.TotalGridExchangeKWh)).
		AddField("stored_kwh", round3(a.TotalStoredKWh)).
		AddField("charge_kwh", round3(a.TotalChargeKWh)).
		AddField("mean_soc", round3(a.MeanSoC)).
		AddField("energy_balance_kwh", round3(a.EnergyBalanceKWh)).
		SetTime(a.Time)
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
