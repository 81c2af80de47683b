package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/nbhdsim/api/households"
	"github.com/kilianp07/nbhdsim/config"
	"github.com/kilianp07/nbhdsim/core/events"
	coremetrics "github.com/kilianp07/nbhdsim/core/metrics"
	coremon "github.com/kilianp07/nbhdsim/core/monitoring"
	"github.com/kilianp07/nbhdsim/core/record"
	"github.com/kilianp07/nbhdsim/infra/logger"
	"github.com/kilianp07/nbhdsim/infra/metrics"
	"github.com/kilianp07/nbhdsim/infra/monitoring"
	"github.com/kilianp07/nbhdsim/infra/mqtt"
	"github.com/kilianp07/nbhdsim/internal/eventbus"
)

// Service wires the engine to its transports and result sinks.
type Service struct {
	Engine *Engine
	Sink   coremetrics.MetricsSink
	Store  record.Store

	cfg     *config.Config
	bus     *eventbus.TypedBus[events.StepEvent]
	mon     coremon.Monitor
	log     logger.Logger
	part    *mqtt.Participant
	stopped <-chan struct{}
}

// New creates a Service from the configuration. Nothing is started until Run
// or Collect is called.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := record.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	nb, err := BuildNeighborhood(cfg.Simulation, logger.New("neighborhood"), time.Now())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if r, ok := sink.(coremetrics.HouseholdCountRecorder); ok {
		if err := r.RecordHouseholdCount(nb.ID(), nb.Count()); err != nil {
			logg.Warnf("record household count: %v", err)
		}
	}
	bus := eventbus.NewTyped[events.StepEvent]()
	svc := &Service{
		Engine: NewEngine(nb, bus, logger.New("engine")),
		Sink:   sink,
		Store:  store,
		cfg:    cfg,
		bus:    bus,
		mon:    mon,
		log:    logg,
	}
	logg.Infof("neighborhood %s ready with %d households, run %s", nb.ID(), nb.Count(), svc.Engine.RunID())
	return svc, nil
}

// Collect starts forwarding step events to the sink and the store. The
// subscription holds a whole offline run so no step is dropped.
func (s *Service) Collect(ctx context.Context) {
	if s.stopped != nil {
		return
	}
	s.stopped = metrics.StepCollector{
		Sink:    s.Sink,
		Store:   s.Store,
		Log:     logger.New("collector"),
		Monitor: s.mon,
		Buffer:  max(64, s.cfg.Simulation.Steps),
	}.Start(ctx, s.bus)
}

// Run serves the MQTT participant, the HTTP API and the Prometheus endpoint
// that are configured and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer s.mon.Recover()
	s.Collect(ctx)
	if s.cfg.MQTT.Broker != "" {
		p, err := mqtt.NewParticipant(s.cfg.MQTT, s.Engine,
			mqtt.WithLogger(logger.New("mqtt")),
			mqtt.WithMonitor(s.mon),
			mqtt.WithRequestRecorder(requestRecorder(s.Sink)),
		)
		if err != nil {
			return fmt.Errorf("mqtt participant: %w", err)
		}
		s.part = p
	} else {
		s.log.Warnf("no MQTT broker configured, participant disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		g.Go(func() error {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.mon.CaptureException(err, map[string]string{"module": "prometheus"})
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}
	if addr := s.cfg.API.Addr; addr != "" {
		g.Go(func() error {
			return serveAPI(ctx, addr, households.NewRouter(s.Engine, s.cfg.API.AllowedOrigins))
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

func serveAPI(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func requestRecorder(sink coremetrics.MetricsSink) coremetrics.RequestRecorder {
	if r, ok := sink.(coremetrics.RequestRecorder); ok {
		return r
	}
	return coremetrics.NopSink{}
}

// Close disconnects the participant, waits for the collector to drain and
// releases the sink and the store.
func (s *Service) Close() error {
	if s.part != nil {
		s.part.Close()
	}
	s.bus.Close()
	if s.stopped != nil {
		<-s.stopped
	}
	if c, ok := s.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.mon.Flush(2 * time.Second)
	return s.Store.Close()
}
