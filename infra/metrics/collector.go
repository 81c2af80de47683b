package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/nbhdsim/core/events"
	"github.com/kilianp07/nbhdsim/core/logger"
	coremetrics "github.com/kilianp07/nbhdsim/core/metrics"
	"github.com/kilianp07/nbhdsim/core/monitoring"
	"github.com/kilianp07/nbhdsim/core/record"
	"github.com/kilianp07/nbhdsim/internal/eventbus"
)

// StepCollector forwards step events to a metrics sink and a record store.
type StepCollector struct {
	Sink    coremetrics.MetricsSink
	Store   record.Store
	Log     logger.Logger
	Monitor monitoring.Monitor
	// Buffer is the subscription capacity; zero uses 64.
	Buffer int
}

// Start subscribes to the bus and records every step until ctx is canceled
// or the bus is closed. The returned channel is closed once the collector
// has stopped, after draining events already buffered.
func (c StepCollector) Start(ctx context.Context, bus *eventbus.TypedBus[events.StepEvent]) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil {
		close(done)
		return done
	}
	if c.Sink == nil {
		c.Sink = coremetrics.NopSink{}
	}
	if c.Store == nil {
		c.Store = record.NopStore{}
	}
	c.Log = logger.OrNop(c.Log)
	c.Monitor = monitoring.OrNop(c.Monitor)
	buf := c.Buffer
	if buf <= 0 {
		buf = 64
	}
	sub := bus.SubscribeBuffered(buf)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				c.drain(sub)
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				c.handle(ev)
			}
		}
	}()
	return done
}

func (c StepCollector) drain(sub <-chan events.StepEvent) {
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			c.handle(ev)
		default:
			return
		}
	}
}

func (c StepCollector) handle(ev events.StepEvent) {
	tags := map[string]string{"neighborhood": ev.Result.NeighborhoodID, "run_id": ev.RunID}
	sample := coremetrics.StepSample{
		RunID:          ev.RunID,
		NeighborhoodID: ev.Result.NeighborhoodID,
		Seconds:        ev.Result.Seconds,
		Aggregate:      ev.Result.Aggregate,
		Households:     ev.Result.Households,
		Latency:        ev.Elapsed,
	}
	if err := c.Sink.RecordStep(sample); err != nil {
		c.Log.Warnf("record step metrics: %v", err)
		c.Monitor.CaptureException(err, tags)
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Store.Append(ctx, record.FromStep(ev.RunID, ev.Result, ts)); err != nil {
		c.Log.Errorf("append step record: %v", err)
		c.Monitor.CaptureException(err, tags)
	}
}
