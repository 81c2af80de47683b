package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/nbhdsim/config"
	coremon "github.com/kilianp07/nbhdsim/core/monitoring"
)

// Option adjusts the Sentry client options before the client is built.
type Option func(*sentry.ClientOptions)

// NewSentryMonitor builds a Sentry client for the provided configuration and
// returns a Monitor bound to its own hub. An empty DSN yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig, opts ...Option) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	co := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	}
	for _, o := range opts {
		o(&co)
	}
	client, err := sentry.NewClient(co)
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		s.hub.CaptureException(err)
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
