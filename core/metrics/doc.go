// Package metrics defines interfaces for recording simulation steps. Sinks
// like PromSink and InfluxSink live in infra/metrics and register themselves
// here by type name; they can be combined with NewMultiSink. The factory
// helpers return a MultiSink automatically when multiple sinks are
// configured.
package metrics
