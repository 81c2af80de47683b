// Package infra holds the adapters that connect the simulation core to the
// outside world: the MQTT participant, Prometheus and InfluxDB sinks, Sentry
// and zerolog. Core packages never import infra.
package infra
