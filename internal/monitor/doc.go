// Package monitor is the fleet-facing query layer. Each operation resolves a
// host label through the registry, runs introspection commands over one
// remote session and returns a status-tagged result. Remote and parse
// failures never escape as errors; callers switch on the result's Status.
//
// Host metrics go through the telemetry cache. Docker listings, container
// stats, logs and lifecycle actions are always live.
package monitor
