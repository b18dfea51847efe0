// Package telemetry groups the operational observability used by Mythos
// services.
//
// Tracing is configured by internal/platform/otel. Prometheus metrics live in
// telemetry/metrics and are served on the story HTTP listener at /metrics.
//
// Story progress itself (choice history, profile deltas) is domain state and
// is persisted by the story store, not emitted as telemetry.
package telemetry
