// Package otel mirrors engine counters into OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter.
// The Authenticate latency histogram becomes a cumulative gauge with an "le"
// attribute per bound plus a _count gauge. A single callback reads
// [pmscanauth.Engine.MetricsSnapshot] per collection cycle. Callers own the
// MeterProvider.
package otel
