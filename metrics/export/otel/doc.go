// Package otel binds the engine's flow counters to OpenTelemetry.
//
// [NewExporter] registers one Int64ObservableCounter per engine metric
// plus one for dropped audit events. A single callback reads
// [sessiongate.Engine.MetricsSnapshot] on each collection cycle, so the
// engine's hot paths never touch OTel instruments directly.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
