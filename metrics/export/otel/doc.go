// Package otel bridges engine metrics to OpenTelemetry instruments.
//
// [NewExporter] registers observable counters for each engine counter and
// observable gauges per histogram bucket. A single registered callback
// pulls one snapshot per collection cycle. Callers own the MeterProvider;
// this package only consumes a Meter.
package otel
