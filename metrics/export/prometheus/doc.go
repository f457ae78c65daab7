// Package prometheus renders engine metrics in the Prometheus text
// exposition format, without depending on a client library.
//
// [Exporter.Handler] serves a scrape endpoint; [Exporter.Render] produces
// the exposition text directly. Both pull a fresh snapshot per call and
// never mutate engine state.
package prometheus
