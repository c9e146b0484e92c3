// Package metrics defines the Prometheus metrics exported by the
// catalog engine: HTTP, catalog database, import pipeline, and
// thumbnail cache instrumentation.
package metrics
