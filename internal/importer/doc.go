// Package importer is the concurrent import pipeline: it fans a batch
// of file paths out to a bounded worker pool, runs metadata extraction,
// catalog insertion, and thumbnail warming per file, and reports
// monotonic progress with a structured per-file outcome. One bad file
// never aborts a batch; only catalog storage failure does.
package importer
