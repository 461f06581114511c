// Package metrics records build counters and durations.
//
// Components receive a Recorder and default to NoopRecorder, so metrics are
// optional everywhere:
//
//	rec := metrics.NewPrometheusRecorder(prom.NewRegistry())
//	b := build.New(cfg, build.WithRecorder(rec))
//
// A one-shot build has nothing to scrape, so the Prometheus registry is
// flushed to a node_exporter textfile with WriteTextfile at the end of a run.
package metrics
