// Package metrics exposes the Prometheus metrics of a run. Metrics are
// defined next to the code that records them (readwise, ratelimit,
// canonical, output) and registered with the default registry via promauto.
//
// A run is a short-lived batch job, so instead of serving /metrics the CLI
// writes the registry to a file for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer written by WriteTextfile.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

var lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "readwise_last_run_timestamp_seconds",
	Help: "Unix time the last run finished",
})

func init() {
	Registry.MustRegister(lastRunTimestamp)
}

// WriteTextfile stamps the run completion time and writes all gathered
// metrics to path in the text exposition format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	lastRunTimestamp.SetToCurrentTime()

	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// List API Metrics (pkg/readwise):
//   - readwise_requests_total{status} (Counter): List requests by HTTP status
//   - readwise_request_duration_seconds (Histogram): List request duration
//   - readwise_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - readwise_rate_limit_wait_seconds{kind} (Histogram): Time waited for a request slot (local, shared)
//
// Canonicalization Metrics (pkg/canonical):
//   - readwise_probes_total{result} (Counter): HEAD probes (redirected, unchanged, failed)
//
// Output Metrics (pkg/output):
//   - readwise_renders_total{result} (Counter): Renderer runs (ok, failed)
//   - readwise_render_duration_seconds (Histogram): Renderer run time
//
// Run Metrics (pkg/metrics):
//   - readwise_last_run_timestamp_seconds (Gauge): Completion time of the last run
//
// Example Prometheus Queries:
//
//   # Runs that stopped producing files
//   time() - readwise_last_run_timestamp_seconds > 86400
//
//   # Share of articles whose URL could not be probed
//   readwise_probes_total{result="failed"} / ignoring(result) sum(readwise_probes_total)
