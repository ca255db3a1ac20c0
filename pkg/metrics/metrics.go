// Package metrics provides the Prometheus registry and the HTTP endpoint
// exposing cc-export metrics. All metrics are defined in their respective
// packages (client, ratelimit, export) to maintain modularity and avoid
// circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by cc-export.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry served on /metrics.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ccexport_requests_total{kind, status} (Counter): Upstream requests by kind (json, stream) and HTTP status
//   - ccexport_request_duration_seconds{kind} (Histogram): Request duration by kind
//   - ccexport_fetch_errors_total{class} (Counter): Fetch errors by class (client, server, rate_limit, network)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ccexport_rate_limit_waits_total (Counter): Requests delayed by the pacing limiter
//   - ccexport_rate_limit_wait_seconds (Histogram): Time spent waiting for the limiter
//
// Traversal Metrics (pkg/export):
//   - ccexport_pages_fetched_total{variant} (Counter): Listing pages fetched
//   - ccexport_artifacts_total{variant, outcome} (Counter): Item outcomes; outcome is
//     "written" or a failure reason (fetch_failed, no_content_source, render_failed,
//     write_failed, invalid_record)
//
// Example Prometheus Queries:
//
//   # Item failure ratio
//   sum(rate(ccexport_artifacts_total{outcome!="written"}[5m])) /
//   sum(rate(ccexport_artifacts_total[5m]))
//
//   # Upstream throttling
//   rate(ccexport_fetch_errors_total{class="rate_limit"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ccexport_request_duration_seconds_bucket[5m]))
