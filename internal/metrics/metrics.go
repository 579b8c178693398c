package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every pricefeed collector. It is separate from the
// prometheus default registry so tests can import packages freely.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	UpstreamRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricefeed",
		Name:      "upstream_requests_total",
		Help:      "Outbound provider requests by host and status code",
	}, []string{"host", "code"})

	UpstreamDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricefeed",
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of outbound provider requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"host"})

	Records = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricefeed",
		Name:      "records_total",
		Help:      "Normalized price records produced by each provider",
	}, []string{"provider"})

	SkippedItems = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricefeed",
		Name:      "skipped_items_total",
		Help:      "Symbols or tickers dropped because a required field was missing",
	}, []string{"provider", "field"})

	MalformedResponses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricefeed",
		Name:      "malformed_responses_total",
		Help:      "Provider responses that could not be decoded or had a non-2xx status",
	}, []string{"provider", "kind"})

	Fetches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricefeed",
		Name:      "fetches_total",
		Help:      "Fetch calls served over HTTP by provider and outcome",
	}, []string{"provider", "outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the pricefeed registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
