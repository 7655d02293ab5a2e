package visionworker

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ocr_in_flight_requests",
		Help: "Number of currently pending and processed requests.",
	})
	counter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_api_requests_total",
			Help: "A counter for requests to the wrapped handler.",
		},
		[]string{"code", "method"},
	)

	// duration is partitioned by the HTTP method and handler. It uses custom
	// buckets based on the expected request duration.
	duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_request_duration_seconds",
			Help:    "A histogram of latencies for requests.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"handler", "method"},
	)

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_cache_hits_total",
		Help: "Number of recognition results served from the cache.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_cache_misses_total",
		Help: "Number of cache lookups that required fresh recognition.",
	})

	pagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_pages_processed_total",
			Help: "Number of processed document pages, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	pageDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocr_page_duration_seconds",
		Help:    "A histogram of per-page render and recognition latencies.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
)

var registerMetricsOnce sync.Once

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(inFlightGauge, counter, duration,
			cacheHits, cacheMisses, pagesProcessed, pageDuration)
	})
}

// InstrumentToolHandler wraps a tool handler to provide prometheus metrics
// under the given handler label.
func InstrumentToolHandler(name string, handler http.Handler) http.Handler {
	registerMetrics()

	toolChain := promhttp.InstrumentHandlerInFlight(inFlightGauge,
		promhttp.InstrumentHandlerDuration(duration.MustCurryWith(prometheus.Labels{"handler": name}),
			promhttp.InstrumentHandlerCounter(counter, handler),
		),
	)
	return toolChain
}
