package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "farm_assistant"

// Metrics holds the Prometheus collectors shared by the service components.
type Metrics struct {
	// Assistant run polling.
	RunPolls       prometheus.Counter
	RunOutcomes    *prometheus.CounterVec // labels: outcome={completed,failed,cancelled,expired,no_content,unprocessable,timed_out,aborted}
	RunWaitSeconds prometheus.Histogram

	// Geocoding.
	GeocodeRequests *prometheus.CounterVec // labels: provider, outcome={success,not_found,error}
	GeocodeCache    *prometheus.CounterVec // labels: layer={memory,redis}, result={hit,miss}

	// Weather observations.
	WeatherFallbacks prometheus.Histogram
	WeatherOutcomes  *prometheus.CounterVec // labels: outcome={success,unavailable}

	// Pest bulletins.
	PestRefreshes *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunPolls,
		m.RunOutcomes,
		m.RunWaitSeconds,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.WeatherFallbacks,
		m.WeatherOutcomes,
		m.PestRefreshes,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_polls_total",
			Help:      "Total run status queries issued while waiting for assistant runs.",
		}),
		RunOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Assistant run waits by final outcome.",
		}, []string{"outcome"}),
		RunWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_wait_duration_seconds",
			Help:      "Time spent waiting for an assistant run to reach a terminal state.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		WeatherFallbacks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_base_time_attempts",
			Help:      "Number of hourly base times tried per observation lookup.",
			Buckets:   []float64{1, 2, 3},
		}),
		WeatherOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_lookups_total",
			Help:      "Observation lookups by outcome.",
		}, []string{"outcome"}),
		PestRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pest_bulletin_refreshes_total",
			Help:      "Pest bulletin scrapes by outcome.",
		}, []string{"outcome"}),
	}
}
