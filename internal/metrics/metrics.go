package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AutosaveWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mocktest_autosave_writes_total",
			Help: "Snapshot writes to the local store by outcome",
		},
		[]string{"outcome"},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mocktest_submissions_total",
			Help: "Test submissions by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	Expiries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mocktest_timer_expiries_total",
			Help: "Sessions locked because the countdown ran out",
		},
	)

	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mocktest_remote_request_duration_seconds",
			Help:    "Duration of calls to the remote test API",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(AutosaveWrites, Submissions, Expiries, RemoteLatency)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
