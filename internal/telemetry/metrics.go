package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	RequestsAccepted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_generation_requests_total", Help: "Generation requests accepted"})
	JobsCreated          = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_jobs_created_total", Help: "Video jobs created"})
	JobsSucceeded        = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_jobs_succeeded_total", Help: "Video jobs finished successfully"})
	JobsFailed           = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_jobs_failed_total", Help: "Video jobs that failed"})
	UpstreamPolls        = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_upstream_polls_total", Help: "Status queries sent upstream"})
	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_notification_drops_total", Help: "Push connections dropped after a failed write"})
	SessionsEvicted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_sessions_evicted_total", Help: "Sessions removed by the janitor"})
	JobsEvicted          = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_jobs_evicted_total", Help: "Job records removed by the janitor"})
	UploadsAccepted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "vidrelay_uploads_accepted_total", Help: "Uploaded reference images accepted"})
	JobsInFlight         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "vidrelay_jobs_inflight", Help: "Job goroutines currently running"})
	PushConnections      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "vidrelay_push_connections", Help: "Open push connections"})
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsAccepted,
			JobsCreated,
			JobsSucceeded,
			JobsFailed,
			UpstreamPolls,
			NotificationsDropped,
			SessionsEvicted,
			JobsEvicted,
			UploadsAccepted,
			JobsInFlight,
			PushConnections,
		)
	})
}

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
