package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide HTTP, user and join request metrics.
type Metrics struct {
	HTTPRequests           *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	UsersRegistered        prometheus.Counter
	UsersApproved          prometheus.Counter
	JoinRequestsCreated    *prometheus.CounterVec
	JoinRequestTransitions *prometheus.CounterVec
}

// New creates and registers the metrics on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_http_requests_total",
			Help: "Total number of HTTP requests by route pattern and status class",
		}, []string{"route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "joinflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "joinflow_users_registered_total",
			Help: "Total number of users registered",
		}),
		UsersApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "joinflow_users_approved_total",
			Help: "Total number of users approved",
		}),
		JoinRequestsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_join_requests_created_total",
			Help: "Total number of join requests created by kind",
		}, []string{"kind"}),
		JoinRequestTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_join_request_transitions_total",
			Help: "Total number of processed join requests by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route, status string, start time.Time) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// IncrementUsersRegistered increments the registered users counter by 1.
func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

// IncrementUsersApproved increments the approved users counter by 1.
func (m *Metrics) IncrementUsersApproved() {
	m.UsersApproved.Inc()
}

func (m *Metrics) IncrementJoinRequestsCreated(kind string) {
	m.JoinRequestsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementJoinRequestTransitions(kind, outcome string) {
	m.JoinRequestTransitions.WithLabelValues(kind, outcome).Inc()
}
