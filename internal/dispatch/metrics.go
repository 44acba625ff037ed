package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcomes recorded by Consumer.
const (
	outcomeDelivered = "delivered"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
	outcomeFatal     = "fatal"
)

// Metrics holds the dispatch pipeline metrics.
type Metrics struct {
	ScanRuns          *prometheus.CounterVec
	TasksEnqueued     *prometheus.CounterVec
	TasksHandled      *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	Requeued          prometheus.Counter
	HandleDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the metrics on reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ScanRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_dispatch_scan_runs_total",
			Help: "Total number of readiness scans by result",
		}, []string{"result"}),
		TasksEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_dispatch_tasks_enqueued_total",
			Help: "Total number of tasks enqueued by family",
		}, []string{"family"}),
		TasksHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_dispatch_tasks_handled_total",
			Help: "Total number of tasks handled by family and outcome",
		}, []string{"family", "outcome"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joinflow_dispatch_notifications_total",
			Help: "Total number of notification sends by template and result",
		}, []string{"template", "result"}),
		Requeued: factory.NewCounter(prometheus.CounterOpts{
			Name: "joinflow_dispatch_requeued_total",
			Help: "Total number of expired deliveries handed out again",
		}),
		HandleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "joinflow_dispatch_handle_duration_seconds",
			Help:    "Duration of task handling by family",
			Buckets: prometheus.DefBuckets,
		}, []string{"family"}),
	}
}

func (m *Metrics) observeScan(result string) {
	if m != nil {
		m.ScanRuns.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) observeEnqueued(family string) {
	if m != nil {
		m.TasksEnqueued.WithLabelValues(family).Inc()
	}
}

func (m *Metrics) observeHandled(family, outcome string, seconds float64) {
	if m != nil {
		m.TasksHandled.WithLabelValues(family, outcome).Inc()
		m.HandleDuration.WithLabelValues(family).Observe(seconds)
	}
}

func (m *Metrics) observeSend(template string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.NotificationsSent.WithLabelValues(template, result).Inc()
}

func (m *Metrics) observeRequeued(n int) {
	if m != nil && n > 0 {
		m.Requeued.Add(float64(n))
	}
}
