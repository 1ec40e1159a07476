package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the dashboard service.
// ⭐ SSOT: 메트릭 정의는 여기서만
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	cacheRequests *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchFailures *prometheus.CounterVec
	pipelineRuns  *prometheus.CounterVec
	alertLevels   *prometheus.GaugeVec
	wsClients     prometheus.Gauge
	jobRuns       *prometheus.CounterVec
}

// New registers all collectors on reg
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "findash",
			Subsystem: "series_cache",
			Name:      "requests_total",
			Help:      "Series cache lookups by result (hit, shared_hit, miss).",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "findash",
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of a full multi-symbol fetch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "findash",
			Subsystem: "fetch",
			Name:      "symbol_failures_total",
			Help:      "Symbols that could not be fetched.",
		}, []string{"symbol"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "findash",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome (ok, degraded, halted).",
		}, []string{"outcome"}),
		alertLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "findash",
			Subsystem: "alerts",
			Name:      "active",
			Help:      "1 for the current severity of each monitored subject.",
		}, []string{"subject", "severity"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "findash",
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Connected alert stream clients.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "findash",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and outcome (success, failure, skipped).",
		}, []string{"job", "outcome"}),
	}

	reg.MustRegister(m.cacheRequests, m.fetchDuration, m.fetchFailures, m.pipelineRuns, m.alertLevels, m.wsClients, m.jobRuns)
	return m
}

// NewDefault registers on the process-wide Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) SymbolFailed(symbol string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(symbol).Inc()
}

func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

// SetAlert marks severity as the only active level of subject
func (m *Metrics) SetAlert(subject, severity string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == severity {
			v = 1
		}
		m.alertLevels.WithLabelValues(subject, s).Set(v)
	}
}

func (m *Metrics) ClientsConnected(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) JobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}
