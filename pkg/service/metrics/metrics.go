package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

const namespace = "riskmatrix"

// Recorder keeps risk register metrics on a private registry
type Recorder struct {
	registry *prometheus.Registry

	assessed  *prometheus.CounterVec
	scores    prometheus.Histogram
	requests  *prometheus.CounterVec
	exportRow prometheus.Counter
}

var _ interfaces.RiskListener = &Recorder{}

// New creates a recorder with Go runtime and process collectors registered
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		assessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risks_assessed_total",
			Help:      "Number of risks assessed, by level.",
		}, []string{"level"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of assessed risk scores.",
			Buckets:   []float64{5, 12, 18, 25},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route pattern and status code.",
		}, []string{"route", "code"}),
		exportRow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_rows_total",
			Help:      "Rows written to CSV exports.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.assessed,
		r.scores,
		r.requests,
		r.exportRow,
	)

	// one series per level, present before the first assessment
	for _, level := range types.AllRiskLevels() {
		r.assessed.WithLabelValues(level.String())
	}

	return r
}

// OnRiskAssessed counts the risk under its level
func (r *Recorder) OnRiskAssessed(ctx context.Context, risk *model.Risk) {
	if risk == nil {
		return
	}
	r.assessed.WithLabelValues(risk.Level.String()).Inc()
	r.scores.Observe(float64(risk.Score))
}

// ObserveRequest counts one served HTTP request
func (r *Recorder) ObserveRequest(route string, code int) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveExport counts exported rows
func (r *Recorder) ObserveExport(rows int) {
	r.exportRow.Add(float64(rows))
}

// Handler serves the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
