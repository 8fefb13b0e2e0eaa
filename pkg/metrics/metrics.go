package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PipelineRuns    *prometheus.CounterVec
	Ranking         *prometheus.CounterVec
	ExtractionPages *prometheus.CounterVec
	DiscoveredURLs  prometheus.Histogram
	JobAttempts     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bizintel",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		Ranking: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bizintel",
			Name:      "ranking_total",
			Help:      "URL ranking calls by scoring path (ai or fallback).",
		}, []string{"path"}),
		ExtractionPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bizintel",
			Name:      "extraction_pages_total",
			Help:      "Page extractions by result.",
		}, []string{"result"}),
		DiscoveredURLs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bizintel",
			Name:      "discovered_urls",
			Help:      "Number of URLs discovered per site.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 40, 50},
		}),
		JobAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bizintel",
			Name:      "job_attempts_total",
			Help:      "Background job attempts by status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.PipelineRuns, m.Ranking, m.ExtractionPages, m.DiscoveredURLs, m.JobAttempts)
	}
	return m
}

func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RankingPath(path string) {
	if m == nil {
		return
	}
	m.Ranking.WithLabelValues(path).Inc()
}

func (m *Metrics) ExtractionResults(ok, failed int) {
	if m == nil {
		return
	}
	m.ExtractionPages.WithLabelValues("success").Add(float64(ok))
	m.ExtractionPages.WithLabelValues("failure").Add(float64(failed))
}

func (m *Metrics) Discovered(n int) {
	if m == nil {
		return
	}
	m.DiscoveredURLs.Observe(float64(n))
}

func (m *Metrics) JobAttempt(status string) {
	if m == nil {
		return
	}
	m.JobAttempts.WithLabelValues(status).Inc()
}
