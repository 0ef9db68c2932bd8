// Package metrics holds the Prometheus collectors shared by the binaries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricSearchRequestsTotal     = "search_requests_total"
	MetricSearchDuration          = "search_duration_seconds"
	MetricIngestListingsTotal     = "ingest_listings_total"
	MetricLearningTermsAddedTotal = "learning_terms_added_total"
	MetricCandidatesQueuedTotal   = "learning_candidates_queued_total"
)

// Ingest outcomes.
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// StageError labels searches that failed before reaching a stage.
const StageError = "error"

// Metrics is safe for concurrent use.
type Metrics struct {
	searchRequests   *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	ingestListings   *prometheus.CounterVec
	learningAdded    *prometheus.CounterVec
	candidatesQueued prometheus.Counter
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		searchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchRequestsTotal,
				Help: "Searches served, by terminal stage",
			},
			[]string{"stage"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Search latency in seconds, by terminal stage",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"stage"},
		),
		ingestListings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricIngestListingsTotal,
				Help: "Ingested listings, by outcome",
			},
			[]string{"outcome"},
		),
		learningAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLearningTermsAddedTotal,
				Help: "Modern phrases learned from feedback, by trigger",
			},
			[]string{"trigger"},
		),
		candidatesQueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCandidatesQueuedTotal,
				Help: "Unknown terms newly queued for review",
			},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.searchRequests,
		m.searchDuration,
		m.ingestListings,
		m.learningAdded,
		m.candidatesQueued,
	}
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(stage string, elapsed time.Duration, err error) {
	if err != nil || stage == "" {
		stage = StageError
	}
	m.searchRequests.WithLabelValues(stage).Inc()
	m.searchDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// IncIngest counts one listing outcome.
func (m *Metrics) IncIngest(outcome string) {
	m.ingestListings.WithLabelValues(outcome).Inc()
}

// ObserveLearned adds the phrases a feedback event learned.
func (m *Metrics) ObserveLearned(trigger string, added int) {
	c := m.learningAdded.WithLabelValues(trigger)
	if added > 0 {
		c.Add(float64(added))
	}
}

// AddCandidates counts newly queued candidate terms.
func (m *Metrics) AddCandidates(n int) {
	if n > 0 {
		m.candidatesQueued.Add(float64(n))
	}
}
