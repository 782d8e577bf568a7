package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billboards_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// eligibility query latency per placement area
	QueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billboards_query_duration_seconds",
			Help:    "Duration of filtered billboard queries",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
		[]string{"area"},
	)

	// candidates considered per placement area
	CandidateCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_candidates_total",
			Help: "Total candidate billboards evaluated",
		},
		[]string{"area"},
	)

	// candidates surviving every eligibility predicate
	EligibleCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_eligible_total",
			Help: "Total billboards passing eligibility filtering",
		},
		[]string{"area"},
	)

	// billboards returned after priority resolution
	ServedCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_served_total",
			Help: "Total billboards returned after priority resolution",
		},
		[]string{"area"},
	)

	// queries that returned no billboard at all
	EmptyResultCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_empty_results_total",
			Help: "Total queries with no eligible billboard",
		},
		[]string{"area"},
	)

	// candidates dropped, labelled by the predicate that rejected them
	RejectionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_rejections_total",
			Help: "Total candidates rejected per eligibility predicate",
		},
		[]string{"predicate"},
	)

	// failed reads from feature flag, segment, geolocation and tenant collaborators
	CollaboratorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_collaborator_errors_total",
			Help: "Total collaborator lookup failures",
		},
		[]string{"collaborator"},
	)

	// snapshot reloads labelled by outcome
	ReloadCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billboards_reloads_total",
			Help: "Total billboard snapshot reloads",
		},
		[]string{"status"},
	)

	// number of errors persisting decision records
	DecisionPersistErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billboards_decision_persist_errors_total",
			Help: "Total decision record persistence errors",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		QueryLatency,
		CandidateCount,
		EligibleCount,
		ServedCount,
		EmptyResultCount,
		RejectionCount,
		CollaboratorErrors,
		ReloadCount,
		DecisionPersistErrors,
	)
}
