package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components receive their metrics sink through dependency injection.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Query metrics
	RecordQueryLatency(area string, duration time.Duration)
	AddCandidates(area string, n int)
	AddEligible(area string, n int)
	AddServed(area string, n int)
	IncrementEmptyResults(area string)

	// Filter metrics
	AddRejections(predicate string, n int)
	IncrementCollaboratorErrors(collaborator string)

	// Snapshot and persistence metrics
	IncrementReloads(status string)
	IncrementDecisionPersistErrors()
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Query metrics
func (r *PrometheusRegistry) RecordQueryLatency(area string, duration time.Duration) {
	QueryLatency.WithLabelValues(area).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) AddCandidates(area string, n int) {
	CandidateCount.WithLabelValues(area).Add(float64(n))
}

func (r *PrometheusRegistry) AddEligible(area string, n int) {
	EligibleCount.WithLabelValues(area).Add(float64(n))
}

func (r *PrometheusRegistry) AddServed(area string, n int) {
	ServedCount.WithLabelValues(area).Add(float64(n))
}

func (r *PrometheusRegistry) IncrementEmptyResults(area string) {
	EmptyResultCount.WithLabelValues(area).Inc()
}

// Filter metrics
func (r *PrometheusRegistry) AddRejections(predicate string, n int) {
	RejectionCount.WithLabelValues(predicate).Add(float64(n))
}

func (r *PrometheusRegistry) IncrementCollaboratorErrors(collaborator string) {
	CollaboratorErrors.WithLabelValues(collaborator).Inc()
}

// Snapshot and persistence metrics
func (r *PrometheusRegistry) IncrementReloads(status string) {
	ReloadCount.WithLabelValues(status).Inc()
}

func (r *PrometheusRegistry) IncrementDecisionPersistErrors() {
	DecisionPersistErrors.Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) RecordQueryLatency(area string, duration time.Duration)               {}
func (r *NoOpRegistry) AddCandidates(area string, n int)                                     {}
func (r *NoOpRegistry) AddEligible(area string, n int)                                       {}
func (r *NoOpRegistry) AddServed(area string, n int)                                         {}
func (r *NoOpRegistry) IncrementEmptyResults(area string)                                    {}
func (r *NoOpRegistry) AddRejections(predicate string, n int)                                {}
func (r *NoOpRegistry) IncrementCollaboratorErrors(collaborator string)                      {}
func (r *NoOpRegistry) IncrementReloads(status string)                                       {}
func (r *NoOpRegistry) IncrementDecisionPersistErrors()                                      {}
