package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry is a MetricsRegistry that records counter values for
// assertions in tests. Latencies are ignored.
type MockMetricsRegistry struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewMockMetricsRegistry creates an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counters: make(map[string]int)}
}

func (m *MockMetricsRegistry) add(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	m.counters[key] += n
}

// Count returns the recorded value for a counter key such as "rejections:tags".
func (m *MockMetricsRegistry) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.add("requests:"+endpoint+":"+status, 1)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) RecordQueryLatency(area string, duration time.Duration)               {}
func (m *MockMetricsRegistry) AddCandidates(area string, n int)                                     { m.add("candidates:"+area, n) }
func (m *MockMetricsRegistry) AddEligible(area string, n int)                                       { m.add("eligible:"+area, n) }
func (m *MockMetricsRegistry) AddServed(area string, n int)                                         { m.add("served:"+area, n) }
func (m *MockMetricsRegistry) IncrementEmptyResults(area string)                                    { m.add("empty:"+area, 1) }
func (m *MockMetricsRegistry) AddRejections(predicate string, n int)                                { m.add("rejections:"+predicate, n) }
func (m *MockMetricsRegistry) IncrementCollaboratorErrors(collaborator string) {
	m.add("collaborator_errors:"+collaborator, 1)
}
func (m *MockMetricsRegistry) IncrementReloads(status string)   { m.add("reloads:"+status, 1) }
func (m *MockMetricsRegistry) IncrementDecisionPersistErrors() { m.add("decision_persist_errors", 1) }
