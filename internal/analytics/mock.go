package analytics

import (
	"context"
	"sync"
)

var _ AnalyticsService = (*MockAnalytics)(nil)

// MockAnalytics keeps recorded decisions in memory for testing.
type MockAnalytics struct {
	mu        sync.Mutex
	decisions []DecisionRecord
	// Err, when set, is returned from RecordDecision instead of recording.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordDecision stores d unless Err is set.
func (m *MockAnalytics) RecordDecision(_ context.Context, d DecisionRecord) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

// Decisions returns a copy of the recorded decisions.
func (m *MockAnalytics) Decisions() []DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DecisionRecord(nil), m.decisions...)
}
