package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithSubforem(t *testing.T) {
	var (
		gotID int
		gotOK bool
	)
	h := WithSubforem(map[string]int{"dev.to": 1, "gamers.forem.com": 4})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = ContextTenantScope{}.CurrentSubforemID(r.Context())
	}))

	tests := []struct {
		host   string
		wantID int
		wantOK bool
	}{
		{"gamers.forem.com", 4, true},
		{"DEV.to:8443", 1, true},
		{"unknown.example", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/billboards/footer", nil)
			r.Host = tt.host
			h.ServeHTTP(httptest.NewRecorder(), r)
			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantOK, gotOK)
		})
	}
}

func TestContextTenantScopeEmpty(t *testing.T) {
	_, ok := ContextTenantScope{}.CurrentSubforemID(context.Background())
	assert.False(t, ok)
}

func TestWithTraceLoggerAssignsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	var gotID string
	h := WithTraceLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
		LoggerFromRequest(r, zap.NewNop()).Info("handled")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, gotID)
	assert.Equal(t, gotID, rec.Header().Get(RequestIDHeader))
	if assert.Equal(t, 1, logs.Len()) {
		assert.Equal(t, gotID, logs.All()[0].ContextMap()["request_id"])
	}

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc", gotID)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestLoggerFromContextFallback(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))
}
