package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogLevel(t *testing.T) {
	cases := []struct {
		env, level string
		want       zapcore.Level
	}{
		{"", "", zap.InfoLevel},
		{"dev", "", zap.DebugLevel},
		{"production", "WARN", zap.WarnLevel},
		{"dev", "error", zap.ErrorLevel},
		{"", "chatty", zap.InfoLevel},
	}
	for _, tc := range cases {
		t.Setenv("ENV", tc.env)
		t.Setenv("LOG_LEVEL", tc.level)
		assert.Equal(t, tc.want, LogLevel(), "ENV=%q LOG_LEVEL=%q", tc.env, tc.level)
	}
}

func TestShouldSampleBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, ShouldSample(1))
		assert.False(t, ShouldSample(0))
	}
}

func TestGetSamplingRate(t *testing.T) {
	t.Setenv("ENV", "dev")
	assert.Equal(t, 1.0, GetSamplingRate())
	t.Setenv("ENV", "")
	assert.Equal(t, 0.1, GetSamplingRate())
}

func TestInitLoggerNamesService(t *testing.T) {
	logger, err := InitLoggerWithLevel(zap.InfoLevel, "billboard-test")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestMockMetricsRegistryCounts(t *testing.T) {
	m := NewMockMetricsRegistry()
	m.AddRejections("tags", 3)
	m.AddRejections("tags", 2)
	m.IncrementCollaboratorErrors("feature_flag")
	m.IncrementRequests("billboards", "GET", "200")

	assert.Equal(t, 5, m.Count("rejections:tags"))
	assert.Equal(t, 1, m.Count("collaborator_errors:feature_flag"))
	assert.Equal(t, 1, m.Count("requests:billboards:200"))
	assert.Zero(t, m.Count("reloads:success"))
}
