package observability

import (
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultServiceName names the logger and traces when SERVICE_NAME is unset.
const DefaultServiceName = "billboardserve"

// InitLogger constructs a production zap.Logger for the default service name
// at the level chosen by LogLevel.
func InitLogger() (*zap.Logger, error) {
	return InitLoggerWithLevel(LogLevel(), DefaultServiceName)
}

// InitLoggerWithService constructs a production zap.Logger for serviceName.
func InitLoggerWithService(serviceName string) (*zap.Logger, error) {
	return InitLoggerWithLevel(LogLevel(), serviceName)
}

// InitLoggerWithLevel constructs a zap.Logger at the provided level, named
// after the service and installed as the global logger.
func InitLoggerWithLevel(level zapcore.Level, serviceName string) (*zap.Logger, error) {
	return buildLogger(LoggerConfig(level), serviceName)
}

// InitStderrLogger is InitLoggerWithService for processes whose stdout carries
// a protocol, such as the MCP stdio server.
func InitStderrLogger(serviceName string) (*zap.Logger, error) {
	cfg := LoggerConfig(LogLevel())
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return buildLogger(cfg, serviceName)
}

// LoggerConfig returns the production zap config with the field names the log
// pipeline expects.
func LoggerConfig(level zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	return cfg
}

func buildLogger(cfg zap.Config, serviceName string) (*zap.Logger, error) {
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	logger = logger.Named(serviceName).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// LogLevel reads LOG_LEVEL, defaulting to debug in development environments
// (ENV=dev or development) and info elsewhere. Unknown levels mean info.
func LogLevel() zapcore.Level {
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return zap.InfoLevel
		}
		return level
	}
	switch strings.ToLower(os.Getenv("ENV")) {
	case "development", "dev":
		return zap.DebugLevel
	default:
		return zap.InfoLevel
	}
}

// ShouldSample reports whether a hot-path log line should be written at rate,
// a fraction between 0 and 1.
func ShouldSample(rate float64) bool {
	switch {
	case rate >= 1.0:
		return true
	case rate <= 0.0:
		return false
	default:
		return rand.Float64() < rate
	}
}

// GetSamplingRate returns the hot-path log sampling rate for the environment:
// everything in development, half in staging and a tenth in production.
func GetSamplingRate() float64 {
	switch strings.ToLower(os.Getenv("ENV")) {
	case "development", "dev":
		return 1.0
	case "staging", "test":
		return 0.5
	default:
		return 0.1
	}
}
