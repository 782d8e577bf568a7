package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RedisAddr      string
	ClickHouseDSN  string
	PostgresDSN    string
	GeoIPDB        string
	DebugTrace     bool
	ReloadInterval time.Duration
	ServiceName    string
	// AnalyticsEnabled turns on the ClickHouse decision log.
	AnalyticsEnabled bool
	// RedisEnabled backs feature flags and audience segments with Redis. When
	// false, FeatureFlags is used and segment lookups always miss.
	RedisEnabled bool
	// FeatureFlags lists flags enabled when Redis is not used.
	FeatureFlags []string
	// EnabledCountries maps an ISO country code to its targeting granularity
	// ("with_regions" or "without_regions"). Countries not listed are unsupported.
	EnabledCountries map[string]string
	// SubforemDomains maps a request host to the subforem it serves.
	SubforemDomains map[string]int
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// DefaultEnabledCountries is used when BILLBOARD_ENABLED_COUNTRIES is unset.
var DefaultEnabledCountries = map[string]string{
	"US": "with_regions",
	"CA": "with_regions",
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default?async_insert=1&wait_for_async_insert=0")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.GeoIPDB = getenv("GEOIP_DB", "")
	cfg.DebugTrace = envBool("DEBUG_TRACE", false)
	// default to 30 seconds between automatic reloads
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 30*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "billboardserve")
	cfg.AnalyticsEnabled = envBool("ANALYTICS_ENABLED", false)
	cfg.RedisEnabled = envBool("REDIS_ENABLED", true)
	cfg.FeatureFlags = envList("FEATURE_FLAGS")

	cfg.EnabledCountries = envMap("BILLBOARD_ENABLED_COUNTRIES")
	if len(cfg.EnabledCountries) == 0 {
		cfg.EnabledCountries = DefaultEnabledCountries
	}
	cfg.SubforemDomains = make(map[string]int)
	for host, id := range envMap("SUBFOREM_DOMAINS") {
		if n, err := strconv.Atoi(id); err == nil {
			cfg.SubforemDomains[strings.ToLower(host)] = n
		}
	}

	// Database connection pooling configuration
	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0) // Default to 100% sampling for dev

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envList splits a comma separated environment variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envMap parses "k1:v1,k2:v2" into a map. Keys are upper-cased when they look
// like country codes; malformed pairs are skipped.
func envMap(key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range envList(key) {
		k, v, ok := strings.Cut(pair, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		if len(k) == 2 {
			k = strings.ToUpper(k)
		}
		out[k] = v
	}
	return out
}
