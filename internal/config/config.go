package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/phonebill/internal/billing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string

	RedisReadyTimeout time.Duration
	SecurityHeaders   bool
	HSTSEnabled       bool

	Tariff      billing.Tariff
	Currency    string
	SkipInvalid bool
	MaxLogBytes int64
	CacheTTL    time.Duration
	JobTTL      time.Duration

	RateLimit         string
	WorkerConcurrency int
	QueueName         string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	tariff, err := loadTariff(k)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "phonebill"),
		MetricsBuckets:     k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		PprofEnabled:       parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		RedisReadyTimeout:  time.Duration(parseInt(k.String("HEALTH_READY_REDIS_TIMEOUT_MS"), 300)) * time.Millisecond,
		SecurityHeaders:    parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:        parseBool(k.String("SECURITY_HSTS_ENABLED"), false),
		Tariff:             tariff,
		Currency:           valueOrDefault(k.String("BILLING_CURRENCY"), "CZK"),
		SkipInvalid:        parseBool(k.String("BILLING_SKIP_INVALID"), false),
		MaxLogBytes:        int64(parseInt(k.String("BILLING_MAX_LOG_BYTES"), billing.DefaultMaxLogBytes)),
		CacheTTL:           parseDuration(k.String("BILLING_CACHE_TTL"), "10m"),
		JobTTL:             parseDuration(k.String("BILLING_JOB_TTL"), "24h"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 4),
		QueueName:          valueOrDefault(k.String("BILLING_QUEUE"), "billing"),
	}
	if strings.EqualFold(strings.TrimSpace(k.String("RATE_LIMIT")), "off") {
		cfg.RateLimit = ""
	}

	if cfg.MaxLogBytes <= 0 {
		return nil, errors.New("BILLING_MAX_LOG_BYTES must be positive")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, errors.New("WORKER_CONCURRENCY must be positive")
	}

	return cfg, nil
}

func loadTariff(k *koanf.Koanf) (billing.Tariff, error) {
	t := billing.DefaultTariff()
	var err error
	if t.PeakRate, err = parseRate(k, "BILLING_PEAK_RATE", t.PeakRate); err != nil {
		return t, err
	}
	if t.OffPeakRate, err = parseRate(k, "BILLING_OFF_PEAK_RATE", t.OffPeakRate); err != nil {
		return t, err
	}
	if t.ExtraMinuteRate, err = parseRate(k, "BILLING_EXTRA_MINUTE_RATE", t.ExtraMinuteRate); err != nil {
		return t, err
	}
	t.IncludedMinutes = int64(parseInt(k.String("BILLING_INCLUDED_MINUTES"), int(t.IncludedMinutes)))
	if raw := strings.TrimSpace(k.String("BILLING_PEAK_START")); raw != "" {
		if t.PeakStart, err = billing.ParseClock(raw); err != nil {
			return t, fmt.Errorf("BILLING_PEAK_START: %w", err)
		}
	}
	if raw := strings.TrimSpace(k.String("BILLING_PEAK_END")); raw != "" {
		if t.PeakEnd, err = billing.ParseClock(raw); err != nil {
			return t, fmt.Errorf("BILLING_PEAK_END: %w", err)
		}
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tariff: %w", err)
	}
	return t, nil
}

func parseRate(k *koanf.Koanf, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Parser returns the log parser configured for this environment.
func (c *Config) Parser() billing.Parser {
	return billing.Parser{SkipInvalid: c.SkipInvalid}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
