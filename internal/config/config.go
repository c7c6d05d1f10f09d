// Package config loads service configuration from the environment with
// sensible defaults, so the service starts with zero configuration in
// development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the complete service configuration.
type Configuration struct {
	Service       ServiceConfig
	Segmenter     SegmenterConfig
	Analyzer      AnalyzerConfig
	Dispatch      DispatchConfig
	Kafka         KafkaConfig
	Redis         RedisConfig
	Session       SessionConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
}

// SegmenterConfig holds video windowing parameters.
type SegmenterConfig struct {
	ChunkDuration time.Duration
	Overlap       time.Duration
}

// AnalyzerConfig holds frame-analyzer adapter settings.
type AnalyzerConfig struct {
	Provider string // mock or openai
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// DispatchConfig holds dispatch engine settings.
type DispatchConfig struct {
	Cooldown        time.Duration
	DefaultLocation string
	HistoryLimit    int
}

// KafkaConfig holds dispatch publisher settings.
type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
	Timeout   time.Duration
}

// RedisConfig holds event store and dedup ledger backend settings. When
// disabled, in-memory implementations are used instead.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	Retention time.Duration
}

// SessionConfig holds conversation history settings.
type SessionConfig struct {
	HistoryCap int
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. Missing or unparsable
// values fall back to their defaults; Load never fails.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-crowd-safety")

	return &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8000"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Segmenter: SegmenterConfig{
			ChunkDuration: envOrDefaultDuration("SEGMENT_CHUNK_DURATION", 5*time.Second),
			Overlap:       envOrDefaultDuration("SEGMENT_OVERLAP", 1*time.Second),
		},
		Analyzer: AnalyzerConfig{
			Provider: envOrDefault("ANALYZER_PROVIDER", "mock"),
			APIKey:   envOrDefault("ANALYZER_API_KEY", ""),
			BaseURL:  envOrDefault("ANALYZER_BASE_URL", ""),
			Model:    envOrDefault("ANALYZER_MODEL", "gpt-4o-mini"),
			Timeout:  envOrDefaultDuration("ANALYZER_TIMEOUT", 30*time.Second),
		},
		Dispatch: DispatchConfig{
			Cooldown:        envOrDefaultDuration("DISPATCH_COOLDOWN", 10*time.Minute),
			DefaultLocation: envOrDefault("DISPATCH_DEFAULT_LOCATION", "monitored zone"),
			HistoryLimit:    envOrDefaultInt("DISPATCH_HISTORY_LIMIT", 20),
		},
		Kafka: KafkaConfig{
			Enabled:   envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:   envOrDefaultList("KAFKA_BROKERS", nil),
			Topic:     envOrDefault("KAFKA_DISPATCH_TOPIC", "dispatcher"),
			Principal: envOrDefault("KAFKA_PRINCIPAL", principal),
			Timeout:   envOrDefaultDuration("KAFKA_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled:   envOrDefaultBool("REDIS_ENABLED", false),
			Addr:      envOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:  envOrDefault("REDIS_PASSWORD", ""),
			DB:        envOrDefaultInt("REDIS_DB", 0),
			Retention: envOrDefaultDuration("REDIS_RETENTION", 24*time.Hour),
		},
		Session: SessionConfig{
			HistoryCap: envOrDefaultInt("SESSION_HISTORY_CAP", 200),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
