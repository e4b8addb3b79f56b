package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type RedisCfg struct {
	Enabled     bool
	Addr        string
	OpTimeout   time.Duration
	PoolSize    int
	DialTimeout time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	BackendURL     string
	FetchTimeout   time.Duration
	FetchCacheSize int
	FetchCacheTTL  time.Duration
	RetryPolicy    string
	RetryAttempts  int
	RetryDelay     time.Duration
	CircleSteps    int
	HeatmapH3Res   int
	SessionIdleTTL time.Duration
	Redis          RedisCfg
	Events         EventsCfg
	Metrics        MetricsCfg
}

func FromEnv() Config {
	steps := getint("CIRCLE_STEPS", 32)
	if steps < 3 {
		steps = 32
	}
	h3res := getint("HEATMAP_H3_RES", -1)
	if h3res > 15 {
		h3res = 15
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		BackendURL:     strings.TrimRight(getenv("BACKEND_URL", "http://localhost:3301/api/v1"), "/"),
		FetchTimeout:   getduration("FETCH_TIMEOUT", 15*time.Second),
		FetchCacheSize: getint("FETCH_CACHE_SIZE", 256),
		FetchCacheTTL:  getduration("FETCH_CACHE_TTL", 30*time.Second),
		RetryPolicy:    strings.ToLower(getenv("RETRY_POLICY", "none")),
		RetryAttempts:  getint("RETRY_ATTEMPTS", 3),
		RetryDelay:     getduration("RETRY_DELAY", 500*time.Millisecond),
		CircleSteps:    steps,
		HeatmapH3Res:   h3res,
		SessionIdleTTL: getduration("SESSION_IDLE_TTL", 30*time.Minute),
		Redis: RedisCfg{
			Enabled:     getbool("REDIS_ENABLED", false),
			Addr:        getenv("REDIS_ADDR", "localhost:6379"),
			OpTimeout:   getduration("STORE_OP_TIMEOUT", 250*time.Millisecond),
			PoolSize:    getint("REDIS_POOL_SIZE", 16),
			DialTimeout: getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "map-session-events"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// BrokerList splits the comma separated broker list.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
