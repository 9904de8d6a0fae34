// Package config loads GraphForge's embedding-host configuration from
// environment variables, GRAPHFORGE_-prefixed, in the teacher's
// load-from-env-with-defaults style: LoadFromEnv() never errors (every
// field has a usable default), and Validate() catches conflicting or
// out-of-range values before the engine opens.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// Config holds every GraphForge setting LoadFromEnv reads from the process
// environment, grouped by the concern it configures.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Engine  EngineConfig
}

// ServerConfig holds the optional HTTP query-server's listen settings
// (pkg/server) — GraphForge itself is an embeddable library; this only
// matters for cmd/graphforge's standalone server mode.
type ServerConfig struct {
	// Enabled is loaded from the environment and makes Validate check
	// Port; cmd/graphforge's serve subcommand does not consult it.
	Enabled bool
	// Address to bind to, e.g. "0.0.0.0" or "localhost".
	Address string
	// Port for the HTTP API (POST /query).
	Port int
	// ReadTimeout/WriteTimeout bound a single request's lifetime.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	// Level: DEBUG, INFO, WARN, ERROR.
	Level string
	// Format: json or text.
	Format string
	// Output: stdout, stderr, or a file path.
	Output string
	// QueryLogEnabled and SlowQueryThreshold are loaded from the
	// environment and carried on the config; no GraphForge package reads
	// them, so neither one produces any query logging.
	QueryLogEnabled    bool
	SlowQueryThreshold time.Duration
}

// EngineConfig holds the knobs for the parts of the engine spec.md leaves
// configurable: the optimizer's rewrite toggles, the plan cache, object
// pooling, and Go runtime memory tuning for long-running embedding hosts.
type EngineConfig struct {
	// FilterPushdown/PredicateReordering/JoinReordering mirror
	// optimizer.Options — debugging/benchmarking knobs, not correctness
	// switches; the unoptimized plan is always valid.
	FilterPushdown      bool
	PredicateReordering bool
	JoinReordering      bool
	// JoinReorderLimit bounds the join-reordering search space per
	// pattern segment (spec.md §4.3.5's "configurable limit").
	JoinReorderLimit int

	// PlanCacheEnabled/PlanCacheSize/PlanCacheTTL configure pkg/cache's
	// plan cache.
	PlanCacheEnabled bool
	PlanCacheSize    int
	PlanCacheTTL     time.Duration

	// PoolEnabled/PoolMaxSize are loaded from the environment but are not
	// passed to pkg/pool; engine.Open configures the pool with fixed values
	// (enabled, MaxSize 1000).
	PoolEnabled bool
	PoolMaxSize int

	// RuntimeLimit is the soft memory limit (GOMEMLIMIT) in bytes; 0 means
	// the Go runtime manages it automatically. Set to a fraction of
	// available memory in a container to keep GC from running the host
	// process out of memory under a large graph.
	RuntimeLimit    int64
	RuntimeLimitStr string
	// GCPercent controls GC aggressiveness (GOGC); 100 is the Go default.
	GCPercent int
}

// LoadFromEnv loads a complete Config from the environment, applying
// documented defaults to every field LoadFromEnv() does not find set.
func LoadFromEnv() *Config {
	c := &Config{}

	c.Server.Enabled = getEnvBool("GRAPHFORGE_SERVER_ENABLED", false)
	c.Server.Address = getEnv("GRAPHFORGE_SERVER_ADDRESS", "127.0.0.1")
	c.Server.Port = getEnvInt("GRAPHFORGE_SERVER_PORT", 7601)
	c.Server.ReadTimeout = getEnvDuration("GRAPHFORGE_SERVER_READ_TIMEOUT", 10*time.Second)
	c.Server.WriteTimeout = getEnvDuration("GRAPHFORGE_SERVER_WRITE_TIMEOUT", 30*time.Second)

	c.Logging.Level = strings.ToUpper(getEnv("GRAPHFORGE_LOG_LEVEL", "INFO"))
	c.Logging.Format = getEnv("GRAPHFORGE_LOG_FORMAT", "json")
	c.Logging.Output = getEnv("GRAPHFORGE_LOG_OUTPUT", "stderr")
	c.Logging.QueryLogEnabled = getEnvBool("GRAPHFORGE_QUERY_LOG_ENABLED", false)
	c.Logging.SlowQueryThreshold = getEnvDuration("GRAPHFORGE_SLOW_QUERY_THRESHOLD", time.Second)

	c.Engine.FilterPushdown = getEnvBool("GRAPHFORGE_OPT_FILTER_PUSHDOWN", true)
	c.Engine.PredicateReordering = getEnvBool("GRAPHFORGE_OPT_PREDICATE_REORDER", true)
	c.Engine.JoinReordering = getEnvBool("GRAPHFORGE_OPT_JOIN_REORDER", true)
	c.Engine.JoinReorderLimit = getEnvInt("GRAPHFORGE_OPT_JOIN_REORDER_LIMIT", 720)

	c.Engine.PlanCacheEnabled = getEnvBool("GRAPHFORGE_PLAN_CACHE_ENABLED", true)
	c.Engine.PlanCacheSize = getEnvInt("GRAPHFORGE_PLAN_CACHE_SIZE", 1000)
	c.Engine.PlanCacheTTL = getEnvDuration("GRAPHFORGE_PLAN_CACHE_TTL", 5*time.Minute)

	c.Engine.PoolEnabled = getEnvBool("GRAPHFORGE_POOL_ENABLED", true)
	c.Engine.PoolMaxSize = getEnvInt("GRAPHFORGE_POOL_MAX_SIZE", 1000)

	c.Engine.RuntimeLimitStr = getEnv("GRAPHFORGE_RUNTIME_MEMORY_LIMIT", "0")
	c.Engine.RuntimeLimit = parseMemorySize(c.Engine.RuntimeLimitStr)
	c.Engine.GCPercent = getEnvInt("GRAPHFORGE_GC_PERCENT", 100)

	return c
}

// Validate reports the first conflicting or out-of-range setting found.
func (c *Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Engine.JoinReorderLimit < 1 {
		return fmt.Errorf("join reorder limit must be >= 1, got %d", c.Engine.JoinReorderLimit)
	}
	if c.Engine.PlanCacheSize < 0 {
		return fmt.Errorf("plan cache size must be >= 0, got %d", c.Engine.PlanCacheSize)
	}
	if c.Engine.GCPercent < -1 {
		return fmt.Errorf("invalid GC percent: %d", c.Engine.GCPercent)
	}
	return nil
}

// ApplyRuntimeMemory applies RuntimeLimit/GCPercent to the Go runtime.
// Call once, early in main(), before the store allocates.
func (c *EngineConfig) ApplyRuntimeMemory() {
	if c.RuntimeLimit > 0 {
		debug.SetMemoryLimit(c.RuntimeLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}

// String returns a log-safe summary (GraphForge has no secrets to redact,
// unlike the Neo4j-style auth config this package used to carry).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s:%d (enabled=%v), LogLevel: %s, PlanCache: %v/%d}",
		c.Server.Address, c.Server.Port, c.Server.Enabled,
		c.Logging.Level, c.Engine.PlanCacheEnabled, c.Engine.PlanCacheSize,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable size like "512MB", "2GB", "0",
// or "unlimited" (meaning 0, no limit) into bytes.
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable size string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
