package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	c := LoadFromEnv()

	if c.Server.Port != 7601 {
		t.Errorf("Server.Port = %d, want 7601", c.Server.Port)
	}
	if c.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", c.Logging.Level)
	}
	if !c.Engine.FilterPushdown || !c.Engine.PredicateReordering || !c.Engine.JoinReordering {
		t.Error("optimizer toggles should default to enabled")
	}
	if c.Engine.JoinReorderLimit != 720 {
		t.Errorf("Engine.JoinReorderLimit = %d, want 720", c.Engine.JoinReorderLimit)
	}
	if c.Engine.PlanCacheSize != 1000 {
		t.Errorf("Engine.PlanCacheSize = %d, want 1000", c.Engine.PlanCacheSize)
	}
	if c.Engine.RuntimeLimit != 0 {
		t.Errorf("Engine.RuntimeLimit = %d, want 0", c.Engine.RuntimeLimit)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	for k, v := range map[string]string{
		"GRAPHFORGE_SERVER_ENABLED":      "true",
		"GRAPHFORGE_SERVER_PORT":         "9090",
		"GRAPHFORGE_LOG_LEVEL":           "debug",
		"GRAPHFORGE_OPT_JOIN_REORDER":    "false",
		"GRAPHFORGE_PLAN_CACHE_SIZE":     "42",
		"GRAPHFORGE_PLAN_CACHE_TTL":      "30s",
		"GRAPHFORGE_RUNTIME_MEMORY_LIMIT": "512MB",
	} {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}

	c := LoadFromEnv()

	if !c.Server.Enabled || c.Server.Port != 9090 {
		t.Errorf("Server = %+v, want enabled on port 9090", c.Server)
	}
	if c.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG (uppercased)", c.Logging.Level)
	}
	if c.Engine.JoinReordering {
		t.Error("Engine.JoinReordering should be false")
	}
	if c.Engine.PlanCacheSize != 42 {
		t.Errorf("Engine.PlanCacheSize = %d, want 42", c.Engine.PlanCacheSize)
	}
	if c.Engine.PlanCacheTTL != 30*time.Second {
		t.Errorf("Engine.PlanCacheTTL = %v, want 30s", c.Engine.PlanCacheTTL)
	}
	if c.Engine.RuntimeLimit != 512*1024*1024 {
		t.Errorf("Engine.RuntimeLimit = %d, want 512MB in bytes", c.Engine.RuntimeLimit)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "VERBOSE" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero join reorder limit", func(c *Config) { c.Engine.JoinReorderLimit = 0 }},
		{"negative plan cache size", func(c *Config) { c.Engine.PlanCacheSize = -1 }},
		{"server enabled with bad port", func(c *Config) {
			c.Server.Enabled = true
			c.Server.Port = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := LoadFromEnv()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected Validate() to return an error")
			}
		})
	}
}

func TestParseMemorySize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"unlimited", 0},
		{"1024", 1024},
		{"4KB", 4 * 1024},
		{"512MB", 512 * 1024 * 1024},
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"not-a-size", 0},
	}
	for _, tt := range tests {
		if got := parseMemorySize(tt.in); got != tt.want {
			t.Errorf("parseMemorySize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatMemorySize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatMemorySize(tt.in); got != tt.want {
			t.Errorf("FormatMemorySize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigString(t *testing.T) {
	c := LoadFromEnv()
	s := c.String()
	if s == "" {
		t.Error("String() should not be empty")
	}
}
