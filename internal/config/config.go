// Package config loads and validates the render service's layered
// configuration: file, environment, then code defaults.
package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the render service.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"       yaml:"server"`
	BrowserPool  BrowserPoolConfig  `mapstructure:"browser_pool" yaml:"browser_pool"`
	Cache        CacheConfig        `mapstructure:"cache"        yaml:"cache"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"   yaml:"rate_limit"`
	Transform    TransformConfig    `mapstructure:"transform"    yaml:"transform"`
	Analysis     AnalysisConfig     `mapstructure:"analysis"     yaml:"analysis"`
	Logging      LoggingConfig      `mapstructure:"logging"      yaml:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"      yaml:"metrics"`
	Tasks        TasksConfig        `mapstructure:"tasks"        yaml:"tasks"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	Port            int           `mapstructure:"port"              yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"      yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"     yaml:"write_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"   yaml:"allowed_origins"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"  yaml:"max_request_size"`
}

// BrowserPoolConfig controls the headless browser pool.
type BrowserPoolConfig struct {
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests" yaml:"max_concurrent_requests"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"         yaml:"request_timeout"`
	AcquireTimeout        time.Duration `mapstructure:"acquire_timeout"         yaml:"acquire_timeout"`
	ContextPoolSize       int           `mapstructure:"context_pool_size"       yaml:"context_pool_size"`
	MaxContentSize        int           `mapstructure:"max_content_size"        yaml:"max_content_size"`
	BlockedDomains        []string      `mapstructure:"blocked_domains"         yaml:"blocked_domains"`
	Stealth               bool          `mapstructure:"stealth"                 yaml:"stealth"`
	ProxyURLs             []string      `mapstructure:"proxy_urls"              yaml:"proxy_urls"`
}

// CacheConfig controls the memory + remote cache tiers.
type CacheConfig struct {
	MaxEntries      int           `mapstructure:"max_entries"       yaml:"max_entries"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"       yaml:"default_ttl"`
	CompressAbove   int           `mapstructure:"compress_above"    yaml:"compress_above"`
	CompressIntent  string        `mapstructure:"compress_intent"   yaml:"compress_intent"`
	RedisAddr       string        `mapstructure:"redis_addr"        yaml:"redis_addr"`
	RedisEnabled    bool          `mapstructure:"redis_enabled"     yaml:"redis_enabled"`
	RemoteQueueSize int           `mapstructure:"remote_queue_size" yaml:"remote_queue_size"`
}

// RateLimitConfig controls admission control.
type RateLimitConfig struct {
	Enabled        bool  `mapstructure:"enabled"          yaml:"enabled"`
	MaxRequestSize int64 `mapstructure:"max_request_size" yaml:"max_request_size"`
}

// TransformConfig controls the optional external LLM post-processing step.
type TransformConfig struct {
	Enabled        bool          `mapstructure:"enabled"         yaml:"enabled"`
	DefaultModel   string        `mapstructure:"default_model"   yaml:"default_model"`
	Endpoint       string        `mapstructure:"endpoint"        yaml:"endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"         yaml:"timeout"`
	MaxInputRunes  int           `mapstructure:"max_input_runes" yaml:"max_input_runes"`
}

// AnalysisConfig controls the optional external ML classification step.
type AnalysisConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// TasksConfig controls Task Manager history retention.
type TasksConfig struct {
	MaxCompletedHistory int           `mapstructure:"max_completed_history" yaml:"max_completed_history"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"        yaml:"sweep_interval"`
	SweepMaxAge         time.Duration `mapstructure:"sweep_max_age"         yaml:"sweep_max_age"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxRequestSize: 1 * 1024 * 1024,
		},
		BrowserPool: BrowserPoolConfig{
			MaxConcurrentRequests: 3,
			RequestTimeout:        30 * time.Second,
			AcquireTimeout:        30 * time.Second,
			ContextPoolSize:       10,
			MaxContentSize:        5 * 1024 * 1024,
			Stealth:               true,
		},
		Cache: CacheConfig{
			MaxEntries:      1000,
			DefaultTTL:      1 * time.Hour,
			CompressAbove:   1024,
			CompressIntent:  "balanced",
			RemoteQueueSize: 256,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			MaxRequestSize: 1 * 1024 * 1024,
		},
		Transform: TransformConfig{
			Timeout:       60 * time.Second,
			MaxInputRunes: 8000,
		},
		Analysis: AnalysisConfig{
			Timeout: 20 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tasks: TasksConfig{
			MaxCompletedHistory: 1000,
			SweepInterval:       5 * time.Minute,
			SweepMaxAge:         24 * time.Hour,
		},
	}
}
