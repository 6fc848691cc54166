package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and code defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("SCRAPEGOAT_RENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("scrapegoat-render")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".scrapegoat-render"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env/file overrides
// compose on top of them rather than replacing the struct wholesale.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.max_request_size", cfg.Server.MaxRequestSize)

	v.SetDefault("browser_pool.max_concurrent_requests", cfg.BrowserPool.MaxConcurrentRequests)
	v.SetDefault("browser_pool.request_timeout", cfg.BrowserPool.RequestTimeout)
	v.SetDefault("browser_pool.acquire_timeout", cfg.BrowserPool.AcquireTimeout)
	v.SetDefault("browser_pool.context_pool_size", cfg.BrowserPool.ContextPoolSize)
	v.SetDefault("browser_pool.max_content_size", cfg.BrowserPool.MaxContentSize)
	v.SetDefault("browser_pool.stealth", cfg.BrowserPool.Stealth)

	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("cache.default_ttl", cfg.Cache.DefaultTTL)
	v.SetDefault("cache.compress_above", cfg.Cache.CompressAbove)
	v.SetDefault("cache.compress_intent", cfg.Cache.CompressIntent)
	v.SetDefault("cache.remote_queue_size", cfg.Cache.RemoteQueueSize)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.max_request_size", cfg.RateLimit.MaxRequestSize)

	v.SetDefault("transform.enabled", cfg.Transform.Enabled)
	v.SetDefault("transform.timeout", cfg.Transform.Timeout)
	v.SetDefault("transform.max_input_runes", cfg.Transform.MaxInputRunes)

	v.SetDefault("analysis.enabled", cfg.Analysis.Enabled)
	v.SetDefault("analysis.timeout", cfg.Analysis.Timeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("tasks.max_completed_history", cfg.Tasks.MaxCompletedHistory)
	v.SetDefault("tasks.sweep_interval", cfg.Tasks.SweepInterval)
	v.SetDefault("tasks.sweep_max_age", cfg.Tasks.SweepMaxAge)
}
