package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("server.max_request_size must be > 0")
	}

	if cfg.BrowserPool.MaxConcurrentRequests < 1 {
		return fmt.Errorf("browser_pool.max_concurrent_requests must be >= 1, got %d", cfg.BrowserPool.MaxConcurrentRequests)
	}
	if cfg.BrowserPool.RequestTimeout <= 0 {
		return fmt.Errorf("browser_pool.request_timeout must be > 0")
	}
	if cfg.BrowserPool.AcquireTimeout <= 0 {
		return fmt.Errorf("browser_pool.acquire_timeout must be > 0")
	}
	if cfg.BrowserPool.ContextPoolSize < 0 {
		return fmt.Errorf("browser_pool.context_pool_size must be >= 0")
	}

	if cfg.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be >= 1, got %d", cfg.Cache.MaxEntries)
	}
	validIntents := map[string]bool{"fast": true, "size": true, "balanced": true}
	if !validIntents[cfg.Cache.CompressIntent] {
		return fmt.Errorf("cache.compress_intent must be fast/size/balanced, got %q", cfg.Cache.CompressIntent)
	}
	if cfg.Cache.RedisEnabled && cfg.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required when cache.redis_enabled is true")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Tasks.MaxCompletedHistory < 1 {
		return fmt.Errorf("tasks.max_completed_history must be >= 1")
	}

	return nil
}

// ValidateURL checks that a URL is well-formed, uses http(s), and that
// its host is neither "localhost" nor a literal loopback, link-local,
// unspecified, multicast, or private IP — the SSRF guard every admitted
// scrape target passes through. Host names are not resolved, so a name
// pointing at a private address is not caught here.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a host")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("URL host %q is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isDisallowedIP(ip) {
			return fmt.Errorf("URL host %q resolves to a disallowed address", host)
		}
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"fd00::/8",
		"::1/128",
	}
	for _, block := range privateBlocks {
		_, cidr, err := net.ParseCIDR(block)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
