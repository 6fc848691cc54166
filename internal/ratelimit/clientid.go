// Package ratelimit implements per-client sliding-window admission
// control with burst caps and an abuse score, gating all inbound scrape
// submissions at the API gateway.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ClientID is a 16-hex-char identity hash: clients are never tracked
// by raw IP, only by this truncated digest, sharding contention the
// same way the crawl engine's per-domain throttle map does.
type ClientID string

// Identify derives a ClientID from request IP + truncated user agent.
func Identify(r *http.Request) ClientID {
	ip := clientIP(r)
	ua := r.UserAgent()
	if len(ua) > 50 {
		ua = ua[:50]
	}
	sum := sha256.Sum256([]byte(ip + "|" + ua))
	return ClientID(hex.EncodeToString(sum[:])[:16])
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
