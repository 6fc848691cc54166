package ratelimit

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int
	Warning           bool
}

// window is a pruned, append-only slice of recent request timestamps
// for one accounting period (minute/hour/day).
type window struct {
	events []time.Time
}

func (w *window) prune(now time.Time, horizon time.Duration) {
	cutoff := now.Add(-horizon)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	w.events = w.events[i:]
}

func (w *window) record(now time.Time) {
	w.events = append(w.events, now)
}

type clientRecord struct {
	mu sync.Mutex

	minute window
	hour   window
	day    window
	burst  window

	blockedUntil time.Time
	blockCount   int

	abuseScore   float64
	lastSeen     time.Time
	arrivalRing  []time.Time
}

var attackPattern = regexp.MustCompile(`(?i)(\bunion\b.*\bselect\b|<script|\.\./|;--|\$\{|\bdrop\b\s+\btable\b)`)

var knownToolUAs = []string{"curl", "python-requests", "scrapy", "wget", "go-http-client", "libwww-perl"}

// Limiter holds per-client state and enforces Rules.
type Limiter struct {
	mu      sync.Mutex
	clients map[ClientID]*clientRecord

	maxRequestSize int64
}

// New creates an empty Limiter.
func New(maxRequestSize int64) *Limiter {
	return &Limiter{
		clients:        make(map[ClientID]*clientRecord),
		maxRequestSize: maxRequestSize,
	}
}

func (l *Limiter) recordFor(id ClientID) *clientRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.clients[id]
	if !ok {
		rec = &clientRecord{}
		l.clients[id] = rec
	}
	return rec
}

// Admit checks whether a request should proceed under the rules for
// class, updating the client's sliding windows and abuse score.
func (l *Limiter) Admit(r *http.Request, class EndpointClass) Decision {
	rule := Rules[class]
	id := Identify(r)
	rec := l.recordFor(id)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := time.Now()
	rec.lastSeen = now

	if r.ContentLength > l.maxRequestSize {
		return Decision{Allowed: false, RetryAfterSeconds: 60}
	}

	if now.Before(rec.blockedUntil) {
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: int(rec.blockedUntil.Sub(now).Seconds()) + 1,
		}
	}

	rec.minute.prune(now, time.Minute)
	rec.hour.prune(now, time.Hour)
	rec.day.prune(now, 24*time.Hour)
	rec.burst.prune(now, rule.BurstWindow)

	l.scoreRequest(rec, r, now)
	if rec.abuseScore > 10 {
		rec.blockedUntil = now.Add(60 * time.Minute)
		rec.blockCount++
		return Decision{Allowed: false, RetryAfterSeconds: 60 * 60}
	}

	switch {
	case len(rec.burst.events) >= rule.Burst:
		rec.blockedUntil = now.Add(rule.BlockDuration)
		rec.blockCount++
		return Decision{Allowed: false, RetryAfterSeconds: int(rule.BlockDuration.Seconds())}
	case len(rec.minute.events) >= rule.PerMinute:
		rec.blockedUntil = now.Add(rule.BlockDuration)
		rec.blockCount++
		return Decision{Allowed: false, RetryAfterSeconds: int(rule.BlockDuration.Seconds())}
	case len(rec.hour.events) >= rule.PerHour:
		rec.blockedUntil = now.Add(rule.BlockDuration)
		rec.blockCount++
		return Decision{Allowed: false, RetryAfterSeconds: int(rule.BlockDuration.Seconds())}
	case len(rec.day.events) >= rule.PerDay:
		rec.blockedUntil = now.Add(rule.BlockDuration * 4)
		rec.blockCount++
		return Decision{Allowed: false, RetryAfterSeconds: int(rule.BlockDuration.Seconds()) * 4}
	}

	rec.minute.record(now)
	rec.hour.record(now)
	rec.day.record(now)
	rec.burst.record(now)

	remaining := rule.PerMinute - len(rec.minute.events)
	return Decision{
		Allowed:   true,
		Limit:     rule.PerMinute,
		Remaining: remaining,
		ResetAt:   now.Add(time.Minute),
		Warning:   remaining < rule.PerMinute/10,
	}
}

// scoreRequest updates rec.abuseScore via an exponential moving
// average: score = 0.8*score + 0.2*signal, where signal accumulates
// points for tool-like user agents, attack substrings, oversized
// requests, and suspiciously regular inter-arrival timing.
func (l *Limiter) scoreRequest(rec *clientRecord, r *http.Request, now time.Time) {
	var signal float64

	ua := strings.ToLower(r.UserAgent())
	if ua == "" || len(ua) < 10 {
		signal += 3
	}
	for _, tool := range knownToolUAs {
		if strings.Contains(ua, tool) {
			signal += 4
			break
		}
	}

	target := r.URL.String()
	probe := target
	if decoded, err := url.QueryUnescape(target); err == nil {
		probe = decoded
	}
	if attackPattern.MatchString(probe) {
		signal += 8
	}
	if len(target) > 2048 {
		signal += 2
	}

	var headerBytes int
	for k, vs := range r.Header {
		headerBytes += len(k)
		for _, v := range vs {
			headerBytes += len(v)
		}
	}
	if headerBytes > 8192 {
		signal += 2
	}

	if !rec.lastSeen.IsZero() {
		rec.arrivalRing = append(rec.arrivalRing, now)
		if len(rec.arrivalRing) > 20 {
			rec.arrivalRing = rec.arrivalRing[len(rec.arrivalRing)-20:]
		}
		if len(rec.arrivalRing) >= 10 {
			signal += regularityScore(rec.arrivalRing)
		}
	}

	rec.abuseScore = 0.8*rec.abuseScore + 0.2*signal
}

// regularityScore flags bot-like, low-jitter request cadence: mean
// inter-arrival under 5s and variance under 0.1s^2 across the sample.
func regularityScore(samples []time.Time) float64 {
	if len(samples) < 2 {
		return 0
	}
	intervals := make([]float64, 0, len(samples)-1)
	var sum float64
	for i := 1; i < len(samples); i++ {
		d := samples[i].Sub(samples[i-1]).Seconds()
		intervals = append(intervals, d)
		sum += d
	}
	mean := sum / float64(len(intervals))
	var variance float64
	for _, d := range intervals {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(intervals))

	if mean < 5 && variance < 0.1 {
		return 5
	}
	return 0
}

// Sweep removes client records idle for 24h and returns how many it
// removed. A record seen within the last 24h is kept even if its block
// has expired; an expired block no longer refuses requests.
func (l *Limiter) Sweep() int {
	cutoff := time.Now().Add(-24 * time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, rec := range l.clients {
		rec.mu.Lock()
		stale := rec.lastSeen.Before(cutoff)
		rec.mu.Unlock()
		if stale {
			delete(l.clients, id)
			removed++
		}
	}
	return removed
}
