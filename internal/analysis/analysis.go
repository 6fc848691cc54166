// Package analysis provides an optional content-classification pass
// (content type, quality score, language) that downgrades to
// unavailable rather than failing a scrape when the backing model
// endpoint cannot be reached.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var (
	errNotConfigured  = errors.New("analysis: no classifier endpoint configured")
	errUnhealthy      = errors.New("analysis: classifier endpoint reported unhealthy")
	errNotInitialized = errors.New("analysis: classifier not initialized")
)

func jsonReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

// Classification is the result of classifying one page's extracted text.
type Classification struct {
	ContentType  string  `json:"content_type"`
	QualityScore float64 `json:"quality_score"`
	Language     string  `json:"language"`
}

// Manager probes the classifier endpoint when Initialize is called and
// remembers whether it is reachable; Classify does not initialize it.
type Manager struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger

	once        sync.Once
	mu          sync.Mutex
	initialized bool
	err         error
}

// New creates a Manager bound to a classifier HTTP endpoint. Pass an
// empty endpoint to disable classification entirely.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "analysis_manager"),
	}
}

// Initialize probes the classifier endpoint once; subsequent calls
// return the cached result.
func (m *Manager) Initialize(ctx context.Context) error {
	m.once.Do(func() {
		if m.endpoint == "" {
			m.mu.Lock()
			m.err = errNotConfigured
			m.mu.Unlock()
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"/health", nil)
		if err != nil {
			m.setErr(err)
			return
		}
		resp, err := m.client.Do(req)
		if err != nil {
			m.logger.Warn("classifier unavailable", "error", err)
			m.setErr(err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			m.setErr(errUnhealthy)
			return
		}
		m.mu.Lock()
		m.initialized = true
		m.mu.Unlock()
		m.logger.Info("classifier initialized")
	})
	return m.InitError()
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// InitError reports the initialization failure, if any.
func (m *Manager) InitError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Available reports whether classification calls can be made. It is
// false until Initialize has successfully probed the endpoint, so a
// caller can never race ahead of the health check.
func (m *Manager) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized && m.err == nil
}

// Classify submits text for classification. It refuses to call out
// until Initialize has successfully probed the endpoint.
func (m *Manager) Classify(ctx context.Context, text string) (Classification, error) {
	m.mu.Lock()
	ready := m.initialized && m.err == nil
	initErr := m.err
	m.mu.Unlock()
	if !ready {
		if initErr == nil {
			initErr = errNotInitialized
		}
		return Classification{}, initErr
	}
	if len(text) > 5000 {
		text = text[:5000]
	}

	payload, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/classify", jsonReader(payload))
	if err != nil {
		return Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Classification{}, err
	}
	defer resp.Body.Close()

	var out Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Classification{}, err
	}
	return out, nil
}

// Shutdown clears cached state so a later Initialize call re-probes
// the endpoint.
func (m *Manager) Shutdown() {
	m.once = sync.Once{}
	m.mu.Lock()
	m.initialized = false
	m.err = nil
	m.mu.Unlock()
}
