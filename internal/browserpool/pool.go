package browserpool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"

	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
	"github.com/ishaanrender/scrapegoat-render/internal/config"
)

// Stats summarizes the pool's current and historical operation.
type Stats struct {
	TotalEngines      int
	Active            int
	Available         int
	TotalAcquisitions int64
	AverageWaitMs     float64
	PeakConcurrentUse int
}

// Pool is a bounded set of headless Chromium engines with dead-engine
// replacement, sized from MaxConcurrentRequests (3 when unset),
// hard-capped at 5. A MaxConcurrentRequests of 4 or 5 is used as given,
// not reduced to 3.
type Pool struct {
	engines         chan *Engine
	size            int
	requestTimeout  time.Duration
	acquireTimeout  time.Duration
	contextPoolSize int
	stealthPages    bool
	blockedDomains  []string
	proxyURLs       []string
	proxyIdx        atomic.Int64
	logger          *slog.Logger

	mu             sync.Mutex
	waitSamplesMs  []float64 // bounded ring, cap 100
	peakConcurrent int
	activeCount    int

	totalAcquisitions atomic.Int64
	totalReplacements atomic.Int64
}

// clampSize defaults an unset/invalid size to 3 engines and hard-caps
// the result at 5 regardless of what was requested.
func clampSize(requested int) int {
	if requested <= 0 {
		requested = 3
	}
	if requested > 5 {
		requested = 5
	}
	return requested
}

// New launches cfg.MaxConcurrentRequests (clamped) Chromium engines
// and returns a ready Pool.
func New(cfg config.BrowserPoolConfig, logger *slog.Logger) (*Pool, error) {
	size := clampSize(cfg.MaxConcurrentRequests)
	logger = logger.With("component", "browser_pool")

	p := &Pool{
		engines:         make(chan *Engine, size),
		size:            size,
		requestTimeout:  cfg.RequestTimeout,
		acquireTimeout:  cfg.AcquireTimeout,
		contextPoolSize: cfg.ContextPoolSize,
		stealthPages:    cfg.Stealth,
		blockedDomains:  cfg.BlockedDomains,
		proxyURLs:       cfg.ProxyURLs,
		logger:          logger,
	}

	for i := 0; i < size; i++ {
		e, err := launchEngine(p.nextProxy(), p.contextPoolSize)
		if err != nil {
			p.Close()
			return nil, apierr.NewSystemError("browserpool.New", "failed to launch engine", err)
		}
		p.engines <- e
	}

	logger.Info("browser pool ready", "engines", size)
	return p, nil
}

func (p *Pool) nextProxy() string {
	if len(p.proxyURLs) == 0 {
		return ""
	}
	idx := p.proxyIdx.Add(1) % int64(len(p.proxyURLs))
	return p.proxyURLs[idx]
}

// Acquire blocks until an engine is available or acquireTimeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*Engine, error) {
	start := time.Now()

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	select {
	case e := <-p.engines:
		p.recordAcquire(time.Since(start))
		return e, nil
	case <-acquireCtx.Done():
		p.totalAcquisitions.Add(1)
		return nil, apierr.NewRenderingError("browserpool.Acquire", "pool exhausted", acquireCtx.Err())
	}
}

func (p *Pool) recordAcquire(wait time.Duration) {
	p.totalAcquisitions.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.activeCount++
	if p.activeCount > p.peakConcurrent {
		p.peakConcurrent = p.activeCount
	}

	p.waitSamplesMs = append(p.waitSamplesMs, float64(wait.Milliseconds()))
	if len(p.waitSamplesMs) > 100 {
		p.waitSamplesMs = p.waitSamplesMs[len(p.waitSamplesMs)-100:]
	}
}

// Release returns an engine to the pool, replacing it transparently if
// its underlying browser process has died.
func (p *Pool) Release(e *Engine) {
	p.mu.Lock()
	p.activeCount--
	p.mu.Unlock()

	if e.connected() {
		p.engines <- e
		return
	}

	p.logger.Warn("engine disconnected, replacing")
	p.totalReplacements.Add(1)

	replacement, err := launchEngine(p.nextProxy(), p.contextPoolSize)
	if err != nil {
		p.logger.Error("failed to replace dead engine", "error", err)
		// Put a still-dead engine back rather than shrinking the pool;
		// the next Acquire will find it disconnected on use and the
		// caller will surface a RenderingError.
		p.engines <- e
		return
	}
	p.engines <- replacement
}

// WithContext acquires an engine and a rendering context, runs fn, and
// always releases both, regardless of fn's outcome.
func (p *Pool) WithContext(ctx context.Context, fn func(page *rod.Page) error) error {
	engine, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(engine)

	rc, err := engine.acquireContext(p.requestTimeout, p.blockedDomains, p.stealthPages)
	if err != nil {
		return apierr.NewRenderingError("browserpool.WithContext", "failed to acquire rendering context", err)
	}
	defer engine.releaseContext(rc)

	return fn(rc.page)
}

// Stats reports the pool's current state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sum float64
	for _, s := range p.waitSamplesMs {
		sum += s
	}
	avg := 0.0
	if len(p.waitSamplesMs) > 0 {
		avg = sum / float64(len(p.waitSamplesMs))
	}

	return Stats{
		TotalEngines:      p.size,
		Active:            p.activeCount,
		Available:         p.size - p.activeCount,
		TotalAcquisitions: p.totalAcquisitions.Load(),
		AverageWaitMs:     avg,
		PeakConcurrentUse: p.peakConcurrent,
	}
}

// Close drains the pool and closes every engine, logging (not failing)
// on any individual close error.
func (p *Pool) Close() {
	close(p.engines)
	for e := range p.engines {
		e.closeContexts()
		if err := e.close(); err != nil {
			p.logger.Warn("engine close error", "error", err)
		}
	}
}
