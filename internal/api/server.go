// Package api is the HTTP gateway: routing, the response envelope,
// admission control, security headers and CORS, all in front of the
// scraping core. Handlers validate, project internal task state into
// the API shape, and delegate; no scraping logic lives here.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ishaanrender/scrapegoat-render/internal/analysis"
	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
	"github.com/ishaanrender/scrapegoat-render/internal/batch"
	"github.com/ishaanrender/scrapegoat-render/internal/browserpool"
	"github.com/ishaanrender/scrapegoat-render/internal/cache"
	"github.com/ishaanrender/scrapegoat-render/internal/config"
	"github.com/ishaanrender/scrapegoat-render/internal/observability"
	"github.com/ishaanrender/scrapegoat-render/internal/ratelimit"
	"github.com/ishaanrender/scrapegoat-render/internal/scrapesvc"
	"github.com/ishaanrender/scrapegoat-render/internal/tasks"
)

// Server wires every core component behind the versioned HTTP surface.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	app     *fiber.App
	tasks   *tasks.Manager
	scraper *scrapesvc.Service
	batches *batch.Service
	pool    *browserpool.Pool
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	metrics *observability.Metrics
	analyze *analysis.Manager
}

// New builds the fiber app and registers every route. All dependencies
// are injected; the server owns none of them except the fiber.App.
func New(cfg *config.Config, logger *slog.Logger, taskMgr *tasks.Manager, scraper *scrapesvc.Service, batches *batch.Service, pool *browserpool.Pool, c *cache.Cache, limiter *ratelimit.Limiter, metrics *observability.Metrics, analyze *analysis.Manager) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             int(cfg.Server.MaxRequestSize),
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return fail(c, code, "internal error", nil)
		},
	})

	s := &Server{
		cfg:     cfg,
		logger:  logger.With("component", "api"),
		app:     app,
		tasks:   taskMgr,
		scraper: scraper,
		batches: batches,
		pool:    pool,
		cache:   c,
		limiter: limiter,
		metrics: metrics,
		analyze: analyze,
	}

	s.app.Use(s.securityHeaders)
	s.app.Use(s.corsMiddleware)
	s.registerRoutes()
	return s
}

// securityHeaders attaches the fixed response-header set to every
// response, successful or not.
func (s *Server) securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("X-Frame-Options", "DENY")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	return c.Next()
}

// corsMiddleware enforces the explicit origin allow-list; credentials
// stay disabled, so no Allow-Credentials header is ever emitted.
func (s *Server) corsMiddleware(c *fiber.Ctx) error {
	origin := c.Get("Origin")
	if origin != "" {
		for _, allowed := range s.cfg.Server.AllowedOrigins {
			if allowed == "*" || strings.EqualFold(allowed, origin) {
				c.Set("Access-Control-Allow-Origin", allowed)
				c.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Set("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}
	}
	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Next()
}

// rateLimited wraps a handler with admission control for one endpoint
// class: sliding windows, burst cap, abuse score, and the rate-limit
// response-header contract.
func (s *Server) rateLimited(class ratelimit.EndpointClass, handler fiber.Handler) fiber.Handler {
	if !s.cfg.RateLimit.Enabled {
		return handler
	}
	return func(c *fiber.Ctx) error {
		req, err := adaptor.ConvertRequest(c, false)
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to read request", nil)
		}

		decision := s.limiter.Admit(req, class)
		if !decision.Allowed {
			s.metrics.RateLimitBlocked.WithLabelValues(string(class)).Inc()
			if req.ContentLength > s.cfg.RateLimit.MaxRequestSize {
				return fail(c, fiber.StatusRequestEntityTooLarge, "request body too large", nil)
			}
			return respondError(c, apierr.NewAdmissionError("api.rateLimited", "rate limit exceeded", decision.RetryAfterSeconds))
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))
		if decision.Warning {
			c.Set("X-RateLimit-Warning", "approaching rate limit")
		}
		return handler(c)
	}
}

func (s *Server) registerRoutes() {
	def := ratelimit.ClassDefault
	scr := ratelimit.ClassScraping
	mnt := ratelimit.ClassMaintenance

	s.app.Get("/health", s.rateLimited(def, s.handleHealth))
	s.app.Get("/stats", s.rateLimited(def, s.handleStats))
	s.app.Get("/stats/browser", s.rateLimited(def, s.handleBrowserStats))
	s.app.Get("/stats/cache", s.rateLimited(def, s.handleCacheStats))
	s.app.Get("/stats/memory", s.rateLimited(def, s.handleMemoryStats))

	s.app.Post("/scrape", s.rateLimited(scr, s.handleCreateTask))
	s.app.Post("/scrape/batch", s.rateLimited(scr, s.handleCreateBatch))
	s.app.Get("/scrape/batch/:id", s.rateLimited(def, s.handleBatchStatus))
	s.app.Delete("/scrape/batch/:id", s.rateLimited(scr, s.handleBatchCancel))
	s.app.Get("/scrape/:id", s.rateLimited(def, s.handleTaskStatus))
	s.app.Get("/scrape/:id/result", s.rateLimited(def, s.handleTaskResult))
	s.app.Delete("/scrape/:id", s.rateLimited(scr, s.handleTaskCancel))

	s.app.Get("/tasks", s.rateLimited(def, s.handleListTasks))

	s.app.Delete("/cache/:key", s.rateLimited(mnt, s.handleCacheDelete))
	s.app.Delete("/cache", s.rateLimited(mnt, s.handleCacheClear))

	s.app.Post("/maintenance/gc", s.rateLimited(mnt, s.handleMaintenanceGC))
	s.app.Post("/maintenance/optimize", s.rateLimited(mnt, s.handleMaintenanceOptimize))
	s.app.Post("/maintenance/cleanup", s.rateLimited(mnt, s.handleMaintenanceCleanup))

	if s.cfg.Metrics.Enabled {
		s.app.Get(s.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// App exposes the underlying fiber app, primarily for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.logger.Info("http gateway listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests with a deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	return s.app.ShutdownWithTimeout(time.Until(deadline))
}
