package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishaanrender/scrapegoat-render/internal/analysis"
	"github.com/ishaanrender/scrapegoat-render/internal/api"
	"github.com/ishaanrender/scrapegoat-render/internal/batch"
	"github.com/ishaanrender/scrapegoat-render/internal/browserpool"
	"github.com/ishaanrender/scrapegoat-render/internal/cache"
	"github.com/ishaanrender/scrapegoat-render/internal/config"
	"github.com/ishaanrender/scrapegoat-render/internal/observability"
	"github.com/ishaanrender/scrapegoat-render/internal/ratelimit"
	"github.com/ishaanrender/scrapegoat-render/internal/scrapesvc"
	"github.com/ishaanrender/scrapegoat-render/internal/tasks"
	"github.com/ishaanrender/scrapegoat-render/internal/transform"
)

var (
	cfgFile string
	port    int
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scrapegoatd",
		Short: "ScrapeGoat Render — intelligent web-scraping orchestrator",
		Long: `scrapegoatd serves the render API: URL jobs in, rendered and
restructured artifacts out.

Features:
  • Bounded pool of headless Chromium engines with dead-engine replacement
  • Request-level resource filtering (trackers, non-essential images, fonts, media)
  • Two-tier fingerprint-keyed artifact cache (memory + optional Redis)
  • Per-client sliding-window rate limits with abuse scoring
  • Markdown, JSON, XML, CSV, HTML, and plain-text output formats
  • Optional LLM post-structuring and ML page classification
  • Batch fan-out under a per-batch concurrency semaphore
  • Prometheus metrics endpoint`,
		RunE:    runServer,
		Version: config.Version,
	}

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "override server port")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	logger.Info("starting scrapegoatd", "version", config.Version, "port", cfg.Server.Port)

	metrics := observability.NewMetrics()

	pool, err := browserpool.New(cfg.BrowserPool, logger)
	if err != nil {
		return fmt.Errorf("start browser pool: %w", err)
	}
	defer pool.Close()

	artifactCache := cache.New(cfg.Cache, logger)
	limiter := ratelimit.New(cfg.RateLimit.MaxRequestSize)

	var transformer *transform.Client
	if cfg.Transform.Enabled {
		transformer = transform.New(cfg.Transform.Timeout, logger)
	}

	var analyzer *analysis.Manager
	if cfg.Analysis.Enabled {
		analyzer = analysis.New(cfg.Analysis.Endpoint, cfg.Analysis.Timeout, logger)
	}

	taskMgr := tasks.NewManager(cfg.Tasks.MaxCompletedHistory)
	scraper := scrapesvc.New(pool, artifactCache, transformer, analyzer,
		cfg.BrowserPool.MaxContentSize, cfg.Transform)
	batches := batch.New(scraper, taskMgr, logger)

	server := api.New(cfg, logger, taskMgr, scraper, batches, pool, artifactCache, limiter, metrics, analyzer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go taskMgr.Run(ctx, cfg.Tasks.SweepInterval, cfg.Tasks.SweepMaxAge)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ps := pool.Stats()
				metrics.PoolEngines.Set(float64(ps.TotalEngines))
				metrics.PoolActive.Set(float64(ps.Active))
				metrics.PoolAcquisitions.Set(float64(ps.TotalAcquisitions))
				metrics.PoolWaitMs.Set(ps.AverageWaitMs)

				cs := artifactCache.Stats()
				metrics.CacheEntries.Set(float64(cs.MemoryEntries))
				metrics.CacheBytes.Set(float64(cs.MemoryBytes))
				metrics.CacheHits.Set(float64(cs.TotalHits))
				metrics.CacheMisses.Set(float64(cs.TotalMisses))
			}
		}
	}()
	if analyzer != nil {
		go func() {
			if initErr := analyzer.Initialize(ctx); initErr != nil {
				logger.Warn("analysis pipeline unavailable", "error", initErr)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
