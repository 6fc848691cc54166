// Package scrapesvc orchestrates one scrape: cache lookup, browser
// render, content extraction, optional LLM transform, and format
// rendering. Each call owns one rendering context for its duration.
package scrapesvc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/errgroup"

	"github.com/PuerkitoBio/goquery"

	"github.com/ishaanrender/scrapegoat-render/internal/analysis"
	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
	"github.com/ishaanrender/scrapegoat-render/internal/browserpool"
	"github.com/ishaanrender/scrapegoat-render/internal/cache"
	"github.com/ishaanrender/scrapegoat-render/internal/config"
	"github.com/ishaanrender/scrapegoat-render/internal/extract"
	"github.com/ishaanrender/scrapegoat-render/internal/format"
	"github.com/ishaanrender/scrapegoat-render/internal/transform"
)

// Input is one scrape request.
type Input struct {
	URL                string
	OutputFormat       format.OutputFormat
	TransformProvider  *string
	TransformModel     *string
	CustomInstructions *string
	UseCache           bool
	CacheTTL           time.Duration
}

// Result is the outcome of one Scrape call.
type Result struct {
	Artifact         string
	WordCount        int
	ReadingTime      int
	ExecutionTimeMs  int64
	ContentSizeBytes int
	TokensUsed       int
	FromCache        bool
	Analysis         map[string]any
}

// ProgressFunc reports incremental progress (0-100) with a human
// readable status message.
type ProgressFunc func(percent int, message string)

// Service ties the Cache, Browser Pool, Content Extractor and
// Transform client into the scrape pipeline.
type Service struct {
	pool      *browserpool.Pool
	cache     *cache.Cache
	transform *transform.Client
	analyzer  *analysis.Manager

	maxContentSize int
	transformCfg   config.TransformConfig
}

// New builds a Service. transformer and analyzer may each be nil to
// disable the optional transform and classification steps entirely.
func New(pool *browserpool.Pool, c *cache.Cache, transformer *transform.Client, analyzer *analysis.Manager, maxContentSize int, transformCfg config.TransformConfig) *Service {
	return &Service{
		pool:           pool,
		cache:          c,
		transform:      transformer,
		analyzer:       analyzer,
		maxContentSize: maxContentSize,
		transformCfg:   transformCfg,
	}
}

// Scrape implements the eight-step pipeline: cache check, browser
// acquire, navigate, harvest, extract, optional transform, render,
// cache write.
func (s *Service) Scrape(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	fp := cache.Fingerprint(in.URL, string(in.OutputFormat), in.TransformProvider, in.TransformProvider != nil, in.CustomInstructions)

	if in.UseCache {
		if raw, ok := s.cache.Get(ctx, fp); ok {
			progress(100, "served from cache")
			return Result{
				Artifact:         string(raw),
				ContentSizeBytes: len(raw),
				TokensUsed:       len(raw) / 4,
				FromCache:        true,
			}, nil
		}
	}

	start := time.Now()
	progress(10, "initializing browser")

	var (
		html    string
		title   string
		baseURL *url.URL
	)

	err := s.pool.WithContext(ctx, func(page *rod.Page) error {
		page = page.Context(ctx)

		respEvent := &proto.NetworkResponseReceived{}
		wait := page.WaitEvent(respEvent)

		navErr := page.Navigate(in.URL)
		if navErr != nil {
			return apierr.NewRenderingError("scrapesvc.Scrape", "navigation failed", navErr)
		}
		wait()
		_ = page.WaitDOMStable(2*time.Second, 0)

		if respEvent.Response != nil && respEvent.Response.Status >= 400 {
			return &HTTPStatusError{URL: in.URL, Status: respEvent.Response.Status}
		}

		info, infoErr := page.Info()
		if infoErr == nil {
			title = info.Title
		}

		htmlOut, htmlErr := page.HTML()
		if htmlErr != nil {
			return apierr.NewRenderingError("scrapesvc.Scrape", "failed to read rendered HTML", htmlErr)
		}
		html = htmlOut

		parsed, parseErr := url.Parse(in.URL)
		if parseErr == nil {
			baseURL = parsed
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if len(html) > s.maxContentSize {
		html = html[:s.maxContentSize]
	}

	progress(40, "content fetched")
	progress(70, "extracting content")

	var extraction extract.Extraction
	var structured []extract.StructuredDataItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		extraction = extract.Extract(html, baseURL)
		return gctx.Err()
	})
	g.Go(func() error {
		doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))
		if docErr != nil {
			return nil // structured data is best-effort; a parse failure here isn't fatal
		}
		structured = extract.Structured(doc)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return Result{}, apierr.NewExtractionError("scrapesvc.Scrape", "extraction failed", err)
	}

	if extraction.Title == "" {
		extraction.Title = title
	}
	extract.Backfill(&extraction, structured)

	var classified map[string]any
	if s.analyzer != nil && s.analyzer.Available() {
		// Best-effort: a classifier outage never fails the scrape.
		if cls, clsErr := s.analyzer.Classify(ctx, extraction.MainContent); clsErr == nil {
			classified = map[string]any{
				"content_type":  cls.ContentType,
				"quality_score": cls.QualityScore,
				"language":      cls.Language,
			}
		}
	}

	content := extraction.MainContent
	tokensUsed := 0

	if in.TransformProvider != nil && in.OutputFormat == format.Markdown && s.transform != nil {
		progress(80, "transforming content")
		truncated := content
		if limit := s.transformCfg.MaxInputRunes; limit > 0 {
			if runes := []rune(truncated); len(runes) > limit {
				truncated = string(runes[:limit])
			}
		}

		instructions := ""
		if in.CustomInstructions != nil {
			instructions = *in.CustomInstructions
		}
		model := s.transformCfg.DefaultModel
		if in.TransformModel != nil {
			model = *in.TransformModel
		}

		tr, trErr := s.transform.Run(ctx, transform.Request{
			Provider:     transform.Provider(*in.TransformProvider),
			Endpoint:     s.transformCfg.Endpoint,
			Model:        model,
			Content:      truncated,
			Instructions: instructions,
		})
		if trErr != nil {
			// Non-fatal: the original extraction survives a transform failure.
			progress(85, fmt.Sprintf("transform failed, keeping original content: %v", trErr))
		} else {
			extraction.MainContent = tr.Output
			tokensUsed = tr.TokensUsed
		}
	}

	progress(95, "rendering output")
	artifact, renderErr := extract.Render(extraction, extract.PageData{URL: in.URL, ExtractedAt: time.Now()}, in.OutputFormat)
	if renderErr != nil {
		return Result{}, apierr.NewExtractionError("scrapesvc.Scrape", "render failed", renderErr)
	}
	if tokensUsed == 0 {
		tokensUsed = len(artifact) / 4
	}

	if ctx.Err() != nil {
		// Cancelled work must not populate the cache.
		return Result{}, ctx.Err()
	}
	s.cache.Set(fp, []byte(artifact), in.CacheTTL)

	return Result{
		Artifact:         artifact,
		WordCount:        extraction.WordCount,
		ReadingTime:      extraction.ReadingTimeMinutes,
		ExecutionTimeMs:  time.Since(start).Milliseconds(),
		ContentSizeBytes: len(artifact),
		TokensUsed:       tokensUsed,
		FromCache:        false,
		Analysis:         classified,
	}, nil
}

// HTTPStatusError reports a navigation response with status >= 400.
type HTTPStatusError struct {
	URL    string
	Status int
}

func (e *HTTPStatusError) Error() string {
	return "scrapesvc: " + e.URL + " returned status " + strconv.Itoa(e.Status)
}
