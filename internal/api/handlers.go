package api

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
	"github.com/ishaanrender/scrapegoat-render/internal/batch"
	"github.com/ishaanrender/scrapegoat-render/internal/config"
	"github.com/ishaanrender/scrapegoat-render/internal/format"
	"github.com/ishaanrender/scrapegoat-render/internal/observability"
	"github.com/ishaanrender/scrapegoat-render/internal/scrapesvc"
	"github.com/ishaanrender/scrapegoat-render/internal/tasks"
)

// scrapeRequest is the POST /scrape body.
type scrapeRequest struct {
	URL                string  `json:"url"`
	OutputFormat       string  `json:"output_format"`
	TransformProvider  *string `json:"transform_provider,omitempty"`
	TransformModel     *string `json:"transform_model,omitempty"`
	CustomInstructions *string `json:"custom_instructions,omitempty"`
	UseCache           *bool   `json:"use_cache,omitempty"`
}

// batchRequest is the POST /scrape/batch body.
type batchRequest struct {
	Name                 string   `json:"name"`
	URLs                 []string `json:"urls"`
	OutputFormat         string   `json:"output_format"`
	ParallelLimit        int      `json:"parallel_limit"`
	DelayBetweenRequests int      `json:"delay_between_requests_ms"`
	UseCache             *bool    `json:"use_cache,omitempty"`
}

// taskView is the external projection of a Task: strict internal state
// in, snake_case API shape out. The artifact is deliberately absent —
// it is only served from the /result endpoint.
type taskView struct {
	TaskID           string         `json:"task_id"`
	URL              string         `json:"url"`
	OutputFormat     string         `json:"output_format"`
	Status           string         `json:"status"`
	ProgressPercent  int            `json:"progress_percent"`
	StatusMessage    string         `json:"status_message"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	ExecutionTimeMs  int64          `json:"execution_time_ms,omitempty"`
	ContentSizeBytes int            `json:"content_size_bytes,omitempty"`
	TokensUsed       int            `json:"tokens_used,omitempty"`
	ErrorMessage     *string        `json:"error_message,omitempty"`
	Metadata         map[string]any `json:"task_metadata,omitempty"`
}

func projectTask(t tasks.Task) taskView {
	v := taskView{
		TaskID:           t.ID.String(),
		URL:              t.URL,
		OutputFormat:     string(t.OutputFormat),
		Status:           t.Status.String(),
		ProgressPercent:  t.ProgressPercent,
		StatusMessage:    t.StatusMessage,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		CompletedAt:      t.CompletedAt,
		ExecutionTimeMs:  t.ExecutionTimeMs,
		ContentSizeBytes: t.ContentSizeBytes,
		TokensUsed:       t.TokensUsed,
		ErrorMessage:     t.ErrorMessage,
	}
	if t.Status == tasks.StatusCompleted {
		v.Metadata = map[string]any{
			"word_count":   t.TaskMetadata.WordCount,
			"reading_time": t.TaskMetadata.ReadingTime,
		}
		if t.TaskMetadata.MLAnalysis != nil {
			v.Metadata["ml_analysis"] = t.TaskMetadata.MLAnalysis
		}
	}
	return v
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	transformStatus := "disabled"
	if s.cfg.Transform.Enabled {
		transformStatus = "configured"
	}
	database := "disabled"
	if s.cache.Stats().RemoteEnabled {
		database = "connected"
	}
	mlStatus := "unavailable"
	if s.analyze != nil && s.analyze.Available() {
		mlStatus = "available"
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"api":                "ok",
		"version":            config.Version,
		"transform_provider": transformStatus,
		"database":           database,
		"ml_pipeline":        mlStatus,
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	st := s.tasks.Stats()
	pool := s.pool.Stats()

	terminal := st.TotalCompleted + st.TotalFailed
	successRate := 0.0
	if terminal > 0 {
		successRate = float64(st.TotalCompleted) / float64(terminal)
	}

	return ok(c, fiber.StatusOK, fiber.Map{
		"active_tasks":    st.Active,
		"completed_tasks": st.TotalCompleted,
		"failed_tasks":    st.TotalFailed,
		"cancelled_tasks": st.TotalCancelled,
		"success_rate":    successRate,
		"browser_pool": fiber.Map{
			"total_engines": pool.TotalEngines,
			"active":        pool.Active,
			"available":     pool.Available,
		},
	})
}

func (s *Server) handleBrowserStats(c *fiber.Ctx) error {
	pool := s.pool.Stats()
	return ok(c, fiber.StatusOK, fiber.Map{
		"total_engines":       pool.TotalEngines,
		"active":              pool.Active,
		"available":           pool.Available,
		"total_acquisitions":  pool.TotalAcquisitions,
		"average_wait_ms":     pool.AverageWaitMs,
		"peak_concurrent_use": pool.PeakConcurrentUse,
	})
}

func (s *Server) handleCacheStats(c *fiber.Ctx) error {
	st := s.cache.Stats()
	return ok(c, fiber.StatusOK, fiber.Map{
		"memory_entries": st.MemoryEntries,
		"memory_bytes":   st.MemoryBytes,
		"remote_enabled": st.RemoteEnabled,
		"hit_rate":       st.HitRate(),
		"total_requests": st.TotalHits + st.TotalMisses,
	})
}

func (s *Server) handleMemoryStats(c *fiber.Ctx) error {
	stats, err := observability.ReadMemoryStats(c.Context(), 0)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to read process memory", nil)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"rss_mb":           float64(stats.RSSBytes) / (1024 * 1024),
		"vms_mb":           float64(stats.VMSBytes) / (1024 * 1024),
		"percent_of_limit": stats.PercentOfLimit,
	})
}

func (s *Server) handleCreateTask(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body", nil)
	}

	if err := config.ValidateURL(req.URL); err != nil {
		return respondError(c, apierr.NewValidationError("api.handleCreateTask", "url", "invalid url", err))
	}
	outputFormat, err := format.Parse(req.OutputFormat)
	if err != nil {
		return respondError(c, apierr.NewValidationError("api.handleCreateTask", "output_format", "unsupported output format", err))
	}

	id, taskCtx := s.tasks.Add(tasks.InitialFields{
		URL:                req.URL,
		OutputFormat:       outputFormat,
		TransformProvider:  req.TransformProvider,
		TransformModel:     req.TransformModel,
		CustomInstructions: req.CustomInstructions,
	})
	s.metrics.TasksCreated.Inc()

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	go s.runTask(taskCtx, id, scrapesvc.Input{
		URL:                req.URL,
		OutputFormat:       outputFormat,
		TransformProvider:  req.TransformProvider,
		TransformModel:     req.TransformModel,
		CustomInstructions: req.CustomInstructions,
		UseCache:           useCache,
		CacheTTL:           s.cfg.Cache.DefaultTTL,
	})

	return ok(c, fiber.StatusCreated, fiber.Map{
		"task_id": id.String(),
		"status":  tasks.StatusPending.String(),
	})
}

// runTask drives one asynchronous scrape to its terminal transition.
func (s *Server) runTask(ctx context.Context, id uuid.UUID, in scrapesvc.Input) {
	start := time.Now()
	progress := s.tasks.ProgressFunc(id)
	progress(0, "starting scrape")

	result, err := s.scraper.Scrape(ctx, in, progress)
	s.metrics.TaskDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Cancelled externally: the registry already holds the
			// terminal cancelled state, Fail is a no-op.
			s.metrics.TasksCompleted.WithLabelValues("cancelled").Inc()
		} else {
			s.metrics.TasksCompleted.WithLabelValues("failed").Inc()
		}
		s.tasks.Fail(id, err.Error())
		s.logger.Warn("scrape failed", "task_id", id, "url", in.URL, "error", err)
		return
	}

	s.tasks.Complete(id, tasks.ResultFields{
		Artifact: result.Artifact,
		Metadata: tasks.Metadata{
			WordCount:   result.WordCount,
			ReadingTime: result.ReadingTime,
			MLAnalysis:  result.Analysis,
		},
		ExecutionTimeMs:  result.ExecutionTimeMs,
		ContentSizeBytes: result.ContentSizeBytes,
		TokensUsed:       result.TokensUsed,
	})
	s.metrics.TasksCompleted.WithLabelValues("completed").Inc()
}

func (s *Server) taskID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func (s *Server) handleTaskStatus(c *fiber.Ctx) error {
	id, valid := s.taskID(c)
	if !valid {
		return fail(c, fiber.StatusNotFound, "task not found", nil)
	}
	task, found := s.tasks.Get(id)
	if !found {
		return fail(c, fiber.StatusNotFound, "task not found", nil)
	}
	return ok(c, fiber.StatusOK, projectTask(task))
}

func (s *Server) handleTaskResult(c *fiber.Ctx) error {
	id, valid := s.taskID(c)
	if !valid {
		return fail(c, fiber.StatusNotFound, "task not found", nil)
	}
	task, found := s.tasks.Get(id)
	if !found {
		return fail(c, fiber.StatusNotFound, "task not found", nil)
	}
	if task.Status != tasks.StatusCompleted || task.ResultArtifact == nil {
		return fail(c, fiber.StatusBadRequest, "task is not completed", map[string]any{
			"status": task.Status.String(),
		})
	}

	view := projectTask(task)
	return ok(c, fiber.StatusOK, fiber.Map{
		"task_id":  task.ID.String(),
		"result":   *task.ResultArtifact,
		"metadata": view.Metadata,
	})
}

func (s *Server) handleTaskCancel(c *fiber.Ctx) error {
	id, valid := s.taskID(c)
	if !valid {
		return fail(c, fiber.StatusNotFound, "task not found", nil)
	}
	if !s.tasks.Cancel(id) {
		return fail(c, fiber.StatusNotFound, "task not found or already completed", nil)
	}
	return okMessage(c, fiber.StatusOK, "task cancelled", fiber.Map{"task_id": id.String()})
}

func (s *Server) handleListTasks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	active := s.tasks.ListActive()
	completed := s.tasks.ListCompleted(limit)

	views := make([]taskView, 0, len(active)+len(completed))
	for _, t := range active {
		views = append(views, projectTask(t))
	}
	for _, t := range completed {
		views = append(views, projectTask(t))
	}
	// Newest first across both partitions.
	for i := 0; i < len(views); i++ {
		for j := i + 1; j < len(views); j++ {
			if views[j].CreatedAt.After(views[i].CreatedAt) {
				views[i], views[j] = views[j], views[i]
			}
		}
	}
	if len(views) > limit {
		views = views[:limit]
	}

	return ok(c, fiber.StatusOK, fiber.Map{"tasks": views, "count": len(views)})
}

func (s *Server) handleCreateBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body", nil)
	}

	if len(req.URLs) == 0 {
		return respondError(c, apierr.NewValidationError("api.handleCreateBatch", "urls", "urls must not be empty", nil))
	}
	if len(req.URLs) > 100 {
		return respondError(c, apierr.NewValidationError("api.handleCreateBatch", "urls", "too many urls in one batch (max 100)", nil))
	}
	for _, u := range req.URLs {
		if err := config.ValidateURL(u); err != nil {
			return respondError(c, apierr.NewValidationError("api.handleCreateBatch", "urls", "invalid url "+u, err))
		}
	}
	outputFormat, err := format.Parse(req.OutputFormat)
	if err != nil {
		return respondError(c, apierr.NewValidationError("api.handleCreateBatch", "output_format", "unsupported output format", err))
	}
	if req.ParallelLimit <= 0 {
		req.ParallelLimit = 1
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}
	job := s.batches.Submit(req.Name, req.URLs, batch.ConfigSnapshot{
		OutputFormat:         string(outputFormat),
		ParallelLimit:        req.ParallelLimit,
		DelayBetweenRequests: time.Duration(req.DelayBetweenRequests) * time.Millisecond,
		UseCache:             useCache,
	})

	go func() {
		if err := s.batches.Start(context.Background(), job.BatchID); err != nil {
			s.logger.Warn("batch run failed", "batch_id", job.BatchID, "error", err)
		}
	}()

	return ok(c, fiber.StatusCreated, fiber.Map{
		"batch_id": job.BatchID.String(),
		"status":   batch.StatusPending.String(),
		"urls":     len(req.URLs),
	})
}

func (s *Server) handleBatchStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, "batch not found", nil)
	}
	view, found := s.batches.Get(id)
	if !found {
		return fail(c, fiber.StatusNotFound, "batch not found", nil)
	}

	// Rollups and per-URL errors only; artifacts stay behind the
	// per-task result endpoint.
	succeeded := make([]string, 0, len(view.Results))
	for u := range view.Results {
		succeeded = append(succeeded, u)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"batch_id":             view.BatchID.String(),
		"name":                 view.Name,
		"status":               view.Status.String(),
		"total_urls":           len(view.URLs),
		"completed_tasks":      view.Completed,
		"failed_tasks":         view.Failed,
		"running_tasks":        view.Running,
		"pending_tasks":        view.Pending,
		"progress_percent":     batchProgress(view),
		"succeeded_urls":       succeeded,
		"errors":               view.Errors,
		"created_at":           view.CreatedAt,
		"updated_at":           view.UpdatedAt,
		"completed_at":         view.CompletedAt,
		"estimated_completion": view.EstimatedCompletion,
	})
}

func batchProgress(v batch.View) int {
	if len(v.URLs) == 0 {
		return 100
	}
	return (v.Completed + v.Failed) * 100 / len(v.URLs)
}

func (s *Server) handleBatchCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, "batch not found", nil)
	}
	if !s.batches.Cancel(id) {
		return fail(c, fiber.StatusNotFound, "batch not found or not running", nil)
	}
	return okMessage(c, fiber.StatusOK, "batch cancelled", fiber.Map{"batch_id": id.String()})
}

func (s *Server) handleCacheClear(c *fiber.Ctx) error {
	cleared, freed := s.cache.ClearAll(c.Context())
	return ok(c, fiber.StatusOK, fiber.Map{
		"cleared_entries": cleared,
		"freed_bytes":     freed,
	})
}

func (s *Server) handleCacheDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	found := s.cache.Delete(c.Context(), key)
	if !found {
		return fail(c, fiber.StatusNotFound, "cache key not found", nil)
	}
	return okMessage(c, fiber.StatusOK, "cache entry deleted", fiber.Map{"key": key})
}

func (s *Server) handleMaintenanceGC(c *fiber.Ctx) error {
	runtime.GC()
	debug.FreeOSMemory()

	stats, err := observability.ReadMemoryStats(c.Context(), 0)
	if err != nil {
		return okMessage(c, fiber.StatusOK, "garbage collection complete", nil)
	}
	return okMessage(c, fiber.StatusOK, "garbage collection complete", fiber.Map{
		"rss_mb": float64(stats.RSSBytes) / (1024 * 1024),
	})
}

func (s *Server) handleMaintenanceOptimize(c *fiber.Ctx) error {
	removedClients := s.limiter.Sweep()
	return okMessage(c, fiber.StatusOK, "optimization complete", fiber.Map{
		"rate_limit_clients_removed": removedClients,
		"cache":                      s.cache.Stats(),
		"browser_pool":               s.pool.Stats(),
	})
}

func (s *Server) handleMaintenanceCleanup(c *fiber.Ctx) error {
	removedTasks := s.tasks.SweepOlderThan(s.cfg.Tasks.SweepMaxAge)
	removedClients := s.limiter.Sweep()
	return okMessage(c, fiber.StatusOK, "cleanup complete", fiber.Map{
		"tasks_removed":              removedTasks,
		"rate_limit_clients_removed": removedClients,
	})
}
