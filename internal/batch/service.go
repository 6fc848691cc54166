// Package batch fans a list of URLs out across one semaphore-bounded
// worker set, sized per batch rather than per process.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ishaanrender/scrapegoat-render/internal/format"
	"github.com/ishaanrender/scrapegoat-render/internal/scrapesvc"
	"github.com/ishaanrender/scrapegoat-render/internal/tasks"
)

// ErrNotFound is returned when a batch ID has no registered job.
var ErrNotFound = errors.New("batch: job not found")

// Service runs batches of scrapes, one goroutine per URL gated by a
// per-batch semaphore.
type Service struct {
	scraper *scrapesvc.Service
	taskMgr *tasks.Manager
	logger  *slog.Logger

	mu      sync.Mutex
	jobs    map[uuid.UUID]*Job
	cancels map[uuid.UUID]context.CancelFunc
}

// New builds a Service.
func New(scraper *scrapesvc.Service, taskMgr *tasks.Manager, logger *slog.Logger) *Service {
	return &Service{
		scraper: scraper,
		taskMgr: taskMgr,
		logger:  logger.With("component", "batch_service"),
		jobs:    make(map[uuid.UUID]*Job),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit registers a new batch job in Pending status and returns it
// without starting execution.
func (s *Service) Submit(name string, urls []string, cfg ConfigSnapshot) *Job {
	job := NewJob(name, urls, cfg)

	s.mu.Lock()
	s.jobs[job.BatchID] = job
	s.mu.Unlock()

	return job
}

// Start transitions a batch to Running and fans its URLs out across a
// semaphore sized to Config.ParallelLimit.
func (s *Service) Start(ctx context.Context, batchID uuid.UUID) error {
	s.mu.Lock()
	job, ok := s.jobs[batchID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancels[batchID] = cancel
	s.mu.Unlock()

	// Release runCtx (and every per-URL watcher hanging off it) once
	// the batch finishes, not only on explicit Cancel, and drop the
	// cancel entry so a finished batch can no longer be cancelled.
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, batchID)
		s.mu.Unlock()
	}()

	limit := job.Config.ParallelLimit
	if limit <= 0 {
		limit = 1
	}

	job.SetStatus(StatusRunning)
	job.EstimatedCompletion = time.Now().Add(time.Duration(len(job.URLs)) * 10 * time.Second / time.Duration(limit))

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for _, url := range job.URLs {
		url := url
		if err := sem.Acquire(runCtx, 1); err != nil {
			// Context cancelled before this URL could start; the
			// remaining URLs are simply never attempted.
			job.RecordError(url, "batch cancelled before scrape started")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			s.runOne(runCtx, job, url)
		}()
	}

	wg.Wait()

	if runCtx.Err() != nil {
		// Cancel already marked the job; don't overwrite the terminal state.
		return nil
	}
	if job.Failed > 0 {
		job.SetStatus(StatusCompletedWithErrors)
	} else {
		job.SetStatus(StatusCompleted)
	}
	return nil
}

func (s *Service) runOne(ctx context.Context, job *Job, url string) {
	job.MarkURLStarted()

	if job.Config.DelayBetweenRequests > 0 {
		select {
		case <-time.After(job.Config.DelayBetweenRequests):
		case <-ctx.Done():
			job.RecordError(url, "cancelled")
			return
		}
	}

	taskID, taskCtx := s.taskMgr.Add(tasks.InitialFields{
		URL:          url,
		OutputFormat: format.OutputFormat(job.Config.OutputFormat),
	})
	progress := s.taskMgr.ProgressFunc(taskID)

	result, err := s.scraper.Scrape(combineContexts(ctx, taskCtx), scrapesvc.Input{
		URL:          url,
		OutputFormat: format.OutputFormat(job.Config.OutputFormat),
		UseCache:     job.Config.UseCache,
	}, progress)

	if err != nil {
		s.taskMgr.Fail(taskID, err.Error())
		job.RecordError(url, err.Error())
		return
	}

	s.taskMgr.Complete(taskID, tasks.ResultFields{
		Artifact:         result.Artifact,
		ExecutionTimeMs:  result.ExecutionTimeMs,
		ContentSizeBytes: result.ContentSizeBytes,
		TokensUsed:       result.TokensUsed,
	})
	job.RecordResult(url, result.Artifact)
}

// Cancel requests cancellation of all outstanding goroutines in a batch.
func (s *Service) Cancel(batchID uuid.UUID) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[batchID]
	job := s.jobs[batchID]
	s.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	if job != nil {
		job.SetStatus(StatusCancelled)
	}
	return true
}

// Get returns a batch's current snapshot.
func (s *Service) Get(batchID uuid.UUID) (View, bool) {
	s.mu.Lock()
	job, ok := s.jobs[batchID]
	s.mu.Unlock()
	if !ok {
		return View{}, false
	}
	return job.Snapshot(), true
}

// combineContexts returns a context cancelled when either parent is
// cancelled: the batch run's context or the individual task's context
// (set up so a per-task Cancel call also stops that one scrape).
func combineContexts(a, b context.Context) context.Context {
	ctx, cancel := context.WithCancel(a)
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		}
		cancel()
	}()
	return ctx
}
