package batch

import (
	"testing"
	"time"
)

func newTestJob() *Job {
	return NewJob("nightly", []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}, ConfigSnapshot{ParallelLimit: 2, OutputFormat: "markdown"})
}

func TestNewJobStartsPending(t *testing.T) {
	job := newTestJob()

	if job.Status != StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	completed, failed, running, pending := job.Rollup()
	if completed+failed+running+pending != len(job.URLs) {
		t.Error("rollup sum must equal the URL count")
	}
	if pending != 3 {
		t.Errorf("pending = %d, want 3", pending)
	}
}

func TestRollupInvariantHoldsThroughRecording(t *testing.T) {
	job := newTestJob()

	job.RecordResult("https://example.com/a", "# A")
	job.RecordError("https://example.com/b", "navigation timeout")

	completed, failed, running, pending := job.Rollup()
	if completed != 1 || failed != 1 {
		t.Errorf("completed=%d failed=%d, want 1/1", completed, failed)
	}
	if completed+failed+running+pending != len(job.URLs) {
		t.Error("rollup sum invariant violated after recording")
	}
}

func TestProgressPercent(t *testing.T) {
	job := newTestJob()

	if p := job.ProgressPercent(); p != 0 {
		t.Errorf("initial progress = %d", p)
	}

	job.RecordResult("https://example.com/a", "# A")
	if p := job.ProgressPercent(); p != 33 {
		t.Errorf("progress after 1/3 = %d, want 33", p)
	}

	job.RecordResult("https://example.com/b", "# B")
	job.RecordError("https://example.com/c", "boom")
	if p := job.ProgressPercent(); p != 100 {
		t.Errorf("progress after 3/3 = %d, want 100", p)
	}
}

func TestRunningRollup(t *testing.T) {
	job := newTestJob()

	job.MarkURLStarted()
	job.MarkURLStarted()

	completed, failed, running, pending := job.Rollup()
	if running != 2 || pending != 1 {
		t.Errorf("running=%d pending=%d, want 2/1", running, pending)
	}

	job.RecordResult("https://example.com/a", "# A")
	completed, failed, running, pending = job.Rollup()
	if completed != 1 || running != 1 || pending != 1 {
		t.Errorf("after one completion: completed=%d running=%d pending=%d", completed, running, pending)
	}
	if completed+failed+running+pending != len(job.URLs) {
		t.Error("rollup sum invariant violated with running tasks")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	job := newTestJob()
	job.RecordResult("https://example.com/a", "# A")

	view := job.Snapshot()
	view.Results["https://example.com/a"] = "tampered"

	if job.Results["https://example.com/a"] != "# A" {
		t.Error("mutating a snapshot must not affect the job")
	}
}

func TestSetStatusStampsCompletion(t *testing.T) {
	job := newTestJob()

	job.SetStatus(StatusRunning)
	if job.CompletedAt != nil {
		t.Error("running jobs must not carry CompletedAt")
	}

	job.SetStatus(StatusCompletedWithErrors)
	if job.CompletedAt == nil {
		t.Error("terminal status must stamp CompletedAt")
	}
	if time.Since(*job.CompletedAt) > time.Minute {
		t.Error("CompletedAt not freshly stamped")
	}
}
