package browserpool

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
)

func TestClampSize(t *testing.T) {
	cases := []struct {
		requested, want int
	}{
		{0, 3},
		{-1, 3},
		{1, 1},
		{3, 3},
		{5, 5},
		{8, 5},
		{100, 5},
	}
	for _, c := range cases {
		if got := clampSize(c.requested); got != c.want {
			t.Errorf("clampSize(%d) = %d, want %d", c.requested, got, c.want)
		}
	}
}

func TestFontCacheSuppressesRepeats(t *testing.T) {
	fc := newFontCache()

	if fc.recentlySeen("https://cdn.example.com/font.woff2") {
		t.Error("first sighting must not count as recent")
	}
	if !fc.recentlySeen("https://cdn.example.com/font.woff2") {
		t.Error("second sighting within the window must count as recent")
	}
	if fc.recentlySeen("https://cdn.example.com/other.woff2") {
		t.Error("a different URL must not count as recent")
	}
}

func TestAcquireTimesOutOnExhaustedPool(t *testing.T) {
	p := &Pool{
		engines:        make(chan *Engine), // never stocked
		size:           1,
		acquireTimeout: 50 * time.Millisecond,
		logger:         slog.New(slog.NewTextHandler(&strings.Builder{}, nil)),
	}

	start := time.Now()
	_, err := p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected pool-exhausted error")
	}
	if apierr.KindOf(err) != apierr.KindRendering {
		t.Errorf("error kind = %s, want rendering", apierr.KindOf(err))
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("acquire returned after %s, before the timeout", elapsed)
	}
}

func TestAcquireHonorsCallerCancellation(t *testing.T) {
	p := &Pool{
		engines:        make(chan *Engine),
		size:           1,
		acquireTimeout: time.Hour,
		logger:         slog.New(slog.NewTextHandler(&strings.Builder{}, nil)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := p.Acquire(ctx); err == nil {
		t.Fatal("expected error when the caller cancels mid-acquire")
	}
}

func TestStatsTracksWaitsAndPeak(t *testing.T) {
	p := &Pool{size: 3}

	p.recordAcquire(10 * time.Millisecond)
	p.recordAcquire(30 * time.Millisecond)

	st := p.Stats()
	if st.TotalAcquisitions != 2 {
		t.Errorf("acquisitions = %d", st.TotalAcquisitions)
	}
	if st.AverageWaitMs != 20 {
		t.Errorf("average wait = %f, want 20", st.AverageWaitMs)
	}
	if st.Active != 2 || st.Available != 1 {
		t.Errorf("active=%d available=%d", st.Active, st.Available)
	}
	if st.PeakConcurrentUse != 2 {
		t.Errorf("peak = %d", st.PeakConcurrentUse)
	}
	if st.Active+st.Available != st.TotalEngines {
		t.Error("active + available must equal total engines")
	}
}

func TestWaitSampleRingIsBounded(t *testing.T) {
	p := &Pool{size: 1}
	for i := 0; i < 250; i++ {
		p.recordAcquire(time.Millisecond)
	}
	if n := len(p.waitSamplesMs); n != 100 {
		t.Errorf("wait sample ring length = %d, want 100", n)
	}
}

func TestTrackerSubstringList(t *testing.T) {
	want := map[string]bool{"analytics": true, "tracking": true, "pixel": true, "beacon": true}
	for _, sub := range trackerSubstrings {
		if !want[sub] {
			t.Errorf("unexpected tracker substring %q", sub)
		}
		delete(want, sub)
	}
	for missing := range want {
		t.Errorf("tracker substring %q missing from filter", missing)
	}
}
