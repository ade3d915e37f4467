package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ai-navigator/navigator/internal/throttle"
)

// VisitRecorder counts click-throughs and persists them in batches. Counts are
// visible in the Directory immediately; the repository is written at most once
// per flush interval, and the last batch of a burst is always written.
type VisitRecorder struct {
	repo    Repository
	dir     *Directory
	timeout time.Duration

	mu     sync.Mutex
	counts map[string]int64

	flusher *throttle.Throttler

	// OnFlush, when set, is called after every non-empty flush with the first
	// write error or nil. Set it before the first Record.
	OnFlush func(err error)
}

// NewVisitRecorder returns a recorder that writes to repo no more often than every
// interval. opts are passed to the underlying throttle (tests inject a clock).
func NewVisitRecorder(repo Repository, dir *Directory, interval time.Duration, opts ...throttle.Option) *VisitRecorder {
	v := &VisitRecorder{
		repo:    repo,
		dir:     dir,
		timeout: 10 * time.Second,
		counts:  make(map[string]int64),
	}
	v.flusher = throttle.New(v.flush, interval, opts...)
	return v
}

// Record counts one visit to the site with the given id. Unknown ids are ignored
// and reported as false.
func (v *VisitRecorder) Record(id string) bool {
	if !v.dir.bumpVisits(id, 1) {
		return false
	}
	v.mu.Lock()
	v.counts[id]++
	v.mu.Unlock()

	v.flusher.Call()
	return true
}

// Unflushed returns the number of visits not yet written to the repository.
func (v *VisitRecorder) Unflushed() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	var n int64
	for _, c := range v.counts {
		n += c
	}
	return n
}

// Close runs the pending flush now, waits for any flush in progress and then
// writes whatever is left (failed batches or visits that raced with Close).
// Visits recorded after Close are counted in the directory but never written.
func (v *VisitRecorder) Close() {
	v.flusher.Flush()
	v.flusher.Stop()
	v.flush()
}

func (v *VisitRecorder) flush() {
	v.mu.Lock()
	if len(v.counts) == 0 {
		v.mu.Unlock()
		return
	}
	batch := v.counts
	v.counts = make(map[string]int64)
	v.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	var firstErr error
	for id, n := range batch {
		if err := v.repo.IncrementVisits(ctx, id, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			slog.Warn("failed to persist visits", "site_id", id, "count", n, "error", err)
			// Keep the count for the next flush unless the site is gone.
			if !errors.Is(err, ErrNotFound) {
				v.mu.Lock()
				v.counts[id] += n
				v.mu.Unlock()
			}
		}
	}

	if v.OnFlush != nil {
		v.OnFlush(firstErr)
	}
}
