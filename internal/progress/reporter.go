// internal/progress/reporter.go
package progress

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bstardust/trip-backfill/internal/logger"
)

// Reporter tracks and reports progress of a scan or an upload. It is safe
// for concurrent use; a nil *Reporter ignores every call.
type Reporter struct {
	mu             sync.Mutex
	phase          string
	total          int
	completed      int
	skipped        int
	errors         int
	bytes          int64
	startTime      time.Time
	lastUpdateTime time.Time
	updateInterval time.Duration
	now            func() time.Time
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Phase     string
	Total     int
	Completed int
	Skipped   int
	Errors    int
	Bytes     int64
	Elapsed   time.Duration
}

// Processed is the number of items that reached a final state
func (s Snapshot) Processed() int {
	return s.Completed + s.Skipped + s.Errors
}

// New creates a new progress reporter
func New() *Reporter {
	return &Reporter{
		updateInterval: 2 * time.Second,
		now:            time.Now,
	}
}

// SetInterval changes how often progress lines are logged
func (r *Reporter) SetInterval(d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateInterval = d
}

// Start resets the counters for a new phase of total items
func (r *Reporter) Start(phase string, total int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.phase = phase
	r.total = total
	r.completed = 0
	r.skipped = 0
	r.errors = 0
	r.bytes = 0
	r.startTime = r.now()
	r.lastUpdateTime = r.startTime

	logger.Info("Starting %s of %d files", phase, total)
}

// Complete marks an item as done, counting size bytes
func (r *Reporter) Complete(id string, size int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed++
	r.bytes += size
	r.updateProgress()
}

// Skip marks an item as skipped
func (r *Reporter) Skip(id string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipped++
	logger.Debug("%s: skipped %s", r.phase, id)
	r.updateProgress()
}

// Error marks an item as failed
func (r *Reporter) Error(id string, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors++
	logger.Debug("%s: %s failed: %v", r.phase, id, err)
	r.updateProgress()
}

// Snapshot returns the current counters
func (r *Reporter) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		Phase:     r.phase,
		Total:     r.total,
		Completed: r.completed,
		Skipped:   r.skipped,
		Errors:    r.errors,
		Bytes:     r.bytes,
		Elapsed:   r.now().Sub(r.startTime),
	}
}

// Finish completes the progress reporting
func (r *Reporter) Finish() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := r.now().Sub(r.startTime)

	logger.Info("%s complete: %d/%d files, %s, %d skipped, %d errors in %s",
		r.phase, r.completed, r.total, humanize.Bytes(uint64(r.bytes)), r.skipped, r.errors,
		duration.Round(time.Millisecond))
}

// updateProgress logs a progress line at most once per interval
func (r *Reporter) updateProgress() {
	now := r.now()
	if now.Sub(r.lastUpdateTime) < r.updateInterval {
		return
	}

	r.lastUpdateTime = now
	duration := now.Sub(r.startTime)
	processed := r.completed + r.skipped + r.errors

	if processed == 0 || r.total == 0 {
		return
	}

	percentage := float64(processed) / float64(r.total) * 100

	// Calculate estimated time remaining
	var eta string
	if r.completed > 0 {
		timePerFile := duration / time.Duration(processed)
		remaining := timePerFile * time.Duration(r.total-processed)
		eta = humanize.RelTime(now, now.Add(remaining), "", "left")
	} else {
		eta = "unknown"
	}

	logger.Info("%s progress: %.1f%% (%d/%d, %d completed, %d skipped, %d errors, %s) ETA: %s",
		r.phase, percentage, processed, r.total, r.completed, r.skipped, r.errors,
		humanize.Bytes(uint64(r.bytes)), eta)
}
