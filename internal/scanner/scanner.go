// Package scanner drives metadata extraction over a batch of photos and
// clusters the results.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bstardust/trip-backfill/internal/cluster"
	"github.com/bstardust/trip-backfill/internal/logger"
	"github.com/bstardust/trip-backfill/internal/metadata"
	"github.com/bstardust/trip-backfill/internal/progress"
	"github.com/bstardust/trip-backfill/internal/worker"
)

// ErrBatchUnreadable is returned when no file of a non-empty batch could
// be read.
var ErrBatchUnreadable = errors.New("batch unreadable")

// ErrDuplicateID is returned when a source lists the same ID twice
var ErrDuplicateID = errors.New("duplicate file id")

// Source provides the batch. IDs fixes the batch order.
type Source interface {
	IDs() []string
	ReadFile(id string) ([]byte, error)
}

// Result is the outcome of one scan
type Result struct {
	Records  []metadata.Record
	Clusters []cluster.Cluster
	// Unread lists the files that could not be read or were empty. They are
	// still present in Records and Clusters.
	Unread []string
}

// Record returns the record for id
func (r *Result) Record(id string) (metadata.Record, bool) {
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return metadata.Record{}, false
}

// Option configures a Scanner
type Option func(*Scanner)

// WithConcurrency sets the number of files extracted at once. Zero or less
// uses one worker per CPU.
func WithConcurrency(n int) Option {
	return func(s *Scanner) { s.concurrency = n }
}

// WithProgress reports per-file progress to r
func WithProgress(r *progress.Reporter) Option {
	return func(s *Scanner) { s.progress = r }
}

// WithExtractor replaces the default extractor
func WithExtractor(e *metadata.Extractor) Option {
	return func(s *Scanner) { s.extractor = e }
}

// Scanner runs scans. It keeps no state between them.
type Scanner struct {
	concurrency int
	progress    *progress.Reporter
	extractor   *metadata.Extractor
}

// New creates a scanner
func New(opts ...Option) *Scanner {
	s := &Scanner{extractor: metadata.NewExtractor()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan extracts every file of src in parallel, then clusters the records
// in batch order once all extractions are done. If ctx is cancelled first,
// partial results are dropped and ctx.Err() is returned.
func (s *Scanner) Scan(ctx context.Context, src Source) (*Result, error) {
	ids := src.IDs()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		seen[id] = true
	}

	records := make([]metadata.Record, len(ids))
	unread := make([]bool, len(ids))
	var failed atomic.Int64

	s.progress.Start("scan", len(ids))
	pool := worker.NewPool(ctx, s.concurrency)
	for i, id := range ids {
		pool.Submit(func(ctx context.Context) error {
			data, err := src.ReadFile(id)
			if err == nil && len(data) == 0 {
				err = errors.New("empty file")
			}
			if err != nil {
				logger.Warn("Failed to read %s: %v", id, err)
				s.progress.Error(id, err)
				unread[i] = true
				failed.Add(1)
				records[i] = metadata.Record{ID: id}
				return nil
			}
			records[i] = s.extractor.Extract(id, data)
			s.progress.Complete(id, int64(len(data)))
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	// A task may have been skipped after the last check inside the pool.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.progress.Finish()

	if len(ids) > 0 && int(failed.Load()) == len(ids) {
		return nil, fmt.Errorf("%w: none of %d files could be read", ErrBatchUnreadable, len(ids))
	}

	res := &Result{
		Records:  records,
		Clusters: cluster.Build(records),
	}
	for i, bad := range unread {
		if bad {
			res.Unread = append(res.Unread, ids[i])
		}
	}
	return res, nil
}

// File is one in-memory photo
type File struct {
	ID   string
	Data []byte
}

// Files is a Source over in-memory buffers
type Files struct {
	files []File
	index map[string]int
}

// NewFiles returns a source over files in the given order
func NewFiles(files ...File) Files {
	f := Files{
		files: files,
		index: make(map[string]int, len(files)),
	}
	for i, file := range files {
		if _, dup := f.index[file.ID]; !dup {
			f.index[file.ID] = i
		}
	}
	return f
}

// IDs returns the identifiers in batch order
func (f Files) IDs() []string {
	ids := make([]string, len(f.files))
	for i, file := range f.files {
		ids[i] = file.ID
	}
	return ids
}

// ReadFile returns the buffer for id
func (f Files) ReadFile(id string) ([]byte, error) {
	i, ok := f.index[id]
	if !ok {
		return nil, fmt.Errorf("no file %q", id)
	}
	return f.files[i].Data, nil
}
