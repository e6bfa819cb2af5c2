// Package uploader publishes the members of selected clusters to S3
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bstardust/trip-backfill/internal/cluster"
	"github.com/bstardust/trip-backfill/internal/config"
	"github.com/bstardust/trip-backfill/internal/fileinfo"
	"github.com/bstardust/trip-backfill/internal/journal"
	"github.com/bstardust/trip-backfill/internal/logger"
	"github.com/bstardust/trip-backfill/internal/metadata"
	"github.com/bstardust/trip-backfill/internal/progress"
	"github.com/bstardust/trip-backfill/internal/scanner"
	"github.com/bstardust/trip-backfill/internal/worker"
	"github.com/bstardust/trip-backfill/pkg/s3client"
)

var errAlreadyExists = errors.New("object already exists")

// Item is one photo scheduled for upload
type Item struct {
	// ID is the source ID of the photo
	ID string
	// Key is the object key below the configured prefix
	Key          string
	ClusterKey   string
	ClusterTitle string
	Record       metadata.Record
}

// Summary counts the outcome of a publish run
type Summary struct {
	Planned  int
	Uploaded int
	Skipped  int
	Failed   int
	Bytes    int64
}

// Uploader handles the upload process
type Uploader struct {
	s3Client s3client.S3Interface
	source   scanner.Source
	journal  *journal.Journal
	progress *progress.Reporter
	config   *config.Config
	retry    RetryConfig
	limiter  *rate.Limiter
}

// New creates a new Uploader. s3Client may be nil for a dry run.
func New(s3Client s3client.S3Interface, source scanner.Source, jnl *journal.Journal,
	progress *progress.Reporter, cfg *config.Config) *Uploader {
	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.Publish.MaxRetries

	limit := rate.Inf
	if cfg.Publish.RateLimit > 0 {
		limit = rate.Limit(cfg.Publish.RateLimit)
	}

	return &Uploader{
		s3Client: s3Client,
		source:   source,
		journal:  jnl,
		progress: progress,
		config:   cfg,
		retry:    retry,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// SetRetryConfig replaces the retry policy
func (u *Uploader) SetRetryConfig(rc RetryConfig) {
	u.retry = rc
}

// Plan lists the uploads for the selected clusters in cluster order. Keys
// are "<cluster key>/<file name>"; clashing names within a cluster get a
// numeric suffix.
func Plan(res *scanner.Result, selected []cluster.Cluster) []Item {
	var items []Item
	for _, c := range selected {
		used := make(map[string]int)
		for _, id := range c.Members {
			rec, _ := res.Record(id)
			items = append(items, Item{
				ID:           id,
				Key:          c.Key + "/" + uniqueName(used, path.Base(id)),
				ClusterKey:   c.Key,
				ClusterTitle: c.Title,
				Record:       rec,
			})
		}
	}
	return items
}

func uniqueName(used map[string]int, name string) string {
	used[name]++
	n := used[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
	if used[candidate] > 0 {
		return uniqueName(used, candidate)
	}
	used[candidate]++
	return candidate
}

// Run uploads every member of the selected clusters. Individual failures
// are counted and reported as one error at the end; cancellation stops
// the run and is returned as is.
func (u *Uploader) Run(ctx context.Context, res *scanner.Result, selected []cluster.Cluster) (Summary, error) {
	items := Plan(res, selected)
	summary := Summary{Planned: len(items)}
	var mu sync.Mutex
	count := func(fn func(s *Summary)) {
		mu.Lock()
		defer mu.Unlock()
		fn(&summary)
	}

	u.progress.Start("upload", len(items))
	pool := worker.NewPool(ctx, u.config.Publish.Concurrency)

	for _, item := range items {
		if pool.Context().Err() != nil {
			break
		}

		if u.config.Publish.Resume && !u.config.Publish.DryRun && u.journal.IsUploaded(u.journalKey(item)) {
			u.progress.Skip(item.ID)
			count(func(s *Summary) { s.Skipped++ })
			continue
		}

		pool.Submit(func(ctx context.Context) error {
			if err := u.limiter.Wait(ctx); err != nil {
				return err
			}

			size, err := u.publish(ctx, item)
			switch {
			case errors.Is(err, errAlreadyExists):
				u.progress.Skip(item.ID)
				u.journal.MarkUploaded(u.journalKey(item), item.ID, item.ClusterKey)
				count(func(s *Summary) { s.Skipped++ })
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("Failed to upload %s: %s", item.ID, s3client.FormatError(err))
				u.progress.Error(item.ID, err)
				count(func(s *Summary) { s.Failed++ })
			default:
				u.progress.Complete(item.ID, size)
				if !u.config.Publish.DryRun {
					u.journal.MarkUploaded(u.journalKey(item), item.ID, item.ClusterKey)
				}
				count(func(s *Summary) {
					s.Uploaded++
					s.Bytes += size
				})
			}
			return nil
		})
	}

	waitErr := pool.Wait()
	u.progress.Finish()

	if !u.config.Publish.DryRun {
		if err := u.journal.Save(); err != nil {
			logger.Warn("Failed to save journal: %v", err)
		}
	}

	if waitErr != nil {
		return summary, waitErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d uploads failed", summary.Failed, summary.Planned)
	}
	return summary, nil
}

// publish uploads one item and returns the number of bytes sent
func (u *Uploader) publish(ctx context.Context, item Item) (int64, error) {
	if u.config.Publish.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.config.Publish.Timeout)
		defer cancel()
	}

	meta := u.metadataFor(item)
	contentType := fileinfo.GetContentType(item.ID)

	if u.config.Publish.DryRun {
		size := u.sizeOf(item.ID)
		logger.Info("DRY RUN: Would upload %s to %s (%d bytes, %s) with %d metadata fields",
			item.ID, item.Key, size, contentType, len(meta))
		return size, nil
	}

	if u.config.Publish.SkipExisting {
		exists, err := u.s3Client.ObjectExists(ctx, item.Key)
		if err != nil {
			logger.Warn("Failed to check if %s exists: %v", item.Key, err)
		} else if exists {
			return 0, errAlreadyExists
		}
	}

	data, err := u.source.ReadFile(item.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", item.ID, err)
	}
	size := int64(len(data))

	start := time.Now()
	err = RetryWithBackoff(ctx, "upload "+item.Key, func() error {
		return u.s3Client.UploadFile(ctx, bytes.NewReader(data), item.Key, size, meta, contentType)
	}, u.retry)
	if err != nil {
		return 0, err
	}

	logger.WithField("cluster", item.ClusterKey).Debugf("Uploaded %s as %s in %s",
		item.ID, item.Key, time.Since(start).Round(time.Millisecond))
	return size, nil
}

func (u *Uploader) metadataFor(item Item) map[string]string {
	var meta map[string]string
	if u.config.Publish.PreserveMetadata {
		meta = item.Record.ToMap()
	} else {
		meta = make(map[string]string)
	}
	meta["cluster-key"] = item.ClusterKey
	meta["cluster-title"] = item.ClusterTitle
	meta["original-filename"] = path.Base(item.ID)
	return meta
}

// journalKey is the full object key, so journals survive prefix changes
func (u *Uploader) journalKey(item Item) string {
	prefix := strings.Trim(u.config.S3.Prefix, "/")
	if prefix == "" {
		return item.Key
	}
	return prefix + "/" + item.Key
}

func (u *Uploader) sizeOf(id string) int64 {
	if s, ok := u.source.(interface{ GetSize(string) int64 }); ok {
		return s.GetSize(id)
	}
	return 0
}
