// internal/journal/journal.go
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bstardust/trip-backfill/internal/logger"
)

// DefaultFileName is used when no journal path is configured
const DefaultFileName = ".trip-backfill-journal.json"

// Journal records published objects so an interrupted publish can resume
type Journal struct {
	mu         sync.Mutex
	path       string
	uploads    map[string]UploadEntry
	batchSize  int
	batchCount int
	now        func() time.Time
}

// UploadEntry represents a journal entry for an uploaded object
type UploadEntry struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	Cluster   string    `json:"cluster"`
	Uploaded  bool      `json:"uploaded"`
	Timestamp time.Time `json:"timestamp"`
}

type file struct {
	Uploads map[string]UploadEntry `json:"uploads"`
}

// New creates a journal stored at path. An empty path uses DefaultFileName
// in the user's home directory.
func New(path string) *Journal {
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, DefaultFileName)
		} else {
			path = DefaultFileName
		}
	}

	return &Journal{
		path:      path,
		uploads:   make(map[string]UploadEntry),
		batchSize: 100,
		now:       time.Now,
	}
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.path
}

// Load loads the journal from disk. A missing file starts an empty journal.
func (j *Journal) Load() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		logger.Info("No journal file found at %s, starting fresh", j.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse journal %s: %w", j.path, err)
	}
	if f.Uploads != nil {
		j.uploads = f.Uploads
	}
	logger.Info("Loaded journal with %d entries from %s", len(j.uploads), j.path)
	return nil
}

// Save writes the journal to disk
func (j *Journal) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saveLocked()
}

// saveLocked writes through a temp file so a crash never leaves a
// truncated journal. j.mu must be held.
func (j *Journal) saveLocked() error {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	data, err := json.MarshalIndent(file{Uploads: j.uploads}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write journal: %w", err)
	}

	logger.Debug("Saved journal with %d entries to %s", len(j.uploads), j.path)
	return nil
}

// MarkUploaded records key as published. Every batchSize marks the journal
// is flushed to disk.
func (j *Journal) MarkUploaded(key, source, cluster string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.uploads[key] = UploadEntry{
		Key:       key,
		Source:    source,
		Cluster:   cluster,
		Uploaded:  true,
		Timestamp: j.now(),
	}

	j.batchCount++
	if j.batchCount >= j.batchSize {
		j.batchCount = 0
		if err := j.saveLocked(); err != nil {
			logger.Warn("Failed to flush journal: %v", err)
		}
	}
}

// IsUploaded checks if key has been published
func (j *Journal) IsUploaded(key string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, exists := j.uploads[key]
	return exists && entry.Uploaded
}

// Clear drops every entry and saves the empty journal
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.uploads = make(map[string]UploadEntry)
	j.batchCount = 0
	return j.saveLocked()
}

// Stats returns statistics about the journal
func (j *Journal) Stats() (total int, uploaded int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	total = len(j.uploads)
	for _, entry := range j.uploads {
		if entry.Uploaded {
			uploaded++
		}
	}

	return total, uploaded
}

// ListCompleted returns the published keys in sorted order
func (j *Journal) ListCompleted() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var completed []string
	for key, entry := range j.uploads {
		if entry.Uploaded {
			completed = append(completed, key)
		}
	}
	sort.Strings(completed)
	return completed
}
