// Package report renders scan results as text or JSON
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/bstardust/trip-backfill/internal/cluster"
	"github.com/bstardust/trip-backfill/internal/metadata"
	"github.com/bstardust/trip-backfill/internal/scanner"
)

// CompressedExt marks report files written with zstd
const CompressedExt = ".zst"

// Report is the serializable outcome of a scan
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Files       int               `json:"files"`
	Unread      []string          `json:"unread,omitempty"`
	Clusters    []Cluster         `json:"clusters"`
	Records     []metadata.Record `json:"records"`
}

// Cluster is the report view of one cluster
type Cluster struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Title string `json:"title"`
	// Date is empty for the unknown cluster
	Date     string            `json:"date,omitempty"`
	Location *metadata.GeoData `json:"location,omitempty"`
	Summary  string            `json:"summary"`
	Members  []string          `json:"members"`
}

// New builds a report for res
func New(res *scanner.Result, now time.Time) *Report {
	r := &Report{
		GeneratedAt: now.UTC(),
		Files:       len(res.Records),
		Unread:      res.Unread,
		Clusters:    make([]Cluster, 0, len(res.Clusters)),
		Records:     res.Records,
	}
	for _, c := range res.Clusters {
		rc := Cluster{
			ID:       c.ID,
			Key:      c.Key,
			Title:    c.Title,
			Location: c.Location,
			Summary:  c.Summary(),
			Members:  c.Members,
		}
		if !c.IsUnknown() {
			rc.Date = c.Date.Format(cluster.KeyLayout)
		}
		r.Clusters = append(r.Clusters, rc)
	}
	return r
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteText writes a human readable listing of the clusters
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Scanned %s files into %s clusters", humanize.Comma(int64(r.Files)), humanize.Comma(int64(len(r.Clusters))))
	if n := len(r.Unread); n > 0 {
		fmt.Fprintf(bw, " (%d unreadable)", n)
	}
	fmt.Fprintln(bw)

	for _, c := range r.Clusters {
		fmt.Fprintf(bw, "\n%s [%s]\n", c.Title, c.Key)
		fmt.Fprintf(bw, "  %s", c.Summary)
		if c.Location != nil {
			fmt.Fprintf(bw, " (%.6f, %.6f)", c.Location.Latitude, c.Location.Longitude)
		}
		fmt.Fprintln(bw)
		for _, m := range c.Members {
			fmt.Fprintf(bw, "  - %s\n", m)
		}
	}

	return bw.Flush()
}

// WriteFile writes the JSON report to path, zstd compressed when the path
// ends in CompressedExt
func (r *Report) WriteFile(path string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close report: %w", cerr)
		}
	}()

	if !strings.HasSuffix(path, CompressedExt) {
		return r.WriteJSON(f)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if err := r.WriteJSON(enc); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to compress report: %w", err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, CompressedExt) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	var r Report
	if err := json.NewDecoder(src).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}
