// Package cluster groups photo records into travel stops by capture day.
package cluster

import (
	"fmt"
	"time"

	"github.com/bstardust/trip-backfill/internal/metadata"
)

const (
	// UnknownKey is the key of the bucket holding every undated record
	UnknownKey = "unknown"
	// UnknownTitle is the title of the undated bucket
	UnknownTitle = "Unsorted Photos"

	// KeyLayout renders the calendar day a dated cluster is keyed by
	KeyLayout = "2006-01-02"
	// TitleLayout renders the calendar day in a cluster title
	TitleLayout = "Mon Jan 02 2006"
)

// Cluster is one inferred travel stop
type Cluster struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Title string `json:"title"`
	// Date is the calendar day of a dated cluster, zero for the unknown one
	Date     time.Time         `json:"date,omitempty"`
	Location *metadata.GeoData `json:"location,omitempty"`
	Members  []string          `json:"members"`
}

// IsUnknown reports whether c is the undated bucket
func (c Cluster) IsUnknown() bool {
	return c.Key == UnknownKey
}

// Summary describes the cluster in one line, e.g. "3 photos • Location found".
func (c Cluster) Summary() string {
	noun := "photos"
	if len(c.Members) == 1 {
		noun = "photo"
	}
	where := "No GPS data"
	if c.Location != nil {
		where = "Location found"
	}
	return fmt.Sprintf("%d %s • %s", len(c.Members), noun, where)
}

// KeyFor returns the day key a record is grouped under
func KeyFor(rec metadata.Record) string {
	if rec.CapturedAt == nil {
		return UnknownKey
	}
	return rec.CapturedAt.Format(KeyLayout)
}

// Build partitions records into clusters. Keys keep the order in which they
// are first seen and members keep input order within a cluster. The
// location of a cluster is the coordinate of its first member that has one.
// Same-day photos are never split by location.
func Build(records []metadata.Record) []Cluster {
	out := make([]Cluster, 0)
	index := make(map[string]int)

	for _, rec := range records {
		key := KeyFor(rec)
		i, seen := index[key]
		if !seen {
			i = len(out)
			index[key] = i
			out = append(out, newCluster(i, key, rec))
		}

		c := &out[i]
		c.Members = append(c.Members, rec.ID)
		if c.Location == nil && rec.HasCoordinate() {
			loc := *rec.Coordinate
			c.Location = &loc
		}
	}
	return out
}

func newCluster(i int, key string, first metadata.Record) Cluster {
	c := Cluster{
		ID:  fmt.Sprintf("cluster-%d", i),
		Key: key,
	}
	if key == UnknownKey {
		c.Title = UnknownTitle
		return c
	}
	t := first.CapturedAt
	c.Date = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	c.Title = "Trip on " + c.Date.Format(TitleLayout)
	return c
}

// Select returns the clusters whose keys are listed, in build order. An
// empty key list selects every dated cluster, plus the unknown one when
// includeUnknown is set.
func Select(clusters []Cluster, keys []string, includeUnknown bool) ([]Cluster, error) {
	if len(keys) == 0 {
		var out []Cluster
		for _, c := range clusters {
			if !c.IsUnknown() || includeUnknown {
				out = append(out, c)
			}
		}
		return out, nil
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []Cluster
	for _, c := range clusters {
		if want[c.Key] || want[c.ID] {
			out = append(out, c)
			delete(want, c.Key)
			delete(want, c.ID)
		}
	}
	for _, k := range keys {
		if want[k] {
			return nil, fmt.Errorf("no cluster with key or id %q", k)
		}
	}
	return out, nil
}
