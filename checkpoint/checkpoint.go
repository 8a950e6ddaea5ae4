package checkpoint

import (
	"context"
	"sort"
	"time"

	"github.com/relloyd/cdcpipe/constants"
)

// State is the durable position of one table stream.
// A file has been applied if it is listed in RecentFiles or its LastModified is before Horizon.
type State struct {
	Watermark    time.Time     `json:"watermark"`             // greatest LastModified applied.
	RecentFiles  []AppliedFile `json:"recentFiles,omitempty"` // files applied at or after Horizon, sorted by key.
	BatchID      int64         `json:"batchId"`
	FilesApplied int64         `json:"filesApplied"`
	RowsApplied  int64         `json:"rowsApplied"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// IsZero returns true if nothing has been applied yet.
func (s State) IsZero() bool {
	return s.BatchID == 0 && s.Watermark.IsZero() && len(s.RecentFiles) == 0
}

// Horizon is the time below which files are assumed applied.
// A file first listed with a LastModified before Horizon is skipped.
func (s State) Horizon() time.Time {
	if s.Watermark.IsZero() {
		return s.Watermark
	}
	return s.Watermark.Add(-constants.CheckpointGraceWindow)
}

// Covers returns true if the file with key and lastModified has already been applied.
func (s State) Covers(key string, lastModified time.Time) bool {
	idx := sort.Search(len(s.RecentFiles), func(i int) bool { return s.RecentFiles[i].Key >= key })
	if idx < len(s.RecentFiles) && s.RecentFiles[idx].Key == key {
		return true
	}
	return lastModified.Before(s.Horizon())
}

// AppliedFile describes one file included in a committed batch.
type AppliedFile struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"lastModified"`
}

// Advance returns the state after a batch of files and rows has been committed.
func (s State) Advance(files []AppliedFile, rows int64, now time.Time) State {
	next := State{
		Watermark:    s.Watermark,
		BatchID:      s.BatchID + 1,
		FilesApplied: s.FilesApplied + int64(len(files)),
		RowsApplied:  s.RowsApplied + rows,
		UpdatedAt:    now.UTC(),
	}
	for _, f := range files {
		if f.LastModified.After(next.Watermark) {
			next.Watermark = f.LastModified
		}
	}
	horizon := next.Horizon()
	recent := make([]AppliedFile, 0, len(s.RecentFiles)+len(files))
	for _, f := range append(append([]AppliedFile(nil), s.RecentFiles...), files...) {
		if !f.LastModified.Before(horizon) {
			recent = append(recent, f)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Key < recent[j].Key })
	next.RecentFiles = dedupeSorted(recent)
	return next
}

// dedupeSorted keeps the last entry for each key.
func dedupeSorted(s []AppliedFile) []AppliedFile {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v.Key == out[len(out)-1].Key {
			out[len(out)-1] = v
			continue
		}
		out = append(out, v)
	}
	return out
}

// Store persists State values keyed by checkpoint path.
type Store interface {
	// Load returns the zero State if nothing has been saved at path.
	Load(ctx context.Context, path string) (State, error)
	Save(ctx context.Context, path string, s State) error
}
