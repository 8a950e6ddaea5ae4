package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relloyd/cdcpipe/checkpoint"
)

// StreamWatcher collects counters for one table stream.
// Counters are safe for concurrent use so status readers never block the stream.
type StreamWatcher struct {
	table      string
	mode       string
	runID      string
	startTime  time.Time
	batches    int64
	files      int64
	rows       int64
	retries    int64
	mu         sync.Mutex
	state      string
	lastError  string
	checkpoint checkpoint.State
	updatedAt  time.Time
}

type Stats struct {
	Table            string           `json:"table"`
	Mode             string           `json:"mode"`
	RunID            string           `json:"runId"`
	State            string           `json:"state"`
	ElapsedTimeSec   int              `json:"elapsedTimeSec"`
	Batches          int64            `json:"batches"`
	FilesApplied     int64            `json:"filesApplied"`
	RowsApplied      int64            `json:"rowsApplied"`
	RowsPerSecondAvg int64            `json:"rowsPerSecondAvg"`
	Retries          int64            `json:"retries"`
	LastError        string           `json:"lastError,omitempty"`
	Checkpoint       checkpoint.State `json:"checkpoint"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func NewStreamWatcher(table string, mode string, runID string) *StreamWatcher {
	return &StreamWatcher{table: table, mode: mode, runID: runID, startTime: time.Now(), updatedAt: time.Now()}
}

func (w *StreamWatcher) SetState(state string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	w.updatedAt = time.Now()
}

// SetCheckpoint records the position a stream resumed from.
func (w *StreamWatcher) SetCheckpoint(cp checkpoint.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkpoint = cp
	w.updatedAt = time.Now()
}

// BatchApplied records a committed batch and the checkpoint saved after it.
func (w *StreamWatcher) BatchApplied(files int, rows int, cp checkpoint.State) {
	atomic.AddInt64(&w.batches, 1)
	atomic.AddInt64(&w.files, int64(files))
	atomic.AddInt64(&w.rows, int64(rows))
	w.SetCheckpoint(cp)
}

// Retried records a failed attempt that will be retried.
func (w *StreamWatcher) Retried(err error) {
	atomic.AddInt64(&w.retries, 1)
	w.SetError(err)
}

func (w *StreamWatcher) SetError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		w.lastError = ""
	} else {
		w.lastError = err.Error()
	}
	w.updatedAt = time.Now()
}

// RenderStats gets a struct filled with stats at the point of time it is called.
func (w *StreamWatcher) RenderStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows := atomic.LoadInt64(&w.rows)
	return Stats{
		Table:            w.table,
		Mode:             w.mode,
		RunID:            w.runID,
		State:            w.state,
		ElapsedTimeSec:   int(time.Since(w.startTime).Seconds()),
		Batches:          atomic.LoadInt64(&w.batches),
		FilesApplied:     atomic.LoadInt64(&w.files),
		RowsApplied:      rows,
		RowsPerSecondAvg: rows / getNumSecondsSinceTimeOrOne(w.startTime),
		Retries:          atomic.LoadInt64(&w.retries),
		LastError:        w.lastError,
		Checkpoint:       w.checkpoint,
		UpdatedAt:        w.updatedAt,
	}
}

// String will format the stats for general logging.
func (s Stats) String() string {
	return fmt.Sprintf(
		"Stats for %v (%v) %v "+
			"elapsedTimeSec=%v "+
			"batches=%v "+
			"filesApplied=%v "+
			"rowsApplied=%v "+
			"rowsPerSecondAvg=%v "+
			"retries=%v "+
			"batchId=%v",
		s.Table, s.Mode, s.State,
		s.ElapsedTimeSec,
		s.Batches,
		s.FilesApplied,
		s.RowsApplied,
		s.RowsPerSecondAvg,
		s.Retries,
		s.Checkpoint.BatchID,
	)
}

func getNumSecondsSinceTimeOrOne(t time.Time) (seconds int64) {
	seconds = int64(time.Since(t).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return
}
