package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/stagefile"
	"github.com/relloyd/cdcpipe/stats"
	"github.com/relloyd/cdcpipe/table"
)

type MergeConfig struct {
	Log              logger.Logger
	Destination      destination.Store
	Checkpoints      checkpoint.Store
	DestinationTable string
	CheckpointPath   string
	MaxApplyRetries  int
	RetryBackoff     time.Duration
	Watcher          *stats.StreamWatcher // optional.
	Gate             Gate                 // optional.
}

// MergeStream replicates a table by merging deduplicated changes into the destination.
// It moves from UNSTARTED to RUNNING and then to STOPPED or FAILED.
type MergeStream struct {
	cfg     MergeConfig
	src     *Source
	spec    table.Spec
	log     logger.Logger
	watcher *stats.StreamWatcher
	now     func() time.Time
	mu      sync.Mutex
	state   State
	err     error
	stopped bool
	cancel  context.CancelFunc
	keys    []string // merge keys as named in the stored schema.
}

// NewMergeStream returns a *table.ConfigurationError if src's table has no merge keys.
func NewMergeStream(src *Source, cfg MergeConfig) (*MergeStream, error) {
	spec := src.Table()
	if err := spec.RequireMergeKeys(); err != nil {
		return nil, err
	}
	if cfg.Watcher == nil {
		cfg.Watcher = stats.NewStreamWatcher(spec.FullyQualifiedName(), string(table.ModeMerge), "")
	}
	m := &MergeStream{
		cfg:     cfg,
		src:     src,
		spec:    spec,
		log:     logger.ForTable(cfg.Log, spec.FullyQualifiedName(), string(table.ModeMerge)),
		watcher: cfg.Watcher,
		now:     time.Now,
	}
	m.watcher.SetState(StateUnstarted.String())
	return m, nil
}

func (m *MergeStream) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that failed the stream.
func (m *MergeStream) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MergeStream) Status() stats.Stats {
	return m.watcher.RenderStats()
}

func (m *MergeStream) setState(s State, err error) {
	m.mu.Lock()
	m.state = s
	m.err = err
	m.mu.Unlock()
	m.watcher.SetState(s.String())
	if err != nil {
		m.watcher.SetError(err)
	}
}

// Stop asks the stream to finish after the batch in progress. It does not wait.
func (m *MergeStream) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
}

// Run blocks until the stream is stopped or fails.
func (m *MergeStream) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUnstarted {
		m.mu.Unlock()
		return fmt.Errorf("merge stream for %v has already been started", m.spec.FullyQualifiedName())
	}
	ctx, m.cancel = context.WithCancel(ctx)
	defer m.cancel()
	if m.stopped {
		m.cancel()
	}
	m.mu.Unlock()
	m.setState(StateRunning, nil)
	c := &cycle{
		log:            m.log,
		src:            m.src,
		checkpoints:    m.cfg.Checkpoints,
		checkpointPath: m.cfg.CheckpointPath,
		maxRetries:     m.cfg.MaxApplyRetries,
		backoff:        m.cfg.RetryBackoff,
		watcher:        m.watcher,
		gate:           m.cfg.Gate,
		now:            m.now,
	}
	err := c.run(ctx, m.apply)
	var failure *applyFailure
	if errors.As(err, &failure) {
		err = &MergeApplyError{
			Table:      m.spec.FullyQualifiedName(),
			BatchID:    failure.batchID,
			Attempts:   failure.attempts,
			Checkpoint: failure.checkpoint,
			Cause:      failure.cause,
		}
	}
	if err != nil {
		m.log.Error("merge stream failed: ", err)
		m.setState(StateFailed, err)
		return err
	}
	m.setState(StateStopped, nil)
	return nil
}

func (m *MergeStream) apply(ctx context.Context, b *Batch) error {
	if m.keys == nil {
		keys, err := resolveMergeKeys(b.Schema, m.spec.MergeKeys())
		if err != nil {
			return &SchemaIncompatibleError{Table: m.spec.FullyQualifiedName(), Cause: err}
		}
		m.keys = keys
	}
	changes, err := Dedupe(b.Records, m.keys)
	if err != nil {
		return &SchemaIncompatibleError{Table: m.spec.FullyQualifiedName(), Cause: err}
	}
	m.log.Debug("merging batch ", b.ID, ": ", len(b.Records), " rows deduplicated to ", len(changes), " changes")
	return m.cfg.Destination.Merge(ctx, m.cfg.DestinationTable, b.Schema, m.keys, changes)
}

// resolveMergeKeys maps keys onto the schema's column names, ignoring case.
func resolveMergeKeys(s stagefile.Schema, keys []string) ([]string, error) {
	retval := make([]string, len(keys))
	for idx, k := range keys {
		bare := strings.Trim(k, `"`)
		for _, c := range s.DataColumnNames() {
			if c == bare {
				retval[idx] = c
				break
			}
			if retval[idx] == "" && strings.EqualFold(c, bare) {
				retval[idx] = c
			}
		}
		if retval[idx] == "" {
			return nil, fmt.Errorf("merge key %q not found in columns %v", k, s.DataColumnNames())
		}
	}
	return retval, nil
}
