package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/stats"
	"github.com/relloyd/cdcpipe/storage"
	"github.com/relloyd/cdcpipe/table"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type StreamConfig struct {
	PollInterval     time.Duration
	MaxPollInterval  time.Duration
	MaxFilesPerBatch int
	MaxApplyRetries  int
	RetryBackoff     time.Duration
	StopWhenIdle     bool // stop each stream once it has caught up.
}

type RunnerConfig struct {
	Log         logger.Logger
	Namespace   *namespace.Namespace
	Objects     storage.Store
	Checkpoints checkpoint.Store
	Destination destination.Store
	Stats       *stats.Manager // optional.
	Stream      StreamConfig
	Concurrency int  // maximum number of streams applying a batch at once.
	Reset       bool // drop destination tables, checkpoints and stored schemas before starting.
}

// Runner runs one stream per registered table.
type Runner struct {
	cfg    RunnerConfig
	runID  string
	mu     sync.Mutex
	cancel context.CancelFunc
	merges map[string]*MergeStream
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = constants.StreamConcurrencyDefault
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewManager(cfg.Log, stats.SetStatsDumpFrequency(0))
	}
	return &Runner{cfg: cfg, runID: xid.New().String(), merges: make(map[string]*MergeStream)}
}

func (r *Runner) RunID() string {
	return r.runID
}

// DestinationTableName is the destination table that spec is replicated into.
func DestinationTableName(spec table.Spec) string {
	return strings.Trim(spec.TableName(), `"`)
}

// Run claims every destination table, then streams all tables until ctx is cancelled, Stop is called
// or, with StopWhenIdle, every stream has caught up. A failed stream does not stop the others;
// the first failure is returned once all streams have finished.
func (r *Runner) Run(ctx context.Context) error {
	ns := r.cfg.Namespace
	ns.Freeze()
	specs := ns.Tables()
	if len(specs) == 0 {
		return errors.New("no tables registered")
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("runner has already been started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()
	r.mu.Unlock()
	for _, spec := range specs {
		release, err := r.cfg.Destination.Claim(DestinationTableName(spec))
		if err != nil {
			return errors.Wrapf(err, "table %v", spec.FullyQualifiedName())
		}
		defer release()
	}
	if r.cfg.Reset {
		for _, spec := range specs {
			if err := ResetTable(ctx, r.cfg.Log, ns, r.cfg.Objects, r.cfg.Checkpoints, r.cfg.Destination, spec); err != nil {
				return err
			}
		}
	}
	r.cfg.Stats.StartDumping()
	defer r.cfg.Stats.StopDumping()
	r.cfg.Log.Info("starting ", len(specs), " table streams with run id ", r.runID)
	gate := semaphore.NewWeighted(int64(r.cfg.Concurrency))
	g := errgroup.Group{}
	for _, spec := range specs {
		watcher := r.cfg.Stats.AddStreamWatcher(spec.FullyQualifiedName(), string(spec.Mode()), r.runID)
		watcher.SetState(StateUnstarted.String())
		g.Go(func() error {
			if err := r.runTable(ctx, spec, watcher, gate); err != nil {
				return errors.Wrapf(err, "table %v", spec.FullyQualifiedName())
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) runTable(ctx context.Context, spec table.Spec, watcher *stats.StreamWatcher, gate Gate) error {
	ns := r.cfg.Namespace
	mode := spec.Mode()
	src := OpenSource(SourceConfig{
		Log:              r.cfg.Log,
		Objects:          r.cfg.Objects,
		Namespace:        ns,
		Table:            spec,
		MaxFilesPerBatch: r.cfg.Stream.MaxFilesPerBatch,
		PollInterval:     r.cfg.Stream.PollInterval,
		MaxPollInterval:  r.cfg.Stream.MaxPollInterval,
		StopWhenIdle:     r.cfg.Stream.StopWhenIdle,
	})
	if mode == table.ModeAppend {
		watcher.SetState(StateRunning.String())
		w := NewAppendWriter(AppendConfig{
			Log:             r.cfg.Log,
			Destination:     r.cfg.Destination,
			Checkpoints:     r.cfg.Checkpoints,
			MaxApplyRetries: r.cfg.Stream.MaxApplyRetries,
			RetryBackoff:    r.cfg.Stream.RetryBackoff,
			Watcher:         watcher,
			Gate:            gate,
		})
		if err := w.Persist(ctx, src, DestinationTableName(spec), ns.CheckpointPath(spec, mode)); err != nil {
			watcher.SetState(StateFailed.String())
			watcher.SetError(err)
			return err
		}
		watcher.SetState(StateStopped.String())
		return nil
	}
	m, err := NewMergeStream(src, MergeConfig{
		Log:              r.cfg.Log,
		Destination:      r.cfg.Destination,
		Checkpoints:      r.cfg.Checkpoints,
		DestinationTable: DestinationTableName(spec),
		CheckpointPath:   ns.CheckpointPath(spec, mode),
		MaxApplyRetries:  r.cfg.Stream.MaxApplyRetries,
		RetryBackoff:     r.cfg.Stream.RetryBackoff,
		Watcher:          watcher,
		Gate:             gate,
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.merges[spec.FullyQualifiedName()] = m
	r.mu.Unlock()
	return m.Run(ctx)
}

// Stop asks every stream to finish its current batch. It does not wait for Run to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	for _, m := range r.merges {
		m.Stop()
	}
}

// Stats returns the status of every stream in registration order.
func (r *Runner) Stats() []stats.Stats {
	return r.cfg.Stats.GetStats()
}

// Status returns the status of the stream for the fully qualified table name.
func (r *Runner) Status(table string) (stats.Stats, bool) {
	return r.cfg.Stats.Get(table)
}

// ResetTable discards everything replicated for spec so the next stream starts from the first staged file.
// Staged data files are kept.
func ResetTable(ctx context.Context, log logger.Logger, ns *namespace.Namespace, objects storage.Store, checkpoints checkpoint.Store, dest destination.Store, spec table.Spec) error {
	log = logger.ForTable(log, spec.FullyQualifiedName(), string(spec.Mode()))
	for _, mode := range []table.Mode{table.ModeAppend, table.ModeMerge} {
		if err := checkpoints.Save(ctx, ns.CheckpointPath(spec, mode), checkpoint.State{}); err != nil {
			return errors.Wrapf(err, "error resetting %v checkpoint for %v", mode, spec.FullyQualifiedName())
		}
	}
	if err := objects.Delete(ctx, SchemaLocation(ns, spec)); err != nil {
		return errors.Wrapf(err, "error deleting stored schema for %v", spec.FullyQualifiedName())
	}
	if err := dest.Drop(ctx, DestinationTableName(spec)); err != nil {
		return err
	}
	log.Warn("reset checkpoints, stored schema and destination table ", DestinationTableName(spec))
	return nil
}
