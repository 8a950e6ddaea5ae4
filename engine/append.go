package engine

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/stats"
)

type AppendConfig struct {
	Log             logger.Logger
	Destination     destination.Store
	Checkpoints     checkpoint.Store
	MaxApplyRetries int
	RetryBackoff    time.Duration
	Watcher         *stats.StreamWatcher // optional.
	Gate            Gate                 // optional.
}

// AppendWriter copies every staged row, including change metadata, into a destination table.
// Rows of a batch applied before a crash but not checkpointed are appended again on restart.
type AppendWriter struct {
	cfg AppendConfig
	now func() time.Time
}

func NewAppendWriter(cfg AppendConfig) *AppendWriter {
	return &AppendWriter{cfg: cfg, now: time.Now}
}

// Persist appends batches from src to destinationTable until ctx is cancelled,
// checkpointing at checkpointPath after each one.
func (w *AppendWriter) Persist(ctx context.Context, src *Source, destinationTable string, checkpointPath string) error {
	spec := src.Table()
	log := logger.ForTable(w.cfg.Log, spec.FullyQualifiedName(), "append")
	c := &cycle{
		log:            log,
		src:            src,
		checkpoints:    w.cfg.Checkpoints,
		checkpointPath: checkpointPath,
		maxRetries:     w.cfg.MaxApplyRetries,
		backoff:        w.cfg.RetryBackoff,
		watcher:        w.cfg.Watcher,
		gate:           w.cfg.Gate,
		now:            w.now,
	}
	err := c.run(ctx, func(ctx context.Context, b *Batch) error {
		return w.cfg.Destination.Append(ctx, destinationTable, b.Schema, b.Records)
	})
	var failure *applyFailure
	if errors.As(err, &failure) {
		return pkgerrors.Wrapf(failure.cause, "append into table %v failed for batch %v after %v attempts (checkpoint batch %v)",
			destinationTable, failure.batchID, failure.attempts, failure.checkpoint.BatchID)
	}
	return err
}
