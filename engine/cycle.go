package engine

import (
	"context"
	"errors"
	"time"

	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/stats"
)

// Gate bounds how many streams apply batches at the same time. *semaphore.Weighted satisfies it.
type Gate interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

// applyFunc writes one batch to the destination.
type applyFunc func(ctx context.Context, b *Batch) error

// applyFailure is returned by cycle.run when a batch could not be applied or checkpointed.
type applyFailure struct {
	batchID    int64
	attempts   int
	checkpoint checkpoint.State
	cause      error
}

func (e *applyFailure) Error() string {
	return e.cause.Error()
}

func (e *applyFailure) Unwrap() error {
	return e.cause
}

// cycle is the read, apply, checkpoint loop shared by append and merge streams.
// Batches are applied strictly in order and the checkpoint only advances after the apply commits.
type cycle struct {
	log            logger.Logger
	src            *Source
	checkpoints    checkpoint.Store
	checkpointPath string
	maxRetries     int
	backoff        time.Duration
	watcher        *stats.StreamWatcher
	gate           Gate
	now            func() time.Time
}

func (c *cycle) defaults() {
	if c.maxRetries <= 0 {
		c.maxRetries = constants.StreamMaxApplyRetries
	}
	if c.backoff <= 0 {
		c.backoff = constants.StreamRetryBackoffDefault
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.watcher == nil {
		spec := c.src.Table()
		c.watcher = stats.NewStreamWatcher(spec.FullyQualifiedName(), string(spec.Mode()), "")
	}
}

// run returns nil when ctx is cancelled between batches or the source is idle in StopWhenIdle mode.
func (c *cycle) run(ctx context.Context, apply applyFunc) error {
	c.defaults()
	state, err := c.retry(ctx, func(ctx context.Context) (checkpoint.State, error) {
		return c.checkpoints.Load(ctx, c.checkpointPath)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &applyFailure{attempts: c.maxRetries + 1, cause: err}
	}
	c.src.Seek(state)
	c.watcher.SetCheckpoint(state)
	c.log.Info("starting from checkpoint batch ", state.BatchID, " at ", c.checkpointPath)
	readFailures := 0
	for {
		b, err := c.src.Next(ctx)
		switch {
		case err == nil:
			readFailures = 0
		case errors.Is(err, ErrIdle):
			c.log.Info("no new files; stopping")
			return nil
		case ctx.Err() != nil:
			c.log.Info("stopped at checkpoint batch ", c.src.Position().BatchID)
			return nil
		default:
			var schemaErr *SchemaIncompatibleError
			if errors.As(err, &schemaErr) {
				return err
			}
			readFailures++
			c.watcher.Retried(err)
			if readFailures > c.maxRetries {
				return &applyFailure{batchID: c.src.Position().BatchID + 1, attempts: readFailures, checkpoint: c.src.Position(), cause: err}
			}
			c.log.Warn("error reading staged files (attempt ", readFailures, "): ", err)
			if sleepContext(ctx, c.backoffFor(readFailures)) != nil {
				return nil
			}
			continue
		}
		if err = c.commit(ctx, b, apply); err != nil {
			return err
		}
	}
}

// commit applies b and saves the checkpoint. Neither step observes cancellation of ctx.
func (c *cycle) commit(ctx context.Context, b *Batch, apply applyFunc) error {
	detached := context.WithoutCancel(ctx)
	if c.gate != nil {
		if err := c.gate.Acquire(ctx, 1); err != nil {
			return nil // stopped while waiting for a slot; the batch was never applied.
		}
		defer c.gate.Release(1)
	}
	prior := c.src.Position()
	attempts := 0
	for {
		attempts++
		err := apply(detached, b)
		if err == nil {
			break
		}
		var schemaErr *SchemaIncompatibleError
		if errors.As(err, &schemaErr) {
			return err
		}
		c.watcher.Retried(err)
		if attempts > c.maxRetries {
			return &applyFailure{batchID: b.ID, attempts: attempts, checkpoint: prior, cause: err}
		}
		c.log.Warn("error applying batch ", b.ID, " (attempt ", attempts, "): ", err)
		_ = sleepContext(detached, c.backoffFor(attempts))
	}
	next := prior.Advance(b.Files, int64(len(b.Records)), c.now())
	if _, err := c.retry(detached, func(ctx context.Context) (checkpoint.State, error) {
		return next, c.checkpoints.Save(ctx, c.checkpointPath, next)
	}); err != nil {
		// The batch is committed but will be applied again after a restart.
		return &applyFailure{batchID: b.ID, attempts: c.maxRetries + 1, checkpoint: prior, cause: err}
	}
	c.src.Seek(next)
	c.watcher.SetError(nil)
	c.watcher.BatchApplied(len(b.Files), len(b.Records), next)
	c.log.Debug("committed batch ", b.ID, "; watermark ", next.Watermark)
	return nil
}

func (c *cycle) retry(ctx context.Context, fn func(ctx context.Context) (checkpoint.State, error)) (checkpoint.State, error) {
	var err error
	var s checkpoint.State
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if s, err = fn(ctx); err == nil {
			return s, nil
		}
		c.watcher.Retried(err)
		c.log.Warn("checkpoint error at ", c.checkpointPath, " (attempt ", attempt, "): ", err)
		if attempt <= c.maxRetries && sleepContext(ctx, c.backoffFor(attempt)) != nil {
			return s, err
		}
	}
	return s, err
}

// backoffFor doubles the backoff per attempt up to the maximum poll interval.
func (c *cycle) backoffFor(attempt int) time.Duration {
	d := c.backoff
	for i := 1; i < attempt && d < constants.StreamMaxPollIntervalDefault; i++ {
		d *= 2
	}
	if d > constants.StreamMaxPollIntervalDefault {
		d = constants.StreamMaxPollIntervalDefault
	}
	return d
}
