package actions

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/config"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/engine"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/stats"
	"github.com/relloyd/cdcpipe/storage"
)

type StreamConfig struct {
	JobConfig
	Reset                     bool // discard replicated state before streaming.
	Once                      bool // stop each stream once it has caught up.
	WebService                bool
	Web                       WebServerConfig
	StatsDumpFrequencySeconds int // zero uses the job file value.
}

// RunStream replicates every table in the job into the destination until interrupted.
func RunStream(cfg *StreamConfig) error {
	if cfg == nil {
		return errors.New("nil pointer to stream config supplied")
	}
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	log := cfg.logger()
	job, ns, err := cfg.load()
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext()
	defer cancel()
	sc := job.StorageConfig()
	if sc.LocalRoot, err = config.ExpandPath(sc.LocalRoot); err != nil {
		return err
	}
	objects, err := storage.Open(sc)
	if err != nil {
		return err
	}
	cc := job.CheckpointConfig()
	if cc.SqlitePath, err = config.ExpandPath(cc.SqlitePath); err != nil {
		return err
	}
	checkpoints, err := checkpoint.Open(cc, objects)
	if err != nil {
		return err
	}
	if c, ok := checkpoints.(io.Closer); ok {
		defer func() {
			_ = c.Close()
		}()
	}
	dc := job.DestinationConfig()
	if dc.Dsn, err = config.ExpandPath(dc.Dsn); err != nil {
		return err
	}
	dest, err := destination.NewDuckDBStore(ctx, log, dc)
	if err != nil {
		return err
	}
	defer func() {
		_ = dest.Close()
	}()
	streamCfg := job.StreamConfig()
	streamCfg.StopWhenIdle = cfg.Once
	runner := engine.NewRunner(engine.RunnerConfig{
		Log:         log,
		Namespace:   ns,
		Objects:     objects,
		Checkpoints: checkpoints,
		Destination: dest,
		Stats:       stats.NewManager(log, stats.SetStatsDumpFrequency(statsFrequency(cfg, job))),
		Stream:      streamCfg,
		Concurrency: job.StreamConcurrency(),
		Reset:       cfg.Reset,
	})
	return runStreams(ctx, log, runner, cfg)
}

func statsFrequency(cfg *StreamConfig, job *config.Job) time.Duration {
	if cfg.StatsDumpFrequencySeconds > 0 {
		return time.Duration(cfg.StatsDumpFrequencySeconds) * time.Second
	}
	if job.Stream.StatsInterval.Duration > 0 {
		return job.Stream.StatsInterval.Duration
	}
	return stats.DefaultStatsDumpFrequency
}

func runStreams(ctx context.Context, log logger.Logger, s Streamer, cfg *StreamConfig) error {
	if cfg.WebService {
		srv := startWebServer(log, cfg.Web, s, s.RunID())
		defer shutdownWebServer(log, srv)
	}
	err := s.Run(ctx)
	if err != nil {
		log.Error("streaming ended with error: ", err)
		return err
	}
	log.Info("all streams stopped")
	return nil
}
