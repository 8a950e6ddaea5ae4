package engine

import (
	"bytes"
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/stagefile"
	"github.com/relloyd/cdcpipe/storage"
	"github.com/relloyd/cdcpipe/stream"
	"github.com/relloyd/cdcpipe/table"
)

// ErrIdle is returned by Next when StopWhenIdle is set and there are no new files.
var ErrIdle = errors.New("no new staged files")

type SourceConfig struct {
	Log              logger.Logger
	Objects          storage.Store
	Namespace        *namespace.Namespace
	Table            table.Spec
	MaxFilesPerBatch int
	PollInterval     time.Duration // first wait when no files are found; doubles up to MaxPollInterval.
	MaxPollInterval  time.Duration
	StopWhenIdle     bool
}

// Batch is a set of staged files read together. Records are in file order then line order.
type Batch struct {
	ID      int64
	Files   []checkpoint.AppliedFile
	Schema  stagefile.Schema
	Records []stream.Record
}

// Source reads new staged files for one table in (LastModified, Key) order.
type Source struct {
	cfg      SourceConfig
	log      logger.Logger
	format   stagefile.Format
	state    checkpoint.State
	schema   *stagefile.Schema
	interval time.Duration
	now      func() time.Time
}

func OpenSource(cfg SourceConfig) *Source {
	if cfg.MaxFilesPerBatch <= 0 {
		cfg.MaxFilesPerBatch = constants.StreamMaxFilesPerBatch
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.StreamPollIntervalDefault
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = constants.StreamMaxPollIntervalDefault
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	return &Source{
		cfg:      cfg,
		log:      logger.ForTable(cfg.Log, cfg.Table.FullyQualifiedName(), string(cfg.Table.Mode())),
		format:   cfg.Namespace.Config().FileFormat,
		interval: cfg.PollInterval,
		now:      time.Now,
	}
}

func (s *Source) Table() table.Spec {
	return s.cfg.Table
}

// Seek makes Next return only files not covered by state.
func (s *Source) Seek(state checkpoint.State) {
	s.state = state
}

func (s *Source) Position() checkpoint.State {
	return s.state
}

// Next waits for new staged files and returns up to MaxFilesPerBatch of them.
// It returns ctx.Err() if ctx is cancelled while waiting or reading.
func (s *Source) Next(ctx context.Context) (*Batch, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := s.pending(ctx)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			s.interval = s.cfg.PollInterval
			return s.read(ctx, files)
		}
		if s.cfg.StopWhenIdle {
			return nil, ErrIdle
		}
		s.log.Trace("no new files; sleeping ", s.interval)
		if err = sleepContext(ctx, s.interval); err != nil {
			return nil, err
		}
		s.interval *= 2
		if s.interval > s.cfg.MaxPollInterval {
			s.interval = s.cfg.MaxPollInterval
		}
	}
}

// pending lists the data path and returns the files not yet covered by the checkpoint, oldest first.
func (s *Source) pending(ctx context.Context) ([]storage.ObjectInfo, error) {
	prefix := s.cfg.Namespace.DataPath(s.cfg.Table) + "/"
	objects, err := s.cfg.Objects.List(ctx, prefix)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "error listing %v", prefix)
	}
	retval := make([]storage.ObjectInfo, 0, len(objects))
	for _, o := range objects {
		base := path.Base(o.Key)
		if strings.HasSuffix(o.Key, "/") || strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
			continue
		}
		if s.state.Covers(o.Key, o.LastModified) {
			continue
		}
		retval = append(retval, o)
	}
	sort.Slice(retval, func(i, j int) bool {
		if retval[i].LastModified.Equal(retval[j].LastModified) {
			return retval[i].Key < retval[j].Key
		}
		return retval[i].LastModified.Before(retval[j].LastModified)
	})
	if len(retval) > s.cfg.MaxFilesPerBatch {
		retval = retval[:s.cfg.MaxFilesPerBatch]
	}
	return retval, nil
}

func (s *Source) read(ctx context.Context, files []storage.ObjectInfo) (*Batch, error) {
	b := &Batch{ID: s.state.BatchID + 1}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := s.readFile(ctx, f)
		if err != nil {
			return nil, err
		}
		b.Records = append(b.Records, records...)
		b.Files = append(b.Files, checkpoint.AppliedFile{Key: f.Key, LastModified: f.LastModified})
	}
	b.Schema = *s.schema
	s.log.Debug("read batch ", b.ID, " with ", len(b.Files), " files and ", len(b.Records), " rows")
	return b, nil
}

func (s *Source) readFile(ctx context.Context, f storage.ObjectInfo) ([]stream.Record, error) {
	data, err := s.cfg.Objects.Get(ctx, f.Key)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "error reading %v", f.Key)
	}
	rdr, err := stagefile.NewReader(bytes.NewReader(data), s.format, stagefile.DetectCompression(f.Key, s.format.Compression))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "error opening %v", f.Key)
	}
	defer func() {
		_ = rdr.Close()
	}()
	rows, err := rdr.ReadAllRaw()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "error reading %v", f.Key)
	}
	header := rdr.Header()
	schema, err := s.resolveSchema(ctx, f.Key, header, rows)
	if err != nil {
		return nil, err
	}
	if err = schema.CheckHeader(header); err != nil {
		return nil, &SchemaIncompatibleError{Table: s.cfg.Table.FullyQualifiedName(), File: f.Key, Cause: err}
	}
	retval := make([]stream.Record, len(rows))
	for idx, row := range rows {
		if retval[idx], err = stagefile.ToRecord(row, schema, s.format); err != nil {
			return nil, &SchemaIncompatibleError{
				Table: s.cfg.Table.FullyQualifiedName(),
				File:  f.Key,
				Cause: pkgerrors.Wrapf(err, "line %v", idx+2),
			}
		}
	}
	return retval, nil
}

// SchemaLocation is the path of the table's stored schema.
func SchemaLocation(ns *namespace.Namespace, spec table.Spec) string {
	return ns.SchemaPath(spec) + "/" + constants.SchemaFileName
}

// resolveSchema loads the stored schema, or infers and saves one from the first file seen.
func (s *Source) resolveSchema(ctx context.Context, key string, header []string, rows [][]string) (stagefile.Schema, error) {
	if s.schema != nil {
		return *s.schema, nil
	}
	loc := SchemaLocation(s.cfg.Namespace, s.cfg.Table)
	b, err := s.cfg.Objects.Get(ctx, loc)
	switch {
	case err == nil:
		schema, err := stagefile.UnmarshalSchema(b)
		if err != nil {
			return schema, pkgerrors.Wrapf(err, "error loading schema %v", loc)
		}
		s.schema = &schema
		s.log.Debug("loaded schema from ", loc)
	case errors.Is(err, storage.ErrObjectNotFound):
		schema := stagefile.InferSchema(header, rows, s.format)
		schema.InferredFrom = key
		schema.InferredAt = s.now().UTC()
		b, err := stagefile.MarshalSchema(schema)
		if err != nil {
			return schema, err
		}
		if err = s.cfg.Objects.Put(ctx, loc, b); err != nil {
			return schema, pkgerrors.Wrapf(err, "error saving schema %v", loc)
		}
		s.schema = &schema
		s.log.Info("inferred schema from ", key, " and saved it to ", loc)
	default:
		return stagefile.Schema{}, pkgerrors.Wrapf(err, "error loading schema %v", loc)
	}
	return *s.schema, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
