package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/rdbms"
	"github.com/relloyd/cdcpipe/table"
	"golang.org/x/sync/errgroup"
)

// Object kinds provisioned in the source warehouse.
const (
	KindFileFormat = "FILE FORMAT"
	KindStage      = "STAGE"
	KindStream     = "STREAM"
	KindTask       = "TASK"
)

// Handle identifies a provisioned object.
type Handle struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`    // fully qualified.
	Created bool   `json:"created"` // true if this call created the object.
}

func (h Handle) String() string {
	return fmt.Sprintf("%v %v", strings.ToLower(h.Kind), h.Name)
}

// TableHandles are the objects provisioned for one table.
type TableHandles struct {
	Table  table.Identity `json:"table"`
	Stream Handle         `json:"stream"`
	Task   Handle         `json:"task"`
}

// SetupResult is everything SetupAll provisioned or found for a namespace.
type SetupResult struct {
	FileFormat Handle         `json:"fileFormat"`
	Stage      Handle         `json:"stage"`
	Tables     []TableHandles `json:"tables"`
}

// CreatedCount counts the objects created by the call that produced r.
func (r SetupResult) CreatedCount() int {
	n := 0
	for _, h := range r.Handles() {
		if h.Created {
			n++
		}
	}
	return n
}

// Handles lists the file format and stage followed by each table's stream and task.
func (r SetupResult) Handles() []Handle {
	retval := make([]Handle, 0, 2+2*len(r.Tables))
	retval = append(retval, r.FileFormat, r.Stage)
	for _, t := range r.Tables {
		retval = append(retval, t.Stream, t.Task)
	}
	return retval
}

type Config struct {
	TaskWarehouse string // warehouse that runs the export tasks; empty uses serverless tasks.
	TaskSchedule  string // defaults to constants.TaskScheduleDefault.

	// RecreateAfterFailureWindow controls what happens to a stale change stream.
	// Zero fails setup so an operator can intervene. A positive window replaces the stream once it
	// has been stale for longer than the window, losing any changes it had not exported.
	RecreateAfterFailureWindow time.Duration
}

// Connection provisions export infrastructure in the source warehouse and runs ad-hoc queries.
type Connection struct {
	session Session
	cfg     Config
	log     logger.Logger
	now     func() time.Time
}

func NewConnection(log logger.Logger, session Session, cfg Config) *Connection {
	if cfg.TaskSchedule == "" {
		cfg.TaskSchedule = constants.TaskScheduleDefault
	}
	return &Connection{session: session, cfg: cfg, log: log, now: time.Now}
}

// Open connects to Snowflake using dsn.
func Open(ctx context.Context, log logger.Logger, dsn string, cfg Config) (*Connection, error) {
	conn, err := rdbms.NewSnowflakeConnection(ctx, log, dsn)
	if err != nil {
		return nil, err
	}
	return NewConnection(log, NewSession(log, conn), cfg), nil
}

// Close releases the session.
func (c *Connection) Close() error {
	return c.session.Close()
}

// RunQuery executes sql and returns all of its rows. It is not retried.
func (c *Connection) RunQuery(ctx context.Context, sql string) (*rdbms.ResultSet, error) {
	c.log.Debug("running query: ", sql)
	rs, err := c.session.Query(ctx, sql)
	if err != nil {
		return nil, newQueryError(err, sql)
	}
	return rs, nil
}

func newQueryError(err error, sql string) *QueryError {
	code, _ := rdbms.SnowflakeErrorCode(err)
	return &QueryError{Code: code, Message: err.Error(), SQL: sql, Cause: err}
}

func (c *Connection) exec(ctx context.Context, sql string) error {
	c.log.Debug("executing: ", sql)
	if err := c.session.Exec(ctx, sql); err != nil {
		return newQueryError(err, sql)
	}
	return nil
}

// findObject runs SHOW <kind>S LIKE and returns the row index of the object called name, or -1.
func (c *Connection) findObject(ctx context.Context, kind string, name string, database string, schema string) (*rdbms.ResultSet, int, error) {
	plural := kind + "S"
	rs, err := c.session.Query(ctx, showObjectsSQL(plural, name, database, schema))
	if err != nil {
		return nil, -1, newQueryError(err, showObjectsSQL(plural, name, database, schema))
	}
	bare := strings.Trim(name, `"`)
	for idx := 0; idx < rs.Len(); idx++ {
		if v, ok := rs.StringValue(idx, "name"); ok && strings.EqualFold(v, bare) {
			return rs, idx, nil
		}
	}
	return rs, -1, nil
}

func lastPart(fq string) string {
	parts := strings.Split(fq, ".")
	return parts[len(parts)-1]
}

// AccountSetup creates the namespace file format and stage if they do not exist.
// Calls for the same namespace are serialised.
func (c *Connection) AccountSetup(ctx context.Context, ns *namespace.Namespace) (fileFormat Handle, stage Handle, err error) {
	unlock := ns.LockSetup()
	defer unlock()
	ns.Freeze()
	cfg := ns.Config()
	fileFormat = Handle{Kind: KindFileFormat, Name: ns.FullyQualified(cfg.FileFormatName)}
	stage = Handle{Kind: KindStage, Name: ns.FullyQualified(cfg.StageName)}
	// Check for both objects before creating either.
	_, ffIdx, err := c.findObject(ctx, KindFileFormat, cfg.FileFormatName, cfg.Database, cfg.Schema)
	if err != nil {
		return fileFormat, stage, &ProvisioningError{Resource: fileFormat.String(), Cause: err}
	}
	_, stIdx, err := c.findObject(ctx, KindStage, cfg.StageName, cfg.Database, cfg.Schema)
	if err != nil {
		return fileFormat, stage, &ProvisioningError{Resource: stage.String(), Cause: err}
	}
	if ffIdx < 0 {
		if err = c.exec(ctx, getFileFormatDDL(ns)); err != nil {
			return fileFormat, stage, &ProvisioningError{Resource: fileFormat.String(), Cause: err}
		}
		fileFormat.Created = true
		c.log.Info("created ", fileFormat)
	} else {
		c.log.Debug("found existing ", fileFormat)
	}
	if stIdx < 0 {
		ddl, err := getStageDDL(ns)
		if err != nil {
			return fileFormat, stage, &ProvisioningError{Resource: stage.String(), Cause: err}
		}
		if err = c.exec(ctx, ddl); err != nil {
			return fileFormat, stage, &ProvisioningError{Resource: stage.String(), Cause: err}
		}
		stage.Created = true
		c.log.Info("created ", stage)
	} else {
		c.log.Debug("found existing ", stage)
	}
	return fileFormat, stage, nil
}

// TableSetup creates the change stream and export task for spec if they do not exist.
// An existing stream is never recreated unless it is stale and RecreateAfterFailureWindow allows it.
func (c *Connection) TableSetup(ctx context.Context, spec table.Spec, ns *namespace.Namespace) (stream Handle, task Handle, err error) {
	ns.Freeze()
	stream = Handle{Kind: KindStream, Name: StreamName(spec)}
	task = Handle{Kind: KindTask, Name: TaskName(spec)}
	log := logger.ForTable(c.log, spec.FullyQualifiedName(), string(spec.Mode()))
	// Check for both objects before creating either.
	streams, streamIdx, err := c.findObject(ctx, KindStream, lastPart(stream.Name), spec.Database(), spec.Schema())
	if err != nil {
		return stream, task, &ProvisioningError{Resource: stream.String(), Cause: err}
	}
	tasks, taskIdx, err := c.findObject(ctx, KindTask, lastPart(task.Name), spec.Database(), spec.Schema())
	if err != nil {
		return stream, task, &ProvisioningError{Resource: task.String(), Cause: err}
	}
	if streamIdx < 0 {
		if err = c.exec(ctx, getStreamDDL(spec, false)); err != nil {
			return stream, task, &ProvisioningError{Resource: stream.String(), Cause: err}
		}
		stream.Created = true
		log.Info("created ", stream)
	} else if err = c.checkStaleStream(ctx, log, spec, streams, streamIdx); err != nil {
		return stream, task, &ProvisioningError{Resource: stream.String(), Cause: err}
	}
	resume := false
	if taskIdx < 0 {
		if err = c.exec(ctx, getTaskDDL(spec, ns, c.cfg.TaskWarehouse, c.cfg.TaskSchedule)); err != nil {
			return stream, task, &ProvisioningError{Resource: task.String(), Cause: err}
		}
		task.Created = true
		resume = true
		log.Info("created ", task)
	} else if state, _ := tasks.StringValue(taskIdx, "state"); !strings.EqualFold(state, "started") {
		log.Info("found ", task, " in state ", state)
		resume = true
	}
	if resume {
		if err = c.exec(ctx, getResumeTaskSQL(spec)); err != nil {
			return stream, task, &ProvisioningError{Resource: task.String(), Cause: err}
		}
	}
	return stream, task, nil
}

// checkStaleStream applies the stale stream policy to an existing stream.
func (c *Connection) checkStaleStream(ctx context.Context, log logger.Logger, spec table.Spec, rs *rdbms.ResultSet, idx int) error {
	stale, _ := rs.StringValue(idx, "stale")
	if !strings.EqualFold(stale, "true") {
		return nil
	}
	if c.cfg.RecreateAfterFailureWindow <= 0 {
		return errors.Errorf("stream %v is stale and must be recreated by an operator", StreamName(spec))
	}
	var staleAfter time.Time
	ok := false
	if col := rs.ColumnIndex("stale_after"); col >= 0 {
		staleAfter, ok = parseTimestamp(rs.Rows[idx][col])
	}
	if !ok {
		return errors.Errorf("stream %v is stale but its stale_after time could not be read", StreamName(spec))
	}
	if c.now().Sub(staleAfter) < c.cfg.RecreateAfterFailureWindow {
		return errors.Errorf("stream %v is stale since %v; it will be recreated after %v",
			StreamName(spec), staleAfter, staleAfter.Add(c.cfg.RecreateAfterFailureWindow))
	}
	log.Warn("stream ", StreamName(spec), " has been stale since ", staleAfter, "; recreating it, changes not yet exported are lost")
	return c.exec(ctx, getStreamDDL(spec, true))
}

func parseTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.000 -0700", "2006-01-02 15:04:05 -0700", "2006-01-02 15:04:05.000"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// SetupAll runs AccountSetup then TableSetup for every table in ns with at most limit tables in flight.
// Table handles are returned in registration order.
func (c *Connection) SetupAll(ctx context.Context, ns *namespace.Namespace, limit int) (SetupResult, error) {
	var result SetupResult
	var err error
	if result.FileFormat, result.Stage, err = c.AccountSetup(ctx, ns); err != nil {
		return result, err
	}
	if limit <= 0 {
		limit = constants.SetupConcurrencyDefault
	}
	specs := ns.Tables()
	retval := make([]TableHandles, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for idx, spec := range specs {
		g.Go(func() error {
			stream, task, err := c.TableSetup(gctx, spec, ns)
			if err != nil {
				return errors.Wrapf(err, "table %v", spec.FullyQualifiedName())
			}
			retval[idx] = TableHandles{Table: spec.Identity(), Stream: stream, Task: task}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return result, err
	}
	result.Tables = retval
	return result, nil
}
