package actions

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/config"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/rdbms"
	"github.com/relloyd/cdcpipe/rdbms/shared"
)

const (
	QueryTargetSource      = "source"
	QueryTargetDestination = "destination"
)

type QueryConfig struct {
	JobConfig
	Target      string `errorTxt:"query target" mandatory:"yes"`
	Query       string `errorTxt:"SQL query" mandatory:"yes"`
	DryRun      bool
	PrintHeader bool
	Writer      io.Writer
}

// RunQuery runs SQL against the source warehouse or the destination database of a job.
// Results are written as CSV lines.
func RunQuery(cfg *QueryConfig) error {
	if cfg == nil {
		return errors.New("nil pointer to query config supplied")
	}
	w := writerOrStdout(cfg.Writer)
	if cfg.DryRun {
		_, err := fmt.Fprintln(w, cfg.Query)
		return err
	}
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	log := cfg.logger()
	job, err := config.LoadJob(cfg.JobFile)
	if err != nil {
		return err
	}
	var conn shared.ConnectionDetails
	switch cfg.Target {
	case QueryTargetSource:
		conn, err = job.SourceConnection()
	case QueryTargetDestination:
		conn, err = job.DestinationConnection()
	default:
		return errors.Errorf("unsupported query target %q: use %v or %v", cfg.Target, QueryTargetSource, QueryTargetDestination)
	}
	if err != nil {
		return err
	}
	log.Debug("querying ", conn)
	ctx, cancel := interruptContext()
	defer cancel()
	db, err := rdbms.OpenDbConnection(ctx, log, conn)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return runQuery(ctx, func(ctx context.Context, sql string) (*rdbms.ResultSet, error) {
		rs := &rdbms.ResultSet{}
		return rs, rdbms.SqlQuery(ctx, log, db, sql, rs)
	}, cfg.Query, w, cfg.PrintHeader)
}

func runQuery(ctx context.Context, q queryFunc, sql string, w io.Writer, printHeader bool) error {
	rs, err := q(ctx, sql)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if printHeader {
		if err = cw.Write(rs.Columns); err != nil {
			return err
		}
	}
	for _, row := range rs.Rows {
		rec := make([]string, len(row))
		for idx, v := range row {
			if rec[idx], err = helper.GetStringFromInterface(v); err != nil {
				return errors.Wrap(err, "error outputting SQL row")
			}
		}
		if err = cw.Write(rec); err != nil {
			return errors.Wrap(err, "error outputting SQL row")
		}
	}
	cw.Flush()
	return cw.Error()
}
