package rdbms

import (
	"context"
	"database/sql"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/rdbms/shared"
)

// NewDuckDBConnection opens the DuckDB database file at dsn. An empty dsn opens an in-memory database.
func NewDuckDBConnection(ctx context.Context, log logger.Logger, dsn string) (shared.Connector, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening DuckDB database")
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error connecting to DuckDB")
	}
	if dsn == "" {
		// Every connection to an in-memory database is a separate database.
		db.SetMaxOpenConns(1)
	}
	log.Debug("Successful database connection to DuckDB: ", dsn)
	return shared.NewHpConnection(db, constants.ConnectionTypeDuckDB), nil
}
