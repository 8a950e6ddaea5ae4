package rdbms

import (
	"context"
	"fmt"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/rdbms/shared"
)

// OpenDbConnection opens a database connection using the supplied ConnectionDetails struct in c.
func OpenDbConnection(ctx context.Context, log logger.Logger, c shared.ConnectionDetails) (db shared.Connector, err error) {
	log.Debug("opening connection type ", c.Type, " with logicalName ", c.LogicalName) // don't log password details!
	switch c.Type {
	case constants.ConnectionTypeSnowflake:
		db, err = NewSnowflakeConnection(ctx, log, c.Dsn)
	case constants.ConnectionTypeDuckDB:
		db, err = NewDuckDBConnection(ctx, log, c.Dsn)
	default:
		err = fmt.Errorf("unsupported database type, %q", c.Type)
	}
	return
}
