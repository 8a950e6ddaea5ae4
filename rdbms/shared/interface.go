package shared

import (
	"context"
	"database/sql"
)

// Connector abstracts access to Go SQL functionality.
type Connector interface {
	BeginTx(ctx context.Context) (Transacter, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Close() error
	GetType() string
}

type Transacter interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Commit() error
	Rollback() error
}

// Rows is satisfied by *sql.Rows.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// SqlResultHandler receives the output of a query one row at a time.
type SqlResultHandler interface {
	HandleHeader(header []interface{}) error
	HandleRow(row []interface{}) error
}
