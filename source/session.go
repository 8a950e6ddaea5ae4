//go:generate mockgen -package mocks -destination mocks/session.go -source=session.go
package source

import (
	"context"

	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/rdbms"
	"github.com/relloyd/cdcpipe/rdbms/shared"
)

// Session executes statements against the source warehouse.
type Session interface {
	Query(ctx context.Context, sql string) (*rdbms.ResultSet, error)
	Exec(ctx context.Context, sql string) error
	Close() error
}

type connSession struct {
	conn shared.Connector
	log  logger.Logger
}

// NewSession adapts a database connection to a Session.
func NewSession(log logger.Logger, conn shared.Connector) Session {
	return &connSession{conn: conn, log: log}
}

func (s *connSession) Query(ctx context.Context, sql string) (*rdbms.ResultSet, error) {
	rs := &rdbms.ResultSet{}
	if err := rdbms.SqlQuery(ctx, s.log, s.conn, sql, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *connSession) Exec(ctx context.Context, sql string) error {
	_, err := s.conn.ExecContext(ctx, sql)
	return err
}

func (s *connSession) Close() error {
	return s.conn.Close()
}
