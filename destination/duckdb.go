package destination

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/rdbms"
	"github.com/relloyd/cdcpipe/rdbms/shared"
	"github.com/relloyd/cdcpipe/stagefile"
	"github.com/relloyd/cdcpipe/stream"
)

type DuckDBConfig struct {
	Dsn    string // database file; empty for an in-memory database.
	Schema string // optional schema that holds every destination table.
}

// DuckDBStore writes destination tables to a DuckDB database.
type DuckDBStore struct {
	log     logger.Logger
	db      shared.Connector
	schema  string
	mu      sync.Mutex
	claimed map[string]bool
	locks   map[string]*sync.Mutex
	ready   map[string]bool // tables known to exist.
}

// NewDuckDBStore opens the database in cfg.Dsn and creates cfg.Schema if it is missing.
func NewDuckDBStore(ctx context.Context, log logger.Logger, cfg DuckDBConfig) (*DuckDBStore, error) {
	db, err := rdbms.NewDuckDBConnection(ctx, log, cfg.Dsn)
	if err != nil {
		return nil, err
	}
	s, err := NewDuckDBStoreWithConnection(ctx, log, db, cfg.Schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewDuckDBStoreWithConnection uses an existing connection.
func NewDuckDBStoreWithConnection(ctx context.Context, log logger.Logger, db shared.Connector, schema string) (*DuckDBStore, error) {
	s := &DuckDBStore{
		log:     log,
		db:      db,
		schema:  schema,
		claimed: make(map[string]bool),
		locks:   make(map[string]*sync.Mutex),
		ready:   make(map[string]bool),
	}
	if schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %v", helper.QuoteIdentifier(schema))); err != nil {
			return nil, errors.Wrapf(err, "error creating destination schema %v", schema)
		}
	}
	return s, nil
}

func (s *DuckDBStore) Claim(table string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[table] {
		return nil, errors.Wrap(ErrTableClaimed, table)
	}
	s.claimed[table] = true
	once := sync.Once{}
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.claimed, table)
			s.mu.Unlock()
		})
	}, nil
}

// tableLock returns the mutex guarding writes to table.
func (s *DuckDBStore) tableLock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[table]
	if !ok {
		l = &sync.Mutex{}
		s.locks[table] = l
	}
	return l
}

// QualifiedName returns the quoted name of table in the destination schema.
func (s *DuckDBStore) QualifiedName(table string) string {
	if s.schema == "" {
		return helper.QuoteIdentifier(table)
	}
	return helper.QuoteIdentifier(s.schema) + "." + helper.QuoteIdentifier(table)
}

func getCreateTableDDL(name string, cols []stagefile.Column) string {
	defs := make([]string, len(cols))
	for idx, c := range cols {
		defs[idx] = fmt.Sprintf("%v %v", helper.QuoteIdentifier(c.Name), c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (%v)", name, strings.Join(defs, ", "))
}

func getInsertDML(name string, cols []string) string {
	quoted := make([]string, len(cols))
	binds := make([]string, len(cols))
	for idx, c := range cols {
		quoted[idx] = helper.QuoteIdentifier(c)
		binds[idx] = "?"
	}
	return fmt.Sprintf("INSERT INTO %v (%v) VALUES (%v)", name, strings.Join(quoted, ", "), strings.Join(binds, ", "))
}

// getDeleteDML matches NULL keys as equal.
func getDeleteDML(name string, keys []string) string {
	preds := make([]string, len(keys))
	for idx, k := range keys {
		preds[idx] = fmt.Sprintf("%v IS NOT DISTINCT FROM ?", helper.QuoteIdentifier(k))
	}
	return fmt.Sprintf("DELETE FROM %v WHERE %v", name, strings.Join(preds, " AND "))
}

func (s *DuckDBStore) ensureTable(ctx context.Context, table string, cols []stagefile.Column) error {
	s.mu.Lock()
	ok := s.ready[table]
	s.mu.Unlock()
	if ok {
		return nil
	}
	ddl := getCreateTableDDL(s.QualifiedName(table), cols)
	s.log.Debug("ensuring destination table: ", ddl)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrapf(err, "error creating destination table %v", table)
	}
	s.mu.Lock()
	s.ready[table] = true
	s.mu.Unlock()
	return nil
}

func dataColumns(schema stagefile.Schema) []stagefile.Column {
	retval := make([]stagefile.Column, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		if !stagefile.IsMetadataColumn(c.Name) {
			retval = append(retval, c)
		}
	}
	return retval
}

// Append inserts rows in one transaction.
func (s *DuckDBStore) Append(ctx context.Context, table string, schema stagefile.Schema, rows []stream.Record) error {
	l := s.tableLock(table)
	l.Lock()
	defer l.Unlock()
	if err := s.ensureTable(ctx, table, schema.Columns); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	cols := schema.ColumnNames()
	return s.inTx(ctx, table, func(tx shared.Transacter) error {
		stmt, err := tx.PrepareContext(ctx, getInsertDML(s.QualifiedName(table), cols))
		if err != nil {
			return errors.Wrap(err, "error preparing insert")
		}
		defer stmt.Close()
		for idx, r := range rows {
			if _, err = stmt.ExecContext(ctx, r.GetValues(cols)...); err != nil {
				return errors.Wrapf(err, "error inserting row %v", idx)
			}
		}
		return nil
	})
}

// Merge applies changes in one transaction. Every change deletes the existing row for its keys
// and upserts insert the new row, so applying the same changes twice gives the same table.
func (s *DuckDBStore) Merge(ctx context.Context, table string, schema stagefile.Schema, keys []string, changes []Change) error {
	if len(keys) == 0 {
		return errors.Errorf("merge into %v requires at least one key column", table)
	}
	l := s.tableLock(table)
	l.Lock()
	defer l.Unlock()
	cols := dataColumns(schema)
	if err := s.ensureTable(ctx, table, cols); err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	names := make([]string, len(cols))
	for idx, c := range cols {
		names[idx] = c.Name
	}
	return s.inTx(ctx, table, func(tx shared.Transacter) error {
		del, err := tx.PrepareContext(ctx, getDeleteDML(s.QualifiedName(table), keys))
		if err != nil {
			return errors.Wrap(err, "error preparing delete")
		}
		defer del.Close()
		ins, err := tx.PrepareContext(ctx, getInsertDML(s.QualifiedName(table), names))
		if err != nil {
			return errors.Wrap(err, "error preparing insert")
		}
		defer ins.Close()
		for idx, c := range changes {
			if _, err = del.ExecContext(ctx, c.Record.GetValues(keys)...); err != nil {
				return errors.Wrapf(err, "error deleting change %v", idx)
			}
			if c.Delete {
				continue
			}
			if _, err = ins.ExecContext(ctx, c.Record.GetValues(names)...); err != nil {
				return errors.Wrapf(err, "error inserting change %v", idx)
			}
		}
		return nil
	})
}

func (s *DuckDBStore) inTx(ctx context.Context, table string, fn func(tx shared.Transacter) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("error rolling back transaction on ", table, ": ", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "error committing %v", table)
	}
	return nil
}

func (s *DuckDBStore) Drop(ctx context.Context, table string) error {
	l := s.tableLock(table)
	l.Lock()
	defer l.Unlock()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %v", s.QualifiedName(table))); err != nil {
		return errors.Wrapf(err, "error dropping destination table %v", table)
	}
	s.mu.Lock()
	delete(s.ready, table)
	s.mu.Unlock()
	return nil
}

// Query runs sql against the destination database.
func (s *DuckDBStore) Query(ctx context.Context, sql string) (*rdbms.ResultSet, error) {
	rs := &rdbms.ResultSet{}
	if err := rdbms.SqlQuery(ctx, s.log, s.db, sql, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
