package rdbms

import (
	"context"
	"fmt"
	"strings"

	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/rdbms/shared"
)

// Querier is the subset of a connection needed to run statements.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (shared.Rows, error)
}

func SqlQuery(ctx context.Context, log logger.Logger, db Querier, sqltext string, i shared.SqlResultHandler) error {
	rows, err := db.QueryContext(ctx, sqltext)
	if err != nil {
		return fmt.Errorf("error during database query using SQL: '%v': %w", sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("error fetching columns: %w", err)
	}
	log.Trace("query columns = ", cols)
	// Scan the values dynamically.
	lenCols := len(cols)
	scanPtrs := make([]interface{}, lenCols)
	scanVals := make([]interface{}, lenCols)
	for idx := 0; idx < lenCols; idx++ { // for each column...
		scanPtrs[idx] = &scanVals[idx]
	}
	// Build and send the header.
	header := make([]interface{}, lenCols)
	for idx := range cols {
		header[idx] = cols[idx]
	}
	if err = i.HandleHeader(header); err != nil {
		return err
	}
	// Send the rows via callback interface.
	for rows.Next() {
		if err = ctx.Err(); err != nil { // quit if asked to...
			return err
		}
		if err = rows.Scan(scanPtrs...); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}
		row := make([]interface{}, lenCols)
		copy(row, scanVals)
		if err = i.HandleRow(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ResultSet is a SqlResultHandler that keeps every row in memory.
type ResultSet struct {
	Columns []string
	Rows    [][]interface{}
}

func (r *ResultSet) HandleHeader(header []interface{}) error {
	r.Columns = make([]string, len(header))
	for idx, h := range header {
		r.Columns[idx] = fmt.Sprint(h)
	}
	return nil
}

func (r *ResultSet) HandleRow(row []interface{}) error {
	r.Rows = append(r.Rows, row)
	return nil
}

// ColumnIndex finds a column by case insensitive name, returning -1 if it does not exist.
func (r *ResultSet) ColumnIndex(name string) int {
	for idx, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return idx
		}
	}
	return -1
}

// StringValue returns the value of column name in row idx as a string.
func (r *ResultSet) StringValue(idx int, name string) (string, bool) {
	c := r.ColumnIndex(name)
	if c < 0 || idx >= len(r.Rows) {
		return "", false
	}
	s, err := helper.GetStringFromInterface(r.Rows[idx][c])
	if err != nil {
		return "", false
	}
	return s, true
}

func (r *ResultSet) Len() int {
	return len(r.Rows)
}
