package destination

import (
	"context"
	"errors"
	"fmt"

	"github.com/relloyd/cdcpipe/stagefile"
	"github.com/relloyd/cdcpipe/stream"
)

// ErrTableClaimed is returned by Claim when another writer owns the table.
var ErrTableClaimed = errors.New("table is already claimed by another writer")

// Change is one deduplicated merge-mode change. Deletes only need the key columns populated.
type Change struct {
	Record stream.Record
	Delete bool
}

func (c Change) String() string {
	if c.Delete {
		return fmt.Sprintf("delete %v", c.Record.GetDataMap())
	}
	return fmt.Sprintf("upsert %v", c.Record.GetDataMap())
}

// Store is a destination table store.
// Each Append or Merge call is applied atomically.
type Store interface {
	// Claim makes the caller the only writer for table until release is called.
	Claim(table string) (release func(), err error)
	// Append inserts rows using every column in schema, creating the table if required.
	Append(ctx context.Context, table string, schema stagefile.Schema, rows []stream.Record) error
	// Merge deletes and upserts changes keyed on keys. Only the data columns of schema are stored.
	Merge(ctx context.Context, table string, schema stagefile.Schema, keys []string, changes []Change) error
	// Drop removes table if it exists.
	Drop(ctx context.Context, table string) error
	Close() error
}
