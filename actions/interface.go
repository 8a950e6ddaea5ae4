package actions

import (
	"context"

	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/rdbms"
	"github.com/relloyd/cdcpipe/source"
	"github.com/relloyd/cdcpipe/stats"
)

// Provisioner creates the export infrastructure for a namespace.
type Provisioner interface {
	SetupAll(ctx context.Context, ns *namespace.Namespace, limit int) (source.SetupResult, error)
}

// StreamController is the view of running streams served by the web service.
type StreamController interface {
	Stats() []stats.Stats
	Status(table string) (stats.Stats, bool)
	Stop()
}

// Streamer runs streams until they stop.
type Streamer interface {
	StreamController
	Run(ctx context.Context) error
	RunID() string
}

type queryFunc func(ctx context.Context, sql string) (*rdbms.ResultSet, error)

// DefaultsStore holds default flag values.
type DefaultsStore interface {
	Get(key string, out interface{}) error
	Set(key string, val interface{}) error
	Delete(key string) error
	GetAllKeys() ([]string, error)
}
