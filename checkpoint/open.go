package checkpoint

import (
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/storage"
)

type Config struct {
	Backend    string `json:"backend,omitempty"`
	SqlitePath string `json:"sqlitePath,omitempty"`
}

// Open returns the Store for cfg.Backend. The storage backend keeps checkpoints next to the staged files.
func Open(cfg Config, objects storage.Store) (Store, error) {
	switch cfg.Backend {
	case constants.CheckpointBackendStorage, "":
		if objects == nil {
			return nil, errors.New("storage checkpoint backend requires a storage store")
		}
		return NewStorageStore(objects), nil
	case constants.CheckpointBackendSqlite:
		if cfg.SqlitePath == "" {
			return nil, errors.New("sqlite checkpoint backend requires a database path")
		}
		s, err := NewSqliteStore(cfg.SqlitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Errorf("unsupported checkpoint backend %q", cfg.Backend)
	}
}
