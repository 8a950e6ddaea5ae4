package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS checkpoints (
	path       TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SqliteStore keeps State values in a local SQLite database.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (or creates) the database file at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "error opening checkpoint database")
	}
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error creating checkpoint table")
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Load(ctx context.Context, path string) (State, error) {
	st := State{}
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM checkpoints WHERE path = ?", path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, errors.Wrapf(err, "error loading checkpoint %v", path)
	}
	if err = json.Unmarshal([]byte(raw), &st); err != nil {
		return st, errors.Wrapf(err, "error decoding checkpoint %v", path)
	}
	return st, nil
}

func (s *SqliteStore) Save(ctx context.Context, path string, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrapf(err, "error encoding checkpoint %v", path)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (path, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		path, string(b), st.UpdatedAt.Format("2006-01-02T15:04:05.000000000Z07:00"))
	return errors.Wrapf(err, "error saving checkpoint %v", path)
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
