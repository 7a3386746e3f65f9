package cache

import (
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite is a disk-backed Store so response caches survive process restarts
// (yearly disclosure indexes in particular are worth keeping).
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS http_cache (
	cache_key  TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_http_cache_expires_at ON http_cache(expires_at);
`

// NewSQLite opens (or creates) a SQLite cache at the given path and
// configures WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Get implements Store. Expired rows are removed as they are discovered.
func (s *SQLite) Get(key string) ([]byte, bool) {
	var body []byte
	var expiresAt int64
	err := s.db.QueryRow(
		"SELECT body, expires_at FROM http_cache WHERE cache_key = ?", key,
	).Scan(&body, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			zap.L().Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	if s.now().Unix() > expiresAt {
		if _, err := s.db.Exec("DELETE FROM http_cache WHERE cache_key = ?", key); err != nil {
			zap.L().Debug("cache expiry delete failed", zap.Error(err))
		}
		return nil, false
	}
	return body, true
}

// Set implements Store. Failures are logged; the cache is best-effort.
func (s *SQLite) Set(key string, body []byte, ttlSeconds int) {
	if ttlSeconds <= 0 {
		return
	}
	expiresAt := s.now().Add(time.Duration(ttlSeconds) * time.Second).Unix()
	_, err := s.db.Exec(`
		INSERT INTO http_cache (cache_key, body, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			body = excluded.body,
			expires_at = excluded.expires_at`,
		key, body, expiresAt,
	)
	if err != nil {
		zap.L().Warn("cache write failed", zap.Error(err))
	}
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
