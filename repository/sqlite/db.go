package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-catalog/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_items (
    external_id   TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    channel_title TEXT NOT NULL DEFAULT '',
    published_at  DATETIME,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS content_genres (
    external_id TEXT NOT NULL REFERENCES content_items(external_id) ON DELETE CASCADE,
    genre       TEXT NOT NULL,
    PRIMARY KEY (external_id, genre)
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_content_genres_genre ON content_genres(genre);
CREATE INDEX IF NOT EXISTS idx_content_items_published_at ON content_items(published_at);
`

type DBConfig struct {
	MaxRetries         int
	RetryDelay         time.Duration
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxRetries:         3,
		RetryDelay:         time.Second,
		MaxConnections:     10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}
}

// ConfigureDB applies pool settings from config.
func ConfigureDB(db *sql.DB, config DBConfig) {
	if config.MaxConnections > 0 {
		db.SetMaxOpenConns(config.MaxConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
}

func InitDB(dbPath string) (*sql.DB, error) {
	const op = "sqlite.InitDB"

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.StoreUnavailable(op, err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.StoreUnavailable(op, err, "failed to open database")
	}

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := execSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func configurePragmas(db *sql.DB) error {
	const op = "sqlite.configurePragmas"

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -2000", // Use up to 2MB of memory for cache
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.StoreUnavailable(op, err, fmt.Sprintf("failed to set pragma: %s", pragma))
		}
	}

	return nil
}

func execSchema(db *sql.DB) error {
	const op = "sqlite.execSchema"

	var statements []string
	for _, stmt := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "--") {
				lines = append(lines, line)
			}
		}
		if stmt = strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return WithTransaction(context.Background(), db, func(tx Executor) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(context.Background(), stmt); err != nil {
				return errors.Internal(op, err, fmt.Sprintf("failed to execute schema statement: %s", stmt))
			}
		}
		return nil
	})
}

// withRetry retries fn while the database reports lock contention.
func withRetry(ctx context.Context, config DBConfig, fn func() error) error {
	attempts := config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = fn(); lastErr == nil || !isLockError(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.RetryDelay * time.Duration(i+1)):
		}
	}
	return lastErr
}

type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	StmtContext(ctx context.Context, stmt *sql.Stmt) *sql.Stmt
}

// TxFn is a function that will be called with a transaction
type TxFn func(tx Executor) error

// WithTransaction wraps a transaction with proper rollback/commit logic
func WithTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return pkgerrors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "commit transaction")
	}

	return nil
}

func sqliteCode(err error) (sqlite3.Error, bool) {
	var sqliteErr sqlite3.Error
	if pkgerrors.As(err, &sqliteErr) {
		return sqliteErr, true
	}
	return sqlite3.Error{}, false
}

func isLockError(err error) bool {
	if e, ok := sqliteCode(err); ok {
		return e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy")
}

func isUniqueViolation(err error) bool {
	if e, ok := sqliteCode(err); ok {
		return e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			e.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isUnavailable(err error) bool {
	if pkgerrors.Is(err, sql.ErrConnDone) || pkgerrors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pkgerrors.Is(err, context.Canceled) || pkgerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if e, ok := sqliteCode(err); ok {
		switch e.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen,
			sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrNotADB, sqlite3.ErrReadonly:
			return true
		}
	}
	return strings.Contains(err.Error(), "database is closed")
}

// classify maps a driver error onto the store error taxonomy.
func classify(op string, err error, message string) error {
	switch {
	case isUniqueViolation(err):
		return errors.DuplicateKey(op, err, "content item already exists")
	case isUnavailable(err):
		return errors.StoreUnavailable(op, err, message)
	default:
		return errors.Internal(op, err, message)
	}
}
