// Package postgres implements the content store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_items (
    external_id   TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    channel_title TEXT NOT NULL DEFAULT '',
    published_at  TIMESTAMPTZ,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS content_genres (
    external_id TEXT NOT NULL REFERENCES content_items(external_id) ON DELETE CASCADE,
    genre       TEXT NOT NULL,
    PRIMARY KEY (external_id, genre)
);

CREATE INDEX IF NOT EXISTS idx_content_genres_genre ON content_genres(genre);
`

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type Config struct {
	URL      string
	MaxConns int
	// SimpleProtocol is needed when connecting through pgbouncer.
	SimpleProtocol  bool
	ConnMaxLifetime time.Duration
}

type Repository struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, cfg Config) (*Repository, error) {
	const op = "postgres.Open"

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Configuration(op, err, "invalid database url")
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.SimpleProtocol {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.StoreUnavailable(op, err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.StoreUnavailable(op, err, "failed to reach database")
	}
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, classify(op, err, "failed to apply schema")
		}
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Exists(ctx context.Context, externalID string) (bool, error) {
	const op = "PostgresRepository.Exists"

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM content_items WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return false, classify(op, err, "failed to check content item")
	}
	return exists, nil
}

func (r *Repository) Insert(ctx context.Context, item *models.ContentItem) error {
	const op = "PostgresRepository.Insert"

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var publishedAt *time.Time
	if !item.PublishedAt.IsZero() {
		publishedAt = &item.PublishedAt
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO content_items
                (external_id, title, description, channel_title, published_at, thumbnail_url, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ExternalID, item.Title, item.Description, item.ChannelTitle,
			publishedAt, item.ThumbnailURL, createdAt,
		); err != nil {
			return err
		}

		b := &pgx.Batch{}
		for _, genre := range item.Genres {
			b.Queue(`INSERT INTO content_genres (external_id, genre) VALUES ($1, $2)
                     ON CONFLICT DO NOTHING`, item.ExternalID, genre)
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return classify(op, err, "failed to insert content item")
	}

	item.CreatedAt = createdAt
	return nil
}

func (r *Repository) CountByGenre(ctx context.Context, genre string) (int, error) {
	const op = "PostgresRepository.CountByGenre"

	var n int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM content_genres WHERE genre = $1`, genre).Scan(&n); err != nil {
		return 0, classify(op, err, "failed to count genre")
	}
	return n, nil
}

func (r *Repository) CountAll(ctx context.Context) (int, error) {
	const op = "PostgresRepository.CountAll"

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM content_items`).Scan(&n); err != nil {
		return 0, classify(op, err, "failed to count content items")
	}
	return n, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// classify maps pgx errors onto the store taxonomy. Anything that is not a
// server-side error is a connectivity problem.
func classify(op string, err error, message string) error {
	var pgErr *pgconn.PgError
	if pkgerrors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return errors.DuplicateKey(op, err, "content item already exists")
		}
		return errors.Internal(op, err, message)
	}
	return errors.StoreUnavailable(op, err, message)
}
