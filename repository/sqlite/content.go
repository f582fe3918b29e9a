package sqlite

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
)

type Repository struct {
	db         *sql.DB
	statements *PreparedStatements
	config     DBConfig
	closed     atomic.Bool
}

func NewRepository(ctx context.Context, db *sql.DB, config DBConfig) (*Repository, error) {
	ConfigureDB(db, config)

	stmts := &PreparedStatements{}
	if err := stmts.Prepare(ctx, db); err != nil {
		stmts.Close()
		return nil, err
	}

	return &Repository{db: db, statements: stmts, config: config}, nil
}

// Open initializes the database file at path and returns a ready repository.
func Open(ctx context.Context, path string, config DBConfig) (*Repository, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}

	repo, err := NewRepository(ctx, db, config)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Exists(ctx context.Context, externalID string) (bool, error) {
	const op = "SQLiteRepository.Exists"

	if err := r.check(op); err != nil {
		return false, err
	}

	var exists bool
	err := withRetry(ctx, r.config, func() error {
		return r.statements.exists.QueryRowContext(ctx, externalID).Scan(&exists)
	})
	if err != nil {
		return false, classify(op, err, "failed to check content item")
	}
	return exists, nil
}

// Insert stores item and its genres atomically. An existing ExternalID is
// never overwritten.
func (r *Repository) Insert(ctx context.Context, item *models.ContentItem) error {
	const op = "SQLiteRepository.Insert"

	if err := r.check(op); err != nil {
		return err
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var publishedAt interface{}
	if !item.PublishedAt.IsZero() {
		publishedAt = item.PublishedAt.UTC()
	}

	err := withRetry(ctx, r.config, func() error {
		return WithTransaction(ctx, r.db, func(tx Executor) error {
			if _, err := tx.StmtContext(ctx, r.statements.insertItem).ExecContext(ctx,
				item.ExternalID,
				item.Title,
				item.Description,
				item.ChannelTitle,
				publishedAt,
				item.ThumbnailURL,
				createdAt,
			); err != nil {
				return err
			}

			insertGenre := tx.StmtContext(ctx, r.statements.insertGenre)
			for _, genre := range item.Genres {
				if _, err := insertGenre.ExecContext(ctx, item.ExternalID, genre); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return classify(op, err, "failed to insert content item")
	}

	item.CreatedAt = createdAt
	return nil
}

func (r *Repository) CountByGenre(ctx context.Context, genre string) (int, error) {
	const op = "SQLiteRepository.CountByGenre"

	if err := r.check(op); err != nil {
		return 0, err
	}

	var n int
	err := withRetry(ctx, r.config, func() error {
		return r.statements.countByGenre.QueryRowContext(ctx, genre).Scan(&n)
	})
	if err != nil {
		return 0, classify(op, err, "failed to count genre")
	}
	return n, nil
}

func (r *Repository) CountAll(ctx context.Context) (int, error) {
	const op = "SQLiteRepository.CountAll"

	if err := r.check(op); err != nil {
		return 0, err
	}

	var n int
	err := withRetry(ctx, r.config, func() error {
		return r.statements.countAll.QueryRowContext(ctx).Scan(&n)
	})
	if err != nil {
		return 0, classify(op, err, "failed to count content items")
	}
	return n, nil
}

// Find loads a stored item with its genres.
func (r *Repository) Find(ctx context.Context, externalID string) (*models.ContentItem, error) {
	const op = "SQLiteRepository.Find"

	if err := r.check(op); err != nil {
		return nil, err
	}

	item := &models.ContentItem{}
	var publishedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
        SELECT external_id, title, description, channel_title,
               published_at, thumbnail_url, created_at
        FROM content_items WHERE external_id = ?`, externalID).Scan(
		&item.ExternalID,
		&item.Title,
		&item.Description,
		&item.ChannelTitle,
		&publishedAt,
		&item.ThumbnailURL,
		&item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "content item not found")
	}
	if err != nil {
		return nil, classify(op, err, "failed to query content item")
	}
	if publishedAt.Valid {
		item.PublishedAt = publishedAt.Time
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT genre FROM content_genres WHERE external_id = ? ORDER BY genre`, externalID)
	if err != nil {
		return nil, classify(op, err, "failed to query genres")
	}
	defer rows.Close()

	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, classify(op, err, "failed to scan genre")
		}
		item.Genres = append(item.Genres, genre)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, "failed to read genres")
	}

	return item, nil
}

func (r *Repository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	stmtErr := r.statements.Close()
	if err := r.db.Close(); err != nil {
		return err
	}
	return stmtErr
}

func (r *Repository) check(op string) error {
	if r.closed.Load() {
		return errors.StoreUnavailable(op, nil, "database is closed")
	}
	return nil
}
