package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nijaru/yt-catalog/errors"
)

const (
	existsQuery = `
        SELECT EXISTS(SELECT 1 FROM content_items WHERE external_id = ?)
    `

	insertItemQuery = `
        INSERT INTO content_items (
            external_id, title, description, channel_title,
            published_at, thumbnail_url, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	insertGenreQuery = `
        INSERT OR IGNORE INTO content_genres (external_id, genre) VALUES (?, ?)
    `

	countByGenreQuery = `
        SELECT COUNT(*) FROM content_genres WHERE genre = ?
    `

	countAllQuery = `
        SELECT COUNT(*) FROM content_items
    `
)

type PreparedStatements struct {
	exists       *sql.Stmt
	insertItem   *sql.Stmt
	insertGenre  *sql.Stmt
	countByGenre *sql.Stmt
	countAll     *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	var err error

	if stmts.exists, err = db.PrepareContext(ctx, existsQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare exists statement")
	}

	if stmts.insertItem, err = db.PrepareContext(ctx, insertItemQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare insert item statement")
	}

	if stmts.insertGenre, err = db.PrepareContext(ctx, insertGenreQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare insert genre statement")
	}

	if stmts.countByGenre, err = db.PrepareContext(ctx, countByGenreQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare countByGenre statement")
	}

	if stmts.countAll, err = db.PrepareContext(ctx, countAllQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare countAll statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.exists,
		stmts.insertItem,
		stmts.insertGenre,
		stmts.countByGenre,
		stmts.countAll,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
