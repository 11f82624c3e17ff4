package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/post"
)

// StreamForExport returns full post rows, oldest first. Callers must close the rows.
func StreamForExport(ctx context.Context, db *sql.DB, author string, includeDeleted bool) (*sql.Rows, error) {
	where, args := ListFilters{Author: author}.where(includeDeleted)
	rows, err := db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanPostFromRows scans the current row of a StreamForExport result.
func ScanPostFromRows(rows *sql.Rows) (*post.Post, error) {
	return scanPost(rows)
}

// Exists reports whether any post (including soft-deleted) has id.
func Exists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// PurgeDeleted permanently removes soft-deleted posts. With olderThanDays
// set, only posts deleted more than that many days ago are removed.
func PurgeDeleted(ctx context.Context, db *sql.DB, olderThanDays *int) (int, error) {
	query := `DELETE FROM posts WHERE deleted_at IS NOT NULL`
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += ` AND deleted_at < ?`
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}
