package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/post"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.MomentError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const postColumns = `id, author, avatar, caption, text_overlay, location, weather,
	time_label, health, health_icon, filter, image, created_date, created_at, deleted_at`

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert stores a new post.
func Insert(ctx context.Context, db Execer, p *post.Post) error {
	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err := db.ExecContext(ctx, query,
		p.ID, p.Author, toNullString(p.Avatar), p.Caption,
		toNullString(p.TextOverlay), toNullString(p.Location), toNullString(p.Weather),
		toNullString(p.Time), toNullString(p.Health), toNullString(p.HealthIcon),
		p.Filter, p.Image, p.CreatedDate, p.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a post by its ULID.
// If includeDeleted is false, soft-deleted posts are excluded.
func GetByID(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*post.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	p, err := scanPost(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// ListFilters narrows List. Empty fields match everything.
type ListFilters struct {
	Author string
	Date   string // YYYY-MM-DD
}

func (f ListFilters) where(includeDeleted bool) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !includeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if f.Author != "" {
		conds = append(conds, "author = ?")
		args = append(args, f.Author)
	}
	if f.Date != "" {
		conds = append(conds, "created_date = ?")
		args = append(args, f.Date)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns post summaries, newest first, and the total matching count.
func List(ctx context.Context, db *sql.DB, filters ListFilters, limit, offset int, includeDeleted bool) ([]post.Summary, int, error) {
	where, args := filters.where(includeDeleted)

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, author, avatar, caption, text_overlay, location, weather,
			time_label, health, health_icon, filter, length(image), created_date, created_at, deleted_at
		FROM posts` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []post.Summary
	for rows.Next() {
		var (
			s         post.Summary
			ns        [7]sql.NullString
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID, &s.Author, &ns[0], &s.Caption, &ns[1], &ns[2], &ns[3],
			&ns[4], &ns[5], &ns[6], &s.Filter, &s.ImageBytes, &s.CreatedDate, &s.CreatedAt, &deletedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.Avatar = fromNullString(ns[0])
		s.TextOverlay = fromNullString(ns[1])
		s.Location = fromNullString(ns[2])
		s.Weather = fromNullString(ns[3])
		s.Time = fromNullString(ns[4])
		s.Health = fromNullString(ns[5])
		s.HealthIcon = fromNullString(ns[6])
		if deletedAt.Valid {
			s.DeletedAt = &deletedAt.Int64
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return items, total, nil
}

// SoftDelete marks a post as deleted by setting deleted_at.
func SoftDelete(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE posts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost scans a single row into a Post.
func scanPost(row rowScanner) (*post.Post, error) {
	var (
		p                               post.Post
		avatar, text, location, weather sql.NullString
		timeLabel, health, healthIcon   sql.NullString
		deletedAt                       sql.NullInt64
	)

	err := row.Scan(
		&p.ID, &p.Author, &avatar, &p.Caption, &text, &location, &weather,
		&timeLabel, &health, &healthIcon, &p.Filter, &p.Image, &p.CreatedDate, &p.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Avatar = fromNullString(avatar)
	p.TextOverlay = fromNullString(text)
	p.Location = fromNullString(location)
	p.Weather = fromNullString(weather)
	p.Time = fromNullString(timeLabel)
	p.Health = fromNullString(health)
	p.HealthIcon = fromNullString(healthIcon)
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Int64
	}
	return &p, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
