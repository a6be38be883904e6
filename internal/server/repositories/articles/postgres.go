// Package articles provides the PostgreSQL-backed article store: single-row
// CRUD and the filtered, paginated listing query.
package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/dbx"
	"github.com/dmitrijs2005/bloghub/internal/server/models"
)

// PostgresRepository implements article storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts article and fills in the server-assigned fields. PublishedDate
// is replaced by the stored value, which has microsecond precision. The author
// must exist; a dangling author id yields common.ErrorNotFound.
func (r *PostgresRepository) Create(ctx context.Context, article *models.Article) (*models.Article, error) {
	query := `
		INSERT INTO articles (title, description, published_date, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, published_date, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		article.Title, article.Description, article.PublishedDate.UTC(), article.Author.ID,
	).Scan(&article.ID, &article.PublishedDate, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	article.PublishedDate = article.PublishedDate.UTC()
	article.CreatedAt = article.CreatedAt.UTC()
	article.UpdatedAt = article.UpdatedAt.UTC()
	return article, nil
}

// FindByID loads one article together with its author's username.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Article, error) {
	query := `
		SELECT ` + articleColumns + `, u.username
		FROM articles a INNER JOIN users u ON u.id = a.author_id
		WHERE a.id = $1
	`
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, id), true)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return a, nil
}

// FindPage returns one page of articles matching filter, ordered by
// publication date descending then id, plus the total number of matches.
func (r *PostgresRepository) FindPage(ctx context.Context, filter models.ArticleFilter, offset, limit int) ([]models.Article, int64, error) {
	q := buildListQuery(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, q.countSQL, q.args...).Scan(&total); err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			// a malformed author id matches nothing
			return []models.Article{}, 0, nil
		}
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	args := append(append([]any{}, q.args...), offset, limit)
	rows, err := r.db.QueryContext(ctx, q.selectSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows, q.joinsUsers)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return result, total, nil
}

// Update merges patch into the stored row. Nil patch fields keep the stored
// value. The author is never changed.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.ArticlePatch) (*models.Article, error) {
	query := `
		WITH a AS (
			UPDATE articles SET
				title = COALESCE($2, title),
				description = COALESCE($3, description),
				published_date = COALESCE($4, published_date),
				updated_at = now()
			WHERE id = $1
			RETURNING id, title, description, published_date, author_id, cover_key, created_at, updated_at
		)
		SELECT ` + articleColumns + `, u.username
		FROM a INNER JOIN users u ON u.id = a.author_id
	`
	row := r.db.QueryRowContext(ctx, query, id,
		nullString(patch.Title), nullString(patch.Description), nullTime(patch.PublishedDate))

	a, err := scanArticle(row, true)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return a, nil
}

// DeleteByID removes the article and reports how many rows were deleted.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// SetCoverKey records the object-storage key of the article's cover image.
func (r *PostgresRepository) SetCoverKey(ctx context.Context, id, key string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE articles SET cover_key = $2, updated_at = now() WHERE id = $1`, id, key)
	if err != nil {
		return mapNotFound(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner, withUsername bool) (*models.Article, error) {
	var a models.Article
	dest := []any{
		&a.ID, &a.Title, &a.Description, &a.PublishedDate, &a.Author.ID,
		&a.CoverKey, &a.CreatedAt, &a.UpdatedAt,
	}
	if withUsername {
		dest = append(dest, &a.Author.Username)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	a.PublishedDate = a.PublishedDate.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
