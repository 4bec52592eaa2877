package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-qa/core/content"
)

type contentRow struct {
	ID        int64      `db:"id"`
	Type      string     `db:"type"`
	Title     string     `db:"title"`
	CourseID  null.Int64 `db:"course_id"`
	Link      string     `db:"link"`
	CreatedAt time.Time  `db:"created_at"`
}

func (r contentRow) toItem() content.Item {
	return content.Item{
		ID:        r.ID,
		Type:      content.Type(r.Type),
		Title:     r.Title,
		CourseID:  r.CourseID.Ptr(),
		Link:      r.Link,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(db *sqlx.DB) content.Repository {
	return &contentRepository{db: db}
}

func (repo *contentRepository) CreateItem(ctx context.Context, it content.Item) (content.Item, error) {
	query, args, err := psql.Insert("content_items").
		Columns("type", "title", "course_id", "link", "created_at").
		Values(string(it.Type), it.Title, null.Int64FromPtr(it.CourseID), it.Link, it.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return content.Item{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowxContext(ctx, query, args...).Scan(&it.ID); err != nil {
		return content.Item{}, errors.Wrap(err, "inserting content item")
	}
	return it, nil
}

func (repo *contentRepository) GetItem(ctx context.Context, id int64) (content.Item, error) {
	query, args, err := psql.Select("id", "type", "title", "course_id", "link", "created_at").
		From("content_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return content.Item{}, errors.Wrap(err, "building query")
	}
	var row contentRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return content.Item{}, notFound(err, content.ErrNotFound)
	}
	return row.toItem(), nil
}
