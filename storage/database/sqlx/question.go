package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/qa"
)

var (
	questionColumns = []string{
		"id", "title", "body", "author_id", "related_type", "related_id", "course_id", "status", "answer_count",
		"created_at", "updated_at",
	}
	answerColumns = []string{"id", "question_id", "title", "body", "author_id", "kind", "created_at"}

	questionOrderingColumns = map[string]string{
		"created_at":   "created_at",
		"updated_at":   "updated_at",
		"title":        "lower(title)",
		"status":       "status",
		"answer_count": "answer_count",
	}
)

type questionRow struct {
	ID          string     `db:"id"`
	Title       string     `db:"title"`
	Body        string     `db:"body"`
	AuthorID    string     `db:"author_id"`
	RelatedType string     `db:"related_type"`
	RelatedID   int64      `db:"related_id"`
	CourseID    null.Int64 `db:"course_id"`
	Status      string     `db:"status"`
	AnswerCount int        `db:"answer_count"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r questionRow) toQuestion() qa.Question {
	return qa.Question{
		ID:          r.ID,
		Title:       r.Title,
		Body:        r.Body,
		AuthorID:    r.AuthorID,
		RelatedType: content.Type(r.RelatedType),
		RelatedID:   r.RelatedID,
		CourseID:    r.CourseID.Ptr(),
		Status:      qa.Status(r.Status),
		AnswerCount: r.AnswerCount,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type answerRow struct {
	ID         string    `db:"id"`
	QuestionID string    `db:"question_id"`
	Title      string    `db:"title"`
	Body       string    `db:"body"`
	AuthorID   string    `db:"author_id"`
	Kind       string    `db:"kind"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r answerRow) toAnswer() qa.Answer {
	return qa.Answer{
		ID:         r.ID,
		QuestionID: r.QuestionID,
		Title:      r.Title,
		Body:       r.Body,
		AuthorID:   r.AuthorID,
		Kind:       qa.AnswerKind(r.Kind),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type questionRepository struct {
	db *sqlx.DB
}

var _ qa.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *sqlx.DB) qa.Repository {
	return &questionRepository{db: db}
}

func (repo *questionRepository) CreateQuestion(ctx context.Context, q qa.Question) (qa.Question, error) {
	query, args, err := psql.Insert("questions").
		Columns(questionColumns...).
		Values(q.ID, q.Title, q.Body, q.AuthorID, string(q.RelatedType), q.RelatedID, null.Int64FromPtr(q.CourseID),
			string(q.Status), q.AnswerCount, q.CreatedAt, q.UpdatedAt).
		ToSql()
	if err != nil {
		return qa.Question{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return qa.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo *questionRepository) GetQuestion(ctx context.Context, id string) (qa.Question, error) {
	query, args, err := psql.Select(questionColumns...).From("questions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return qa.Question{}, errors.Wrap(err, "building query")
	}
	var row questionRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return qa.Question{}, notFound(err, qa.ErrQuestionNotFound)
	}
	return row.toQuestion(), nil
}

func (repo *questionRepository) update(ctx context.Context, id string, set map[string]interface{}) error {
	query, args, err := psql.Update("questions").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if err = notFound(err, qa.ErrQuestionNotFound); err == qa.ErrQuestionNotFound {
			return err
		}
		return errors.Wrap(err, "updating question")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return qa.ErrQuestionNotFound
	}
	return nil
}

func (repo *questionRepository) UpdateQuestionStatus(ctx context.Context, id string, status qa.Status, updatedAt time.Time) error {
	return repo.update(ctx, id, map[string]interface{}{"status": string(status), "updated_at": updatedAt})
}

func (repo *questionRepository) SetAnswerCount(ctx context.Context, id string, count int) error {
	return repo.update(ctx, id, map[string]interface{}{"answer_count": count})
}

func (repo *questionRepository) QueryQuestions(
	ctx context.Context,
	filter qa.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]qa.Question, int, error) {
	where := questionFilter(filter)

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("questions").Where(where).ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building count query")
	}
	var total int
	if err = repo.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "counting questions")
	}

	qb := psql.Select(questionColumns...).From("questions").Where(where)
	for _, ord := range ordering {
		if col, ok := questionOrderingColumns[ord.Field]; ok {
			qb = qb.OrderBy(core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	qb = qb.OrderBy("created_at DESC", "id")
	if page.PerPage > 0 {
		qb = qb.Limit(uint64(page.PerPage)).Offset(uint64(page.Offset()))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}

	var rows []questionRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying questions")
	}
	questions := make([]qa.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toQuestion())
	}
	return questions, total, nil
}

func questionFilter(filter qa.QueryFilter) sq.And {
	where := sq.And{}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		where = append(where, sq.Eq{"status": statuses})
	}
	if filter.RelatedType != "" {
		where = append(where, sq.Eq{"related_type": string(filter.RelatedType)})
	}
	if filter.RelatedID != 0 {
		where = append(where, sq.Eq{"related_id": filter.RelatedID})
	}
	if filter.CourseID != 0 {
		where = append(where, sq.Eq{"course_id": filter.CourseID})
	}
	if filter.AuthorID != "" {
		where = append(where, sq.Eq{"author_id": filter.AuthorID})
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		where = append(where, sq.Or{sq.ILike{"title": pattern}, sq.ILike{"body": pattern}})
	}
	return where
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (repo *questionRepository) CreateAnswer(ctx context.Context, a qa.Answer) (qa.Answer, error) {
	query, args, err := psql.Insert("answers").
		Columns(answerColumns...).
		Values(a.ID, a.QuestionID, a.Title, a.Body, a.AuthorID, string(a.Kind), a.CreatedAt).
		ToSql()
	if err != nil {
		return qa.Answer{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return qa.Answer{}, errors.Wrap(err, "inserting answer")
	}
	return a, nil
}

func (repo *questionRepository) CountAnswers(ctx context.Context, questionID string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("answers").Where(sq.Eq{"question_id": questionID}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting answers")
	}
	return count, nil
}

func (repo *questionRepository) QueryAnswers(ctx context.Context, questionID string) ([]qa.Answer, error) {
	query, args, err := psql.Select(answerColumns...).
		From("answers").
		Where(sq.Eq{"question_id": questionID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []answerRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	answers := make([]qa.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.toAnswer())
	}
	return answers, nil
}
