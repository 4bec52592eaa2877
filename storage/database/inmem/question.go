package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/qa"
)

type questionRepository struct {
	db *questionTable
}

var _ qa.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *DB) qa.Repository {
	return &questionRepository{db: db.question}
}

func (repo *questionRepository) CreateQuestion(_ context.Context, q qa.Question) (qa.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[q.ID] = &q
	return q, nil
}

func (repo *questionRepository) GetQuestion(_ context.Context, id string) (qa.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.table[id]; ok {
		return *q, nil
	}
	return qa.Question{}, qa.ErrQuestionNotFound
}

func (repo *questionRepository) UpdateQuestionStatus(_ context.Context, id string, status qa.Status, updatedAt time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q, ok := repo.db.table[id]
	if !ok {
		return qa.ErrQuestionNotFound
	}
	q.Status = status
	q.UpdatedAt = updatedAt
	return nil
}

func (repo *questionRepository) SetAnswerCount(_ context.Context, id string, count int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q, ok := repo.db.table[id]
	if !ok {
		return qa.ErrQuestionNotFound
	}
	q.AnswerCount = count
	return nil
}

func (repo *questionRepository) QueryQuestions(
	_ context.Context,
	filter qa.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]qa.Question, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]qa.Question, 0)
	for _, q := range repo.db.table {
		if matchQuestion(*q, filter) {
			matches = append(matches, *q)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return lessQuestion(matches[i], matches[j], ordering) })

	total := len(matches)
	start := page.Offset()
	if start >= total {
		return []qa.Question{}, total, nil
	}
	end := total
	if page.PerPage > 0 && start+page.PerPage < total {
		end = start + page.PerPage
	}
	return matches[start:end], total, nil
}

func (repo *questionRepository) CreateAnswer(_ context.Context, a qa.Answer) (qa.Answer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[a.QuestionID]; !ok {
		return qa.Answer{}, qa.ErrQuestionNotFound
	}
	repo.db.answers[a.QuestionID] = append(repo.db.answers[a.QuestionID], a)
	return a, nil
}

func (repo *questionRepository) CountAnswers(_ context.Context, questionID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.answers[questionID]), nil
}

func (repo *questionRepository) QueryAnswers(_ context.Context, questionID string) ([]qa.Answer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	answers := append([]qa.Answer{}, repo.db.answers[questionID]...)
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].CreatedAt.Before(answers[j].CreatedAt) })
	return answers, nil
}

func matchQuestion(q qa.Question, filter qa.QueryFilter) bool {
	if len(filter.Statuses) > 0 {
		var found bool
		for _, st := range filter.Statuses {
			if q.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.RelatedType != "" && q.RelatedType != filter.RelatedType {
		return false
	}
	if filter.RelatedID != 0 && q.RelatedID != filter.RelatedID {
		return false
	}
	if filter.CourseID != 0 && (q.CourseID == nil || *q.CourseID != filter.CourseID) {
		return false
	}
	if filter.AuthorID != "" && q.AuthorID != filter.AuthorID {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(q.Title), search) && !strings.Contains(strings.ToLower(q.Body), search) {
			return false
		}
	}
	return true
}

// lessQuestion orders by the given orderings, then newest first.
func lessQuestion(a, b qa.Question, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "created_at":
			cmp = compareTime(a.CreatedAt, b.CreatedAt)
		case "updated_at":
			cmp = compareTime(a.UpdatedAt, b.UpdatedAt)
		case "title":
			cmp = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case "status":
			cmp = strings.Compare(string(a.Status), string(b.Status))
		case "answer_count":
			cmp = a.AnswerCount - b.AnswerCount
		}
		if cmp == 0 {
			continue
		}
		if ord.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
