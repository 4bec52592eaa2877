package qa

import (
	"time"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
)

// Status is the moderation status of a Question.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusAnswered Status = "answered"
)

var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusAnswered}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// AnswerKind tells whether an answer was written by an instructor or a student.
type AnswerKind string

const (
	AnswerKindInstructor AnswerKind = "instructor"
	AnswerKindStudent    AnswerKind = "student"
)

type Question struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	AuthorID    string       `json:"author_id"`
	RelatedType content.Type `json:"related_type"`
	RelatedID   int64        `json:"related_id"`
	CourseID    *int64       `json:"course_id"`
	Status      Status       `json:"status"`
	AnswerCount int          `json:"answer_count"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

type Answer struct {
	ID         string     `json:"id"`
	QuestionID string     `json:"question_id"`
	Title      string     `json:"title"` // first words of the body
	Body       string     `json:"body"`
	AuthorID   string     `json:"author_id"`
	Kind       AnswerKind `json:"kind"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
}

// NewQuestion contains information needed to submit a Question.
type NewQuestion struct {
	RelatedID   int64        `json:"related_id" validate:"required,gt=0"`
	RelatedType content.Type `json:"related_type" validate:"required,relatedtype"`
	Title       string       `json:"title" validate:"notblank,max=255"`
	Body        string       `json:"body" validate:"notblank"`
}

func (nq *NewQuestion) Clean() {
	nq.RelatedType = content.Type(core.CleanString(string(nq.RelatedType), true /* lower */))
	nq.Title = core.CleanString(nq.Title)
	nq.Body = core.CleanString(nq.Body)
}

// NewAnswer contains information needed to answer a Question.
type NewAnswer struct {
	Body string `json:"body"`
}

// QueryFilter applies AND operation on its set fields.
// Search does a case-insensitive match on the question title or body.
type QueryFilter struct {
	Statuses    []Status     `query:"status"`
	RelatedType content.Type `query:"related_type"`
	RelatedID   int64        `query:"related_id"`
	CourseID    int64        `query:"course_id"`
	AuthorID    string       `query:"author_id"`
	Search      string       `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AuthorID = core.CleanString(qf.AuthorID)
	qf.RelatedType = content.Type(core.CleanString(string(qf.RelatedType), true /* lower */))
}

// OrderingFields are the fields questions can be ordered by.
var OrderingFields = []string{"created_at", "updated_at", "title", "status", "answer_count"}

// QuestionPage is one page of a question listing.
type QuestionPage struct {
	Questions   []Question
	Total       int
	CurrentPage int
	TotalPages  int
}

func (p QuestionPage) HasMore() bool {
	return p.CurrentPage < p.TotalPages
}
