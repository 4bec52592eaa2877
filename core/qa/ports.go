package qa

import (
	"context"
	"time"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/user"
)

type (
	Repository interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		UpdateQuestionStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
		SetAnswerCount(ctx context.Context, id string, count int) error
		// QueryQuestions returns the requested page of questions and the total number of matches.
		QueryQuestions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Question, int, error)

		CreateAnswer(ctx context.Context, a Answer) (Answer, error)
		CountAnswers(ctx context.Context, questionID string) (int, error)
		// QueryAnswers returns the answers of a question, oldest first.
		QueryAnswers(ctx context.Context, questionID string) ([]Answer, error)
	}

	// RateLimiter keeps short lived per-key markers.
	RateLimiter interface {
		IsLimited(ctx context.Context, key string) (bool, error)
		Mark(ctx context.Context, key string, ttl time.Duration) error
	}

	// FreshnessStore persists the time of the latest approval.
	FreshnessStore interface {
		SetLastApproval(ctx context.Context, t time.Time) error
		// LastApproval returns the zero time when nothing was ever approved.
		LastApproval(ctx context.Context) (time.Time, error)
	}

	UserGetter interface {
		GetByID(id string) (user.User, error)
	}

	ContentGetter interface {
		Get(ctx context.Context, typ content.Type, id int64) (content.Item, error)
	}

	// Notifier turns moderation events into outgoing emails.
	Notifier interface {
		Dispatch(ctx context.Context, evt Event) []*core.EmailMessage
	}
)

type EventType string

const (
	EventQuestionSubmitted EventType = "question_submitted"
	EventQuestionApproved  EventType = "question_approved"
	EventAnswerCreated     EventType = "answer_created"
)

// Event describes a state transition notifications are sent for.
type Event struct {
	Type     EventType
	Question Question
	Answer   *Answer
	Author   user.User // author of the question
	Actor    user.User // moderator or answerer
	Related  content.Item
}
