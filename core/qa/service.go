package qa

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/user"
)

const answerTitleWords = 10

var (
	ErrQuestionNotFound = errors.Wrap(core.ErrNotFound, "question")

	errInvalidRelated = "invalid course, lesson, or topic"
)

type Options struct {
	AnswerRateLimit time.Duration
	AnswerMinLength int
	DefaultPerPage  int
	MaxPerPage      int
}

func NewOptions(conf *core.Config) Options {
	return Options{
		AnswerRateLimit: conf.QA.AnswerRateLimit,
		AnswerMinLength: conf.QA.AnswerMinLength,
		DefaultPerPage:  conf.QA.DefaultPerPage,
		MaxPerPage:      conf.QA.MaxPerPage,
	}
}

// Service is the moderation state machine of questions and answers.
// Every transition persists first; notifications never undo a transition.
type Service struct {
	opts       Options
	repo       Repository
	users      UserGetter
	items      ContentGetter
	notifier   Notifier
	freshness  *Freshness
	limiter    RateLimiter
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
}

func NewService(
	opts Options,
	repo Repository,
	users UserGetter,
	items ContentGetter,
	notifier Notifier,
	freshness *Freshness,
	limiter RateLimiter,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	if opts.AnswerMinLength <= 0 {
		opts.AnswerMinLength = 10
	}
	if opts.DefaultPerPage <= 0 {
		opts.DefaultPerPage = 2
	}
	if opts.MaxPerPage < opts.DefaultPerPage {
		opts.MaxPerPage = opts.DefaultPerPage
	}
	return &Service{
		opts:       opts,
		repo:       repo,
		users:      users,
		items:      items,
		notifier:   notifier,
		freshness:  freshness,
		limiter:    limiter,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

// SubmitQuestion creates a Pending question about a course, lesson or topic.
func (svc *Service) SubmitQuestion(ctx context.Context, author user.User, nq NewQuestion) (Question, error) {
	if author.ID == "" {
		return Question{}, core.ErrForbidden
	}

	nq.Clean()
	if err := svc.validate.Struct(nq); err != nil {
		return Question{}, core.TranslateValidationErrors(err, svc.translator)
	}

	item, err := svc.items.Get(ctx, nq.RelatedType, nq.RelatedID)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return Question{}, core.NewValidationError(
				errors.New(errInvalidRelated),
				core.FieldError{Field: "related_id", Error: errInvalidRelated},
			)
		}
		return Question{}, errors.Wrap(err, "getting related content")
	}

	now := NowFunc().UTC()
	q, err := svc.repo.CreateQuestion(ctx, Question{
		ID:          uuid.NewString(),
		Title:       nq.Title,
		Body:        nq.Body,
		AuthorID:    author.ID,
		RelatedType: item.Type,
		RelatedID:   item.ID,
		CourseID:    item.ResolveCourseID(),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Question{}, errors.Wrap(err, "creating question")
	}

	svc.dispatch(ctx, Event{Type: EventQuestionSubmitted, Question: q, Author: author, Actor: author, Related: item})
	return q, nil
}

// Approve makes a question publicly visible.
// The author is only notified when the question was not approved already.
func (svc *Service) Approve(ctx context.Context, moderator user.User, id string) (Question, error) {
	q, err := svc.getForModeration(ctx, moderator, id)
	if err != nil {
		return Question{}, err
	}

	prior := q.Status
	if prior != StatusApproved {
		if q, err = svc.setStatus(ctx, q, StatusApproved); err != nil {
			return Question{}, err
		}
	}

	if err := svc.freshness.MarkApprovalNow(ctx); err != nil {
		svc.logger.Error(fmt.Sprintf("marking approval of question %s: %v", q.ID, err), err)
	}

	if prior != StatusApproved {
		author, err := svc.users.GetByID(q.AuthorID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("question %s: author %s not found: %v", q.ID, q.AuthorID, err))
		}
		svc.dispatch(ctx, Event{
			Type:     EventQuestionApproved,
			Question: q,
			Author:   author,
			Actor:    moderator,
			Related:  svc.related(ctx, q),
		})
	}
	return q, nil
}

// Disapprove sends a question back to moderation. No one is notified.
func (svc *Service) Disapprove(ctx context.Context, moderator user.User, id string) (Question, error) {
	q, err := svc.getForModeration(ctx, moderator, id)
	if err != nil {
		return Question{}, err
	}
	return svc.setStatus(ctx, q, StatusPending)
}

// Reject hides a question for good, whatever its current status. No one is notified.
func (svc *Service) Reject(ctx context.Context, moderator user.User, id string) (Question, error) {
	q, err := svc.getForModeration(ctx, moderator, id)
	if err != nil {
		return Question{}, err
	}
	return svc.setStatus(ctx, q, StatusRejected)
}

// SubmitAnswer answers a question on behalf of author.
// Answering a Pending question moves it to Answered; other statuses are kept.
func (svc *Service) SubmitAnswer(ctx context.Context, author user.User, questionID string, na NewAnswer) (Answer, error) {
	if author.ID == "" {
		return Answer{}, core.ErrForbidden
	}

	limited, err := svc.limiter.IsLimited(ctx, rateLimitKey(author.ID))
	if err != nil {
		return Answer{}, errors.Wrap(err, "checking answer rate limit")
	}
	if limited {
		return Answer{}, core.ErrRateLimited
	}

	body := core.CleanString(na.Body)
	if utf8.RuneCountInString(body) < svc.opts.AnswerMinLength {
		msg := fmt.Sprintf("answer must be at least %d characters long", svc.opts.AnswerMinLength)
		return Answer{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "body", Error: msg})
	}

	q, err := svc.getQuestion(ctx, questionID)
	if err != nil {
		return Answer{}, err
	}
	if !canView(author, q) {
		return Answer{}, ErrQuestionNotFound
	}

	kind := AnswerKindStudent
	if author.IsModerator() {
		kind = AnswerKindInstructor
	}
	a, err := svc.repo.CreateAnswer(ctx, Answer{
		ID:         uuid.NewString(),
		QuestionID: q.ID,
		Title:      core.Excerpt(body, answerTitleWords),
		Body:       body,
		AuthorID:   author.ID,
		Kind:       kind,
		CreatedAt:  NowFunc().UTC(),
	})
	if err != nil {
		return Answer{}, errors.Wrap(err, "creating answer")
	}

	count, err := svc.repo.CountAnswers(ctx, q.ID)
	if err != nil {
		return Answer{}, errors.Wrap(err, "counting answers")
	}
	if err = svc.repo.SetAnswerCount(ctx, q.ID, count); err != nil {
		return Answer{}, errors.Wrap(err, "caching answer count")
	}
	q.AnswerCount = count

	if q.Status == StatusPending {
		if q, err = svc.setStatus(ctx, q, StatusAnswered); err != nil {
			return Answer{}, err
		}
	}

	if err = svc.limiter.Mark(ctx, rateLimitKey(author.ID), svc.opts.AnswerRateLimit); err != nil {
		svc.logger.Error(fmt.Sprintf("setting answer rate limit of user %s: %v", author.ID, err), err, author)
	}

	qAuthor, err := svc.users.GetByID(q.AuthorID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("question %s: author %s not found: %v", q.ID, q.AuthorID, err))
	}
	svc.dispatch(ctx, Event{
		Type:     EventAnswerCreated,
		Question: q,
		Answer:   &a,
		Author:   qAuthor,
		Actor:    author,
		Related:  svc.related(ctx, q),
	})
	return a, nil
}

// CheckNewApprovals reports whether anything was approved after since, along with the time of the check.
func (svc *Service) CheckNewApprovals(ctx context.Context, since time.Time) (bool, time.Time, error) {
	now := NowFunc().UTC()
	ok, err := svc.freshness.HasNewApprovals(ctx, since)
	if err != nil {
		return false, now, errors.Wrap(err, "checking approvals")
	}
	return ok, now, nil
}

// ListApproved returns one page of the approved questions of a content item, newest first.
func (svc *Service) ListApproved(ctx context.Context, typ content.Type, relatedID int64, page core.Pagination) (QuestionPage, error) {
	filter := QueryFilter{Statuses: []Status{StatusApproved}, RelatedType: typ, RelatedID: relatedID}
	ordering := []core.DBOrdering{{Field: "created_at", Ascending: false}}
	return svc.query(ctx, filter, ordering, page)
}

// ListQuestions lets moderators browse every question.
func (svc *Service) ListQuestions(
	ctx context.Context,
	moderator user.User,
	filter QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) (QuestionPage, error) {
	if !moderator.IsModerator() {
		return QuestionPage{}, core.ErrForbidden
	}
	filter.Clean()
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return QuestionPage{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: fmt.Sprintf("unknown status %q", st)})
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.query(ctx, filter, ordering, page)
}

// GetQuestion returns a question with its answers.
// Questions that are not approved are only visible to moderators and their author.
func (svc *Service) GetQuestion(ctx context.Context, viewer user.User, id string) (Question, []Answer, error) {
	q, err := svc.getQuestion(ctx, id)
	if err != nil {
		return Question{}, nil, err
	}
	if !canView(viewer, q) {
		return Question{}, nil, ErrQuestionNotFound
	}
	answers, err := svc.repo.QueryAnswers(ctx, q.ID)
	if err != nil {
		return Question{}, nil, errors.Wrap(err, "querying answers")
	}
	return q, answers, nil
}

// Related returns the content item a question is about (zero Item when gone).
func (svc *Service) Related(ctx context.Context, q Question) content.Item {
	return svc.related(ctx, q)
}

func (svc *Service) query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) (QuestionPage, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage <= 0 {
		page.PerPage = svc.opts.DefaultPerPage
	}
	if page.PerPage > svc.opts.MaxPerPage {
		page.PerPage = svc.opts.MaxPerPage
	}

	questions, total, err := svc.repo.QueryQuestions(ctx, filter, ordering, page)
	if err != nil {
		return QuestionPage{}, errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []Question{}
	}
	return QuestionPage{
		Questions:   questions,
		Total:       total,
		CurrentPage: page.Page,
		TotalPages:  page.TotalPages(total),
	}, nil
}

func (svc *Service) getForModeration(ctx context.Context, moderator user.User, id string) (Question, error) {
	if !moderator.IsModerator() {
		return Question{}, core.ErrForbidden
	}
	return svc.getQuestion(ctx, id)
}

// getQuestion never hits the repository with ids that are not UUIDs.
func (svc *Service) getQuestion(ctx context.Context, id string) (Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Question{}, ErrQuestionNotFound
	}
	return svc.repo.GetQuestion(ctx, id)
}

func (svc *Service) setStatus(ctx context.Context, q Question, status Status) (Question, error) {
	now := NowFunc().UTC()
	if err := svc.repo.UpdateQuestionStatus(ctx, q.ID, status, now); err != nil {
		return Question{}, errors.Wrap(err, fmt.Sprintf("setting question status to %s", status))
	}
	q.Status = status
	q.UpdatedAt = now
	return q, nil
}

func (svc *Service) related(ctx context.Context, q Question) content.Item {
	item, err := svc.items.Get(ctx, q.RelatedType, q.RelatedID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("question %s: related %s %d not found: %v", q.ID, q.RelatedType, q.RelatedID, err))
		return content.Item{ID: q.RelatedID, Type: q.RelatedType}
	}
	return item
}

func (svc *Service) dispatch(ctx context.Context, evt Event) {
	if svc.notifier == nil {
		svc.logger.Error(fmt.Sprintf("%s notification not sent: notifier unavailable", evt.Type), core.ErrDependencyUnavailable)
		return
	}
	svc.notifier.Dispatch(ctx, evt)
}

// canView tells whether viewer may see (and answer) q.
func canView(viewer user.User, q Question) bool {
	if q.Status == StatusApproved || viewer.IsModerator() {
		return true
	}
	return viewer.ID != "" && viewer.ID == q.AuthorID
}

func rateLimitKey(userID string) string {
	return "qa:answer-rate:" + userID
}
