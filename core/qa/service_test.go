package qa_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/notify"
	"github.com/trezcool/masomo-qa/core/qa"
	"github.com/trezcool/masomo-qa/core/user"
	inmemcache "github.com/trezcool/masomo-qa/storage/cache/inmem"
	"github.com/trezcool/masomo-qa/testutil"
)

var ctx = context.Background()

type fixture struct {
	s       *testutil.Stack
	student user.User
	other   user.User
	teacher user.User
	course  content.Item
	lesson  content.Item
	now     time.Time
}

// newFixture freezes the clocks of qa and the in-memory cache; tick moves them forward.
func newFixture(t *testing.T) *fixture {
	f := &fixture{
		s:   testutil.NewStack(),
		now: time.Date(2021, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	qa.NowFunc = func() time.Time { return f.now }
	inmemcache.NowFunc = func() time.Time { return f.now }
	t.Cleanup(func() {
		qa.NowFunc = time.Now
		inmemcache.NowFunc = time.Now
	})

	repo := f.s.UserRepo
	f.student = testutil.CreateUser(t, repo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	f.other = testutil.CreateUser(t, repo, "", "sidekick", "sidekick@test.cd", "", []string{user.RoleStudent}, true)
	f.teacher = testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	f.course = testutil.CreateItem(t, f.s.ContentRepo, content.TypeCourse, "Algebra", nil)
	f.lesson = testutil.CreateItem(t, f.s.ContentRepo, content.TypeLesson, "Fractions", &f.course)
	return f
}

func (f *fixture) tick(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) submit(t *testing.T, author user.User, title string) qa.Question {
	q, err := f.s.QASvc.SubmitQuestion(ctx, author, qa.NewQuestion{
		RelatedID:   f.lesson.ID,
		RelatedType: content.TypeLesson,
		Title:       title,
		Body:        "How does " + title + " work?",
	})
	require.NoError(t, err)
	f.tick(time.Second)
	return q
}

func (f *fixture) approve(t *testing.T, q qa.Question) qa.Question {
	q, err := f.s.QASvc.Approve(ctx, f.teacher, q.ID)
	require.NoError(t, err)
	f.tick(time.Second)
	return q
}

func subjects(msgs []core.EmailMessage) []string {
	subjs := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		subjs = append(subjs, msg.Subject+" -> "+msg.To[0].Address)
	}
	return subjs
}

func TestService_SubmitQuestion(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		author     user.User
		data       qa.NewQuestion
		wantCode   string
		wantFields []string
		wantCourse int64
	}{
		{name: "anonymous", data: qa.NewQuestion{RelatedID: f.lesson.ID, RelatedType: content.TypeLesson, Title: "t", Body: "b"}, wantCode: core.CodeForbidden},
		{name: "required fields", author: f.student, wantCode: core.CodeValidationFailed, wantFields: []string{"related_id", "related_type", "title", "body"}},
		{
			name: "blank title", author: f.student, wantCode: core.CodeValidationFailed, wantFields: []string{"title"},
			data: qa.NewQuestion{RelatedID: f.lesson.ID, RelatedType: content.TypeLesson, Title: "   ", Body: "b"},
		},
		{
			name: "unknown related type", author: f.student, wantCode: core.CodeValidationFailed, wantFields: []string{"related_type"},
			data: qa.NewQuestion{RelatedID: f.lesson.ID, RelatedType: "quiz", Title: "t", Body: "b"},
		},
		{
			name: "unknown related item", author: f.student, wantCode: core.CodeValidationFailed, wantFields: []string{"related_id"},
			data: qa.NewQuestion{RelatedID: 999, RelatedType: content.TypeLesson, Title: "t", Body: "b"},
		},
		{
			name: "type mismatch", author: f.student, wantCode: core.CodeValidationFailed, wantFields: []string{"related_id"},
			data: qa.NewQuestion{RelatedID: f.lesson.ID, RelatedType: content.TypeTopic, Title: "t", Body: "b"},
		},
		{
			name: "lesson question", author: f.student, wantCourse: f.course.ID,
			data: qa.NewQuestion{RelatedID: f.lesson.ID, RelatedType: "Lesson", Title: "  Fractions? ", Body: "What is 1/2?"},
		},
		{
			name: "course question", author: f.student, wantCourse: f.course.ID,
			data: qa.NewQuestion{RelatedID: f.course.ID, RelatedType: content.TypeCourse, Title: "Algebra?", Body: "What is x?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.s.Mailer.Reset()

			q, err := f.s.QASvc.SubmitQuestion(ctx, tt.author, tt.data)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, core.ErrorCode(err))
				if len(tt.wantFields) > 0 {
					var vErr *core.ValidationError
					require.True(t, errors.As(err, &vErr))
					fields := make([]string, 0, len(vErr.Fields))
					for _, fErr := range vErr.Fields {
						fields = append(fields, fErr.Field)
					}
					assert.ElementsMatch(t, tt.wantFields, fields)
				}
				assert.Empty(t, f.s.Mailer.SentMessages())
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, q.ID)
			assert.Equal(t, qa.StatusPending, q.Status)
			assert.Equal(t, tt.author.ID, q.AuthorID)
			assert.Equal(t, core.CleanString(tt.data.Title), q.Title)
			require.NotNil(t, q.CourseID)
			assert.Equal(t, tt.wantCourse, *q.CourseID)

			stored, err := f.s.QuestionRepo.GetQuestion(ctx, q.ID)
			require.NoError(t, err)
			assert.Equal(t, q, stored)

			sent := f.s.Mailer.SentMessages()
			require.Len(t, sent, 1)
			assert.Equal(t, notify.SubjectNewQuestion, sent[0].Subject)
			assert.Equal(t, testutil.ModerationEmail, sent[0].To[0].Address)
			assert.Contains(t, sent[0].TextContent, "/moderation/questions/"+q.ID)
		})
	}
}

func TestService_Approve(t *testing.T) {
	f := newFixture(t)
	q := f.submit(t, f.student, "Fractions")

	t.Run("students cannot approve", func(t *testing.T) {
		_, err := f.s.QASvc.Approve(ctx, f.other, q.ID)
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := f.s.QASvc.Approve(ctx, f.teacher, "lol")
		assert.Equal(t, core.CodeNotFound, core.ErrorCode(err))
	})

	t.Run("approve notifies author and moderators", func(t *testing.T) {
		f.s.Mailer.Reset()
		approvedAt := f.now

		got, err := f.s.QASvc.Approve(ctx, f.teacher, q.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusApproved, got.Status)

		last, err := f.s.Freshness.LastApproval(ctx)
		require.NoError(t, err)
		assert.Equal(t, approvedAt, last)

		assert.ElementsMatch(t, []string{
			notify.SubjectQuestionApproved + " -> " + f.student.Email,
			notify.SubjectQuestionWasApproved + " -> " + testutil.ModerationEmail,
		}, subjects(f.s.Mailer.SentMessages()))
	})

	t.Run("approving again only refreshes the marker", func(t *testing.T) {
		f.s.Mailer.Reset()
		f.tick(time.Minute)
		approvedAt := f.now

		got, err := f.s.QASvc.Approve(ctx, f.teacher, q.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusApproved, got.Status)
		assert.Empty(t, f.s.Mailer.SentMessages())

		last, err := f.s.Freshness.LastApproval(ctx)
		require.NoError(t, err)
		assert.Equal(t, approvedAt, last)
	})
}

func TestService_DisapproveReject(t *testing.T) {
	f := newFixture(t)
	q := f.approve(t, f.submit(t, f.student, "Fractions"))
	marker, err := f.s.Freshness.LastApproval(ctx)
	require.NoError(t, err)

	tests := []struct {
		name       string
		transition func(context.Context, user.User, string) (qa.Question, error)
		moderator  user.User
		wantStatus qa.Status
		wantErr    error
	}{
		{name: "disapprove by student", transition: f.s.QASvc.Disapprove, moderator: f.student, wantErr: core.ErrForbidden},
		{name: "reject by student", transition: f.s.QASvc.Reject, moderator: f.student, wantErr: core.ErrForbidden},
		{name: "disapprove", transition: f.s.QASvc.Disapprove, moderator: f.teacher, wantStatus: qa.StatusPending},
		{name: "reject", transition: f.s.QASvc.Reject, moderator: f.teacher, wantStatus: qa.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.s.Mailer.Reset()
			f.tick(time.Second)

			got, err := tt.transition(ctx, tt.moderator, q.ID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, f.now, got.UpdatedAt)
			assert.Empty(t, f.s.Mailer.SentMessages())

			last, err := f.s.Freshness.LastApproval(ctx)
			require.NoError(t, err)
			assert.Equal(t, marker, last)
		})
	}

	t.Run("rejected questions can be approved again", func(t *testing.T) {
		f.s.Mailer.Reset()
		got, err := f.s.QASvc.Approve(ctx, f.teacher, q.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusApproved, got.Status)
		assert.Len(t, f.s.Mailer.SentMessages(), 2)
	})
}

func TestService_SubmitAnswer(t *testing.T) {
	f := newFixture(t)
	q := f.submit(t, f.student, "Fractions")
	longBody := "one two three four five six seven eight nine ten eleven twelve"

	t.Run("anonymous", func(t *testing.T) {
		_, err := f.s.QASvc.SubmitAnswer(ctx, user.User{}, q.ID, qa.NewAnswer{Body: longBody})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("unknown question", func(t *testing.T) {
		for _, id := range []string{"lol", uuid.NewString()} {
			_, err := f.s.QASvc.SubmitAnswer(ctx, f.teacher, id, qa.NewAnswer{Body: longBody})
			assert.Equal(t, core.CodeNotFound, core.ErrorCode(err), id)
		}
	})

	t.Run("pending question hidden from other students", func(t *testing.T) {
		_, err := f.s.QASvc.SubmitAnswer(ctx, f.other, q.ID, qa.NewAnswer{Body: longBody})
		assert.Equal(t, core.CodeNotFound, core.ErrorCode(err))

		stored, err := f.s.QuestionRepo.GetQuestion(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusPending, stored.Status)
		assert.Zero(t, stored.AnswerCount)
	})

	t.Run("instructor answer to a pending question", func(t *testing.T) {
		f.s.Mailer.Reset()

		a, err := f.s.QASvc.SubmitAnswer(ctx, f.teacher, q.ID, qa.NewAnswer{Body: "  " + longBody + " "})
		require.NoError(t, err)
		assert.Equal(t, qa.AnswerKindInstructor, a.Kind)
		assert.Equal(t, longBody, a.Body)
		assert.Equal(t, "one two three four five six seven eight nine ten...", a.Title)
		assert.Equal(t, q.ID, a.QuestionID)

		stored, err := f.s.QuestionRepo.GetQuestion(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusAnswered, stored.Status)
		assert.Equal(t, 1, stored.AnswerCount)

		sent := f.s.Mailer.SentMessages()
		assert.ElementsMatch(t, []string{
			notify.SubjectNewAnswer + " -> " + f.student.Email,
			notify.SubjectAnswerPosted + " -> " + testutil.ModerationEmail,
		}, subjects(sent))
		for _, msg := range sent {
			assert.Contains(t, msg.TextContent, "/questions/"+q.ID+"?answer_id="+a.ID)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		f.tick(2 * time.Second)
		_, err := f.s.QASvc.SubmitAnswer(ctx, f.teacher, q.ID, qa.NewAnswer{Body: longBody})
		assert.Equal(t, core.ErrRateLimited, err)

		f.tick(f.s.Conf.QA.AnswerRateLimit)
		_, err = f.s.QASvc.SubmitAnswer(ctx, f.teacher, q.ID, qa.NewAnswer{Body: longBody})
		assert.NoError(t, err)
	})

	t.Run("authors are not notified of their own answers", func(t *testing.T) {
		f.s.Mailer.Reset()
		a, err := f.s.QASvc.SubmitAnswer(ctx, f.student, q.ID, qa.NewAnswer{Body: longBody})
		require.NoError(t, err)
		assert.Equal(t, qa.AnswerKindStudent, a.Kind)
		assert.Equal(t, []string{notify.SubjectAnswerPosted + " -> " + testutil.ModerationEmail}, subjects(f.s.Mailer.SentMessages()))

		stored, err := f.s.QuestionRepo.GetQuestion(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusAnswered, stored.Status)
		assert.Equal(t, 3, stored.AnswerCount)
	})

	t.Run("answer to an approved question keeps it approved", func(t *testing.T) {
		approved := f.approve(t, f.submit(t, f.student, "Decimals"))
		f.s.Mailer.Reset()

		a, err := f.s.QASvc.SubmitAnswer(ctx, f.other, approved.ID, qa.NewAnswer{Body: longBody})
		require.NoError(t, err)
		assert.Equal(t, qa.AnswerKindStudent, a.Kind)

		stored, err := f.s.QuestionRepo.GetQuestion(ctx, approved.ID)
		require.NoError(t, err)
		assert.Equal(t, qa.StatusApproved, stored.Status)
		assert.Equal(t, 1, stored.AnswerCount)
		assert.ElementsMatch(t, []string{
			notify.SubjectNewAnswer + " -> " + f.student.Email,
			notify.SubjectAnswerPosted + " -> " + testutil.ModerationEmail,
		}, subjects(f.s.Mailer.SentMessages()))
	})
}

func TestService_SubmitAnswer_minLength(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "blank", body: "   ", wantErr: true},
		{name: "short", body: "  short   ", wantErr: true},
		{name: "9 characters once trimmed", body: "  123456789  ", wantErr: true},
		{name: "10 characters once trimmed", body: "  1234567890  "},
		{name: "9 multibyte characters", body: "ééééééééé", wantErr: true},
		{name: "10 multibyte characters", body: "éééééééééé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			q := f.submit(t, f.student, "Fractions")

			a, err := f.s.QASvc.SubmitAnswer(ctx, f.teacher, q.ID, qa.NewAnswer{Body: tt.body})
			if tt.wantErr {
				assert.Equal(t, core.CodeValidationFailed, core.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.body), a.Body)
		})
	}
}

func TestService_CheckNewApprovals(t *testing.T) {
	f := newFixture(t)
	start := f.now

	ok, now, err := f.s.QASvc.CheckNewApprovals(ctx, time.Time{})
	require.NoError(t, err)
	assert.False(t, ok, "nothing approved yet")
	assert.Equal(t, start, now)

	q := f.submit(t, f.student, "Fractions")
	f.tick(time.Millisecond * 1500)
	approvedAt := f.now.Truncate(time.Millisecond)
	f.approve(t, q)

	tests := []struct {
		name  string
		since time.Time
		want  bool
	}{
		{name: "zero since", since: time.Time{}, want: true},
		{name: "before approval", since: start, want: true},
		{name: "exactly at approval", since: approvedAt, want: false},
		{name: "after approval", since: approvedAt.Add(time.Millisecond), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _, err := f.s.QASvc.CheckNewApprovals(ctx, tt.since)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestService_ListApproved(t *testing.T) {
	f := newFixture(t)

	q1 := f.approve(t, f.submit(t, f.student, "first"))
	q2 := f.approve(t, f.submit(t, f.student, "second"))
	q3 := f.approve(t, f.submit(t, f.other, "third"))
	f.submit(t, f.student, "pending")
	rejected := f.submit(t, f.student, "rejected")
	_, err := f.s.QASvc.Reject(ctx, f.teacher, rejected.ID)
	require.NoError(t, err)

	titles := func(page qa.QuestionPage) []string {
		var ts []string
		for _, q := range page.Questions {
			ts = append(ts, q.Title)
		}
		return ts
	}

	tests := []struct {
		name        string
		typ         content.Type
		relatedID   int64
		page        core.Pagination
		want        []string
		wantTotal   int
		wantPages   int
		wantCurrent int
		wantMore    bool
	}{
		{name: "first page", typ: content.TypeLesson, relatedID: f.lesson.ID, want: []string{q3.Title, q2.Title}, wantTotal: 3, wantPages: 2, wantCurrent: 1, wantMore: true},
		{name: "second page", typ: content.TypeLesson, relatedID: f.lesson.ID, page: core.Pagination{Page: 2}, want: []string{q1.Title}, wantTotal: 3, wantPages: 2, wantCurrent: 2},
		{name: "bigger page", typ: content.TypeLesson, relatedID: f.lesson.ID, page: core.Pagination{PerPage: 10}, want: []string{q3.Title, q2.Title, q1.Title}, wantTotal: 3, wantPages: 1, wantCurrent: 1},
		{name: "past the end", typ: content.TypeLesson, relatedID: f.lesson.ID, page: core.Pagination{Page: 5}, wantTotal: 3, wantPages: 2, wantCurrent: 5},
		{name: "other item", typ: content.TypeCourse, relatedID: f.course.ID, wantCurrent: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.s.QASvc.ListApproved(ctx, tt.typ, tt.relatedID, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(page))
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Equal(t, tt.wantCurrent, page.CurrentPage)
			assert.Equal(t, tt.wantMore, page.HasMore())
		})
	}
}

func TestService_ListQuestions(t *testing.T) {
	f := newFixture(t)

	approved := f.approve(t, f.submit(t, f.student, "Beta"))
	pending := f.submit(t, f.other, "Alpha")

	ids := func(page qa.QuestionPage) []string {
		var ids []string
		for _, q := range page.Questions {
			ids = append(ids, q.ID)
		}
		return ids
	}

	tests := []struct {
		name     string
		usr      user.User
		filter   qa.QueryFilter
		ordering []core.DBOrdering
		want     []string
		wantCode string
	}{
		{name: "students cannot list", usr: f.student, wantCode: core.CodeForbidden},
		{name: "unknown status", usr: f.teacher, filter: qa.QueryFilter{Statuses: []qa.Status{"lol"}}, wantCode: core.CodeValidationFailed},
		{name: "newest first", usr: f.teacher, want: []string{pending.ID, approved.ID}},
		{name: "by title", usr: f.teacher, ordering: []core.DBOrdering{{Field: "title", Ascending: true}}, want: []string{pending.ID, approved.ID}},
		{name: "by status", usr: f.teacher, filter: qa.QueryFilter{Statuses: []qa.Status{qa.StatusApproved}}, want: []string{approved.ID}},
		{name: "by author", usr: f.teacher, filter: qa.QueryFilter{AuthorID: f.other.ID}, want: []string{pending.ID}},
		{name: "by course", usr: f.teacher, filter: qa.QueryFilter{CourseID: f.course.ID}, want: []string{pending.ID, approved.ID}},
		{name: "search", usr: f.teacher, filter: qa.QueryFilter{Search: "BET"}, want: []string{approved.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.s.QASvc.ListQuestions(ctx, tt.usr, tt.filter, tt.ordering, core.Pagination{PerPage: 10})
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, core.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page))
		})
	}
}

func TestService_GetQuestion(t *testing.T) {
	f := newFixture(t)
	pending := f.submit(t, f.student, "Fractions")
	approved := f.approve(t, f.submit(t, f.student, "Decimals"))

	_, err := f.s.QASvc.SubmitAnswer(ctx, f.teacher, approved.ID, qa.NewAnswer{Body: "first answer to this"})
	require.NoError(t, err)
	f.tick(time.Minute)
	_, err = f.s.QASvc.SubmitAnswer(ctx, f.other, approved.ID, qa.NewAnswer{Body: "second answer to this"})
	require.NoError(t, err)

	tests := []struct {
		name        string
		viewer      user.User
		id          string
		wantAnswers []string
		wantErr     bool
	}{
		{name: "unknown", viewer: f.teacher, id: "lol", wantErr: true},
		{name: "pending for anonymous", id: pending.ID, wantErr: true},
		{name: "pending for other student", viewer: f.other, id: pending.ID, wantErr: true},
		{name: "pending for author", viewer: f.student, id: pending.ID},
		{name: "pending for moderator", viewer: f.teacher, id: pending.ID},
		{name: "approved for anonymous", id: approved.ID, wantAnswers: []string{"first answer to this", "second answer to this"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, answers, err := f.s.QASvc.GetQuestion(ctx, tt.viewer, tt.id)
			if tt.wantErr {
				assert.Equal(t, core.CodeNotFound, core.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, q.ID)
			var bodies []string
			for _, a := range answers {
				bodies = append(bodies, a.Body)
			}
			assert.Equal(t, tt.wantAnswers, bodies)
		})
	}
}

func TestService_NotificationsDisabled(t *testing.T) {
	f := newFixture(t)
	f.s.Settings.Templates[notify.TemplateNewQuestion] = "  "

	q := f.submit(t, f.student, "Fractions")
	assert.Equal(t, qa.StatusPending, q.Status)
	assert.Empty(t, f.s.Mailer.SentMessages())

	f.approve(t, q)
	for _, msg := range f.s.Mailer.SentMessages() {
		assert.False(t, strings.HasPrefix(msg.Subject, notify.SubjectNewQuestion))
	}
}
