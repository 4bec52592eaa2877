// Package testutil assembles the application on in-memory storage for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/notify"
	"github.com/trezcool/masomo-qa/core/qa"
	"github.com/trezcool/masomo-qa/core/user"
	appfs "github.com/trezcool/masomo-qa/fs"
	emailsvc "github.com/trezcool/masomo-qa/services/email"
	logsvc "github.com/trezcool/masomo-qa/services/logger"
	inmemcache "github.com/trezcool/masomo-qa/storage/cache/inmem"
	inmemdb "github.com/trezcool/masomo-qa/storage/database/inmem"
)

const (
	InstructorEmail = "instructor@test.cd"
	ModerationEmail = "moderation@test.cd"
)

// Stack is the whole application backed by in-memory repositories and caches.
type Stack struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB           *inmemdb.DB
	UserRepo     user.Repository
	ContentRepo  content.Repository
	QuestionRepo qa.Repository

	Mailer    *emailsvc.ConsoleServiceMock
	Limiter   *inmemcache.RateLimiter
	Freshness *inmemcache.FreshnessStore
	Settings  *notify.Settings
	Notifier  *notify.Dispatcher
	Nonces    *user.Nonces

	UserSvc    *user.Service
	ContentSvc *content.Service
	QASvc      *qa.Service
}

func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "test-secret-key"
	conf.FrontendBaseURL = "http://qa.test"
	conf.Notifications.InstructorEmail = InstructorEmail
	conf.Notifications.InstructorNotificationEmail = ModerationEmail
	conf.Notifications.CcEmails = nil
	for _, key := range core.NotificationTemplateKeys {
		conf.Notifications.Templates[key] = core.DefaultNotificationTemplates[key]
	}
	return conf
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	qa.InitValidators(validate, translator)
	return validate
}

// NewStack builds a Stack; configure tweaks the config before anything is built from it.
func NewStack(configure ...func(conf *core.Config)) *Stack {
	conf := NewConfig()
	for _, fn := range configure {
		fn(conf)
	}

	s := &Stack{
		Conf:       conf,
		Logger:     logsvc.NewDiscardLogger(),
		Translator: NewTranslator(),
		DB:         inmemdb.Open(),
		Limiter:    inmemcache.NewRateLimiter(),
		Freshness:  inmemcache.NewFreshnessStore(),
		Nonces:     user.NewNonces(conf),
	}
	s.Validate = NewValidator(s.Translator)
	core.ParseEmailTemplates(appfs.FS, conf, s.Logger)

	s.UserRepo = inmemdb.NewUserRepository(s.DB)
	s.ContentRepo = inmemdb.NewContentRepository(s.DB)
	s.QuestionRepo = inmemdb.NewQuestionRepository(s.DB)

	s.Mailer = emailsvc.NewConsoleServiceMock(conf, s.Logger)
	s.Settings = notify.NewSettings(conf, s.Validate, s.Logger)
	s.Notifier = notify.NewDispatcher(s.Settings, s.Mailer, s.Logger)

	s.UserSvc = user.NewService(s.UserRepo)
	s.ContentSvc = content.NewService(s.ContentRepo)
	s.QASvc = qa.NewService(
		qa.NewOptions(conf),
		s.QuestionRepo,
		s.UserSvc,
		s.ContentSvc,
		s.Notifier,
		qa.NewFreshness(s.Freshness),
		s.Limiter,
		s.Validate,
		s.Translator,
		s.Logger,
	)
	return s
}

// Reset empties storage, caches and the outbox.
func (s *Stack) Reset() {
	s.DB.Reset()
	s.Limiter.Reset()
	s.Freshness.Reset()
	s.Mailer.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateItem(t *testing.T, repo content.Repository, typ content.Type, title string, course *content.Item) content.Item {
	it := content.Item{
		Type:      typ,
		Title:     title,
		Link:      "/" + string(typ) + "s/" + uuid.NewString()[:8],
		CreatedAt: time.Now().UTC(),
	}
	if course != nil {
		id := course.ID
		it.CourseID = &id
	}
	it, err := repo.CreateItem(context.Background(), it)
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return it
}
