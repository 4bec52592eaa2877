package dig_container

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-qa/apps/api/echo"
	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/notify"
	"github.com/trezcool/masomo-qa/core/qa"
	"github.com/trezcool/masomo-qa/core/user"
	appfs "github.com/trezcool/masomo-qa/fs"
	emailsvc "github.com/trezcool/masomo-qa/services/email"
	logsvc "github.com/trezcool/masomo-qa/services/logger"
	inmemcache "github.com/trezcool/masomo-qa/storage/cache/inmem"
	rediscache "github.com/trezcool/masomo-qa/storage/cache/redis"
	"github.com/trezcool/masomo-qa/storage/database"
	inmemdb "github.com/trezcool/masomo-qa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-qa/storage/database/sqlx"
)

// EngineMemory keeps everything in process memory; nothing survives a restart.
const EngineMemory = "memory"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Cleanup closes the connections opened while building the container, last opened first.
type Cleanup struct {
	closers []func() error
}

func (c *Cleanup) add(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *Cleanup) Run() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type Repositories struct {
	dig.Out
	Users     user.Repository
	Content   content.Repository
	Questions qa.Repository
}

type Caches struct {
	dig.Out
	Limiter   qa.RateLimiter
	Freshness qa.FreshnessStore
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewLogger("API", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewLogger("DB", conf, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newRepositories(conf *core.Config, cleanup *Cleanup, loggerParam DBLoggerParam) (Repositories, error) {
	if conf.Database.Engine == EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database; data will not survive a restart")
		db := inmemdb.Open()
		return Repositories{
			Users:     inmemdb.NewUserRepository(db),
			Content:   inmemdb.NewContentRepository(db),
			Questions: inmemdb.NewQuestionRepository(db),
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return Repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return Repositories{}, err
	}
	cleanup.add(db.Close)

	if err = database.Migrate(db.DB); err != nil {
		return Repositories{}, err
	}
	return Repositories{
		Users:     sqlxrepos.NewUserRepository(db),
		Content:   sqlxrepos.NewContentRepository(db),
		Questions: sqlxrepos.NewQuestionRepository(db),
	}, nil
}

func newCaches(conf *core.Config, cleanup *Cleanup, logger core.Logger) (Caches, error) {
	if conf.Redis.Address == "" {
		logger.Warn("no redis address configured; rate limits & approval markers are kept in memory")
		return Caches{Limiter: inmemcache.NewRateLimiter(), Freshness: inmemcache.NewFreshnessStore()}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	client, err := rediscache.Open(ctx, conf)
	if err != nil {
		return Caches{}, err
	}
	cleanup.add(client.Close)
	return Caches{Limiter: rediscache.NewRateLimiter(client), Freshness: rediscache.NewFreshnessStore(client)}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	qa.InitValidators(validate, translator)
	return validate
}

type qaServiceParams struct {
	dig.In
	Conf       *core.Config
	Repo       qa.Repository
	Users      *user.Service
	Items      *content.Service
	Notifier   *notify.Dispatcher
	Freshness  qa.FreshnessStore
	Limiter    qa.RateLimiter
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
}

func newQAService(p qaServiceParams) *qa.Service {
	return qa.NewService(
		qa.NewOptions(p.Conf),
		p.Repo,
		p.Users,
		p.Items,
		p.Notifier,
		qa.NewFreshness(p.Freshness),
		p.Limiter,
		p.Validate,
		p.Translator,
		p.Logger,
	)
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    *user.Service
	QASvc      *qa.Service
	Nonces     *user.Nonces
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		QASvc:      p.QASvc,
		Nonces:     p.Nonces,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// Init loads the assets every process needs before serving: email templates & the common passwords list.
func Init(conf *core.Config, logger core.Logger) {
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	user.LoadCommonPasswords(filepath.Join(conf.WorkDir, "assets", "common-passwords.txt.gz"), logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(func() *Cleanup { return new(Cleanup) }))
	must(c.Provide(newRepositories))
	must(c.Provide(newCaches))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(user.NewNonces))
	must(c.Provide(content.NewService))
	must(c.Provide(notify.NewSettings))
	must(c.Provide(notify.NewDispatcher))
	must(c.Provide(newQAService))
	must(c.Provide(newServer))

	if os.Getenv("DIG_VISUALIZE") != "" {
		_ = dig.Visualize(c, os.Stdout)
	}

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
