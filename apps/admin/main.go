package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/qa"
	"github.com/trezcool/masomo-qa/core/user"
	logsvc "github.com/trezcool/masomo-qa/services/logger"
	"github.com/trezcool/masomo-qa/storage/database"
	inmemdb "github.com/trezcool/masomo-qa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-qa/storage/database/sqlx"
)

const engineMemory = "memory"

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewLogger("ADMIN", conf, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	qa.InitValidators(validate, translator)
	user.LoadCommonPasswords(filepath.Join(conf.WorkDir, "assets", "common-passwords.txt.gz"), logger)

	cli := commandLine{
		out:        os.Stdout,
		validate:   validate,
		translator: translator,
	}
	var contentRepo content.Repository

	if conf.Database.Engine == engineMemory {
		logger.Warn("using the in-memory database; changes will be lost on exit")
		db := inmemdb.Open()
		cli.usrRepo = inmemdb.NewUserRepository(db)
		contentRepo = inmemdb.NewContentRepository(db)
	} else {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer db.Close()

		cli.db = db.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
		contentRepo = sqlxrepos.NewContentRepository(db)
	}
	cli.usrSvc = user.NewService(cli.usrRepo)
	cli.contentSvc = content.NewService(contentRepo)

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), errors.WithStack(err))
		}
		os.Exit(1)
	}
}
