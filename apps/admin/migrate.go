package main

import (
	"errors"

	"github.com/trezcool/masomo-qa/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

var errNoSQLDatabase = errors.New("migrations need a SQL database; the in-memory engine has none")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
