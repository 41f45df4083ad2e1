package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

var errNoDatabase = errors.New("migrations require the postgres engine")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
