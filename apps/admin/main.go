package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	dig_container "github.com/trezcool/mahudhurio/apps/api/di/dig"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/teacher"
	"github.com/trezcool/mahudhurio/storage"
)

func main() {
	c := dig_container.New()

	code := 0
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		repos *storage.Repositories,
		teachers *teacher.Service,
		ledgerSvc *ledger.Service,
		mailer core.EmailService,
	) {
		defer func() { _ = repos.Close() }()

		core.ParseEmailTemplates(logger, false)

		var db *sql.DB
		if repos.DB != nil {
			db = repos.DB.DB
		}

		cli := commandLine{
			conf:     conf,
			logger:   logger,
			db:       db,
			teachers: teachers,
			ledger:   ledgerSvc,
			mailer:   mailer,
			out:      os.Stdout,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Error(fmt.Sprintf("admin %v: %v", os.Args[1:], err), err)
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			code = 1
		}
		if w, ok := mailer.(interface{ Wait() }); ok {
			w.Wait()
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}
