package main

import (
	"log"
	"os"

	"github.com/trezcool/ratiba/apps/api/di/dig"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB; migrations are left to the migrate command
	st, err := dig_container.OpenStorage(conf, logger, false)
	errAndDie(logger, err)
	if st.DB != nil {
		defer st.DB.Close()
	}

	// set up services
	locker, err := dig_container.NewLocker(conf, logger, st.DB)
	errAndDie(logger, err)
	rost := roster.NewService(st.RosterRepo)
	classSvc, err := class.NewService(st.ClassRepo, logger, conf)
	errAndDie(logger, err)
	sessionSvc, err := session.NewService(st.SessionRepo, classSvc, rost, locker, dig_container.NewEmailService(conf, logger), logger, conf)
	errAndDie(logger, err)

	translator := core.NewTranslator()
	validate := core.NewValidate(translator)
	class.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:       conf,
		classSvc:   classSvc,
		sessionSvc: sessionSvc,
		validate:   validate,
		out:        os.Stdout,
	}
	if st.DB != nil {
		cli.db = st.DB.DB
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
