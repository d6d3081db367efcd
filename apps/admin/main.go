package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
	emailsvc "github.com/eduva/eduva/services/email"
	logsvc "github.com/eduva/eduva/services/logger"
	"github.com/eduva/eduva/storage/database"
	sqlxrepos "github.com/eduva/eduva/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Password.MinLength)

	// start CLI
	cli := commandLine{
		db: db,
		usrSvc: user.NewService(user.ServiceDeps{
			Repo:     sqlxrepos.NewCredentialRepository(db),
			Hasher:   user.NewBcryptHasher(conf.Password.BcryptCost),
			Tokens:   user.NewResetTokens(conf.SecretKey, conf.Password.ResetTimeout),
			MailSvc:  mailSvc,
			Logger:   logger,
			Validate: validate,

			FrontendBaseURL: conf.FrontendBaseURL,
		}),
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
