package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/eduva/eduva/apps/api/echo"
	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
	emailsvc "github.com/eduva/eduva/services/email"
	jobsvc "github.com/eduva/eduva/services/jobs"
	logsvc "github.com/eduva/eduva/services/logger"
	metricsvc "github.com/eduva/eduva/services/metrics"
	"github.com/eduva/eduva/storage/database"
	sqlxrepos "github.com/eduva/eduva/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	metricsSink, err := metricsvc.NewSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering metrics: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Password.MinLength)

	usrSvc := user.NewService(user.ServiceDeps{
		Repo:     sqlxrepos.NewCredentialRepository(db),
		Hasher:   user.NewBcryptHasher(conf.Password.BcryptCost),
		Tokens:   user.NewResetTokens(conf.SecretKey, conf.Password.ResetTimeout),
		MailSvc:  mailSvc,
		Events:   user.Sinks{user.NewLogSink(logger), metricsSink},
		Logger:   logger,
		Validate: validate,

		FrontendBaseURL: conf.FrontendBaseURL,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db_engine").Set(conf.Database.Engine)
	expvar.Publish("db_stats", expvar.Func(func() interface{} { return db.Stats() }))
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Background Jobs

	scheduler := jobsvc.NewScheduler()
	if err = scheduler.Add(conf.Audit.Schedule, jobsvc.NewAuditJob(usrSvc, conf.Audit.Repair, logger)); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling credential audit: %v", err), err)
	}
	scheduler.Start()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		scheduler.Stop(ctx)

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
