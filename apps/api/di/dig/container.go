package dig_container

import (
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	metricsvc "github.com/trezcool/mahudhurio/services/metrics"
	"github.com/trezcool/mahudhurio/storage"
	"github.com/trezcool/mahudhurio/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type loggerParams struct {
	dig.In
	Conf *core.Config
	Zap  *zap.Logger
}

func newZapLogger(conf *core.Config) *zap.Logger {
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return zl
}

func newLogger(p loggerParams) core.Logger {
	logger := logsvc.NewRollbarLogger(p.Zap.Named("api"), p.Conf)
	logger.Enable(!p.Conf.Debug)
	return logger
}

func newDBLogger(p loggerParams) core.Logger {
	logger := logsvc.NewRollbarLogger(p.Zap.Named("db").WithOptions(zap.AddCaller()), p.Conf)
	logger.Enable(!p.Conf.Debug)
	return logger
}

// newRepositories connects to the configured engine; migrations are left to the caller.
func newRepositories(conf *core.Config, loggerParam DBLoggerParam) *storage.Repositories {
	setUp := func() (*storage.Repositories, error) {
		if conf.Database.InMemory() {
			return storage.Open(conf)
		}

		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		return storage.Open(conf)
	}

	repos, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return repos
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

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newTeacherService(repos *storage.Repositories) *teacher.Service {
	return teacher.NewService(repos.Teachers)
}

func newClassroomService(repos *storage.Repositories) *classroom.Service {
	return classroom.NewService(repos.Classrooms)
}

// newScheduleService creates classes through the ledger so that a class created attended is accrued.
func newScheduleService(repos *storage.Repositories, ledgerSvc *ledger.Service) *schedule.Service {
	return schedule.NewService(repos.Classes, repos.Classrooms, ledgerSvc)
}

func newLedgerService(conf *core.Config, repos *storage.Repositories, logger core.Logger, reg *prometheus.Registry) *ledger.Service {
	metrics, err := metricsvc.NewLedgerMetrics(reg)
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering ledger metrics: %v", err), err)
	}
	return ledger.NewService(ledger.ServiceDeps{
		TxManager:  repos.Tx,
		Entries:    repos.Ledger,
		Attendance: repos.Ledger,
		Logger:     logger,
		Metrics:    metrics,
		Location:   conf.School.Location,
	})
}

type serverParams struct {
	dig.In
	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	TeacherSvc   *teacher.Service
	ClassroomSvc *classroom.Service
	ScheduleSvc  *schedule.Service
	LedgerSvc    *ledger.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		TeacherSvc:   p.TeacherSvc,
		ClassroomSvc: p.ClassroomSvc,
		ScheduleSvc:  p.ScheduleSvc,
		LedgerSvc:    p.LedgerSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newRegistry))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newTeacherService))
	must(c.Provide(newClassroomService))
	must(c.Provide(newScheduleService))
	must(c.Provide(newLedgerService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
