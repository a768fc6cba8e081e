package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/services/metrics"
	"github.com/trezcool/mahudhurio/services/notifier"
	"github.com/trezcool/mahudhurio/storage/database"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are the storage implementations selected by Database.Storage.
	Repositories struct {
		dig.Out

		Roster       roster.Repository
		Leave        leave.Repository
		Sessions     attendance.SessionStore
		Ledger       attendance.Ledger
		Notification notification.Repository
		Closer       Closer `group:"closers"`
	}

	// NotificationResult is the notification feed and the release of its fanout connections.
	NotificationResult struct {
		dig.Out

		Service *notification.Service
		Closer  Closer `group:"closers"`
	}

	closersParam struct {
		dig.In

		Closers []Closer `group:"closers"`
	}

	// Closer releases the resources held by the application.
	Closer func() error
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newPostgresDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.OpenX(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newMemoryDB(conf *core.Config, logger core.Logger) (*dummydb.DB, error) {
	db, err := dummydb.Open()
	if err != nil {
		return nil, err
	}
	if conf.Roster.SeedFile == "" {
		logger.Warn("in-memory storage without a roster seed file: every class is empty")
		return db, nil
	}
	imp, err := roster.LoadFile(conf.Roster.SeedFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading roster seed file")
	}
	if err = dummydb.NewRosterRepository(db).SaveRoster(context.Background(), imp); err != nil {
		return nil, errors.Wrap(err, "seeding roster")
	}
	logger.Info(fmt.Sprintf("roster seeded: %d guardians, %d students", len(imp.Guardians), len(imp.Students)))
	return db, nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	logger := loggerParam.Logger

	if conf.Database.Storage == core.StoragePostgres {
		db, err := newPostgresDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		return Repositories{
			Roster:       sqlxrepos.NewRosterRepository(db),
			Leave:        sqlxrepos.NewLeaveRepository(db),
			Sessions:     sqlxrepos.NewSessionRepository(db),
			Ledger:       sqlxrepos.NewLedgerRepository(db),
			Notification: sqlxrepos.NewNotificationRepository(db),
			Closer:       db.Close,
		}
	}

	db, err := newMemoryDB(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up in-memory database: %v", err), err)
	}
	return Repositories{
		Roster:       dummydb.NewRosterRepository(db),
		Leave:        dummydb.NewLeaveRepository(db),
		Sessions:     dummydb.NewSessionRepository(db),
		Ledger:       dummydb.NewLedgerRepository(db),
		Notification: dummydb.NewNotificationRepository(db),
		Closer:       func() error { return nil },
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
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
	leave.InitValidators(validate, translator)
	return validate
}

// newNotificationService wires the enabled fanouts: metrics always, then redis and email.
func newNotificationService(
	conf *core.Config,
	repo notification.Repository,
	guardians roster.Repository,
	mailSvc core.EmailService,
	m *metrics.Metrics,
	logger core.Logger,
) NotificationResult {
	closer := func() error { return nil }
	fanouts := []notification.Fanout{m}
	if conf.Redis.Enabled {
		client := notifier.NewRedisClient(conf.Redis.Addr)
		publisher := notifier.NewRedisPublisher(client, conf.Redis.Key)
		if !publisher.Healthy(context.Background()) {
			logger.Warn(fmt.Sprintf("redis at %s is not reachable: push alerts fail until it is", conf.Redis.Addr))
		}
		fanouts = append(fanouts, publisher)
		closer = client.Close
	}
	if conf.Notify.Email {
		fanouts = append(fanouts, notifier.NewMailer(guardians, mailSvc, logger))
	}
	return NotificationResult{
		Service: notification.NewService(repo, logger, fanouts...),
		Closer:  closer,
	}
}

// newCloser releases every grouped resource, returning the first failure.
func newCloser(p closersParam) Closer {
	return func() error {
		var first error
		for _, c := range p.Closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func newAttendanceService(
	store attendance.SessionStore,
	ledger attendance.Ledger,
	students roster.Repository,
	leaveSvc *leave.Service,
	notifSvc *notification.Service,
	logger core.Logger,
) *attendance.Service {
	return attendance.NewService(store, ledger, students, leaveSvc, notifSvc, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(metrics.New))
	must(c.Provide(leave.NewService))
	must(c.Provide(newNotificationService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newCloser))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
