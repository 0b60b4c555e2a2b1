package dig_container

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/board"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/services/lock"
	"github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database"
	"github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/storage/database/sqlx"
)

const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"

	LockMemory   = "memory"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the repository set of the configured database engine.
// DB is nil for the memory engine.
type Storage struct {
	dig.Out
	DB          *sqlx.DB
	RosterRepo  roster.Repository
	ClassRepo   class.Repository
	SessionRepo session.Repository
}

type ServerParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	SessionSvc session.ServiceInterface
	ClassSvc   class.ServiceInterface
	BoardSvc   board.ServiceInterface
	Roster     roster.Roster
	Validate   *validator.Validate
	Translator ut.Translator
}

type lockerParams struct {
	dig.In
	Conf   *core.Config
	Logger core.Logger
	DB     *sqlx.DB
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
	return OpenStorage(conf, loggerParam.Logger, true)
}

// OpenStorage opens the configured database engine. Postgres is created if missing and,
// when migrate is set, brought up to the latest migration.
func OpenStorage(conf *core.Config, logger core.Logger, migrate bool) (Storage, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		db := inmemdb.Open()
		logger.Warn("using the in-memory database; nothing is persisted")
		return Storage{
			RosterRepo:  inmemdb.NewRosterRepository(db),
			ClassRepo:   inmemdb.NewClassRepository(db),
			SessionRepo: inmemdb.NewSessionRepository(db),
		}, nil
	case EnginePostgres:
		db, err := setUpDB(conf, migrate)
		if err != nil {
			return Storage{}, errors.Wrap(err, "setting up database")
		}
		return Storage{
			DB:          db,
			RosterRepo:  sqlxrepos.NewRosterRepository(db),
			ClassRepo:   sqlxrepos.NewClassRepository(db),
			SessionRepo: sqlxrepos.NewSessionRepository(db),
		}, nil
	}
	return Storage{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

func setUpDB(conf *core.Config, migrate bool) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(context.Background(), db); err != nil {
		return nil, err
	}

	if migrate {
		if err = database.Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func newLocker(p lockerParams) (session.Locker, error) {
	return NewLocker(p.Conf, p.Logger, p.DB)
}

// NewLocker returns the teacher/date locker of the configured backend. db may be nil unless the backend is postgres.
func NewLocker(conf *core.Config, logger core.Logger, db *sqlx.DB) (session.Locker, error) {
	switch conf.Lock.Backend {
	case LockMemory:
		return locksvc.NewMemoryLocker(), nil
	case LockRedis:
		client, err := locksvc.NewRedisClient(context.Background(), conf)
		if err != nil {
			return nil, err
		}
		return locksvc.NewRedisLocker(client, logger, conf), nil
	case LockPostgres:
		if db == nil {
			return nil, errors.New("postgres locks need the postgres database engine")
		}
		return sqlxrepos.NewAdvisoryLocker(db, logger), nil
	}
	return nil, errors.Errorf("unknown lock backend %q", conf.Lock.Backend)
}

// NewEmailService prints notices in debug mode and sends them with sendgrid otherwise.
func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		SessionSvc: p.SessionSvc,
		ClassSvc:   p.ClassSvc,
		BoardSvc:   p.BoardSvc,
		Roster:     p.Roster,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newLocker))
	must(c.Provide(NewEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidate))
	must(c.Provide(roster.NewService, dig.As(new(roster.Roster))))
	must(c.Provide(class.NewService, dig.As(new(class.ServiceInterface), new(session.ClassFinder))))
	must(c.Provide(session.NewService, dig.As(new(session.ServiceInterface), new(board.Sessions))))
	must(c.Provide(board.NewService, dig.As(new(board.ServiceInterface))))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
