package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/slopeside/apps/api/echo"
	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/admin"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/notification"
	"github.com/trezcool/slopeside/core/pricing"
	"github.com/trezcool/slopeside/core/resort"
	"github.com/trezcool/slopeside/core/review"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
	appfs "github.com/trezcool/slopeside/fs"
	"github.com/trezcool/slopeside/services/cache"
	emailsvc "github.com/trezcool/slopeside/services/email"
	logsvc "github.com/trezcool/slopeside/services/logger"
	"github.com/trezcool/slopeside/services/scheduler"
	"github.com/trezcool/slopeside/storage/database"
	inmemdb "github.com/trezcool/slopeside/storage/database/inmem"
	boiledrepos "github.com/trezcool/slopeside/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/slopeside/storage/database/sqlx"
)

// EngineMemory keeps every table in memory; nothing survives a restart.
const EngineMemory = "memory"

type NewConfigFunc func() *core.Config

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	JobsLoggerParam struct {
		dig.In
		Logger core.Logger `name:"jobsLogger"`
	}

	// Repositories is provided as a whole: every field is available on its own in the container.
	Repositories struct {
		dig.Out

		DB          *sql.DB // nil with the memory engine
		Tx          core.TxRunner
		Users       user.Repository
		Instructors instructor.Repository
		Pricing     pricing.Repository
		Calendar    calendar.Repository
		Bookings    booking.Repository
		Schools     school.Repository
		Resorts     resort.Repository
		Reviews     review.Repository
		Audit       audit.Repository
		Stats       admin.Repository
	}
)

func newLogger(conf *core.Config) core.Logger {
	return newPrefixedLogger(conf, logsvc.PrefixAPI)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newPrefixedLogger(conf, logsvc.PrefixDB)
}

func newJobsLogger(conf *core.Config) core.Logger {
	return newPrefixedLogger(conf, logsvc.PrefixJobs)
}

func newPrefixedLogger(conf *core.Config, prefix string) core.Logger {
	if conf.TestMode {
		return logsvc.NewDiscard()
	}
	logger := logsvc.New(os.Stdout, prefix, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == EngineMemory {
		db := inmemdb.Open()
		return Repositories{
			Tx:          db,
			Users:       inmemdb.NewUserRepository(db),
			Instructors: inmemdb.NewInstructorRepository(db),
			Pricing:     inmemdb.NewPricingRepository(db),
			Calendar:    inmemdb.NewCalendarRepository(db),
			Bookings:    inmemdb.NewBookingRepository(db),
			Schools:     inmemdb.NewSchoolRepository(db),
			Resorts:     inmemdb.NewResortRepository(db),
			Reviews:     inmemdb.NewReviewRepository(db),
			Audit:       inmemdb.NewAuditRepository(db),
			Stats:       inmemdb.NewStatsRepository(db),
		}
	}

	db, err := newDB(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:          db,
		Tx:          database.NewTxRunner(db),
		Users:       boiledrepos.NewUserRepository(db),
		Instructors: boiledrepos.NewInstructorRepository(db),
		Pricing:     boiledrepos.NewPricingRepository(db),
		Calendar:    boiledrepos.NewCalendarRepository(db),
		Bookings:    boiledrepos.NewBookingRepository(db),
		Schools:     boiledrepos.NewSchoolRepository(db),
		Resorts:     boiledrepos.NewResortRepository(db),
		Reviews:     boiledrepos.NewReviewRepository(db),
		Audit:       sqlxrepos.NewAuditRepository(db),
		Stats:       sqlxrepos.NewStatsRepository(db),
	}
}

func newDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

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

// newCache uses Redis when an address is configured.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Redis.Address == "" {
		return cache.NewMemoryCache()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.Connect(ctx, conf.Redis)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return cache.NewRedisCache(client)
}

func newValidator(trans *core.Translators) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, trans)
	user.InitValidators(validate, trans)
	instructor.InitValidators(validate, trans)
	pricing.InitValidators(validate, trans)
	return validate
}

func newEmailRenderer(conf *core.Config) *core.EmailRenderer {
	return core.NewEmailRenderer(conf, appfs.FS)
}

func newEmailService(conf *core.Config, renderer *core.EmailRenderer, logger core.Logger) core.EmailService {
	if conf.TestMode {
		return emailsvc.NewConsoleServiceMock(conf, renderer, logger)
	}
	return emailsvc.NewService(conf, renderer, logger)
}

func newAuditRecorder(svc *audit.Service) audit.Recorder { return svc }

type (
	// userFinder reads users straight from the repository, for services the user service itself depends on.
	userFinder struct {
		repo user.Repository
	}

	userServiceParams struct {
		dig.In

		Conf        *core.Config
		Repo        user.Repository
		Tx          core.TxRunner
		Instructors *instructor.Service
		Notifier    *notification.Notifier
		Tokens      *user.TokenGenerator
		Auditor     audit.Recorder
	}
)

func (f userFinder) GetByID(ctx context.Context, id string) (user.User, error) {
	return f.repo.GetUser(ctx, user.GetFilter{ID: id})
}

func newUserService(p userServiceParams) user.Service {
	deps := user.Deps{
		Repo:     p.Repo,
		Tx:       p.Tx,
		Profiles: p.Instructors,
		Notifier: p.Notifier,
		Tokens:   p.Tokens,
		Auditor:  p.Auditor,
	}
	if p.Conf.TestMode {
		return user.NewServiceMock(deps)
	}
	return user.NewService(deps)
}

func newResortService(repo resort.Repository, users user.Repository, tx core.TxRunner, auditor audit.Recorder, notifier *notification.Notifier) *resort.Service {
	return resort.NewService(resort.Deps{
		Repo:     repo,
		Users:    userFinder{repo: users},
		Tx:       tx,
		Auditor:  auditor,
		Notifier: notifier,
	})
}

type instructorServiceParams struct {
	dig.In

	Conf    *core.Config
	Repo    instructor.Repository
	Rules   pricing.Repository
	Reviews review.Repository
	Resorts *resort.Service
	Auditor audit.Recorder
	Tx      core.TxRunner
	Cache   core.Cache
	Logger  core.Logger
}

func newInstructorService(p instructorServiceParams) *instructor.Service {
	return instructor.NewService(instructor.Deps{
		Repo:      p.Repo,
		BaseRates: p.Rules,
		Ratings:   p.Reviews,
		Resorts:   p.Resorts,
		Auditor:   p.Auditor,
		Tx:        p.Tx,
		Cache:     p.Cache,
		CacheTTL:  p.Conf.Redis.DirectoryTTL,
		Logger:    p.Logger,
	})
}

func newPricingService(repo pricing.Repository, instructors *instructor.Service, tx core.TxRunner, conf *core.Config) *pricing.Service {
	return pricing.NewService(repo, instructors, tx, conf)
}

func newCalendarService(repo calendar.Repository, instructors *instructor.Service) *calendar.Service {
	return calendar.NewService(repo, instructors)
}

type bookingServiceParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Repo        booking.Repository
	Tx          core.TxRunner
	Users       user.Service
	Instructors *instructor.Service
	Resorts     *resort.Service
	Pricing     *pricing.Service
	Calendar    *calendar.Service
	Notifier    *notification.Notifier
	Auditor     audit.Recorder
}

func newBookingService(p bookingServiceParams) *booking.Service {
	return booking.NewService(booking.Deps{
		Repo:     p.Repo,
		Tx:       p.Tx,
		Users:    p.Users,
		Profiles: p.Instructors,
		Resorts:  p.Resorts,
		Pricing:  p.Pricing,
		Calendar: p.Calendar,
		Notifier: p.Notifier,
		Auditor:  p.Auditor,
		Conf:     p.Conf,
		Logger:   p.Logger,
	})
}

func newReviewService(repo review.Repository, bookings booking.Repository, instructors *instructor.Service, tx core.TxRunner, auditor audit.Recorder) *review.Service {
	return review.NewService(repo, bookings, instructors, tx, auditor)
}

type schoolServiceParams struct {
	dig.In

	Conf        *core.Config
	Repo        school.Repository
	Tx          core.TxRunner
	Users       user.Service
	Instructors *instructor.Service
	Resorts     *resort.Service
	Notifier    *notification.Notifier
	Auditor     audit.Recorder
}

func newSchoolService(p schoolServiceParams) *school.Service {
	return school.NewService(school.Deps{
		Repo:        p.Repo,
		Tx:          p.Tx,
		Users:       p.Users,
		Instructors: p.Instructors,
		Resorts:     p.Resorts,
		Notifier:    p.Notifier,
		Auditor:     p.Auditor,
		Conf:        p.Conf,
	})
}

func newTransitionService(users user.Repository, instructors *instructor.Service, schools *school.Service, bookings *booking.Service, auditor audit.Recorder, tx core.TxRunner) *transition.Service {
	return transition.NewService(transition.Deps{
		Users:       users,
		Instructors: instructors,
		Schools:     schools,
		Bookings:    bookings,
		Auditor:     auditor,
		Tx:          tx,
	})
}

func newScheduler(conf *core.Config, loggerParam JobsLoggerParam, bookings *booking.Service, schools *school.Service) *scheduler.Scheduler {
	return scheduler.New(loggerParam.Logger, scheduler.Jobs(conf.Scheduler, bookings, schools)...)
}

type serverParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translators *core.Translators
	UserSvc     user.Service
	Transitions *transition.Service
	Instructors *instructor.Service
	Pricing     *pricing.Service
	Calendar    *calendar.Service
	Bookings    *booking.Service
	Reviews     *review.Service
	Schools     *school.Service
	Resorts     *resort.Service
	Audit       *audit.Service
	Admin       *admin.Service
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(echoapi.Deps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translators: p.Translators,
		UserSvc:     p.UserSvc,
		Transitions: p.Transitions,
		Instructors: p.Instructors,
		Pricing:     p.Pricing,
		Calendar:    p.Calendar,
		Bookings:    p.Bookings,
		Reviews:     p.Reviews,
		Schools:     p.Schools,
		Resorts:     p.Resorts,
		Audit:       p.Audit,
		Admin:       p.Admin,
	})
}

// New returns a new dependency injection dig.Container.
// Everything is built lazily, on the first Invoke that needs it.
func New(newConfig NewConfigFunc) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newJobsLogger, dig.Name("jobsLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newCache))
	must(c.Provide(core.NewTranslators))
	must(c.Provide(newValidator))
	must(c.Provide(newEmailRenderer))
	must(c.Provide(newEmailService))
	must(c.Provide(notification.NewNotifier))
	must(c.Provide(user.NewTokenGenerator))

	must(c.Provide(audit.NewService))
	must(c.Provide(newAuditRecorder))
	must(c.Provide(newResortService))
	must(c.Provide(newInstructorService))
	must(c.Provide(newUserService))
	must(c.Provide(newPricingService))
	must(c.Provide(newCalendarService))
	must(c.Provide(newBookingService))
	must(c.Provide(newReviewService))
	must(c.Provide(newSchoolService))
	must(c.Provide(newTransitionService))
	must(c.Provide(admin.NewService))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
