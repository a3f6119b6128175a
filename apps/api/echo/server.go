package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/admin"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/pricing"
	"github.com/trezcool/slopeside/core/resort"
	"github.com/trezcool/slopeside/core/review"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
)

type (
	Deps struct {
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

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     Deps
		app      *echo.Echo
		auth     *authenticator
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps Deps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		metrics:  newMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	registerMessages(deps.Translators)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware, localeMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translators, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", s.home)
	s.app.GET("/metrics", s.metrics.handler())

	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware()
	limit := newRateLimiter(conf.Server.RateLimit, conf.Server.RateBurst).middleware

	registerUserAPI(v1, jwt, limit, s)
	registerInstructorAPI(v1, jwt, limit, s)
	registerBookingAPI(v1, jwt, limit, s)
	registerSchoolAPI(v1, jwt, s)
	registerResortAPI(v1, jwt, limit, s)
	registerAdminAPI(v1, jwt, s)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error               { return s.errors }
func (s *server) ShutdownSignal() <-chan os.Signal   { return s.shutdown }
func (s *server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *server) Close() error                       { return s.app.Close() }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
