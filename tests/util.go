// Package testutil builds a fully wired app over the in-memory database and seeds it.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/slopeside/apps/api/di/dig"
	echoapi "github.com/trezcool/slopeside/apps/api/echo"
	"github.com/trezcool/slopeside/core"
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
	emailsvc "github.com/trezcool/slopeside/services/email"
	"github.com/trezcool/slopeside/services/scheduler"
)

// App is filled by the container in a single Invoke.
type App struct {
	dig.In

	Conf *core.Config

	Tx             core.TxRunner
	UserRepo       user.Repository
	InstructorRepo instructor.Repository
	PricingRepo    pricing.Repository
	CalendarRepo   calendar.Repository
	BookingRepo    booking.Repository
	SchoolRepo     school.Repository
	ResortRepo     resort.Repository
	ReviewRepo     review.Repository

	Users       user.Service
	Tokens      *user.TokenGenerator
	Transitions *transition.Service
	Instructors *instructor.Service
	Pricing     *pricing.Service
	Calendar    *calendar.Service
	Bookings    *booking.Service
	Reviews     *review.Service
	Schools     *school.Service
	Resorts     *resort.Service
	Audit       *audit.Service
	Jobs        *scheduler.Scheduler
	Server      echoapi.Server
}

// NewApp wires a test app; configure runs on the test config before anything is built.
func NewApp(t *testing.T, configure ...func(conf *core.Config)) App {
	t.Helper()

	newConfig := func() *core.Config {
		conf := core.NewTestConfig()
		conf.Database.Engine = dig_container.EngineMemory
		for _, fn := range configure {
			fn(conf)
		}
		return conf
	}

	var app App
	err := dig_container.New(newConfig).Invoke(func(a App) { app = a })
	require.NoError(t, err, "building test app")

	emailsvc.ClearSentMessages()
	t.Cleanup(emailsvc.ClearSentMessages)
	return app
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	staffRoles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if staffRoles == nil {
		staffRoles = []string{}
	}
	usr := user.User{
		Name:       name,
		Email:      email,
		Role:       role,
		StaffRoles: staffRoles,
		Locale:     core.DefaultLocale,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "hashing password")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "createUser() failed")
	return usr
}

func CreateResort(t *testing.T, app App, name, country string) resort.Resort {
	t.Helper()

	rst, err := app.Resorts.Create(context.Background(), "", resort.NewResort{Name: name, Country: country})
	require.NoError(t, err, "createResort() failed")
	return rst
}

// CreateInstructor creates an instructor with an empty, unpublished profile.
func CreateInstructor(t *testing.T, app App, name, email, pwd string) (user.User, instructor.Instructor) {
	t.Helper()

	ctx := context.Background()
	usr := CreateUser(t, app.UserRepo, name, email, pwd, user.RoleInstructor, nil, true)
	require.NoError(t, app.Instructors.CreateEmptyProfile(ctx, usr.ID, name), "creating profile")
	ins, err := app.Instructors.GetByUserID(ctx, usr.ID)
	require.NoError(t, err, "finding profile")
	return usr, ins
}

// CreatePublishedInstructor creates an instructor listed in the directory,
// teaching sports at the resorts for hourlyCents an hour.
func CreatePublishedInstructor(t *testing.T, app App, name, email string, hourlyCents int, sports []string, resortIDs ...string) (user.User, instructor.Instructor) {
	t.Helper()

	ctx := context.Background()
	usr, _ := CreateInstructor(t, app, name, email, "")
	_, err := app.Instructors.UpdateProfile(ctx, usr.ID, instructor.UpdateProfile{
		Sports:    sports,
		Languages: []string{"en"},
		ResortIDs: resortIDs,
	})
	require.NoError(t, err, "updating profile")
	_, err = app.Pricing.CreateRule(ctx, usr.ID, pricing.NewRule{Kind: pricing.KindBaseHourly, AmountCents: hourlyCents})
	require.NoError(t, err, "creating base rate")
	ins, err := app.Instructors.Publish(ctx, usr.ID)
	require.NoError(t, err, "publishing profile")
	return usr, ins
}

// FutureDate returns the date days from today, formatted for the API.
func FutureDate(days int) string {
	return core.Day(core.NowFunc()).AddDate(0, 0, days).Format(booking.DateLayout)
}
