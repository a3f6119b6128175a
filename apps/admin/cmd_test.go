package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/services/scheduler"
	"github.com/trezcool/slopeside/tests"
)

func setup(t *testing.T) (*commandLine, testutil.App) {
	app := testutil.NewApp(t)

	mockPassword("")
	t.Cleanup(func() { mockPassword("") })
	return &commandLine{
		usrRepo:     app.UserRepo,
		transitions: app.Transitions,
		jobs:        app.Jobs,
	}, app
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Truef(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	t.Run("memory engine", func(t *testing.T) {
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})

	defaultRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = defaultRun })

	var gotArgs []string
	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		gotArgs = args
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	cli.db = new(sql.DB) // never dialed by the fake runner

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	})

	require.NoError(t, cli.run([]string{"admin", "migrate", "create", "add_lift_passes", "sql"}))
	assert.Equal(t, []string{"add_lift_passes", "sql"}, gotArgs)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, app := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"adduser", "-email", "root@test.com"}, wantErr: errHelp},
		{name: "new admin", args: []string{"adduser", "-email", " ROOT@test.com", "-name", "Root", "-admin"}, pwd: "Sup3r-Secret"},
		{name: "new client", args: []string{"adduser", "-email", "carl@test.com"}, pwd: "Sup3r-Secret"},
	})

	root, err := app.UserRepo.GetUser(ctx, user.GetFilter{Email: "root@test.com"})
	require.NoError(t, err)
	assert.Equal(t, "Root", root.Name)
	assert.Equal(t, user.RoleClient, root.Role)
	assert.ElementsMatch(t, user.StaffRoles, root.StaffRoles)
	assert.True(t, root.Active())
	assert.NoError(t, root.CheckPassword("Sup3r-Secret"))

	carl, err := app.UserRepo.GetUser(ctx, user.GetFilter{Email: "carl@test.com"})
	require.NoError(t, err)
	assert.Equal(t, "carl@test.com", carl.Name, "the name defaults to the email")
	assert.False(t, carl.IsAdmin())

	t.Run("existing users are updated", func(t *testing.T) {
		suspended := testutil.CreateUser(t, app.UserRepo, "Ivy", "ivy@test.com", "old-pwd", user.RoleInstructor, nil, false)

		mockPassword("N3w-Secret!")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-email", "ivy@test.com"}))

		usr, err := app.UserRepo.GetUser(ctx, user.GetFilter{ID: suspended.ID})
		require.NoError(t, err)
		assert.Equal(t, "Ivy", usr.Name)
		assert.Equal(t, user.RoleInstructor, usr.Role)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("N3w-Secret!"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, app := setup(t)
	usr := testutil.CreateUser(t, app.UserRepo, "User", "awe@test.com", "mdr", user.RoleClient, nil, true)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-username", "AWE@test.com"}, pwd: "lmao"},
	})

	refreshed, err := app.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NotEqual(t, usr.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_transitionRole(t *testing.T) {
	cli, app := setup(t)
	usr := testutil.CreateUser(t, app.UserRepo, "Carl", "carl@test.com", "", user.RoleClient, nil, true)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"transitionrole"}, wantErr: errHelp},
		{name: "no role", args: []string{"transitionrole", "-email", "carl@test.com"}, wantErr: errHelp},
		{name: "user not found", args: []string{"transitionrole", "-email", "nope@test.com", "-role", "instructor"}, wantErr: user.ErrNotFound},
		{name: "unknown role", args: []string{"transitionrole", "-email", "carl@test.com", "-role", "admin:owner"}, wantErrStr: "unknown marketplace role"},
		{name: "same role", args: []string{"transitionrole", "-email", "carl@test.com", "-role", "client"}, wantErrStr: "you already have this role"},
		{name: "to instructor", args: []string{"transitionrole", "-email", "carl@test.com", "-role", "INSTRUCTOR"}},
	})

	ctx := context.Background()
	refreshed, err := app.UserRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, user.RoleInstructor, refreshed.Role)
	_, err = app.Instructors.GetByUserID(ctx, usr.ID)
	assert.NoError(t, err, "an empty profile is created")
}

func Test_commandLine_runJob(t *testing.T) {
	cli, app := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no name", args: []string{"runjob"}, wantErr: errHelp},
		{name: "unknown job", args: []string{"runjob", "-name", "lol"}, wantErr: scheduler.ErrUnknownJob},
		{name: "expire bookings", args: []string{"runjob", "-name", scheduler.JobExpireBookings}},
	})

	t.Run("expire invitations", func(t *testing.T) {
		defer func(now func() time.Time) { core.NowFunc = now }(core.NowFunc)
		owner := testutil.CreateUser(t, app.UserRepo, "Olga", "olga@test.com", "", user.RoleSchoolAdmin, nil, true)
		sch, err := app.Schools.Create(context.Background(), owner, school.SchoolData{Name: "Ski Club"})
		require.NoError(t, err)
		_, err = app.Schools.Invite(context.Background(), owner, sch.ID, "late@test.com")
		require.NoError(t, err)

		later := time.Now().Add(app.Conf.Marketplace.InvitationTTL + time.Hour)
		core.NowFunc = func() time.Time { return later }
		require.NoError(t, cli.run([]string{"admin", "runjob", "-name", scheduler.JobExpireInvitations}))

		invs, err := app.SchoolRepo.QueryInvitations(context.Background(), sch.ID, nil)
		require.NoError(t, err)
		require.Len(t, invs, 1)
		assert.Equal(t, school.InvitationExpired, invs[0].Status)
	})
}
