package transition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/services/email"
	"github.com/trezcool/slopeside/tests"
)

type fixture struct {
	app        testutil.App
	resortID   string
	insUser    user.User
	instructor instructor.Instructor
	client     user.User
}

func newFixture(t *testing.T) fixture {
	app := testutil.NewApp(t)
	rst := testutil.CreateResort(t, app, "Verbier", "CH")
	insUser, ins := testutil.CreatePublishedInstructor(t, app, "Ivy", "ivy@test.com", 5000, []string{instructor.SportSki}, rst.ID)
	client := testutil.CreateUser(t, app.UserRepo, "Carl", "carl@test.com", "", user.RoleClient, nil, true)
	return fixture{app: app, resortID: rst.ID, insUser: insUser, instructor: ins, client: client}
}

func (f fixture) book(t *testing.T, startIn int) booking.Booking {
	t.Helper()
	b, err := f.app.Bookings.Request(context.Background(), f.client, booking.NewBooking{
		InstructorID: f.instructor.ID,
		ResortID:     f.resortID,
		Sport:        instructor.SportSki,
		StartDate:    testutil.FutureDate(startIn),
		EndDate:      testutil.FutureDate(startIn),
		HoursPerDay:  3,
		GroupSize:    2,
		SkillLevel:   booking.SkillIntermediate,
	})
	require.NoError(t, err)
	return b
}

func TestService_TransitionRole_validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.app.Transitions.TransitionRole(ctx, "", f.client.ID, "admin:owner")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "role", verr.Fields[0].Field)

	_, _, err = f.app.Transitions.TransitionRole(ctx, "", f.client.ID, " CLIENT ")
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "you already have this role", verr.Fields[0].Error)

	_, _, err = f.app.Transitions.TransitionRole(ctx, "", "unknown", user.RoleInstructor)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_TransitionRole_instructor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("blocked by upcoming lessons", func(t *testing.T) {
		b := f.book(t, 5)
		_, err := f.app.Bookings.Accept(ctx, f.insUser.ID, b.ID)
		require.NoError(t, err)

		_, _, err = f.app.Transitions.TransitionRole(ctx, "", f.insUser.ID, user.RoleClient)
		assert.Equal(t, transition.ErrHasUpcomingBookings, err)

		_, err = f.app.Bookings.Cancel(ctx, f.client.ID, b.ID)
		require.NoError(t, err)
	})

	pending := f.book(t, 8)
	emailsvc.ClearSentMessages()

	usr, rt, err := f.app.Transitions.TransitionRole(ctx, "", f.insUser.ID, user.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, user.RoleClient, usr.Role)
	assert.Equal(t, user.RoleInstructor, rt.FromRole)
	assert.Equal(t, f.instructor.ID, rt.ArchivedInstructorID)

	t.Run("pending requests are declined", func(t *testing.T) {
		b, err := f.app.Bookings.Get(ctx, f.client, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusDeclined, b.Status)
		assert.Equal(t, booking.ReasonInstructorUnavailable, b.DeclineReason)

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, f.client.Email, sent[0].To[0].Address)

		blocks, err := f.app.Calendar.Range(ctx, f.instructor.ID, core.NowFunc(), core.NowFunc().AddDate(0, 0, 30))
		require.NoError(t, err)
		assert.Empty(t, blocks)
	})

	t.Run("the profile is archived", func(t *testing.T) {
		_, err := f.app.Instructors.GetByUserID(ctx, f.insUser.ID)
		assert.True(t, core.IsNotFound(err))
		_, err = f.app.Instructors.GetPublic(ctx, f.instructor.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("coming back restores it", func(t *testing.T) {
		_, rt, err := f.app.Transitions.TransitionRole(ctx, "", f.insUser.ID, user.RoleInstructor)
		require.NoError(t, err)
		assert.Equal(t, f.instructor.ID, rt.RestoredInstructorID)

		ins, err := f.app.Instructors.GetByUserID(ctx, f.insUser.ID)
		require.NoError(t, err)
		assert.Equal(t, f.instructor.Slug, ins.Slug)
	})
}

func TestService_TransitionRole_schoolAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.app.UserRepo, "Olga", "olga@test.com", "", user.RoleSchoolAdmin, nil, true)
	sch, err := f.app.Schools.Create(ctx, owner, school.SchoolData{Name: "Verbier Ski School"})
	require.NoError(t, err)
	_, err = f.app.Schools.Invite(ctx, owner, sch.ID, "someone@test.com")
	require.NoError(t, err)

	t.Run("blocked by members", func(t *testing.T) {
		_, err := f.app.Instructors.SetSchool(ctx, f.instructor, &sch.ID)
		require.NoError(t, err)

		_, _, err = f.app.Transitions.TransitionRole(ctx, "", owner.ID, user.RoleClient)
		assert.Equal(t, transition.ErrSchoolHasMembers, err)

		require.NoError(t, f.app.Schools.LeaveSchool(ctx, f.insUser.ID))
	})

	_, rt, err := f.app.Transitions.TransitionRole(ctx, "", owner.ID, user.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, sch.ID, rt.ArchivedSchoolID)

	_, err = f.app.Schools.GetByID(ctx, sch.ID)
	assert.True(t, core.IsNotFound(err), "archived schools are hidden")
	invs, err := f.app.SchoolRepo.QueryInvitations(ctx, sch.ID, []string{school.InvitationPending})
	require.NoError(t, err)
	assert.Empty(t, invs)

	_, rt, err = f.app.Transitions.TransitionRole(ctx, "", owner.ID, user.RoleSchoolAdmin)
	require.NoError(t, err)
	assert.Equal(t, sch.ID, rt.RestoredSchoolID)
	assert.NotEmpty(t, rt.ArchivedInstructorID, "the profile created meanwhile is archived")

	restored, err := f.app.Schools.GetByID(ctx, sch.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived())

	transitions, err := f.app.UserRepo.QueryRoleTransitions(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, transitions, 2)
}
