package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/services/email"
	"github.com/trezcool/slopeside/services/scheduler"
	"github.com/trezcool/slopeside/tests"
)

// invitationToken reads the token mailed to the invitee; the API never returns it.
func invitationToken(t *testing.T, app testutil.App, schoolID, email string) string {
	t.Helper()
	invs, err := app.SchoolRepo.QueryInvitations(context.Background(), schoolID, []string{school.InvitationPending})
	require.NoError(t, err)
	for _, inv := range invs {
		if inv.Email == email {
			return inv.Token
		}
	}
	t.Fatalf("no pending invitation for %s", email)
	return ""
}

func Test_schoolApi(t *testing.T) {
	app := setup(t)
	rst := testutil.CreateResort(t, app, "St. Anton", "AT")
	owner := testutil.CreateUser(t, app.UserRepo, "Olga Owner", "olga@test.com", strongPwd, user.RoleSchoolAdmin, nil, true)
	heir := testutil.CreateUser(t, app.UserRepo, "Hank Heir", "hank@test.com", strongPwd, user.RoleSchoolAdmin, nil, true)
	coachUser, coach := testutil.CreateInstructor(t, app, "Cleo Coach", "cleo@test.com", strongPwd)
	client := testutil.CreateUser(t, app.UserRepo, "Client", "client@test.com", strongPwd, user.RoleClient, nil, true)

	ownerToken := getToken(t, app.Conf, owner)
	coachToken := getToken(t, app.Conf, coachUser)
	data := func(name string) []byte {
		return marchallObj(t, school.SchoolData{Name: name, Website: "https://alpine.example.com", Phone: "+43512000000", ResortIDs: []string{rst.ID}})
	}

	rejected := []httpTest{
		{name: "no token", method: http.MethodPost, path: "/v1/schools", body: data("Nope"), wantCode: http.StatusUnauthorized},
		{name: "clients", method: http.MethodPost, path: "/v1/schools", token: getToken(t, app.Conf, client), body: data("Nope"), wantCode: http.StatusForbidden},
		{name: "blank name", method: http.MethodPost, path: "/v1/schools", token: ownerToken, body: data(" "), wantCode: http.StatusBadRequest},
		{name: "bad phone", method: http.MethodPost, path: "/v1/schools", token: ownerToken, body: []byte(`{"name": "Alpine", "phone": "call me"}`), wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, app, rejected)

	created := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/schools", ownerToken, data("Alpine Academy"))
	schoolID := created.Get("id").String()
	path := "/v1/schools/" + schoolID

	t.Run("create", func(t *testing.T) {
		assert.Equal(t, owner.ID, created.Get("owner_id").String())
		assert.Equal(t, "alpine-academy", created.Get("slug").String())
		assert.False(t, created.Get("verified").Bool())

		rec := do(app, http.MethodPost, "/v1/schools", ownerToken, data("Second School"))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: school.ErrAlreadyOwnsSchool.Error()})}, rec)
	})

	t.Run("public", func(t *testing.T) {
		bySlug := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/schools/alpine-academy", "")
		assert.Equal(t, schoolID, bySlug.Get("id").String())
		doOK(t, app, http.StatusOK, http.MethodGet, path, "")

		list := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/schools?resort="+rst.ID, "")
		assert.Equal(t, int64(1), list.Get("total_rows").Int())
	})

	t.Run("update", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPut, path, ownerToken, data("Alpine Academy AT"))
		assert.Equal(t, "Alpine Academy AT", res.Get("name").String())

		assert.Equal(t, http.StatusForbidden, do(app, http.MethodPut, path, getToken(t, app.Conf, heir), data("Hijacked")).Code)
	})

	t.Run("invite and accept", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		inv := doOK(t, app, http.StatusCreated, http.MethodPost, path+"/invitations", ownerToken, []byte(`{"email": "CLEO@test.com"}`))
		assert.Equal(t, school.InvitationPending, inv.Get("status").String())
		assert.Equal(t, coach.ID, inv.Get("instructor_id").String())
		assert.False(t, inv.Get("token").Exists())
		require.Len(t, emailsvc.SentMessages(), 1)

		dup := do(app, http.MethodPost, path+"/invitations", ownerToken, []byte(`{"email": "cleo@test.com"}`))
		assert.Equal(t, http.StatusConflict, dup.Code)

		token := invitationToken(t, app, schoolID, "cleo@test.com")
		wrongInvitee := getToken(t, app.Conf, testutil.CreateUser(t, app.UserRepo, "Ivan", "ivan@test.com", strongPwd, user.RoleInstructor, nil, true))
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodPost, "/v1/invitations/nope/accept", coachToken).Code)
		assert.Equal(t, http.StatusForbidden, do(app, http.MethodPost, "/v1/invitations/"+token+"/accept", wrongInvitee).Code)

		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/invitations/"+token+"/accept", coachToken)
		assert.Equal(t, school.InvitationAccepted, res.Get("status").String())
		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, "/v1/invitations/"+token+"/accept", coachToken).Code)

		members := doOK(t, app, http.StatusOK, http.MethodGet, path+"/members", "")
		require.Len(t, members.Array(), 1)
		assert.Equal(t, coach.ID, members.Get("0.id").String())

		again := do(app, http.MethodPost, path+"/invitations", ownerToken, []byte(`{"email": "cleo@test.com"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: school.ErrAlreadyMember.Error()})}, again)
	})

	t.Run("owners with members keep their role", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/me/role", ownerToken, []byte(`{"role": "client"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: transition.ErrSchoolHasMembers.Error()})}, rec)
	})

	t.Run("invite, decline and revoke", func(t *testing.T) {
		doOK(t, app, http.StatusCreated, http.MethodPost, path+"/invitations", ownerToken, []byte(`{"email": "ivan@test.com"}`))
		ivan := getToken(t, app.Conf, mustUserByEmail(t, app, "ivan@test.com"))
		token := invitationToken(t, app, schoolID, "ivan@test.com")
		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/invitations/"+token+"/decline", ivan)
		assert.NotEmpty(t, res.Get("success").String())

		// invitees without an account yet
		pending := doOK(t, app, http.StatusCreated, http.MethodPost, path+"/invitations", ownerToken, []byte(`{"email": "future@test.com"}`))
		assert.False(t, pending.Get("instructor_id").Exists())

		invs := doOK(t, app, http.StatusOK, http.MethodGet, path+"/invitations", ownerToken)
		assert.Len(t, invs.Array(), 3)

		revokePath := path + "/invitations/" + pending.Get("id").String()
		doOK(t, app, http.StatusOK, http.MethodDelete, revokePath, ownerToken)
		assert.Equal(t, http.StatusConflict, do(app, http.MethodDelete, revokePath, ownerToken).Code)
	})

	t.Run("leave and remove", func(t *testing.T) {
		doOK(t, app, http.StatusOK, http.MethodPost, "/v1/me/instructor/leave-school", coachToken)
		assert.Empty(t, doOK(t, app, http.StatusOK, http.MethodGet, path+"/members", "").Array())

		rec := do(app, http.MethodDelete, path+"/members/"+coach.ID, ownerToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: school.ErrMemberNotFound.Error()})}, rec)
	})

	t.Run("transfer ownership", func(t *testing.T) {
		bad := []httpTest{
			{name: "to self", body: []byte(`{"email": "olga@test.com"}`), wantCode: http.StatusBadRequest},
			{name: "to a client", body: []byte(`{"email": "client@test.com"}`), wantCode: http.StatusBadRequest},
			{name: "to nobody", body: []byte(`{"email": "ghost@test.com"}`), wantCode: http.StatusBadRequest},
		}
		for _, tt := range bad {
			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, do(app, http.MethodPost, path+"/transfer", ownerToken, tt.body))
			})
		}

		emailsvc.ClearSentMessages()
		res := doOK(t, app, http.StatusOK, http.MethodPost, path+"/transfer", ownerToken, []byte(`{"email": "hank@test.com"}`))
		assert.Equal(t, heir.ID, res.Get("owner_id").String())
		assert.Len(t, emailsvc.SentMessages(), 2)

		assert.Equal(t, http.StatusForbidden, do(app, http.MethodPut, path, ownerToken, data("Mine again")).Code)
	})
}

func mustUserByEmail(t *testing.T, app testutil.App, email string) user.User {
	t.Helper()
	usr, err := app.Users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return usr
}

func Test_schoolApi_expireInvitations(t *testing.T) {
	app := setup(t, func(conf *core.Config) { conf.Marketplace.InvitationTTL = -time.Minute })
	owner := testutil.CreateUser(t, app.UserRepo, "Olga Owner", "olga@test.com", strongPwd, user.RoleSchoolAdmin, nil, true)
	coachUser, _ := testutil.CreateInstructor(t, app, "Cleo Coach", "cleo@test.com", strongPwd)
	ownerToken := getToken(t, app.Conf, owner)

	created := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/schools", ownerToken, []byte(`{"name": "Short Notice"}`))
	schoolID := created.Get("id").String()
	doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/schools/"+schoolID+"/invitations", ownerToken, []byte(`{"email": "cleo@test.com"}`))
	token := invitationToken(t, app, schoolID, "cleo@test.com")

	rec := do(app, http.MethodPost, "/v1/invitations/"+token+"/accept", getToken(t, app.Conf, coachUser))
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: school.ErrInvitationExpired.Error()})}, rec)

	n, err := app.Jobs.RunJob(context.Background(), scheduler.JobExpireInvitations)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	invs := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/schools/"+schoolID+"/invitations", ownerToken)
	assert.Equal(t, school.InvitationExpired, invs.Get("0.status").String())
}
