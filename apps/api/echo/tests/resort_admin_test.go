package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/resort"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/services/email"
	"github.com/trezcool/slopeside/services/scheduler"
	"github.com/trezcool/slopeside/tests"
)

func payDeposit(t *testing.T, app testutil.App, depositID string) {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/v1/payments/webhook", marchallObj(t, booking.PaymentEvent{DepositID: depositID, ProviderRef: "pi_42"}))
	req.Header.Set("X-Payments-Secret", app.Conf.Marketplace.PaymentsWebhookSecret)
	app.Server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_resortApi(t *testing.T) {
	app := setup(t)
	open := testutil.CreateResort(t, app, "Chamonix", "FR")
	closed := testutil.CreateResort(t, app, "Les Arcs", "FR")
	_, err := app.Resorts.SetActive(context.Background(), "", closed.ID, false)
	require.NoError(t, err)
	client := testutil.CreateUser(t, app.UserRepo, "Client", "client@test.com", strongPwd, user.RoleClient, nil, true)
	token := getToken(t, app.Conf, client)

	t.Run("public listing", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/resorts", "")
		assert.Equal(t, int64(1), res.Get("total_rows").Int())
		assert.Equal(t, open.ID, res.Get("data.0.id").String())
		assert.Equal(t, "chamonix-fr", res.Get("data.0.slug").String())

		res = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/resorts?country=ch", "")
		assert.Equal(t, int64(0), res.Get("total_rows").Int())

		doOK(t, app, http.StatusOK, http.MethodGet, "/v1/resorts/"+open.ID, "")
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodGet, "/v1/resorts/"+closed.ID, "").Code)
	})

	t.Run("requests", func(t *testing.T) {
		tests := []httpTest{
			{name: "no token", body: []byte(`{"name": "Verbier", "country": "CH"}`), wantCode: http.StatusUnauthorized},
			{name: "bad country", token: token, body: []byte(`{"name": "Verbier", "country": "Switzerland"}`), wantCode: http.StatusBadRequest},
			{
				name:     "existing resort",
				token:    token,
				body:     []byte(`{"name": "Chamonix", "country": "fr"}`),
				wantCode: http.StatusConflict,
				wantData: marchallObj(t, httpErr{Error: resort.ErrResortExists.Error()}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, do(app, http.MethodPost, "/v1/resort-requests", tt.token, tt.body))
			})
		}

		res := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/resort-requests", token, []byte(`{"name": " Verbier ", "country": "ch", "region": "Valais"}`))
		assert.Equal(t, "Thanks! Your resort request will be reviewed by our team.", res.Get("success").String())
		assert.Equal(t, resort.StatusPending, res.Get("request.status").String())
		assert.Equal(t, "CH", res.Get("request.country").String())
		assert.Equal(t, client.ID, res.Get("request.requested_by").String())

		rec := do(app, http.MethodPost, "/v1/resort-requests", token, []byte(`{"name": "Verbier", "country": "CH"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: resort.ErrRequestExists.Error()})}, rec)
	})
}

func Test_adminApi_access(t *testing.T) {
	app := setup(t)
	client := testutil.CreateUser(t, app.UserRepo, "Client", "client@test.com", strongPwd, user.RoleClient, nil, true)
	suspended := testutil.CreateUser(t, app.UserRepo, "Mod", "mod@test.com", strongPwd, user.RoleClient, []string{user.StaffRoleModerator}, false)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "non-staff", token: getToken(t, app.Conf, client), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "suspended staff", token: getToken(t, app.Conf, suspended), wantCode: http.StatusForbidden},
	}
	for _, path := range []string{"/v1/admin/stats", "/v1/admin/audit", "/v1/admin/resort-requests", "/v1/admin/resorts"} {
		for _, tt := range tests {
			t.Run(path+" "+tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, do(app, http.MethodGet, path, tt.token))
			})
		}
	}
}

func Test_adminApi_resorts(t *testing.T) {
	app := setup(t)
	mod := testutil.CreateUser(t, app.UserRepo, "Mod", "mod@test.com", strongPwd, user.RoleClient, []string{user.StaffRoleModerator}, true)
	client := testutil.CreateUser(t, app.UserRepo, "Client", "client@test.com", strongPwd, user.RoleClient, nil, true)
	modToken := getToken(t, app.Conf, mod)
	clientToken := getToken(t, app.Conf, client)

	submit := func(name string) string {
		res := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/resort-requests", clientToken, []byte(`{"name": "`+name+`", "country": "AT"}`))
		return res.Get("request.id").String()
	}
	approveID, rejectID := submit("Ischgl"), submit("Nowhere Peak")

	t.Run("pending requests", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/resort-requests?status=pending", modToken)
		assert.Equal(t, int64(2), res.Get("total_rows").Int())
		stats := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/stats", modToken)
		assert.Equal(t, int64(2), stats.Get("pending_resort_requests").Int())
	})

	t.Run("approve", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/admin/resort-requests/"+approveID+"/approve", modToken, []byte(`{"note": "welcome"}`))
		assert.Equal(t, resort.StatusApproved, res.Get("status").String())
		assert.Equal(t, mod.ID, res.Get("reviewed_by").String())

		resortID := res.Get("resort_id").String()
		rst := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/resorts/"+resortID, "")
		assert.Equal(t, "Ischgl", rst.Get("name").String())

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, client.Email, sent[0].To[0].Address)

		rec := do(app, http.MethodPost, "/v1/admin/resort-requests/"+approveID+"/reject", modToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: resort.ErrAlreadyReviewed.Error()})}, rec)
	})

	t.Run("reject", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/admin/resort-requests/"+rejectID+"/reject", modToken, []byte(`{"note": " not a real resort "}`))
		assert.Equal(t, resort.StatusRejected, res.Get("status").String())
		assert.Equal(t, "not a real resort", res.Get("review_note").String())
		assert.False(t, res.Get("resort_id").Exists())

		assert.Equal(t, http.StatusNotFound, do(app, http.MethodPost, "/v1/admin/resort-requests/"+mod.ID+"/reject", modToken).Code)
	})

	var resortID string
	t.Run("create and deactivate", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(app, http.MethodPost, "/v1/admin/resorts", modToken, []byte(`{"name": "Lech"}`)).Code)

		res := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/admin/resorts", modToken, []byte(`{"name": "Lech", "country": "at"}`))
		resortID = res.Get("id").String()
		assert.True(t, res.Get("active").Bool())
		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, "/v1/admin/resorts", modToken, []byte(`{"name": "Lech", "country": "AT"}`)).Code)

		assert.Equal(t, http.StatusBadRequest, do(app, http.MethodPost, "/v1/admin/resorts/"+resortID+"/active", modToken, []byte(`{}`)).Code)
		res = doOK(t, app, http.StatusOK, http.MethodPost, "/v1/admin/resorts/"+resortID+"/active", modToken, []byte(`{"active": false}`))
		assert.False(t, res.Get("active").Bool())

		public := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/resorts", "")
		assert.Equal(t, int64(1), public.Get("total_rows").Int())
		all := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/resorts", modToken)
		assert.Equal(t, int64(2), all.Get("total_rows").Int())
	})

	t.Run("audit log", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/audit?entity_type="+audit.EntityResortRequest, modToken)
		assert.Equal(t, int64(2), res.Get("total_rows").Int())
		assert.Equal(t, audit.ActionResortRequestRejected, res.Get("data.0.action").String())
		assert.Equal(t, "not a real resort", res.Get("data.0.metadata.note").String())

		res = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/audit?entity_id="+resortID, modToken)
		require.Equal(t, int64(2), res.Get("total_rows").Int())
		assert.Equal(t, audit.ActionResortDeactivated, res.Get("data.0.action").String())
		assert.Equal(t, audit.ActionResortCreated, res.Get("data.1.action").String())
		assert.Equal(t, mod.ID, res.Get("data.1.actor_id").String())
	})

	t.Run("concurrent reviews", func(t *testing.T) {
		id := submit("Obergurgl")
		codes := make([]int, 6)
		concurrently(len(codes), func(i int) {
			action := "/approve"
			if i%2 == 1 {
				action = "/reject"
			}
			codes[i] = do(app, http.MethodPost, "/v1/admin/resort-requests/"+id+action, modToken).Code
		})

		reviewed := 0
		for _, code := range codes {
			if code == http.StatusOK {
				reviewed++
				continue
			}
			assert.Equal(t, http.StatusConflict, code)
		}
		assert.Equal(t, 1, reviewed)
	})
}

func Test_adminApi_moderation(t *testing.T) {
	f := newBookingFixture(t)
	app := f.app
	mod := testutil.CreateUser(t, app.UserRepo, "Mod", "mod@test.com", strongPwd, user.RoleClient, []string{user.StaffRoleModerator}, true)
	modToken := getToken(t, app.Conf, mod)

	t.Run("verify instructor", func(t *testing.T) {
		path := "/v1/admin/instructors/" + f.instructor.ID + "/verify"
		assert.Equal(t, http.StatusBadRequest, do(app, http.MethodPost, path, modToken, []byte(`{}`)).Code)

		res := doOK(t, app, http.StatusOK, http.MethodPost, path, modToken, []byte(`{"verified": true}`))
		assert.True(t, res.Get("verified").Bool())
		listed := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?verified=true", "")
		assert.Equal(t, int64(1), listed.Get("total_rows").Int())

		entries := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/audit?action="+audit.ActionInstructorVerified, modToken)
		assert.Equal(t, f.instructor.ID, entries.Get("data.0.entity_id").String())
	})

	t.Run("verify school", func(t *testing.T) {
		owner := testutil.CreateUser(t, app.UserRepo, "Olga", "olga@test.com", strongPwd, user.RoleSchoolAdmin, nil, true)
		sch, err := app.Schools.Create(context.Background(), owner, school.SchoolData{Name: "ESF Val"})
		require.NoError(t, err)

		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/admin/schools/"+sch.ID+"/verify", modToken, []byte(`{"verified": true}`))
		assert.True(t, res.Get("verified").Bool())
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodPost, "/v1/admin/schools/"+owner.ID+"/verify", modToken, []byte(`{"verified": true}`)).Code)
	})

	id := f.book(t, 3, 4)
	doOK(t, app, http.StatusOK, http.MethodPost, "/v1/bookings/"+id+"/accept", f.instructorToken)
	depositID := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/bookings/"+id+"/lead-fee", f.instructorToken).Get("id").String()

	t.Run("refund deposit", func(t *testing.T) {
		refund := "/v1/admin/deposits/" + depositID + "/refund"
		rec := do(app, http.MethodPost, refund, modToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: booking.ErrDepositNotPaid.Error()})}, rec)

		payDeposit(t, app, depositID)
		stats := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/stats", modToken)
		assert.Equal(t, int64(app.Conf.Marketplace.LeadFeeCents), stats.Get("paid_lead_fees_cents").Int())
		assert.Equal(t, int64(1), stats.Get("published_instructors").Int())
		assert.Equal(t, "EUR", stats.Get("currency").String())

		res := doOK(t, app, http.StatusOK, http.MethodPost, refund, modToken)
		assert.Equal(t, booking.DepositRefunded, res.Get("status").String())
		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, refund, modToken).Code)

		stats = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/admin/stats", modToken)
		assert.Equal(t, int64(0), stats.Get("paid_lead_fees_cents").Int())
		// refunds keep the contact visible
		doOK(t, app, http.StatusOK, http.MethodGet, "/v1/bookings/"+id+"/contact", f.instructorToken)
	})

	t.Run("hide review", func(t *testing.T) {
		f.backdate(t, id, 10)
		_, err := app.Jobs.RunJob(context.Background(), scheduler.JobCompleteBookings)
		require.NoError(t, err)
		reviewID := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/bookings/"+id+"/review", f.clientToken, []byte(`{"rating": 2}`)).Get("id").String()
		hide := "/v1/admin/reviews/" + reviewID + "/hidden"

		res := doOK(t, app, http.StatusOK, http.MethodPost, hide, modToken, []byte(`{"hidden": true}`))
		assert.True(t, res.Get("hidden").Bool())
		profile := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID, "")
		assert.Equal(t, int64(0), profile.Get("review_count").Int())
		reviews := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID+"/reviews", "")
		assert.Equal(t, int64(0), reviews.Get("total_rows").Int())

		doOK(t, app, http.StatusOK, http.MethodPost, hide, modToken, []byte(`{"hidden": false}`))
		profile = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID, "")
		assert.Equal(t, int64(1), profile.Get("review_count").Int())
		assert.Equal(t, 2.0, profile.Get("avg_rating").Float())
	})
}
