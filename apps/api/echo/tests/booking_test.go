package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/services/email"
	"github.com/trezcool/slopeside/services/scheduler"
	"github.com/trezcool/slopeside/tests"
)

type bookingFixture struct {
	app             testutil.App
	resortID        string
	instructor      instructor.Instructor
	instructorToken string
	client          user.User
	clientToken     string
}

func newBookingFixture(t *testing.T) bookingFixture {
	app := setup(t)
	rst := testutil.CreateResort(t, app, "Val d'Isere", "FR")
	insUser, ins := testutil.CreatePublishedInstructor(t, app, "Ivy Ice", "ivy@test.com", 5000, []string{instructor.SportSki}, rst.ID)
	client := testutil.CreateUser(t, app.UserRepo, "Carl Client", "carl@test.com", strongPwd, user.RoleClient, nil, true)
	client.Phone = "+33600000000"
	client, err := app.UserRepo.UpdateUser(context.Background(), client)
	require.NoError(t, err)

	return bookingFixture{
		app:             app,
		resortID:        rst.ID,
		instructor:      ins,
		instructorToken: getToken(t, app.Conf, insUser),
		client:          client,
		clientToken:     getToken(t, app.Conf, client),
	}
}

func (f bookingFixture) request(t *testing.T, startIn, endIn int) booking.NewBooking {
	return booking.NewBooking{
		InstructorID: f.instructor.ID,
		ResortID:     f.resortID,
		Sport:        instructor.SportSki,
		StartDate:    testutil.FutureDate(startIn),
		EndDate:      testutil.FutureDate(endIn),
		HoursPerDay:  2,
		GroupSize:    1,
		SkillLevel:   booking.SkillIntermediate,
		Message:      "First time off-piste",
	}
}

// book creates a pending booking through the API.
func (f bookingFixture) book(t *testing.T, startIn, endIn int) string {
	t.Helper()
	res := doOK(t, f.app, http.StatusCreated, http.MethodPost, "/v1/bookings", f.clientToken, marchallObj(t, f.request(t, startIn, endIn)))
	return res.Get("id").String()
}

// backdate moves a booking into the past, keeping its length.
func (f bookingFixture) backdate(t *testing.T, id string, days int) {
	t.Helper()
	ctx := context.Background()
	b, err := f.app.BookingRepo.GetBooking(ctx, id)
	require.NoError(t, err)
	b.StartDate = b.StartDate.AddDate(0, 0, -days)
	b.EndDate = b.EndDate.AddDate(0, 0, -days)
	b.CreatedAt = b.CreatedAt.AddDate(0, 0, -days)
	_, err = f.app.BookingRepo.UpdateBooking(ctx, b, b.Status)
	require.NoError(t, err)
}

func Test_bookingApi_request(t *testing.T) {
	f := newBookingFixture(t)
	otherResort := testutil.CreateResort(t, f.app, "Tignes", "FR")

	withReq := func(change func(nb *booking.NewBooking)) []byte {
		nb := f.request(t, 3, 4)
		change(&nb)
		return marchallObj(t, nb)
	}

	tests := []httpTest{
		{name: "instructors cannot book", token: f.instructorToken, body: withReq(func(*booking.NewBooking) {}), wantCode: http.StatusForbidden},
		{name: "missing fields", token: f.clientToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name:     "sport not offered",
			token:    f.clientToken,
			body:     withReq(func(nb *booking.NewBooking) { nb.Sport = instructor.SportSnowboard }),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "resort not served",
			token:    f.clientToken,
			body:     withReq(func(nb *booking.NewBooking) { nb.ResortID = otherResort.ID }),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "in the past",
			token:    f.clientToken,
			body:     withReq(func(nb *booking.NewBooking) { nb.StartDate = testutil.FutureDate(-2) }),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown instructor",
			token:    f.clientToken,
			body:     withReq(func(nb *booking.NewBooking) { nb.InstructorID = f.client.ID }),
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(f.app, http.MethodPost, "/v1/bookings", tt.token, tt.body))
		})
	}

	t.Run("success", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		res := doOK(t, f.app, http.StatusCreated, http.MethodPost, "/v1/bookings", f.clientToken, marchallObj(t, f.request(t, 3, 4)))

		assert.Equal(t, booking.StatusPending, res.Get("status").String())
		assert.Equal(t, int64(20000), res.Get("quoted_cents").Int(), "2 days x 2h x 50.00")
		assert.Equal(t, "EUR", res.Get("currency").String())
		assert.False(t, res.Get("contact_unlocked").Bool())

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 2, "request & receipt")
		assert.Equal(t, "ivy@test.com", sent[0].To[0].Address)
		assert.Equal(t, f.client.Email, sent[1].To[0].Address)

		days := doOK(t, f.app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID+"/calendar", "")
		require.Len(t, days.Array(), 2)
		assert.Equal(t, calendar.KindTentative, days.Get("0.kind").String())
	})

	t.Run("tentative days can still be requested", func(t *testing.T) {
		doOK(t, f.app, http.StatusCreated, http.MethodPost, "/v1/bookings", f.clientToken, marchallObj(t, f.request(t, 4, 5)))
	})
}

func Test_bookingApi_visibility(t *testing.T) {
	f := newBookingFixture(t)
	id := f.book(t, 3, 3)
	stranger := testutil.CreateUser(t, f.app.UserRepo, "Stranger", "stranger@test.com", strongPwd, user.RoleClient, nil, true)
	staff := testutil.CreateUser(t, f.app.UserRepo, "Staff", "staff@test.com", strongPwd, user.RoleClient, []string{user.StaffRoleModerator}, true)

	tests := []httpTest{
		{name: "client", token: f.clientToken, wantCode: http.StatusOK},
		{name: "instructor", token: f.instructorToken, wantCode: http.StatusOK},
		{name: "staff", token: getToken(t, f.app.Conf, staff), wantCode: http.StatusOK},
		{name: "stranger", token: getToken(t, f.app.Conf, stranger), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(f.app, http.MethodGet, "/v1/bookings/"+id, tt.token))
		})
	}

	t.Run("lists", func(t *testing.T) {
		for _, token := range []string{f.clientToken, f.instructorToken} {
			res := doOK(t, f.app, http.StatusOK, http.MethodGet, "/v1/bookings", token)
			assert.Equal(t, int64(1), res.Get("total_rows").Int())
			assert.Equal(t, id, res.Get("data.0.id").String())
		}
		res := doOK(t, f.app, http.StatusOK, http.MethodGet, "/v1/bookings?status=accepted", f.clientToken)
		assert.Equal(t, int64(0), res.Get("total_rows").Int())
		res = doOK(t, f.app, http.StatusOK, http.MethodGet, "/v1/bookings", getToken(t, f.app.Conf, stranger))
		assert.Equal(t, int64(0), res.Get("total_rows").Int())
	})
}

func Test_bookingApi_lifecycle(t *testing.T) {
	f := newBookingFixture(t)
	app := f.app
	id := f.book(t, 3, 4)
	path := "/v1/bookings/" + id

	t.Run("contact is locked", func(t *testing.T) {
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: booking.ErrContactLocked.Error()}),
		}, do(app, http.MethodGet, path+"/contact", f.instructorToken))
	})

	var depositID string
	t.Run("lead fee", func(t *testing.T) {
		res := doOK(t, app, http.StatusCreated, http.MethodPost, path+"/lead-fee", f.instructorToken)
		depositID = res.Get("id").String()
		assert.Equal(t, booking.DepositPending, res.Get("status").String())
		assert.Equal(t, int64(app.Conf.Marketplace.LeadFeeCents), res.Get("amount_cents").Int())

		again := doOK(t, app, http.StatusCreated, http.MethodPost, path+"/lead-fee", f.instructorToken)
		assert.Equal(t, depositID, again.Get("id").String(), "the open deposit is reused")
	})

	t.Run("payments webhook", func(t *testing.T) {
		event := marchallObj(t, booking.PaymentEvent{DepositID: depositID, ProviderRef: "pi_123"})
		webhook := func(secret string) *httptest.ResponseRecorder {
			req, rec := newRequest(http.MethodPost, "/v1/payments/webhook", event)
			if secret != "" {
				req.Header.Set("X-Payments-Secret", secret)
			}
			app.Server.ServeHTTP(rec, req)
			return rec
		}

		wrongSecret := marchallObj(t, httpErr{Error: "invalid webhook secret"})
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: wrongSecret}, webhook(""))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: wrongSecret}, webhook("guess"))

		emailsvc.ClearSentMessages()
		rec := webhook(app.Conf.Marketplace.PaymentsWebhookSecret)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res := jsonResult(rec)
		assert.Equal(t, booking.DepositPaid, res.Get("status").String())
		assert.Equal(t, "pi_123", res.Get("provider_ref").String())
		assert.Len(t, emailsvc.SentMessages(), 1, "the instructor gets the contact details")

		// providers retry deliveries
		assert.Equal(t, http.StatusOK, webhook(app.Conf.Marketplace.PaymentsWebhookSecret).Code)
		assert.Len(t, emailsvc.SentMessages(), 1)
	})

	t.Run("contact is unlocked", func(t *testing.T) {
		want := booking.Contact{Name: f.client.Name, Email: f.client.Email, Phone: f.client.Phone}
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, want)}, do(app, http.MethodGet, path+"/contact", f.instructorToken))
	})

	t.Run("accept", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPost, path+"/accept", f.instructorToken)
		assert.Equal(t, booking.StatusAccepted, res.Get("status").String())
		assert.True(t, res.Get("contact_unlocked").Bool())

		days := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID+"/calendar", "")
		assert.JSONEq(t, `[
			{"date": "`+testutil.FutureDate(3)+`", "kind": "confirmed"},
			{"date": "`+testutil.FutureDate(4)+`", "kind": "confirmed"}
		]`, days.Raw)

		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, path+"/accept", f.instructorToken).Code)
	})

	t.Run("confirmed days are unavailable", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/bookings", f.clientToken, marchallObj(t, f.request(t, 4, 6)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: booking.ErrDatesUnavailable.Error()}),
		}, rec)
	})

	t.Run("not reviewable before completion", func(t *testing.T) {
		rec := do(app, http.MethodPost, path+"/review", f.clientToken, []byte(`{"rating": 5}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		_, err := app.Bookings.Complete(context.Background(), id)
		assert.Equal(t, booking.ErrNotFinished, err)
	})

	t.Run("completed by the scheduler", func(t *testing.T) {
		f.backdate(t, id, 10)
		n, err := app.Jobs.RunJob(context.Background(), scheduler.JobCompleteBookings)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		res := doOK(t, app, http.StatusOK, http.MethodGet, path, f.clientToken)
		assert.Equal(t, booking.StatusCompleted, res.Get("status").String())
		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, path+"/cancel", f.clientToken).Code)
	})

	var reviewID string
	t.Run("review", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(app, http.MethodPost, path+"/review", f.clientToken, []byte(`{"rating": 6}`)).Code)

		res := doOK(t, app, http.StatusCreated, http.MethodPost, path+"/review", f.clientToken, []byte(`{"rating": 4, "comment": "Great couloir day"}`))
		reviewID = res.Get("id").String()
		assert.Equal(t, f.instructor.ID, res.Get("instructor_id").String())

		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, path+"/review", f.clientToken, []byte(`{"rating": 5}`)).Code)

		profile := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID, "")
		assert.Equal(t, 4.0, profile.Get("avg_rating").Float())
		assert.Equal(t, int64(1), profile.Get("review_count").Int())

		reviews := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID+"/reviews", "")
		assert.Equal(t, int64(1), reviews.Get("total_rows").Int())
		assert.Equal(t, "Great couloir day", reviews.Get("data.0.comment").String())
	})

	t.Run("delete review", func(t *testing.T) {
		other := testutil.CreateUser(t, app.UserRepo, "Other", "other@test.com", strongPwd, user.RoleClient, nil, true)
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodDelete, "/v1/reviews/"+reviewID, getToken(t, app.Conf, other)).Code)

		require.Equal(t, http.StatusNoContent, do(app, http.MethodDelete, "/v1/reviews/"+reviewID, f.clientToken).Code)
		profile := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID, "")
		assert.Equal(t, int64(0), profile.Get("review_count").Int())
	})
}

func Test_bookingApi_declineAndCancel(t *testing.T) {
	f := newBookingFixture(t)
	app := f.app
	declined := f.book(t, 3, 3)
	cancelled := f.book(t, 5, 5)

	t.Run("decline", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/bookings/"+declined+"/decline", f.instructorToken, []byte(`{"reason": " fully booked "}`))
		assert.Equal(t, booking.StatusDeclined, res.Get("status").String())
		assert.Equal(t, "fully booked", res.Get("decline_reason").String())

		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, "/v1/bookings/"+declined+"/accept", f.instructorToken).Code)
		assert.Equal(t, http.StatusConflict, do(app, http.MethodPost, "/v1/bookings/"+declined+"/lead-fee", f.instructorToken).Code)
	})

	t.Run("only the client cancels", func(t *testing.T) {
		other := testutil.CreateUser(t, app.UserRepo, "Other", "other@test.com", strongPwd, user.RoleClient, nil, true)
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodPost, "/v1/bookings/"+cancelled+"/cancel", getToken(t, app.Conf, other)).Code)
		assert.Equal(t, http.StatusForbidden, do(app, http.MethodPost, "/v1/bookings/"+cancelled+"/cancel", f.instructorToken).Code)
	})

	t.Run("cancel frees the days", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/bookings/"+cancelled+"/cancel", f.clientToken)
		assert.Equal(t, booking.StatusCancelled, res.Get("status").String())

		days := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID+"/calendar", "")
		assert.Empty(t, days.Array())
	})
}

func Test_bookingApi_expireStale(t *testing.T) {
	f := newBookingFixture(t)
	fresh := f.book(t, 20, 20)
	stale := f.book(t, 30, 30)

	ctx := context.Background()
	b, err := f.app.BookingRepo.GetBooking(ctx, stale)
	require.NoError(t, err)
	b.CreatedAt = core.NowFunc().Add(-f.app.Conf.Marketplace.BookingRequestTTL - time.Hour)
	_, err = f.app.BookingRepo.UpdateBooking(ctx, b, b.Status)
	require.NoError(t, err)

	n, err := f.app.Jobs.RunJob(ctx, scheduler.JobExpireBookings)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id, want := range map[string]string{fresh: booking.StatusPending, stale: booking.StatusExpired} {
		res := doOK(t, f.app, http.StatusOK, http.MethodGet, "/v1/bookings/"+id, f.clientToken)
		assert.Equal(t, want, res.Get("status").String(), id)
	}
}

// concurrently runs fn n times at once and waits for every call.
func concurrently(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func Test_bookingApi_concurrentTransitions(t *testing.T) {
	const n = 8
	f := newBookingFixture(t)
	app := f.app
	ctx := context.Background()

	t.Run("one response wins", func(t *testing.T) {
		id := f.book(t, 3, 4)
		codes := make([]int, n)
		concurrently(n, func(i int) {
			action := "/accept"
			if i%2 == 1 {
				action = "/decline"
			}
			codes[i] = do(app, http.MethodPost, "/v1/bookings/"+id+action, f.instructorToken).Code
		})

		var won []int
		for i, code := range codes {
			if code == http.StatusOK {
				won = append(won, i)
				continue
			}
			assert.Equal(t, http.StatusConflict, code)
		}
		require.Len(t, won, 1)

		b, err := app.BookingRepo.GetBooking(ctx, id)
		require.NoError(t, err)
		want := booking.StatusAccepted
		if won[0]%2 == 1 {
			want = booking.StatusDeclined
		}
		assert.Equal(t, want, b.Status)
	})

	t.Run("cancel is never overwritten by accept", func(t *testing.T) {
		id := f.book(t, 8, 9)
		codes := make([]int, 2)
		concurrently(2, func(i int) {
			if i == 0 {
				codes[i] = do(app, http.MethodPost, "/v1/bookings/"+id+"/accept", f.instructorToken).Code
				return
			}
			codes[i] = do(app, http.MethodPost, "/v1/bookings/"+id+"/cancel", f.clientToken).Code
		})

		assert.Equal(t, http.StatusOK, codes[1])
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, codes[0])

		b, err := app.BookingRepo.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCancelled, b.Status)
		days := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+f.instructor.ID+"/calendar", "")
		assert.NotContains(t, days.Raw, testutil.FutureDate(8))
	})

	id := f.book(t, 12, 12)
	var depositID string
	t.Run("a single open lead fee", func(t *testing.T) {
		ids := make([]string, n)
		concurrently(n, func(i int) {
			dep, err := app.Bookings.RequestLeadFee(ctx, f.instructor.UserID, id)
			if assert.NoError(t, err) {
				ids[i] = dep.ID
			}
		})
		depositID = ids[0]
		require.NotEmpty(t, depositID)
		for _, got := range ids {
			assert.Equal(t, depositID, got)
		}
	})

	t.Run("confirmations notify once", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		concurrently(n, func(int) {
			dep, err := app.Bookings.ConfirmDeposit(ctx, depositID, "pi_race")
			if assert.NoError(t, err) {
				assert.Equal(t, booking.DepositPaid, dep.Status)
			}
		})
		assert.Len(t, emailsvc.SentMessages(), 1)
	})

	t.Run("one refund", func(t *testing.T) {
		staff := testutil.CreateUser(t, app.UserRepo, "Staff", "staff@test.com", strongPwd, user.RoleClient, []string{user.StaffRoleAdmin}, true)
		errs := make([]error, n)
		concurrently(n, func(i int) {
			_, errs[i] = app.Bookings.RefundDeposit(ctx, staff.ID, depositID)
		})

		refunded := 0
		for _, err := range errs {
			if err == nil {
				refunded++
				continue
			}
			assert.Equal(t, booking.ErrDepositNotPaid, err)
		}
		assert.Equal(t, 1, refunded)

		_, err := app.Bookings.ConfirmDeposit(ctx, depositID, "pi_late")
		assert.Equal(t, booking.ErrDepositRefunded, err)
	})
}
