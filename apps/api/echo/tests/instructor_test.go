package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/pricing"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/tests"
)

func Test_instructorApi_directory(t *testing.T) {
	app := setup(t)
	chamonix := testutil.CreateResort(t, app, "Chamonix", "FR")
	zermatt := testutil.CreateResort(t, app, "Zermatt", "CH")

	_, skier := testutil.CreatePublishedInstructor(t, app, "Anna Alpine", "anna@test.com", 4000, []string{instructor.SportSki}, chamonix.ID)
	_, boarder := testutil.CreatePublishedInstructor(t, app, "Bo Board", "bo@test.com", 6000, []string{instructor.SportSnowboard}, zermatt.ID, chamonix.ID)
	_, draft := testutil.CreateInstructor(t, app, "Dee Draft", "dee@test.com", "")

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "all published", query: "?ordering=display_name", wantIDs: []string{skier.ID, boarder.ID}},
		{name: "by sport", query: "?sport=SNOWBOARD", wantIDs: []string{boarder.ID}},
		{name: "by resort", query: "?resort=" + zermatt.ID, wantIDs: []string{boarder.ID}},
		{name: "by name", query: "?search=anna", wantIDs: []string{skier.ID}},
		{name: "verified only", query: "?verified=true", wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors"+tt.query, "")
			got := make([]string, 0)
			for _, id := range res.Get("data.#.id").Array() {
				got = append(got, id.String())
			}
			assert.Equal(t, tt.wantIDs, got)
			assert.Equal(t, int64(len(tt.wantIDs)), res.Get("total_rows").Int())
		})
	}

	t.Run("unpublishing drops the cached listing", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?ordering=display_name", "")
		require.Len(t, res.Get("data").Array(), 2)

		doOK(t, app, http.StatusOK, http.MethodPost, "/v1/me/instructor/unpublish", getToken(t, app.Conf, mustUser(t, app, boarder.UserID)))

		res = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?ordering=display_name", "")
		require.Len(t, res.Get("data").Array(), 1)
		assert.Equal(t, skier.ID, res.Get("data.0.id").String())
	})

	t.Run("suspending the instructor drops the cached listing", func(t *testing.T) {
		require.True(t, app.Conf.Redis.DirectoryTTL > 0, "directory cache must be on")
		mod := testutil.CreateUser(t, app.UserRepo, "Mod", "mod@test.com", "", user.RoleClient, []string{user.StaffRoleModerator}, true)
		modToken := getToken(t, app.Conf, mod)

		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?sport=ski", "")
		require.Len(t, res.Get("data").Array(), 1)

		path := "/v1/admin/users/" + skier.UserID + "/active"
		doOK(t, app, http.StatusOK, http.MethodPost, path, modToken, []byte(`{"active": false}`))
		res = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?sport=ski", "")
		assert.Empty(t, res.Get("data").Array())

		doOK(t, app, http.StatusOK, http.MethodPost, path, modToken, []byte(`{"active": true}`))
		res = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?sport=ski", "")
		assert.Len(t, res.Get("data").Array(), 1)
	})

	t.Run("huge page number returns an empty page", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors?page=92233720368547760", "")
		assert.Empty(t, res.Get("data").Array())
		assert.Equal(t, int64(core.MaxPage), res.Get("current_page").Int())
	})

	retrieval := []httpTest{
		{name: "by slug", path: "/v1/instructors/" + skier.Slug, wantCode: http.StatusOK, wantData: marchallObj(t, skier)},
		{name: "by id", path: "/v1/instructors/" + skier.ID, wantCode: http.StatusOK, wantData: marchallObj(t, skier)},
		{name: "unpublished", path: "/v1/instructors/" + draft.ID, wantCode: http.StatusNotFound},
		{name: "unknown slug", path: "/v1/instructors/nobody-here", wantCode: http.StatusNotFound},
	}
	for _, tt := range retrieval {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, http.MethodGet, tt.path, ""))
		})
	}

	t.Run("public pricing", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+skier.ID+"/pricing", "")
		require.Len(t, res.Array(), 1)
		assert.Equal(t, pricing.KindBaseHourly, res.Get("0.kind").String())
		assert.Equal(t, int64(4000), res.Get("0.amount_cents").Int())
	})
}

func mustUser(t *testing.T, app testutil.App, id string) user.User {
	t.Helper()
	usr, err := app.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return usr
}

func Test_instructorApi_quote(t *testing.T) {
	app := setup(t)
	rst := testutil.CreateResort(t, app, "Verbier", "CH")
	usr, ins := testutil.CreatePublishedInstructor(t, app, "Quinn Quote", "quinn@test.com", 4000, []string{instructor.SportSki}, rst.ID)
	token := getToken(t, app.Conf, usr)

	doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/me/instructor/pricing", token,
		marchallObj(t, pricing.NewRule{Kind: pricing.KindMultiDay, Percent: 10, MinDays: 2}))

	quote := func(start, end string, hours, group int) []byte {
		return marchallObj(t, pricing.QuoteRequest{StartDate: start, EndDate: end, HoursPerDay: hours, GroupSize: group})
	}
	start, end := testutil.FutureDate(10), testutil.FutureDate(11)

	tests := []httpTest{
		{name: "end before start", body: quote(end, start, 3, 1), wantCode: http.StatusBadRequest},
		{name: "too many hours", body: quote(start, end, 9, 1), wantCode: http.StatusBadRequest},
		{name: "bad date", body: quote("next monday", end, 3, 1), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(app, http.MethodPost, "/v1/instructors/"+ins.ID+"/quote", "", tt.body))
		})
	}

	t.Run("two days with a multi-day discount", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPost, "/v1/instructors/"+ins.ID+"/quote", "", quote(start, end, 3, 1))

		assert.Equal(t, int64(2), res.Get("days").Int())
		assert.Equal(t, "EUR", res.Get("currency").String())
		assert.Equal(t, int64(24000), res.Get("subtotal_cents").Int())
		assert.Equal(t, int64(2400), res.Get("discount_cents").Int())
		assert.Equal(t, int64(21600), res.Get("total_cents").Int())
		assert.Equal(t, []string{pricing.LineBase, pricing.KindMultiDay}, []string{res.Get("lines.0.kind").String(), res.Get("lines.1.kind").String()})
	})

	t.Run("unknown instructor", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/instructors/"+usr.ID+"/quote", "", quote(start, end, 3, 1))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_instructorApi_selfService(t *testing.T) {
	app := setup(t)
	rst := testutil.CreateResort(t, app, "Les Arcs", "FR")
	usr, _ := testutil.CreateInstructor(t, app, "Sam Slope", "sam@test.com", strongPwd)
	client := testutil.CreateUser(t, app.UserRepo, "Client", "client@test.com", strongPwd, user.RoleClient, nil, true)
	token := getToken(t, app.Conf, usr)

	rejected := []httpTest{
		{name: "no token", method: http.MethodGet, path: "/v1/me/instructor", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "clients", method: http.MethodGet, path: "/v1/me/instructor", token: getToken(t, app.Conf, client), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "unknown sport", method: http.MethodPut, path: "/v1/me/instructor", token: token, body: []byte(`{"sports": ["sledge"]}`), wantCode: http.StatusBadRequest},
		{name: "unknown resort", method: http.MethodPut, path: "/v1/me/instructor", token: token, body: []byte(`{"resort_ids": ["1d5e8f4c-0c5e-4f5e-9c7e-6b1f0f0a0b0c"]}`), wantCode: http.StatusBadRequest},
		{name: "free lessons", method: http.MethodPost, path: "/v1/me/instructor/pricing", token: token, body: []byte(`{"kind": "base_hourly", "amount_cents": 0}`), wantCode: http.StatusBadRequest},
		{name: "unknown rule kind", method: http.MethodPost, path: "/v1/me/instructor/pricing", token: token, body: []byte(`{"kind": "tip"}`), wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, app, rejected)

	t.Run("incomplete profiles cannot be published", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/me/instructor/publish", token)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		res := jsonResult(rec)
		for _, field := range []string{"sports", "resort_ids", "pricing"} {
			assert.True(t, res.Get(field).Exists(), "missing %q error", field)
		}
	})

	t.Run("complete and publish", func(t *testing.T) {
		res := doOK(t, app, http.StatusOK, http.MethodPut, "/v1/me/instructor", token, marchallObj(t, map[string]interface{}{
			"bio":        "Off-piste all day",
			"sports":     []string{"ski", "Freeride", "ski"},
			"languages":  []string{"en", "fr"},
			"resort_ids": []string{rst.ID},
		}))
		assert.Equal(t, `["ski","freeride"]`, res.Get("sports").Raw)

		rule := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/me/instructor/pricing", token, []byte(`{"kind": "base_hourly", "amount_cents": 5000}`))
		assert.True(t, rule.Get("active").Bool())

		res = doOK(t, app, http.StatusOK, http.MethodPost, "/v1/me/instructor/publish", token)
		assert.True(t, res.Get("published").Bool())

		// a new base rate replaces the previous one
		doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/me/instructor/pricing", token, []byte(`{"kind": "base_hourly", "amount_cents": 5500}`))
		rules := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/me/instructor/pricing", token)
		active := 0
		for _, r := range rules.Array() {
			if r.Get("active").Bool() {
				active++
				assert.Equal(t, int64(5500), r.Get("amount_cents").Int())
			}
		}
		assert.Equal(t, 1, active)
	})

	t.Run("pricing rules", func(t *testing.T) {
		rule := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/me/instructor/pricing", token, []byte(`{"kind": "duration_tier", "percent": 5, "min_hours": 4}`))
		path := "/v1/me/instructor/pricing/" + rule.Get("id").String()

		res := doOK(t, app, http.StatusOK, http.MethodPut, path, token, []byte(`{"percent": 15, "min_hours": 5}`))
		assert.Equal(t, int64(15), res.Get("percent").Int())
		assert.Equal(t, pricing.KindDurationTier, res.Get("kind").String())

		require.Equal(t, http.StatusNoContent, do(app, http.MethodDelete, path, token).Code)
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodDelete, path, token).Code)
	})

	t.Run("calendar", func(t *testing.T) {
		past := marchallObj(t, calendar.NewUnavailable{Dates: []string{testutil.FutureDate(-1)}})
		assert.Equal(t, http.StatusBadRequest, do(app, http.MethodPost, "/v1/me/instructor/calendar", token, past).Code)

		day := testutil.FutureDate(5)
		body := marchallObj(t, calendar.NewUnavailable{Dates: []string{day, day}, Note: "avalanche course"})
		blocks := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/me/instructor/calendar", token, body)
		require.Len(t, blocks.Array(), 1)
		assert.Equal(t, calendar.KindUnavailable, blocks.Get("0.kind").String())

		// adding the same day again is a no-op
		again := doOK(t, app, http.StatusCreated, http.MethodPost, "/v1/me/instructor/calendar", token, body)
		assert.Empty(t, again.Array())

		ins, err := app.Instructors.GetByUserID(context.Background(), usr.ID)
		require.NoError(t, err)
		public := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+ins.ID+"/calendar", "")
		assert.JSONEq(t, `[{"date": "`+day+`", "kind": "unavailable"}]`, public.Raw)

		own := doOK(t, app, http.StatusOK, http.MethodGet, "/v1/me/instructor/calendar?from="+testutil.FutureDate(1)+"&to="+testutil.FutureDate(4), token)
		assert.Empty(t, own.Array(), "outside of the range")

		blockPath := "/v1/me/instructor/calendar/" + blocks.Get("0.id").String()
		require.Equal(t, http.StatusNoContent, do(app, http.MethodDelete, blockPath, token).Code)
		public = doOK(t, app, http.StatusOK, http.MethodGet, "/v1/instructors/"+ins.ID+"/calendar", "")
		assert.Empty(t, public.Array())
	})

	t.Run("not in a school", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/me/instructor/leave-school", token)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
