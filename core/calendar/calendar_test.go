package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/tests"
)

func day(in int) time.Time {
	return core.Day(core.NowFunc()).AddDate(0, 0, in)
}

func TestParseDates(t *testing.T) {
	dates, err := calendar.ParseDates([]string{"2026-12-24", " 2026-12-24 ", "2026-12-25"})
	require.NoError(t, err)
	assert.Len(t, dates, 2)

	_, err = calendar.ParseDates([]string{"24/12/2026"})
	assert.Equal(t, calendar.ErrInvalidDate, err)
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, calendar.CheckRange(day(0), day(0)))
	assert.NoError(t, calendar.CheckRange(day(0), day(365)))
	assert.Equal(t, calendar.ErrRangeTooLong, calendar.CheckRange(day(0), day(366)))
	assert.Equal(t, calendar.ErrInvalidRange, calendar.CheckRange(day(1), day(0)))
}

func TestService_bookingHolds(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	_, ins := testutil.CreateInstructor(t, app, "Ivy", "ivy@test.com", "")

	require.NoError(t, app.Calendar.HoldTentative(ctx, ins.ID, "booking-1", day(3), day(5)))

	busy, err := app.Calendar.HasConflict(ctx, ins.ID, day(4), day(4))
	require.NoError(t, err)
	assert.False(t, busy, "tentative holds do not block other requests")

	blocks, err := app.Calendar.Range(ctx, ins.ID, day(0), day(10))
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	for _, b := range blocks {
		assert.Equal(t, calendar.KindTentative, b.Kind)
		assert.Equal(t, "booking-1", *b.BookingID)
	}

	require.NoError(t, app.Calendar.Confirm(ctx, "booking-1"))
	busy, err = app.Calendar.HasConflict(ctx, ins.ID, day(5), day(7))
	require.NoError(t, err)
	assert.True(t, busy)
	busy, err = app.Calendar.HasConflict(ctx, ins.ID, day(6), day(7))
	require.NoError(t, err)
	assert.False(t, busy)

	require.NoError(t, app.Calendar.Release(ctx, "booking-1"))
	blocks, err = app.Calendar.Range(ctx, ins.ID, day(0), day(10))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestService_unavailableDays(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	usr, ins := testutil.CreateInstructor(t, app, "Ivy", "ivy@test.com", "")
	other, _ := testutil.CreateInstructor(t, app, "Bo", "bo@test.com", "")
	date := func(in int) string { return day(in).Format(calendar.DateLayout) }

	_, err := app.Calendar.AddUnavailable(ctx, usr.ID, calendar.NewUnavailable{Dates: []string{date(-1)}})
	assert.Error(t, err)

	require.NoError(t, app.Calendar.HoldTentative(ctx, ins.ID, "booking-1", day(2), day(2)))
	added, err := app.Calendar.AddUnavailable(ctx, usr.ID, calendar.NewUnavailable{Dates: []string{date(1), date(2), date(1)}, Note: " family "})
	require.NoError(t, err)
	require.Len(t, added, 1, "held and duplicate days are skipped")
	assert.Equal(t, "family", added[0].Note)

	busy, err := app.Calendar.HasConflict(ctx, ins.ID, day(1), day(1))
	require.NoError(t, err)
	assert.True(t, busy)

	assert.Equal(t, calendar.ErrBlockNotFound, app.Calendar.RemoveBlock(ctx, other.ID, added[0].ID))

	held, err := app.Calendar.Range(ctx, ins.ID, day(2), day(2))
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, calendar.ErrBookingBlock, app.Calendar.RemoveBlock(ctx, usr.ID, held[0].ID))

	require.NoError(t, app.Calendar.RemoveBlock(ctx, usr.ID, added[0].ID))
	public, err := app.Calendar.PublicRange(ctx, ins.ID, day(0), day(5))
	require.NoError(t, err)
	assert.Equal(t, []calendar.PublicBlock{{Date: date(2), Kind: calendar.KindTentative}}, public)
}
