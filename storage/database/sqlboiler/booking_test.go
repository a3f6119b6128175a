package boiledrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core/booking"
)

const bookingID = "9b2f3c4d-5e6f-4a1b-8c2d-3e4f5a6b7c8d"

func TestBookingRepository_GetBooking(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2026, 2, 14, 15, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(bookingMapping.columns).AddRow(
		bookingID, "client-1", "instructor-1", "resort-1", "ski", start, start.AddDate(0, 0, 2),
		3, 2, "beginner", "first time", booking.StatusPending, "",
		45000, "EUR", false, testTime, testTime, nil,
	)
	mock.ExpectQuery(`SELECT .* FROM "bookings" WHERE \("bookings"\."id" = \$1\)`).
		WithArgs(bookingID).
		WillReturnRows(rows)

	b, err := NewBookingRepository(db).GetBooking(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), b.StartDate)
	assert.Equal(t, 45000, b.QuotedCents)
	assert.Nil(t, b.RespondedAt)
}

func TestBookingRepository_UpdateBooking(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		stored   int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "status moved on", affected: 0, stored: 1, wantErr: booking.ErrStatusChanged},
		{name: "not found", affected: 0, stored: 0, wantErr: booking.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`UPDATE "bookings" SET "client_id" = \$1, .* WHERE "id" = \$19 AND "status" = \$20$`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "bookings" WHERE \("id" = \$1\) LIMIT 1`).
					WithArgs(bookingID).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.stored))
			}

			b := booking.Booking{ID: bookingID, Status: booking.StatusAccepted}
			_, err := NewBookingRepository(db).UpdateBooking(context.Background(), b, booking.StatusPending)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestBookingRepository_QueryExpirable(t *testing.T) {
	db, mock := newMock(t)
	createdBefore := testTime.Add(-48 * time.Hour)
	mock.ExpectQuery(`SELECT .* FROM "bookings" WHERE .*"status" = \$1.*"created_at" < \$2 OR .*"start_date" < \$3.* ORDER BY "bookings"\."created_at" ASC`).
		WithArgs(booking.StatusPending, createdBefore, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows(bookingMapping.columns))

	bookings, err := NewBookingRepository(db).QueryExpirable(context.Background(), createdBefore, testTime)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestBookingRepository_GetOpenDeposit(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		rows := sqlmock.NewRows(depositMapping.columns).AddRow(
			"dep-1", bookingID, "instructor-1", "lead_fee", 1500, "EUR", booking.DepositPaid,
			"pi_123", testTime, testTime, nil,
		)
		mock.ExpectQuery(`SELECT .* FROM "deposits" WHERE .*"booking_id" = \$1.*"status" = ANY\(\$2\).* ORDER BY "deposits"\."created_at" DESC LIMIT 1`).
			WithArgs(bookingID, sqlmock.AnyArg()).
			WillReturnRows(rows)

		dep, err := NewBookingRepository(db).GetOpenDeposit(context.Background(), bookingID)
		require.NoError(t, err)
		assert.Equal(t, booking.DepositPaid, dep.Status)
		require.NotNil(t, dep.PaidAt)
		assert.Equal(t, testTime, *dep.PaidAt)
		assert.Nil(t, dep.RefundedAt)
	})

	t.Run("none open", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM "deposits"`).
			WithArgs(bookingID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(depositMapping.columns))

		_, err := NewBookingRepository(db).GetOpenDeposit(context.Background(), bookingID)
		assert.Equal(t, booking.ErrDepositNotFound, err)
	})
}

func TestBookingRepository_CreateDeposit_openExists(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO "deposits"`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: depositOpenConstraint})

	_, err := NewBookingRepository(db).CreateDeposit(context.Background(), booking.Deposit{BookingID: bookingID})
	assert.Equal(t, booking.ErrOpenDepositExists, err)
}

func TestBookingRepository_UpdateDeposit_statusMovedOn(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE "deposits" SET .* WHERE "id" = \$11 AND "status" = \$12$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "deposits" WHERE \("id" = \$1\) LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	dep := booking.Deposit{ID: "dep-1", BookingID: bookingID, Status: booking.DepositRefunded}
	_, err := NewBookingRepository(db).UpdateDeposit(context.Background(), dep, booking.DepositPaid)
	assert.Equal(t, booking.ErrStatusChanged, err)
}
