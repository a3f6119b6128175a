package sqlxrepos

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/user"
)

func TestStatsRepository_CountUsersByRole(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT "role", COUNT\(\*\) AS "count" FROM "users" WHERE "deleted_at" IS NULL GROUP BY "role"`).
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).
			AddRow(user.RoleClient, 12).
			AddRow(user.RoleInstructor, 4))

	counts, err := NewStatsRepository(db).CountUsersByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{user.RoleClient: 12, user.RoleInstructor: 4}, counts)
}

func TestStatsRepository_SumPaidLeadFees(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\("amount_cents"\), 0\) FROM "deposits" WHERE "status" = \$1 AND "kind" = \$2`).
		WithArgs(booking.DepositPaid, booking.DepositLeadFee).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(4500))

	sum, err := NewStatsRepository(db).SumPaidLeadFees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4500, sum)
}

func TestStatsRepository_CountPendingBookings(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "bookings" WHERE "status" = \$1`).
		WithArgs(booking.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := NewStatsRepository(db).CountPendingBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
