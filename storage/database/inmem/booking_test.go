package inmemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core/booking"
)

func TestBookingRepository_guardedUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(Open())
	b, err := repo.CreateBooking(ctx, booking.Booking{Status: booking.StatusPending})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		status  string
		from    string
		wantErr error
	}{
		{name: "from the stored status", id: b.ID, status: booking.StatusAccepted, from: booking.StatusPending},
		{name: "stale from", id: b.ID, status: booking.StatusDeclined, from: booking.StatusPending, wantErr: booking.ErrStatusChanged},
		{name: "unknown booking", id: "missing", status: booking.StatusDeclined, from: booking.StatusPending, wantErr: booking.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.UpdateBooking(ctx, booking.Booking{ID: tt.id, Status: tt.status}, tt.from)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	stored, err := repo.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusAccepted, stored.Status)
}

func TestBookingRepository_CreateDeposit_oneOpen(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(Open())

	dep, err := repo.CreateDeposit(ctx, booking.Deposit{BookingID: "b1", Status: booking.DepositPending})
	require.NoError(t, err)
	_, err = repo.CreateDeposit(ctx, booking.Deposit{BookingID: "b1", Status: booking.DepositPending})
	assert.Equal(t, booking.ErrOpenDepositExists, err)

	dep.Status = booking.DepositPaid
	_, err = repo.UpdateDeposit(ctx, dep, booking.DepositPending)
	require.NoError(t, err)
	_, err = repo.UpdateDeposit(ctx, dep, booking.DepositPending)
	assert.Equal(t, booking.ErrStatusChanged, err, "already paid")

	dep.Status = booking.DepositRefunded
	_, err = repo.UpdateDeposit(ctx, dep, booking.DepositPaid)
	require.NoError(t, err)
	_, err = repo.CreateDeposit(ctx, booking.Deposit{BookingID: "b1", Status: booking.DepositPending})
	assert.NoError(t, err, "a refunded deposit is no longer open")
}
