package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/booking"
)

type bookingRepository struct {
	db *DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) booking.Repository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBooking(_ context.Context, b booking.Booking, _ ...core.DBExecutor) (booking.Booking, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	b.ID = newID()
	repo.db.bookings[b.ID] = b
	return b, nil
}

func (repo *bookingRepository) GetBooking(_ context.Context, id string, _ ...core.DBExecutor) (booking.Booking, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.bookings[id]; ok {
		return b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) UpdateBooking(_ context.Context, b booking.Booking, from string, _ ...core.DBExecutor) (booking.Booking, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.bookings[b.ID]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	if stored.Status != from {
		return booking.Booking{}, booking.ErrStatusChanged
	}
	repo.db.bookings[b.ID] = b
	return b, nil
}

// find returns the matching bookings oldest first; the lock must be held.
func (repo *bookingRepository) find(filter booking.Filter) []booking.Booking {
	results := make([]booking.Booking, 0)
	for _, b := range repo.db.bookings {
		switch {
		case filter.ClientID != "" && b.ClientID != filter.ClientID:
			continue
		case filter.InstructorID != "" && b.InstructorID != filter.InstructorID:
			continue
		case len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, b.Status):
			continue
		case !filter.EndBefore.IsZero() && !b.EndDate.Before(filter.EndBefore):
			continue
		case !filter.EndFrom.IsZero() && b.EndDate.Before(filter.EndFrom):
			continue
		}
		results = append(results, b)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func (repo *bookingRepository) QueryBookings(_ context.Context, filter booking.Filter, page core.PageRequest, _ ...core.DBExecutor) ([]booking.Booking, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := repo.find(filter)
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return pageOf(results, page), len(results), nil
}

func (repo *bookingRepository) FindBookings(_ context.Context, filter booking.Filter, _ ...core.DBExecutor) ([]booking.Booking, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return repo.find(filter), nil
}

func (repo *bookingRepository) QueryExpirable(_ context.Context, createdBefore, startBefore time.Time, _ ...core.DBExecutor) ([]booking.Booking, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]booking.Booking, 0)
	for _, b := range repo.find(booking.Filter{Statuses: []string{booking.StatusPending}}) {
		if b.CreatedAt.Before(createdBefore) || b.StartDate.Before(startBefore) {
			results = append(results, b)
		}
	}
	return results, nil
}

func (repo *bookingRepository) CreateDeposit(_ context.Context, dep booking.Deposit, _ ...core.DBExecutor) (booking.Deposit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, open := repo.openDeposit(dep.BookingID); open {
		return booking.Deposit{}, booking.ErrOpenDepositExists
	}
	dep.ID = newID()
	repo.db.deposits[dep.ID] = dep
	return dep, nil
}

func (repo *bookingRepository) GetDeposit(_ context.Context, id string, _ ...core.DBExecutor) (booking.Deposit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if dep, ok := repo.db.deposits[id]; ok {
		return dep, nil
	}
	return booking.Deposit{}, booking.ErrDepositNotFound
}

func (repo *bookingRepository) UpdateDeposit(_ context.Context, dep booking.Deposit, from string, _ ...core.DBExecutor) (booking.Deposit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.deposits[dep.ID]
	if !ok {
		return booking.Deposit{}, booking.ErrDepositNotFound
	}
	if stored.Status != from {
		return booking.Deposit{}, booking.ErrStatusChanged
	}
	repo.db.deposits[dep.ID] = dep
	return dep, nil
}

func (repo *bookingRepository) GetOpenDeposit(_ context.Context, bookingID string, _ ...core.DBExecutor) (booking.Deposit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if dep, ok := repo.openDeposit(bookingID); ok {
		return dep, nil
	}
	return booking.Deposit{}, booking.ErrDepositNotFound
}

// openDeposit finds the pending or paid deposit of a booking; the lock must be held.
func (repo *bookingRepository) openDeposit(bookingID string) (booking.Deposit, bool) {
	for _, dep := range repo.db.deposits {
		if dep.BookingID == bookingID && (dep.Status == booking.DepositPending || dep.Status == booking.DepositPaid) {
			return dep, true
		}
	}
	return booking.Deposit{}, false
}
