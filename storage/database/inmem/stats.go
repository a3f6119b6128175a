package inmemdb

import (
	"context"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/admin"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/resort"
)

type statsRepository struct {
	db *DB
}

var _ admin.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db *DB) admin.Repository {
	return &statsRepository{db: db}
}

func (repo *statsRepository) CountUsersByRole(context.Context, ...core.DBExecutor) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, usr := range repo.db.users {
		if usr.DeletedAt == nil {
			counts[usr.Role]++
		}
	}
	return counts, nil
}

func (repo *statsRepository) CountPublishedInstructors(context.Context, ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	count := 0
	for _, ins := range repo.db.instructors {
		if ins.Published && !ins.IsArchived() && ins.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (repo *statsRepository) CountPendingBookings(context.Context, ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	count := 0
	for _, b := range repo.db.bookings {
		if b.IsPending() {
			count++
		}
	}
	return count, nil
}

func (repo *statsRepository) CountPendingResortRequests(context.Context, ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	count := 0
	for _, req := range repo.db.resortRequests {
		if req.Status == resort.StatusPending {
			count++
		}
	}
	return count, nil
}

func (repo *statsRepository) SumPaidLeadFees(context.Context, ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sum := 0
	for _, dep := range repo.db.deposits {
		if dep.Status == booking.DepositPaid {
			sum += dep.AmountCents
		}
	}
	return sum, nil
}
