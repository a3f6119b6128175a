// Package admin serves the moderation dashboard figures.
package admin

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
)

type Stats struct {
	UsersByRole           map[string]int `json:"users_by_role"`
	PublishedInstructors  int            `json:"published_instructors"`
	PendingBookings       int            `json:"pending_bookings"`
	PendingResortRequests int            `json:"pending_resort_requests"`
	PaidLeadFeesCents     int            `json:"paid_lead_fees_cents"`
	Currency              string         `json:"currency"`
}

type (
	Repository interface {
		CountUsersByRole(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error)
		CountPublishedInstructors(ctx context.Context, exec ...core.DBExecutor) (int, error)
		CountPendingBookings(ctx context.Context, exec ...core.DBExecutor) (int, error)
		CountPendingResortRequests(ctx context.Context, exec ...core.DBExecutor) (int, error)
		SumPaidLeadFees(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo     Repository
		currency string
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, currency: conf.Marketplace.Currency}
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		stats = Stats{Currency: svc.currency}
		err   error
	)
	if stats.UsersByRole, err = svc.repo.CountUsersByRole(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting users")
	}
	if stats.PublishedInstructors, err = svc.repo.CountPublishedInstructors(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting instructors")
	}
	if stats.PendingBookings, err = svc.repo.CountPendingBookings(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting bookings")
	}
	if stats.PendingResortRequests, err = svc.repo.CountPendingResortRequests(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting resort requests")
	}
	if stats.PaidLeadFeesCents, err = svc.repo.SumPaidLeadFees(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "summing lead fees")
	}
	return stats, nil
}
