package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/admin"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/resort"
)

type roleCount struct {
	Role  string `db:"role"`
	Count int    `db:"count"`
}

type statsRepository struct {
	exec core.DBExecutor
}

var _ admin.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) admin.Repository {
	return &statsRepository{exec: exec}
}

func (repo statsRepository) CountUsersByRole(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error) {
	var rows []roleCount
	err := selectAll(ctx, core.GetExec(repo.exec, exec), &rows,
		`SELECT "role", COUNT(*) AS "count" FROM "users" WHERE "deleted_at" IS NULL GROUP BY "role"`)
	if err != nil {
		return nil, errors.Wrap(err, "counting users by role")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

func (repo statsRepository) CountPublishedInstructors(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	err := scalar(ctx, core.GetExec(repo.exec, exec), &n,
		`SELECT COUNT(*) FROM "instructors" WHERE "published" AND "archived_at" IS NULL AND "deleted_at" IS NULL`)
	if err != nil {
		return 0, errors.Wrap(err, "counting published instructors")
	}
	return n, nil
}

func (repo statsRepository) CountPendingBookings(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	err := scalar(ctx, core.GetExec(repo.exec, exec), &n,
		`SELECT COUNT(*) FROM "bookings" WHERE "status" = ?`, booking.StatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "counting pending bookings")
	}
	return n, nil
}

func (repo statsRepository) CountPendingResortRequests(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	err := scalar(ctx, core.GetExec(repo.exec, exec), &n,
		`SELECT COUNT(*) FROM "resort_requests" WHERE "status" = ?`, resort.StatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "counting pending resort requests")
	}
	return n, nil
}

func (repo statsRepository) SumPaidLeadFees(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	err := scalar(ctx, core.GetExec(repo.exec, exec), &n,
		`SELECT COALESCE(SUM("amount_cents"), 0) FROM "deposits" WHERE "status" = ? AND "kind" = ?`,
		booking.DepositPaid, booking.DepositLeadFee)
	if err != nil {
		return 0, errors.Wrap(err, "summing paid lead fees")
	}
	return n, nil
}
