// Package audit keeps the append-only trail of staff and ownership actions.
package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
)

// Actions
const (
	ActionRoleTransition        = "user.role_transition"
	ActionUserSuspended         = "user.suspended"
	ActionUserReactivated       = "user.reactivated"
	ActionInstructorVerified    = "instructor.verified"
	ActionInstructorUnverified  = "instructor.unverified"
	ActionSchoolVerified        = "school.verified"
	ActionSchoolUnverified      = "school.unverified"
	ActionOwnershipTransferred  = "school.ownership_transferred"
	ActionReviewHidden          = "review.hidden"
	ActionReviewShown           = "review.shown"
	ActionResortCreated         = "resort.created"
	ActionResortActivated       = "resort.activated"
	ActionResortDeactivated     = "resort.deactivated"
	ActionResortRequestApproved = "resort_request.approved"
	ActionResortRequestRejected = "resort_request.rejected"
	ActionDepositRefunded       = "deposit.refunded"
)

// Entity types
const (
	EntityUser          = "user"
	EntityInstructor    = "instructor"
	EntitySchool        = "school"
	EntityReview        = "review"
	EntityResort        = "resort"
	EntityResortRequest = "resort_request"
	EntityDeposit       = "deposit"
)

type Entry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

type QueryFilter struct {
	ActorID    string    `query:"actor_id"`
	Action     string    `query:"action"`
	EntityType string    `query:"entity_type"`
	EntityID   string    `query:"entity_id"`
	From       time.Time `query:"from"`
	To         time.Time `query:"to"`
}

func (qf *QueryFilter) Clean() {
	qf.ActorID = core.CleanString(qf.ActorID)
	qf.Action = core.CleanString(qf.Action, true /* lower */)
	qf.EntityType = core.CleanString(qf.EntityType, true /* lower */)
	qf.EntityID = core.CleanString(qf.EntityID)
}

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns the matching entries, newest first, and their total count.
		QueryEntries(ctx context.Context, filter QueryFilter, page core.PageRequest, exec ...core.DBExecutor) ([]Entry, int, error)
	}

	// Recorder is what other services need from the audit log.
	Recorder interface {
		Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

var _ Recorder = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends entry to the audit log, inside the caller's transaction when exec is given.
func (svc *Service) Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error {
	entry.CreatedAt = core.NowFunc()
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]interface{})
	}
	if _, err := svc.repo.CreateEntry(ctx, entry, exec...); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, page core.PageRequest) ([]Entry, int, error) {
	filter.Clean()
	entries, total, err := svc.repo.QueryEntries(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying audit entries")
	}
	return entries, total, nil
}
