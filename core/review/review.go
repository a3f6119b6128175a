// Package review holds the client reviews of completed lessons.
package review

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("review not found")
	ErrNotCompleted    = core.NewConflictError("only completed bookings can be reviewed")
	ErrAlreadyReviewed = core.NewConflictError("this booking has already been reviewed")
)

type Review struct {
	ID           string     `json:"id"`
	BookingID    string     `json:"booking_id"`
	ClientID     string     `json:"client_id"`
	InstructorID string     `json:"instructor_id"`
	Rating       int        `json:"rating"`
	Comment      string     `json:"comment"`
	Hidden       bool       `json:"hidden,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=5000"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

type (
	Repository interface {
		// CreateReview returns ErrAlreadyReviewed if the booking already has a (non-deleted) review.
		CreateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (Review, error)
		UpdateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		// QueryVisible returns the visible reviews of an instructor, newest first.
		QueryVisible(ctx context.Context, instructorID string, page core.PageRequest, exec ...core.DBExecutor) ([]Review, int, error)
		// RatingStats aggregates the visible reviews of an instructor.
		RatingStats(ctx context.Context, instructorID string, exec ...core.DBExecutor) (float64, int, error)
	}

	BookingFinder interface {
		GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (booking.Booking, error)
	}

	RatingUpdater interface {
		RecalculateRating(ctx context.Context, instructorID string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo     Repository
		bookings BookingFinder
		ratings  RatingUpdater
		tx       core.TxRunner
		auditor  audit.Recorder
	}
)

func NewService(repo Repository, bookings BookingFinder, ratings RatingUpdater, tx core.TxRunner, auditor audit.Recorder) *Service {
	return &Service{repo: repo, bookings: bookings, ratings: ratings, tx: tx, auditor: auditor}
}

// Create reviews a completed booking of the client.
func (svc *Service) Create(ctx context.Context, clientID, bookingID string, nr NewReview) (Review, error) {
	b, err := svc.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Review{}, err
	}
	if b.ClientID != clientID {
		return Review{}, booking.ErrNotFound
	}
	if b.Status != booking.StatusCompleted {
		return Review{}, ErrNotCompleted
	}

	now := core.NowFunc()
	rev := Review{
		BookingID:    b.ID,
		ClientID:     clientID,
		InstructorID: b.InstructorID,
		Rating:       nr.Rating,
		Comment:      nr.Comment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if rev, err = svc.repo.CreateReview(ctx, rev, exec); err != nil {
			if errors.Cause(err) == ErrAlreadyReviewed {
				return ErrAlreadyReviewed
			}
			return errors.Wrap(err, "inserting review")
		}
		return svc.ratings.RecalculateRating(ctx, rev.InstructorID, exec)
	})
	if err != nil {
		return Review{}, err
	}
	return rev, nil
}

func (svc *Service) ListForInstructor(ctx context.Context, instructorID string, page core.PageRequest) ([]Review, int, error) {
	reviews, total, err := svc.repo.QueryVisible(ctx, instructorID, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying reviews")
	}
	return reviews, total, nil
}

// SetHidden hides or shows a review (staff only).
func (svc *Service) SetHidden(ctx context.Context, actorID, id string, hidden bool) (Review, error) {
	rev, err := svc.repo.GetReview(ctx, id)
	if err != nil {
		return Review{}, err
	}
	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		rev.Hidden = hidden
		rev.UpdatedAt = core.NowFunc()
		if rev, err = svc.repo.UpdateReview(ctx, rev, exec); err != nil {
			return errors.Wrap(err, "updating review")
		}
		if err = svc.ratings.RecalculateRating(ctx, rev.InstructorID, exec); err != nil {
			return err
		}
		action := audit.ActionReviewShown
		if hidden {
			action = audit.ActionReviewHidden
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     action,
			EntityType: audit.EntityReview,
			EntityID:   rev.ID,
		}, exec)
	})
	if err != nil {
		return Review{}, err
	}
	return rev, nil
}

// Delete soft-deletes the client's own review.
func (svc *Service) Delete(ctx context.Context, clientID, id string) error {
	rev, err := svc.repo.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if rev.ClientID != clientID {
		return ErrNotFound
	}
	return svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		now := core.NowFunc()
		rev.DeletedAt = &now
		rev.UpdatedAt = now
		if _, err := svc.repo.UpdateReview(ctx, rev, exec); err != nil {
			return errors.Wrap(err, "deleting review")
		}
		return svc.ratings.RecalculateRating(ctx, rev.InstructorID, exec)
	})
}
