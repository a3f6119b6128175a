package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/review"
)

const (
	reviewsTable            = "reviews"
	reviewBookingConstraint = "reviews_booking_key"
)

var reviewMapping = mapTable(reviewsTable, reviewRow{})

type reviewRow struct {
	ID           string    `boil:"id"`
	BookingID    string    `boil:"booking_id"`
	ClientID     string    `boil:"client_id"`
	InstructorID string    `boil:"instructor_id"`
	Rating       int       `boil:"rating"`
	Comment      string    `boil:"comment"`
	Hidden       bool      `boil:"hidden"`
	CreatedAt    time.Time `boil:"created_at"`
	UpdatedAt    time.Time `boil:"updated_at"`
	DeletedAt    null.Time `boil:"deleted_at"`
}

func (r reviewRow) unboil() review.Review {
	return review.Review{
		ID:           r.ID,
		BookingID:    r.BookingID,
		ClientID:     r.ClientID,
		InstructorID: r.InstructorID,
		Rating:       r.Rating,
		Comment:      r.Comment,
		Hidden:       r.Hidden,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		DeletedAt:    timePtr(r.DeletedAt),
	}
}

type reviewRepository struct {
	exec core.DBExecutor
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(exec core.DBExecutor) review.Repository {
	return &reviewRepository{exec: exec}
}

func (repo reviewRepository) boil(rev review.Review) reviewRow {
	return reviewRow{
		ID:           rev.ID,
		BookingID:    rev.BookingID,
		ClientID:     rev.ClientID,
		InstructorID: rev.InstructorID,
		Rating:       rev.Rating,
		Comment:      rev.Comment,
		Hidden:       rev.Hidden,
		CreatedAt:    rev.CreatedAt.UTC(),
		UpdatedAt:    rev.UpdatedAt.UTC(),
		DeletedAt:    nullTimePtr(rev.DeletedAt),
	}
}

// visible restricts to the published reviews of an instructor.
func (repo reviewRepository) visible(instructorID string) []qm.QueryMod {
	return []qm.QueryMod{
		qm.Where(`"reviews"."instructor_id" = ?`, instructorID),
		qm.Where(`NOT "reviews"."hidden"`),
		qm.Where(`"reviews"."deleted_at" IS NULL`),
	}
}

func (repo reviewRepository) CreateReview(ctx context.Context, rev review.Review, exec ...core.DBExecutor) (review.Review, error) {
	rev.ID = uuid.New().String()
	r := repo.boil(rev)
	if err := insert(ctx, core.GetExec(repo.exec, exec), reviewMapping, r); err != nil {
		if isUniqueViolation(err, reviewBookingConstraint) {
			return review.Review{}, review.ErrAlreadyReviewed
		}
		return review.Review{}, errors.Wrap(err, "inserting review")
	}
	return r.unboil(), nil
}

func (repo reviewRepository) GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (review.Review, error) {
	if !validUUID(id) {
		return review.Review{}, review.ErrNotFound
	}
	mods := append(reviewMapping.selectAll(),
		qm.Where(`"reviews"."id" = ?`, id),
		qm.Where(`"reviews"."deleted_at" IS NULL`),
	)

	var r reviewRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return review.Review{}, trapNoRowsErr(err, review.ErrNotFound, "finding review")
	}
	return r.unboil(), nil
}

func (repo reviewRepository) UpdateReview(ctx context.Context, rev review.Review, exec ...core.DBExecutor) (review.Review, error) {
	r := repo.boil(rev)
	n, err := update(ctx, core.GetExec(repo.exec, exec), reviewMapping, r.ID, r, cond(`"deleted_at" IS NULL`))
	if err != nil {
		return review.Review{}, errors.Wrap(err, "updating review")
	}
	if n == 0 {
		return review.Review{}, review.ErrNotFound
	}
	return r.unboil(), nil
}

func (repo reviewRepository) QueryVisible(ctx context.Context, instructorID string, page core.PageRequest, exec ...core.DBExecutor) ([]review.Review, int, error) {
	exe := core.GetExec(repo.exec, exec)
	where := repo.visible(instructorID)

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(reviewsTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting reviews")
	}

	mods := append(reviewMapping.selectAll(), where...)
	mods = append(mods, qm.OrderBy(`"reviews"."created_at" DESC, "reviews"."id" ASC`))
	mods = append(mods, paginate(page)...)

	var rows []reviewRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying reviews")
	}
	reviews := make([]review.Review, 0, len(rows))
	for _, r := range rows {
		reviews = append(reviews, r.unboil())
	}
	return reviews, total, nil
}

func (repo reviewRepository) RatingStats(ctx context.Context, instructorID string, exec ...core.DBExecutor) (float64, int, error) {
	q := newQuery(append([]qm.QueryMod{
		qm.Select(`AVG("reviews"."rating")`, `COUNT(*)`),
		qm.From(quote(reviewsTable)),
	}, repo.visible(instructorID)...)...)

	var (
		avg   sql.NullFloat64
		total int64
	)
	if err := q.QueryRowContext(ctx, core.GetExec(repo.exec, exec)).Scan(&avg, &total); err != nil {
		return 0, 0, errors.Wrap(err, "aggregating reviews")
	}
	return avg.Float64, int(total), nil
}
