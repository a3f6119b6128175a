package boiledrepos

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core/review"
)

const instructorID = "1a2b3c4d-5e6f-4a1b-8c2d-3e4f5a6b7c8d"

func TestReviewRepository_CreateReview(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "inserted"},
		{name: "booking already reviewed", execErr: &pq.Error{Code: pqUniqueViolation, Constraint: reviewBookingConstraint}, wantErr: review.ErrAlreadyReviewed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			args := make([]driver.Value, len(reviewMapping.columns))
			for i := range args {
				args[i] = sqlmock.AnyArg()
			}
			exp := mock.ExpectExec(`INSERT INTO "reviews"`).WithArgs(args...)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			rev, err := NewReviewRepository(db).CreateReview(context.Background(), review.Review{
				BookingID:    bookingID,
				InstructorID: instructorID,
				Rating:       5,
				Comment:      "Great powder day",
				CreatedAt:    testTime,
				UpdatedAt:    testTime,
			})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, validUUID(rev.ID))
			assert.Equal(t, 5, rev.Rating)
		})
	}
}

func TestReviewRepository_RatingStats(t *testing.T) {
	tests := []struct {
		name      string
		avg       interface{}
		total     int64
		wantAvg   float64
		wantTotal int
	}{
		{name: "reviewed", avg: 4.5, total: 4, wantAvg: 4.5, wantTotal: 4},
		{name: "no reviews", avg: nil, total: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(`SELECT AVG\("reviews"\."rating"\), COUNT\(\*\) FROM "reviews" WHERE .*"instructor_id" = \$1.*NOT "reviews"\."hidden".*"deleted_at" IS NULL`).
				WithArgs(instructorID).
				WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(tt.avg, tt.total))

			avg, total, err := NewReviewRepository(db).RatingStats(context.Background(), instructorID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAvg, avg)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}
