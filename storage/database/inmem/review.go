package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/review"
)

type reviewRepository struct {
	db *DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) CreateReview(_ context.Context, rev review.Review, _ ...core.DBExecutor) (review.Review, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.reviews {
		if other.BookingID == rev.BookingID && other.DeletedAt == nil {
			return review.Review{}, review.ErrAlreadyReviewed
		}
	}
	rev.ID = newID()
	repo.db.reviews[rev.ID] = rev
	return rev, nil
}

func (repo *reviewRepository) GetReview(_ context.Context, id string, _ ...core.DBExecutor) (review.Review, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rev, ok := repo.db.reviews[id]; ok && rev.DeletedAt == nil {
		return rev, nil
	}
	return review.Review{}, review.ErrNotFound
}

func (repo *reviewRepository) UpdateReview(_ context.Context, rev review.Review, _ ...core.DBExecutor) (review.Review, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.reviews[rev.ID]; !ok || orig.DeletedAt != nil {
		return review.Review{}, review.ErrNotFound
	}
	repo.db.reviews[rev.ID] = rev
	return rev, nil
}

// visible returns the published reviews of an instructor, newest first; the lock must be held.
func (repo *reviewRepository) visible(instructorID string) []review.Review {
	results := make([]review.Review, 0)
	for _, rev := range repo.db.reviews {
		if rev.InstructorID == instructorID && !rev.Hidden && rev.DeletedAt == nil {
			results = append(results, rev)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func (repo *reviewRepository) QueryVisible(_ context.Context, instructorID string, page core.PageRequest, _ ...core.DBExecutor) ([]review.Review, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := repo.visible(instructorID)
	return pageOf(results, page), len(results), nil
}

func (repo *reviewRepository) RatingStats(_ context.Context, instructorID string, _ ...core.DBExecutor) (float64, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reviews := repo.visible(instructorID)
	if len(reviews) == 0 {
		return 0, 0, nil
	}
	sum := 0
	for _, rev := range reviews {
		sum += rev.Rating
	}
	return float64(sum) / float64(len(reviews)), len(reviews), nil
}
