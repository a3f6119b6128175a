package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/calendar"
)

type calendarRepository struct {
	db *DB
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *DB) calendar.Repository {
	return &calendarRepository{db: db}
}

func bookingOf(b calendar.Block) string {
	if b.BookingID == nil {
		return ""
	}
	return *b.BookingID
}

func (repo *calendarRepository) CreateBlocks(_ context.Context, blocks []calendar.Block, _ ...core.DBExecutor) ([]calendar.Block, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]calendar.Block, 0, len(blocks))
	for _, b := range blocks {
		b.ID = newID()
		repo.db.blocks[b.ID] = b
		created = append(created, b)
	}
	return created, nil
}

func (repo *calendarRepository) QueryBlocks(_ context.Context, filter calendar.BlockFilter, _ ...core.DBExecutor) ([]calendar.Block, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	blocks := make([]calendar.Block, 0)
	for _, b := range repo.db.blocks {
		switch {
		case filter.InstructorID != "" && b.InstructorID != filter.InstructorID:
			continue
		case filter.BookingID != "" && bookingOf(b) != filter.BookingID:
			continue
		case !filter.From.IsZero() && b.Date.Before(filter.From):
			continue
		case !filter.To.IsZero() && b.Date.After(filter.To):
			continue
		case len(filter.Kinds) > 0 && !core.ContainsString(filter.Kinds, b.Kind):
			continue
		}
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		if !blocks[i].Date.Equal(blocks[j].Date) {
			return blocks[i].Date.Before(blocks[j].Date)
		}
		return blocks[i].ID < blocks[j].ID
	})
	return blocks, nil
}

func (repo *calendarRepository) GetBlock(_ context.Context, id string, _ ...core.DBExecutor) (calendar.Block, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.blocks[id]; ok {
		return b, nil
	}
	return calendar.Block{}, calendar.ErrBlockNotFound
}

func (repo *calendarRepository) UpdateBlocksKind(_ context.Context, bookingID, kind string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	count := 0
	for id, b := range repo.db.blocks {
		if bookingOf(b) == bookingID {
			b.Kind = kind
			repo.db.blocks[id] = b
			count++
		}
	}
	return count, nil
}

func (repo *calendarRepository) DeleteBookingBlocks(_ context.Context, bookingID string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	count := 0
	for id, b := range repo.db.blocks {
		if bookingOf(b) == bookingID {
			delete(repo.db.blocks, id)
			count++
		}
	}
	return count, nil
}

func (repo *calendarRepository) DeleteBlock(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.blocks[id]; !ok {
		return calendar.ErrBlockNotFound
	}
	delete(repo.db.blocks, id)
	return nil
}
