package inmemdb

import (
	"context"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, entry audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = newID()
	repo.db.auditEntries = append(repo.db.auditEntries, entry)
	return entry, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter audit.QueryFilter, page core.PageRequest, _ ...core.DBExecutor) ([]audit.Entry, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]audit.Entry, 0)
	for i := len(repo.db.auditEntries) - 1; i >= 0; i-- { // newest first
		e := repo.db.auditEntries[i]
		switch {
		case filter.ActorID != "" && e.ActorID != filter.ActorID:
			continue
		case filter.Action != "" && e.Action != filter.Action:
			continue
		case filter.EntityType != "" && e.EntityType != filter.EntityType:
			continue
		case filter.EntityID != "" && e.EntityID != filter.EntityID:
			continue
		case !filter.From.IsZero() && e.CreatedAt.Before(filter.From):
			continue
		case !filter.To.IsZero() && e.CreatedAt.After(filter.To):
			continue
		}
		results = append(results, e)
	}
	return pageOf(results, page), len(results), nil
}
