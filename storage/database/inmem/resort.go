package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/resort"
)

type resortRepository struct {
	db *DB
}

var _ resort.Repository = (*resortRepository)(nil) // interface compliance check

func NewResortRepository(db *DB) resort.Repository {
	return &resortRepository{db: db}
}

func sameResort(name, country, otherName, otherCountry string) bool {
	return strings.EqualFold(country, otherCountry) && resort.NormalizeName(name) == resort.NormalizeName(otherName)
}

func (repo *resortRepository) CreateResort(_ context.Context, rst resort.Resort, _ ...core.DBExecutor) (resort.Resort, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.resorts {
		if sameResort(rst.Name, rst.Country, other.Name, other.Country) {
			return resort.Resort{}, resort.ErrResortExists
		}
	}
	rst.ID = newID()
	repo.db.resorts[rst.ID] = rst
	return rst, nil
}

func (repo *resortRepository) GetResort(_ context.Context, id string, _ ...core.DBExecutor) (resort.Resort, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rst, ok := repo.db.resorts[id]; ok {
		return rst, nil
	}
	return resort.Resort{}, resort.ErrNotFound
}

func (repo *resortRepository) UpdateResort(_ context.Context, rst resort.Resort, _ ...core.DBExecutor) (resort.Resort, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.resorts[rst.ID]; !ok {
		return resort.Resort{}, resort.ErrNotFound
	}
	repo.db.resorts[rst.ID] = rst
	return rst, nil
}

func (repo *resortRepository) QueryResorts(_ context.Context, filter resort.QueryFilter, page core.PageRequest, _ ...core.DBExecutor) ([]resort.Resort, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	q := strings.ToLower(filter.Search)
	results := make([]resort.Resort, 0)
	for _, rst := range repo.db.resorts {
		switch {
		case filter.ActiveOnly && !rst.Active:
			continue
		case filter.Country != "" && rst.Country != filter.Country:
			continue
		case q != "" && !strings.Contains(strings.ToLower(rst.Name), q) && !strings.Contains(strings.ToLower(rst.Region), q):
			continue
		}
		results = append(results, rst)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Country != results[j].Country {
			return results[i].Country < results[j].Country
		}
		return strings.ToLower(results[i].Name) < strings.ToLower(results[j].Name)
	})
	return pageOf(results, page), len(results), nil
}

func (repo *resortRepository) QueryResortsByID(_ context.Context, ids []string, _ ...core.DBExecutor) ([]resort.Resort, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]resort.Resort, 0, len(ids))
	for _, id := range ids {
		if rst, ok := repo.db.resorts[id]; ok {
			results = append(results, rst)
		}
	}
	return results, nil
}

func (repo *resortRepository) ResortExists(_ context.Context, name, country string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rst := range repo.db.resorts {
		if sameResort(name, country, rst.Name, rst.Country) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *resortRepository) CreateRequest(_ context.Context, req resort.Request, _ ...core.DBExecutor) (resort.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	req.ID = newID()
	repo.db.resortRequests[req.ID] = req
	return req, nil
}

func (repo *resortRepository) GetRequest(_ context.Context, id string, _ ...core.DBExecutor) (resort.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if req, ok := repo.db.resortRequests[id]; ok {
		return req, nil
	}
	return resort.Request{}, resort.ErrRequestNotFound
}

func (repo *resortRepository) UpdateRequest(_ context.Context, req resort.Request, from string, _ ...core.DBExecutor) (resort.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.resortRequests[req.ID]
	if !ok {
		return resort.Request{}, resort.ErrRequestNotFound
	}
	if stored.Status != from {
		return resort.Request{}, resort.ErrAlreadyReviewed
	}
	repo.db.resortRequests[req.ID] = req
	return req, nil
}

func (repo *resortRepository) QueryRequests(_ context.Context, filter resort.RequestFilter, page core.PageRequest, _ ...core.DBExecutor) ([]resort.Request, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]resort.Request, 0)
	for _, req := range repo.db.resortRequests {
		if filter.Status == "" || req.Status == filter.Status {
			results = append(results, req)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	return pageOf(results, page), len(results), nil
}

func (repo *resortRepository) PendingRequestExists(_ context.Context, name, country string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, req := range repo.db.resortRequests {
		if req.IsPending() && sameResort(name, country, req.Name, req.Country) {
			return true, nil
		}
	}
	return false, nil
}
