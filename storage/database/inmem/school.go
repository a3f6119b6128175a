package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func cloneSchool(s school.School) school.School {
	s.ResortIDs = cloneStrings(s.ResortIDs)
	return s
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = newID()
	repo.db.schools[s.ID] = cloneSchool(s)
	return cloneSchool(s), nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, filter school.GetFilter, _ ...core.DBExecutor) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.schools {
		if s.DeletedAt != nil || (s.IsArchived() && !filter.IncludeArchived) {
			continue
		}
		var match bool
		switch {
		case filter.ID != "":
			match = s.ID == filter.ID
		case filter.Slug != "":
			match = s.Slug == filter.Slug
		case filter.OwnerID != "":
			match = s.OwnerID == filter.OwnerID
		}
		if match {
			return cloneSchool(s), nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, s school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.schools[s.ID]; !ok || orig.DeletedAt != nil {
		return school.School{}, school.ErrNotFound
	}
	repo.db.schools[s.ID] = cloneSchool(s)
	return cloneSchool(s), nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter school.QueryFilter, page core.PageRequest, _ ...core.DBExecutor) ([]school.School, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	q := strings.ToLower(filter.Search)
	results := make([]school.School, 0)
	for _, s := range repo.db.schools {
		switch {
		case s.DeletedAt != nil || s.IsArchived():
			continue
		case q != "" && !strings.Contains(strings.ToLower(s.Name), q):
			continue
		case filter.ResortID != "" && !core.ContainsString(s.ResortIDs, filter.ResortID):
			continue
		case filter.VerifiedOnly && !s.Verified:
			continue
		}
		results = append(results, cloneSchool(s))
	}
	sort.Slice(results, func(i, j int) bool {
		return strings.ToLower(results[i].Name) < strings.ToLower(results[j].Name)
	})
	return pageOf(results, page), len(results), nil
}

func (repo *schoolRepository) SlugExists(_ context.Context, slug string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.schools {
		if s.Slug == slug && s.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

// pendingInvitation is PendingInvitationExists without locking.
func (repo *schoolRepository) pendingInvitation(schoolID, email string) bool {
	for _, inv := range repo.db.invitations {
		if inv.SchoolID == schoolID && inv.IsPending() && strings.EqualFold(inv.Email, email) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateInvitation(_ context.Context, inv school.Invitation, _ ...core.DBExecutor) (school.Invitation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if inv.IsPending() && repo.pendingInvitation(inv.SchoolID, inv.Email) {
		return school.Invitation{}, school.ErrInvitationExists
	}
	inv.ID = newID()
	repo.db.invitations[inv.ID] = inv
	return inv, nil
}

func (repo *schoolRepository) GetInvitation(_ context.Context, filter school.InvitationFilter, _ ...core.DBExecutor) (school.Invitation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, inv := range repo.db.invitations {
		if (filter.ID != "" && inv.ID == filter.ID) || (filter.ID == "" && filter.Token != "" && inv.Token == filter.Token) {
			return inv, nil
		}
	}
	return school.Invitation{}, school.ErrInvitationNotFound
}

func (repo *schoolRepository) UpdateInvitation(_ context.Context, inv school.Invitation, _ ...core.DBExecutor) (school.Invitation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.invitations[inv.ID]; !ok {
		return school.Invitation{}, school.ErrInvitationNotFound
	}
	repo.db.invitations[inv.ID] = inv
	return inv, nil
}

func (repo *schoolRepository) QueryInvitations(_ context.Context, schoolID string, statuses []string, _ ...core.DBExecutor) ([]school.Invitation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]school.Invitation, 0)
	for _, inv := range repo.db.invitations {
		if inv.SchoolID == schoolID && (len(statuses) == 0 || core.ContainsString(statuses, inv.Status)) {
			results = append(results, inv)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (repo *schoolRepository) PendingInvitationExists(_ context.Context, schoolID, email string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return repo.pendingInvitation(schoolID, email), nil
}

func (repo *schoolRepository) ExpireInvitations(_ context.Context, now time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	count := 0
	for id, inv := range repo.db.invitations {
		if inv.IsPending() && inv.IsExpired(now) {
			inv.Status = school.InvitationExpired
			inv.RespondedAt = &now
			repo.db.invitations[id] = inv
			count++
		}
	}
	return count, nil
}
