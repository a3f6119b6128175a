package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/instructor"
)

type instructorRepository struct {
	db *DB
}

var _ instructor.Repository = (*instructorRepository)(nil) // interface compliance check

func NewInstructorRepository(db *DB) instructor.Repository {
	return &instructorRepository{db: db}
}

func cloneInstructor(ins instructor.Instructor) instructor.Instructor {
	ins.Sports = cloneStrings(ins.Sports)
	ins.Languages = cloneStrings(ins.Languages)
	ins.ResortIDs = cloneStrings(ins.ResortIDs)
	if ins.SchoolID != nil {
		id := *ins.SchoolID
		ins.SchoolID = &id
	}
	return ins
}

// public reports whether a profile shows in the directory; the lock must be held.
func (repo *instructorRepository) public(ins instructor.Instructor) bool {
	if !ins.Published || ins.IsArchived() || ins.DeletedAt != nil {
		return false
	}
	owner, ok := repo.db.users[ins.UserID]
	return ok && owner.DeletedAt == nil && owner.Active()
}

func (repo *instructorRepository) CreateInstructor(_ context.Context, ins instructor.Instructor, _ ...core.DBExecutor) (instructor.Instructor, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.instructors {
		if other.Slug == ins.Slug && other.DeletedAt == nil {
			return instructor.Instructor{}, instructor.ErrSlugExists
		}
	}
	ins.ID = newID()
	repo.db.instructors[ins.ID] = cloneInstructor(ins)
	return cloneInstructor(ins), nil
}

func (repo *instructorRepository) GetInstructor(_ context.Context, filter instructor.GetFilter, _ ...core.DBExecutor) (instructor.Instructor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ins := range repo.db.instructors {
		if ins.DeletedAt != nil || (ins.IsArchived() && !filter.IncludeArchived) {
			continue
		}
		if filter.PublicOnly && !repo.public(ins) {
			continue
		}
		var match bool
		switch {
		case filter.ID != "":
			match = ins.ID == filter.ID
		case filter.UserID != "":
			match = ins.UserID == filter.UserID
		case filter.Slug != "":
			match = ins.Slug == filter.Slug
		}
		if match {
			return cloneInstructor(ins), nil
		}
	}
	return instructor.Instructor{}, instructor.ErrNotFound
}

func (repo *instructorRepository) UpdateInstructor(_ context.Context, ins instructor.Instructor, _ ...core.DBExecutor) (instructor.Instructor, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.instructors[ins.ID]
	if !ok || orig.DeletedAt != nil {
		return instructor.Instructor{}, instructor.ErrNotFound
	}
	for _, other := range repo.db.instructors {
		if other.ID != ins.ID && other.Slug == ins.Slug && other.DeletedAt == nil {
			return instructor.Instructor{}, instructor.ErrSlugExists
		}
	}
	repo.db.instructors[ins.ID] = cloneInstructor(ins)
	return cloneInstructor(ins), nil
}

func (repo *instructorRepository) CheckSlugUniqueness(_ context.Context, slug, excludedID string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ins := range repo.db.instructors {
		if ins.ID != excludedID && ins.Slug == slug && ins.DeletedAt == nil {
			return instructor.ErrSlugExists
		}
	}
	return nil
}

func (repo *instructorRepository) QueryDirectory(_ context.Context, filter instructor.DirectoryFilter, ordering []core.DBOrdering, page core.PageRequest, _ ...core.DBExecutor) ([]instructor.Instructor, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]instructor.Instructor, 0)
	for _, ins := range repo.db.instructors {
		if repo.public(ins) && matchDirectory(ins, filter) {
			results = append(results, cloneInstructor(ins))
		}
	}
	sortInstructors(results, ordering)
	return pageOf(results, page), len(results), nil
}

func matchDirectory(ins instructor.Instructor, filter instructor.DirectoryFilter) bool {
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(ins.DisplayName), q) && !strings.Contains(strings.ToLower(ins.Bio), q) {
			return false
		}
	}
	switch {
	case filter.Sport != "" && !ins.OffersSport(filter.Sport):
		return false
	case filter.ResortID != "" && !ins.WorksAt(filter.ResortID):
		return false
	case filter.Language != "" && !core.ContainsString(ins.Languages, filter.Language):
		return false
	case filter.SchoolID != "" && (!ins.HasSchool() || *ins.SchoolID != filter.SchoolID):
		return false
	case filter.VerifiedOnly && !ins.Verified:
		return false
	case filter.MinRating > 0 && ins.AvgRating < filter.MinRating:
		return false
	}
	return true
}

func sortInstructors(items []instructor.Instructor, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "avg_rating"}, {Field: "created_at"}}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "avg_rating":
				switch {
				case items[i].AvgRating < items[j].AvgRating:
					cmp = -1
				case items[i].AvgRating > items[j].AvgRating:
					cmp = 1
				}
			case "created_at":
				cmp = compareTime(items[i].CreatedAt, items[j].CreatedAt)
			case "display_name":
				cmp = strings.Compare(strings.ToLower(items[i].DisplayName), strings.ToLower(items[j].DisplayName))
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return items[i].ID < items[j].ID
	})
}

func (repo *instructorRepository) QueryBySchool(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]instructor.Instructor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]instructor.Instructor, 0)
	for _, ins := range repo.db.instructors {
		if ins.HasSchool() && *ins.SchoolID == schoolID && ins.DeletedAt == nil && !ins.IsArchived() {
			members = append(members, cloneInstructor(ins))
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].DisplayName < members[j].DisplayName })
	return members, nil
}

func (repo *instructorRepository) UpdateRating(_ context.Context, id string, avg float64, count int, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ins, ok := repo.db.instructors[id]
	if !ok || ins.DeletedAt != nil {
		return instructor.ErrNotFound
	}
	ins.AvgRating = avg
	ins.ReviewCount = count
	repo.db.instructors[id] = ins
	return nil
}
