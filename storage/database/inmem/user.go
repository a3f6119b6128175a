package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func cloneUser(usr user.User) user.User {
	usr.StaffRoles = cloneStrings(usr.StaffRoles)
	return usr
}

// alive returns the non-deleted users; the lock must be held.
func (repo *userRepository) alive() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if u.DeletedAt == nil {
			users = append(users, cloneUser(u))
		}
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.alive() {
		if strings.EqualFold(usr.Email, email) && !isExcluded(usr, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = newID()
	usr = cloneUser(usr)
	repo.db.users[usr.ID] = usr
	return cloneUser(usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.PageRequest, _ ...core.DBExecutor) ([]user.User, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.alive() {
		if filter == nil || matchUser(usr, filter) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)
	return pageOf(users, page), len(users), nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), q) && !strings.Contains(strings.ToLower(usr.Email), q) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if usr.Role == role || usr.StaffRoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.StaffOnly && len(usr.StaffRoles) == 0 {
		return false
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(strings.ToLower(users[i].Name), strings.ToLower(users[j].Name))
			case "email":
				cmp = strings.Compare(users[i].Email, users[j].Email)
			case "created_at":
				cmp = compareTime(users[i].CreatedAt, users[j].CreatedAt)
			case "last_login":
				cmp = compareTime(users[i].LastLogin, users[j].LastLogin)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.alive() {
		switch {
		case filter.ID != "":
			if usr.ID == filter.ID {
				return usr, nil
			}
		case filter.Email != "":
			if strings.EqualFold(usr.Email, filter.Email) {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok || orig.DeletedAt != nil {
		return user.User{}, user.ErrNotFound
	}
	usr = cloneUser(usr)
	repo.db.users[usr.ID] = usr
	return cloneUser(usr), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := core.NowFunc()
	count := 0
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok && usr.DeletedAt == nil {
			usr.DeletedAt = &now
			repo.db.users[id] = usr
			count++
		}
	}
	return count, nil
}

func (repo *userRepository) CreateRoleTransition(_ context.Context, rt user.RoleTransition, _ ...core.DBExecutor) (user.RoleTransition, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rt.ID = newID()
	repo.db.roleTransitions = append(repo.db.roleTransitions, rt)
	return rt, nil
}

func (repo *userRepository) QueryRoleTransitions(_ context.Context, userID string, _ ...core.DBExecutor) ([]user.RoleTransition, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	transitions := make([]user.RoleTransition, 0)
	for i := len(repo.db.roleTransitions) - 1; i >= 0; i-- { // newest first
		if rt := repo.db.roleTransitions[i]; rt.UserID == userID {
			transitions = append(transitions, rt)
		}
	}
	return transitions, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}
