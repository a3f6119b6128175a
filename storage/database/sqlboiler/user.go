package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

const (
	usersTable           = "users"
	roleTransitionsTable = "role_transitions"
)

var (
	userMapping           = mapTable(usersTable, userRow{})
	roleTransitionMapping = mapTable(roleTransitionsTable, roleTransitionRow{})

	userOrderings = map[string]string{
		"name":       "name",
		"email":      "email",
		"created_at": "created_at",
		"last_login": "last_login",
	}
)

type userRow struct {
	ID           string            `boil:"id"`
	Name         string            `boil:"name"`
	Email        string            `boil:"email"`
	Phone        null.String       `boil:"phone"`
	Role         string            `boil:"role"`
	StaffRoles   types.StringArray `boil:"staff_roles"`
	IsActive     bool              `boil:"is_active"`
	Locale       string            `boil:"locale"`
	PasswordHash null.Bytes        `boil:"password_hash"`
	CreatedAt    time.Time         `boil:"created_at"`
	UpdatedAt    time.Time         `boil:"updated_at"`
	LastLogin    null.Time         `boil:"last_login"`
	DeletedAt    null.Time         `boil:"deleted_at"`
}

type roleTransitionRow struct {
	ID                   string      `boil:"id"`
	UserID               string      `boil:"user_id"`
	FromRole             string      `boil:"from_role"`
	ToRole               string      `boil:"to_role"`
	ArchivedInstructorID null.String `boil:"archived_instructor_id"`
	ArchivedSchoolID     null.String `boil:"archived_school_id"`
	RestoredInstructorID null.String `boil:"restored_instructor_id"`
	RestoredSchoolID     null.String `boil:"restored_school_id"`
	CreatedAt            time.Time   `boil:"created_at"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{exec: exec}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Phone:        null.NewString(usr.Phone, usr.Phone != ""),
		Role:         usr.Role,
		StaffRoles:   emptyIfNil(usr.StaffRoles),
		IsActive:     usr.Active(),
		Locale:       usr.Locale,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
		DeletedAt:    nullTimePtr(usr.DeletedAt),
	}
}

func (repo userRepository) unboil(r userRow) user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone.String,
		Role:         r.Role,
		StaffRoles:   emptyIfNil(r.StaffRoles),
		Locale:       r.Locale,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
		DeletedAt:    timePtr(r.DeletedAt),
	}
	usr.SetActive(r.IsActive)
	return usr
}

func (repo userRepository) unboilSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unboil(r))
	}
	return users
}

func (repo userRepository) alive() qm.QueryMod {
	return qm.Where(`"users"."deleted_at" IS NULL`)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	mods := []qm.QueryMod{
		qm.From(quote(usersTable)),
		repo.alive(),
		qm.Where(`lower("users"."email") = lower(?)`, email),
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		mods = append(mods, qm.Where(`"users"."id" <> ALL(?)`, types.StringArray(ids)))
	}

	found, err := exists(ctx, core.GetExec(repo.exec, exec), mods...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.boil(usr)
	if err := insert(ctx, core.GetExec(repo.exec, exec), userMapping, r); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(r), nil
}

func (repo userRepository) filterMods(filter *user.QueryFilter) []qm.QueryMod {
	mods := []qm.QueryMod{repo.alive()}
	if filter == nil {
		return mods
	}

	// users with Name or Email matching the search keyword
	if filter.Search != "" {
		val := likePattern(filter.Search)
		mods = append(mods, qm.Expr(
			qm.Where(`"users"."name" ILIKE ?`, val),
			qm.Or(`"users"."email" ILIKE ?`, val),
		))
	}
	// users holding any of the marketplace roles, or a staff role starting with one of them
	if len(filter.Roles) > 0 {
		roleMods := make([]qm.QueryMod, 0, len(filter.Roles)*2)
		for _, role := range filter.Roles {
			roleMods = append(roleMods,
				qm.Or2(qm.Where(`"users"."role" = ?`, role)),
				qm.Or2(qm.Where(`EXISTS (SELECT 1 FROM UNNEST("users"."staff_roles") staff_role WHERE staff_role LIKE ?)`, role+"%")),
			)
		}
		mods = append(mods, qm.Expr(roleMods...))
	}
	if filter.StaffOnly {
		mods = append(mods, qm.Where(`cardinality("users"."staff_roles") > 0`))
	}
	if filter.IsActive != nil {
		mods = append(mods, qm.Where(`"users"."is_active" = ?`, *filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		mods = append(mods, qm.Where(`"users"."created_at" >= ?`, filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		mods = append(mods, qm.Where(`"users"."created_at" <= ?`, filter.CreatedTo.UTC()))
	}
	return mods
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.PageRequest, exec ...core.DBExecutor) ([]user.User, int, error) {
	exe := core.GetExec(repo.exec, exec)
	where := repo.filterMods(filter)

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(usersTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	mods := append(userMapping.selectAll(), where...)
	mods = append(mods, orderBy(usersTable, ordering, userOrderings, core.DBOrdering{Field: "created_at"}))
	mods = append(mods, paginate(page)...)

	var rows []userRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(rows), total, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	mods := append(userMapping.selectAll(), repo.alive())
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		mods = append(mods, qm.Where(`"users"."id" = ?`, filter.ID))
	case filter.Email != "":
		mods = append(mods, qm.Where(`lower("users"."email") = lower(?)`, filter.Email))
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unboil(r), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	r := repo.boil(usr)
	n, err := update(ctx, core.GetExec(repo.exec, exec), userMapping, r.ID, r, cond(`"deleted_at" IS NULL`))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(r), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec),
		`UPDATE "users" SET "deleted_at" = $1 WHERE "id" = ANY($2) AND "deleted_at" IS NULL`,
		core.NowFunc().UTC(), types.StringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return n, nil
}

func (repo userRepository) CreateRoleTransition(ctx context.Context, rt user.RoleTransition, exec ...core.DBExecutor) (user.RoleTransition, error) {
	rt.ID = uuid.New().String()
	r := roleTransitionRow{
		ID:                   rt.ID,
		UserID:               rt.UserID,
		FromRole:             rt.FromRole,
		ToRole:               rt.ToRole,
		ArchivedInstructorID: null.NewString(rt.ArchivedInstructorID, rt.ArchivedInstructorID != ""),
		ArchivedSchoolID:     null.NewString(rt.ArchivedSchoolID, rt.ArchivedSchoolID != ""),
		RestoredInstructorID: null.NewString(rt.RestoredInstructorID, rt.RestoredInstructorID != ""),
		RestoredSchoolID:     null.NewString(rt.RestoredSchoolID, rt.RestoredSchoolID != ""),
		CreatedAt:            rt.CreatedAt.UTC(),
	}
	if err := insert(ctx, core.GetExec(repo.exec, exec), roleTransitionMapping, r); err != nil {
		return user.RoleTransition{}, errors.Wrap(err, "inserting role transition")
	}
	return rt, nil
}

func (repo userRepository) QueryRoleTransitions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]user.RoleTransition, error) {
	mods := append(roleTransitionMapping.selectAll(),
		qm.Where(`"role_transitions"."user_id" = ?`, userID),
		qm.OrderBy(`"role_transitions"."created_at" DESC, "role_transitions"."id" DESC`),
	)

	var rows []roleTransitionRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying role transitions")
	}

	transitions := make([]user.RoleTransition, 0, len(rows))
	for _, r := range rows {
		transitions = append(transitions, user.RoleTransition{
			ID:                   r.ID,
			UserID:               r.UserID,
			FromRole:             r.FromRole,
			ToRole:               r.ToRole,
			ArchivedInstructorID: r.ArchivedInstructorID.String,
			ArchivedSchoolID:     r.ArchivedSchoolID.String,
			RestoredInstructorID: r.RestoredInstructorID.String,
			RestoredSchoolID:     r.RestoredSchoolID.String,
			CreatedAt:            r.CreatedAt.UTC(),
		})
	}
	return transitions, nil
}
