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
	"github.com/trezcool/slopeside/core/school"
)

const (
	schoolsTable     = "schools"
	invitationsTable = "invitations"

	pendingInvitationConstraint = "invitations_pending_key"
)

var (
	schoolMapping     = mapTable(schoolsTable, schoolRow{})
	invitationMapping = mapTable(invitationsTable, invitationRow{})
)

type schoolRow struct {
	ID          string            `boil:"id"`
	OwnerID     string            `boil:"owner_id"`
	Name        string            `boil:"name"`
	Slug        string            `boil:"slug"`
	Description string            `boil:"description"`
	Website     string            `boil:"website"`
	Email       string            `boil:"email"`
	Phone       string            `boil:"phone"`
	ResortIDs   types.StringArray `boil:"resort_ids"`
	Verified    bool              `boil:"verified"`
	ArchivedAt  null.Time         `boil:"archived_at"`
	CreatedAt   time.Time         `boil:"created_at"`
	UpdatedAt   time.Time         `boil:"updated_at"`
	DeletedAt   null.Time         `boil:"deleted_at"`
}

type invitationRow struct {
	ID           string      `boil:"id"`
	SchoolID     string      `boil:"school_id"`
	Email        string      `boil:"email"`
	InstructorID null.String `boil:"instructor_id"`
	Token        string      `boil:"token"`
	Status       string      `boil:"status"`
	InvitedBy    string      `boil:"invited_by"`
	ExpiresAt    time.Time   `boil:"expires_at"`
	CreatedAt    time.Time   `boil:"created_at"`
	RespondedAt  null.Time   `boil:"responded_at"`
}

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) school.Repository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) boil(s school.School) schoolRow {
	return schoolRow{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		Name:        s.Name,
		Slug:        s.Slug,
		Description: s.Description,
		Website:     s.Website,
		Email:       s.Email,
		Phone:       s.Phone,
		ResortIDs:   emptyIfNil(s.ResortIDs),
		Verified:    s.Verified,
		ArchivedAt:  nullTimePtr(s.ArchivedAt),
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
		DeletedAt:   nullTimePtr(s.DeletedAt),
	}
}

func (repo schoolRepository) unboil(r schoolRow) school.School {
	return school.School{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Website:     r.Website,
		Email:       r.Email,
		Phone:       r.Phone,
		ResortIDs:   emptyIfNil(r.ResortIDs),
		Verified:    r.Verified,
		ArchivedAt:  timePtr(r.ArchivedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		DeletedAt:   timePtr(r.DeletedAt),
	}
}

func (repo schoolRepository) boilInvitation(inv school.Invitation) invitationRow {
	return invitationRow{
		ID:           inv.ID,
		SchoolID:     inv.SchoolID,
		Email:        inv.Email,
		InstructorID: nullStringPtr(inv.InstructorID),
		Token:        inv.Token,
		Status:       inv.Status,
		InvitedBy:    inv.InvitedBy,
		ExpiresAt:    inv.ExpiresAt.UTC(),
		CreatedAt:    inv.CreatedAt.UTC(),
		RespondedAt:  nullTimePtr(inv.RespondedAt),
	}
}

func (repo schoolRepository) unboilInvitation(r invitationRow) school.Invitation {
	return school.Invitation{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		Email:        r.Email,
		InstructorID: stringPtr(r.InstructorID),
		Token:        r.Token,
		Status:       r.Status,
		InvitedBy:    r.InvitedBy,
		ExpiresAt:    r.ExpiresAt.UTC(),
		CreatedAt:    r.CreatedAt.UTC(),
		RespondedAt:  timePtr(r.RespondedAt),
	}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	s.ID = uuid.New().String()
	r := repo.boil(s)
	if err := insert(ctx, core.GetExec(repo.exec, exec), schoolMapping, r); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return repo.unboil(r), nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, filter school.GetFilter, exec ...core.DBExecutor) (school.School, error) {
	mods := append(schoolMapping.selectAll(), qm.Where(`"schools"."deleted_at" IS NULL`))
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return school.School{}, school.ErrNotFound
		}
		mods = append(mods, qm.Where(`"schools"."id" = ?`, filter.ID))
	case filter.Slug != "":
		mods = append(mods, qm.Where(`"schools"."slug" = ?`, filter.Slug))
	case filter.OwnerID != "":
		if !validUUID(filter.OwnerID) {
			return school.School{}, school.ErrNotFound
		}
		mods = append(mods, qm.Where(`"schools"."owner_id" = ?`, filter.OwnerID))
	default:
		return school.School{}, school.ErrNotFound
	}
	if !filter.IncludeArchived {
		mods = append(mods, qm.Where(`"schools"."archived_at" IS NULL`))
	}

	var r schoolRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school")
	}
	return repo.unboil(r), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	r := repo.boil(s)
	n, err := update(ctx, core.GetExec(repo.exec, exec), schoolMapping, r.ID, r, cond(`"deleted_at" IS NULL`))
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return repo.unboil(r), nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, filter school.QueryFilter, page core.PageRequest, exec ...core.DBExecutor) ([]school.School, int, error) {
	exe := core.GetExec(repo.exec, exec)
	where := []qm.QueryMod{
		qm.Where(`"schools"."deleted_at" IS NULL`),
		qm.Where(`"schools"."archived_at" IS NULL`),
	}
	if filter.Search != "" {
		where = append(where, qm.Where(`"schools"."name" ILIKE ?`, likePattern(filter.Search)))
	}
	if filter.ResortID != "" {
		where = append(where, qm.Where(`? = ANY("schools"."resort_ids")`, filter.ResortID))
	}
	if filter.VerifiedOnly {
		where = append(where, qm.Where(`"schools"."verified"`))
	}

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(schoolsTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting schools")
	}

	mods := append(schoolMapping.selectAll(), where...)
	mods = append(mods, qm.OrderBy(`lower("schools"."name") ASC, "schools"."id" ASC`))
	mods = append(mods, paginate(page)...)

	var rows []schoolRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, repo.unboil(r))
	}
	return schools, total, nil
}

func (repo schoolRepository) SlugExists(ctx context.Context, slug string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, core.GetExec(repo.exec, exec),
		qm.From(quote(schoolsTable)),
		qm.Where(`"schools"."slug" = ?`, slug),
	)
	if err != nil {
		return false, errors.Wrap(err, "checking school slug")
	}
	return found, nil
}

func (repo schoolRepository) CreateInvitation(ctx context.Context, inv school.Invitation, exec ...core.DBExecutor) (school.Invitation, error) {
	inv.ID = uuid.New().String()
	r := repo.boilInvitation(inv)
	if err := insert(ctx, core.GetExec(repo.exec, exec), invitationMapping, r); err != nil {
		if isUniqueViolation(err, pendingInvitationConstraint) {
			return school.Invitation{}, school.ErrInvitationExists
		}
		return school.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return repo.unboilInvitation(r), nil
}

func (repo schoolRepository) GetInvitation(ctx context.Context, filter school.InvitationFilter, exec ...core.DBExecutor) (school.Invitation, error) {
	mods := invitationMapping.selectAll()
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return school.Invitation{}, school.ErrInvitationNotFound
		}
		mods = append(mods, qm.Where(`"invitations"."id" = ?`, filter.ID))
	case filter.Token != "":
		mods = append(mods, qm.Where(`"invitations"."token" = ?`, filter.Token))
	default:
		return school.Invitation{}, school.ErrInvitationNotFound
	}

	var r invitationRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return school.Invitation{}, trapNoRowsErr(err, school.ErrInvitationNotFound, "finding invitation")
	}
	return repo.unboilInvitation(r), nil
}

func (repo schoolRepository) UpdateInvitation(ctx context.Context, inv school.Invitation, exec ...core.DBExecutor) (school.Invitation, error) {
	r := repo.boilInvitation(inv)
	n, err := update(ctx, core.GetExec(repo.exec, exec), invitationMapping, r.ID, r)
	if err != nil {
		return school.Invitation{}, errors.Wrap(err, "updating invitation")
	}
	if n == 0 {
		return school.Invitation{}, school.ErrInvitationNotFound
	}
	return repo.unboilInvitation(r), nil
}

func (repo schoolRepository) QueryInvitations(ctx context.Context, schoolID string, statuses []string, exec ...core.DBExecutor) ([]school.Invitation, error) {
	mods := append(invitationMapping.selectAll(), qm.Where(`"invitations"."school_id" = ?`, schoolID))
	if len(statuses) > 0 {
		mods = append(mods, qm.Where(`"invitations"."status" = ANY(?)`, types.StringArray(statuses)))
	}
	mods = append(mods, qm.OrderBy(`"invitations"."created_at" DESC, "invitations"."id" ASC`))

	var rows []invitationRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	invitations := make([]school.Invitation, 0, len(rows))
	for _, r := range rows {
		invitations = append(invitations, repo.unboilInvitation(r))
	}
	return invitations, nil
}

func (repo schoolRepository) PendingInvitationExists(ctx context.Context, schoolID, email string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, core.GetExec(repo.exec, exec),
		qm.From(quote(invitationsTable)),
		qm.Where(`"invitations"."school_id" = ?`, schoolID),
		qm.Where(`"invitations"."status" = ?`, school.InvitationPending),
		qm.Where(`lower("invitations"."email") = lower(?)`, email),
	)
	if err != nil {
		return false, errors.Wrap(err, "checking pending invitation")
	}
	return found, nil
}

func (repo schoolRepository) ExpireInvitations(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error) {
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec),
		`UPDATE "invitations" SET "status" = $1, "responded_at" = $2 WHERE "status" = $3 AND "expires_at" <= $2`,
		school.InvitationExpired, now.UTC(), school.InvitationPending)
	if err != nil {
		return 0, errors.Wrap(err, "expiring invitations")
	}
	return n, nil
}
