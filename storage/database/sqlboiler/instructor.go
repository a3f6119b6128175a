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
	"github.com/trezcool/slopeside/core/instructor"
)

const (
	instructorsTable         = "instructors"
	instructorSlugConstraint = "instructors_slug_key"
)

var (
	instructorMapping = mapTable(instructorsTable, instructorRow{})

	instructorOrderings = map[string]string{
		"avg_rating":   "avg_rating",
		"created_at":   "created_at",
		"display_name": "display_name",
	}
)

type instructorRow struct {
	ID              string            `boil:"id"`
	UserID          string            `boil:"user_id"`
	SchoolID        null.String       `boil:"school_id"`
	Slug            string            `boil:"slug"`
	DisplayName     string            `boil:"display_name"`
	Bio             string            `boil:"bio"`
	Sports          types.StringArray `boil:"sports"`
	Languages       types.StringArray `boil:"languages"`
	Certification   string            `boil:"certification"`
	YearsExperience int               `boil:"years_experience"`
	ResortIDs       types.StringArray `boil:"resort_ids"`
	HourlyRateHint  int               `boil:"hourly_rate_hint"`
	Verified        bool              `boil:"verified"`
	Published       bool              `boil:"published"`
	AvgRating       float64           `boil:"avg_rating"`
	ReviewCount     int               `boil:"review_count"`
	ArchivedAt      null.Time         `boil:"archived_at"`
	CreatedAt       time.Time         `boil:"created_at"`
	UpdatedAt       time.Time         `boil:"updated_at"`
	DeletedAt       null.Time         `boil:"deleted_at"`
}

type instructorRepository struct {
	exec core.DBExecutor
}

var _ instructor.Repository = (*instructorRepository)(nil) // interface compliance check

func NewInstructorRepository(exec core.DBExecutor) instructor.Repository {
	return &instructorRepository{exec: exec}
}

func (repo instructorRepository) boil(ins instructor.Instructor) instructorRow {
	return instructorRow{
		ID:              ins.ID,
		UserID:          ins.UserID,
		SchoolID:        nullStringPtr(ins.SchoolID),
		Slug:            ins.Slug,
		DisplayName:     ins.DisplayName,
		Bio:             ins.Bio,
		Sports:          emptyIfNil(ins.Sports),
		Languages:       emptyIfNil(ins.Languages),
		Certification:   ins.Certification,
		YearsExperience: ins.YearsExperience,
		ResortIDs:       emptyIfNil(ins.ResortIDs),
		HourlyRateHint:  ins.HourlyRateHint,
		Verified:        ins.Verified,
		Published:       ins.Published,
		AvgRating:       ins.AvgRating,
		ReviewCount:     ins.ReviewCount,
		ArchivedAt:      nullTimePtr(ins.ArchivedAt),
		CreatedAt:       ins.CreatedAt.UTC(),
		UpdatedAt:       ins.UpdatedAt.UTC(),
		DeletedAt:       nullTimePtr(ins.DeletedAt),
	}
}

func (repo instructorRepository) unboil(r instructorRow) instructor.Instructor {
	return instructor.Instructor{
		ID:              r.ID,
		UserID:          r.UserID,
		SchoolID:        stringPtr(r.SchoolID),
		Slug:            r.Slug,
		DisplayName:     r.DisplayName,
		Bio:             r.Bio,
		Sports:          emptyIfNil(r.Sports),
		Languages:       emptyIfNil(r.Languages),
		Certification:   r.Certification,
		YearsExperience: r.YearsExperience,
		ResortIDs:       emptyIfNil(r.ResortIDs),
		HourlyRateHint:  r.HourlyRateHint,
		Verified:        r.Verified,
		Published:       r.Published,
		AvgRating:       r.AvgRating,
		ReviewCount:     r.ReviewCount,
		ArchivedAt:      timePtr(r.ArchivedAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		DeletedAt:       timePtr(r.DeletedAt),
	}
}

func (repo instructorRepository) unboilSlice(rows []instructorRow) []instructor.Instructor {
	items := make([]instructor.Instructor, 0, len(rows))
	for _, r := range rows {
		items = append(items, repo.unboil(r))
	}
	return items
}

// public restricts to the profiles listed in the directory.
func (repo instructorRepository) public() []qm.QueryMod {
	return []qm.QueryMod{
		qm.Where(`"instructors"."published"`),
		qm.Where(`"instructors"."archived_at" IS NULL`),
		qm.Where(`"instructors"."deleted_at" IS NULL`),
		qm.Where(`EXISTS (SELECT 1 FROM "users" WHERE "users"."id" = "instructors"."user_id" AND "users"."deleted_at" IS NULL AND "users"."is_active")`),
	}
}

func (repo instructorRepository) CreateInstructor(ctx context.Context, ins instructor.Instructor, exec ...core.DBExecutor) (instructor.Instructor, error) {
	ins.ID = uuid.New().String()
	r := repo.boil(ins)
	if err := insert(ctx, core.GetExec(repo.exec, exec), instructorMapping, r); err != nil {
		if isUniqueViolation(err, instructorSlugConstraint) {
			return instructor.Instructor{}, instructor.ErrSlugExists
		}
		return instructor.Instructor{}, errors.Wrap(err, "inserting instructor")
	}
	return repo.unboil(r), nil
}

func (repo instructorRepository) GetInstructor(ctx context.Context, filter instructor.GetFilter, exec ...core.DBExecutor) (instructor.Instructor, error) {
	mods := append(instructorMapping.selectAll(), qm.Where(`"instructors"."deleted_at" IS NULL`))
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return instructor.Instructor{}, instructor.ErrNotFound
		}
		mods = append(mods, qm.Where(`"instructors"."id" = ?`, filter.ID))
	case filter.UserID != "":
		if !validUUID(filter.UserID) {
			return instructor.Instructor{}, instructor.ErrNotFound
		}
		mods = append(mods, qm.Where(`"instructors"."user_id" = ?`, filter.UserID))
	case filter.Slug != "":
		mods = append(mods, qm.Where(`"instructors"."slug" = ?`, filter.Slug))
	default:
		return instructor.Instructor{}, instructor.ErrNotFound
	}
	if !filter.IncludeArchived {
		mods = append(mods, qm.Where(`"instructors"."archived_at" IS NULL`))
	}
	if filter.PublicOnly {
		mods = append(mods, repo.public()...)
	}

	var r instructorRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return instructor.Instructor{}, trapNoRowsErr(err, instructor.ErrNotFound, "finding instructor")
	}
	return repo.unboil(r), nil
}

func (repo instructorRepository) UpdateInstructor(ctx context.Context, ins instructor.Instructor, exec ...core.DBExecutor) (instructor.Instructor, error) {
	r := repo.boil(ins)
	n, err := update(ctx, core.GetExec(repo.exec, exec), instructorMapping, r.ID, r, cond(`"deleted_at" IS NULL`))
	if err != nil {
		if isUniqueViolation(err, instructorSlugConstraint) {
			return instructor.Instructor{}, instructor.ErrSlugExists
		}
		return instructor.Instructor{}, errors.Wrap(err, "updating instructor")
	}
	if n == 0 {
		return instructor.Instructor{}, instructor.ErrNotFound
	}
	return repo.unboil(r), nil
}

func (repo instructorRepository) CheckSlugUniqueness(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) error {
	mods := []qm.QueryMod{
		qm.From(quote(instructorsTable)),
		qm.Where(`"instructors"."slug" = ?`, slug),
	}
	if excludedID != "" {
		mods = append(mods, qm.Where(`"instructors"."id" <> ?`, excludedID))
	}

	found, err := exists(ctx, core.GetExec(repo.exec, exec), mods...)
	if err != nil {
		return errors.Wrap(err, "checking slug uniqueness")
	}
	if found {
		return instructor.ErrSlugExists
	}
	return nil
}

func (repo instructorRepository) directoryMods(filter instructor.DirectoryFilter) []qm.QueryMod {
	mods := repo.public()
	if filter.Search != "" {
		val := likePattern(filter.Search)
		mods = append(mods, qm.Expr(
			qm.Where(`"instructors"."display_name" ILIKE ?`, val),
			qm.Or(`"instructors"."bio" ILIKE ?`, val),
		))
	}
	if filter.Sport != "" {
		mods = append(mods, qm.Where(`? = ANY("instructors"."sports")`, filter.Sport))
	}
	if filter.ResortID != "" {
		mods = append(mods, qm.Where(`? = ANY("instructors"."resort_ids")`, filter.ResortID))
	}
	if filter.Language != "" {
		mods = append(mods, qm.Where(`? = ANY("instructors"."languages")`, filter.Language))
	}
	if filter.SchoolID != "" {
		mods = append(mods, qm.Where(`"instructors"."school_id"::text = ?`, filter.SchoolID))
	}
	if filter.VerifiedOnly {
		mods = append(mods, qm.Where(`"instructors"."verified"`))
	}
	if filter.MinRating > 0 {
		mods = append(mods, qm.Where(`"instructors"."avg_rating" >= ?`, filter.MinRating))
	}
	return mods
}

func (repo instructorRepository) QueryDirectory(ctx context.Context, filter instructor.DirectoryFilter, ordering []core.DBOrdering, page core.PageRequest, exec ...core.DBExecutor) ([]instructor.Instructor, int, error) {
	exe := core.GetExec(repo.exec, exec)
	where := repo.directoryMods(filter)

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(instructorsTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting instructors")
	}

	mods := append(instructorMapping.selectAll(), where...)
	mods = append(mods, orderBy(instructorsTable, ordering, instructorOrderings,
		core.DBOrdering{Field: "avg_rating"}, core.DBOrdering{Field: "created_at"}))
	mods = append(mods, paginate(page)...)

	var rows []instructorRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying instructors")
	}
	return repo.unboilSlice(rows), total, nil
}

func (repo instructorRepository) QueryBySchool(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]instructor.Instructor, error) {
	if !validUUID(schoolID) {
		return []instructor.Instructor{}, nil
	}
	mods := append(instructorMapping.selectAll(),
		qm.Where(`"instructors"."school_id" = ?`, schoolID),
		qm.Where(`"instructors"."deleted_at" IS NULL`),
		qm.Where(`"instructors"."archived_at" IS NULL`),
		qm.OrderBy(`"instructors"."display_name" ASC`),
	)

	var rows []instructorRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying school instructors")
	}
	return repo.unboilSlice(rows), nil
}

func (repo instructorRepository) UpdateRating(ctx context.Context, id string, avg float64, reviews int, exec ...core.DBExecutor) error {
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec),
		`UPDATE "instructors" SET "avg_rating" = $1, "review_count" = $2 WHERE "id" = $3 AND "deleted_at" IS NULL`,
		avg, reviews, id)
	if err != nil {
		return errors.Wrap(err, "updating instructor rating")
	}
	if n == 0 {
		return instructor.ErrNotFound
	}
	return nil
}
