package instructor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("instructor not found")
	ErrSlugExists    = stderrors.New("this profile URL is already taken")
	ErrUnknownResort = stderrors.New("unknown or inactive resort")

	ErrIncompleteProfile = stderrors.New("profile is incomplete")
	errNoDisplayName     = stderrors.New("a display name is required to publish")
	errNoSports          = stderrors.New("at least one sport is required to publish")
	errNoResorts         = stderrors.New("at least one resort is required to publish")
	errNoBaseRate        = stderrors.New("a base hourly rate is required to publish")
)

const directoryVersionKey = "directory:version"

type (
	Repository interface {
		CreateInstructor(ctx context.Context, ins Instructor, exec ...core.DBExecutor) (Instructor, error)
		GetInstructor(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Instructor, error)
		UpdateInstructor(ctx context.Context, ins Instructor, exec ...core.DBExecutor) (Instructor, error)
		// CheckSlugUniqueness returns ErrSlugExists if a profile other than excludedID uses slug.
		CheckSlugUniqueness(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) error
		// QueryDirectory returns published, non-archived profiles of active users.
		QueryDirectory(ctx context.Context, filter DirectoryFilter, ordering []core.DBOrdering, page core.PageRequest, exec ...core.DBExecutor) ([]Instructor, int, error)
		QueryBySchool(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Instructor, error)
		UpdateRating(ctx context.Context, id string, avg float64, count int, exec ...core.DBExecutor) error
	}

	// BaseRateChecker tells whether an instructor has an active base hourly rate.
	BaseRateChecker interface {
		HasActiveBaseRule(ctx context.Context, instructorID string, exec ...core.DBExecutor) (bool, error)
	}

	// RatingSource aggregates the visible reviews of an instructor.
	RatingSource interface {
		RatingStats(ctx context.Context, instructorID string, exec ...core.DBExecutor) (avg float64, count int, err error)
	}

	// ResortChecker validates that resorts exist and are active.
	ResortChecker interface {
		CheckActive(ctx context.Context, ids []string) error
	}

	Deps struct {
		Repo      Repository
		BaseRates BaseRateChecker
		Ratings   RatingSource
		Resorts   ResortChecker
		Auditor   audit.Recorder
		Tx        core.TxRunner
		Cache     core.Cache
		CacheTTL  time.Duration
		Logger    core.Logger
	}

	Service struct {
		repo      Repository
		baseRates BaseRateChecker
		ratings   RatingSource
		resorts   ResortChecker
		auditor   audit.Recorder
		tx        core.TxRunner
		cache     core.Cache
		cacheTTL  time.Duration
		logger    core.Logger
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		repo:      deps.Repo,
		baseRates: deps.BaseRates,
		ratings:   deps.Ratings,
		resorts:   deps.Resorts,
		auditor:   deps.Auditor,
		tx:        deps.Tx,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		logger:    deps.Logger,
	}
}

// CreateEmptyProfile creates an unpublished profile for a new instructor.
func (svc *Service) CreateEmptyProfile(ctx context.Context, userID, displayName string, exec ...core.DBExecutor) error {
	_, err := svc.createEmpty(ctx, userID, displayName, exec...)
	return err
}

func (svc *Service) createEmpty(ctx context.Context, userID, displayName string, exec ...core.DBExecutor) (Instructor, error) {
	now := core.NowFunc()
	ins := Instructor{
		UserID:      userID,
		Slug:        svc.generateSlug(displayName),
		DisplayName: core.CleanString(displayName),
		Sports:      []string{},
		Languages:   []string{},
		ResortIDs:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ins, err := svc.repo.CreateInstructor(ctx, ins, exec...)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "inserting instructor")
	}
	return ins, nil
}

func (svc *Service) generateSlug(name string) string {
	slug := core.Slugify(name)
	if slug == "" {
		slug = "instructor"
	}
	return slug + "-" + strings.SplitN(uuid.New().String(), "-", 2)[0]
}

func (svc *Service) GetByID(ctx context.Context, id string) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, GetFilter{ID: id})
}

// GetByUserID returns the user's active (non-archived) profile.
func (svc *Service) GetByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, GetFilter{UserID: userID}, exec...)
}

// GetAnyByUserID returns the user's profile whatever its archive state.
func (svc *Service) GetAnyByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, GetFilter{UserID: userID, IncludeArchived: true}, exec...)
}

// GetBySlug returns a profile visible in the public directory.
func (svc *Service) GetBySlug(ctx context.Context, slug string) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, GetFilter{Slug: core.CleanString(slug, true /* lower */), PublicOnly: true})
}

// GetPublic returns a profile visible in the public directory.
func (svc *Service) GetPublic(ctx context.Context, id string) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, GetFilter{ID: id, PublicOnly: true})
}

func (svc *Service) Members(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Instructor, error) {
	members, err := svc.repo.QueryBySchool(ctx, schoolID, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying school members")
	}
	return members, nil
}

// UpdateProfile applies a validated partial update to the user's profile.
func (svc *Service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Instructor, error) {
	ins, err := svc.GetByUserID(ctx, userID)
	if err != nil {
		return Instructor{}, err
	}

	if up.Slug != nil && *up.Slug != ins.Slug {
		if err = svc.repo.CheckSlugUniqueness(ctx, *up.Slug, ins.ID); err != nil {
			if errors.Cause(err) == ErrSlugExists {
				return Instructor{}, core.NewFieldError("slug", ErrSlugExists)
			}
			return Instructor{}, errors.Wrap(err, "checking slug uniqueness")
		}
	}
	if len(up.ResortIDs) > 0 && svc.resorts != nil {
		if err = svc.resorts.CheckActive(ctx, up.ResortIDs); err != nil {
			if core.IsNotFound(err) {
				return Instructor{}, core.NewFieldError("resort_ids", ErrUnknownResort)
			}
			return Instructor{}, errors.Wrap(err, "checking resorts")
		}
	}

	up.apply(&ins)
	ins.UpdatedAt = core.NowFunc()
	if ins, err = svc.repo.UpdateInstructor(ctx, ins); err != nil {
		return Instructor{}, errors.Wrap(err, "updating instructor")
	}
	svc.BumpDirectory(ctx)
	return ins, nil
}

// Publish lists the profile in the directory once it is complete.
func (svc *Service) Publish(ctx context.Context, userID string) (Instructor, error) {
	ins, err := svc.GetByUserID(ctx, userID)
	if err != nil {
		return Instructor{}, err
	}

	var flds []core.FieldError
	if ins.DisplayName == "" {
		flds = append(flds, core.FieldError{Field: "display_name", Error: errNoDisplayName.Error()})
	}
	if len(ins.Sports) == 0 {
		flds = append(flds, core.FieldError{Field: "sports", Error: errNoSports.Error()})
	}
	if len(ins.ResortIDs) == 0 {
		flds = append(flds, core.FieldError{Field: "resort_ids", Error: errNoResorts.Error()})
	}
	hasRate, err := svc.baseRates.HasActiveBaseRule(ctx, ins.ID)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "checking base rate")
	}
	if !hasRate {
		flds = append(flds, core.FieldError{Field: "pricing", Error: errNoBaseRate.Error()})
	}
	if len(flds) > 0 {
		return Instructor{}, core.NewValidationError(ErrIncompleteProfile, flds...)
	}

	return svc.setPublished(ctx, ins, true)
}

func (svc *Service) Unpublish(ctx context.Context, userID string) (Instructor, error) {
	ins, err := svc.GetByUserID(ctx, userID)
	if err != nil {
		return Instructor{}, err
	}
	return svc.setPublished(ctx, ins, false)
}

func (svc *Service) setPublished(ctx context.Context, ins Instructor, published bool) (Instructor, error) {
	if ins.Published == published {
		return ins, nil
	}
	ins.Published = published
	ins.UpdatedAt = core.NowFunc()
	ins, err := svc.repo.UpdateInstructor(ctx, ins)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "updating instructor")
	}
	svc.BumpDirectory(ctx)
	return ins, nil
}

// SetVerified marks a profile as verified by staff.
func (svc *Service) SetVerified(ctx context.Context, actorID, instructorID string, verified bool) (Instructor, error) {
	ins, err := svc.GetByID(ctx, instructorID)
	if err != nil {
		return Instructor{}, err
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		ins.Verified = verified
		ins.UpdatedAt = core.NowFunc()
		if ins, err = svc.repo.UpdateInstructor(ctx, ins, exec); err != nil {
			return errors.Wrap(err, "updating instructor")
		}
		action := audit.ActionInstructorUnverified
		if verified {
			action = audit.ActionInstructorVerified
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     action,
			EntityType: audit.EntityInstructor,
			EntityID:   ins.ID,
		}, exec)
	})
	if err != nil {
		return Instructor{}, err
	}
	svc.BumpDirectory(ctx)
	return ins, nil
}

// SetSchool sets or clears (schoolID == nil) the school membership of a profile.
func (svc *Service) SetSchool(ctx context.Context, ins Instructor, schoolID *string, exec ...core.DBExecutor) (Instructor, error) {
	ins.SchoolID = schoolID
	ins.UpdatedAt = core.NowFunc()
	ins, err := svc.repo.UpdateInstructor(ctx, ins, exec...)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "updating instructor school")
	}
	svc.BumpDirectory(ctx)
	return ins, nil
}

// Archive hides a profile after its owner left the instructor role.
func (svc *Service) Archive(ctx context.Context, ins Instructor, exec ...core.DBExecutor) (Instructor, error) {
	now := core.NowFunc()
	ins.ArchivedAt = &now
	ins.Published = false
	ins.SchoolID = nil
	ins.UpdatedAt = now
	ins, err := svc.repo.UpdateInstructor(ctx, ins, exec...)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "archiving instructor")
	}
	svc.BumpDirectory(ctx)
	return ins, nil
}

// Restore un-archives a profile; it stays unpublished until its owner publishes it again.
func (svc *Service) Restore(ctx context.Context, ins Instructor, exec ...core.DBExecutor) (Instructor, error) {
	ins.ArchivedAt = nil
	ins.Published = false
	ins.UpdatedAt = core.NowFunc()
	ins, err := svc.repo.UpdateInstructor(ctx, ins, exec...)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "restoring instructor")
	}
	return ins, nil
}

// EnsureProfile restores the user's archived profile or creates an empty one.
// The returned bool reports whether an archived profile was restored.
func (svc *Service) EnsureProfile(ctx context.Context, userID, displayName string, exec ...core.DBExecutor) (Instructor, bool, error) {
	ins, err := svc.GetAnyByUserID(ctx, userID, exec...)
	switch {
	case err == nil && ins.IsArchived():
		ins, err = svc.Restore(ctx, ins, exec...)
		return ins, err == nil, err
	case err == nil:
		return ins, false, nil
	case core.IsNotFound(err):
		ins, err = svc.createEmpty(ctx, userID, displayName, exec...)
		return ins, false, err
	default:
		return Instructor{}, false, errors.Wrap(err, "finding instructor")
	}
}

// RecalculateRating refreshes the denormalized rating of a profile from its visible reviews.
func (svc *Service) RecalculateRating(ctx context.Context, instructorID string, exec ...core.DBExecutor) error {
	avg, count, err := svc.ratings.RatingStats(ctx, instructorID, exec...)
	if err != nil {
		return errors.Wrap(err, "aggregating reviews")
	}
	if err = svc.repo.UpdateRating(ctx, instructorID, avg, count, exec...); err != nil {
		return errors.Wrap(err, "updating rating")
	}
	svc.BumpDirectory(ctx)
	return nil
}

type directoryPage struct {
	Data  []Instructor `json:"data"`
	Total int          `json:"total"`
}

// Directory lists the public profiles. Results are cached until the next profile write.
func (svc *Service) Directory(ctx context.Context, filter DirectoryFilter, ordering []core.DBOrdering, page core.PageRequest) ([]Instructor, int, error) {
	filter.Clean()
	page = page.Normalize()

	key, cacheable := svc.directoryKey(ctx, filter, ordering, page)
	if cacheable {
		if raw, found, err := svc.cache.Get(ctx, key); err != nil {
			svc.logError("reading directory cache", err)
		} else if found {
			var cached directoryPage
			if err = json.Unmarshal(raw, &cached); err == nil {
				return cached.Data, cached.Total, nil
			}
		}
	}

	data, total, err := svc.repo.QueryDirectory(ctx, filter, ordering, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying directory")
	}

	if cacheable {
		if raw, err := json.Marshal(directoryPage{Data: data, Total: total}); err == nil {
			if err = svc.cache.Set(ctx, key, raw, svc.cacheTTL); err != nil {
				svc.logError("writing directory cache", err)
			}
		}
	}
	return data, total, nil
}

// directoryKey hashes the query with the current cache version.
func (svc *Service) directoryKey(ctx context.Context, filter DirectoryFilter, ordering []core.DBOrdering, page core.PageRequest) (string, bool) {
	if svc.cache == nil || svc.cacheTTL <= 0 {
		return "", false
	}
	version := "0"
	raw, found, err := svc.cache.Get(ctx, directoryVersionKey)
	if err != nil {
		svc.logError("reading directory cache version", err)
		return "", false
	}
	if found {
		version = string(raw)
	}

	payload, err := json.Marshal(struct {
		Filter   DirectoryFilter
		Ordering []core.DBOrdering
		Page     core.PageRequest
	}{filter, ordering, page})
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(payload)
	return "directory:" + version + ":" + hex.EncodeToString(sum[:]), true
}

// BumpDirectory invalidates every cached directory page.
func (svc *Service) BumpDirectory(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if _, err := svc.cache.Incr(ctx, directoryVersionKey); err != nil {
		svc.logError("bumping directory cache version", err)
	}
}

func (svc *Service) logError(msg string, err error) {
	if svc.logger != nil {
		svc.logger.Error(msg+": "+err.Error(), err)
	}
}

// ParseOrdering maps API ordering fields to repository columns.
func ParseOrdering(raw string) []core.DBOrdering {
	orderings := core.ParseOrdering(raw, DirectoryOrderings...)
	for i, ord := range orderings {
		if ord.Field == OrderRating {
			orderings[i].Field = "avg_rating"
		}
	}
	return orderings
}

// FormatRating is how ratings are displayed, e.g. 4.67.
func FormatRating(avg float64) string { return strconv.FormatFloat(avg, 'f', 2, 64) }
