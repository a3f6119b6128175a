package instructor

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

// Sports
const (
	SportSki          = "ski"
	SportSnowboard    = "snowboard"
	SportTelemark     = "telemark"
	SportFreeride     = "freeride"
	SportCrossCountry = "cross_country"
	SportAdaptive     = "adaptive"
)

var Sports = []string{SportSki, SportSnowboard, SportTelemark, SportFreeride, SportCrossCountry, SportAdaptive}

func IsSport(s string) bool { return core.ContainsString(Sports, s) }

type Instructor struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	SchoolID        *string    `json:"school_id"`
	Slug            string     `json:"slug"`
	DisplayName     string     `json:"display_name"`
	Bio             string     `json:"bio"`
	Sports          []string   `json:"sports"`
	Languages       []string   `json:"languages"`
	Certification   string     `json:"certification"`
	YearsExperience int        `json:"years_experience"`
	ResortIDs       []string   `json:"resort_ids"`
	HourlyRateHint  int        `json:"hourly_rate_hint"` // cents, display only
	Verified        bool       `json:"verified"`
	Published       bool       `json:"published"`
	AvgRating       float64    `json:"avg_rating"`
	ReviewCount     int        `json:"review_count"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

func (ins Instructor) IsArchived() bool { return ins.ArchivedAt != nil }

func (ins Instructor) HasSchool() bool { return ins.SchoolID != nil && *ins.SchoolID != "" }

func (ins Instructor) OffersSport(sport string) bool { return core.ContainsString(ins.Sports, sport) }

func (ins Instructor) WorksAt(resortID string) bool { return core.ContainsString(ins.ResortIDs, resortID) }

// UpdateProfile is a partial update: nil fields are left untouched.
type UpdateProfile struct {
	Slug            *string  `json:"slug" validate:"omitempty,slug,max=100"`
	DisplayName     *string  `json:"display_name" validate:"omitempty,notblank,max=255"`
	Bio             *string  `json:"bio" validate:"omitempty,max=5000"`
	Sports          []string `json:"sports" validate:"omitempty,max=6,dive,sport"`
	Languages       []string `json:"languages" validate:"omitempty,max=10,dive,len=2,alpha"`
	Certification   *string  `json:"certification" validate:"omitempty,max=255"`
	YearsExperience *int     `json:"years_experience" validate:"omitempty,min=0,max=70"`
	ResortIDs       []string `json:"resort_ids" validate:"omitempty,max=20,dive,uuid"`
	HourlyRateHint  *int     `json:"hourly_rate_hint" validate:"omitempty,min=0,max=1000000"`
}

func (up *UpdateProfile) Clean() {
	cleanPtr := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	cleanPtr(up.Slug, true)
	cleanPtr(up.DisplayName, false)
	cleanPtr(up.Bio, false)
	cleanPtr(up.Certification, false)
	up.Sports = uniqueStrings(core.CleanStrings(up.Sports, true /* lower */))
	up.Languages = uniqueStrings(core.CleanStrings(up.Languages, true /* lower */))
	up.ResortIDs = uniqueStrings(core.CleanStrings(up.ResortIDs))
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Clean()
	return validate.Struct(up)
}

func (up UpdateProfile) apply(ins *Instructor) {
	if up.Slug != nil {
		ins.Slug = *up.Slug
	}
	if up.DisplayName != nil {
		ins.DisplayName = *up.DisplayName
	}
	if up.Bio != nil {
		ins.Bio = *up.Bio
	}
	if up.Sports != nil {
		ins.Sports = up.Sports
	}
	if up.Languages != nil {
		ins.Languages = up.Languages
	}
	if up.Certification != nil {
		ins.Certification = *up.Certification
	}
	if up.YearsExperience != nil {
		ins.YearsExperience = *up.YearsExperience
	}
	if up.ResortIDs != nil {
		ins.ResortIDs = up.ResortIDs
	}
	if up.HourlyRateHint != nil {
		ins.HourlyRateHint = *up.HourlyRateHint
	}
}

type DirectoryFilter struct {
	Search       string  `query:"search"`
	Sport        string  `query:"sport"`
	ResortID     string  `query:"resort"`
	Language     string  `query:"language"`
	SchoolID     string  `query:"school"`
	VerifiedOnly bool    `query:"verified"`
	MinRating    float64 `query:"min_rating"`
}

func (df *DirectoryFilter) Clean() {
	df.Search = core.CleanString(df.Search)
	df.Sport = core.CleanString(df.Sport, true /* lower */)
	df.ResortID = core.CleanString(df.ResortID)
	df.Language = core.CleanString(df.Language, true /* lower */)
	df.SchoolID = core.CleanString(df.SchoolID)
	if df.MinRating < 0 {
		df.MinRating = 0
	}
}

// GetFilter looks a single profile up by ID, UserID or Slug (in that order).
// Archived profiles are only returned with IncludeArchived; PublicOnly restricts to the directory rules.
type GetFilter struct {
	ID              string
	UserID          string
	Slug            string
	IncludeArchived bool
	PublicOnly      bool
}

// Directory orderings, as accepted by the API
const (
	OrderRating      = "rating"
	OrderCreatedAt   = "created_at"
	OrderDisplayName = "display_name"
)

var DirectoryOrderings = []string{OrderRating, OrderCreatedAt, OrderDisplayName}

func uniqueStrings(items []string) []string {
	if items == nil {
		return nil
	}
	seen := make(map[string]bool, len(items))
	res := make([]string, 0, len(items))
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			res = append(res, s)
		}
	}
	return res
}
