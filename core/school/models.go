package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

// Invitation statuses
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
	InvitationRevoked  = "revoked"
	InvitationExpired  = "expired"
)

type School struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Website     string     `json:"website"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	ResortIDs   []string   `json:"resort_ids"`
	Verified    bool       `json:"verified"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

func (s School) IsArchived() bool { return s.ArchivedAt != nil }

type Invitation struct {
	ID           string     `json:"id"`
	SchoolID     string     `json:"school_id"`
	Email        string     `json:"email"`
	InstructorID *string    `json:"instructor_id,omitempty"`
	Token        string     `json:"-"`
	Status       string     `json:"status"`
	InvitedBy    string     `json:"invited_by"`
	ExpiresAt    time.Time  `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
}

func (inv Invitation) IsPending() bool { return inv.Status == InvitationPending }

func (inv Invitation) IsExpired(now time.Time) bool { return !now.Before(inv.ExpiresAt) }

// SchoolData is how a school is created or updated (full replacement).
type SchoolData struct {
	Name        string   `json:"name" validate:"required,notblank,max=255"`
	Description string   `json:"description" validate:"max=5000"`
	Website     string   `json:"website" validate:"omitempty,url,max=255"`
	Email       string   `json:"email" validate:"omitempty,email,max=255"`
	Phone       string   `json:"phone" validate:"omitempty,e164"`
	ResortIDs   []string `json:"resort_ids" validate:"omitempty,max=20,dive,uuid"`
}

func (sd *SchoolData) Validate(validate *validator.Validate) error {
	sd.Name = core.CleanString(sd.Name)
	sd.Description = core.CleanString(sd.Description)
	sd.Website = core.CleanString(sd.Website)
	sd.Email = core.CleanString(sd.Email, true /* lower */)
	sd.Phone = core.CleanString(sd.Phone)
	sd.ResortIDs = core.CleanStrings(sd.ResortIDs)
	return validate.Struct(sd)
}

func (sd SchoolData) apply(s *School) {
	s.Name = sd.Name
	s.Description = sd.Description
	s.Website = sd.Website
	s.Email = sd.Email
	s.Phone = sd.Phone
	s.ResortIDs = sd.ResortIDs
	if s.ResortIDs == nil {
		s.ResortIDs = []string{}
	}
}

// EmailRequest carries the email address of an invitee or of a new owner.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (er *EmailRequest) Validate(validate *validator.Validate) error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return validate.Struct(er)
}

type QueryFilter struct {
	Search       string `query:"search"`
	ResortID     string `query:"resort"`
	VerifiedOnly bool   `query:"verified"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ResortID = core.CleanString(qf.ResortID)
}

// GetFilter looks a single school up by ID, Slug or OwnerID (in that order).
type GetFilter struct {
	ID              string
	Slug            string
	OwnerID         string
	IncludeArchived bool
}

type InvitationFilter struct {
	ID    string
	Token string
}
