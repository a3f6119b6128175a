package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

// Booking statuses
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusCompleted = "completed"
)

var Statuses = []string{StatusPending, StatusAccepted, StatusDeclined, StatusCancelled, StatusExpired, StatusCompleted}

// Skill levels
const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
	SkillExpert       = "expert"
)

// ReasonInstructorUnavailable is used when a request is declined because its instructor left the role.
const ReasonInstructorUnavailable = "instructor_unavailable"

// Deposit kinds & statuses
const (
	DepositLeadFee = "lead_fee"

	DepositPending  = "pending"
	DepositPaid     = "paid"
	DepositRefunded = "refunded"
)

const DateLayout = "2006-01-02"

type Booking struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"client_id"`
	InstructorID    string     `json:"instructor_id"`
	ResortID        string     `json:"resort_id"`
	Sport           string     `json:"sport"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	HoursPerDay     int        `json:"hours_per_day"`
	GroupSize       int        `json:"group_size"`
	SkillLevel      string     `json:"skill_level"`
	Message         string     `json:"message"`
	Status          string     `json:"status"`
	DeclineReason   string     `json:"decline_reason,omitempty"`
	QuotedCents     int        `json:"quoted_cents"`
	Currency        string     `json:"currency"`
	ContactUnlocked bool       `json:"contact_unlocked"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
}

func (b Booking) IsPending() bool  { return b.Status == StatusPending }
func (b Booking) IsAccepted() bool { return b.Status == StatusAccepted }

// IsTerminal reports whether the booking can no longer change status.
func (b Booking) IsTerminal() bool {
	switch b.Status {
	case StatusDeclined, StatusCancelled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

type Deposit struct {
	ID           string     `json:"id"`
	BookingID    string     `json:"booking_id"`
	InstructorID string     `json:"instructor_id"`
	Kind         string     `json:"kind"`
	AmountCents  int        `json:"amount_cents"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	ProviderRef  string     `json:"provider_ref,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
}

// Contact holds the client details an instructor unlocks with a lead fee.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type NewBooking struct {
	InstructorID string `json:"instructor_id" validate:"required,uuid"`
	ResortID     string `json:"resort_id" validate:"required,uuid"`
	Sport        string `json:"sport" validate:"required,sport"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	HoursPerDay  int    `json:"hours_per_day" validate:"min=1,max=8"`
	GroupSize    int    `json:"group_size" validate:"min=1,max=10"`
	SkillLevel   string `json:"skill_level" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Message      string `json:"message" validate:"max=2000"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.InstructorID = core.CleanString(nb.InstructorID)
	nb.ResortID = core.CleanString(nb.ResortID)
	nb.Sport = core.CleanString(nb.Sport, true /* lower */)
	nb.StartDate = core.CleanString(nb.StartDate)
	nb.EndDate = core.CleanString(nb.EndDate)
	nb.SkillLevel = core.CleanString(nb.SkillLevel, true /* lower */)
	nb.Message = core.CleanString(nb.Message)
	return validate.Struct(nb)
}

type Decline struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// Filter drives repository lookups; zero fields are ignored.
type Filter struct {
	ClientID     string
	InstructorID string
	Statuses     []string
	EndBefore    time.Time // end_date < EndBefore
	EndFrom      time.Time // end_date >= EndFrom
}

// ListFilter is what list endpoints accept.
type ListFilter struct {
	Status string `query:"status"`
}

func (lf ListFilter) statuses() []string {
	status := core.CleanString(lf.Status, true /* lower */)
	if status == "" || !core.ContainsString(Statuses, status) {
		return nil
	}
	return []string{status}
}

// PaymentEvent is what the payments provider posts once a lead fee is paid.
type PaymentEvent struct {
	DepositID   string `json:"deposit_id" validate:"required,uuid"`
	ProviderRef string `json:"provider_ref" validate:"required,max=255"`
}
