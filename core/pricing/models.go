package pricing

import (
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

// Rule kinds
const (
	KindBaseHourly   = "base_hourly"
	KindDurationTier = "duration_tier"
	KindMultiDay     = "multi_day"
	KindGroupExtra   = "group_extra"
	KindPeakPeriod   = "peak_period"
)

var Kinds = []string{KindBaseHourly, KindDurationTier, KindMultiDay, KindGroupExtra, KindPeakPeriod}

// Booking bounds
const (
	MinHoursPerDay = 1
	MaxHoursPerDay = 8
	MinGroupSize   = 1
	MaxGroupSize   = 10
	MaxDays        = 30
)

const DateLayout = "2006-01-02"

var (
	errAmountRequired  = stderrors.New("an amount greater than 0 is required")
	errPercentRange    = stderrors.New("the percentage must be between 1 and 100")
	errMinHoursRange   = stderrors.New("the minimum hours must be between 1 and 8")
	errMinDaysRange    = stderrors.New("the minimum days must be between 2 and 30")
	errGroupSizeRange  = stderrors.New("the minimum group size must be between 2 and 10")
	errPeriodRequired  = stderrors.New("start and end dates are required")
	errInvalidPeriod   = stderrors.New("the end date must not be before the start date")
	errInvalidDate     = stderrors.New("dates must be formatted as YYYY-MM-DD")
	errRuleKindChanged = stderrors.New("the kind of a rule cannot be changed")
)

type Rule struct {
	ID           string     `json:"id"`
	InstructorID string     `json:"instructor_id"`
	Kind         string     `json:"kind"`
	AmountCents  int        `json:"amount_cents"`
	Percent      int        `json:"percent"`
	MinHours     int        `json:"min_hours"`
	MinDays      int        `json:"min_days"`
	MinGroupSize int        `json:"min_group_size"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// covers reports whether day falls within a peak period.
func (r Rule) covers(day time.Time) bool {
	if r.StartDate == nil || r.EndDate == nil {
		return false
	}
	return !day.Before(core.Day(*r.StartDate)) && !day.After(core.Day(*r.EndDate))
}

// check validates the fields required by the rule kind.
func (r Rule) check() []core.FieldError {
	var flds []core.FieldError
	add := func(field string, err error) {
		flds = append(flds, core.FieldError{Field: field, Error: err.Error()})
	}
	percentOK := r.Percent >= 1 && r.Percent <= 100

	switch r.Kind {
	case KindBaseHourly:
		if r.AmountCents <= 0 {
			add("amount_cents", errAmountRequired)
		}
	case KindDurationTier:
		if !percentOK {
			add("percent", errPercentRange)
		}
		if r.MinHours < MinHoursPerDay || r.MinHours > MaxHoursPerDay {
			add("min_hours", errMinHoursRange)
		}
	case KindMultiDay:
		if !percentOK {
			add("percent", errPercentRange)
		}
		if r.MinDays < 2 || r.MinDays > MaxDays {
			add("min_days", errMinDaysRange)
		}
	case KindGroupExtra:
		if r.AmountCents <= 0 {
			add("amount_cents", errAmountRequired)
		}
		if r.MinGroupSize < 2 || r.MinGroupSize > MaxGroupSize {
			add("min_group_size", errGroupSizeRange)
		}
	case KindPeakPeriod:
		if !percentOK {
			add("percent", errPercentRange)
		}
		switch {
		case r.StartDate == nil || r.EndDate == nil:
			add("start_date", errPeriodRequired)
		case r.EndDate.Before(*r.StartDate):
			add("end_date", errInvalidPeriod)
		}
	}
	return flds
}

type NewRule struct {
	Kind         string `json:"kind" validate:"required,pricingkind"`
	AmountCents  int    `json:"amount_cents" validate:"min=0,max=10000000"`
	Percent      int    `json:"percent" validate:"min=0,max=100"`
	MinHours     int    `json:"min_hours" validate:"min=0"`
	MinDays      int    `json:"min_days" validate:"min=0"`
	MinGroupSize int    `json:"min_group_size" validate:"min=0"`
	StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (nr *NewRule) Validate(validate *validator.Validate) error {
	nr.Kind = core.CleanString(nr.Kind, true /* lower */)
	nr.StartDate = core.CleanString(nr.StartDate)
	nr.EndDate = core.CleanString(nr.EndDate)
	return validate.Struct(nr)
}

// UpdateRule replaces the amounts of a rule; its kind never changes.
type UpdateRule struct {
	Kind         string `json:"kind"`
	AmountCents  int    `json:"amount_cents" validate:"min=0,max=10000000"`
	Percent      int    `json:"percent" validate:"min=0,max=100"`
	MinHours     int    `json:"min_hours" validate:"min=0"`
	MinDays      int    `json:"min_days" validate:"min=0"`
	MinGroupSize int    `json:"min_group_size" validate:"min=0"`
	StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Active       *bool  `json:"active"`
}

func (ur *UpdateRule) Validate(validate *validator.Validate) error {
	ur.Kind = core.CleanString(ur.Kind, true /* lower */)
	ur.StartDate = core.CleanString(ur.StartDate)
	ur.EndDate = core.CleanString(ur.EndDate)
	return validate.Struct(ur)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, errInvalidDate
	}
	return &d, nil
}

// QuoteRequest is the input of the price calculator.
type QuoteRequest struct {
	InstructorID string `json:"-"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	HoursPerDay  int    `json:"hours_per_day" validate:"min=1,max=8"`
	GroupSize    int    `json:"group_size" validate:"min=1,max=10"`
}

func (qr *QuoteRequest) Validate(validate *validator.Validate) error {
	qr.StartDate = core.CleanString(qr.StartDate)
	qr.EndDate = core.CleanString(qr.EndDate)
	return validate.Struct(qr)
}

// Lesson is a parsed quote request.
type Lesson struct {
	Start       time.Time
	End         time.Time
	HoursPerDay int
	GroupSize   int
}

// Lesson parses the request dates.
func (qr QuoteRequest) Lesson() (Lesson, error) {
	start, err := time.Parse(DateLayout, qr.StartDate)
	if err != nil {
		return Lesson{}, core.NewFieldError("start_date", errInvalidDate)
	}
	end, err := time.Parse(DateLayout, qr.EndDate)
	if err != nil {
		return Lesson{}, core.NewFieldError("end_date", errInvalidDate)
	}
	return Lesson{Start: start, End: end, HoursPerDay: qr.HoursPerDay, GroupSize: qr.GroupSize}, nil
}

type QuoteLine struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	AmountCents int    `json:"amount_cents"` // negative for discounts
}

type Quote struct {
	Days          int         `json:"days"`
	HoursPerDay   int         `json:"hours_per_day"`
	GroupSize     int         `json:"group_size"`
	Currency      string      `json:"currency"`
	Lines         []QuoteLine `json:"lines"`
	SubtotalCents int         `json:"subtotal_cents"`
	DiscountCents int         `json:"discount_cents"`
	TotalCents    int         `json:"total_cents"`
}
