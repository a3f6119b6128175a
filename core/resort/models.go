package resort

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

// Request statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}

type Resort struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Country   string    `json:"country"`
	Region    string    `json:"region"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Request struct {
	ID          string     `json:"id"`
	RequestedBy string     `json:"requested_by"`
	Name        string     `json:"name"`
	Country     string     `json:"country"`
	Region      string     `json:"region"`
	Status      string     `json:"status"`
	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note"`
	ResortID    *string    `json:"resort_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

func (req Request) IsPending() bool { return req.Status == StatusPending }

// NewResort is used by staff to add a resort directly; NewRequest by users to suggest one.
type NewResort struct {
	Name    string `json:"name" validate:"required,notblank,max=255"`
	Country string `json:"country" validate:"required,len=2,alpha"`
	Region  string `json:"region" validate:"max=255"`
}

func (nr *NewResort) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Country = normalizeCountry(nr.Country)
	nr.Region = core.CleanString(nr.Region)
	return validate.Struct(nr)
}

type NewRequest NewResort

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Country = normalizeCountry(nr.Country)
	nr.Region = core.CleanString(nr.Region)
	return validate.Struct(nr)
}

type ReviewRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

type QueryFilter struct {
	Search     string `query:"search"`
	Country    string `query:"country"`
	ActiveOnly bool   `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Country = normalizeCountry(qf.Country)
}

type RequestFilter struct {
	Status string `query:"status"`
}

func normalizeCountry(c string) string {
	return strings.ToUpper(core.CleanString(c))
}

// NormalizeName is the form duplicate resorts are compared in.
func NormalizeName(name string) string {
	return core.Slugify(name)
}
