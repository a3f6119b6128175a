package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/slopeside/core"
)

// Marketplace roles: a user holds exactly one of them.
const (
	RoleClient      = "client"
	RoleInstructor  = "instructor"
	RoleSchoolAdmin = "school_admin"
)

// Staff roles
const (
	StaffRoleAdmin     = "admin:"
	StaffRoleModerator = "admin:moderator"
	StaffRoleOwner     = "admin:owner"
)

var (
	MarketplaceRoles  = []string{RoleClient, RoleInstructor, RoleSchoolAdmin}
	RegistrationRoles = []string{RoleClient, RoleInstructor}
	StaffRoles        = []string{StaffRoleAdmin, StaffRoleModerator, StaffRoleOwner}

	staffRolePriorities = map[string]int{
		StaffRoleOwner:     30,
		StaffRoleModerator: 25,
		StaffRoleAdmin:     21,
	}

	Roles = []Role{
		{Name: "Client", Value: RoleClient},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "School Admin", Value: RoleSchoolAdmin},
		{Name: "Admin", Value: StaffRoleAdmin},
		{Name: "Moderator", Value: StaffRoleModerator},
		{Name: "Owner", Value: StaffRoleOwner},
	}
)

func RolePriority(role string) int {
	return staffRolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

func IsMarketplaceRole(role string) bool { return core.ContainsString(MarketplaceRoles, role) }

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Role         string     `json:"role"`
	StaffRoles   []string   `json:"staff_roles"`
	IsActive     *bool      `json:"is_active"`
	Locale       string     `json:"locale"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	LastLogin    time.Time  `json:"last_login"` // UTC
	DeletedAt    *time.Time `json:"-"`
}

var passwordHashCost = bcrypt.DefaultCost

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), passwordHashCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u User) StaffRoleStartsWith(prefix string) bool {
	for _, role := range u.StaffRoles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool       { return u.StaffRoleStartsWith(StaffRoleAdmin) }
func (u User) IsClient() bool      { return u.Role == RoleClient }
func (u User) IsInstructor() bool  { return u.Role == RoleInstructor }
func (u User) IsSchoolAdmin() bool { return u.Role == RoleSchoolAdmin }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required,notblank,max=255"`
	Email           string   `json:"email" validate:"required,email,max=255"`
	Phone           string   `json:"phone" validate:"omitempty,max=50"`
	Role            string   `json:"role" validate:"omitempty,role"`
	StaffRoles      []string `json:"staff_roles" validate:"omitempty,staffroles"`
	Locale          string   `json:"locale" validate:"omitempty,locale"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.Locale = core.CleanString(nu.Locale, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleClient
	}
	if nu.Locale == "" {
		nu.Locale = core.DefaultLocale
	}
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Marketplace roles only change through a role transition.
type UpdateUser struct {
	Name            string   `json:"name" validate:"omitempty,notblank,max=255"`
	Email           string   `json:"email" validate:"omitempty,email,max=255"`
	Phone           *string  `json:"phone" validate:"omitempty,max=50"`
	Locale          string   `json:"locale" validate:"omitempty,locale"`
	IsActive        *bool    `json:"is_active"`
	StaffRoles      []string `json:"staff_roles" validate:"omitempty,staffroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Phone != nil {
		phone := core.CleanString(*uu.Phone)
		uu.Phone = &phone
	}

	if locale := core.CleanString(uu.Locale, true /* lower */); locale != "" {
		uu.Locale = locale
	} else {
		uu.Locale = origUsr.Locale
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	StaffOnly   bool      `query:"staff"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && !qf.StaffOnly && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles, true /* lower */)
}

// GetFilter looks a single user up by ID or by Email (in that order).
type GetFilter struct {
	ID    string
	Email string
}

// RoleTransition records a marketplace role switch and the profiles it archived or restored.
type RoleTransition struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	FromRole             string    `json:"from_role"`
	ToRole               string    `json:"to_role"`
	ArchivedInstructorID string    `json:"archived_instructor_id,omitempty"`
	ArchivedSchoolID     string    `json:"archived_school_id,omitempty"`
	RestoredInstructorID string    `json:"restored_instructor_id,omitempty"`
	RestoredSchoolID     string    `json:"restored_school_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}
