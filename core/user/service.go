package user

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/notification"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("user not found")
	ErrEmailExists       = stderrors.New("a user with this email already exists")
	ErrRegistrationRole  = stderrors.New("you can only sign up as a client or an instructor")
	ErrInvalidResetLink  = stderrors.New("the password reset link is invalid or has expired")
	ErrCannotSuspendSelf = core.NewForbiddenError("you cannot suspend your own account")
	ErrInsufficientPrivs = core.NewForbiddenError("not enough rights to manage this account")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if another (non-deleted) user has email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.PageRequest, exec ...core.DBExecutor) ([]User, int, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// DeleteUsersByID soft-deletes users.
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		CreateRoleTransition(ctx context.Context, rt RoleTransition, exec ...core.DBExecutor) (RoleTransition, error)
		QueryRoleTransitions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]RoleTransition, error)
	}

	// Profiles gives new instructors an empty, unpublished profile.
	// Account suspension and deletion hide profiles, so both refresh the public directory.
	Profiles interface {
		CreateEmptyProfile(ctx context.Context, userID, displayName string, exec ...core.DBExecutor) error
		BumpDirectory(ctx context.Context)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.PageRequest) ([]User, int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetActive(ctx context.Context, actor User, id string, active bool) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) (User, error)
		ListTransitions(ctx context.Context, userID string) ([]RoleTransition, error)
	}

	Deps struct {
		Repo     Repository
		Tx       core.TxRunner
		Profiles Profiles
		Notifier *notification.Notifier
		Tokens   *TokenGenerator
		Auditor  audit.Recorder
	}

	service struct {
		repo     Repository
		tx       core.TxRunner
		profiles Profiles
		notifier *notification.Notifier
		tokens   *TokenGenerator
		auditor  audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		profiles: deps.Profiles,
		notifier: deps.Notifier,
		tokens:   deps.Tokens,
		auditor:  deps.Auditor,
	}
}

func Recipient(usr User) notification.Recipient {
	return notification.Recipient{Name: usr.Name, Email: usr.Email, Locale: usr.Locale}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedUsers); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *service) newUser(nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Phone:      nu.Phone,
		Role:       nu.Role,
		StaffRoles: nu.StaffRoles,
		Locale:     nu.Locale,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if usr.Role == "" {
		usr.Role = RoleClient
	}
	if usr.Locale == "" {
		usr.Locale = core.DefaultLocale
	}
	if usr.StaffRoles == nil {
		usr.StaffRoles = []string{}
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return usr, nil
}

// create inserts the user and, for instructors, their empty profile in one transaction.
func (svc *service) create(ctx context.Context, usr User) (User, error) {
	err := svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "inserting user")
		}
		if usr.IsInstructor() && svc.profiles != nil {
			if err = svc.profiles.CreateEmptyProfile(ctx, usr.ID, usr.Name, exec); err != nil {
				return errors.Wrap(err, "creating instructor profile")
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// Create is used by admins: any marketplace role and staff roles are allowed.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	return svc.create(ctx, usr)
}

// Register is the public sign-up: clients & instructors only, no staff roles.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role == "" {
		nu.Role = RoleClient
	}
	if !core.ContainsString(RegistrationRoles, nu.Role) {
		return User{}, core.NewFieldError("role", ErrRegistrationRole)
	}
	nu.StaffRoles = nil

	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	if usr, err = svc.create(ctx, usr); err != nil {
		return User{}, err
	}
	svc.notifier.Welcome(Recipient(usr))
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.PageRequest) ([]User, int, error) {
	if filter != nil {
		filter.Clean()
	}
	users, total, err := svc.repo.QueryUsers(ctx, filter, ordering, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	return users, total, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Locale = uu.Locale
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.StaffRoles != nil {
		usr.StaffRoles = uu.StaffRoles
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = core.NowFunc()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	if uu.IsActive != nil && usr.IsInstructor() {
		svc.bumpDirectory(ctx)
	}
	return usr, nil
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetActive suspends or reactivates an account (staff only).
func (svc *service) SetActive(ctx context.Context, actor User, id string, active bool) (User, error) {
	if actor.ID == id && !active {
		return User{}, ErrCannotSuspendSelf
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	// a staff member cannot suspend a user with a higher staff role than theirs
	if MaxRolePriority(usr.StaffRoles) > MaxRolePriority(actor.StaffRoles) {
		return User{}, ErrInsufficientPrivs
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		usr.SetActive(active)
		usr.UpdatedAt = core.NowFunc()
		if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "updating user")
		}
		action := audit.ActionUserSuspended
		if active {
			action = audit.ActionUserReactivated
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     action,
			EntityType: audit.EntityUser,
			EntityID:   usr.ID,
		}, exec)
	})
	if err != nil {
		return User{}, err
	}
	if usr.IsInstructor() {
		svc.bumpDirectory(ctx)
	}
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	n, err := svc.repo.DeleteUsersByID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	if n > 0 {
		svc.bumpDirectory(ctx)
	}
	return nil
}

func (svc *service) bumpDirectory(ctx context.Context) {
	if svc.profiles != nil {
		svc.profiles.BumpDirectory(ctx)
	}
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.notifier.PasswordReset(Recipient(usr), EncodeUID(usr), token)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	invalidLink := core.NewValidationError(ErrInvalidResetLink)

	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, invalidLink
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, invalidLink
		}
		return User{}, err
	}
	if err = svc.tokens.VerifyToken(usr, data.Token); err != nil {
		return User{}, invalidLink
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ListTransitions(ctx context.Context, userID string) ([]RoleTransition, error) {
	transitions, err := svc.repo.QueryRoleTransitions(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying role transitions")
	}
	return transitions, nil
}

