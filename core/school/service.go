// Package school manages ski schools, the invitations they send to
// instructors and the transfer of their ownership.
package school

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/notification"
	"github.com/trezcool/slopeside/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("school not found")
	ErrInvitationNotFound = core.NewNotFoundError("invitation not found")
	ErrNotOwner           = core.NewForbiddenError("only the school owner can do this")
	ErrSchoolAdminsOnly   = core.NewForbiddenError("only school admins can own a school")
	ErrInstructorsOnly    = core.NewForbiddenError("only instructors can join a school")
	ErrWrongInvitee       = core.NewForbiddenError("this invitation was sent to another email address")
	ErrAlreadyOwnsSchool  = core.NewConflictError("this user already owns a school")
	ErrInvitationExists   = core.NewConflictError("an invitation is already pending for this email")
	ErrInvitationClosed   = core.NewConflictError("this invitation is no longer pending")
	ErrInvitationExpired  = core.NewConflictError("this invitation has expired")
	ErrAlreadyInSchool    = core.NewConflictError("you already belong to a school")
	ErrAlreadyMember      = core.NewConflictError("this instructor already belongs to the school")
	ErrNotInSchool        = core.NewConflictError("you do not belong to a school")
	ErrMemberNotFound     = core.NewNotFoundError("this instructor is not a member of the school")

	errInOtherSchool  = stderrors.New("this instructor already belongs to another school")
	errInvalidOwner   = stderrors.New("the new owner must be an active school admin")
	errOwnerHasSchool = stderrors.New("the new owner already owns a school")
	errSelfTransfer   = stderrors.New("you already own this school")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, s School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (School, error)
		UpdateSchool(ctx context.Context, s School, exec ...core.DBExecutor) (School, error)
		// QuerySchools returns non-archived schools ordered by name.
		QuerySchools(ctx context.Context, filter QueryFilter, page core.PageRequest, exec ...core.DBExecutor) ([]School, int, error)
		SlugExists(ctx context.Context, slug string, exec ...core.DBExecutor) (bool, error)

		// CreateInvitation returns ErrInvitationExists if the email already has a pending invitation to the school.
		CreateInvitation(ctx context.Context, inv Invitation, exec ...core.DBExecutor) (Invitation, error)
		GetInvitation(ctx context.Context, filter InvitationFilter, exec ...core.DBExecutor) (Invitation, error)
		UpdateInvitation(ctx context.Context, inv Invitation, exec ...core.DBExecutor) (Invitation, error)
		// QueryInvitations returns the invitations of a school, newest first.
		QueryInvitations(ctx context.Context, schoolID string, statuses []string, exec ...core.DBExecutor) ([]Invitation, error)
		PendingInvitationExists(ctx context.Context, schoolID, email string, exec ...core.DBExecutor) (bool, error)
		// ExpireInvitations marks every pending invitation past its expiry as expired.
		ExpireInvitations(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	ProfileManager interface {
		GetByID(ctx context.Context, id string) (instructor.Instructor, error)
		GetByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (instructor.Instructor, error)
		SetSchool(ctx context.Context, ins instructor.Instructor, schoolID *string, exec ...core.DBExecutor) (instructor.Instructor, error)
		Members(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]instructor.Instructor, error)
	}

	ResortChecker interface {
		CheckActive(ctx context.Context, ids []string) error
	}

	Deps struct {
		Repo        Repository
		Tx          core.TxRunner
		Users       UserFinder
		Instructors ProfileManager
		Resorts     ResortChecker
		Notifier    *notification.Notifier
		Auditor     audit.Recorder
		Conf        *core.Config
	}

	Service struct {
		repo          Repository
		tx            core.TxRunner
		users         UserFinder
		instructors   ProfileManager
		resorts       ResortChecker
		notifier      *notification.Notifier
		auditor       audit.Recorder
		invitationTTL time.Duration
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		repo:          deps.Repo,
		tx:            deps.Tx,
		users:         deps.Users,
		instructors:   deps.Instructors,
		resorts:       deps.Resorts,
		notifier:      deps.Notifier,
		auditor:       deps.Auditor,
		invitationTTL: deps.Conf.Marketplace.InvitationTTL,
	}
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{ID: id})
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{Slug: core.CleanString(slug, true /* lower */)})
}

// GetOwned returns the school owned by ownerID; archived ones only with includeArchived.
func (svc *Service) GetOwned(ctx context.Context, ownerID string, includeArchived bool, exec ...core.DBExecutor) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{OwnerID: ownerID, IncludeArchived: includeArchived}, exec...)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, page core.PageRequest) ([]School, int, error) {
	filter.Clean()
	schools, total, err := svc.repo.QuerySchools(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying schools")
	}
	return schools, total, nil
}

func (svc *Service) Members(ctx context.Context, schoolID string) ([]instructor.Instructor, error) {
	if _, err := svc.GetByID(ctx, schoolID); err != nil {
		return nil, err
	}
	return svc.instructors.Members(ctx, schoolID)
}

func (svc *Service) checkResorts(ctx context.Context, ids []string) error {
	if svc.resorts == nil || len(ids) == 0 {
		return nil
	}
	if err := svc.resorts.CheckActive(ctx, ids); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("resort_ids", instructor.ErrUnknownResort)
		}
		return errors.Wrap(err, "checking resorts")
	}
	return nil
}

func (svc *Service) generateSlug(ctx context.Context, name string) (string, error) {
	slug := core.Slugify(name)
	if slug == "" {
		slug = "school"
	}
	exists, err := svc.repo.SlugExists(ctx, slug)
	if err != nil {
		return "", errors.Wrap(err, "checking slug uniqueness")
	}
	if exists {
		slug += "-" + strings.SplitN(uuid.New().String(), "-", 2)[0]
	}
	return slug, nil
}

// Create opens a school owned by a school admin; an admin owns at most one active school.
func (svc *Service) Create(ctx context.Context, owner user.User, data SchoolData) (School, error) {
	if !owner.IsSchoolAdmin() {
		return School{}, ErrSchoolAdminsOnly
	}
	if _, err := svc.GetOwned(ctx, owner.ID, false); err == nil {
		return School{}, ErrAlreadyOwnsSchool
	} else if !core.IsNotFound(err) {
		return School{}, errors.Wrap(err, "finding owned school")
	}
	if err := svc.checkResorts(ctx, data.ResortIDs); err != nil {
		return School{}, err
	}

	slug, err := svc.generateSlug(ctx, data.Name)
	if err != nil {
		return School{}, err
	}
	now := core.NowFunc()
	s := School{OwnerID: owner.ID, Slug: slug, CreatedAt: now, UpdatedAt: now}
	data.apply(&s)
	if s, err = svc.repo.CreateSchool(ctx, s); err != nil {
		return School{}, errors.Wrap(err, "inserting school")
	}
	return s, nil
}

// owned returns the school if actorID owns it.
func (svc *Service) owned(ctx context.Context, actorID, schoolID string) (School, error) {
	s, err := svc.GetByID(ctx, schoolID)
	if err != nil {
		return School{}, err
	}
	if s.OwnerID != actorID {
		return School{}, ErrNotOwner
	}
	return s, nil
}

func (svc *Service) Update(ctx context.Context, actorID, schoolID string, data SchoolData) (School, error) {
	s, err := svc.owned(ctx, actorID, schoolID)
	if err != nil {
		return School{}, err
	}
	if err = svc.checkResorts(ctx, data.ResortIDs); err != nil {
		return School{}, err
	}
	data.apply(&s)
	s.UpdatedAt = core.NowFunc()
	if s, err = svc.repo.UpdateSchool(ctx, s); err != nil {
		return School{}, errors.Wrap(err, "updating school")
	}
	return s, nil
}

// SetVerified marks a school as verified by staff.
func (svc *Service) SetVerified(ctx context.Context, actorID, schoolID string, verified bool) (School, error) {
	s, err := svc.GetByID(ctx, schoolID)
	if err != nil {
		return School{}, err
	}
	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		s.Verified = verified
		s.UpdatedAt = core.NowFunc()
		if s, err = svc.repo.UpdateSchool(ctx, s, exec); err != nil {
			return errors.Wrap(err, "updating school")
		}
		action := audit.ActionSchoolUnverified
		if verified {
			action = audit.ActionSchoolVerified
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     action,
			EntityType: audit.EntitySchool,
			EntityID:   s.ID,
		}, exec)
	})
	if err != nil {
		return School{}, err
	}
	return s, nil
}

// Invite sends a join invitation to an email address.
func (svc *Service) Invite(ctx context.Context, actor user.User, schoolID, email string) (Invitation, error) {
	s, err := svc.owned(ctx, actor.ID, schoolID)
	if err != nil {
		return Invitation{}, err
	}
	email = core.CleanString(email, true /* lower */)

	pending, err := svc.repo.PendingInvitationExists(ctx, s.ID, email)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "checking pending invitations")
	}
	if pending {
		return Invitation{}, ErrInvitationExists
	}

	invitee := notification.Recipient{Name: email, Email: email}
	var instructorID *string
	if usr, err := svc.users.GetByEmail(ctx, email); err == nil {
		invitee = user.Recipient(usr)
		if usr.IsInstructor() {
			ins, err := svc.instructors.GetByUserID(ctx, usr.ID)
			if err != nil && !core.IsNotFound(err) {
				return Invitation{}, errors.Wrap(err, "finding invitee profile")
			}
			if err == nil {
				if ins.HasSchool() && *ins.SchoolID == s.ID {
					return Invitation{}, ErrAlreadyMember
				}
				if ins.HasSchool() {
					return Invitation{}, core.NewFieldError("email", errInOtherSchool)
				}
				instructorID = &ins.ID
			}
		}
	} else if !core.IsNotFound(err) {
		return Invitation{}, errors.Wrap(err, "finding invitee")
	}

	now := core.NowFunc()
	inv := Invitation{
		SchoolID:     s.ID,
		Email:        email,
		InstructorID: instructorID,
		Token:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		Status:       InvitationPending,
		InvitedBy:    actor.ID,
		ExpiresAt:    now.Add(svc.invitationTTL),
		CreatedAt:    now,
	}
	if inv, err = svc.repo.CreateInvitation(ctx, inv); err != nil {
		if errors.Cause(err) == ErrInvitationExists {
			return Invitation{}, ErrInvitationExists
		}
		return Invitation{}, errors.Wrap(err, "inserting invitation")
	}

	svc.notifier.InvitationSent(invitee, notification.InvitationData{
		SchoolName:  s.Name,
		InviterName: actor.Name,
		Token:       inv.Token,
		ExpiresAt:   notification.FormatDate(inv.ExpiresAt),
	})
	return inv, nil
}

// respondable returns the pending invitation behind token if it was sent to usr.
func (svc *Service) respondable(ctx context.Context, usr user.User, token string) (Invitation, error) {
	inv, err := svc.repo.GetInvitation(ctx, InvitationFilter{Token: core.CleanString(token)})
	if err != nil {
		return Invitation{}, err
	}
	if !strings.EqualFold(inv.Email, usr.Email) {
		return Invitation{}, ErrWrongInvitee
	}
	if !inv.IsPending() {
		return Invitation{}, ErrInvitationClosed
	}
	if inv.IsExpired(core.NowFunc()) {
		return Invitation{}, ErrInvitationExpired
	}
	return inv, nil
}

// AcceptInvitation makes the instructor a member of the inviting school.
// Other pending invitations sent to the same email stay pending.
func (svc *Service) AcceptInvitation(ctx context.Context, usr user.User, token string) (Invitation, error) {
	if !usr.IsInstructor() {
		return Invitation{}, ErrInstructorsOnly
	}
	inv, err := svc.respondable(ctx, usr, token)
	if err != nil {
		return Invitation{}, err
	}
	s, err := svc.GetByID(ctx, inv.SchoolID)
	if err != nil {
		return Invitation{}, err
	}

	var ins instructor.Instructor
	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if ins, err = svc.instructors.GetByUserID(ctx, usr.ID, exec); err != nil {
			return err
		}
		if ins.HasSchool() {
			return ErrAlreadyInSchool
		}
		if ins, err = svc.instructors.SetSchool(ctx, ins, &s.ID, exec); err != nil {
			return err
		}
		now := core.NowFunc()
		inv.Status = InvitationAccepted
		inv.InstructorID = &ins.ID
		inv.RespondedAt = &now
		if inv, err = svc.repo.UpdateInvitation(ctx, inv, exec); err != nil {
			return errors.Wrap(err, "updating invitation")
		}
		return nil
	})
	if err != nil {
		return Invitation{}, err
	}

	if owner, err := svc.users.GetByID(ctx, s.OwnerID); err == nil {
		svc.notifier.InvitationAccepted(user.Recipient(owner), notification.InvitationData{
			SchoolName:     s.Name,
			InstructorName: ins.DisplayName,
		})
	}
	return inv, nil
}

func (svc *Service) DeclineInvitation(ctx context.Context, usr user.User, token string) (Invitation, error) {
	inv, err := svc.respondable(ctx, usr, token)
	if err != nil {
		return Invitation{}, err
	}
	return svc.closeInvitation(ctx, inv, InvitationDeclined)
}

func (svc *Service) RevokeInvitation(ctx context.Context, actorID, schoolID, invitationID string) (Invitation, error) {
	s, err := svc.owned(ctx, actorID, schoolID)
	if err != nil {
		return Invitation{}, err
	}
	inv, err := svc.repo.GetInvitation(ctx, InvitationFilter{ID: invitationID})
	if err != nil {
		return Invitation{}, err
	}
	if inv.SchoolID != s.ID {
		return Invitation{}, ErrInvitationNotFound
	}
	if !inv.IsPending() {
		return Invitation{}, ErrInvitationClosed
	}
	return svc.closeInvitation(ctx, inv, InvitationRevoked)
}

func (svc *Service) closeInvitation(ctx context.Context, inv Invitation, status string, exec ...core.DBExecutor) (Invitation, error) {
	now := core.NowFunc()
	inv.Status = status
	inv.RespondedAt = &now
	inv, err := svc.repo.UpdateInvitation(ctx, inv, exec...)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "updating invitation")
	}
	return inv, nil
}

func (svc *Service) ListInvitations(ctx context.Context, actorID, schoolID string) ([]Invitation, error) {
	s, err := svc.owned(ctx, actorID, schoolID)
	if err != nil {
		return nil, err
	}
	invs, err := svc.repo.QueryInvitations(ctx, s.ID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	return invs, nil
}

// RevokePending revokes every pending invitation of a school inside the caller's transaction.
func (svc *Service) RevokePending(ctx context.Context, schoolID string, exec core.DBExecutor) (int, error) {
	pending, err := svc.repo.QueryInvitations(ctx, schoolID, []string{InvitationPending}, exec)
	if err != nil {
		return 0, errors.Wrap(err, "querying pending invitations")
	}
	for _, inv := range pending {
		if _, err = svc.closeInvitation(ctx, inv, InvitationRevoked, exec); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

// ExpireInvitations expires pending invitations past their expiry date.
func (svc *Service) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	n, err := svc.repo.ExpireInvitations(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring invitations")
	}
	return n, nil
}

func (svc *Service) RemoveInstructor(ctx context.Context, actorID, schoolID, instructorID string) error {
	s, err := svc.owned(ctx, actorID, schoolID)
	if err != nil {
		return err
	}
	ins, err := svc.instructors.GetByID(ctx, instructorID)
	if err != nil {
		return err
	}
	if !ins.HasSchool() || *ins.SchoolID != s.ID {
		return ErrMemberNotFound
	}
	_, err = svc.instructors.SetSchool(ctx, ins, nil)
	return err
}

func (svc *Service) LeaveSchool(ctx context.Context, userID string) error {
	ins, err := svc.instructors.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !ins.HasSchool() {
		return ErrNotInSchool
	}
	_, err = svc.instructors.SetSchool(ctx, ins, nil)
	return err
}

// TransferOwnership hands a school over to another active school admin.
func (svc *Service) TransferOwnership(ctx context.Context, actor user.User, schoolID, newOwnerEmail string) (School, error) {
	s, err := svc.owned(ctx, actor.ID, schoolID)
	if err != nil {
		return School{}, err
	}
	next, err := svc.users.GetByEmail(ctx, newOwnerEmail)
	if err != nil {
		if core.IsNotFound(err) {
			return School{}, core.NewFieldError("email", errInvalidOwner)
		}
		return School{}, err
	}
	switch {
	case next.ID == actor.ID:
		return School{}, core.NewFieldError("email", errSelfTransfer)
	case !next.Active() || !next.IsSchoolAdmin():
		return School{}, core.NewFieldError("email", errInvalidOwner)
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.GetOwned(ctx, next.ID, false, exec); err == nil {
			return core.NewFieldError("email", errOwnerHasSchool)
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding owned school")
		}

		previousOwner := s.OwnerID
		s.OwnerID = next.ID
		s.UpdatedAt = core.NowFunc()
		if s, err = svc.repo.UpdateSchool(ctx, s, exec); err != nil {
			return errors.Wrap(err, "updating school")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionOwnershipTransferred,
			EntityType: audit.EntitySchool,
			EntityID:   s.ID,
			Metadata:   map[string]interface{}{"from": previousOwner, "to": next.ID},
		}, exec)
	})
	if err != nil {
		return School{}, err
	}

	svc.notifier.OwnershipTransferred(user.Recipient(actor), user.Recipient(next), s.Name)
	return s, nil
}

// Archive hides a school after its owner left the school admin role.
func (svc *Service) Archive(ctx context.Context, s School, exec core.DBExecutor) (School, error) {
	now := core.NowFunc()
	s.ArchivedAt = &now
	s.UpdatedAt = now
	s, err := svc.repo.UpdateSchool(ctx, s, exec)
	if err != nil {
		return School{}, errors.Wrap(err, "archiving school")
	}
	return s, nil
}

func (svc *Service) Restore(ctx context.Context, s School, exec core.DBExecutor) (School, error) {
	s.ArchivedAt = nil
	s.UpdatedAt = core.NowFunc()
	s, err := svc.repo.UpdateSchool(ctx, s, exec)
	if err != nil {
		return School{}, errors.Wrap(err, "restoring school")
	}
	return s, nil
}

// HasMembers reports whether a school still has member instructors.
func (svc *Service) HasMembers(ctx context.Context, schoolID string, exec core.DBExecutor) (bool, error) {
	members, err := svc.instructors.Members(ctx, schoolID, exec)
	if err != nil {
		return false, err
	}
	return len(members) > 0, nil
}
