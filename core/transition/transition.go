// Package transition switches users between marketplace roles. Leaving a role
// archives what belonged to it; coming back restores it.
package transition

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/user"
)

var (
	// errors
	ErrHasUpcomingBookings = core.NewConflictError("you still have upcoming accepted bookings")
	ErrSchoolHasMembers    = core.NewConflictError("your school still has instructors: transfer its ownership or remove them first")

	errInvalidRole = stderrors.New("unknown marketplace role")
	errSameRole    = stderrors.New("you already have this role")
)

type Deps struct {
	Users       user.Repository
	Instructors *instructor.Service
	Schools     *school.Service
	Bookings    *booking.Service
	Auditor     audit.Recorder
	Tx          core.TxRunner
}

type Service struct {
	users       user.Repository
	instructors *instructor.Service
	schools     *school.Service
	bookings    *booking.Service
	auditor     audit.Recorder
	tx          core.TxRunner
}

func NewService(deps Deps) *Service {
	return &Service{
		users:       deps.Users,
		instructors: deps.Instructors,
		schools:     deps.Schools,
		bookings:    deps.Bookings,
		auditor:     deps.Auditor,
		tx:          deps.Tx,
	}
}

// TransitionRole changes the marketplace role of a user in a single transaction.
func (svc *Service) TransitionRole(ctx context.Context, actorID, userID, toRole string) (user.User, user.RoleTransition, error) {
	toRole = core.CleanString(toRole, true /* lower */)
	if !user.IsMarketplaceRole(toRole) {
		return user.User{}, user.RoleTransition{}, core.NewFieldError("role", errInvalidRole)
	}

	var (
		usr      user.User
		rt       user.RoleTransition
		declined []booking.Booking
	)
	err := svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.users.GetUser(ctx, user.GetFilter{ID: userID}, exec); err != nil {
			return err
		}
		if usr.Role == toRole {
			return core.NewFieldError("role", errSameRole)
		}
		rt = user.RoleTransition{UserID: usr.ID, FromRole: usr.Role, ToRole: toRole, CreatedAt: core.NowFunc()}

		switch usr.Role {
		case user.RoleInstructor:
			if declined, err = svc.leaveInstructor(ctx, usr, &rt, exec); err != nil {
				return err
			}
		case user.RoleSchoolAdmin:
			if err = svc.leaveSchoolAdmin(ctx, usr, &rt, exec); err != nil {
				return err
			}
		}

		switch toRole {
		case user.RoleInstructor:
			ins, restored, err := svc.instructors.EnsureProfile(ctx, usr.ID, usr.Name, exec)
			if err != nil {
				return err
			}
			if restored {
				rt.RestoredInstructorID = ins.ID
			}
		case user.RoleSchoolAdmin:
			s, err := svc.schools.GetOwned(ctx, usr.ID, true, exec)
			switch {
			case err == nil && s.IsArchived():
				if _, err = svc.schools.Restore(ctx, s, exec); err != nil {
					return err
				}
				rt.RestoredSchoolID = s.ID
			case err != nil && !core.IsNotFound(err):
				return errors.Wrap(err, "finding archived school")
			}
		}

		usr.Role = toRole
		usr.UpdatedAt = core.NowFunc()
		if usr, err = svc.users.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "updating user role")
		}
		if rt, err = svc.users.CreateRoleTransition(ctx, rt, exec); err != nil {
			return errors.Wrap(err, "inserting role transition")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     audit.ActionRoleTransition,
			EntityType: audit.EntityUser,
			EntityID:   usr.ID,
			Metadata:   map[string]interface{}{"from": rt.FromRole, "to": rt.ToRole},
		}, exec)
	})
	if err != nil {
		return user.User{}, user.RoleTransition{}, err
	}

	svc.instructors.BumpDirectory(ctx)
	svc.bookings.NotifyDeclined(ctx, declined)
	return usr, rt, nil
}

// leaveInstructor declines pending requests, ends the school membership and archives the profile.
func (svc *Service) leaveInstructor(ctx context.Context, usr user.User, rt *user.RoleTransition, exec core.DBExecutor) ([]booking.Booking, error) {
	ins, err := svc.instructors.GetByUserID(ctx, usr.ID, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding instructor profile")
	}

	upcoming, err := svc.bookings.HasUpcomingAccepted(ctx, ins.ID, exec)
	if err != nil {
		return nil, err
	}
	if upcoming {
		return nil, ErrHasUpcomingBookings
	}
	declined, err := svc.bookings.DeclinePending(ctx, ins.ID, booking.ReasonInstructorUnavailable, exec)
	if err != nil {
		return nil, err
	}
	if ins, err = svc.instructors.Archive(ctx, ins, exec); err != nil {
		return nil, err
	}
	rt.ArchivedInstructorID = ins.ID
	return declined, nil
}

// leaveSchoolAdmin revokes pending invitations and archives the owned school, which must have no members.
func (svc *Service) leaveSchoolAdmin(ctx context.Context, usr user.User, rt *user.RoleTransition, exec core.DBExecutor) error {
	s, err := svc.schools.GetOwned(ctx, usr.ID, false, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding owned school")
	}

	hasMembers, err := svc.schools.HasMembers(ctx, s.ID, exec)
	if err != nil {
		return err
	}
	if hasMembers {
		return ErrSchoolHasMembers
	}
	if _, err = svc.schools.RevokePending(ctx, s.ID, exec); err != nil {
		return err
	}
	if s, err = svc.schools.Archive(ctx, s, exec); err != nil {
		return err
	}
	rt.ArchivedSchoolID = s.ID
	return nil
}
