// Package booking handles lesson requests from clients to instructors, their
// lifecycle, and the lead fees instructors pay to unlock client contacts.
package booking

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/notification"
	"github.com/trezcool/slopeside/core/pricing"
	"github.com/trezcool/slopeside/core/resort"
	"github.com/trezcool/slopeside/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("booking not found")
	ErrDepositNotFound   = core.NewNotFoundError("deposit not found")
	ErrClientsOnly       = core.NewForbiddenError("only clients can request bookings")
	ErrContactLocked     = core.NewForbiddenError("pay the lead fee to unlock the client's contact details")
	ErrDatesUnavailable  = core.NewConflictError("the instructor is not available on these dates")
	ErrInvalidTransition = core.NewConflictError("this booking cannot be changed anymore")
	ErrNotFinished       = core.NewConflictError("this booking has not ended yet")
	ErrDepositRefunded   = core.NewConflictError("this deposit has been refunded")
	ErrDepositNotPaid    = core.NewConflictError("only paid deposits can be refunded")

	// ErrStatusChanged is returned by guarded repository updates when the stored status moved on.
	ErrStatusChanged = stderrors.New("booking: status changed concurrently")
	// ErrOpenDepositExists is returned by CreateDeposit when the booking already has an open deposit.
	ErrOpenDepositExists = stderrors.New("booking: open deposit exists")

	errResortNotServed = stderrors.New("the instructor does not work at this resort")
	errSportNotOffered = stderrors.New("the instructor does not teach this sport")
	errPastStartDate   = stderrors.New("the start date cannot be in the past")
	errInvalidDate     = stderrors.New("dates must be formatted as YYYY-MM-DD")
)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (Booking, error)
		// UpdateBooking writes b while the stored status is still from, ErrStatusChanged otherwise.
		UpdateBooking(ctx context.Context, b Booking, from string, exec ...core.DBExecutor) (Booking, error)
		// QueryBookings returns a page of matching bookings, newest first.
		QueryBookings(ctx context.Context, filter Filter, page core.PageRequest, exec ...core.DBExecutor) ([]Booking, int, error)
		// FindBookings returns every matching booking, oldest first.
		FindBookings(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Booking, error)
		// QueryExpirable returns pending bookings created before createdBefore or starting before startBefore.
		QueryExpirable(ctx context.Context, createdBefore, startBefore time.Time, exec ...core.DBExecutor) ([]Booking, error)

		// CreateDeposit fails with ErrOpenDepositExists while the booking has a pending or paid deposit.
		CreateDeposit(ctx context.Context, dep Deposit, exec ...core.DBExecutor) (Deposit, error)
		GetDeposit(ctx context.Context, id string, exec ...core.DBExecutor) (Deposit, error)
		// UpdateDeposit writes dep while the stored status is still from, ErrStatusChanged otherwise.
		UpdateDeposit(ctx context.Context, dep Deposit, from string, exec ...core.DBExecutor) (Deposit, error)
		// GetOpenDeposit returns the pending or paid lead fee of a booking.
		GetOpenDeposit(ctx context.Context, bookingID string, exec ...core.DBExecutor) (Deposit, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ProfileFinder interface {
		GetByID(ctx context.Context, id string) (instructor.Instructor, error)
		GetPublic(ctx context.Context, id string) (instructor.Instructor, error)
		GetByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (instructor.Instructor, error)
	}

	ResortFinder interface {
		Get(ctx context.Context, id string) (resort.Resort, error)
	}

	Deps struct {
		Repo     Repository
		Tx       core.TxRunner
		Users    UserFinder
		Profiles ProfileFinder
		Resorts  ResortFinder
		Pricing  *pricing.Service
		Calendar *calendar.Service
		Notifier *notification.Notifier
		Auditor  audit.Recorder
		Conf     *core.Config
		Logger   core.Logger
	}

	Service struct {
		repo       Repository
		tx         core.TxRunner
		users      UserFinder
		profiles   ProfileFinder
		resorts    ResortFinder
		pricing    *pricing.Service
		calendar   *calendar.Service
		notifier   *notification.Notifier
		auditor    audit.Recorder
		logger     core.Logger
		leadFee    int
		currency   string
		requestTTL time.Duration
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		repo:       deps.Repo,
		tx:         deps.Tx,
		users:      deps.Users,
		profiles:   deps.Profiles,
		resorts:    deps.Resorts,
		pricing:    deps.Pricing,
		calendar:   deps.Calendar,
		notifier:   deps.Notifier,
		auditor:    deps.Auditor,
		logger:     deps.Logger,
		leadFee:    deps.Conf.Marketplace.LeadFeeCents,
		currency:   deps.Conf.Marketplace.Currency,
		requestTTL: deps.Conf.Marketplace.BookingRequestTTL,
	}
}

// Request sends a lesson request from a client to a published instructor.
func (svc *Service) Request(ctx context.Context, client user.User, nb NewBooking) (Booking, error) {
	if !client.IsClient() {
		return Booking{}, ErrClientsOnly
	}
	ins, err := svc.profiles.GetPublic(ctx, nb.InstructorID)
	if err != nil {
		return Booking{}, err
	}
	if !ins.WorksAt(nb.ResortID) {
		return Booking{}, core.NewFieldError("resort_id", errResortNotServed)
	}
	if !ins.OffersSport(nb.Sport) {
		return Booking{}, core.NewFieldError("sport", errSportNotOffered)
	}
	rst, err := svc.resorts.Get(ctx, nb.ResortID)
	if err != nil {
		return Booking{}, err
	}

	lesson, err := parseLesson(nb)
	if err != nil {
		return Booking{}, err
	}
	if lesson.Start.Before(core.Day(core.NowFunc())) {
		return Booking{}, core.NewFieldError("start_date", errPastStartDate)
	}

	now := core.NowFunc()
	b := Booking{
		ClientID:     client.ID,
		InstructorID: ins.ID,
		ResortID:     rst.ID,
		Sport:        nb.Sport,
		StartDate:    lesson.Start,
		EndDate:      lesson.End,
		HoursPerDay:  lesson.HoursPerDay,
		GroupSize:    lesson.GroupSize,
		SkillLevel:   nb.SkillLevel,
		Message:      nb.Message,
		Status:       StatusPending,
		Currency:     svc.currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		busy, err := svc.calendar.HasConflict(ctx, ins.ID, b.StartDate, b.EndDate, exec)
		if err != nil {
			return err
		}
		if busy {
			return ErrDatesUnavailable
		}
		quote, err := svc.pricing.QuoteLesson(ctx, ins.ID, lesson, exec)
		if err != nil {
			return err
		}
		b.QuotedCents = quote.TotalCents
		b.Currency = quote.Currency

		if b, err = svc.repo.CreateBooking(ctx, b, exec); err != nil {
			return errors.Wrap(err, "inserting booking")
		}
		return svc.calendar.HoldTentative(ctx, ins.ID, b.ID, b.StartDate, b.EndDate, exec)
	})
	if err != nil {
		return Booking{}, err
	}

	if insUser, err := svc.users.GetByID(ctx, ins.UserID); err == nil {
		svc.notifier.BookingRequested(user.Recipient(insUser), user.Recipient(client), svc.notificationData(b, client, ins, rst))
	} else {
		svc.logError("loading instructor user", err)
	}
	return b, nil
}

func parseLesson(nb NewBooking) (pricing.Lesson, error) {
	start, err := time.Parse(DateLayout, nb.StartDate)
	if err != nil {
		return pricing.Lesson{}, core.NewFieldError("start_date", errInvalidDate)
	}
	end, err := time.Parse(DateLayout, nb.EndDate)
	if err != nil {
		return pricing.Lesson{}, core.NewFieldError("end_date", errInvalidDate)
	}
	lesson := pricing.Lesson{Start: start, End: end, HoursPerDay: nb.HoursPerDay, GroupSize: nb.GroupSize}
	return lesson, lesson.Check()
}

// Get returns a booking to its client, its instructor or staff.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if _, err = svc.authorize(ctx, actor, b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

type party int

const (
	partyClient party = iota + 1
	partyInstructor
	partyStaff
)

// authorize tells how actor relates to a booking; strangers get ErrNotFound.
func (svc *Service) authorize(ctx context.Context, actor user.User, b Booking) (party, error) {
	if actor.ID == b.ClientID {
		return partyClient, nil
	}
	if actor.IsInstructor() {
		ins, err := svc.profiles.GetByUserID(ctx, actor.ID)
		if err != nil && !core.IsNotFound(err) {
			return 0, err
		}
		if err == nil && ins.ID == b.InstructorID {
			return partyInstructor, nil
		}
	}
	if actor.IsAdmin() {
		return partyStaff, nil
	}
	return 0, ErrNotFound
}

func (svc *Service) ListForClient(ctx context.Context, clientID string, lf ListFilter, page core.PageRequest) ([]Booking, int, error) {
	return svc.query(ctx, Filter{ClientID: clientID, Statuses: lf.statuses()}, page)
}

func (svc *Service) ListForInstructor(ctx context.Context, instructorUserID string, lf ListFilter, page core.PageRequest) ([]Booking, int, error) {
	ins, err := svc.profiles.GetByUserID(ctx, instructorUserID)
	if err != nil {
		return nil, 0, err
	}
	return svc.query(ctx, Filter{InstructorID: ins.ID, Statuses: lf.statuses()}, page)
}

// List returns the bookings of the actor according to their role.
func (svc *Service) List(ctx context.Context, actor user.User, lf ListFilter, page core.PageRequest) ([]Booking, int, error) {
	if actor.IsInstructor() {
		return svc.ListForInstructor(ctx, actor.ID, lf, page)
	}
	return svc.ListForClient(ctx, actor.ID, lf, page)
}

func (svc *Service) query(ctx context.Context, filter Filter, page core.PageRequest) ([]Booking, int, error) {
	bookings, total, err := svc.repo.QueryBookings(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying bookings")
	}
	return bookings, total, nil
}

// ownBooking returns a booking of the instructor behind instructorUserID.
func (svc *Service) ownBooking(ctx context.Context, instructorUserID, id string) (instructor.Instructor, Booking, error) {
	ins, err := svc.profiles.GetByUserID(ctx, instructorUserID)
	if err != nil {
		return instructor.Instructor{}, Booking{}, err
	}
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return instructor.Instructor{}, Booking{}, err
	}
	if b.InstructorID != ins.ID {
		return instructor.Instructor{}, Booking{}, ErrNotFound
	}
	return ins, b, nil
}

// Accept confirms a pending request; its days become confirmed on the calendar.
func (svc *Service) Accept(ctx context.Context, instructorUserID, id string) (Booking, error) {
	ins, b, err := svc.ownBooking(ctx, instructorUserID, id)
	if err != nil {
		return Booking{}, err
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if b, err = svc.current(ctx, b.ID, exec, StatusPending); err != nil {
			return err
		}
		busy, err := svc.calendar.HasConflict(ctx, ins.ID, b.StartDate, b.EndDate, exec)
		if err != nil {
			return err
		}
		if busy {
			return ErrDatesUnavailable
		}
		if b, err = svc.setStatus(ctx, b, StatusAccepted, exec); err != nil {
			return err
		}
		return svc.calendar.Confirm(ctx, b.ID, exec)
	})
	if err != nil {
		return Booking{}, err
	}

	svc.notifyClient(ctx, b, ins, svc.notifier.BookingAccepted)
	return b, nil
}

// Decline refuses a pending request and frees its days.
func (svc *Service) Decline(ctx context.Context, instructorUserID, id, reason string) (Booking, error) {
	ins, b, err := svc.ownBooking(ctx, instructorUserID, id)
	if err != nil {
		return Booking{}, err
	}

	if err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if b, err = svc.current(ctx, b.ID, exec, StatusPending); err != nil {
			return err
		}
		b.DeclineReason = core.CleanString(reason)
		return svc.decline(ctx, &b, exec)
	}); err != nil {
		return Booking{}, err
	}

	svc.notifyClient(ctx, b, ins, svc.notifier.BookingDeclined)
	return b, nil
}

func (svc *Service) decline(ctx context.Context, b *Booking, exec core.DBExecutor) error {
	updated, err := svc.setStatus(ctx, *b, StatusDeclined, exec)
	if err != nil {
		return err
	}
	*b = updated
	return svc.calendar.Release(ctx, b.ID, exec)
}

// DeclinePending declines every pending request of an instructor, inside the caller's transaction.
// It is used when the instructor leaves the role; clients are notified.
func (svc *Service) DeclinePending(ctx context.Context, instructorID, reason string, exec core.DBExecutor) ([]Booking, error) {
	pending, err := svc.repo.FindBookings(ctx, Filter{InstructorID: instructorID, Statuses: []string{StatusPending}}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying pending bookings")
	}
	for i := range pending {
		pending[i].DeclineReason = reason
		if err = svc.decline(ctx, &pending[i], exec); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

// NotifyDeclined mails the clients of declined bookings.
func (svc *Service) NotifyDeclined(ctx context.Context, declined []Booking) {
	for _, b := range declined {
		ins, err := svc.profiles.GetByID(ctx, b.InstructorID)
		if err != nil {
			svc.logError("loading instructor", err)
			continue
		}
		svc.notifyClient(ctx, b, ins, svc.notifier.BookingDeclined)
	}
}

// HasUpcomingAccepted reports whether an instructor has accepted bookings ending today or later.
func (svc *Service) HasUpcomingAccepted(ctx context.Context, instructorID string, exec core.DBExecutor) (bool, error) {
	upcoming, err := svc.repo.FindBookings(ctx, Filter{
		InstructorID: instructorID,
		Statuses:     []string{StatusAccepted},
		EndFrom:      core.Day(core.NowFunc()),
	}, exec)
	if err != nil {
		return false, errors.Wrap(err, "querying accepted bookings")
	}
	return len(upcoming) > 0, nil
}

// Cancel is the client giving up a pending or accepted booking.
func (svc *Service) Cancel(ctx context.Context, clientID, id string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if b.ClientID != clientID {
		return Booking{}, ErrNotFound
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if b, err = svc.current(ctx, b.ID, exec, StatusPending, StatusAccepted); err != nil {
			return err
		}
		if b, err = svc.setStatus(ctx, b, StatusCancelled, exec); err != nil {
			return err
		}
		return svc.calendar.Release(ctx, b.ID, exec)
	})
	if err != nil {
		return Booking{}, err
	}

	if ins, err := svc.profiles.GetByID(ctx, b.InstructorID); err == nil {
		if insUser, err := svc.users.GetByID(ctx, ins.UserID); err == nil {
			client, _ := svc.users.GetByID(ctx, b.ClientID)
			rst, _ := svc.resorts.Get(ctx, b.ResortID)
			svc.notifier.BookingCancelled(user.Recipient(insUser), svc.notificationData(b, client, ins, rst))
		}
	}
	return b, nil
}

// Complete marks an accepted booking that has ended as completed and invites the client to review it.
func (svc *Service) Complete(ctx context.Context, id string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if !b.IsAccepted() {
		return Booking{}, ErrInvalidTransition
	}
	if !b.EndDate.Before(core.Day(core.NowFunc())) {
		return Booking{}, ErrNotFinished
	}
	return svc.complete(ctx, b)
}

func (svc *Service) complete(ctx context.Context, b Booking) (Booking, error) {
	b, err := svc.setStatus(ctx, b, StatusCompleted)
	if err != nil {
		return Booking{}, err
	}
	if ins, err := svc.profiles.GetByID(ctx, b.InstructorID); err == nil {
		svc.notifyClient(ctx, b, ins, svc.notifier.BookingCompleted)
	}
	return b, nil
}

// CompletePast completes every accepted booking that ended before now's day.
func (svc *Service) CompletePast(ctx context.Context, now time.Time) (int, error) {
	ended, err := svc.repo.FindBookings(ctx, Filter{Statuses: []string{StatusAccepted}, EndBefore: core.Day(now)})
	if err != nil {
		return 0, errors.Wrap(err, "querying ended bookings")
	}
	count := 0
	for _, b := range ended {
		switch _, err = svc.complete(ctx, b); {
		case errors.Cause(err) == ErrInvalidTransition:
			continue
		case err != nil:
			return count, err
		}
		count++
	}
	return count, nil
}

// ExpireStale expires pending requests that waited too long or whose start date has passed.
func (svc *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := svc.repo.QueryExpirable(ctx, now.Add(-svc.requestTTL), core.Day(now))
	if err != nil {
		return 0, errors.Wrap(err, "querying stale bookings")
	}
	count := 0
	for _, b := range stale {
		b := b
		err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
			if b, err = svc.setStatus(ctx, b, StatusExpired, exec); err != nil {
				return err
			}
			return svc.calendar.Release(ctx, b.ID, exec)
		})
		switch {
		case errors.Cause(err) == ErrInvalidTransition:
			continue
		case err != nil:
			return count, err
		}
		count++
	}
	return count, nil
}

// current re-reads a booking inside a transaction and checks it is still in one of statuses.
func (svc *Service) current(ctx context.Context, id string, exec core.DBExecutor, statuses ...string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id, exec)
	if err != nil {
		return Booking{}, err
	}
	if !core.ContainsString(statuses, b.Status) {
		return Booking{}, ErrInvalidTransition
	}
	return b, nil
}

// setStatus moves b to status, failing with ErrInvalidTransition when a concurrent change got there first.
func (svc *Service) setStatus(ctx context.Context, b Booking, status string, exec ...core.DBExecutor) (Booking, error) {
	now := core.NowFunc()
	if b.IsPending() && status != StatusExpired {
		b.RespondedAt = &now
	}
	from := b.Status
	b.Status = status
	b.UpdatedAt = now
	b, err := svc.repo.UpdateBooking(ctx, b, from, exec...)
	switch {
	case errors.Cause(err) == ErrStatusChanged:
		return Booking{}, ErrInvalidTransition
	case err != nil:
		return Booking{}, errors.Wrap(err, "updating booking")
	}
	return b, nil
}

// RequestLeadFee creates (or returns the open) lead fee deposit of a booking.
func (svc *Service) RequestLeadFee(ctx context.Context, instructorUserID, bookingID string) (Deposit, error) {
	ins, b, err := svc.ownBooking(ctx, instructorUserID, bookingID)
	if err != nil {
		return Deposit{}, err
	}
	if !b.IsPending() && !b.IsAccepted() {
		return Deposit{}, ErrInvalidTransition
	}

	dep, err := svc.repo.GetOpenDeposit(ctx, b.ID)
	switch {
	case err == nil:
		return dep, nil
	case !core.IsNotFound(err):
		return Deposit{}, errors.Wrap(err, "finding deposit")
	}

	dep = Deposit{
		BookingID:    b.ID,
		InstructorID: ins.ID,
		Kind:         DepositLeadFee,
		AmountCents:  svc.leadFee,
		Currency:     svc.currency,
		Status:       DepositPending,
		CreatedAt:    core.NowFunc(),
	}
	switch dep, err = svc.repo.CreateDeposit(ctx, dep); {
	case errors.Cause(err) == ErrOpenDepositExists:
		return svc.repo.GetOpenDeposit(ctx, b.ID)
	case err != nil:
		return Deposit{}, errors.Wrap(err, "inserting deposit")
	}
	return dep, nil
}

// ConfirmDeposit records a paid lead fee and unlocks the client's contact details.
func (svc *Service) ConfirmDeposit(ctx context.Context, depositID, providerRef string) (Deposit, error) {
	var (
		dep         Deposit
		b           Booking
		alreadyPaid bool
	)
	err := svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if dep, err = svc.repo.GetDeposit(ctx, depositID, exec); err != nil {
			return err
		}
		switch dep.Status {
		case DepositPaid:
			alreadyPaid = true
			return nil
		case DepositRefunded:
			return ErrDepositRefunded
		}

		now := core.NowFunc()
		dep.Status = DepositPaid
		dep.ProviderRef = core.CleanString(providerRef)
		dep.PaidAt = &now
		switch dep, err = svc.repo.UpdateDeposit(ctx, dep, DepositPending, exec); {
		case errors.Cause(err) == ErrStatusChanged:
			// confirmed by a concurrent call
			alreadyPaid = true
			dep, err = svc.repo.GetDeposit(ctx, depositID, exec)
			return err
		case err != nil:
			return errors.Wrap(err, "updating deposit")
		}
		if b, err = svc.repo.GetBooking(ctx, dep.BookingID, exec); err != nil {
			return err
		}
		b.ContactUnlocked = true
		b.UpdatedAt = now
		if b, err = svc.repo.UpdateBooking(ctx, b, b.Status, exec); err != nil {
			return errors.Wrap(err, "unlocking contact")
		}
		return nil
	})
	if err != nil {
		return Deposit{}, err
	}
	if alreadyPaid {
		return dep, nil
	}

	ins, err := svc.profiles.GetByID(ctx, dep.InstructorID)
	if err != nil {
		svc.logError("loading instructor", err)
		return dep, nil
	}
	insUser, err := svc.users.GetByID(ctx, ins.UserID)
	if err != nil {
		svc.logError("loading instructor user", err)
		return dep, nil
	}
	client, err := svc.users.GetByID(ctx, b.ClientID)
	if err != nil {
		svc.logError("loading client", err)
		return dep, nil
	}
	rst, _ := svc.resorts.Get(ctx, b.ResortID)
	svc.notifier.LeadFeePaid(user.Recipient(insUser), svc.notificationData(b, client, ins, rst), notification.ContactData{
		Name:  client.Name,
		Email: client.Email,
		Phone: client.Phone,
	})
	return dep, nil
}

// RefundDeposit refunds a paid lead fee (staff only). The contact stays unlocked.
func (svc *Service) RefundDeposit(ctx context.Context, actorID, depositID string) (Deposit, error) {
	var dep Deposit
	err := svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if dep, err = svc.repo.GetDeposit(ctx, depositID, exec); err != nil {
			return err
		}
		if dep.Status != DepositPaid {
			return ErrDepositNotPaid
		}

		now := core.NowFunc()
		dep.Status = DepositRefunded
		dep.RefundedAt = &now
		switch dep, err = svc.repo.UpdateDeposit(ctx, dep, DepositPaid, exec); {
		case errors.Cause(err) == ErrStatusChanged:
			return ErrDepositNotPaid
		case err != nil:
			return errors.Wrap(err, "updating deposit")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     audit.ActionDepositRefunded,
			EntityType: audit.EntityDeposit,
			EntityID:   dep.ID,
			Metadata:   map[string]interface{}{"booking_id": dep.BookingID, "amount_cents": dep.AmountCents},
		}, exec)
	})
	if err != nil {
		return Deposit{}, err
	}
	return dep, nil
}

// Contact returns the client's contact details of a booking.
func (svc *Service) Contact(ctx context.Context, actor user.User, bookingID string) (Contact, error) {
	b, err := svc.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return Contact{}, err
	}
	p, err := svc.authorize(ctx, actor, b)
	if err != nil {
		return Contact{}, err
	}
	if p == partyInstructor && !b.ContactUnlocked {
		return Contact{}, ErrContactLocked
	}
	client, err := svc.users.GetByID(ctx, b.ClientID)
	if err != nil {
		return Contact{}, errors.Wrap(err, "loading client")
	}
	return Contact{Name: client.Name, Email: client.Email, Phone: client.Phone}, nil
}

func (svc *Service) notifyClient(ctx context.Context, b Booking, ins instructor.Instructor, notify func(notification.Recipient, notification.BookingData)) {
	client, err := svc.users.GetByID(ctx, b.ClientID)
	if err != nil {
		svc.logError("loading client", err)
		return
	}
	rst, _ := svc.resorts.Get(ctx, b.ResortID)
	notify(user.Recipient(client), svc.notificationData(b, client, ins, rst))
}

func (svc *Service) notificationData(b Booking, client user.User, ins instructor.Instructor, rst resort.Resort) notification.BookingData {
	return notification.BookingData{
		ID:             b.ID,
		ClientName:     client.Name,
		InstructorName: ins.DisplayName,
		ResortName:     rst.Name,
		Sport:          b.Sport,
		StartDate:      notification.FormatDate(b.StartDate),
		EndDate:        notification.FormatDate(b.EndDate),
		HoursPerDay:    b.HoursPerDay,
		GroupSize:      b.GroupSize,
		Total:          notification.FormatMoney(b.QuotedCents, b.Currency),
		Message:        b.Message,
		Reason:         b.DeclineReason,
	}
}

func (svc *Service) logError(msg string, err error) {
	if svc.logger != nil {
		svc.logger.Error(msg+": "+err.Error(), err)
	}
}
