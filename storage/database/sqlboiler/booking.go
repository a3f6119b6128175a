package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/booking"
)

const (
	bookingsTable = "bookings"
	depositsTable = "deposits"

	depositOpenConstraint = "deposits_open_key"
)

var (
	bookingMapping = mapTable(bookingsTable, bookingRow{})
	depositMapping = mapTable(depositsTable, depositRow{})
)

type bookingRow struct {
	ID              string    `boil:"id"`
	ClientID        string    `boil:"client_id"`
	InstructorID    string    `boil:"instructor_id"`
	ResortID        string    `boil:"resort_id"`
	Sport           string    `boil:"sport"`
	StartDate       time.Time `boil:"start_date"`
	EndDate         time.Time `boil:"end_date"`
	HoursPerDay     int       `boil:"hours_per_day"`
	GroupSize       int       `boil:"group_size"`
	SkillLevel      string    `boil:"skill_level"`
	Message         string    `boil:"message"`
	Status          string    `boil:"status"`
	DeclineReason   string    `boil:"decline_reason"`
	QuotedCents     int       `boil:"quoted_cents"`
	Currency        string    `boil:"currency"`
	ContactUnlocked bool      `boil:"contact_unlocked"`
	CreatedAt       time.Time `boil:"created_at"`
	UpdatedAt       time.Time `boil:"updated_at"`
	RespondedAt     null.Time `boil:"responded_at"`
}

type depositRow struct {
	ID           string    `boil:"id"`
	BookingID    string    `boil:"booking_id"`
	InstructorID string    `boil:"instructor_id"`
	Kind         string    `boil:"kind"`
	AmountCents  int       `boil:"amount_cents"`
	Currency     string    `boil:"currency"`
	Status       string    `boil:"status"`
	ProviderRef  string    `boil:"provider_ref"`
	CreatedAt    time.Time `boil:"created_at"`
	PaidAt       null.Time `boil:"paid_at"`
	RefundedAt   null.Time `boil:"refunded_at"`
}

type bookingRepository struct {
	exec core.DBExecutor
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(exec core.DBExecutor) booking.Repository {
	return &bookingRepository{exec: exec}
}

func (repo bookingRepository) boil(b booking.Booking) bookingRow {
	return bookingRow{
		ID:              b.ID,
		ClientID:        b.ClientID,
		InstructorID:    b.InstructorID,
		ResortID:        b.ResortID,
		Sport:           b.Sport,
		StartDate:       core.Day(b.StartDate),
		EndDate:         core.Day(b.EndDate),
		HoursPerDay:     b.HoursPerDay,
		GroupSize:       b.GroupSize,
		SkillLevel:      b.SkillLevel,
		Message:         b.Message,
		Status:          b.Status,
		DeclineReason:   b.DeclineReason,
		QuotedCents:     b.QuotedCents,
		Currency:        b.Currency,
		ContactUnlocked: b.ContactUnlocked,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		RespondedAt:     nullTimePtr(b.RespondedAt),
	}
}

func (repo bookingRepository) unboil(r bookingRow) booking.Booking {
	return booking.Booking{
		ID:              r.ID,
		ClientID:        r.ClientID,
		InstructorID:    r.InstructorID,
		ResortID:        r.ResortID,
		Sport:           r.Sport,
		StartDate:       core.Day(r.StartDate),
		EndDate:         core.Day(r.EndDate),
		HoursPerDay:     r.HoursPerDay,
		GroupSize:       r.GroupSize,
		SkillLevel:      r.SkillLevel,
		Message:         r.Message,
		Status:          r.Status,
		DeclineReason:   r.DeclineReason,
		QuotedCents:     r.QuotedCents,
		Currency:        r.Currency,
		ContactUnlocked: r.ContactUnlocked,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		RespondedAt:     timePtr(r.RespondedAt),
	}
}

func (repo bookingRepository) unboilSlice(rows []bookingRow) []booking.Booking {
	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, repo.unboil(r))
	}
	return bookings
}

func (repo bookingRepository) boilDeposit(dep booking.Deposit) depositRow {
	return depositRow{
		ID:           dep.ID,
		BookingID:    dep.BookingID,
		InstructorID: dep.InstructorID,
		Kind:         dep.Kind,
		AmountCents:  dep.AmountCents,
		Currency:     dep.Currency,
		Status:       dep.Status,
		ProviderRef:  dep.ProviderRef,
		CreatedAt:    dep.CreatedAt.UTC(),
		PaidAt:       nullTimePtr(dep.PaidAt),
		RefundedAt:   nullTimePtr(dep.RefundedAt),
	}
}

func (repo bookingRepository) unboilDeposit(r depositRow) booking.Deposit {
	return booking.Deposit{
		ID:           r.ID,
		BookingID:    r.BookingID,
		InstructorID: r.InstructorID,
		Kind:         r.Kind,
		AmountCents:  r.AmountCents,
		Currency:     r.Currency,
		Status:       r.Status,
		ProviderRef:  r.ProviderRef,
		CreatedAt:    r.CreatedAt.UTC(),
		PaidAt:       timePtr(r.PaidAt),
		RefundedAt:   timePtr(r.RefundedAt),
	}
}

func (repo bookingRepository) CreateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	b.ID = uuid.New().String()
	r := repo.boil(b)
	if err := insert(ctx, core.GetExec(repo.exec, exec), bookingMapping, r); err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return repo.unboil(r), nil
}

func (repo bookingRepository) GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (booking.Booking, error) {
	if !validUUID(id) {
		return booking.Booking{}, booking.ErrNotFound
	}
	mods := append(bookingMapping.selectAll(), qm.Where(`"bookings"."id" = ?`, id))

	var r bookingRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "finding booking")
	}
	return repo.unboil(r), nil
}

func (repo bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking, from string, exec ...core.DBExecutor) (booking.Booking, error) {
	exe := core.GetExec(repo.exec, exec)
	r := repo.boil(b)
	n, err := update(ctx, exe, bookingMapping, r.ID, r, cond(`"status" = ?`, from))
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "updating booking")
	}
	if n == 0 {
		return booking.Booking{}, missed(ctx, exe, bookingsTable, r.ID, booking.ErrNotFound, booking.ErrStatusChanged)
	}
	return repo.unboil(r), nil
}

func (repo bookingRepository) filterMods(filter booking.Filter) []qm.QueryMod {
	var mods []qm.QueryMod
	if filter.ClientID != "" {
		mods = append(mods, qm.Where(`"bookings"."client_id" = ?`, filter.ClientID))
	}
	if filter.InstructorID != "" {
		mods = append(mods, qm.Where(`"bookings"."instructor_id" = ?`, filter.InstructorID))
	}
	if len(filter.Statuses) > 0 {
		mods = append(mods, qm.Where(`"bookings"."status" = ANY(?)`, types.StringArray(filter.Statuses)))
	}
	if !filter.EndBefore.IsZero() {
		mods = append(mods, qm.Where(`"bookings"."end_date" < ?`, core.Day(filter.EndBefore)))
	}
	if !filter.EndFrom.IsZero() {
		mods = append(mods, qm.Where(`"bookings"."end_date" >= ?`, core.Day(filter.EndFrom)))
	}
	return mods
}

func (repo bookingRepository) QueryBookings(ctx context.Context, filter booking.Filter, page core.PageRequest, exec ...core.DBExecutor) ([]booking.Booking, int, error) {
	exe := core.GetExec(repo.exec, exec)
	where := repo.filterMods(filter)

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(bookingsTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting bookings")
	}

	mods := append(bookingMapping.selectAll(), where...)
	mods = append(mods, qm.OrderBy(`"bookings"."created_at" DESC, "bookings"."id" DESC`))
	mods = append(mods, paginate(page)...)

	var rows []bookingRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying bookings")
	}
	return repo.unboilSlice(rows), total, nil
}

func (repo bookingRepository) FindBookings(ctx context.Context, filter booking.Filter, exec ...core.DBExecutor) ([]booking.Booking, error) {
	mods := append(bookingMapping.selectAll(), repo.filterMods(filter)...)
	mods = append(mods, qm.OrderBy(`"bookings"."created_at" ASC, "bookings"."id" ASC`))

	var rows []bookingRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "finding bookings")
	}
	return repo.unboilSlice(rows), nil
}

func (repo bookingRepository) QueryExpirable(ctx context.Context, createdBefore, startBefore time.Time, exec ...core.DBExecutor) ([]booking.Booking, error) {
	mods := append(bookingMapping.selectAll(),
		qm.Where(`"bookings"."status" = ?`, booking.StatusPending),
		qm.Expr(
			qm.Where(`"bookings"."created_at" < ?`, createdBefore.UTC()),
			qm.Or(`"bookings"."start_date" < ?`, core.Day(startBefore)),
		),
		qm.OrderBy(`"bookings"."created_at" ASC, "bookings"."id" ASC`),
	)

	var rows []bookingRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying expirable bookings")
	}
	return repo.unboilSlice(rows), nil
}

func (repo bookingRepository) CreateDeposit(ctx context.Context, dep booking.Deposit, exec ...core.DBExecutor) (booking.Deposit, error) {
	dep.ID = uuid.New().String()
	r := repo.boilDeposit(dep)
	if err := insert(ctx, core.GetExec(repo.exec, exec), depositMapping, r); err != nil {
		if isUniqueViolation(err, depositOpenConstraint) {
			return booking.Deposit{}, booking.ErrOpenDepositExists
		}
		return booking.Deposit{}, errors.Wrap(err, "inserting deposit")
	}
	return repo.unboilDeposit(r), nil
}

func (repo bookingRepository) GetDeposit(ctx context.Context, id string, exec ...core.DBExecutor) (booking.Deposit, error) {
	if !validUUID(id) {
		return booking.Deposit{}, booking.ErrDepositNotFound
	}
	mods := append(depositMapping.selectAll(), qm.Where(`"deposits"."id" = ?`, id))

	var r depositRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return booking.Deposit{}, trapNoRowsErr(err, booking.ErrDepositNotFound, "finding deposit")
	}
	return repo.unboilDeposit(r), nil
}

func (repo bookingRepository) UpdateDeposit(ctx context.Context, dep booking.Deposit, from string, exec ...core.DBExecutor) (booking.Deposit, error) {
	exe := core.GetExec(repo.exec, exec)
	r := repo.boilDeposit(dep)
	n, err := update(ctx, exe, depositMapping, r.ID, r, cond(`"status" = ?`, from))
	if err != nil {
		return booking.Deposit{}, errors.Wrap(err, "updating deposit")
	}
	if n == 0 {
		return booking.Deposit{}, missed(ctx, exe, depositsTable, r.ID, booking.ErrDepositNotFound, booking.ErrStatusChanged)
	}
	return repo.unboilDeposit(r), nil
}

func (repo bookingRepository) GetOpenDeposit(ctx context.Context, bookingID string, exec ...core.DBExecutor) (booking.Deposit, error) {
	mods := append(depositMapping.selectAll(),
		qm.Where(`"deposits"."booking_id" = ?`, bookingID),
		qm.Where(`"deposits"."status" = ANY(?)`, types.StringArray{booking.DepositPending, booking.DepositPaid}),
		qm.OrderBy(`"deposits"."created_at" DESC`),
		qm.Limit(1),
	)

	var r depositRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return booking.Deposit{}, trapNoRowsErr(err, booking.ErrDepositNotFound, "finding open deposit")
	}
	return repo.unboilDeposit(r), nil
}
