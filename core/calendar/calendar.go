// Package calendar keeps the per-day availability of instructors.
package calendar

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/instructor"
)

// Block kinds
const (
	KindTentative   = "tentative"
	KindConfirmed   = "confirmed"
	KindUnavailable = "unavailable"
)

const DateLayout = "2006-01-02"

var (
	// errors
	ErrBlockNotFound = core.NewNotFoundError("calendar block not found")
	ErrBookingBlock  = core.NewForbiddenError("booking blocks are managed by their booking")
	ErrInvalidDate   = stderrors.New("dates must be formatted as YYYY-MM-DD")
	ErrPastDate      = stderrors.New("dates cannot be in the past")
	ErrNoDates       = stderrors.New("at least one date is required")
	ErrInvalidRange  = stderrors.New("the end date must not be before the start date")
	ErrRangeTooLong  = stderrors.New("the date range cannot exceed 366 days")
)

const maxRangeDays = 366

var busyKinds = []string{KindConfirmed, KindUnavailable}

type Block struct {
	ID           string    `json:"id"`
	InstructorID string    `json:"instructor_id"`
	BookingID    *string   `json:"booking_id,omitempty"`
	Date         time.Time `json:"date"`
	Kind         string    `json:"kind"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicBlock is what clients see of an instructor's calendar.
type PublicBlock struct {
	Date string `json:"date"`
	Kind string `json:"kind"`
}

func (b Block) Public() PublicBlock {
	return PublicBlock{Date: b.Date.Format(DateLayout), Kind: b.Kind}
}

type NewUnavailable struct {
	Dates []string `json:"dates" validate:"required,min=1,max=60,dive,datetime=2006-01-02"`
	Note  string   `json:"note" validate:"max=255"`
}

func (nu *NewUnavailable) Validate(validate *validator.Validate) error {
	nu.Note = core.CleanString(nu.Note)
	return validate.Struct(nu)
}

type BlockFilter struct {
	InstructorID string
	BookingID    string
	From         time.Time
	To           time.Time
	Kinds        []string
}

type (
	Repository interface {
		CreateBlocks(ctx context.Context, blocks []Block, exec ...core.DBExecutor) ([]Block, error)
		// QueryBlocks returns the matching blocks ordered by date.
		QueryBlocks(ctx context.Context, filter BlockFilter, exec ...core.DBExecutor) ([]Block, error)
		GetBlock(ctx context.Context, id string, exec ...core.DBExecutor) (Block, error)
		UpdateBlocksKind(ctx context.Context, bookingID, kind string, exec ...core.DBExecutor) (int, error)
		DeleteBookingBlocks(ctx context.Context, bookingID string, exec ...core.DBExecutor) (int, error)
		DeleteBlock(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// ProfileFinder resolves the caller's instructor profile.
	ProfileFinder interface {
		GetByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (instructor.Instructor, error)
	}

	Service struct {
		repo     Repository
		profiles ProfileFinder
	}
)

func NewService(repo Repository, profiles ProfileFinder) *Service {
	return &Service{repo: repo, profiles: profiles}
}

// ParseDates parses and de-duplicates YYYY-MM-DD dates.
func ParseDates(raw []string) ([]time.Time, error) {
	seen := make(map[string]bool, len(raw))
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := time.Parse(DateLayout, core.CleanString(s))
		if err != nil {
			return nil, ErrInvalidDate
		}
		if key := d.Format(DateLayout); !seen[key] {
			seen[key] = true
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// CheckRange validates an inclusive [from, to] day range.
func CheckRange(from, to time.Time) error {
	from, to = core.Day(from), core.Day(to)
	if to.Before(from) {
		return ErrInvalidRange
	}
	if core.DayCount(from, to) > maxRangeDays {
		return ErrRangeTooLong
	}
	return nil
}

// AddUnavailable marks days as unavailable on the caller's calendar. Days already blocked are skipped.
func (svc *Service) AddUnavailable(ctx context.Context, userID string, nu NewUnavailable) ([]Block, error) {
	ins, err := svc.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dates, err := ParseDates(nu.Dates)
	if err != nil {
		return nil, core.NewFieldError("dates", err)
	}
	if len(dates) == 0 {
		return nil, core.NewFieldError("dates", ErrNoDates)
	}
	today := core.Day(core.NowFunc())
	for _, d := range dates {
		if d.Before(today) {
			return nil, core.NewFieldError("dates", ErrPastDate)
		}
	}

	existing, err := svc.repo.QueryBlocks(ctx, BlockFilter{InstructorID: ins.ID, From: minDate(dates), To: maxDate(dates)})
	if err != nil {
		return nil, errors.Wrap(err, "querying blocks")
	}
	taken := make(map[string]bool, len(existing))
	for _, b := range existing {
		taken[b.Date.Format(DateLayout)] = true
	}

	now := core.NowFunc()
	note := core.CleanString(nu.Note)
	blocks := make([]Block, 0, len(dates))
	for _, d := range dates {
		if taken[d.Format(DateLayout)] {
			continue
		}
		blocks = append(blocks, Block{InstructorID: ins.ID, Date: d, Kind: KindUnavailable, Note: note, CreatedAt: now})
	}
	if len(blocks) == 0 {
		return []Block{}, nil
	}
	if blocks, err = svc.repo.CreateBlocks(ctx, blocks); err != nil {
		return nil, errors.Wrap(err, "inserting blocks")
	}
	return blocks, nil
}

// RemoveBlock deletes one of the caller's unavailable days.
func (svc *Service) RemoveBlock(ctx context.Context, userID, blockID string) error {
	ins, err := svc.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	blk, err := svc.repo.GetBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if blk.InstructorID != ins.ID {
		return ErrBlockNotFound
	}
	if blk.Kind != KindUnavailable {
		return ErrBookingBlock
	}
	return svc.repo.DeleteBlock(ctx, blk.ID)
}

// Range returns every block of an instructor between from and to (both included).
func (svc *Service) Range(ctx context.Context, instructorID string, from, to time.Time) ([]Block, error) {
	if err := CheckRange(from, to); err != nil {
		return nil, core.NewFieldError("to", err)
	}
	blocks, err := svc.repo.QueryBlocks(ctx, BlockFilter{InstructorID: instructorID, From: core.Day(from), To: core.Day(to)})
	if err != nil {
		return nil, errors.Wrap(err, "querying blocks")
	}
	return blocks, nil
}

func (svc *Service) PublicRange(ctx context.Context, instructorID string, from, to time.Time) ([]PublicBlock, error) {
	blocks, err := svc.Range(ctx, instructorID, from, to)
	if err != nil {
		return nil, err
	}
	res := make([]PublicBlock, 0, len(blocks))
	for _, b := range blocks {
		res = append(res, b.Public())
	}
	return res, nil
}

// HasConflict reports whether any day in [from, to] is confirmed or unavailable.
func (svc *Service) HasConflict(ctx context.Context, instructorID string, from, to time.Time, exec ...core.DBExecutor) (bool, error) {
	blocks, err := svc.repo.QueryBlocks(ctx, BlockFilter{
		InstructorID: instructorID,
		From:         core.Day(from),
		To:           core.Day(to),
		Kinds:        busyKinds,
	}, exec...)
	if err != nil {
		return false, errors.Wrap(err, "querying blocks")
	}
	return len(blocks) > 0, nil
}

// HoldTentative holds every day of a booking request.
func (svc *Service) HoldTentative(ctx context.Context, instructorID, bookingID string, from, to time.Time, exec ...core.DBExecutor) error {
	now := core.NowFunc()
	days := core.DaysBetween(from, to)
	blocks := make([]Block, 0, len(days))
	for _, d := range days {
		id := bookingID
		blocks = append(blocks, Block{InstructorID: instructorID, BookingID: &id, Date: d, Kind: KindTentative, CreatedAt: now})
	}
	if _, err := svc.repo.CreateBlocks(ctx, blocks, exec...); err != nil {
		return errors.Wrap(err, "inserting tentative blocks")
	}
	return nil
}

// Confirm turns the tentative blocks of a booking into confirmed ones.
func (svc *Service) Confirm(ctx context.Context, bookingID string, exec ...core.DBExecutor) error {
	if _, err := svc.repo.UpdateBlocksKind(ctx, bookingID, KindConfirmed, exec...); err != nil {
		return errors.Wrap(err, "confirming blocks")
	}
	return nil
}

// Release deletes every block held by a booking.
func (svc *Service) Release(ctx context.Context, bookingID string, exec ...core.DBExecutor) error {
	if _, err := svc.repo.DeleteBookingBlocks(ctx, bookingID, exec...); err != nil {
		return errors.Wrap(err, "releasing blocks")
	}
	return nil
}

func minDate(dates []time.Time) time.Time {
	m := dates[0]
	for _, d := range dates[1:] {
		if d.Before(m) {
			m = d
		}
	}
	return m
}

func maxDate(dates []time.Time) time.Time {
	m := dates[0]
	for _, d := range dates[1:] {
		if d.After(m) {
			m = d
		}
	}
	return m
}
