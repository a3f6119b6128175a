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
	"github.com/trezcool/slopeside/core/calendar"
)

const calendarBlocksTable = "calendar_blocks"

var calendarBlockMapping = mapTable(calendarBlocksTable, calendarBlockRow{})

type calendarBlockRow struct {
	ID           string      `boil:"id"`
	InstructorID string      `boil:"instructor_id"`
	BookingID    null.String `boil:"booking_id"`
	Date         time.Time   `boil:"date"`
	Kind         string      `boil:"kind"`
	Note         string      `boil:"note"`
	CreatedAt    time.Time   `boil:"created_at"`
}

func (r calendarBlockRow) unboil() calendar.Block {
	return calendar.Block{
		ID:           r.ID,
		InstructorID: r.InstructorID,
		BookingID:    stringPtr(r.BookingID),
		Date:         core.Day(r.Date),
		Kind:         r.Kind,
		Note:         r.Note,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type calendarRepository struct {
	exec core.DBExecutor
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(exec core.DBExecutor) calendar.Repository {
	return &calendarRepository{exec: exec}
}

// CreateBlocks inserts blocks one by one; callers wrap it in a transaction.
func (repo calendarRepository) CreateBlocks(ctx context.Context, blocks []calendar.Block, exec ...core.DBExecutor) ([]calendar.Block, error) {
	exe := core.GetExec(repo.exec, exec)
	created := make([]calendar.Block, 0, len(blocks))
	for _, b := range blocks {
		b.ID = uuid.New().String()
		r := calendarBlockRow{
			ID:           b.ID,
			InstructorID: b.InstructorID,
			BookingID:    nullStringPtr(b.BookingID),
			Date:         core.Day(b.Date),
			Kind:         b.Kind,
			Note:         b.Note,
			CreatedAt:    b.CreatedAt.UTC(),
		}
		if err := insert(ctx, exe, calendarBlockMapping, r); err != nil {
			return nil, errors.Wrap(err, "inserting calendar block")
		}
		created = append(created, r.unboil())
	}
	return created, nil
}

func (repo calendarRepository) QueryBlocks(ctx context.Context, filter calendar.BlockFilter, exec ...core.DBExecutor) ([]calendar.Block, error) {
	mods := calendarBlockMapping.selectAll()
	if filter.InstructorID != "" {
		mods = append(mods, qm.Where(`"calendar_blocks"."instructor_id" = ?`, filter.InstructorID))
	}
	if filter.BookingID != "" {
		mods = append(mods, qm.Where(`"calendar_blocks"."booking_id" = ?`, filter.BookingID))
	}
	if !filter.From.IsZero() {
		mods = append(mods, qm.Where(`"calendar_blocks"."date" >= ?`, core.Day(filter.From)))
	}
	if !filter.To.IsZero() {
		mods = append(mods, qm.Where(`"calendar_blocks"."date" <= ?`, core.Day(filter.To)))
	}
	if len(filter.Kinds) > 0 {
		mods = append(mods, qm.Where(`"calendar_blocks"."kind" = ANY(?)`, types.StringArray(filter.Kinds)))
	}
	mods = append(mods, qm.OrderBy(`"calendar_blocks"."date" ASC, "calendar_blocks"."id" ASC`))

	var rows []calendarBlockRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying calendar blocks")
	}
	blocks := make([]calendar.Block, 0, len(rows))
	for _, r := range rows {
		blocks = append(blocks, r.unboil())
	}
	return blocks, nil
}

func (repo calendarRepository) GetBlock(ctx context.Context, id string, exec ...core.DBExecutor) (calendar.Block, error) {
	if !validUUID(id) {
		return calendar.Block{}, calendar.ErrBlockNotFound
	}
	mods := append(calendarBlockMapping.selectAll(), qm.Where(`"calendar_blocks"."id" = ?`, id))

	var r calendarBlockRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return calendar.Block{}, trapNoRowsErr(err, calendar.ErrBlockNotFound, "finding calendar block")
	}
	return r.unboil(), nil
}

func (repo calendarRepository) UpdateBlocksKind(ctx context.Context, bookingID, kind string, exec ...core.DBExecutor) (int, error) {
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec),
		`UPDATE "calendar_blocks" SET "kind" = $1 WHERE "booking_id" = $2`, kind, bookingID)
	if err != nil {
		return 0, errors.Wrap(err, "updating booking blocks")
	}
	return n, nil
}

func (repo calendarRepository) DeleteBookingBlocks(ctx context.Context, bookingID string, exec ...core.DBExecutor) (int, error) {
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec), `DELETE FROM "calendar_blocks" WHERE "booking_id" = $1`, bookingID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting booking blocks")
	}
	return n, nil
}

func (repo calendarRepository) DeleteBlock(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return calendar.ErrBlockNotFound
	}
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec), `DELETE FROM "calendar_blocks" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting calendar block")
	}
	if n == 0 {
		return calendar.ErrBlockNotFound
	}
	return nil
}
