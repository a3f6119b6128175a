package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/resort"
)

const (
	resortsTable        = "resorts"
	resortRequestsTable = "resort_requests"
)

var (
	resortMapping        = mapTable(resortsTable, resortRow{})
	resortRequestMapping = mapTable(resortRequestsTable, resortRequestRow{})
)

type resortRow struct {
	ID        string    `boil:"id"`
	Name      string    `boil:"name"`
	Slug      string    `boil:"slug"`
	Country   string    `boil:"country"`
	Region    string    `boil:"region"`
	Active    bool      `boil:"active"`
	CreatedAt time.Time `boil:"created_at"`
}

func (r resortRow) unboil() resort.Resort {
	return resort.Resort{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		Country:   r.Country,
		Region:    r.Region,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type resortRequestRow struct {
	ID          string      `boil:"id"`
	RequestedBy string      `boil:"requested_by"`
	Name        string      `boil:"name"`
	Country     string      `boil:"country"`
	Region      string      `boil:"region"`
	Status      string      `boil:"status"`
	ReviewedBy  null.String `boil:"reviewed_by"`
	ReviewNote  string      `boil:"review_note"`
	ResortID    null.String `boil:"resort_id"`
	CreatedAt   time.Time   `boil:"created_at"`
	ReviewedAt  null.Time   `boil:"reviewed_at"`
}

func (r resortRequestRow) unboil() resort.Request {
	return resort.Request{
		ID:          r.ID,
		RequestedBy: r.RequestedBy,
		Name:        r.Name,
		Country:     r.Country,
		Region:      r.Region,
		Status:      r.Status,
		ReviewedBy:  stringPtr(r.ReviewedBy),
		ReviewNote:  r.ReviewNote,
		ResortID:    stringPtr(r.ResortID),
		CreatedAt:   r.CreatedAt.UTC(),
		ReviewedAt:  timePtr(r.ReviewedAt),
	}
}

type resortRepository struct {
	exec core.DBExecutor
}

var _ resort.Repository = (*resortRepository)(nil) // interface compliance check

func NewResortRepository(exec core.DBExecutor) resort.Repository {
	return &resortRepository{exec: exec}
}

func (repo resortRepository) boil(rst resort.Resort) resortRow {
	return resortRow{
		ID:        rst.ID,
		Name:      rst.Name,
		Slug:      rst.Slug,
		Country:   rst.Country,
		Region:    rst.Region,
		Active:    rst.Active,
		CreatedAt: rst.CreatedAt.UTC(),
	}
}

func (repo resortRepository) boilRequest(req resort.Request) resortRequestRow {
	return resortRequestRow{
		ID:          req.ID,
		RequestedBy: req.RequestedBy,
		Name:        req.Name,
		Country:     req.Country,
		Region:      req.Region,
		Status:      req.Status,
		ReviewedBy:  nullStringPtr(req.ReviewedBy),
		ReviewNote:  req.ReviewNote,
		ResortID:    nullStringPtr(req.ResortID),
		CreatedAt:   req.CreatedAt.UTC(),
		ReviewedAt:  nullTimePtr(req.ReviewedAt),
	}
}

// sameResort matches rows of table holding the resort name in country.
func sameResort(table, name, country string) []qm.QueryMod {
	return []qm.QueryMod{
		qm.Where(quote(table)+`."country" = ?`, strings.ToUpper(country)),
		qm.Where(`lower(`+quote(table)+`."name") = lower(?)`, core.CleanString(name)),
	}
}

func (repo resortRepository) CreateResort(ctx context.Context, rst resort.Resort, exec ...core.DBExecutor) (resort.Resort, error) {
	rst.ID = uuid.New().String()
	r := repo.boil(rst)
	if err := insert(ctx, core.GetExec(repo.exec, exec), resortMapping, r); err != nil {
		if isUniqueViolation(err) {
			return resort.Resort{}, resort.ErrResortExists
		}
		return resort.Resort{}, errors.Wrap(err, "inserting resort")
	}
	return r.unboil(), nil
}

func (repo resortRepository) GetResort(ctx context.Context, id string, exec ...core.DBExecutor) (resort.Resort, error) {
	if !validUUID(id) {
		return resort.Resort{}, resort.ErrNotFound
	}
	mods := append(resortMapping.selectAll(), qm.Where(`"resorts"."id" = ?`, id))

	var r resortRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return resort.Resort{}, trapNoRowsErr(err, resort.ErrNotFound, "finding resort")
	}
	return r.unboil(), nil
}

func (repo resortRepository) UpdateResort(ctx context.Context, rst resort.Resort, exec ...core.DBExecutor) (resort.Resort, error) {
	r := repo.boil(rst)
	n, err := update(ctx, core.GetExec(repo.exec, exec), resortMapping, r.ID, r)
	if err != nil {
		if isUniqueViolation(err) {
			return resort.Resort{}, resort.ErrResortExists
		}
		return resort.Resort{}, errors.Wrap(err, "updating resort")
	}
	if n == 0 {
		return resort.Resort{}, resort.ErrNotFound
	}
	return r.unboil(), nil
}

func (repo resortRepository) QueryResorts(ctx context.Context, filter resort.QueryFilter, page core.PageRequest, exec ...core.DBExecutor) ([]resort.Resort, int, error) {
	exe := core.GetExec(repo.exec, exec)
	var where []qm.QueryMod
	if filter.ActiveOnly {
		where = append(where, qm.Where(`"resorts"."active"`))
	}
	if filter.Country != "" {
		where = append(where, qm.Where(`"resorts"."country" = ?`, filter.Country))
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		where = append(where, qm.Expr(
			qm.Where(`"resorts"."name" ILIKE ?`, val),
			qm.Or(`"resorts"."region" ILIKE ?`, val),
		))
	}

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(resortsTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting resorts")
	}

	mods := append(resortMapping.selectAll(), where...)
	mods = append(mods, qm.OrderBy(`"resorts"."country" ASC, lower("resorts"."name") ASC, "resorts"."id" ASC`))
	mods = append(mods, paginate(page)...)

	var rows []resortRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying resorts")
	}
	resorts := make([]resort.Resort, 0, len(rows))
	for _, r := range rows {
		resorts = append(resorts, r.unboil())
	}
	return resorts, total, nil
}

func (repo resortRepository) QueryResortsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]resort.Resort, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []resort.Resort{}, nil
	}
	mods := append(resortMapping.selectAll(), qm.Where(`"resorts"."id" = ANY(?::uuid[])`, types.StringArray(valid)))

	var rows []resortRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying resorts by ID")
	}
	resorts := make([]resort.Resort, 0, len(rows))
	for _, r := range rows {
		resorts = append(resorts, r.unboil())
	}
	return resorts, nil
}

func (repo resortRepository) ResortExists(ctx context.Context, name, country string, exec ...core.DBExecutor) (bool, error) {
	mods := append([]qm.QueryMod{qm.From(quote(resortsTable))}, sameResort(resortsTable, name, country)...)
	found, err := exists(ctx, core.GetExec(repo.exec, exec), mods...)
	if err != nil {
		return false, errors.Wrap(err, "checking resort")
	}
	return found, nil
}

func (repo resortRepository) CreateRequest(ctx context.Context, req resort.Request, exec ...core.DBExecutor) (resort.Request, error) {
	req.ID = uuid.New().String()
	r := repo.boilRequest(req)
	if err := insert(ctx, core.GetExec(repo.exec, exec), resortRequestMapping, r); err != nil {
		return resort.Request{}, errors.Wrap(err, "inserting resort request")
	}
	return r.unboil(), nil
}

func (repo resortRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (resort.Request, error) {
	if !validUUID(id) {
		return resort.Request{}, resort.ErrRequestNotFound
	}
	mods := append(resortRequestMapping.selectAll(), qm.Where(`"resort_requests"."id" = ?`, id))

	var r resortRequestRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return resort.Request{}, trapNoRowsErr(err, resort.ErrRequestNotFound, "finding resort request")
	}
	return r.unboil(), nil
}

func (repo resortRepository) UpdateRequest(ctx context.Context, req resort.Request, from string, exec ...core.DBExecutor) (resort.Request, error) {
	exe := core.GetExec(repo.exec, exec)
	r := repo.boilRequest(req)
	n, err := update(ctx, exe, resortRequestMapping, r.ID, r, cond(`"status" = ?`, from))
	if err != nil {
		return resort.Request{}, errors.Wrap(err, "updating resort request")
	}
	if n == 0 {
		return resort.Request{}, missed(ctx, exe, resortRequestsTable, r.ID, resort.ErrRequestNotFound, resort.ErrAlreadyReviewed)
	}
	return r.unboil(), nil
}

func (repo resortRepository) QueryRequests(ctx context.Context, filter resort.RequestFilter, page core.PageRequest, exec ...core.DBExecutor) ([]resort.Request, int, error) {
	exe := core.GetExec(repo.exec, exec)
	var where []qm.QueryMod
	if filter.Status != "" {
		where = append(where, qm.Where(`"resort_requests"."status" = ?`, filter.Status))
	}

	total, err := count(ctx, exe, append([]qm.QueryMod{qm.From(quote(resortRequestsTable))}, where...)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting resort requests")
	}

	mods := append(resortRequestMapping.selectAll(), where...)
	mods = append(mods, qm.OrderBy(`"resort_requests"."created_at" DESC, "resort_requests"."id" ASC`))
	mods = append(mods, paginate(page)...)

	var rows []resortRequestRow
	if err = bind(ctx, exe, &rows, mods...); err != nil {
		return nil, 0, errors.Wrap(err, "querying resort requests")
	}
	requests := make([]resort.Request, 0, len(rows))
	for _, r := range rows {
		requests = append(requests, r.unboil())
	}
	return requests, total, nil
}

func (repo resortRepository) PendingRequestExists(ctx context.Context, name, country string, exec ...core.DBExecutor) (bool, error) {
	mods := append([]qm.QueryMod{
		qm.From(quote(resortRequestsTable)),
		qm.Where(`"resort_requests"."status" = ?`, resort.StatusPending),
	}, sameResort(resortRequestsTable, name, country)...)

	found, err := exists(ctx, core.GetExec(repo.exec, exec), mods...)
	if err != nil {
		return false, errors.Wrap(err, "checking pending resort request")
	}
	return found, nil
}
