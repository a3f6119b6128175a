package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/pricing"
)

const pricingRulesTable = "pricing_rules"

var pricingRuleMapping = mapTable(pricingRulesTable, pricingRuleRow{})

type pricingRuleRow struct {
	ID           string    `boil:"id"`
	InstructorID string    `boil:"instructor_id"`
	Kind         string    `boil:"kind"`
	AmountCents  int       `boil:"amount_cents"`
	Percent      int       `boil:"percent"`
	MinHours     int       `boil:"min_hours"`
	MinDays      int       `boil:"min_days"`
	MinGroupSize int       `boil:"min_group_size"`
	StartDate    null.Time `boil:"start_date"`
	EndDate      null.Time `boil:"end_date"`
	Active       bool      `boil:"active"`
	CreatedAt    time.Time `boil:"created_at"`
	UpdatedAt    time.Time `boil:"updated_at"`
}

type pricingRepository struct {
	exec core.DBExecutor
}

var _ pricing.Repository = (*pricingRepository)(nil) // interface compliance check

func NewPricingRepository(exec core.DBExecutor) pricing.Repository {
	return &pricingRepository{exec: exec}
}

func (repo pricingRepository) boil(rule pricing.Rule) pricingRuleRow {
	return pricingRuleRow{
		ID:           rule.ID,
		InstructorID: rule.InstructorID,
		Kind:         rule.Kind,
		AmountCents:  rule.AmountCents,
		Percent:      rule.Percent,
		MinHours:     rule.MinHours,
		MinDays:      rule.MinDays,
		MinGroupSize: rule.MinGroupSize,
		StartDate:    nullTimePtr(rule.StartDate),
		EndDate:      nullTimePtr(rule.EndDate),
		Active:       rule.Active,
		CreatedAt:    rule.CreatedAt.UTC(),
		UpdatedAt:    rule.UpdatedAt.UTC(),
	}
}

func (repo pricingRepository) unboil(r pricingRuleRow) pricing.Rule {
	return pricing.Rule{
		ID:           r.ID,
		InstructorID: r.InstructorID,
		Kind:         r.Kind,
		AmountCents:  r.AmountCents,
		Percent:      r.Percent,
		MinHours:     r.MinHours,
		MinDays:      r.MinDays,
		MinGroupSize: r.MinGroupSize,
		StartDate:    timePtr(r.StartDate),
		EndDate:      timePtr(r.EndDate),
		Active:       r.Active,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (repo pricingRepository) CreateRule(ctx context.Context, rule pricing.Rule, exec ...core.DBExecutor) (pricing.Rule, error) {
	rule.ID = uuid.New().String()
	r := repo.boil(rule)
	if err := insert(ctx, core.GetExec(repo.exec, exec), pricingRuleMapping, r); err != nil {
		return pricing.Rule{}, errors.Wrap(err, "inserting pricing rule")
	}
	return repo.unboil(r), nil
}

func (repo pricingRepository) GetRule(ctx context.Context, id string, exec ...core.DBExecutor) (pricing.Rule, error) {
	if !validUUID(id) {
		return pricing.Rule{}, pricing.ErrRuleNotFound
	}
	mods := append(pricingRuleMapping.selectAll(), qm.Where(`"pricing_rules"."id" = ?`, id))

	var r pricingRuleRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &r, mods...); err != nil {
		return pricing.Rule{}, trapNoRowsErr(err, pricing.ErrRuleNotFound, "finding pricing rule")
	}
	return repo.unboil(r), nil
}

func (repo pricingRepository) UpdateRule(ctx context.Context, rule pricing.Rule, exec ...core.DBExecutor) (pricing.Rule, error) {
	r := repo.boil(rule)
	n, err := update(ctx, core.GetExec(repo.exec, exec), pricingRuleMapping, r.ID, r)
	if err != nil {
		return pricing.Rule{}, errors.Wrap(err, "updating pricing rule")
	}
	if n == 0 {
		return pricing.Rule{}, pricing.ErrRuleNotFound
	}
	return repo.unboil(r), nil
}

func (repo pricingRepository) DeleteRule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return pricing.ErrRuleNotFound
	}
	n, err := execRaw(ctx, core.GetExec(repo.exec, exec), `DELETE FROM "pricing_rules" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting pricing rule")
	}
	if n == 0 {
		return pricing.ErrRuleNotFound
	}
	return nil
}

func (repo pricingRepository) QueryRules(ctx context.Context, instructorID string, activeOnly bool, exec ...core.DBExecutor) ([]pricing.Rule, error) {
	mods := append(pricingRuleMapping.selectAll(), qm.Where(`"pricing_rules"."instructor_id" = ?`, instructorID))
	if activeOnly {
		mods = append(mods, qm.Where(`"pricing_rules"."active"`))
	}
	mods = append(mods, qm.OrderBy(`"pricing_rules"."created_at" ASC, "pricing_rules"."id" ASC`))

	var rows []pricingRuleRow
	if err := bind(ctx, core.GetExec(repo.exec, exec), &rows, mods...); err != nil {
		return nil, errors.Wrap(err, "querying pricing rules")
	}
	rules := make([]pricing.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, repo.unboil(r))
	}
	return rules, nil
}

func (repo pricingRepository) DeactivateBaseRules(ctx context.Context, instructorID, exceptID string, exec ...core.DBExecutor) error {
	query := `UPDATE "pricing_rules" SET "active" = false, "updated_at" = $1
		WHERE "instructor_id" = $2 AND "kind" = $3 AND "active"`
	args := []interface{}{core.NowFunc().UTC(), instructorID, pricing.KindBaseHourly}
	if exceptID != "" {
		query += ` AND "id" <> $4`
		args = append(args, exceptID)
	}
	if _, err := execRaw(ctx, core.GetExec(repo.exec, exec), query, args...); err != nil {
		return errors.Wrap(err, "deactivating base rates")
	}
	return nil
}

func (repo pricingRepository) HasActiveBaseRule(ctx context.Context, instructorID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, core.GetExec(repo.exec, exec),
		qm.From(quote(pricingRulesTable)),
		qm.Where(`"pricing_rules"."instructor_id" = ?`, instructorID),
		qm.Where(`"pricing_rules"."kind" = ?`, pricing.KindBaseHourly),
		qm.Where(`"pricing_rules"."active"`),
	)
	if err != nil {
		return false, errors.Wrap(err, "checking base rate")
	}
	return found, nil
}
