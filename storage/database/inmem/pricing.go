package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/pricing"
)

type pricingRepository struct {
	db *DB
}

var _ pricing.Repository = (*pricingRepository)(nil) // interface compliance check

func NewPricingRepository(db *DB) pricing.Repository {
	return &pricingRepository{db: db}
}

func (repo *pricingRepository) CreateRule(_ context.Context, rule pricing.Rule, _ ...core.DBExecutor) (pricing.Rule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rule.ID = newID()
	repo.db.rules[rule.ID] = rule
	return rule, nil
}

func (repo *pricingRepository) GetRule(_ context.Context, id string, _ ...core.DBExecutor) (pricing.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rule, ok := repo.db.rules[id]; ok {
		return rule, nil
	}
	return pricing.Rule{}, pricing.ErrRuleNotFound
}

func (repo *pricingRepository) UpdateRule(_ context.Context, rule pricing.Rule, _ ...core.DBExecutor) (pricing.Rule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rules[rule.ID]; !ok {
		return pricing.Rule{}, pricing.ErrRuleNotFound
	}
	repo.db.rules[rule.ID] = rule
	return rule, nil
}

func (repo *pricingRepository) DeleteRule(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rules[id]; !ok {
		return pricing.ErrRuleNotFound
	}
	delete(repo.db.rules, id)
	return nil
}

func (repo *pricingRepository) QueryRules(_ context.Context, instructorID string, activeOnly bool, _ ...core.DBExecutor) ([]pricing.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rules := make([]pricing.Rule, 0)
	for _, rule := range repo.db.rules {
		if rule.InstructorID == instructorID && (rule.Active || !activeOnly) {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (repo *pricingRepository) DeactivateBaseRules(_ context.Context, instructorID, exceptID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := core.NowFunc()
	for id, rule := range repo.db.rules {
		if rule.InstructorID == instructorID && rule.Kind == pricing.KindBaseHourly && rule.Active && id != exceptID {
			rule.Active = false
			rule.UpdatedAt = now
			repo.db.rules[id] = rule
		}
	}
	return nil
}

func (repo *pricingRepository) HasActiveBaseRule(_ context.Context, instructorID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rule := range repo.db.rules {
		if rule.InstructorID == instructorID && rule.Kind == pricing.KindBaseHourly && rule.Active {
			return true, nil
		}
	}
	return false, nil
}
