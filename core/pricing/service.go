package pricing

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/instructor"
)

var (
	// errors
	ErrRuleNotFound = core.NewNotFoundError("pricing rule not found")
	ErrLastBaseRate = stderrors.New("a published profile must keep a base hourly rate")
)

type (
	Repository interface {
		CreateRule(ctx context.Context, rule Rule, exec ...core.DBExecutor) (Rule, error)
		GetRule(ctx context.Context, id string, exec ...core.DBExecutor) (Rule, error)
		UpdateRule(ctx context.Context, rule Rule, exec ...core.DBExecutor) (Rule, error)
		DeleteRule(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryRules returns the rules of an instructor, oldest first.
		QueryRules(ctx context.Context, instructorID string, activeOnly bool, exec ...core.DBExecutor) ([]Rule, error)
		// DeactivateBaseRules deactivates every active base rate of an instructor but exceptID.
		DeactivateBaseRules(ctx context.Context, instructorID, exceptID string, exec ...core.DBExecutor) error
		HasActiveBaseRule(ctx context.Context, instructorID string, exec ...core.DBExecutor) (bool, error)
	}

	ProfileFinder interface {
		GetByID(ctx context.Context, id string) (instructor.Instructor, error)
		GetByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (instructor.Instructor, error)
	}

	Service struct {
		repo     Repository
		profiles ProfileFinder
		tx       core.TxRunner
		calc     Calculator
	}
)

func NewService(repo Repository, profiles ProfileFinder, tx core.TxRunner, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		tx:       tx,
		calc:     NewCalculator(conf.Marketplace.Currency),
	}
}

func (svc *Service) ListRules(ctx context.Context, instructorID string) ([]Rule, error) {
	rules, err := svc.repo.QueryRules(ctx, instructorID, false)
	if err != nil {
		return nil, errors.Wrap(err, "querying pricing rules")
	}
	return rules, nil
}

func (svc *Service) ListOwnRules(ctx context.Context, userID string) ([]Rule, error) {
	ins, err := svc.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return svc.ListRules(ctx, ins.ID)
}

// CreateRule adds a rule to the caller's profile. A new base rate replaces the active one.
func (svc *Service) CreateRule(ctx context.Context, userID string, nr NewRule) (Rule, error) {
	ins, err := svc.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return Rule{}, err
	}

	now := core.NowFunc()
	rule := Rule{
		InstructorID: ins.ID,
		Kind:         nr.Kind,
		AmountCents:  nr.AmountCents,
		Percent:      nr.Percent,
		MinHours:     nr.MinHours,
		MinDays:      nr.MinDays,
		MinGroupSize: nr.MinGroupSize,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = setPeriod(&rule, nr.StartDate, nr.EndDate); err != nil {
		return Rule{}, err
	}
	if flds := rule.check(); len(flds) > 0 {
		return Rule{}, core.NewValidationError(nil, flds...)
	}

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if rule, err = svc.repo.CreateRule(ctx, rule, exec); err != nil {
			return errors.Wrap(err, "inserting pricing rule")
		}
		if rule.Kind == KindBaseHourly {
			if err = svc.repo.DeactivateBaseRules(ctx, ins.ID, rule.ID, exec); err != nil {
				return errors.Wrap(err, "deactivating previous base rate")
			}
		}
		return nil
	})
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (svc *Service) ownRule(ctx context.Context, userID, ruleID string) (instructor.Instructor, Rule, error) {
	ins, err := svc.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return instructor.Instructor{}, Rule{}, err
	}
	rule, err := svc.repo.GetRule(ctx, ruleID)
	if err != nil {
		return instructor.Instructor{}, Rule{}, err
	}
	if rule.InstructorID != ins.ID {
		return instructor.Instructor{}, Rule{}, ErrRuleNotFound
	}
	return ins, rule, nil
}

func (svc *Service) UpdateRule(ctx context.Context, userID, ruleID string, ur UpdateRule) (Rule, error) {
	ins, rule, err := svc.ownRule(ctx, userID, ruleID)
	if err != nil {
		return Rule{}, err
	}
	if ur.Kind != "" && ur.Kind != rule.Kind {
		return Rule{}, core.NewFieldError("kind", errRuleKindChanged)
	}

	wasActive := rule.Active
	rule.AmountCents = ur.AmountCents
	rule.Percent = ur.Percent
	rule.MinHours = ur.MinHours
	rule.MinDays = ur.MinDays
	rule.MinGroupSize = ur.MinGroupSize
	if ur.Active != nil {
		rule.Active = *ur.Active
	}
	if err = setPeriod(&rule, ur.StartDate, ur.EndDate); err != nil {
		return Rule{}, err
	}
	if flds := rule.check(); len(flds) > 0 {
		return Rule{}, core.NewValidationError(nil, flds...)
	}
	if rule.Kind == KindBaseHourly && wasActive && !rule.Active && ins.Published {
		return Rule{}, core.NewFieldError("active", ErrLastBaseRate)
	}
	rule.UpdatedAt = core.NowFunc()

	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		if rule, err = svc.repo.UpdateRule(ctx, rule, exec); err != nil {
			return errors.Wrap(err, "updating pricing rule")
		}
		if rule.Kind == KindBaseHourly && rule.Active && !wasActive {
			if err = svc.repo.DeactivateBaseRules(ctx, ins.ID, rule.ID, exec); err != nil {
				return errors.Wrap(err, "deactivating previous base rate")
			}
		}
		return nil
	})
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// DeleteRule removes a rule; a published profile cannot lose its active base rate.
func (svc *Service) DeleteRule(ctx context.Context, userID, ruleID string) error {
	ins, rule, err := svc.ownRule(ctx, userID, ruleID)
	if err != nil {
		return err
	}
	if rule.Kind == KindBaseHourly && rule.Active && ins.Published {
		return core.NewValidationError(ErrLastBaseRate)
	}
	if err = svc.repo.DeleteRule(ctx, rule.ID); err != nil {
		return errors.Wrap(err, "deleting pricing rule")
	}
	return nil
}

// Quote prices a lesson with a public instructor.
func (svc *Service) Quote(ctx context.Context, qr QuoteRequest) (Quote, error) {
	if _, err := svc.profiles.GetByID(ctx, qr.InstructorID); err != nil {
		return Quote{}, err
	}
	lesson, err := qr.Lesson()
	if err != nil {
		return Quote{}, err
	}
	return svc.QuoteLesson(ctx, qr.InstructorID, lesson)
}

// QuoteLesson prices a parsed lesson, optionally inside the caller's transaction.
func (svc *Service) QuoteLesson(ctx context.Context, instructorID string, lesson Lesson, exec ...core.DBExecutor) (Quote, error) {
	rules, err := svc.repo.QueryRules(ctx, instructorID, true, exec...)
	if err != nil {
		return Quote{}, errors.Wrap(err, "querying pricing rules")
	}
	return svc.calc.Compute(rules, lesson)
}

func setPeriod(rule *Rule, start, end string) error {
	if rule.Kind != KindPeakPeriod {
		rule.StartDate, rule.EndDate = nil, nil
		return nil
	}
	var err error
	if rule.StartDate, err = parseOptionalDate(start); err != nil {
		return core.NewFieldError("start_date", err)
	}
	if rule.EndDate, err = parseOptionalDate(end); err != nil {
		return core.NewFieldError("end_date", err)
	}
	return nil
}
