package pricing

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/trezcool/slopeside/core"
)

var (
	ErrNoBaseRate  = stderrors.New("this instructor has no base hourly rate")
	errTooManyDays = fmt.Errorf("a booking cannot exceed %d days", MaxDays)
	errHoursRange  = fmt.Errorf("hours per day must be between %d and %d", MinHoursPerDay, MaxHoursPerDay)
	errGroupRange  = fmt.Errorf("the group size must be between %d and %d", MinGroupSize, MaxGroupSize)
)

// Quote line kinds, on top of the rule kinds
const LineBase = "base"

// Calculator prices lessons from an instructor's active rules.
// All amounts are integer cents; every percentage line is rounded half-up on its own.
type Calculator struct {
	Currency string
}

func NewCalculator(currency string) Calculator {
	return Calculator{Currency: currency}
}

// Check validates the lesson bounds.
func (l Lesson) Check() error {
	start, end := core.Day(l.Start), core.Day(l.End)
	switch {
	case end.Before(start):
		return core.NewFieldError("end_date", errInvalidPeriod)
	case core.DayCount(start, end) > MaxDays:
		return core.NewFieldError("end_date", errTooManyDays)
	case l.HoursPerDay < MinHoursPerDay || l.HoursPerDay > MaxHoursPerDay:
		return core.NewFieldError("hours_per_day", errHoursRange)
	case l.GroupSize < MinGroupSize || l.GroupSize > MaxGroupSize:
		return core.NewFieldError("group_size", errGroupRange)
	}
	return nil
}

// Compute prices a lesson. Inactive rules are ignored.
func (calc Calculator) Compute(rules []Rule, lesson Lesson) (Quote, error) {
	if err := lesson.Check(); err != nil {
		return Quote{}, err
	}
	rules = activeRules(rules)
	base, ok := baseRule(rules)
	if !ok {
		return Quote{}, core.NewValidationError(ErrNoBaseRate, core.FieldError{Field: "pricing", Error: ErrNoBaseRate.Error()})
	}

	days := core.DaysBetween(lesson.Start, lesson.End)
	hours := lesson.HoursPerDay
	extra, hasExtra := bestGroupExtra(rules, lesson.GroupSize)

	var baseTotal, extraTotal, peakTotal int
	for _, day := range days {
		dayBase := base.AmountCents * hours
		dayExtra := 0
		if hasExtra {
			dayExtra = extra.AmountCents * (lesson.GroupSize - 1) * hours
		}
		if peak, found := bestPeak(rules, day); found {
			peakTotal += percentOf(dayBase+dayExtra, peak.Percent)
		}
		baseTotal += dayBase
		extraTotal += dayExtra
	}

	quote := Quote{
		Days:        len(days),
		HoursPerDay: hours,
		GroupSize:   lesson.GroupSize,
		Currency:    calc.Currency,
		Lines: []QuoteLine{{
			Kind:        LineBase,
			Description: fmt.Sprintf("%d day(s) x %dh", len(days), hours),
			AmountCents: baseTotal,
		}},
	}
	if extraTotal > 0 {
		quote.Lines = append(quote.Lines, QuoteLine{
			Kind:        KindGroupExtra,
			Description: fmt.Sprintf("%d extra person(s)", lesson.GroupSize-1),
			AmountCents: extraTotal,
		})
	}
	if peakTotal > 0 {
		quote.Lines = append(quote.Lines, QuoteLine{
			Kind:        KindPeakPeriod,
			Description: "peak period surcharge",
			AmountCents: peakTotal,
		})
	}
	quote.SubtotalCents = baseTotal + extraTotal + peakTotal

	remaining := quote.SubtotalCents
	if tier, found := bestDurationTier(rules, hours); found {
		discount := percentOf(remaining, tier.Percent)
		remaining -= discount
		quote.DiscountCents += discount
		quote.Lines = append(quote.Lines, QuoteLine{
			Kind:        KindDurationTier,
			Description: fmt.Sprintf("%d%% off from %dh per day", tier.Percent, tier.MinHours),
			AmountCents: -discount,
		})
	}
	if md, found := bestMultiDay(rules, len(days)); found {
		discount := percentOf(remaining, md.Percent)
		remaining -= discount
		quote.DiscountCents += discount
		quote.Lines = append(quote.Lines, QuoteLine{
			Kind:        KindMultiDay,
			Description: fmt.Sprintf("%d%% off from %d days", md.Percent, md.MinDays),
			AmountCents: -discount,
		})
	}
	if remaining < 0 {
		remaining = 0
	}
	quote.TotalCents = remaining
	return quote, nil
}

// percentOf returns pct% of amount, rounded half-up.
func percentOf(amount, pct int) int {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return (amount*pct + 50) / 100
}

func activeRules(rules []Rule) []Rule {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	return active
}

// baseRule returns the most recent active base rate.
func baseRule(rules []Rule) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range rules {
		if r.Kind == KindBaseHourly && (!found || r.CreatedAt.After(best.CreatedAt)) {
			best, found = r, true
		}
	}
	return best, found
}

// bestGroupExtra picks the rule with the highest MinGroupSize <= size.
func bestGroupExtra(rules []Rule, size int) (Rule, bool) {
	if size < 2 {
		return Rule{}, false
	}
	return bestBy(rules, KindGroupExtra, func(r Rule) (int, bool) { return r.MinGroupSize, r.MinGroupSize <= size })
}

// bestDurationTier picks the rule with the highest MinHours <= hours.
func bestDurationTier(rules []Rule, hours int) (Rule, bool) {
	return bestBy(rules, KindDurationTier, func(r Rule) (int, bool) { return r.MinHours, r.MinHours <= hours })
}

// bestMultiDay picks the rule with the highest MinDays <= days.
func bestMultiDay(rules []Rule, days int) (Rule, bool) {
	return bestBy(rules, KindMultiDay, func(r Rule) (int, bool) { return r.MinDays, r.MinDays <= days })
}

// bestPeak picks the highest surcharge among the periods covering day.
func bestPeak(rules []Rule, day time.Time) (Rule, bool) {
	return bestBy(rules, KindPeakPeriod, func(r Rule) (int, bool) { return r.Percent, r.covers(day) })
}

// bestBy returns the matching rule of kind with the highest score; ties keep the highest percent.
func bestBy(rules []Rule, kind string, score func(Rule) (int, bool)) (Rule, bool) {
	var (
		best      Rule
		bestScore int
		found     bool
	)
	for _, r := range rules {
		if r.Kind != kind {
			continue
		}
		s, ok := score(r)
		if !ok {
			continue
		}
		if !found || s > bestScore || (s == bestScore && r.Percent > best.Percent) {
			best, bestScore, found = r, s, true
		}
	}
	return best, found
}
