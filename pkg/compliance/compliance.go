// Package compliance checks candidate shift assignments against a worker's
// and role's constraints. Evaluation is pure: no rule mutates anything, and
// every violated rule is reported, not just the first.
package compliance

import (
	"sort"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

// RuleKind identifies one compliance rule.
type RuleKind string

const (
	RuleOverlap     RuleKind = "overlap"
	RuleMinGap      RuleKind = "min_hours_between_shifts"
	RuleMaxDaily    RuleKind = "max_hours_per_workday"
	RuleMinDaily    RuleKind = "min_hours_per_workday"
	RuleConsecutive RuleKind = "max_consecutive_workdays"
	RuleWeeklyMax   RuleKind = "max_hours_per_workweek"

	// RuleWeeklyMin is never a per-assignment blocker (adding a shift can
	// only raise a worker's weekly total); the engine tallies it in run
	// reports for workers still under their minimum after assignment.
	RuleWeeklyMin RuleKind = "min_hours_per_workweek"
)

// Policy carries the organization flags that soften rules.
type Policy struct {
	WorkersCanClaimShiftsInExcessOfMax bool
}

// Context is everything a rule may read: the worker-role relation, the
// worker's already-assigned shifts for the schedule week, the week bounds
// and the location timezone for day arithmetic.
type Context struct {
	Worker    models.Worker
	Role      models.Role
	Org       Policy
	Existing  []models.Shift
	WeekStart time.Time
	WeekStop  time.Time
	Location  *time.Location
}

func (c *Context) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Result is the outcome of evaluating one candidate assignment.
type Result struct {
	Allowed    bool       `json:"allowed"`
	Violated   []RuleKind `json:"violated,omitempty"`
	WithinCaps bool       `json:"within_caps"`
}

// Rule is one independent compliance check. Evaluate reports whether the
// candidate violates this rule given the context.
type Rule interface {
	Kind() RuleKind
	Evaluate(ctx *Context, candidate models.Shift) bool
}

// Evaluator aggregates a set of rules.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator builds an evaluator over the given rules, in order.
func NewEvaluator(rules ...Rule) *Evaluator {
	return &Evaluator{rules: rules}
}

// DefaultEvaluator carries the full rule set in the documented order.
func DefaultEvaluator() *Evaluator {
	return NewEvaluator(
		overlapRule{},
		minGapRule{},
		maxDailyRule{},
		minDailyRule{},
		consecutiveRule{},
		weeklyMaxRule{},
	)
}

// CanAssign evaluates every rule against the candidate. A violated weekly
// maximum only blocks when the organization does not allow workers to claim
// shifts in excess of their max; otherwise it is advisory and surfaces as
// WithinCaps=false.
func (e *Evaluator) CanAssign(ctx *Context, candidate models.Shift) Result {
	res := Result{Allowed: true, WithinCaps: true}
	for _, rule := range e.rules {
		if !rule.Evaluate(ctx, candidate) {
			continue
		}
		if rule.Kind() == RuleWeeklyMax {
			res.WithinCaps = false
			if ctx.Org.WorkersCanClaimShiftsInExcessOfMax {
				continue
			}
		}
		res.Violated = append(res.Violated, rule.Kind())
		res.Allowed = false
	}
	return res
}

// overlapRule: the candidate must not overlap any existing shift of the
// same worker, inclusive start, exclusive stop.
type overlapRule struct{}

func (overlapRule) Kind() RuleKind { return RuleOverlap }

func (overlapRule) Evaluate(ctx *Context, candidate models.Shift) bool {
	for _, s := range ctx.Existing {
		if candidate.Overlaps(s) {
			return true
		}
	}
	return false
}

// minGapRule: the gap to the nearest adjacent shift, before and after, must
// be at least the role minimum. Overlapping shifts are the overlap rule's
// business.
type minGapRule struct{}

func (minGapRule) Kind() RuleKind { return RuleMinGap }

func (minGapRule) Evaluate(ctx *Context, candidate models.Shift) bool {
	minGap := hours(ctx.Role.MinHoursBetweenShifts)
	if minGap <= 0 {
		return false
	}
	for _, s := range ctx.Existing {
		if candidate.Overlaps(s) {
			continue
		}
		var gap time.Duration
		if !s.Stop.After(candidate.Start) {
			gap = candidate.Start.Sub(s.Stop)
		} else {
			gap = s.Start.Sub(candidate.Stop)
		}
		if gap < minGap {
			return true
		}
	}
	return false
}

// maxDailyRule: total worked time on each calendar day the candidate
// touches must stay within the role maximum.
type maxDailyRule struct{}

func (maxDailyRule) Kind() RuleKind { return RuleMaxDaily }

func (maxDailyRule) Evaluate(ctx *Context, candidate models.Shift) bool {
	max := hours(ctx.Role.MaxHoursPerWorkday)
	if max <= 0 {
		return false
	}
	totals := dailyTotals(ctx, candidate)
	for day := range shiftDayStarts(candidate, ctx.loc()) {
		if totals[day] > max {
			return true
		}
	}
	return false
}

// minDailyRule: the minimum applies to a day's total, never the single
// shift; a day with any work whose total stays under the minimum violates.
type minDailyRule struct{}

func (minDailyRule) Kind() RuleKind { return RuleMinDaily }

func (minDailyRule) Evaluate(ctx *Context, candidate models.Shift) bool {
	min := hours(ctx.Role.MinHoursPerWorkday)
	if min <= 0 {
		return false
	}
	totals := dailyTotals(ctx, candidate)
	for day := range shiftDayStarts(candidate, ctx.loc()) {
		if t := totals[day]; t > 0 && t < min {
			return true
		}
	}
	return false
}

// consecutiveRule: no run of worked days containing the candidate's day may
// exceed the role limit. A day counts as worked iff it has any shift.
type consecutiveRule struct{}

func (consecutiveRule) Kind() RuleKind { return RuleConsecutive }

func (consecutiveRule) Evaluate(ctx *Context, candidate models.Shift) bool {
	limit := ctx.Role.MaxConsecutiveWorkdays
	if limit <= 0 {
		return false
	}
	worked := make(map[string]bool)
	days := make(map[string]time.Time)
	for _, s := range ctx.Existing {
		for day, midnight := range shiftDayStarts(s, ctx.loc()) {
			worked[day] = true
			days[day] = midnight
		}
	}
	for day, midnight := range shiftDayStarts(candidate, ctx.loc()) {
		worked[day] = true
		days[day] = midnight
	}
	for day := range shiftDayStarts(candidate, ctx.loc()) {
		run := 1
		for d := days[day].AddDate(0, 0, -1); worked[dayKey(d)]; d = d.AddDate(0, 0, -1) {
			run++
		}
		for d := days[day].AddDate(0, 0, 1); worked[dayKey(d)]; d = d.AddDate(0, 0, 1) {
			run++
		}
		if run > limit {
			return true
		}
	}
	return false
}

// weeklyMaxRule: the worker's total across the schedule week, candidate
// included, must not exceed the relation maximum.
type weeklyMaxRule struct{}

func (weeklyMaxRule) Kind() RuleKind { return RuleWeeklyMax }

func (weeklyMaxRule) Evaluate(ctx *Context, candidate models.Shift) bool {
	max := hours(ctx.Worker.MaxHoursPerWorkweek)
	if max <= 0 {
		return false
	}
	return weekTotal(ctx, candidate) > max
}

// UnderWeeklyMin reports whether the worker's assigned total for the week
// is below the relation minimum. Used for run-report warnings only.
func UnderWeeklyMin(ctx *Context) bool {
	min := hours(ctx.Worker.MinHoursPerWorkweek)
	if min <= 0 {
		return false
	}
	total := time.Duration(0)
	for _, s := range ctx.Existing {
		total += clampToWeek(ctx, s)
	}
	return total < min
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// shiftDayStarts splits a shift over the calendar days it touches in the
// given timezone, returning day key -> that day's midnight.
func shiftDayStarts(s models.Shift, loc *time.Location) map[string]time.Time {
	out := make(map[string]time.Time)
	t := s.Start.In(loc)
	for t.Before(s.Stop) {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		out[dayKey(midnight)] = midnight
		t = midnight.AddDate(0, 0, 1)
	}
	return out
}

// dailyTotals sums worked time per calendar day for the worker's existing
// shifts plus the candidate, splitting shifts across midnight.
func dailyTotals(ctx *Context, candidate models.Shift) map[string]time.Duration {
	totals := make(map[string]time.Duration)
	add := func(s models.Shift) {
		for day, midnight := range shiftDayStarts(s, ctx.loc()) {
			dayStop := midnight.AddDate(0, 0, 1)
			start, stop := s.Start, s.Stop
			if start.Before(midnight) {
				start = midnight
			}
			if stop.After(dayStop) {
				stop = dayStop
			}
			totals[day] += stop.Sub(start)
		}
	}
	for _, s := range ctx.Existing {
		add(s)
	}
	add(candidate)
	return totals
}

func clampToWeek(ctx *Context, s models.Shift) time.Duration {
	start, stop := s.Start, s.Stop
	if !ctx.WeekStart.IsZero() && start.Before(ctx.WeekStart) {
		start = ctx.WeekStart
	}
	if !ctx.WeekStop.IsZero() && stop.After(ctx.WeekStop) {
		stop = ctx.WeekStop
	}
	if !start.Before(stop) {
		return 0
	}
	return stop.Sub(start)
}

func weekTotal(ctx *Context, candidate models.Shift) time.Duration {
	total := clampToWeek(ctx, candidate)
	for _, s := range ctx.Existing {
		total += clampToWeek(ctx, s)
	}
	return total
}

// SortShifts orders shifts by start then id, the canonical evaluation
// order used throughout the engine.
func SortShifts(shifts []models.Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if !shifts[i].Start.Equal(shifts[j].Start) {
			return shifts[i].Start.Before(shifts[j].Start)
		}
		return shifts[i].ID < shifts[j].ID
	})
}
