package compliance

import (
	"testing"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

var weekStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday

func at(day int, hour, min int) time.Time {
	return weekStart.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func shift(day int, startHour, stopHour int) models.Shift {
	return models.Shift{Start: at(day, startHour, 0), Stop: at(day, stopHour, 0)}
}

func testContext(existing ...models.Shift) *Context {
	return &Context{
		Worker: models.Worker{
			UserID:              1,
			MinHoursPerWorkweek: 0,
			MaxHoursPerWorkweek: 40,
		},
		Role: models.Role{
			MinHoursPerWorkday:     0,
			MaxHoursPerWorkday:     8,
			MaxConsecutiveWorkdays: 6,
			MinHoursBetweenShifts:  12,
		},
		Existing:  existing,
		WeekStart: weekStart,
		WeekStop:  weekStart.AddDate(0, 0, 7),
		Location:  time.UTC,
	}
}

func hasViolation(res Result, kind RuleKind) bool {
	for _, k := range res.Violated {
		if k == kind {
			return true
		}
	}
	return false
}

func TestCanAssignClean(t *testing.T) {
	res := DefaultEvaluator().CanAssign(testContext(), shift(0, 9, 13))
	if !res.Allowed {
		t.Errorf("Expected clean candidate to be allowed, violated: %v", res.Violated)
	}
	if !res.WithinCaps {
		t.Error("Expected clean candidate to be within caps")
	}
}

func TestOverlapRejected(t *testing.T) {
	// Worker has [09:00,13:00); candidate [12:00,16:00) must be rejected.
	res := DefaultEvaluator().CanAssign(testContext(shift(0, 9, 13)), shift(0, 12, 16))
	if res.Allowed {
		t.Error("Expected overlapping candidate to be rejected")
	}
	if !hasViolation(res, RuleOverlap) {
		t.Errorf("Expected overlap violation, got %v", res.Violated)
	}
}

func TestBackToBackShiftsDoNotOverlap(t *testing.T) {
	// Inclusive start, exclusive stop: [09:00,13:00) and [13:00,17:00)
	// share no time, so only the gap rule may complain.
	res := DefaultEvaluator().CanAssign(testContext(shift(0, 9, 13)), shift(0, 13, 17))
	if hasViolation(res, RuleOverlap) {
		t.Error("Expected no overlap violation for back-to-back shifts")
	}
	if !hasViolation(res, RuleMinGap) {
		t.Errorf("Expected min-gap violation, got %v", res.Violated)
	}
}

func TestMinGapBetweenDays(t *testing.T) {
	// Shift until 22:00, next day at 06:00: 8h gap against a 12h minimum.
	ctx := testContext(shift(0, 14, 22))
	ctx.Role.MaxHoursPerWorkday = 12
	res := DefaultEvaluator().CanAssign(ctx, shift(1, 6, 12))
	if !hasViolation(res, RuleMinGap) {
		t.Errorf("Expected min-gap violation for 8h rest, got %v", res.Violated)
	}

	// 06:00 start two days later leaves plenty of rest.
	res = DefaultEvaluator().CanAssign(ctx, shift(2, 6, 12))
	if hasViolation(res, RuleMinGap) {
		t.Error("Expected no min-gap violation for 32h rest")
	}
}

func TestMaxDailyHours(t *testing.T) {
	ctx := testContext(shift(0, 8, 12))
	ctx.Role.MinHoursBetweenShifts = 0
	res := DefaultEvaluator().CanAssign(ctx, shift(0, 13, 18))
	if !hasViolation(res, RuleMaxDaily) {
		t.Errorf("Expected max-daily violation for 9h total, got %v", res.Violated)
	}

	res = DefaultEvaluator().CanAssign(ctx, shift(0, 13, 17))
	if hasViolation(res, RuleMaxDaily) {
		t.Error("Expected 8h total to pass the daily max")
	}
}

func TestMinDailyAppliesToDayTotal(t *testing.T) {
	// A 2h candidate on an empty day violates a 4h daily minimum, but the
	// same candidate next to an existing 3h shift does not.
	ctx := testContext()
	ctx.Role.MinHoursPerWorkday = 4
	ctx.Role.MinHoursBetweenShifts = 0
	res := DefaultEvaluator().CanAssign(ctx, shift(0, 9, 11))
	if !hasViolation(res, RuleMinDaily) {
		t.Errorf("Expected min-daily violation for a lone 2h day, got %v", res.Violated)
	}

	ctx = testContext(shift(0, 12, 15))
	ctx.Role.MinHoursPerWorkday = 4
	ctx.Role.MinHoursBetweenShifts = 0
	res = DefaultEvaluator().CanAssign(ctx, shift(0, 9, 11))
	if hasViolation(res, RuleMinDaily) {
		t.Error("Expected 5h day total to satisfy the 4h daily minimum")
	}
}

func TestMaxConsecutiveWorkdays(t *testing.T) {
	ctx := testContext(
		shift(0, 9, 13), shift(1, 9, 13), shift(2, 9, 13),
	)
	ctx.Role.MaxConsecutiveWorkdays = 3
	ctx.Role.MinHoursBetweenShifts = 0
	res := DefaultEvaluator().CanAssign(ctx, shift(3, 9, 13))
	if !hasViolation(res, RuleConsecutive) {
		t.Errorf("Expected consecutive-workdays violation on day 4, got %v", res.Violated)
	}

	// Candidate on day 5 leaves a rest day, run of 1.
	res = DefaultEvaluator().CanAssign(ctx, shift(4, 9, 13))
	if hasViolation(res, RuleConsecutive) {
		t.Error("Expected no consecutive-workdays violation after a rest day")
	}
}

func TestWeeklyMaxBlocks(t *testing.T) {
	ctx := testContext(
		shift(0, 9, 17), shift(1, 9, 17), shift(2, 9, 17), shift(3, 9, 17),
	)
	ctx.Worker.MaxHoursPerWorkweek = 36
	ctx.Role.MinHoursBetweenShifts = 0
	res := DefaultEvaluator().CanAssign(ctx, shift(5, 9, 17))
	if res.Allowed {
		t.Error("Expected weekly max of 36h to block a 40h total")
	}
	if !hasViolation(res, RuleWeeklyMax) {
		t.Errorf("Expected weekly-max violation, got %v", res.Violated)
	}
	if res.WithinCaps {
		t.Error("Expected within_caps=false over the weekly max")
	}
}

func TestWeeklyMaxAdvisoryWhenOrgAllowsExcess(t *testing.T) {
	ctx := testContext(
		shift(0, 9, 17), shift(1, 9, 17), shift(2, 9, 17), shift(3, 9, 17),
	)
	ctx.Worker.MaxHoursPerWorkweek = 36
	ctx.Role.MinHoursBetweenShifts = 0
	ctx.Org.WorkersCanClaimShiftsInExcessOfMax = true
	res := DefaultEvaluator().CanAssign(ctx, shift(5, 9, 17))
	if !res.Allowed {
		t.Errorf("Expected advisory weekly max to allow, violated: %v", res.Violated)
	}
	if res.WithinCaps {
		t.Error("Expected within_caps=false even when allowed")
	}
	if hasViolation(res, RuleWeeklyMax) {
		t.Error("Expected weekly max to stay out of the blocking violations")
	}
}

func TestAllViolationsReported(t *testing.T) {
	ctx := testContext(shift(0, 9, 17))
	res := DefaultEvaluator().CanAssign(ctx, shift(0, 16, 23))
	if res.Allowed {
		t.Error("Expected rejection")
	}
	if !hasViolation(res, RuleOverlap) || !hasViolation(res, RuleMaxDaily) {
		t.Errorf("Expected both overlap and max-daily to be reported, got %v", res.Violated)
	}
}

func TestUnderWeeklyMin(t *testing.T) {
	ctx := testContext(shift(0, 9, 13))
	ctx.Worker.MinHoursPerWorkweek = 20
	if !UnderWeeklyMin(ctx) {
		t.Error("Expected 4h of 20h minimum to be under")
	}
	ctx.Worker.MinHoursPerWorkweek = 4
	if UnderWeeklyMin(ctx) {
		t.Error("Expected 4h of 4h minimum to not be under")
	}
}

func TestCrossMidnightDailySplit(t *testing.T) {
	// 22:00-02:00 contributes 2h to each adjacent day.
	overnight := models.Shift{Start: at(0, 22, 0), Stop: at(1, 2, 0)}
	ctx := testContext(overnight)
	ctx.Role.MinHoursBetweenShifts = 0
	ctx.Role.MaxHoursPerWorkday = 8
	res := DefaultEvaluator().CanAssign(ctx, shift(1, 3, 9))
	if hasViolation(res, RuleMaxDaily) {
		t.Errorf("Expected 8h day-2 total to pass, got %v", res.Violated)
	}
	res = DefaultEvaluator().CanAssign(ctx, shift(1, 3, 10))
	if !hasViolation(res, RuleMaxDaily) {
		t.Errorf("Expected 9h day-2 total to violate, got %v", res.Violated)
	}
}
