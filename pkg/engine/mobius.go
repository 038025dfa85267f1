package engine

import (
	"fmt"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/compliance"
	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

// AssignmentInput carries everything the mobius phase reads. Workers must
// arrive ordered by user id; shifts are re-sorted by start then id so the
// sequential walk is deterministic.
type AssignmentInput struct {
	Schedule models.Schedule
	Shifts   []models.Shift
	Workers  []models.Worker
	Prefs    map[uint]demand.Preference
	Role     models.Role
	Org      compliance.Policy
	Timezone *time.Location
}

// AssignmentResult is the mobius phase output: shift id -> user id for the
// assignments made, plus the tallies the run report surfaces.
type AssignmentResult struct {
	Assignments map[uint]uint
	Assigned    int
	Unassigned  int
	Violations  map[compliance.RuleKind]int
	Warnings    []string
	UnderMin    []uint
}

// AssignWorkers is the mobius phase. Shifts are walked in ascending start
// order; for each, the candidate pool is every worker whose availability
// fully covers the shift and whom the evaluator allows, ranked by
// preference match, then assigned weekly hours ascending, then user id.
// An empty pool leaves the shift unassigned and records a warning - partial
// assignment is a valid terminal outcome, never an error. Assignments made
// earlier in the walk count toward later compliance checks.
func AssignWorkers(in AssignmentInput, eval *compliance.Evaluator) AssignmentResult {
	res := AssignmentResult{
		Assignments: make(map[uint]uint),
		Violations:  make(map[compliance.RuleKind]int),
	}
	tz := in.Timezone
	if tz == nil {
		tz = time.UTC
	}

	shifts := make([]models.Shift, len(in.Shifts))
	copy(shifts, in.Shifts)
	compliance.SortShifts(shifts)

	// Shifts arriving pre-assigned (fixed recurring workers, manual edits)
	// seed the per-worker view so rules see them.
	assigned := make(map[uint][]models.Shift)
	hoursByUser := make(map[uint]time.Duration)
	for _, sh := range shifts {
		if sh.UserID != 0 {
			assigned[sh.UserID] = append(assigned[sh.UserID], sh)
			hoursByUser[sh.UserID] += sh.Duration()
		}
	}

	workerCtx := func(w models.Worker) *compliance.Context {
		return &compliance.Context{
			Worker:    w,
			Role:      in.Role,
			Org:       in.Org,
			Existing:  assigned[w.UserID],
			WeekStart: in.Schedule.Start,
			WeekStop:  in.Schedule.Stop,
			Location:  tz,
		}
	}

	for _, sh := range shifts {
		if sh.UserID != 0 {
			continue
		}
		type candidate struct {
			worker models.Worker
			pref   int
			hours  time.Duration
		}
		var best *candidate
		for _, w := range in.Workers {
			covered, err := availabilityCovers(w.WorkingHours, sh, tz)
			if err != nil || !covered {
				continue
			}
			verdict := eval.CanAssign(workerCtx(w), sh)
			if !verdict.Allowed {
				for _, kind := range verdict.Violated {
					res.Violations[kind]++
				}
				continue
			}
			c := candidate{
				worker: w,
				pref:   preferenceMatch(in.Prefs[w.UserID], sh, tz),
				hours:  hoursByUser[w.UserID],
			}
			if best == nil || betterCandidate(c.pref, c.hours, c.worker.UserID, best.pref, best.hours, best.worker.UserID) {
				best = &c
			}
		}
		if best == nil {
			res.Unassigned++
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"no eligible worker for shift %s-%s",
				sh.Start.In(tz).Format("Mon 15:04"), sh.Stop.In(tz).Format("15:04")))
			continue
		}
		uid := best.worker.UserID
		res.Assignments[sh.ID] = uid
		res.Assigned++
		done := sh
		done.UserID = uid
		assigned[uid] = append(assigned[uid], done)
		hoursByUser[uid] += done.Duration()
	}

	for _, w := range in.Workers {
		if compliance.UnderWeeklyMin(workerCtx(w)) {
			res.Violations[compliance.RuleWeeklyMin]++
			res.UnderMin = append(res.UnderMin, w.UserID)
		}
	}
	return res
}

// Eligibility is one worker's verdict for a target shift, used by the
// worker-eligibility query. WithinCaps mirrors the advisory weekly-max
// outcome even when the worker is otherwise allowed.
type Eligibility struct {
	Worker     models.Worker         `json:"worker"`
	Allowed    bool                  `json:"allowed"`
	WithinCaps bool                  `json:"within_caps"`
	Violated   []compliance.RuleKind `json:"violated,omitempty"`
}

// Eligible evaluates every worker against one target shift, reading the
// already-assigned shifts from the input set. Workers whose availability
// does not cover the shift are reported as not allowed with no rule
// violations.
func Eligible(in AssignmentInput, target models.Shift, eval *compliance.Evaluator) []Eligibility {
	tz := in.Timezone
	if tz == nil {
		tz = time.UTC
	}
	assigned := make(map[uint][]models.Shift)
	for _, sh := range in.Shifts {
		if sh.UserID != 0 && sh.ID != target.ID {
			assigned[sh.UserID] = append(assigned[sh.UserID], sh)
		}
	}
	out := make([]Eligibility, 0, len(in.Workers))
	for _, w := range in.Workers {
		e := Eligibility{Worker: w, WithinCaps: true}
		covered, err := availabilityCovers(w.WorkingHours, target, tz)
		if err == nil && covered {
			verdict := eval.CanAssign(&compliance.Context{
				Worker:    w,
				Role:      in.Role,
				Org:       in.Org,
				Existing:  assigned[w.UserID],
				WeekStart: in.Schedule.Start,
				WeekStop:  in.Schedule.Stop,
				Location:  tz,
			}, target)
			e.Allowed = verdict.Allowed
			e.WithinCaps = verdict.WithinCaps
			e.Violated = verdict.Violated
		}
		out = append(out, e)
	}
	return out
}

func betterCandidate(pref int, hours time.Duration, uid uint, bestPref int, bestHours time.Duration, bestUID uint) bool {
	if pref != bestPref {
		return pref > bestPref
	}
	if hours != bestHours {
		return hours < bestHours
	}
	return uid < bestUID
}

// availabilityCovers reports whether every half-hour bucket of the shift is
// marked available in the worker's working hours.
func availabilityCovers(avail demand.Availability, sh models.Shift, tz *time.Location) (bool, error) {
	return curveCovers(avail.Week, sh, tz)
}

// preferenceMatch counts the shift's half-hour buckets the worker marked as
// preferred. Purely advisory ranking input.
func preferenceMatch(pref demand.Preference, sh models.Shift, tz *time.Location) int {
	count := 0
	eachBucket(sh, tz, func(day string, bucket int) bool {
		if v, err := pref.Get(day, bucket); err == nil && v == 1 {
			count++
		}
		return true
	})
	return count
}

func curveCovers(w demand.Week, sh models.Shift, tz *time.Location) (bool, error) {
	covered := true
	eachBucket(sh, tz, func(day string, bucket int) bool {
		v, err := w.Get(day, bucket)
		if err != nil || v != 1 {
			covered = false
			return false
		}
		return true
	})
	return covered, nil
}

// eachBucket walks the half-hour buckets a shift spans in the given
// timezone, crossing midnight into the next day's curve when needed.
func eachBucket(sh models.Shift, tz *time.Location, fn func(day string, bucket int) bool) {
	for t := sh.Start.In(tz); t.Before(sh.Stop); t = t.Add(bucketLen) {
		day := demand.Days[int(t.Weekday())]
		bucket := t.Hour()*2 + t.Minute()/30
		if !fn(day, bucket) {
			return
		}
	}
}
