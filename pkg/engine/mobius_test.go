package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/compliance"
	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

func fullAvailability() demand.Availability {
	a := demand.Availability{Week: demand.NewWeek()}
	for _, day := range demand.Days {
		for b := 0; b < demand.BucketsPerDay; b++ {
			a.Set(day, b, 1)
		}
	}
	return a
}

func worker(userID uint, maxWeekly float64) models.Worker {
	return models.Worker{
		ID:                  userID,
		RoleID:              1,
		UserID:              userID,
		MaxHoursPerWorkweek: maxWeekly,
		WorkingHours:        fullAvailability(),
	}
}

func mobiusShift(id uint, day, startHour, stopHour int) models.Shift {
	return models.Shift{
		ID:         id,
		RoleID:     1,
		ScheduleID: 1,
		Start:      weekStart.AddDate(0, 0, day).Add(time.Duration(startHour) * time.Hour),
		Stop:       weekStart.AddDate(0, 0, day).Add(time.Duration(stopHour) * time.Hour),
	}
}

func testInput(shifts []models.Shift, workers []models.Worker) AssignmentInput {
	return AssignmentInput{
		Schedule: testSchedule(4, 8),
		Shifts:   shifts,
		Workers:  workers,
		Prefs:    map[uint]demand.Preference{},
		Role: models.Role{
			ID:                     1,
			MaxHoursPerWorkday:     10,
			MaxConsecutiveWorkdays: 6,
			MinHoursBetweenShifts:  0,
		},
		Timezone: time.UTC,
	}
}

func TestMobiusAssignsEligibleWorker(t *testing.T) {
	in := testInput(
		[]models.Shift{mobiusShift(1, 0, 9, 13)},
		[]models.Worker{worker(1, 40)},
	)
	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 1 || res.Unassigned != 0 {
		t.Fatalf("Expected 1 assigned, got %d assigned %d unassigned", res.Assigned, res.Unassigned)
	}
	if res.Assignments[1] != 1 {
		t.Errorf("Expected shift 1 assigned to user 1, got %d", res.Assignments[1])
	}
}

func TestMobiusNeverDoubleBooks(t *testing.T) {
	// One worker, two overlapping shifts: the second stays unassigned and
	// becomes a warning, not an error.
	in := testInput(
		[]models.Shift{
			mobiusShift(1, 0, 9, 13),
			mobiusShift(2, 0, 12, 16),
		},
		[]models.Worker{worker(1, 40)},
	)
	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 1 || res.Unassigned != 1 {
		t.Fatalf("Expected 1 assigned and 1 unassigned, got %d/%d", res.Assigned, res.Unassigned)
	}
	if res.Assignments[1] != 1 {
		t.Errorf("Expected the earlier shift assigned first, got %v", res.Assignments)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Expected an unmet-demand warning, got %v", res.Warnings)
	}
	if res.Violations[compliance.RuleOverlap] == 0 {
		t.Error("Expected the overlap rejection to be tallied")
	}
}

func TestMobiusOverlapGoesToOtherWorker(t *testing.T) {
	in := testInput(
		[]models.Shift{
			mobiusShift(1, 0, 9, 13),
			mobiusShift(2, 0, 12, 16),
		},
		[]models.Worker{worker(1, 40), worker(2, 40)},
	)
	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 2 {
		t.Fatalf("Expected both shifts assigned, got %d", res.Assigned)
	}
	if res.Assignments[1] == res.Assignments[2] {
		t.Error("Expected overlapping shifts on different workers")
	}
}

func TestMobiusPrefersPreferredWorker(t *testing.T) {
	pref := demand.Preference{Week: demand.NewWeek()}
	for b := 18; b < 26; b++ { // 09:00-13:00
		pref.Set("monday", b, 1)
	}
	in := testInput(
		[]models.Shift{mobiusShift(1, 0, 9, 13)},
		[]models.Worker{worker(1, 40), worker(2, 40)},
	)
	in.Prefs[2] = pref

	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assignments[1] != 2 {
		t.Errorf("Expected preferred worker 2 to win over lower id, got %d", res.Assignments[1])
	}
}

func TestMobiusSpreadsHours(t *testing.T) {
	// Two disjoint shifts, two workers: fairness gives one to each.
	in := testInput(
		[]models.Shift{
			mobiusShift(1, 0, 9, 13),
			mobiusShift(2, 1, 9, 13),
		},
		[]models.Worker{worker(1, 40), worker(2, 40)},
	)
	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assignments[1] != 1 {
		t.Errorf("Expected first shift to lowest user id, got %d", res.Assignments[1])
	}
	if res.Assignments[2] != 2 {
		t.Errorf("Expected second shift to the idle worker, got %d", res.Assignments[2])
	}
}

func TestMobiusHonorsAvailability(t *testing.T) {
	w := worker(1, 40)
	w.WorkingHours = demand.Availability{Week: demand.NewWeek()} // never available
	in := testInput([]models.Shift{mobiusShift(1, 0, 9, 13)}, []models.Worker{w})

	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 0 || res.Unassigned != 1 {
		t.Errorf("Expected unavailable worker to be skipped, got %d assigned", res.Assigned)
	}
}

func TestMobiusWeeklyCapAdvisory(t *testing.T) {
	in := testInput(
		[]models.Shift{
			mobiusShift(1, 0, 9, 17),
			mobiusShift(2, 1, 9, 17),
		},
		[]models.Worker{worker(1, 12)},
	)
	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 1 {
		t.Fatalf("Expected the 12h cap to block the second 8h shift, got %d assigned", res.Assigned)
	}

	in.Org.WorkersCanClaimShiftsInExcessOfMax = true
	res = AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 2 {
		t.Errorf("Expected advisory cap to allow both shifts, got %d assigned", res.Assigned)
	}
}

func TestMobiusReportsUnderWeeklyMin(t *testing.T) {
	w := worker(1, 40)
	w.MinHoursPerWorkweek = 20
	in := testInput([]models.Shift{mobiusShift(1, 0, 9, 13)}, []models.Worker{w})

	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if res.Assigned != 1 {
		t.Fatalf("Expected the shift assigned, got %d", res.Assigned)
	}
	if len(res.UnderMin) != 1 || res.UnderMin[0] != 1 {
		t.Errorf("Expected worker 1 reported under weekly minimum, got %v", res.UnderMin)
	}
	if res.Violations[compliance.RuleWeeklyMin] != 1 {
		t.Error("Expected a weekly-min tally in the violations")
	}
}

func TestMobiusDeterministic(t *testing.T) {
	shifts := []models.Shift{
		mobiusShift(1, 0, 9, 13),
		mobiusShift(2, 0, 13, 17),
		mobiusShift(3, 1, 9, 13),
	}
	workers := []models.Worker{worker(1, 40), worker(2, 40), worker(3, 40)}

	first := AssignWorkers(testInput(shifts, workers), compliance.DefaultEvaluator())
	second := AssignWorkers(testInput(shifts, workers), compliance.DefaultEvaluator())
	if !reflect.DeepEqual(first.Assignments, second.Assignments) {
		t.Errorf("Expected identical assignments, got %v vs %v", first.Assignments, second.Assignments)
	}
}

func TestMobiusKeepsFixedAssignments(t *testing.T) {
	fixed := mobiusShift(1, 0, 9, 13)
	fixed.UserID = 7
	in := testInput(
		[]models.Shift{fixed, mobiusShift(2, 0, 12, 16)},
		[]models.Worker{worker(7, 40)},
	)
	res := AssignWorkers(in, compliance.DefaultEvaluator())
	if _, reassigned := res.Assignments[1]; reassigned {
		t.Error("Expected pre-assigned shift to be left alone")
	}
	if res.Unassigned != 1 {
		t.Errorf("Expected the overlapping shift left unassigned, got %d unassigned", res.Unassigned)
	}
}
