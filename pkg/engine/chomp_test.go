package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

var weekStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday

func testSchedule(minLen, maxLen int) models.Schedule {
	return models.Schedule{
		ID:                 1,
		RoleID:             1,
		Start:              weekStart,
		Stop:               weekStart.AddDate(0, 0, 7),
		Demand:             demand.Demand{Week: demand.NewWeek()},
		MinShiftLengthHour: minLen,
		MaxShiftLengthHour: maxLen,
	}
}

// setDemand marks headcount over [startHour, stopHour) on a day.
func setDemand(s *models.Schedule, day string, startHour, stopHour, count int) {
	for b := startHour * 2; b < stopHour*2; b++ {
		s.Demand.Set(day, b, count)
	}
}

func TestChompSingleBlock(t *testing.T) {
	sched := testSchedule(4, 8)
	setDemand(&sched, "monday", 9, 17, 1)

	shifts, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift for an 8h block, got %d", len(shifts))
	}
	want := weekStart.Add(9 * time.Hour)
	if !shifts[0].Start.Equal(want) {
		t.Errorf("Expected start 09:00, got %v", shifts[0].Start)
	}
	if shifts[0].Duration() != 8*time.Hour {
		t.Errorf("Expected 8h shift, got %v", shifts[0].Duration())
	}
}

func TestChompHeadcount(t *testing.T) {
	sched := testSchedule(4, 8)
	setDemand(&sched, "tuesday", 9, 13, 2)

	shifts, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	if len(shifts) != 2 {
		t.Fatalf("Expected 2 overlapping shifts for headcount 2, got %d", len(shifts))
	}
	for _, sh := range shifts {
		if sh.Duration() != 4*time.Hour {
			t.Errorf("Expected 4h shifts, got %v", sh.Duration())
		}
	}
}

func TestChompRespectsLengthBounds(t *testing.T) {
	sched := testSchedule(4, 8)
	// 12h of continuous demand must split, and a 2h tail must still come
	// out at the 4h minimum.
	setDemand(&sched, "wednesday", 6, 18, 1)
	setDemand(&sched, "friday", 9, 11, 1)

	shifts, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	if len(shifts) == 0 {
		t.Fatal("Expected shifts")
	}
	for _, sh := range shifts {
		d := sh.Duration()
		if d < 4*time.Hour || d > 8*time.Hour {
			t.Errorf("Shift duration %v outside [4h,8h]", d)
		}
	}
}

func TestChompCoverageMeetsDemand(t *testing.T) {
	sched := testSchedule(4, 8)
	setDemand(&sched, "thursday", 8, 16, 2)
	setDemand(&sched, "thursday", 10, 14, 3) // lunchtime peak

	shifts, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	day := weekStart.AddDate(0, 0, 3)
	for b := 0; b < demand.BucketsPerDay; b++ {
		at := day.Add(time.Duration(b) * 30 * time.Minute)
		covering := 0
		for _, sh := range shifts {
			if !sh.Start.After(at) && sh.Stop.After(at) {
				covering++
			}
		}
		want, _ := sched.Demand.Get("thursday", b)
		if covering < want {
			t.Errorf("Bucket %d undercovered: %d < %d", b, covering, want)
		}
	}
}

func TestChompEndOfDayShiftPullsBack(t *testing.T) {
	sched := testSchedule(4, 8)
	setDemand(&sched, "saturday", 22, 24, 1)

	shifts, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift, got %d", len(shifts))
	}
	sh := shifts[0]
	if sh.Duration() != 4*time.Hour {
		t.Errorf("Expected the shift padded back to 4h, got %v", sh.Duration())
	}
	if sh.Stop.Hour() != 0 {
		t.Errorf("Expected shift to end at midnight, got %v", sh.Stop)
	}
	if sh.Start.Hour() != 20 {
		t.Errorf("Expected start pulled back to 20:00, got %v", sh.Start)
	}
}

func TestChompDeterministic(t *testing.T) {
	sched := testSchedule(4, 8)
	setDemand(&sched, "monday", 7, 19, 2)
	setDemand(&sched, "sunday", 10, 14, 1)

	first, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	second, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical output for identical input")
	}
}

func TestChompEmptyDemand(t *testing.T) {
	sched := testSchedule(4, 8)
	shifts, err := BuildShifts(sched, time.UTC)
	if err != nil {
		t.Fatalf("BuildShifts failed: %v", err)
	}
	if len(shifts) != 0 {
		t.Errorf("Expected no shifts for empty demand, got %d", len(shifts))
	}
}
