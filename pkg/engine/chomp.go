// Package engine turns a schedule's demand curve into concrete, compliant
// shift assignments through two phases: chomp allocates unassigned shifts
// against the demand curve, mobius assigns workers to them.
package engine

import (
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

const bucketLen = 30 * time.Minute

// BuildShifts is the chomp phase: a deterministic greedy sweep that merges
// contiguous demand into the fewest shifts whose lengths stay within
// [MinShiftLengthHour, MaxShiftLengthHour], preferring longer shifts up to
// the max before opening a new one, earliest start first. Headcount n at a
// bucket yields n overlapping shifts covering it. No randomness: identical
// input produces identical output.
func BuildShifts(sched models.Schedule, tz *time.Location) ([]models.Shift, error) {
	if err := sched.Demand.Validate(); err != nil {
		return nil, err
	}
	minBuckets := sched.MinShiftLengthHour * 2
	maxBuckets := sched.MaxShiftLengthHour * 2
	if minBuckets < 1 {
		minBuckets = 1
	}
	if minBuckets > demand.BucketsPerDay {
		minBuckets = demand.BucketsPerDay
	}
	if maxBuckets < minBuckets {
		maxBuckets = minBuckets
	}
	if maxBuckets > demand.BucketsPerDay {
		maxBuckets = demand.BucketsPerDay
	}

	var shifts []models.Shift
	for dayOffset := 0; dayOffset < 7; dayOffset++ {
		dayStart := sched.Start.In(tz).AddDate(0, 0, dayOffset)
		midnight := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), 0, 0, 0, 0, tz)
		dayName := demand.Days[int(midnight.Weekday())]
		buckets, err := sched.Demand.DayBuckets(dayName)
		if err != nil {
			return nil, err
		}
		for _, win := range coverDay(buckets, minBuckets, maxBuckets) {
			shifts = append(shifts, models.Shift{
				RoleID:     sched.RoleID,
				ScheduleID: sched.ID,
				Start:      midnight.Add(time.Duration(win.start) * bucketLen),
				Stop:       midnight.Add(time.Duration(win.stop) * bucketLen),
			})
		}
	}
	return shifts, nil
}

type window struct {
	start, stop int
}

// coverDay peels shift windows off a day's remaining demand until every
// bucket is covered. Each pass starts at the earliest uncovered bucket and
// extends while demand remains, up to maxBuckets; a run shorter than
// minBuckets is padded forward (then pulled back from the end of the day if
// there is no forward room), over-covering rather than emitting an illegal
// short shift.
func coverDay(buckets []int, minBuckets, maxBuckets int) []window {
	remaining := make([]int, len(buckets))
	copy(remaining, buckets)

	var wins []window
	for {
		start := -1
		for i, v := range remaining {
			if v > 0 {
				start = i
				break
			}
		}
		if start == -1 {
			return wins
		}
		stop := start
		for stop < len(remaining) && remaining[stop] > 0 && stop-start < maxBuckets {
			stop++
		}
		for stop-start < minBuckets && stop < len(remaining) {
			stop++
		}
		if stop-start < minBuckets {
			start = stop - minBuckets
			if start < 0 {
				start = 0
			}
		}
		for i := start; i < stop; i++ {
			if remaining[i] > 0 {
				remaining[i]--
			}
		}
		wins = append(wins, window{start: start, stop: stop})
	}
}
