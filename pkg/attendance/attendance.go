// Package attendance derives per-day, per-worker summaries from shifts,
// timeclocks and time off requests. Pure read-side aggregation: nothing
// here mutates anything, and calls are safe to run in parallel across
// locations or date ranges.
package attendance

import (
	"sort"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

// WorkerSummary is one worker's totals for one calendar day. Times are in
// minutes, matching the reporting contract.
type WorkerSummary struct {
	UserID              uint `json:"user_id"`
	RoleID              uint `json:"role_id"`
	ScheduledTime       int  `json:"scheduled_time"`
	LoggedTime          int  `json:"logged_time"`
	ShiftCount          int  `json:"shift_count"`
	TimeclockCount      int  `json:"timeclock_count"`
	TimeOffRequestCount int  `json:"time_off_request_count"`
}

// Day groups worker summaries under one calendar day
// (location-timezone midnight to midnight).
type Day struct {
	Date    string          `json:"date"`
	Workers []WorkerSummary `json:"workers"`
}

// Summary is the range-wide rollup.
type Summary struct {
	ScheduledTime       int `json:"scheduled_time"`
	LoggedTime          int `json:"logged_time"`
	ShiftCount          int `json:"shift_count"`
	TimeclockCount      int `json:"timeclock_count"`
	TimeOffRequestCount int `json:"time_off_request_count"`
}

// Input is the read-only material for one aggregation.
type Input struct {
	Shifts          []models.Shift
	Timeclocks      []models.Timeclock
	TimeOffRequests []models.TimeOffRequest
	Timezone        *time.Location
	Now             time.Time
}

// Aggregate groups the inputs by calendar day then worker. Shifts and
// timeclocks are attributed to the day they start on; an open timeclock
// (nil stop) logs elapsed time up to Now. Shifts published without an
// assignee are skipped. Output ordering is deterministic: days ascending,
// workers by user id ascending.
func Aggregate(in Input) ([]Day, Summary) {
	tz := in.Timezone
	if tz == nil {
		tz = time.UTC
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	type key struct {
		date   string
		userID uint
	}
	cells := make(map[key]*WorkerSummary)
	cell := func(t time.Time, userID, roleID uint) *WorkerSummary {
		k := key{date: t.In(tz).Format("2006-01-02"), userID: userID}
		c, ok := cells[k]
		if !ok {
			c = &WorkerSummary{UserID: userID, RoleID: roleID}
			cells[k] = c
		}
		return c
	}

	for _, sh := range in.Shifts {
		// Unassigned shifts have no worker to attribute time to.
		if sh.UserID == 0 {
			continue
		}
		c := cell(sh.Start, sh.UserID, sh.RoleID)
		c.ScheduledTime += int(sh.Duration().Minutes())
		c.ShiftCount++
	}
	for _, tc := range in.Timeclocks {
		stop := now
		if tc.Stop != nil {
			stop = *tc.Stop
		}
		c := cell(tc.Start, tc.UserID, tc.RoleID)
		if stop.After(tc.Start) {
			c.LoggedTime += int(stop.Sub(tc.Start).Minutes())
		}
		c.TimeclockCount++
	}
	for _, req := range in.TimeOffRequests {
		c := cell(req.Start, req.UserID, req.RoleID)
		c.TimeOffRequestCount++
	}

	byDate := make(map[string][]WorkerSummary)
	for k, c := range cells {
		byDate[k.date] = append(byDate[k.date], *c)
	}
	days := make([]Day, 0, len(byDate))
	var total Summary
	for date, workers := range byDate {
		sort.Slice(workers, func(i, j int) bool { return workers[i].UserID < workers[j].UserID })
		days = append(days, Day{Date: date, Workers: workers})
		for _, w := range workers {
			total.ScheduledTime += w.ScheduledTime
			total.LoggedTime += w.LoggedTime
			total.ShiftCount += w.ShiftCount
			total.TimeclockCount += w.TimeclockCount
			total.TimeOffRequestCount += w.TimeOffRequestCount
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, total
}
