package models

import (
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
)

// Organization is the top-level company entity. Role-level policy fields
// inherit from the organization defaults unless overridden.
type Organization struct {
	ID                                 uint      `gorm:"primaryKey" json:"id"`
	Name                               string    `gorm:"not null" json:"name"`
	DayWeekStarts                      string    `gorm:"default:monday" json:"day_week_starts"`
	ShiftsAssignedDaysBeforeStart      int       `gorm:"default:4" json:"shifts_assigned_days_before_start"`
	WorkersCanClaimShiftsInExcessOfMax bool      `json:"workers_can_claim_shifts_in_excess_of_max"`
	EnableTimeclockDefault             bool      `gorm:"default:true" json:"enable_timeclock_default"`
	EnableTimeOffRequestsDefault       bool      `gorm:"default:true" json:"enable_time_off_requests_default"`
	CreatedAt                          time.Time `json:"created_at"`
}

// Location belongs to an organization and fixes the timezone used for all
// day-boundary arithmetic of its roles.
type Location struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrganizationID uint   `gorm:"index;not null" json:"organization_id"`
	Name           string `gorm:"not null" json:"name"`
	Timezone       string `gorm:"default:UTC" json:"timezone"`
	Archived       bool   `json:"archived"`
}

// Role is the compliance policy container: it owns workers, schedules and
// recurring shifts.
type Role struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	LocationID             uint      `gorm:"index;not null" json:"location_id"`
	Name                   string    `gorm:"not null" json:"name"`
	MinHoursPerWorkday     float64   `gorm:"default:4" json:"min_hours_per_workday"`
	MaxHoursPerWorkday     float64   `gorm:"default:8" json:"max_hours_per_workday"`
	MaxConsecutiveWorkdays int       `gorm:"default:6" json:"max_consecutive_workdays"`
	MinHoursBetweenShifts  float64   `gorm:"default:12" json:"min_hours_between_shifts"`
	EnableTimeclock        bool      `json:"enable_timeclock"`
	EnableTimeOffRequests  bool      `json:"enable_time_off_requests"`
	Archived               bool      `json:"archived"`
	CreatedAt              time.Time `json:"created_at"`
}

// Worker is the user-role relation: weekly hour bounds and the hard
// availability curve live here, not on the user.
type Worker struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	RoleID              uint                `gorm:"index;not null" json:"role_id"`
	UserID              uint                `gorm:"index;not null" json:"user_id"`
	Name                string              `json:"name"`
	InternalID          string              `json:"internal_id"`
	Archived            bool                `json:"archived"`
	MinHoursPerWorkweek float64             `gorm:"default:0" json:"min_hours_per_workweek"`
	MaxHoursPerWorkweek float64             `gorm:"default:40" json:"max_hours_per_workweek"`
	WorkingHours        demand.Availability `gorm:"type:text" json:"working_hours"`
}

// ScheduleState is the closed set of schedule lifecycle states. The legal
// transitions live in pkg/schedule.
type ScheduleState string

const (
	StateInitial          ScheduleState = "initial"
	StateUnpublished      ScheduleState = "unpublished"
	StateChompQueue       ScheduleState = "chomp-queue"
	StateChompProcessing  ScheduleState = "chomp-processing"
	StateMobiusQueue      ScheduleState = "mobius-queue"
	StateMobiusProcessing ScheduleState = "mobius-processing"
	StatePublished        ScheduleState = "published"
)

// Schedule covers one role-week. Demand edits are legal in initial and
// unpublished (and after publication, without regressing the state); the
// generation engine owns every other mutation.
type Schedule struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	RoleID             uint          `gorm:"index;not null" json:"role_id"`
	State              ScheduleState `gorm:"default:initial;index" json:"state"`
	Start              time.Time     `gorm:"index;not null" json:"start"`
	Stop               time.Time     `gorm:"not null" json:"stop"`
	Demand             demand.Demand `gorm:"type:text" json:"demand"`
	MinShiftLengthHour int           `gorm:"default:4" json:"min_shift_length_hour"`
	MaxShiftLengthHour int           `gorm:"default:8" json:"max_shift_length_hour"`
	ChompStart         *time.Time    `json:"chomp_start,omitempty"`
	ChompEnd           *time.Time    `json:"chomp_end,omitempty"`
	LastUpdate         time.Time     `json:"last_update"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Shift is a concrete block of work. UserID zero means unassigned.
// ScheduleID is a lookup key back to the owning schedule-period; ownership
// follows from start/stop falling inside the schedule's window.
type Shift struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoleID     uint      `gorm:"index;not null" json:"role_id"`
	ScheduleID uint      `gorm:"index" json:"schedule_id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Start      time.Time `gorm:"index;not null" json:"start"`
	Stop       time.Time `gorm:"not null" json:"stop"`
	Published  bool      `json:"published"`
}

// Duration returns the shift length.
func (s Shift) Duration() time.Duration {
	return s.Stop.Sub(s.Start)
}

// Overlaps reports whether two shifts share any time, inclusive start,
// exclusive stop.
func (s Shift) Overlaps(other Shift) bool {
	return s.Start.Before(other.Stop) && other.Start.Before(s.Stop)
}

// RecurringShift is a weekly template expanded into concrete shifts for
// each schedule week. UserID zero leaves the expanded shifts unassigned.
type RecurringShift struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	RoleID          uint   `gorm:"index;not null" json:"role_id"`
	StartDay        string `gorm:"not null" json:"start_day"`
	StartHour       int    `json:"start_hour"`
	StartMinute     int    `json:"start_minute"`
	DurationMinutes int    `gorm:"not null" json:"duration_minutes"`
	Quantity        int    `gorm:"default:1" json:"quantity"`
	UserID          uint   `json:"user_id"`
}

// WorkerPreference is a worker's soft preference curve for one schedule.
type WorkerPreference struct {
	ID         uint              `gorm:"primaryKey" json:"-"`
	ScheduleID uint              `gorm:"uniqueIndex:idx_sched_user;not null" json:"schedule_id"`
	UserID     uint              `gorm:"uniqueIndex:idx_sched_user;not null" json:"user_id"`
	Preference demand.Preference `gorm:"type:text" json:"preference"`
	CreatedAt  time.Time         `json:"created_at"`
	LastUpdate time.Time         `json:"last_update"`
}

// Timeclock is an attendance fact recorded independently of scheduling.
// Stop nil means the worker is still clocked in.
type Timeclock struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	RoleID uint       `gorm:"index;not null" json:"role_id"`
	UserID uint       `gorm:"index;not null" json:"user_id"`
	Start  time.Time  `gorm:"not null" json:"start"`
	Stop   *time.Time `json:"stop"`
}

// TimeOffRequest is an attendance fact; the generation engine never reads it.
type TimeOffRequest struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RoleID         uint      `gorm:"index;not null" json:"role_id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	ApproverUserID uint      `json:"approver_user_id"`
	State          string    `json:"state"`
	MinutesPaid    int       `json:"minutes_paid"`
	Start          time.Time `gorm:"not null" json:"start"`
	Stop           time.Time `gorm:"not null" json:"stop"`
}
