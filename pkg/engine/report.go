package engine

import (
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/compliance"
)

// Report summarizes one generation run. Unmet demand shows up as warnings
// with the schedule still published; Error is only set for fatal failures
// that reverted the schedule to unpublished.
type Report struct {
	RunID            string                      `json:"run_id"`
	ScheduleID       uint                        `json:"schedule_id"`
	ShiftsCreated    int                         `json:"shifts_created"`
	ShiftsAssigned   int                         `json:"shifts_assigned"`
	ShiftsUnassigned int                         `json:"shifts_unassigned"`
	Violations       map[compliance.RuleKind]int `json:"violations,omitempty"`
	UnderMinUserIDs  []uint                      `json:"under_min_user_ids,omitempty"`
	Warnings         []string                    `json:"warnings,omitempty"`
	StartedAt        time.Time                   `json:"started_at"`
	FinishedAt       time.Time                   `json:"finished_at"`
	Error            string                      `json:"error,omitempty"`
}
