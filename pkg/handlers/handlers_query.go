package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/workforce-scheduler-go/pkg/attendance"
	"github.com/arnavshah/workforce-scheduler-go/pkg/compliance"
	"github.com/arnavshah/workforce-scheduler-go/pkg/engine"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

var defaultEvaluator = compliance.DefaultEvaluator()

func (h *Handler) eval() *compliance.Evaluator {
	return defaultEvaluator
}

// assignmentInput loads the full evaluation context for one schedule:
// policy, roster, shifts and preferences.
func (h *Handler) assignmentInput(c *gin.Context, sched models.Schedule) (engine.AssignmentInput, error) {
	ctx := c.Request.Context()
	role, loc, org, err := h.Store.RolePolicy(ctx, sched.RoleID)
	if err != nil {
		return engine.AssignmentInput{}, err
	}
	shifts, err := h.Store.ListShifts(ctx, sched.ID)
	if err != nil {
		return engine.AssignmentInput{}, err
	}
	workers, err := h.Store.Roster(ctx, sched.RoleID)
	if err != nil {
		return engine.AssignmentInput{}, err
	}
	prefs, err := h.Store.Preferences(ctx, sched.ID)
	if err != nil {
		return engine.AssignmentInput{}, err
	}
	tz, tzErr := time.LoadLocation(loc.Timezone)
	if tzErr != nil {
		tz = time.UTC
	}
	return engine.AssignmentInput{
		Schedule: sched,
		Shifts:   shifts,
		Workers:  workers,
		Prefs:    prefs,
		Role:     role,
		Org:      compliance.Policy{WorkersCanClaimShiftsInExcessOfMax: org.WorkersCanClaimShiftsInExcessOfMax},
		Timezone: tz,
	}, nil
}

// attendance runs the read-side aggregation for one location and range.
func (h *Handler) attendance(c *gin.Context, locationID uint, start, stop time.Time) {
	ctx := c.Request.Context()
	var loc models.Location
	if err := h.DB.First(&loc, locationID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
		return
	}
	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		tz = time.UTC
	}
	shifts, err := h.Store.PublishedShiftsInRange(ctx, locationID, start, stop)
	if err != nil {
		writeError(c, err)
		return
	}
	clocks, err := h.Store.TimeclocksInRange(ctx, locationID, start, stop)
	if err != nil {
		writeError(c, err)
		return
	}
	requests, err := h.Store.TimeOffRequestsInRange(ctx, locationID, start, stop)
	if err != nil {
		writeError(c, err)
		return
	}
	days, summary := attendance.Aggregate(attendance.Input{
		Shifts:          shifts,
		Timeclocks:      clocks,
		TimeOffRequests: requests,
		Timezone:        tz,
		Now:             time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"days": days, "summary": summary})
}
