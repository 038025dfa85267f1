package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/arnavshah/workforce-scheduler-go/pkg/auth"
	"github.com/arnavshah/workforce-scheduler-go/pkg/database"
	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/engine"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
	"github.com/arnavshah/workforce-scheduler-go/pkg/schedule"
	"github.com/arnavshah/workforce-scheduler-go/pkg/store"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB     *gorm.DB
	Store  *store.Store
	Engine *engine.Runner
}

// AuthMiddleware verifies the JWT token for manager routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// Login authenticates a manager and returns a session token.
func (h *Handler) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.ManagerUser
	if err := h.DB.Where("username = ?", body.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !auth.CheckPasswordHash(body.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// writeError maps domain errors onto status codes: validation errors are
// 400, conflicts with an active run are 409, missing records are 404, and
// everything else is an infrastructure failure.
func writeError(c *gin.Context, err error) {
	var validation *demand.ValidationError
	var inProgress *schedule.ErrGenerationInProgress
	var illegal *schedule.ErrIllegalTransition
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &inProgress), errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// OpenNextWeek creates (or returns) the schedule for a role week.
// Idempotent: repeating the call with the same week start returns the same
// schedule.
func (h *Handler) OpenNextWeek(c *gin.Context) {
	roleID, ok := pathID(c, "roleID")
	if !ok {
		return
	}
	var body struct {
		WeekStart time.Time `json:"week_start" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched, err := h.Store.OpenNextWeek(c.Request.Context(), roleID, body.WeekStart.UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// GetSchedule returns one schedule.
func (h *Handler) GetSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sched, err := h.Store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// UpdateDemand applies a manager demand edit. Demand may arrive in the
// canonical half-hour shape or, with hourly=true, in the legacy 24-bucket
// form.
func (h *Handler) UpdateDemand(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Demand             demand.Week `json:"demand" binding:"required"`
		Hourly             bool        `json:"hourly"`
		MinShiftLengthHour int         `json:"min_shift_length_hour" binding:"required,min=1"`
		MaxShiftLengthHour int         `json:"max_shift_length_hour" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	week := body.Demand
	if body.Hourly {
		var err error
		week, err = demand.FromHourly(week)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	sched, err := h.Store.UpdateDemand(c.Request.Context(), id, demand.Demand{Week: week},
		body.MinShiftLengthHour, body.MaxShiftLengthHour)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// Generate queues a generation run for the schedule. A run already queued
// or processing yields 409; the caller retries later.
func (h *Handler) Generate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sched, err := h.Engine.Request(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sched)
}

// Revert fails a queued or processing run back to unpublished.
func (h *Handler) Revert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.RevertToUnpublished(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	sched, err := h.Store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// RunReport returns the latest generation-run report for a schedule.
func (h *Handler) RunReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, found := h.Engine.LastReport(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded for schedule"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListShifts returns a schedule's shifts.
func (h *Handler) ListShifts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	shifts, err := h.Store.ListShifts(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": shifts})
}

// CreateShift records a manual manager shift inside a schedule window.
func (h *Handler) CreateShift(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body struct {
		UserID    uint      `json:"user_id"`
		Start     time.Time `json:"start" binding:"required"`
		Stop      time.Time `json:"stop" binding:"required"`
		Published bool      `json:"published"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched, err := h.Store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	shift, err := h.Store.CreateShift(c.Request.Context(), models.Shift{
		RoleID:     sched.RoleID,
		ScheduleID: sched.ID,
		UserID:     body.UserID,
		Start:      body.Start.UTC(),
		Stop:       body.Stop.UTC(),
		Published:  body.Published,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shift)
}

// PatchShift applies a manager edit to one shift.
func (h *Handler) PatchShift(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	shift, err := h.Store.GetShift(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	var body struct {
		UserID    *uint      `json:"user_id"`
		Start     *time.Time `json:"start"`
		Stop      *time.Time `json:"stop"`
		Published *bool      `json:"published"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.UserID != nil {
		shift.UserID = *body.UserID
	}
	if body.Start != nil {
		shift.Start = body.Start.UTC()
	}
	if body.Stop != nil {
		shift.Stop = body.Stop.UTC()
	}
	if body.Published != nil {
		shift.Published = *body.Published
	}
	updated, err := h.Store.PatchShift(c.Request.Context(), shift)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteShift removes one shift.
func (h *Handler) DeleteShift(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteShift(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ExpandRecurring materializes a role's recurring shift templates into the
// schedule. Idempotent.
func (h *Handler) ExpandRecurring(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sched, err := h.Store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	_, loc, _, err := h.Store.RolePolicy(c.Request.Context(), sched.RoleID)
	if err != nil {
		writeError(c, err)
		return
	}
	tz, tzErr := time.LoadLocation(loc.Timezone)
	if tzErr != nil {
		tz = time.UTC
	}
	created, err := h.Store.ExpandRecurring(c.Request.Context(), sched, tz)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// UpsertPreference writes a worker's preference curve for a schedule.
func (h *Handler) UpsertPreference(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}
	var body struct {
		Preference demand.Week `json:"preference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Store.UpsertPreference(c.Request.Context(), id, userID,
		demand.Preference{Week: body.Preference}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule_id": id, "user_id": userID})
}

// EligibleWorkers lists every worker's verdict for one shift, including
// the advisory within_caps flag.
func (h *Handler) EligibleWorkers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	shift, err := h.Store.GetShift(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	sched, err := h.Store.GetSchedule(c.Request.Context(), shift.ScheduleID)
	if err != nil {
		writeError(c, err)
		return
	}
	in, err := h.assignmentInput(c, sched)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shift_id": shift.ID,
		"workers":  engine.Eligible(in, shift, h.eval()),
	})
}

// Attendance aggregates shifts, timeclocks and time off requests for a
// location over [start, stop).
func (h *Handler) Attendance(c *gin.Context) {
	locationID, ok := pathID(c, "id")
	if !ok {
		return
	}
	start, err1 := time.Parse(time.RFC3339, c.Query("start"))
	stop, err2 := time.Parse(time.RFC3339, c.Query("stop"))
	if err1 != nil || err2 != nil || !start.Before(stop) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and stop must be RFC3339 with start < stop"})
		return
	}
	h.attendance(c, locationID, start, stop)
}
