// Package store owns shift and schedule persistence. Engine writes are
// committed as single transactions, schedule state changes go through
// compare-and-swap updates keyed on the current state, and manual edits
// and generation requests take a per-schedule lock so a manual write can
// never overwrite a freshly queued run.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
	"github.com/arnavshah/workforce-scheduler-go/pkg/schedule"
)

// ErrNotFound wraps missing records.
var ErrNotFound = errors.New("store: not found")

// InfraError marks a storage failure that is fatal for the current run.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

func infra(op string, err error) error {
	return &InfraError{Op: op, Err: err}
}

// Store wraps the database with schedule-scoped concurrency control.
type Store struct {
	db    *gorm.DB
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// New builds a Store over an initialized gorm DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db, locks: make(map[uint]*sync.Mutex)}
}

// DB exposes the underlying gorm handle for migrations and seeding.
func (s *Store) DB() *gorm.DB { return s.db }

func locationTZ(loc models.Location) *time.Location {
	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil || tz == nil {
		return time.UTC
	}
	return tz
}

// scheduleLock returns the mutex guarding manual edits on one schedule.
func (s *Store) scheduleLock(scheduleID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[scheduleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[scheduleID] = l
	}
	return l
}

// OpenNextWeek creates the schedule covering [weekStart, weekStart+7d) for
// a role, or returns the existing one. Idempotent. The week start must be
// midnight in the role's location timezone; otherwise the generated shifts
// would fall outside the schedule window.
func (s *Store) OpenNextWeek(ctx context.Context, roleID uint, weekStart time.Time) (models.Schedule, error) {
	_, loc, _, err := s.RolePolicy(ctx, roleID)
	if err != nil {
		return models.Schedule{}, err
	}
	local := weekStart.In(locationTZ(loc))
	if local.Hour() != 0 || local.Minute() != 0 || local.Second() != 0 || local.Nanosecond() != 0 {
		return models.Schedule{}, &demand.ValidationError{
			Reason: fmt.Sprintf("week start %s is not midnight in %s", weekStart.Format(time.RFC3339), loc.Timezone),
		}
	}
	sched := models.Schedule{
		RoleID:     roleID,
		State:      models.StateInitial,
		Start:      weekStart,
		Stop:       weekStart.AddDate(0, 0, 7),
		Demand:     demand.Demand{Week: demand.NewWeek()},
		LastUpdate: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Where("role_id = ? AND start = ?", roleID, weekStart).
		FirstOrCreate(&sched).Error
	if err != nil {
		return models.Schedule{}, infra("open next week", err)
	}
	return sched, nil
}

// GetSchedule loads one schedule.
func (s *Store) GetSchedule(ctx context.Context, id uint) (models.Schedule, error) {
	var sched models.Schedule
	err := s.db.WithContext(ctx).First(&sched, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Schedule{}, fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Schedule{}, infra("get schedule", err)
	}
	return sched, nil
}

// UpdateDemand applies a manager demand edit. The first edit moves the
// schedule out of initial; edits while a run is queued or processing are
// conflicts. Idempotent for identical input. The write compare-and-swaps
// on the state read under the lock, so it can never overwrite a state
// change that landed in between.
func (s *Store) UpdateDemand(ctx context.Context, scheduleID uint, d demand.Demand, minLen, maxLen int) (models.Schedule, error) {
	if err := d.Validate(); err != nil {
		return models.Schedule{}, err
	}
	if minLen <= 0 || maxLen < minLen {
		return models.Schedule{}, &demand.ValidationError{Reason: fmt.Sprintf("bad shift length bounds [%d,%d]", minLen, maxLen)}
	}
	lock := s.scheduleLock(scheduleID)
	lock.Lock()
	defer lock.Unlock()

	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return models.Schedule{}, err
	}
	next, err := schedule.OnDemandEdited(sched.State)
	if err != nil {
		return models.Schedule{}, err
	}
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND state = ?", scheduleID, sched.State).
		Updates(map[string]interface{}{
			"state":                 next,
			"demand":                d,
			"min_shift_length_hour": minLen,
			"max_shift_length_hour": maxLen,
			"last_update":           time.Now().UTC(),
		})
	if res.Error != nil {
		return models.Schedule{}, infra("update demand", res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := s.GetSchedule(ctx, scheduleID)
		if err != nil {
			return models.Schedule{}, err
		}
		return models.Schedule{}, &schedule.ErrGenerationInProgress{State: cur.State}
	}
	return s.GetSchedule(ctx, scheduleID)
}

// RequestGeneration moves a schedule into chomp-queue via a single
// compare-and-swap write under the per-schedule lock, so it serializes
// against manual edits. A schedule still in initial has no demand to
// generate from; one already queued or processing rejects the request
// instead of queueing behind it.
func (s *Store) RequestGeneration(ctx context.Context, scheduleID uint) (models.Schedule, error) {
	lock := s.scheduleLock(scheduleID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND state IN ?", scheduleID, []models.ScheduleState{
			models.StateUnpublished, models.StatePublished,
		}).
		Updates(map[string]interface{}{
			"state":       models.StateChompQueue,
			"chomp_start": now,
			"chomp_end":   nil,
			"last_update": now,
		})
	if res.Error != nil {
		return models.Schedule{}, infra("request generation", res.Error)
	}
	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return models.Schedule{}, err
	}
	if res.RowsAffected == 0 {
		if _, serr := schedule.OnGenerationRequested(sched.State); serr != nil {
			return sched, serr
		}
		return sched, &schedule.ErrGenerationInProgress{State: sched.State}
	}
	return sched, nil
}

// AdvanceState compare-and-swaps one schedule state transition. The write
// only lands when the row still holds the expected state, which is the
// mutual-exclusion mechanism between workers.
func (s *Store) AdvanceState(ctx context.Context, scheduleID uint, from, to models.ScheduleState) error {
	if _, err := schedule.Transition(from, to); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND state = ?", scheduleID, from).
		Updates(map[string]interface{}{"state": to, "last_update": time.Now().UTC()})
	if res.Error != nil {
		return infra("advance state", res.Error)
	}
	if res.RowsAffected == 0 {
		return &schedule.ErrGenerationInProgress{State: from}
	}
	return nil
}

// RevertToUnpublished fails a run back to unpublished from any queued or
// processing state.
func (s *Store) RevertToUnpublished(ctx context.Context, scheduleID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND state IN ?", scheduleID, []models.ScheduleState{
			models.StateChompQueue, models.StateChompProcessing,
			models.StateMobiusQueue, models.StateMobiusProcessing,
		}).
		Updates(map[string]interface{}{"state": models.StateUnpublished, "last_update": time.Now().UTC()})
	if res.Error != nil {
		return infra("revert", res.Error)
	}
	return nil
}

// Heartbeat refreshes last_update for a schedule held by a worker so the
// stale sweep does not reap a live run.
func (s *Store) Heartbeat(ctx context.Context, scheduleID uint) error {
	err := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		UpdateColumn("last_update", time.Now().UTC()).Error
	if err != nil {
		return infra("heartbeat", err)
	}
	return nil
}

// SweepStale reverts schedules stuck in a processing state whose
// last_update is older than the timeout. A missing heartbeat is a failed
// run. Returns how many schedules were reverted.
func (s *Store) SweepStale(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("state IN ? AND last_update < ?", []models.ScheduleState{
			models.StateChompProcessing, models.StateMobiusProcessing,
		}, cutoff).
		Updates(map[string]interface{}{"state": models.StateUnpublished, "last_update": time.Now().UTC()})
	if res.Error != nil {
		return 0, infra("sweep stale", res.Error)
	}
	return res.RowsAffected, nil
}

// DueForGeneration lists unpublished schedules whose week start falls
// within the owning organization's assignment lead time. The engine queues
// these automatically so published schedules reach workers ahead of the
// week.
func (s *Store) DueForGeneration(ctx context.Context, now time.Time, defaultLeadDays int) ([]uint, error) {
	type row struct {
		ID    uint
		Start time.Time
		Lead  int
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Select("schedules.id AS id, schedules.start AS start, organizations.shifts_assigned_days_before_start AS lead").
		Joins("JOIN roles ON roles.id = schedules.role_id").
		Joins("JOIN locations ON locations.id = roles.location_id").
		Joins("JOIN organizations ON organizations.id = locations.organization_id").
		Where("schedules.state = ? AND schedules.start > ?", models.StateUnpublished, now).
		Scan(&rows).Error
	if err != nil {
		return nil, infra("due for generation", err)
	}
	var ids []uint
	for _, r := range rows {
		lead := r.Lead
		if lead <= 0 {
			lead = defaultLeadDays
		}
		if !r.Start.After(now.AddDate(0, 0, lead)) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// NextQueued picks up the oldest schedule waiting in the given queue state
// and claims it by advancing to the matching processing state. Returns
// ErrNotFound when the queue is empty.
func (s *Store) NextQueued(ctx context.Context, queued, processing models.ScheduleState) (models.Schedule, error) {
	var sched models.Schedule
	err := s.db.WithContext(ctx).
		Where("state = ?", queued).
		Order("last_update asc").
		First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Schedule{}, ErrNotFound
	}
	if err != nil {
		return models.Schedule{}, infra("next queued", err)
	}
	if err := s.AdvanceState(ctx, sched.ID, queued, processing); err != nil {
		return models.Schedule{}, err
	}
	sched.State = processing
	return sched, nil
}

// ReplaceShifts supersedes every shift of a schedule with the given batch
// in one transaction. Readers never observe a half-written schedule.
func (s *Store) ReplaceShifts(ctx context.Context, scheduleID uint, shifts []models.Shift) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", scheduleID).Delete(&models.Shift{}).Error; err != nil {
			return err
		}
		for i := range shifts {
			shifts[i].ScheduleID = scheduleID
			shifts[i].Published = false
		}
		if len(shifts) == 0 {
			return nil
		}
		return tx.Create(&shifts).Error
	})
	if err != nil {
		return infra("replace shifts", err)
	}
	return nil
}

// ApplyAssignments writes the mobius phase's worker assignments as one
// batch. Unknown shift ids fail the whole transaction.
func (s *Store) ApplyAssignments(ctx context.Context, scheduleID uint, assignments map[uint]uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for shiftID, userID := range assignments {
			res := tx.Model(&models.Shift{}).
				Where("id = ? AND schedule_id = ?", shiftID, scheduleID).
				UpdateColumn("user_id", userID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("shift %d not in schedule %d", shiftID, scheduleID)
			}
		}
		return nil
	})
	if err != nil {
		return infra("apply assignments", err)
	}
	return nil
}

// Publish atomically flips every shift of the schedule to published and
// completes the mobius-processing -> published transition, in a single
// transaction, so no reader sees a partially published schedule.
func (s *Store) Publish(ctx context.Context, scheduleID uint) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Shift{}).
			Where("schedule_id = ?", scheduleID).
			UpdateColumn("published", true).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Schedule{}).
			Where("id = ? AND state = ?", scheduleID, models.StateMobiusProcessing).
			Updates(map[string]interface{}{
				"state":       models.StatePublished,
				"chomp_end":   now,
				"last_update": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &schedule.ErrIllegalTransition{From: models.StateMobiusProcessing, To: models.StatePublished}
		}
		return nil
	})
	if err != nil {
		var illegal *schedule.ErrIllegalTransition
		if errors.As(err, &illegal) {
			return err
		}
		return infra("publish", err)
	}
	return nil
}

// ListShifts returns a schedule's shifts ordered by start then id.
func (s *Store) ListShifts(ctx context.Context, scheduleID uint) ([]models.Shift, error) {
	var shifts []models.Shift
	err := s.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("start asc, id asc").
		Find(&shifts).Error
	if err != nil {
		return nil, infra("list shifts", err)
	}
	return shifts, nil
}

// GetShift loads one shift.
func (s *Store) GetShift(ctx context.Context, id uint) (models.Shift, error) {
	var shift models.Shift
	err := s.db.WithContext(ctx).First(&shift, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Shift{}, fmt.Errorf("%w: shift %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Shift{}, infra("get shift", err)
	}
	return shift, nil
}

// checkManualEdit rejects manual shift writes while the engine holds the
// schedule, and validates the shift window.
func (s *Store) checkManualEdit(ctx context.Context, scheduleID uint, shift models.Shift) error {
	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule.Queued(sched.State) || schedule.Processing(sched.State) {
		return &schedule.ErrGenerationInProgress{State: sched.State}
	}
	if !shift.Start.Before(shift.Stop) {
		return &demand.ValidationError{Reason: "shift start must precede stop"}
	}
	if shift.Start.Before(sched.Start) || shift.Stop.After(sched.Stop) {
		return &demand.ValidationError{Reason: "shift outside schedule window"}
	}
	return nil
}

// CreateShift records a manager-created shift.
func (s *Store) CreateShift(ctx context.Context, shift models.Shift) (models.Shift, error) {
	lock := s.scheduleLock(shift.ScheduleID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.checkManualEdit(ctx, shift.ScheduleID, shift); err != nil {
		return models.Shift{}, err
	}
	if err := s.db.WithContext(ctx).Create(&shift).Error; err != nil {
		return models.Shift{}, infra("create shift", err)
	}
	return shift, nil
}

// PatchShift applies a manager edit to one shift (reassignment or window
// change). Published schedules stay published.
func (s *Store) PatchShift(ctx context.Context, shift models.Shift) (models.Shift, error) {
	lock := s.scheduleLock(shift.ScheduleID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.checkManualEdit(ctx, shift.ScheduleID, shift); err != nil {
		return models.Shift{}, err
	}
	if err := s.db.WithContext(ctx).Save(&shift).Error; err != nil {
		return models.Shift{}, infra("patch shift", err)
	}
	return shift, nil
}

// DeleteShift removes one shift.
func (s *Store) DeleteShift(ctx context.Context, id uint) error {
	shift, err := s.GetShift(ctx, id)
	if err != nil {
		return err
	}
	lock := s.scheduleLock(shift.ScheduleID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.checkManualEdit(ctx, shift.ScheduleID, shift); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Shift{}, id).Error; err != nil {
		return infra("delete shift", err)
	}
	return nil
}

// Roster lists a role's active workers ordered by user id, the engine's
// canonical iteration order.
func (s *Store) Roster(ctx context.Context, roleID uint) ([]models.Worker, error) {
	var workers []models.Worker
	err := s.db.WithContext(ctx).
		Where("role_id = ? AND archived = ?", roleID, false).
		Order("user_id asc").
		Find(&workers).Error
	if err != nil {
		return nil, infra("roster", err)
	}
	return workers, nil
}

// GetRole loads one role.
func (s *Store) GetRole(ctx context.Context, id uint) (models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Role{}, fmt.Errorf("%w: role %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Role{}, infra("get role", err)
	}
	return role, nil
}

// RolePolicy resolves a role together with its location timezone and
// organization flags, the full compliance context for a run.
func (s *Store) RolePolicy(ctx context.Context, roleID uint) (models.Role, models.Location, models.Organization, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return models.Role{}, models.Location{}, models.Organization{}, err
	}
	var loc models.Location
	if err := s.db.WithContext(ctx).First(&loc, role.LocationID).Error; err != nil {
		return models.Role{}, models.Location{}, models.Organization{}, infra("get location", err)
	}
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, loc.OrganizationID).Error; err != nil {
		return models.Role{}, models.Location{}, models.Organization{}, infra("get organization", err)
	}
	return role, loc, org, nil
}

// UpsertPreference writes one worker's preference curve for a schedule.
func (s *Store) UpsertPreference(ctx context.Context, scheduleID, userID uint, p demand.Preference) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	var pref models.WorkerPreference
	err := s.db.WithContext(ctx).
		Where("schedule_id = ? AND user_id = ?", scheduleID, userID).
		First(&pref).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pref = models.WorkerPreference{
			ScheduleID: scheduleID,
			UserID:     userID,
			Preference: p,
			CreatedAt:  now,
			LastUpdate: now,
		}
		if err := s.db.WithContext(ctx).Create(&pref).Error; err != nil {
			return infra("create preference", err)
		}
		return nil
	case err != nil:
		return infra("get preference", err)
	}
	pref.Preference = p
	pref.LastUpdate = now
	if err := s.db.WithContext(ctx).Save(&pref).Error; err != nil {
		return infra("update preference", err)
	}
	return nil
}

// Preferences returns the preference curves for a schedule keyed by user id.
func (s *Store) Preferences(ctx context.Context, scheduleID uint) (map[uint]demand.Preference, error) {
	var prefs []models.WorkerPreference
	err := s.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Find(&prefs).Error
	if err != nil {
		return nil, infra("preferences", err)
	}
	out := make(map[uint]demand.Preference, len(prefs))
	for _, p := range prefs {
		out[p.UserID] = p.Preference
	}
	return out, nil
}

// locationRoleIDs is the subquery for "all roles at this location".
func (s *Store) locationRoleIDs(ctx context.Context, locationID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Role{}).
		Select("id").Where("location_id = ?", locationID)
}

// PublishedShiftsInRange returns published shifts overlapping [start, stop)
// for every role at a location.
func (s *Store) PublishedShiftsInRange(ctx context.Context, locationID uint, start, stop time.Time) ([]models.Shift, error) {
	var shifts []models.Shift
	err := s.db.WithContext(ctx).
		Where("role_id IN (?) AND published = ? AND start < ? AND stop > ?",
			s.locationRoleIDs(ctx, locationID), true, stop, start).
		Order("start asc, id asc").
		Find(&shifts).Error
	if err != nil {
		return nil, infra("shifts in range", err)
	}
	return shifts, nil
}

// TimeclocksInRange returns timeclocks starting within [start, stop) for a
// location, open ones included.
func (s *Store) TimeclocksInRange(ctx context.Context, locationID uint, start, stop time.Time) ([]models.Timeclock, error) {
	var clocks []models.Timeclock
	err := s.db.WithContext(ctx).
		Where("role_id IN (?) AND start < ? AND start >= ?",
			s.locationRoleIDs(ctx, locationID), stop, start).
		Order("start asc, id asc").
		Find(&clocks).Error
	if err != nil {
		return nil, infra("timeclocks in range", err)
	}
	return clocks, nil
}

// TimeOffRequestsInRange returns time off requests overlapping [start, stop)
// for a location.
func (s *Store) TimeOffRequestsInRange(ctx context.Context, locationID uint, start, stop time.Time) ([]models.TimeOffRequest, error) {
	var reqs []models.TimeOffRequest
	err := s.db.WithContext(ctx).
		Where("role_id IN (?) AND start < ? AND stop > ?",
			s.locationRoleIDs(ctx, locationID), stop, start).
		Order("start asc, id asc").
		Find(&reqs).Error
	if err != nil {
		return nil, infra("time off requests in range", err)
	}
	return reqs, nil
}
