package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arnavshah/workforce-scheduler-go/pkg/compliance"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
	"github.com/arnavshah/workforce-scheduler-go/pkg/schedule"
	"github.com/arnavshah/workforce-scheduler-go/pkg/store"
)

// Config tunes the runner's worker pool and run bounds.
// AutoAssignLeadDays zero disables the automatic queueing of schedules
// entering their assignment window.
type Config struct {
	Workers            int
	RunTimeout         time.Duration
	SweepEvery         time.Duration
	AutoAssignLeadDays int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 2 * time.Minute
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = c.RunTimeout / 2
	}
	return c
}

// Runner executes generation runs. Queuing a schedule and executing it are
// distinct steps: Request performs the compare-and-swap into chomp-queue
// and hands the schedule id to the worker pool, which walks it through both
// phases. At most one run per schedule can be active; the state machine's
// queue/processing split is the mutual exclusion.
type Runner struct {
	store *store.Store
	eval  *compliance.Evaluator
	cfg   Config

	tasks chan uint

	mu      sync.Mutex
	reports map[uint]Report

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRunner builds a runner over the store with the default rule set.
func NewRunner(st *store.Store, cfg Config) *Runner {
	return &Runner{
		store:   st,
		eval:    compliance.DefaultEvaluator(),
		cfg:     cfg.withDefaults(),
		tasks:   make(chan uint, 64),
		reports: make(map[uint]Report),
	}
}

// Start launches the worker pool and the stale-run sweeper. Stop with Stop.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-r.tasks:
					r.process(ctx, id)
				}
			}
		}()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.SweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := r.store.SweepStale(ctx, r.cfg.RunTimeout); err != nil {
					log.Printf("engine: stale sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("engine: reverted %d timed-out schedules", n)
				}
				r.requeue(ctx)
				r.autoQueue(ctx)
			}
		}
	}()
}

// autoQueue requests generation for schedules entering their assignment
// window. A conflict means a run is already active for the schedule.
func (r *Runner) autoQueue(ctx context.Context) {
	if r.cfg.AutoAssignLeadDays <= 0 {
		return
	}
	ids, err := r.store.DueForGeneration(ctx, time.Now().UTC(), r.cfg.AutoAssignLeadDays)
	if err != nil {
		log.Printf("engine: auto-assign scan failed: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := r.Request(ctx, id); err != nil {
			var inProgress *schedule.ErrGenerationInProgress
			if !errors.As(err, &inProgress) {
				log.Printf("engine: auto-assign of schedule %d failed: %v", id, err)
			}
		}
	}
}

// Stop shuts the pool down and waits for in-flight runs to finish or
// revert.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Request queues a generation run for a schedule. Identical repeated
// requests are idempotent at the state level; a request against an already
// queued or processing schedule returns ErrGenerationInProgress.
func (r *Runner) Request(ctx context.Context, scheduleID uint) (models.Schedule, error) {
	sched, err := r.store.RequestGeneration(ctx, scheduleID)
	if err != nil {
		return sched, err
	}
	select {
	case r.tasks <- scheduleID:
	default:
		// Channel full; the requeue sweep will pick the schedule up.
	}
	return sched, nil
}

// requeue re-feeds schedules sitting in a queue state (after a restart or
// a dropped channel send) back to the pool.
func (r *Runner) requeue(ctx context.Context) {
	for _, state := range []models.ScheduleState{models.StateChompQueue, models.StateMobiusQueue} {
		for {
			sched, err := r.store.NextQueued(ctx, state, nextProcessing(state))
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			if err != nil {
				return
			}
			r.resume(ctx, sched)
		}
	}
}

func nextProcessing(queued models.ScheduleState) models.ScheduleState {
	if queued == models.StateChompQueue {
		return models.StateChompProcessing
	}
	return models.StateMobiusProcessing
}

// process walks a schedule through every remaining phase of its run.
func (r *Runner) process(ctx context.Context, scheduleID uint) {
	if err := r.store.AdvanceState(ctx, scheduleID, models.StateChompQueue, models.StateChompProcessing); err != nil {
		// Claimed elsewhere or reverted; nothing to do.
		return
	}
	sched, err := r.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		r.fail(scheduleID, newReport(scheduleID), err)
		return
	}
	sched.State = models.StateChompProcessing
	r.resume(ctx, sched)
}

// resume drives a schedule already claimed in a processing state to the
// end of its run, bounded by the run timeout. Any infrastructure failure is
// fatal for the run: the schedule reverts to unpublished and the phase's
// writes roll back with their transaction.
func (r *Runner) resume(ctx context.Context, sched models.Schedule) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	report := newReport(sched.ID)

	if sched.State == models.StateChompProcessing {
		created, err := r.chomp(runCtx, sched)
		if err != nil {
			r.fail(sched.ID, report, err)
			return
		}
		report.ShiftsCreated = created
		if err := r.store.AdvanceState(runCtx, sched.ID, models.StateChompProcessing, models.StateMobiusQueue); err != nil {
			r.fail(sched.ID, report, err)
			return
		}
		if err := r.store.AdvanceState(runCtx, sched.ID, models.StateMobiusQueue, models.StateMobiusProcessing); err != nil {
			r.fail(sched.ID, report, err)
			return
		}
		sched.State = models.StateMobiusProcessing
	}

	if sched.State != models.StateMobiusProcessing {
		return
	}
	result, err := r.mobius(runCtx, sched)
	if err != nil {
		r.fail(sched.ID, report, err)
		return
	}
	if report.ShiftsCreated == 0 {
		report.ShiftsCreated = result.Assigned + result.Unassigned
	}
	report.ShiftsAssigned = result.Assigned
	report.ShiftsUnassigned = result.Unassigned
	report.Violations = result.Violations
	report.UnderMinUserIDs = result.UnderMin
	report.Warnings = result.Warnings

	if err := r.store.Publish(runCtx, sched.ID); err != nil {
		r.fail(sched.ID, report, err)
		return
	}
	report.FinishedAt = time.Now().UTC()
	r.record(report)
	log.Printf("engine: run %s published schedule %d (%d shifts, %d assigned, %d unassigned)",
		report.RunID, sched.ID, report.ShiftsCreated, report.ShiftsAssigned, report.ShiftsUnassigned)
}

// chomp runs phase 1 and commits its shifts as one batch.
func (r *Runner) chomp(ctx context.Context, sched models.Schedule) (int, error) {
	_, loc, _, err := r.store.RolePolicy(ctx, sched.RoleID)
	if err != nil {
		return 0, err
	}
	tz := timezone(loc)
	shifts, err := BuildShifts(sched, tz)
	if err != nil {
		return 0, err
	}
	if err := r.store.Heartbeat(ctx, sched.ID); err != nil {
		return 0, err
	}
	if err := r.store.ReplaceShifts(ctx, sched.ID, shifts); err != nil {
		return 0, err
	}
	return len(shifts), nil
}

// mobius runs phase 2 and commits its assignments as one batch.
func (r *Runner) mobius(ctx context.Context, sched models.Schedule) (AssignmentResult, error) {
	role, loc, org, err := r.store.RolePolicy(ctx, sched.RoleID)
	if err != nil {
		return AssignmentResult{}, err
	}
	shifts, err := r.store.ListShifts(ctx, sched.ID)
	if err != nil {
		return AssignmentResult{}, err
	}
	workers, err := r.store.Roster(ctx, sched.RoleID)
	if err != nil {
		return AssignmentResult{}, err
	}
	prefs, err := r.store.Preferences(ctx, sched.ID)
	if err != nil {
		return AssignmentResult{}, err
	}
	if err := r.store.Heartbeat(ctx, sched.ID); err != nil {
		return AssignmentResult{}, err
	}
	result := AssignWorkers(AssignmentInput{
		Schedule: sched,
		Shifts:   shifts,
		Workers:  workers,
		Prefs:    prefs,
		Role:     role,
		Org:      compliance.Policy{WorkersCanClaimShiftsInExcessOfMax: org.WorkersCanClaimShiftsInExcessOfMax},
		Timezone: timezone(loc),
	}, r.eval)
	if err := r.store.ApplyAssignments(ctx, sched.ID, result.Assignments); err != nil {
		return AssignmentResult{}, err
	}
	return result, nil
}

// fail reverts the schedule and records the fatal error. Reversion uses a
// fresh context so a timed-out run can still be put back.
func (r *Runner) fail(scheduleID uint, report Report, err error) {
	revertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if rerr := r.store.RevertToUnpublished(revertCtx, scheduleID); rerr != nil {
		log.Printf("engine: revert of schedule %d failed: %v", scheduleID, rerr)
	}
	report.Error = err.Error()
	report.FinishedAt = time.Now().UTC()
	r.record(report)
	log.Printf("engine: run %s on schedule %d failed: %v", report.RunID, scheduleID, err)
}

func (r *Runner) record(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ScheduleID] = report
}

// LastReport returns the most recent run report for a schedule.
func (r *Runner) LastReport(scheduleID uint) (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[scheduleID]
	return rep, ok
}

func newReport(scheduleID uint) Report {
	return Report{
		RunID:      uuid.NewString(),
		ScheduleID: scheduleID,
		StartedAt:  time.Now().UTC(),
	}
}

func timezone(loc models.Location) *time.Location {
	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil || tz == nil {
		return time.UTC
	}
	return tz
}
