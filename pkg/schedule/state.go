// Package schedule implements the schedule lifecycle as a closed state set
// with an explicit transition table. Anything not in the table is illegal.
package schedule

import (
	"fmt"

	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

// transitions is the full legality table. A schedule is never left stranded
// in a processing state: both processing states may fail back to
// unpublished, and the stale sweep uses the same edge.
var transitions = map[models.ScheduleState][]models.ScheduleState{
	models.StateInitial:          {models.StateUnpublished},
	models.StateUnpublished:      {models.StateUnpublished, models.StateChompQueue},
	models.StateChompQueue:       {models.StateChompProcessing, models.StateUnpublished},
	models.StateChompProcessing:  {models.StateMobiusQueue, models.StateUnpublished},
	models.StateMobiusQueue:      {models.StateMobiusProcessing, models.StateUnpublished},
	models.StateMobiusProcessing: {models.StatePublished, models.StateUnpublished},
	models.StatePublished:        {models.StatePublished, models.StateChompQueue},
}

// ErrIllegalTransition rejects a state change not present in the table.
type ErrIllegalTransition struct {
	From, To models.ScheduleState
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("schedule: illegal transition %s -> %s", e.From, e.To)
}

// ErrGenerationInProgress rejects a generation request while a run is
// already queued or processing. The caller retries later.
type ErrGenerationInProgress struct {
	State models.ScheduleState
}

func (e *ErrGenerationInProgress) Error() string {
	return fmt.Sprintf("schedule: generation already in progress (state %s)", e.State)
}

// Valid reports whether s is one of the recognized states.
func Valid(s models.ScheduleState) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is in the table.
func CanTransition(from, to models.ScheduleState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns the new state.
func Transition(from, to models.ScheduleState) (models.ScheduleState, error) {
	if !CanTransition(from, to) {
		return from, &ErrIllegalTransition{From: from, To: to}
	}
	return to, nil
}

// Processing reports whether s is one of the worker-held states.
func Processing(s models.ScheduleState) bool {
	return s == models.StateChompProcessing || s == models.StateMobiusProcessing
}

// Queued reports whether s is waiting for a worker.
func Queued(s models.ScheduleState) bool {
	return s == models.StateChompQueue || s == models.StateMobiusQueue
}

// OnDemandEdited returns the state after a manager demand edit. The first
// edit moves initial to unpublished; edits after publication are legal but
// never regress the state.
func OnDemandEdited(s models.ScheduleState) (models.ScheduleState, error) {
	switch s {
	case models.StateInitial:
		return models.StateUnpublished, nil
	case models.StateUnpublished, models.StatePublished:
		return s, nil
	}
	return s, &ErrGenerationInProgress{State: s}
}

// OnGenerationRequested returns the state after a generation request.
// A schedule still in initial has no demand to generate from, so the
// first demand edit must land before a request. Requests against a queued
// or processing schedule are conflicts, not queued behind the active run.
func OnGenerationRequested(s models.ScheduleState) (models.ScheduleState, error) {
	switch s {
	case models.StateUnpublished, models.StatePublished:
		return models.StateChompQueue, nil
	case models.StateInitial:
		return s, &ErrIllegalTransition{From: s, To: models.StateChompQueue}
	}
	return s, &ErrGenerationInProgress{State: s}
}

// OnRunFailed returns the state after a fatal run failure or timeout.
func OnRunFailed(s models.ScheduleState) (models.ScheduleState, error) {
	if !Queued(s) && !Processing(s) {
		return s, &ErrIllegalTransition{From: s, To: models.StateUnpublished}
	}
	return models.StateUnpublished, nil
}
