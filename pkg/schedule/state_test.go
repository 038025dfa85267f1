package schedule

import (
	"testing"

	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
)

func TestHappyPathTransitions(t *testing.T) {
	path := []models.ScheduleState{
		models.StateInitial,
		models.StateUnpublished,
		models.StateChompQueue,
		models.StateChompProcessing,
		models.StateMobiusQueue,
		models.StateMobiusProcessing,
		models.StatePublished,
	}
	for i := 0; i < len(path)-1; i++ {
		next, err := Transition(path[i], path[i+1])
		if err != nil {
			t.Fatalf("Expected %s -> %s to be legal: %v", path[i], path[i+1], err)
		}
		if next != path[i+1] {
			t.Fatalf("Expected state %s, got %s", path[i+1], next)
		}
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	cases := []struct{ from, to models.ScheduleState }{
		{models.StateInitial, models.StatePublished},
		{models.StateInitial, models.StateChompQueue},
		{models.StateUnpublished, models.StateMobiusQueue},
		{models.StateChompQueue, models.StatePublished},
		{models.StatePublished, models.StateInitial},
		{models.StateChompProcessing, models.StateChompQueue},
	}
	for _, tc := range cases {
		if _, err := Transition(tc.from, tc.to); err == nil {
			t.Errorf("Expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestProcessingFailsBackToUnpublished(t *testing.T) {
	for _, s := range []models.ScheduleState{
		models.StateChompQueue, models.StateChompProcessing,
		models.StateMobiusQueue, models.StateMobiusProcessing,
	} {
		next, err := OnRunFailed(s)
		if err != nil {
			t.Errorf("Expected failure from %s to be legal: %v", s, err)
		}
		if next != models.StateUnpublished {
			t.Errorf("Expected %s to revert to unpublished, got %s", s, next)
		}
	}
	if _, err := OnRunFailed(models.StatePublished); err == nil {
		t.Error("Expected published to reject a run-failure revert")
	}
}

func TestDemandEdit(t *testing.T) {
	next, err := OnDemandEdited(models.StateInitial)
	if err != nil || next != models.StateUnpublished {
		t.Errorf("Expected first edit to move initial to unpublished, got %s (%v)", next, err)
	}

	// Edits after publication do not regress the state.
	next, err = OnDemandEdited(models.StatePublished)
	if err != nil || next != models.StatePublished {
		t.Errorf("Expected published to stay published on edit, got %s (%v)", next, err)
	}

	if _, err := OnDemandEdited(models.StateChompProcessing); err == nil {
		t.Error("Expected demand edit during processing to conflict")
	}
}

func TestGenerationRequest(t *testing.T) {
	for _, s := range []models.ScheduleState{
		models.StateUnpublished, models.StatePublished,
	} {
		next, err := OnGenerationRequested(s)
		if err != nil || next != models.StateChompQueue {
			t.Errorf("Expected request from %s to queue, got %s (%v)", s, next, err)
		}
	}
	if _, err := OnGenerationRequested(models.StateInitial); err == nil {
		t.Error("Expected request before any demand edit to be rejected")
	}
	for _, s := range []models.ScheduleState{
		models.StateChompQueue, models.StateChompProcessing,
		models.StateMobiusQueue, models.StateMobiusProcessing,
	} {
		if _, err := OnGenerationRequested(s); err == nil {
			t.Errorf("Expected request from %s to be rejected", s)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid(models.StateMobiusQueue) {
		t.Error("Expected mobius-queue to be a recognized state")
	}
	if Valid(models.ScheduleState("draft")) {
		t.Error("Expected unknown state to be invalid")
	}
}
