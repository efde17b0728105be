package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestStore() *Store {
	return NewStore(Options{ConsensusEnabled: true})
}

func TestCreateDerivesDefaults(t *testing.T) {
	s := newTestStore()

	created, err := s.Create("design the artifact pipeline", TypeDesign, PriorityHigh)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == "" {
		t.Error("expected generated id")
	}
	if created.Status != StatusPending {
		t.Errorf("expected pending status, got %s", created.Status)
	}
	if created.Strategy != StrategyAdaptive {
		t.Errorf("expected adaptive strategy, got %s", created.Strategy)
	}
	if created.MaxAgents != 3 {
		t.Errorf("expected 3 max agents for design, got %d", created.MaxAgents)
	}
	if !created.RequireConsensus {
		t.Error("design tasks should require consensus when enabled")
	}
	want := []string{"system_architecture", "api_design"}
	if len(created.RequiredCapabilities) != len(want) {
		t.Fatalf("expected %d capabilities, got %d", len(want), len(created.RequiredCapabilities))
	}
	for i, cap := range want {
		if created.RequiredCapabilities[i] != cap {
			t.Errorf("capability %d: expected %s, got %s", i, cap, created.RequiredCapabilities[i])
		}
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
	if created.StartedAt != nil || created.CompletedAt != nil {
		t.Error("new tasks must not have start or completion timestamps")
	}
}

func TestCreateCriticalSpecDefaults(t *testing.T) {
	s := newTestStore()

	created, err := s.Create("Add login", TypeSpec, PriorityCritical)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Critical priority forces sequential dispatch regardless of type.
	if created.Strategy != StrategySequential {
		t.Errorf("expected sequential strategy, got %s", created.Strategy)
	}
	if !created.RequireConsensus {
		t.Error("critical spec tasks should require consensus when enabled")
	}
	if created.MaxAgents != 2 {
		t.Errorf("expected 2 max agents for spec, got %d", created.MaxAgents)
	}
	want := []string{"requirements_analysis", "user_story_creation"}
	if len(created.RequiredCapabilities) != len(want) {
		t.Fatalf("expected %d capabilities, got %d", len(want), len(created.RequiredCapabilities))
	}
	for i, cap := range want {
		if created.RequiredCapabilities[i] != cap {
			t.Errorf("capability %d: expected %s, got %s", i, cap, created.RequiredCapabilities[i])
		}
	}
}

func TestCreateConsensusDisabled(t *testing.T) {
	s := NewStore(Options{ConsensusEnabled: false})

	created, err := s.Create("write the spec", TypeSpec, PriorityCritical)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.RequireConsensus {
		t.Error("consensus must never be required when globally disabled")
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore()

	cases := []struct {
		name        string
		description string
		taskType    Type
		priority    Priority
	}{
		{"empty description", "", TypeSpec, PriorityHigh},
		{"unknown type", "do something", Type("deploy"), PriorityHigh},
		{"unknown priority", "do something", TypeSpec, Priority("urgent")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(tc.description, tc.taskType, tc.priority)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	if s.Len() != 0 {
		t.Errorf("rejected creates must not store tasks, have %d", s.Len())
	}
}

func TestStatusTransitions(t *testing.T) {
	s := newTestStore()
	created, err := s.Create("implement the parser", TypeImplementation, PriorityMedium)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Pending cannot jump straight to a terminal state.
	completed := StatusCompleted
	if _, err := s.Apply(created.ID, Update{Status: &completed}); err == nil {
		t.Fatal("expected pending -> completed to be rejected")
	}

	inProgress := StatusInProgress
	updated, err := s.Apply(created.ID, Update{Status: &inProgress})
	if err != nil {
		t.Fatalf("pending -> in_progress failed: %v", err)
	}
	if updated.StartedAt == nil {
		t.Error("expected StartedAt stamped on in_progress")
	}
	if active := s.Active(); len(active) != 1 || active[0] != created.ID {
		t.Errorf("expected task in active set, got %v", active)
	}

	// Setting the current status again is a no-op.
	again, err := s.Apply(created.ID, Update{Status: &inProgress})
	if err != nil {
		t.Fatalf("same-status update failed: %v", err)
	}
	if len(again.StatusChanges) != 1 {
		t.Errorf("no-op status update must not record a change, got %d", len(again.StatusChanges))
	}

	updated, err = s.Apply(created.ID, Update{Status: &completed})
	if err != nil {
		t.Fatalf("in_progress -> completed failed: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt stamped on completion")
	}
	if len(s.Active()) != 0 {
		t.Error("completion must clear the active set")
	}

	// Terminal states have no outgoing edges.
	if _, err := s.Apply(created.ID, Update{Status: &inProgress}); err == nil {
		t.Fatal("expected completed -> in_progress to be rejected")
	}
}

func TestFailedTaskHasNoCompletionTimestamp(t *testing.T) {
	s := newTestStore()
	created, _ := s.Create("flaky generation", TypeTest, PriorityLow)

	inProgress := StatusInProgress
	failed := StatusFailed
	if _, err := s.Apply(created.ID, Update{Status: &inProgress}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	updated, err := s.Apply(created.ID, Update{Status: &failed})
	if err != nil {
		t.Fatalf("fail transition failed: %v", err)
	}
	if updated.CompletedAt != nil {
		t.Error("failed tasks must not carry a completion timestamp")
	}
	if len(s.Active()) != 0 {
		t.Error("failure must clear the active set")
	}
}

func TestWorkflowIDImmutable(t *testing.T) {
	s := newTestStore()
	created, _ := s.Create("review the draft", TypeReview, PriorityMedium)

	first := "wf-1"
	if _, err := s.Apply(created.ID, Update{WorkflowID: &first}); err != nil {
		t.Fatalf("initial workflow assignment failed: %v", err)
	}

	// Re-assigning the same id is fine.
	if _, err := s.Apply(created.ID, Update{WorkflowID: &first}); err != nil {
		t.Fatalf("idempotent workflow assignment failed: %v", err)
	}

	second := "wf-2"
	if _, err := s.Apply(created.ID, Update{WorkflowID: &second}); err == nil {
		t.Fatal("expected workflow reassignment to be rejected")
	}
}

func TestListOrdering(t *testing.T) {
	s := newTestStore()

	low, _ := s.Create("low priority", TypeSpec, PriorityLow)
	critical, _ := s.Create("critical work", TypeSpec, PriorityCritical)
	mediumA, _ := s.Create("medium a", TypeSpec, PriorityMedium)
	mediumB, _ := s.Create("medium b", TypeSpec, PriorityMedium)

	listed := s.List(nil)
	wantOrder := []string{critical.ID, mediumA.ID, mediumB.ID, low.ID}
	if len(listed) != len(wantOrder) {
		t.Fatalf("expected %d tasks, got %d", len(wantOrder), len(listed))
	}
	for i, id := range wantOrder {
		if listed[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, listed[i].ID)
		}
	}
}

func TestListFilter(t *testing.T) {
	s := newTestStore()

	spec, _ := s.Create("write spec", TypeSpec, PriorityHigh)
	s.Create("write design", TypeDesign, PriorityHigh)

	specType := TypeSpec
	listed := s.List(&Filter{Type: &specType})
	if len(listed) != 1 || listed[0].ID != spec.ID {
		t.Fatalf("expected only the spec task, got %d results", len(listed))
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := newTestStore()
	created, _ := s.Create("isolation check", TypeSpec, PriorityMedium)

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.Description = "mutated"
	got.Metadata["injected"] = true

	fresh, _ := s.Get(created.ID)
	if fresh.Description != "isolation check" {
		t.Error("mutating a returned task leaked into the store")
	}
	if _, ok := fresh.Metadata["injected"]; ok {
		t.Error("mutating returned metadata leaked into the store")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore()
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type recordingCanceler struct {
	cancelled []string
	err       error
}

func (r *recordingCanceler) CancelTask(_ context.Context, id string) error {
	r.cancelled = append(r.cancelled, id)
	return r.err
}

func TestDelete(t *testing.T) {
	canceler := &recordingCanceler{}
	s := NewStore(Options{ConsensusEnabled: true, Canceler: canceler})

	created, _ := s.Create("to be removed", TypeSpec, PriorityLow)
	inProgress := StatusInProgress
	if _, err := s.Apply(created.ID, Update{Status: &inProgress}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if !s.Delete(context.Background(), created.ID) {
		t.Fatal("expected delete of existing task to report true")
	}
	if len(canceler.cancelled) != 1 || canceler.cancelled[0] != created.ID {
		t.Errorf("expected cancellation for %s, got %v", created.ID, canceler.cancelled)
	}
	if len(s.Active()) != 0 {
		t.Error("delete must clear the active set")
	}
	if s.Delete(context.Background(), created.ID) {
		t.Error("deleting a missing task must report false")
	}
}

func TestDeleteCancellationFailureIsSwallowed(t *testing.T) {
	canceler := &recordingCanceler{err: fmt.Errorf("substrate unavailable")}
	s := NewStore(Options{Canceler: canceler})

	created, _ := s.Create("doomed", TypeSpec, PriorityLow)
	if !s.Delete(context.Background(), created.ID) {
		t.Fatal("delete must succeed even when cancellation fails")
	}
	if _, err := s.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Error("task must be gone after delete")
	}
}
