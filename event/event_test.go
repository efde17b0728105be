package event

import (
	"context"
	"testing"
)

func TestMemoryEmitterRecordsInOrder(t *testing.T) {
	m := NewMemoryEmitter(0)
	ctx := context.Background()

	m.Emit(ctx, New(TaskCreated, "t-1", map[string]any{"type": "spec"}))
	m.Emit(ctx, New(TaskUpdated, "t-1", map[string]any{"status": "in_progress"}))
	m.Emit(ctx, New(TaskUpdated, "t-1", map[string]any{"status": "completed"}))

	events := m.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Name != TaskCreated || events[2].Name != TaskUpdated {
		t.Errorf("unexpected event order: %v, %v", events[0].Name, events[2].Name)
	}
	for _, ev := range events {
		if ev.EventID == "" {
			t.Error("expected generated event id")
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected stamped timestamp")
		}
	}
}

func TestMemoryEmitterNamed(t *testing.T) {
	m := NewMemoryEmitter(0)
	ctx := context.Background()

	m.Emit(ctx, New(TaskCreated, "t-1", nil))
	m.Emit(ctx, New(WorkflowCreated, "w-1", nil))

	named := m.Named(WorkflowCreated)
	if len(named) != 1 || named[0].EntityID != "w-1" {
		t.Fatalf("expected one workflow-created event for w-1, got %v", named)
	}
}

func TestMemoryEmitterObservers(t *testing.T) {
	m := NewMemoryEmitter(0)

	var seen []Name
	m.Subscribe(func(ev Event) {
		seen = append(seen, ev.Name)
	})

	m.Emit(context.Background(), New(ContentValidated, "t-1", nil))
	if len(seen) != 1 || seen[0] != ContentValidated {
		t.Fatalf("observer did not receive the event: %v", seen)
	}
}

func TestMemoryEmitterRetentionLimit(t *testing.T) {
	m := NewMemoryEmitter(2)
	ctx := context.Background()

	m.Emit(ctx, New(TaskCreated, "t-1", nil))
	m.Emit(ctx, New(TaskCreated, "t-2", nil))
	m.Emit(ctx, New(TaskCreated, "t-3", nil))

	events := m.Events()
	if len(events) != 2 {
		t.Fatalf("expected retention to cap at 2 events, got %d", len(events))
	}
	if events[0].EntityID != "t-2" || events[1].EntityID != "t-3" {
		t.Errorf("expected oldest event dropped, got %v", events)
	}
}
