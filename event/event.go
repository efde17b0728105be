// Package event defines the lifecycle notifications emitted by the workflow
// engine and the emitters that deliver them. Payloads carry the affected
// entity's id and relevant scalar fields, never full object dumps.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Name identifies a lifecycle notification.
type Name string

// Lifecycle notification names.
const (
	TaskCreated       Name = "task-created"
	TaskUpdated       Name = "task-updated"
	TaskDeleted       Name = "task-deleted"
	WorkflowCreated   Name = "workflow-created"
	WorkflowUpdated   Name = "workflow-updated"
	WorkflowExecuting Name = "workflow-executing"
	WorkflowExecuted  Name = "workflow-executed"
	ContentValidated  Name = "content-validated"
)

// Event is a single lifecycle notification.
type Event struct {
	EventID   string         `json:"event_id"`
	Name      Name           `json:"name"`
	EntityID  string         `json:"entity_id"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New builds an event for an entity with the given scalar fields.
func New(name Name, entityID string, fields map[string]any) Event {
	return Event{
		EventID:   uuid.New().String(),
		Name:      name,
		EntityID:  entityID,
		Fields:    fields,
		Timestamp: time.Now(),
	}
}

// Emitter delivers lifecycle notifications. Emission is fire-and-forget from
// the engine's point of view: a failing emitter never aborts a workflow run.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Observer receives events from a MemoryEmitter.
type Observer func(ev Event)

// MemoryEmitter is an in-process emitter backed by an observer list. It also
// records emitted events so tests can assert on ordering.
type MemoryEmitter struct {
	mu        sync.Mutex
	observers []Observer
	recorded  []Event
	limit     int
}

// NewMemoryEmitter creates an in-process emitter that retains up to limit
// events (0 means unbounded).
func NewMemoryEmitter(limit int) *MemoryEmitter {
	return &MemoryEmitter{limit: limit}
}

// Subscribe registers an observer for all subsequent events.
func (m *MemoryEmitter) Subscribe(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Emit records the event and notifies observers in subscription order.
func (m *MemoryEmitter) Emit(_ context.Context, ev Event) {
	m.mu.Lock()
	m.recorded = append(m.recorded, ev)
	if m.limit > 0 && len(m.recorded) > m.limit {
		m.recorded = m.recorded[len(m.recorded)-m.limit:]
	}
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, obs := range observers {
		obs(ev)
	}
}

// Events returns a copy of the recorded events in emission order.
func (m *MemoryEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.recorded...)
}

// Named returns the recorded events matching a name, in emission order.
func (m *MemoryEmitter) Named(name Name) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.recorded {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
