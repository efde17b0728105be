package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Canceler is the execution substrate hook used for best-effort task
// cancellation on delete. A cancellation failure is logged, never propagated.
type Canceler interface {
	CancelTask(ctx context.Context, id string) error
}

// Options configures a Store.
type Options struct {
	// ConsensusEnabled gates whether derived RequireConsensus defaults apply.
	ConsensusEnabled bool

	// Canceler receives best-effort cancellation on Delete. Optional.
	Canceler Canceler

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Store owns task entities. It is an explicitly constructed object so
// multiple engines can coexist without shared state, and it is internally
// locked so external callers can race safely with an engine run.
type Store struct {
	mu               sync.RWMutex
	tasks            map[string]*Task
	order            []string // insertion order for stable sorting
	active           map[string]struct{}
	consensusEnabled bool
	canceler         Canceler
	logger           *slog.Logger
}

// NewStore creates an empty task store.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tasks:            make(map[string]*Task),
		active:           make(map[string]struct{}),
		consensusEnabled: opts.ConsensusEnabled,
		canceler:         opts.Canceler,
		logger:           logger,
	}
}

// Create creates a task with defaults derived from its type and priority.
func (s *Store) Create(description string, taskType Type, priority Priority) (*Task, error) {
	if description == "" {
		return nil, &ValidationError{Field: "description", Message: "description is required"}
	}
	if !taskType.Valid() {
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown task type: %s", taskType)}
	}
	if !priority.Valid() {
		return nil, &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority: %s", priority)}
	}

	t := &Task{
		ID:                   uuid.New().String(),
		Description:          description,
		Type:                 taskType,
		Priority:             priority,
		Status:               StatusPending,
		Strategy:             deriveStrategy(taskType, priority),
		RequiredCapabilities: deriveCapabilities(taskType),
		MaxAgents:            deriveMaxAgents(taskType),
		RequireConsensus:     deriveConsensus(taskType, priority, s.consensusEnabled),
		Metadata:             make(map[string]any),
		CreatedAt:            time.Now(),
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	s.mu.Unlock()

	return t.Clone(), nil
}

// Update is a typed field patch. Nil fields are left untouched; Metadata
// entries are merged key-wise.
type Update struct {
	Description  *string
	Priority     *Priority
	Status       *Status
	Strategy     *Strategy
	DependsOn    []string
	QualityScore *float64
	Metadata     map[string]any
	WorkflowID   *string
}

// allowedTransitions lists the legal status moves. Terminal states have no
// outgoing edges; setting the current status again is a no-op.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

func transitionAllowed(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply applies a patch to a task. Setting status=completed stamps
// CompletedAt; status=in_progress stamps StartedAt and records the task in
// the active set, which completion or failure clears again.
func (s *Store) Apply(id string, patch Update) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.WorkflowID != nil {
		if t.WorkflowID != "" && t.WorkflowID != *patch.WorkflowID {
			return nil, &ValidationError{Field: "workflow_id", Message: "workflow id is immutable once set"}
		}
		t.WorkflowID = *patch.WorkflowID
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority: %s", *patch.Priority)}
		}
		t.Priority = *patch.Priority
	}
	if patch.Strategy != nil {
		t.Strategy = *patch.Strategy
	}
	if patch.DependsOn != nil {
		t.DependsOn = append([]string(nil), patch.DependsOn...)
	}
	if patch.QualityScore != nil {
		score := *patch.QualityScore
		t.QualityScore = &score
	}
	for k, v := range patch.Metadata {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any)
		}
		t.Metadata[k] = v
	}

	if patch.Status != nil && *patch.Status != t.Status {
		if !transitionAllowed(t.Status, *patch.Status) {
			return nil, &ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("illegal transition %s -> %s", t.Status, *patch.Status),
			}
		}
		now := time.Now()
		t.StatusChanges = append(t.StatusChanges, StatusChange{From: t.Status, To: *patch.Status, Timestamp: now})
		t.Status = *patch.Status

		switch t.Status {
		case StatusInProgress:
			if t.StartedAt == nil {
				t.StartedAt = &now
			}
			s.active[id] = struct{}{}
		case StatusCompleted:
			t.CompletedAt = &now
			delete(s.active, id)
		case StatusFailed:
			delete(s.active, id)
		}
	}

	return t.Clone(), nil
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// Filter selects tasks by exact match on each set field.
type Filter struct {
	Type       *Type
	Priority   *Priority
	Status     *Status
	Strategy   *Strategy
	WorkflowID *string
}

func (f *Filter) matches(t *Task) bool {
	if f == nil {
		return true
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Strategy != nil && t.Strategy != *f.Strategy {
		return false
	}
	if f.WorkflowID != nil && t.WorkflowID != *f.WorkflowID {
		return false
	}
	return true
}

// List returns matching tasks sorted by priority weight descending.
// Equal priorities keep insertion order.
func (s *Store) List(filter *Filter) []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		if filter.matches(t) {
			matched = append(matched, t.Clone())
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority.Weight() > matched[j].Priority.Weight()
	})
	return matched
}

// Active returns the ids of tasks currently tracked as in progress.
func (s *Store) Active() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.active))
	for _, id := range s.order {
		if _, ok := s.active[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Delete removes a task and its active-tracking entry. It reports whether the
// task existed. Cancellation against the execution substrate is best-effort.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
		delete(s.active, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	canceler := s.canceler
	s.mu.Unlock()

	if ok && canceler != nil {
		if err := canceler.CancelTask(ctx, id); err != nil {
			s.logger.Warn("Task cancellation failed",
				"task_id", id,
				"error", err)
		}
	}
	return ok
}

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
