// Package task provides task entities and the in-memory task store for the
// Foreman workflow system. Tasks move through a fixed lifecycle
// (pending -> in_progress -> completed|failed) and carry the derived
// execution defaults used by the workflow engine.
package task

import (
	"time"
)

// Type identifies the kind of artifact a task produces.
type Type string

const (
	// TypeSpec produces a specification document.
	TypeSpec Type = "spec"
	// TypeDesign produces a design document.
	TypeDesign Type = "design"
	// TypeImplementation produces implementation output.
	TypeImplementation Type = "implementation"
	// TypeTest produces test artifacts.
	TypeTest Type = "test"
	// TypeReview produces a review verdict.
	TypeReview Type = "review"
)

// AllTypes returns the task types in pipeline phase order.
func AllTypes() []Type {
	return []Type{TypeSpec, TypeDesign, TypeImplementation, TypeTest, TypeReview}
}

// Valid reports whether t is a recognized task type.
func (t Type) Valid() bool {
	switch t {
	case TypeSpec, TypeDesign, TypeImplementation, TypeTest, TypeReview:
		return true
	}
	return false
}

// Priority indicates task urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a recognized priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Weight returns the sort weight for a priority (critical=4 ... low=1).
// Unknown priorities weigh 0 and sort last.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Strategy selects how a task's agents are dispatched.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyParallel   Strategy = "parallel"
	StrategyConsensus  Strategy = "consensus"
	StrategyAdaptive   Strategy = "adaptive"
)

// StatusChange records a single status transition.
type StatusChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is a single unit of work inside a workflow.
type Task struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Type        Type     `json:"type"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	Strategy    Strategy `json:"strategy"`

	// DependsOn lists ids of tasks that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`

	// RequiredCapabilities are the capability tags an executing agent must have.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`

	MaxAgents        int  `json:"max_agents"`
	RequireConsensus bool `json:"require_consensus"`

	// QualityScore is set once the quality gate has evaluated the artifact.
	QualityScore *float64 `json:"quality_score,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// WorkflowID is the owning workflow. Immutable once set.
	WorkflowID string `json:"workflow_id,omitempty"`

	StatusChanges []StatusChange `json:"status_changes,omitempty"`
}

// Clone returns a deep copy of the task so callers cannot mutate store state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.DependsOn != nil {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.RequiredCapabilities != nil {
		c.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	}
	if t.QualityScore != nil {
		score := *t.QualityScore
		c.QualityScore = &score
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	if t.StatusChanges != nil {
		c.StatusChanges = append([]StatusChange(nil), t.StatusChanges...)
	}
	return &c
}
