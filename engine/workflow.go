// Package engine provides the Foreman workflow engine: it owns workflow
// entities, steps tasks through the fixed phase pipeline, runs the quality
// gate on produced artifacts, and emits lifecycle notifications.
package engine

import (
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	// WorkflowPending is the state before the first execution.
	WorkflowPending WorkflowStatus = "pending"
	// WorkflowActive is the state during and between executions.
	WorkflowActive WorkflowStatus = "active"
	// WorkflowCompleted means every constituent task completed.
	WorkflowCompleted WorkflowStatus = "completed"
)

// Workflow groups an ordered list of tasks. Task order is the intended
// phase order. A workflow is completed exactly when every referenced task
// is completed; there is no failed terminal state, a workflow with failed
// member tasks simply stays active.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	TaskIDs     []string       `json:"task_ids"`
	Status      WorkflowStatus `json:"status"`

	// QualityScore aggregates the member tasks' quality scores.
	QualityScore float64 `json:"quality_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	if w.TaskIDs != nil {
		c.TaskIDs = append([]string(nil), w.TaskIDs...)
	}
	return &c
}
