package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/foreman/event"
	"github.com/c360studio/foreman/quality"
	"github.com/c360studio/foreman/task"
)

// Config holds the engine execution settings. Values are expected to be
// validated at configuration-build time; the engine only normalizes zeros.
type Config struct {
	// QualityThreshold is the minimum score an artifact must reach.
	QualityThreshold float64
	// ConsensusThreshold is the minimum score for consensus acceptance.
	ConsensusThreshold float64
	// AutoValidation runs the quality gate on every generated artifact.
	AutoValidation bool
	// SpecsDriven iterates the fixed phase sequence instead of insertion order.
	SpecsDriven bool
	// MaxConcurrent bounds simultaneous content-production calls per phase.
	MaxConcurrent int
	// GenerateTimeout bounds each content-production call.
	GenerateTimeout time.Duration
	// MaxRetries is the regeneration budget after a failed validation.
	MaxRetries int
	// BackoffBase is the base delay before a regeneration retry.
	BackoffBase time.Duration
	// BackoffMultiplier is the exponential backoff multiplier.
	BackoffMultiplier float64
}

// Persister is the persistence collaborator. Saves are best-effort from the
// engine's point of view: a failing save is logged, not propagated.
type Persister interface {
	SaveWorkflow(ctx context.Context, wf *Workflow) error
	SaveTask(ctx context.Context, t *task.Task) error
	SaveTaskArtifact(ctx context.Context, taskID, content string) error
}

// Options wires an Engine's collaborators.
type Options struct {
	Config    Config
	Tasks     *task.Store
	Scorer    quality.Scorer
	Generator ContentGenerator
	Emitter   event.Emitter
	Persister Persister
	Logger    *slog.Logger
}

// Engine is the workflow orchestrator. It is the single writer of a given
// workflow during a run: executions and mutations of one workflow id are
// serialized on a per-id lock.
type Engine struct {
	cfg       Config
	tasks     *task.Store
	scorer    quality.Scorer
	consensus *quality.ConsensusEvaluator
	generator ContentGenerator
	emitter   event.Emitter
	persister Persister
	logger    *slog.Logger

	mu        sync.RWMutex
	workflows map[string]*Workflow

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New creates a workflow engine. Tasks and Generator are required.
func New(opts Options) (*Engine, error) {
	if opts.Tasks == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("content generator is required")
	}

	cfg := opts.Config
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 2 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}

	scorer := opts.Scorer
	if scorer == nil {
		scorer = quality.NewHeuristicScorer()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = event.NewMemoryEmitter(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:       cfg,
		tasks:     opts.Tasks,
		scorer:    scorer,
		consensus: quality.NewConsensusEvaluator(scorer),
		generator: opts.Generator,
		emitter:   emitter,
		persister: opts.Persister,
		logger:    logger,
		workflows: make(map[string]*Workflow),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Tasks returns the engine's task store.
func (e *Engine) Tasks() *task.Store {
	return e.tasks
}

// lockFor returns the per-workflow serialization lock.
func (e *Engine) lockFor(id string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// CreateTask creates a task with derived defaults and emits task-created.
func (e *Engine) CreateTask(ctx context.Context, description string, taskType task.Type, priority task.Priority) (*task.Task, error) {
	t, err := e.tasks.Create(description, taskType, priority)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(ctx, event.New(event.TaskCreated, t.ID, map[string]any{
		"type":     string(t.Type),
		"priority": string(t.Priority),
		"status":   string(t.Status),
		"strategy": string(t.Strategy),
	}))
	return t, nil
}

// UpdateTask applies a typed patch to a task and emits task-updated.
func (e *Engine) UpdateTask(ctx context.Context, id string, patch task.Update) (*task.Task, error) {
	t, err := e.tasks.Apply(id, patch)
	if err != nil {
		return nil, err
	}
	e.emitTaskUpdated(ctx, t)
	return t, nil
}

// DeleteTask removes a task and emits task-deleted when it existed.
func (e *Engine) DeleteTask(ctx context.Context, id string) bool {
	existed := e.tasks.Delete(ctx, id)
	if existed {
		e.emitter.Emit(ctx, event.New(event.TaskDeleted, id, nil))
	}
	return existed
}

// CreateWorkflow creates an empty workflow and emits workflow-created.
func (e *Engine) CreateWorkflow(ctx context.Context, name, description string) (*Workflow, error) {
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	now := time.Now()
	wf := &Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      WorkflowPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.mu.Lock()
	e.workflows[wf.ID] = wf
	e.mu.Unlock()

	e.emitter.Emit(ctx, event.New(event.WorkflowCreated, wf.ID, map[string]any{
		"name":   wf.Name,
		"status": string(wf.Status),
	}))
	return wf.Clone(), nil
}

// GetWorkflow returns a copy of a workflow.
func (e *Engine) GetWorkflow(id string) (*Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return wf.Clone(), nil
}

// AddTask appends a task to a workflow and stamps the task's workflow id.
func (e *Engine) AddTask(ctx context.Context, workflowID, taskID string) error {
	lock := e.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return ErrWorkflowNotFound
	}
	e.mu.Unlock()

	// The store enforces workflow-id immutability.
	if _, err := e.tasks.Apply(taskID, task.Update{WorkflowID: &workflowID}); err != nil {
		return err
	}

	e.mu.Lock()
	wf.TaskIDs = append(wf.TaskIDs, taskID)
	wf.UpdatedAt = time.Now()
	count := len(wf.TaskIDs)
	e.mu.Unlock()

	e.emitter.Emit(ctx, event.New(event.WorkflowUpdated, workflowID, map[string]any{
		"task_id":    taskID,
		"task_count": count,
	}))
	return nil
}

// ExecuteWorkflow steps a workflow's pending tasks through the pipeline.
// A failing task never aborts its phase siblings; generation errors are
// collected and returned after the run so completed work stays queryable.
func (e *Engine) ExecuteWorkflow(ctx context.Context, id string) (*Workflow, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	e.mu.RLock()
	wf, ok := e.workflows[id]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrWorkflowNotFound
	}

	e.mu.Lock()
	if wf.Status == WorkflowPending {
		wf.Status = WorkflowActive
	}
	wf.UpdatedAt = time.Now()
	taskIDs := append([]string(nil), wf.TaskIDs...)
	e.mu.Unlock()

	e.emitter.Emit(ctx, event.New(event.WorkflowExecuting, id, map[string]any{
		"name":       wf.Name,
		"status":     string(wf.Status),
		"task_count": len(taskIDs),
	}))

	var errs []error
	for _, batch := range e.batches(taskIDs) {
		errs = append(errs, e.runBatch(ctx, batch)...)
	}

	e.finalize(ctx, wf)

	return wf.Clone(), errors.Join(errs...)
}

// batches groups pending task ids for dispatch. In specs-driven mode each
// phase of the fixed pipeline is one batch; otherwise all pending tasks form
// a single batch in insertion order.
func (e *Engine) batches(taskIDs []string) [][]string {
	pending := make([]*task.Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		t, err := e.tasks.Get(id)
		if err != nil {
			e.logger.Warn("Workflow references unknown task", "task_id", id)
			continue
		}
		if t.Status == task.StatusPending {
			pending = append(pending, t)
		}
	}

	if !e.cfg.SpecsDriven {
		batch := make([]string, 0, len(pending))
		for _, t := range pending {
			batch = append(batch, t.ID)
		}
		if len(batch) == 0 {
			return nil
		}
		return [][]string{batch}
	}

	var out [][]string
	for _, phase := range task.AllTypes() {
		var batch []string
		for _, t := range pending {
			if t.Type == phase {
				batch = append(batch, t.ID)
			}
		}
		if len(batch) > 0 {
			out = append(out, batch)
		}
	}
	return out
}

// runBatch dispatches one phase's tasks through a bounded-concurrency pool.
// Phase completion does not depend on intra-phase ordering: every task's
// outcome is written through the store's own lock.
func (e *Engine) runBatch(ctx context.Context, batch []string) []error {
	sem := make(chan struct{}, e.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	for _, id := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(taskID string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.executeTask(ctx, taskID); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return errs
}

// executeTask runs one task: generate, gate, transition. A validation
// failure marks the task failed and returns nil so siblings continue; a
// generation error marks the task failed and is returned to the caller.
func (e *Engine) executeTask(ctx context.Context, id string) error {
	inProgress := task.StatusInProgress
	t, err := e.tasks.Apply(id, task.Update{Status: &inProgress})
	if err != nil {
		return err
	}
	e.emitTaskUpdated(ctx, t)

	hint := ""
	if len(t.RequiredCapabilities) > 0 {
		hint = t.RequiredCapabilities[0]
	}

	prompt := t.Description
	attempts := e.cfg.MaxRetries + 1

	var content string
	var result *quality.Result
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := e.backoff(ctx, attempt); err != nil {
				break
			}
		}

		content, err = e.generate(ctx, prompt, t.Type, hint)
		if err != nil {
			e.failTask(ctx, id, nil, err)
			return fmt.Errorf("task %s: %w", id, err)
		}

		if !e.cfg.AutoValidation {
			result = nil
			break
		}

		result = e.scorer.Evaluate(content, t.Type, e.cfg.QualityThreshold)
		if t.RequireConsensus {
			decision := e.consensus.Evaluate(content, t.Type, e.cfg.ConsensusThreshold)
			achieved := decision.Achieved
			result.ConsensusAchieved = &achieved
		}
		e.emitter.Emit(ctx, event.New(event.ContentValidated, id, map[string]any{
			"type":  string(t.Type),
			"score": result.Score,
			"valid": result.Valid,
		}))

		if e.passed(result) {
			break
		}
		validationFailures.Inc()
		if attempt < attempts-1 {
			prompt = retryPrompt(t.Description, result)
			e.logger.Info("Retrying content generation",
				"task_id", id,
				"attempt", attempt+1,
				"score", result.Score)
		}
	}

	if result != nil && !e.passed(result) {
		e.failTask(ctx, id, result, nil)
		return nil
	}

	patch := task.Update{Metadata: map[string]any{}}
	completed := task.StatusCompleted
	patch.Status = &completed
	if result != nil {
		score := result.Score
		patch.QualityScore = &score
		patch.Metadata["validation"] = result
	}
	t, err = e.tasks.Apply(id, patch)
	if err != nil {
		return err
	}
	e.emitTaskUpdated(ctx, t)
	tasksExecuted.WithLabelValues(string(task.StatusCompleted)).Inc()

	e.persistTask(ctx, t)
	if e.persister != nil {
		if err := e.persister.SaveTaskArtifact(ctx, id, content); err != nil {
			e.logger.Warn("Failed to persist task artifact", "task_id", id, "error", err)
		}
	}
	return nil
}

// persistTask saves a task snapshot, best-effort.
func (e *Engine) persistTask(ctx context.Context, t *task.Task) {
	if e.persister == nil {
		return
	}
	if err := e.persister.SaveTask(ctx, t); err != nil {
		e.logger.Warn("Failed to persist task", "task_id", t.ID, "error", err)
	}
}

// passed reports whether an evaluation clears the quality gate.
func (e *Engine) passed(result *quality.Result) bool {
	if result == nil {
		return true
	}
	if !result.Valid || result.Score < e.cfg.QualityThreshold {
		return false
	}
	if result.ConsensusAchieved != nil && !*result.ConsensusAchieved {
		return false
	}
	return true
}

// failTask marks a task failed and records the gate result or error.
func (e *Engine) failTask(ctx context.Context, id string, result *quality.Result, cause error) {
	failed := task.StatusFailed
	patch := task.Update{Status: &failed, Metadata: map[string]any{}}
	if result != nil {
		score := result.Score
		patch.QualityScore = &score
		patch.Metadata["validation"] = result
	}
	if cause != nil {
		patch.Metadata["error"] = cause.Error()
	}

	t, err := e.tasks.Apply(id, patch)
	if err != nil {
		e.logger.Error("Failed to mark task failed", "task_id", id, "error", err)
		return
	}
	e.emitTaskUpdated(ctx, t)
	tasksExecuted.WithLabelValues(string(task.StatusFailed)).Inc()
	e.persistTask(ctx, t)
}

// backoff sleeps before a regeneration retry, clearing its timer on both
// paths.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	delay := e.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * e.cfg.BackoffMultiplier)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finalize recomputes the workflow status after a run. The workflow is
// completed only when every constituent task completed; otherwise it keeps
// its prior status. Emission and persistence run outside the engine lock:
// observers may read the engine back, and a slow publish must not stall
// unrelated workflows.
func (e *Engine) finalize(ctx context.Context, wf *Workflow) {
	e.mu.Lock()

	allCompleted := true
	var scoreSum float64
	var scored int
	for _, id := range wf.TaskIDs {
		t, err := e.tasks.Get(id)
		if err != nil || t.Status != task.StatusCompleted {
			allCompleted = false
			continue
		}
		if t.QualityScore != nil {
			scoreSum += *t.QualityScore
			scored++
		}
	}
	if scored > 0 {
		wf.QualityScore = scoreSum / float64(scored)
	}
	if allCompleted {
		if wf.Status != WorkflowCompleted {
			workflowsCompleted.Inc()
		}
		wf.Status = WorkflowCompleted
	}
	wf.UpdatedAt = time.Now()

	snapshot := wf.Clone()
	e.mu.Unlock()

	e.emitter.Emit(ctx, event.New(event.WorkflowExecuted, wf.ID, map[string]any{
		"status":        string(snapshot.Status),
		"quality_score": snapshot.QualityScore,
		"task_count":    len(snapshot.TaskIDs),
	}))

	if e.persister != nil {
		if err := e.persister.SaveWorkflow(ctx, snapshot); err != nil {
			e.logger.Warn("Failed to persist workflow", "workflow_id", wf.ID, "error", err)
		}
	}
}

// emitTaskUpdated emits the task-updated notification with scalar fields.
func (e *Engine) emitTaskUpdated(ctx context.Context, t *task.Task) {
	fields := map[string]any{
		"type":   string(t.Type),
		"status": string(t.Status),
	}
	if t.QualityScore != nil {
		fields["quality_score"] = *t.QualityScore
	}
	if t.WorkflowID != "" {
		fields["workflow_id"] = t.WorkflowID
	}
	e.emitter.Emit(ctx, event.New(event.TaskUpdated, t.ID, fields))
}

// retryPrompt augments the original prompt with quality-gate feedback.
func retryPrompt(original string, result *quality.Result) string {
	var sb strings.Builder
	sb.WriteString(original)
	sb.WriteString("\n\nThe previous attempt did not pass the quality gate. Address these points:\n")
	for _, msg := range result.Errors {
		sb.WriteString("- " + msg + "\n")
	}
	for _, msg := range result.Warnings {
		sb.WriteString("- " + msg + "\n")
	}
	for _, msg := range result.Suggestions {
		sb.WriteString("- " + msg + "\n")
	}
	return sb.String()
}
