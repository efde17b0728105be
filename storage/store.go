// Package storage provides entity persistence for foreman using NATS KV.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/foreman/engine"
	"github.com/c360studio/foreman/task"
)

// Bucket names for each entity type.
const (
	BucketWorkflows = "FOREMAN_WORKFLOWS"
	BucketTasks     = "FOREMAN_TASKS"
	BucketArtifacts = "FOREMAN_ARTIFACTS"
)

// Store provides entity persistence backed by NATS KV. It implements
// engine.Persister.
type Store struct {
	workflows jetstream.KeyValue
	tasks     jetstream.KeyValue
	artifacts jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	workflows, err := getOrCreateBucket(ctx, js, BucketWorkflows)
	if err != nil {
		return nil, fmt.Errorf("create workflows bucket: %w", err)
	}

	tasks, err := getOrCreateBucket(ctx, js, BucketTasks)
	if err != nil {
		return nil, fmt.Errorf("create tasks bucket: %w", err)
	}

	artifacts, err := getOrCreateBucket(ctx, js, BucketArtifacts)
	if err != nil {
		return nil, fmt.Errorf("create artifacts bucket: %w", err)
	}

	return &Store{
		workflows: workflows,
		tasks:     tasks,
		artifacts: artifacts,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Foreman %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

// SaveWorkflow persists a workflow snapshot keyed by its id.
func (s *Store) SaveWorkflow(ctx context.Context, wf *engine.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	if _, err := s.workflows.Put(ctx, wf.ID, data); err != nil {
		return fmt.Errorf("store workflow: %w", err)
	}

	return nil
}

// LoadWorkflow retrieves a workflow by id.
func (s *Store) LoadWorkflow(ctx context.Context, id string) (*engine.Workflow, error) {
	entry, err := s.workflows.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	var wf engine.Workflow
	if err := json.Unmarshal(entry.Value(), &wf); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}

	return &wf, nil
}

// ListWorkflows returns all persisted workflows.
func (s *Store) ListWorkflows(ctx context.Context) ([]*engine.Workflow, error) {
	keys, err := s.workflows.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list workflow keys: %w", err)
	}

	workflows := make([]*engine.Workflow, 0, len(keys))
	for _, key := range keys {
		entry, err := s.workflows.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var wf engine.Workflow
		if err := json.Unmarshal(entry.Value(), &wf); err != nil {
			continue
		}
		workflows = append(workflows, &wf)
	}

	return workflows, nil
}

// SaveTask persists a task snapshot keyed by its id.
func (s *Store) SaveTask(ctx context.Context, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if _, err := s.tasks.Put(ctx, t.ID, data); err != nil {
		return fmt.Errorf("store task: %w", err)
	}

	return nil
}

// LoadTask retrieves a task by id, restoring timestamp values in its
// metadata.
func (s *Store) LoadTask(ctx context.Context, id string) (*task.Task, error) {
	entry, err := s.tasks.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return decodeTask(entry.Value())
}

// ListTasksByWorkflow returns all persisted tasks belonging to a workflow.
func (s *Store) ListTasksByWorkflow(ctx context.Context, workflowID string) ([]*task.Task, error) {
	keys, err := s.tasks.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list task keys: %w", err)
	}

	tasks := make([]*task.Task, 0)
	for _, key := range keys {
		entry, err := s.tasks.Get(ctx, key)
		if err != nil {
			continue
		}
		t, err := decodeTask(entry.Value())
		if err != nil {
			continue
		}
		if t.WorkflowID == workflowID {
			tasks = append(tasks, t)
		}
	}

	return tasks, nil
}

// metadataTimeKeys are metadata fields restored to time.Time on decode.
// JSON round-trips demote them to RFC3339 strings.
var metadataTimeKeys = map[string]struct{}{
	"created":      {},
	"updated":      {},
	"created_at":   {},
	"started_at":   {},
	"completed_at": {},
	"assigned_at":  {},
}

// decodeTask unmarshals a task snapshot and restores known timestamp
// fields in its metadata.
func decodeTask(data []byte) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}

	for key := range metadataTimeKeys {
		raw, ok := t.Metadata[key].(string)
		if !ok {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			t.Metadata[key] = ts
		}
	}

	return &t, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
