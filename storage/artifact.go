package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Artifact is one generated content revision for a task. Revisions share
// the task id as their key; the bucket's history depth bounds how many are
// retained.
type Artifact struct {
	TaskID    string    `json:"task_id"`
	Content   string    `json:"content"`
	Revision  uint64    `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTaskArtifact persists generated content for a task. Each save becomes
// a new KV revision under the task's key.
func (s *Store) SaveTaskArtifact(ctx context.Context, taskID, content string) error {
	a := Artifact{
		TaskID:    taskID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	if _, err := s.artifacts.Put(ctx, taskID, data); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	return nil
}

// GetTaskArtifact returns the latest artifact revision for a task.
func (s *Store) GetTaskArtifact(ctx context.Context, taskID string) (*Artifact, error) {
	entry, err := s.artifacts.Get(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}

	a, err := decodeArtifact(entry)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetTaskArtifacts returns all retained artifact revisions for a task,
// oldest first.
func (s *Store) GetTaskArtifacts(ctx context.Context, taskID string) ([]*Artifact, error) {
	entries, err := s.artifacts.History(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("artifact history: %w", err)
	}

	artifacts := make([]*Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.Operation() != jetstream.KeyValuePut {
			continue
		}
		a, err := decodeArtifact(entry)
		if err != nil {
			continue
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, nil
}

func decodeArtifact(entry jetstream.KeyValueEntry) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(entry.Value(), &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	a.Revision = entry.Revision()
	return &a, nil
}
