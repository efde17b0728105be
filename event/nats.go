package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// SubjectPrefix is the subject root for lifecycle notifications. The event
// name becomes the final token, e.g. foreman.event.task-updated.
const SubjectPrefix = "foreman.event."

// StreamName is the JetStream stream that retains lifecycle notifications.
const StreamName = "FOREMAN_EVENTS"

// NATSEmitter publishes lifecycle notifications to JetStream.
type NATSEmitter struct {
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewNATSEmitter creates a JetStream-backed emitter. It ensures the event
// stream exists.
func NewNATSEmitter(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) (*NATSEmitter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Foreman workflow lifecycle notifications",
		Subjects:    []string{SubjectPrefix + ">"},
	})
	if err != nil {
		return nil, err
	}
	return &NATSEmitter{js: js, logger: logger}, nil
}

// Emit publishes the event. Publish failures are logged, never propagated:
// eventing must not abort a workflow run.
func (e *NATSEmitter) Emit(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error("Failed to marshal event", "event", ev.Name, "error", err)
		return
	}

	subject := SubjectPrefix + string(ev.Name)
	if _, err := e.js.Publish(ctx, subject, data); err != nil {
		e.logger.Error("Failed to publish event",
			"subject", subject,
			"event", ev.Name,
			"entity_id", ev.EntityID,
			"error", err)
	}
}
