package mq

import "context"

// Publisher defines the broker-agnostic publish operation. The API server
// only produces notifications; consumers (analytics, community feeds) run
// elsewhere.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Topics published by the job pipeline.
const (
	TopicGenerationRequested = "generation.requested"
	TopicGenerationCompleted = "generation.completed"
)

// Noop is a Publisher that drops every message. Used when no broker is
// configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (Noop) Close() error { return nil }
