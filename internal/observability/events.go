package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Routing keys for conversation domain events.
const (
	RoutingThreadCreated   = "conversation_events.thread_created"
	RoutingThreadAccepted  = "conversation_events.thread_accepted"
	RoutingThreadDeleted   = "conversation_events.thread_deleted"
	RoutingMessageAppended = "conversation_events.message_appended"
)

type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	RequestID  string      `json:"request_id,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
	Payload    interface{} `json:"payload"`
}

// Publisher is satisfied by the RabbitMQ publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var (
	publisherMu      sync.RWMutex
	defaultPublisher Publisher
)

func SetPublisher(publisher Publisher) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	defaultPublisher = publisher
}

// PublishEvent sends a conversation event. Events are informational: failures are
// counted and logged and the error is returned for callers that care.
func PublishEvent(ctx context.Context, routingKey, eventName, requestID string, payload interface{}) error {
	publisherMu.RLock()
	publisher := defaultPublisher
	publisherMu.RUnlock()
	if publisher == nil {
		return nil
	}

	envelope := EventEnvelope{
		EventType:  "conversation_events",
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:  requestID,
		Payload:    payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		envelope.TraceID = sc.TraceID().String()
	}

	err := publisher.Publish(ctx, routingKey, envelope)
	if err != nil {
		IncAMQPPublishError()
		slog.WarnContext(ctx, "publish conversation event failed", "event", eventName, "error", err)
	}
	return err
}
