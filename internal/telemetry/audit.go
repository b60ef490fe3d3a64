package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Publisher is the part of the message bus the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter publishes audit_log envelopes for notable actions.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Audit levels.
const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit record. A nil emitter drops it.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	e.EmitFields(ctx, level, text, requestID, userID, nil)
}

// EmitFields is Emit with extra key/value context, such as the room id.
func (e *AuditEmitter) EmitFields(ctx context.Context, level, text, requestID string, userID *string, fields map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}

	uid := ""
	if userID != nil {
		uid = *userID
	}
	log.Printf("audit emit: level=%s request_id=%s user_id=%s text=%q", level, requestID, uid, text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		TraceID:       traceID(ctx),
		UserID:        userID,
		Payload: AuditPayload{
			Level:  level,
			Text:   text,
			Fields: fields,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
