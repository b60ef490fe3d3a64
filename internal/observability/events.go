package observability

// Routing keys for events published on the bus.
const (
	RoutingMessageSent = "chat_events.message_sent"
	RoutingRoomCreated = "chat_events.room_created"
	RoutingWSEvents    = "ws_events.rooms"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
