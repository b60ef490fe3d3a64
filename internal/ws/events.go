package ws

import (
	"context"
	"time"

	"classroom-chat/internal/observability"
)

const (
	eventConnect    = "ws_connect"
	eventDisconnect = "ws_disconnect"
	eventError      = "ws_error"
)

// publishWSEvent counts the event and ships it to the bus.
func publishWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)

	duration := int64(0)
	if event != eventConnect {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, observability.RoutingWSEvents, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "room",
				"resource_id": info.RoomID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
