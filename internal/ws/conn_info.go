package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one websocket connection in logs and ws_events.
type ConnInfo struct {
	ConnID      string
	RoomID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
