package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"classroom-chat/internal/middleware"
	"classroom-chat/internal/observability"
	"classroom-chat/internal/repositories"
	"classroom-chat/internal/session"
)

// SessionOpener starts room sessions.
type SessionOpener interface {
	Open(ctx context.Context, roomID, userID string, onChange func(session.Change)) (*session.Session, error)
}

// RoomWebSocketHandler serves one room session per websocket connection.
type RoomWebSocketHandler struct {
	sessions  SessionOpener
	rooms     repositories.RoomRepository
	validator middleware.TokenValidator
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(sessions SessionOpener, rooms repositories.RoomRepository, validator middleware.TokenValidator) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{sessions: sessions, rooms: rooms, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades and runs the connection until it closes.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")

	ctx, span := otel.Tracer("classroom-chat/ws").Start(c.Request.Context(), "ws.handshake",
		trace.WithAttributes(attribute.String("room.id", roomID)))
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if _, err := h.rooms.GetRoom(ctx, roomID); err != nil {
		span.End()
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		RoomID:      roomID,
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.End()

	// The connection outlives the handshake span; keep only its trace identity.
	connCtx, cancel := context.WithCancel(trace.ContextWithSpanContext(context.Background(), span.SpanContext()))
	defer cancel()
	h.serve(connCtx, cancel, conn, info)
}

func (h *RoomWebSocketHandler) serve(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, info ConnInfo) {
	observability.IncWSActive()
	publishWSEvent(ctx, info, eventConnect, "")

	cl := newClient(conn, info, cancel)
	sess, err := h.sessions.Open(ctx, info.RoomID, info.UserID, func(change session.Change) {
		for _, frame := range framesForChange(change) {
			cl.enqueue(frame)
		}
	})
	if err != nil {
		log.Printf("websocket open session failed room_id=%s: %v", info.RoomID, err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		observability.DecWSActive()
		publishWSEvent(context.Background(), info, eventError, err.Error())
		return
	}

	writeDone := make(chan struct{})
	go cl.writePump(writeDone)

	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readDone:
		}
	}()

	readErr := cl.readPump(func(frame inboundFrame) {
		if frame.Type != frameSend {
			log.Printf("websocket ignoring frame type=%q conn_id=%s", frame.Type, info.ConnID)
			return
		}
		if _, err := sess.Send(ctx, frame.Content, frame.ClientMessageID); err != nil {
			cl.enqueue(errorFrame(sendErrorText(err)))
		}
	})
	close(readDone)

	cl.finish()
	<-writeDone
	cancel()
	_ = sess.Close()
	_ = conn.Close()

	observability.DecWSActive()
	reason := ""
	if readErr != nil {
		reason = readErr.Error()
	}
	if readErr != nil && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		publishWSEvent(context.Background(), info, eventError, reason)
	}
	publishWSEvent(context.Background(), info, eventDisconnect, reason)
}

func (h *RoomWebSocketHandler) authenticate(c *gin.Context) (string, error) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		return "", errors.New("missing token")
	}
	return h.validator.ValidateToken(c.Request.Context(), token)
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyContent):
		return "message is empty"
	case errors.Is(err, session.ErrNotSubscribed):
		return "not connected to room yet"
	case errors.Is(err, session.ErrClosed):
		return "session closed"
	case errors.Is(err, session.ErrMessageConflict):
		return "client_message_id already used"
	default:
		return "failed to send message"
	}
}
