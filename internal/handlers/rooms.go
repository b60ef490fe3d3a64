package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classroom-chat/internal/models"
	"classroom-chat/internal/observability"
	"classroom-chat/internal/presentation"
	"classroom-chat/internal/repositories"
	"classroom-chat/internal/session"
	"classroom-chat/internal/telemetry"
)

// MessagePoster runs the send pipeline for a room.
type MessagePoster interface {
	Post(ctx context.Context, roomID, userID, content, clientMessageID string) (models.Message, error)
}

// RoomHandler serves the room list, room history and posting endpoints.
type RoomHandler struct {
	rooms        repositories.RoomRepository
	participants repositories.ParticipantRepository
	messages     repositories.MessageRepository
	poster       MessagePoster
	audit        *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, participants repositories.ParticipantRepository, messages repositories.MessageRepository, poster MessagePoster, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{
		rooms:        rooms,
		participants: participants,
		messages:     messages,
		poster:       poster,
		audit:        audit,
	}
}

// ListRooms handles GET /rooms. A store failure is reported with an empty
// list and the path to retry.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context())
	if err != nil {
		log.Printf("list rooms failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "failed to load rooms",
			"rooms": []models.Room{},
			"retry": "/rooms",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name     string              `json:"name" binding:"required"`
		Category models.RoomCategory `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if !req.Category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category must be teacher, parent or general"})
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("userID")
	room, err := h.rooms.CreateRoom(ctx, name, req.Category, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "room creation failed", nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}
	if _, err := h.participants.CreateParticipant(ctx, room.ID, userID); err != nil {
		log.Printf("add creator as participant failed room_id=%s user_id=%s: %v", room.ID, userID, err)
	}

	_ = observability.PublishEvent(ctx, observability.RoutingRoomCreated, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "room_created",
		Payload: map[string]interface{}{
			"room_id":    room.ID,
			"category":   room.Category,
			"created_by": userID,
		},
	}, observability.BuildHeaders(requestIDFromContext(c), ""))
	h.emitAudit(c, telemetry.LevelInfo, "Room created", map[string]string{"room_id": room.ID})

	c.JSON(http.StatusCreated, room)
}

// GetRoom handles GET /rooms/:room_id.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetMessages handles GET /rooms/:room_id/messages.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), room.ID)
	if err != nil {
		log.Printf("load messages failed room_id=%s: %v", room.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": presentation.DecorateAll(msgs)})
}

// PostMessage handles POST /rooms/:room_id/messages.
func (h *RoomHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content         string `json:"content"`
		ClientMessageID string `json:"client_message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, ok := h.loadRoom(c)
	if !ok {
		return
	}

	msg, err := h.poster.Post(c.Request.Context(), room.ID, c.GetString("userID"), req.Content, req.ClientMessageID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		case errors.Is(err, session.ErrMissingIdentity):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		case errors.Is(err, repositories.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, session.ErrMessageConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "client_message_id already used"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}
	c.JSON(http.StatusCreated, presentation.Decorate(msg))
}

func (h *RoomHandler) loadRoom(c *gin.Context) (models.Room, bool) {
	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return models.Room{}, false
	}
	return room, true
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string, fields map[string]string) {
	if h.audit == nil {
		return
	}
	h.audit.EmitFields(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c), fields)
}
