// Package session keeps one room's visible message list in step with two
// sources: the persisted history and live broadcast events.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"classroom-chat/internal/models"
	"classroom-chat/internal/observability"
	"classroom-chat/internal/realtime"
	"classroom-chat/internal/repositories"
)

var (
	ErrMissingRoom     = errors.New("room id is required")
	ErrMissingIdentity = errors.New("room and user ids are required")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrNotSubscribed   = errors.New("room channel is not subscribed")
	ErrClosed          = errors.New("session closed")
	ErrMessageConflict = errors.New("client message id belongs to another message")
)

const (
	defaultHistoryTimeout   = 10 * time.Second
	defaultSubscribeTimeout = 10 * time.Second
)

// Config bounds the asynchronous work a session starts.
type Config struct {
	HistoryTimeout   time.Duration
	SubscribeTimeout time.Duration
}

// Service opens room sessions and runs the send pipeline. It is the explicit
// handle on the store and the realtime transport.
type Service struct {
	messages     repositories.MessageRepository
	rooms        repositories.RoomRepository
	participants repositories.ParticipantRepository
	broker       realtime.Broker
	cfg          Config
	tracer       trace.Tracer
}

// NewService constructs a Service.
func NewService(messages repositories.MessageRepository, rooms repositories.RoomRepository, participants repositories.ParticipantRepository, broker realtime.Broker, cfg Config) *Service {
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = defaultHistoryTimeout
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = defaultSubscribeTimeout
	}
	return &Service{
		messages:     messages,
		rooms:        rooms,
		participants: participants,
		broker:       broker,
		cfg:          cfg,
		tracer:       otel.Tracer("classroom-chat/session"),
	}
}

// Post runs the send pipeline without a session and broadcasts the stored
// message to every subscriber of the room, the sender's own sessions included.
func (s *Service) Post(ctx context.Context, roomID, userID, content, clientMessageID string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}
	if roomID == "" || userID == "" {
		return models.Message{}, ErrMissingIdentity
	}

	ctx, span := s.tracer.Start(ctx, "session.post", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	msg, err := s.persist(ctx, roomID, userID, content, clientMessageID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		observability.IncSend("error")
		return models.Message{}, err
	}
	s.announce(ctx, msg, func(ctx context.Context, event realtime.Event) error {
		return s.broker.Publish(ctx, realtime.ChannelName(roomID), event)
	})
	observability.IncSend("ok")
	return msg, nil
}

// persist ensures the sender is a participant and stores the message.
func (s *Service) persist(ctx context.Context, roomID, userID, content, clientMessageID string) (models.Message, error) {
	if clientMessageID == "" {
		clientMessageID = uuid.NewString()
	}

	participant, err := s.ensureParticipant(ctx, roomID, userID)
	if err != nil {
		log.Printf("session: ensure participant failed room_id=%s user_id=%s: %v", roomID, userID, err)
		return models.Message{}, fmt.Errorf("ensure participant: %w", err)
	}

	msg, err := s.messages.CreateMessage(ctx, models.NewMessage{
		RoomID:          roomID,
		ParticipantID:   participant.ID,
		UserID:          userID,
		Content:         content,
		ClientMessageID: clientMessageID,
	})
	if err != nil {
		log.Printf("session: insert message failed room_id=%s user_id=%s: %v", roomID, userID, err)
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if msg.RoomID != roomID || msg.UserID != userID {
		log.Printf("session: client message id conflict room_id=%s user_id=%s client_message_id=%s", roomID, userID, clientMessageID)
		return models.Message{}, ErrMessageConflict
	}
	return msg, nil
}

func (s *Service) ensureParticipant(ctx context.Context, roomID, userID string) (models.Participant, error) {
	participant, err := s.participants.GetParticipant(ctx, roomID, userID)
	if err == nil {
		return participant, nil
	}
	if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return models.Participant{}, err
	}
	return s.participants.CreateParticipant(ctx, roomID, userID)
}

// announce updates the room summary and then broadcasts the stored row.
// Failures are logged only: the message is already persisted.
func (s *Service) announce(ctx context.Context, msg models.Message, publish func(context.Context, realtime.Event) error) {
	if err := s.rooms.UpdateLastMessage(ctx, msg.RoomID, msg.Content); err != nil {
		log.Printf("session: update room summary failed room_id=%s message_id=%s: %v", msg.RoomID, msg.ID, err)
		return
	}

	event, err := realtime.NewEvent(realtime.EventMessage, msg)
	if err != nil {
		log.Printf("session: encode broadcast failed message_id=%s: %v", msg.ID, err)
		return
	}
	if err := publish(ctx, event); err != nil {
		log.Printf("session: broadcast failed room_id=%s message_id=%s: %v", msg.RoomID, msg.ID, err)
		return
	}

	_ = observability.PublishEvent(ctx, observability.RoutingMessageSent, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "message_sent",
		Payload: map[string]interface{}{
			"room_id":    msg.RoomID,
			"message_id": msg.ID,
			"user_id":    msg.UserID,
		},
	}, observability.BuildHeaders("", traceIDFromContext(ctx)))
}

func traceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
