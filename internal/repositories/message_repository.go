package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"classroom-chat/internal/models"
)

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. Repeating a client_message_id for the same
// room and author returns the row stored the first time.
func (r *MessageRepo) CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, room_id, participant_id, user_id, content, client_message_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (room_id, user_id, client_message_id) DO NOTHING
        RETURNING id, room_id, participant_id, user_id, content, client_message_id, created_at`,
		uuid.NewString(), in.RoomID, in.ParticipantID, in.UserID, in.Content, in.ClientMessageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.GetContext(ctx, &msg, `SELECT id, room_id, participant_id, user_id, content, client_message_id, created_at
            FROM messages WHERE room_id=$1 AND user_id=$2 AND client_message_id=$3`,
			in.RoomID, in.UserID, in.ClientMessageID)
	}
	return msg, err
}

// ListRoomMessages returns the room's messages ordered by creation.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_id, participant_id, user_id, content, client_message_id, created_at
        FROM messages WHERE room_id=$1 ORDER BY created_at ASC`, roomID)
	return msgs, err
}
