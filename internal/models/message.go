package models

import "time"

// Message is a single chat line posted into a room.
type Message struct {
	ID              string    `db:"id" json:"id"`
	RoomID          string    `db:"room_id" json:"room_id"`
	ParticipantID   string    `db:"participant_id" json:"participant_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Content         string    `db:"content" json:"content"`
	ClientMessageID string    `db:"client_message_id" json:"client_message_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	DisplayName     string    `db:"-" json:"display_name,omitempty"`
}

// NewMessage carries the fields a sender supplies when posting.
type NewMessage struct {
	RoomID          string
	ParticipantID   string
	UserID          string
	Content         string
	ClientMessageID string
}

// SameAs reports whether two messages describe the same persisted row. A
// client message id only identifies a row together with its room and author.
func (m Message) SameAs(other Message) bool {
	if m.ID != "" && m.ID == other.ID {
		return true
	}
	return m.ClientMessageID != "" &&
		m.ClientMessageID == other.ClientMessageID &&
		m.UserID == other.UserID &&
		m.RoomID == other.RoomID
}
