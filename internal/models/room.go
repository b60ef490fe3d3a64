package models

import "time"

// RoomCategory groups rooms by audience.
type RoomCategory string

const (
	RoomCategoryTeacher RoomCategory = "teacher"
	RoomCategoryParent  RoomCategory = "parent"
	RoomCategoryGeneral RoomCategory = "general"
)

// Valid reports whether c is one of the known categories.
func (c RoomCategory) Valid() bool {
	switch c {
	case RoomCategoryTeacher, RoomCategoryParent, RoomCategoryGeneral:
		return true
	}
	return false
}

// Room is a named channel grouping messages and participants.
type Room struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Category    RoomCategory `db:"category" json:"category"`
	LastMessage *string      `db:"last_message" json:"last_message,omitempty"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Participant links a user to a room they have posted in.
type Participant struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
