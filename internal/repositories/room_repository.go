package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"classroom-chat/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name string, category models.RoomCategory, createdBy string) (models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	UpdateLastMessage(ctx context.Context, roomID string, summary string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom inserts a new room.
func (r *RoomRepo) CreateRoom(ctx context.Context, name string, category models.RoomCategory, createdBy string) (models.Room, error) {
	var room models.Room
	err := r.db.QueryRowxContext(ctx, `INSERT INTO rooms (id, name, category, created_by) VALUES ($1, $2, $3, $4)
        RETURNING id, name, category, last_message, created_by, created_at`, uuid.NewString(), name, category, createdBy).
		StructScan(&room)
	return room, err
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, name, category, last_message, created_by, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListRooms returns every room, newest first.
func (r *RoomRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms := []models.Room{}
	err := r.db.SelectContext(ctx, &rooms, `SELECT id, name, category, last_message, created_by, created_at FROM rooms ORDER BY created_at DESC`)
	return rooms, err
}

// UpdateLastMessage overwrites the room's denormalized summary.
func (r *RoomRepo) UpdateLastMessage(ctx context.Context, roomID string, summary string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET last_message=$2 WHERE id=$1`, roomID, summary)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}
