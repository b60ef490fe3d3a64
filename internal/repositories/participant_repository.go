package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"classroom-chat/internal/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepository manages room membership rows.
type ParticipantRepository interface {
	GetParticipant(ctx context.Context, roomID string, userID string) (models.Participant, error)
	CreateParticipant(ctx context.Context, roomID string, userID string) (models.Participant, error)
}

// ParticipantRepo is a sqlx-backed implementation.
type ParticipantRepo struct {
	db *sqlx.DB
}

// NewParticipantRepo constructs a ParticipantRepo.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// GetParticipant looks up the membership of a user in a room.
func (r *ParticipantRepo) GetParticipant(ctx context.Context, roomID string, userID string) (models.Participant, error) {
	var p models.Participant
	err := r.db.GetContext(ctx, &p, `SELECT id, room_id, user_id, created_at FROM room_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, err
}

// CreateParticipant joins a user to a room. A concurrent join for the same
// pair resolves to the existing row.
func (r *ParticipantRepo) CreateParticipant(ctx context.Context, roomID string, userID string) (models.Participant, error) {
	var p models.Participant
	err := r.db.QueryRowxContext(ctx, `INSERT INTO room_participants (id, room_id, user_id) VALUES ($1, $2, $3)
        ON CONFLICT (room_id, user_id) DO NOTHING
        RETURNING id, room_id, user_id, created_at`, uuid.NewString(), roomID, userID).StructScan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetParticipant(ctx, roomID, userID)
	}
	return p, err
}
