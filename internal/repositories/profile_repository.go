package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"classroom-chat/internal/models"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

// ProfileRepository stores one profile per user.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	CreateProfile(ctx context.Context, userID, email, fullName string) (models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error)
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	err := r.db.GetContext(ctx, &p, `SELECT id, email, full_name, avatar_url, created_at, updated_at
        FROM profiles WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

func (r *ProfileRepo) CreateProfile(ctx context.Context, userID, email, fullName string) (models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRowxContext(ctx, `INSERT INTO profiles (id, email, full_name) VALUES ($1, $2, $3)
        RETURNING id, email, full_name, avatar_url, created_at, updated_at`, userID, email, fullName).StructScan(&p)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.Profile{}, ErrProfileExists
	}
	return p, err
}

// UpdateProfile changes the non-nil fields of update and bumps updated_at.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRowxContext(ctx, `UPDATE profiles SET
            email = COALESCE($2, email),
            full_name = COALESCE($3, full_name),
            avatar_url = COALESCE($4, avatar_url),
            updated_at = NOW()
        WHERE id=$1
        RETURNING id, email, full_name, avatar_url, created_at, updated_at`,
		userID, update.Email, update.FullName, update.AvatarURL).StructScan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}
