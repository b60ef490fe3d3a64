package models

import "time"

// Profile is the account information a user keeps about themselves.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate lists the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Email     *string
	FullName  *string
	AvatarURL *string
}
