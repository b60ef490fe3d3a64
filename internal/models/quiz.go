package models

import "time"

// QuizResult records one completed quiz attempt.
type QuizResult struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Score          int       `db:"score" json:"score"`
	TotalQuestions int       `db:"total_questions" json:"total_questions"`
	CompletedAt    time.Time `db:"completed_at" json:"completed_at"`
}
