package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"classroom-chat/internal/models"
)

// QuizRepository persists quiz attempts.
type QuizRepository interface {
	SaveResult(ctx context.Context, userID string, score int, totalQuestions int) (models.QuizResult, error)
	ListResultsForUser(ctx context.Context, userID string) ([]models.QuizResult, error)
	TopScores(ctx context.Context, limit int) ([]models.QuizResult, error)
}

// QuizRepo is a sqlx implementation of QuizRepository.
type QuizRepo struct {
	db *sqlx.DB
}

// NewQuizRepo constructs a QuizRepo.
func NewQuizRepo(db *sqlx.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

func (r *QuizRepo) SaveResult(ctx context.Context, userID string, score int, totalQuestions int) (models.QuizResult, error) {
	var res models.QuizResult
	err := r.db.QueryRowxContext(ctx, `INSERT INTO quiz_results (id, user_id, score, total_questions) VALUES ($1, $2, $3, $4)
        RETURNING id, user_id, score, total_questions, completed_at`, uuid.NewString(), userID, score, totalQuestions).
		StructScan(&res)
	return res, err
}

func (r *QuizRepo) ListResultsForUser(ctx context.Context, userID string) ([]models.QuizResult, error) {
	results := []models.QuizResult{}
	err := r.db.SelectContext(ctx, &results, `SELECT id, user_id, score, total_questions, completed_at
        FROM quiz_results WHERE user_id=$1 ORDER BY completed_at DESC`, userID)
	return results, err
}

// TopScores returns the highest scoring attempts.
func (r *QuizRepo) TopScores(ctx context.Context, limit int) ([]models.QuizResult, error) {
	results := []models.QuizResult{}
	err := r.db.SelectContext(ctx, &results, `SELECT id, user_id, score, total_questions, completed_at
        FROM quiz_results ORDER BY score DESC, completed_at ASC LIMIT $1`, limit)
	return results, err
}
