package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"classroom-chat/internal/models"
)

// QuestionRepository reads and extends the quiz question bank.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q models.NewQuestion) (models.Question, error)
	ListQuestions(ctx context.Context, category string) ([]models.Question, error)
	RandomQuestions(ctx context.Context, limit int) ([]models.Question, error)
}

// QuestionRepo is a sqlx implementation of QuestionRepository.
type QuestionRepo struct {
	db *sqlx.DB
}

// NewQuestionRepo constructs a QuestionRepo.
func NewQuestionRepo(db *sqlx.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

func (r *QuestionRepo) CreateQuestion(ctx context.Context, in models.NewQuestion) (models.Question, error) {
	var q models.Question
	err := r.db.QueryRowxContext(ctx, `INSERT INTO questions (id, question, options, correct_answer, explanation, category)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, question, options, correct_answer, explanation, category, created_at`,
		uuid.NewString(), in.Question, pq.Array(in.Options), in.CorrectAnswer, in.Explanation, in.Category).StructScan(&q)
	return q, err
}

// ListQuestions returns the bank in insertion order. An empty category means
// every question.
func (r *QuestionRepo) ListQuestions(ctx context.Context, category string) ([]models.Question, error) {
	questions := []models.Question{}
	query := `SELECT id, question, options, correct_answer, explanation, category, created_at FROM questions`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category=$1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	err := r.db.SelectContext(ctx, &questions, query, args...)
	return questions, err
}

func (r *QuestionRepo) RandomQuestions(ctx context.Context, limit int) ([]models.Question, error) {
	questions := []models.Question{}
	err := r.db.SelectContext(ctx, &questions, `SELECT id, question, options, correct_answer, explanation, category, created_at
        FROM questions ORDER BY random() LIMIT $1`, limit)
	return questions, err
}
