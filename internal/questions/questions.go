// Package questions serves the multiple-choice bank the quiz screen draws from.
package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classroom-chat/internal/models"
	"classroom-chat/internal/repositories"
)

const (
	DefaultRandom   = 5
	MaxRandom       = 50
	DefaultCategory = "general"
)

var ErrInvalidQuestion = errors.New("question needs text, at least two options and a correct_answer within them")

// Service validates additions to the bank and reads from it.
type Service struct {
	repo repositories.QuestionRepository
}

func NewService(repo repositories.QuestionRepository) *Service {
	return &Service{repo: repo}
}

// Create trims and validates q before storing it. A blank category becomes
// DefaultCategory.
func (s *Service) Create(ctx context.Context, q models.NewQuestion) (models.Question, error) {
	q.Question = strings.TrimSpace(q.Question)
	q.Category = strings.TrimSpace(q.Category)
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	options := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return models.Question{}, ErrInvalidQuestion
		}
		options = append(options, opt)
	}
	q.Options = options
	if q.Question == "" || len(q.Options) < 2 || q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return models.Question{}, ErrInvalidQuestion
	}

	created, err := s.repo.CreateQuestion(ctx, q)
	if err != nil {
		return models.Question{}, fmt.Errorf("create question: %w", err)
	}
	return created, nil
}

// List returns the questions of category, or all of them when category is
// empty.
func (s *Service) List(ctx context.Context, category string) ([]models.Question, error) {
	return s.repo.ListQuestions(ctx, strings.TrimSpace(category))
}

// Random returns up to limit questions in random order.
func (s *Service) Random(ctx context.Context, limit int) ([]models.Question, error) {
	return s.repo.RandomQuestions(ctx, ClampRandom(limit))
}

// ClampRandom maps limit into [1, MaxRandom]; zero or negative means
// DefaultRandom.
func ClampRandom(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRandom
	case limit > MaxRandom:
		return MaxRandom
	default:
		return limit
	}
}
