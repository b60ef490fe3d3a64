// Package leaderboard records quiz attempts and ranks the best scores.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"classroom-chat/internal/models"
	"classroom-chat/internal/presentation"
	"classroom-chat/internal/repositories"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	topKeyPrefix = "leaderboard:top:"
)

var ErrInvalidResult = errors.New("score must be between 0 and total_questions, and total_questions positive")

// Entry is one ranked row of the leaderboard.
type Entry struct {
	Rank           int       `json:"rank"`
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Service fronts the quiz store with an optional Redis cache for the ranking.
type Service struct {
	repo   repositories.QuizRepository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewService builds a Service. client may be nil, in which case every read
// goes to the store.
func NewService(repo repositories.QuizRepository, client *redis.Client, prefix string, ttl time.Duration) *Service {
	return &Service{repo: repo, client: client, prefix: prefix, ttl: ttl}
}

// Save stores an attempt and drops the cached rankings.
func (s *Service) Save(ctx context.Context, userID string, score, totalQuestions int) (models.QuizResult, error) {
	if totalQuestions <= 0 || score < 0 || score > totalQuestions {
		return models.QuizResult{}, ErrInvalidResult
	}
	res, err := s.repo.SaveResult(ctx, userID, score, totalQuestions)
	if err != nil {
		return models.QuizResult{}, fmt.Errorf("save quiz result: %w", err)
	}
	if err := s.invalidate(ctx); err != nil {
		log.Printf("leaderboard: cache invalidation failed: %v", err)
	}
	return res, nil
}

// History returns userID's attempts, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]models.QuizResult, error) {
	return s.repo.ListResultsForUser(ctx, userID)
}

// Top returns the best limit attempts. limit is clamped to [1, MaxLimit];
// zero or negative means DefaultLimit.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)
	key := s.prefix + topKeyPrefix + strconv.Itoa(limit)

	if s.client != nil {
		var cached []Entry
		data, err := s.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			log.Printf("leaderboard: discarding unreadable cache entry key=%s", key)
		case !errors.Is(err, redis.Nil):
			log.Printf("leaderboard: cache get failed key=%s: %v", key, err)
		}
	}

	results, err := s.repo.TopScores(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load top scores: %w", err)
	}
	entries := rank(results)

	if s.client != nil {
		if data, err := json.Marshal(entries); err == nil {
			if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
				log.Printf("leaderboard: cache set failed key=%s: %v", key, err)
			}
		}
	}
	return entries, nil
}

// ClampLimit normalises a requested leaderboard size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func (s *Service) invalidate(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+topKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func rank(results []models.QuizResult) []Entry {
	entries := make([]Entry, 0, len(results))
	for i, r := range results {
		entries = append(entries, Entry{
			Rank:           i + 1,
			UserID:         r.UserID,
			DisplayName:    presentation.DisplayName(r.UserID),
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			CompletedAt:    r.CompletedAt,
		})
	}
	return entries
}
