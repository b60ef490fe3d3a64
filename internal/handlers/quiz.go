package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classroom-chat/internal/leaderboard"
	"classroom-chat/internal/models"
)

// QuizService records attempts and ranks them.
type QuizService interface {
	Save(ctx context.Context, userID string, score, totalQuestions int) (models.QuizResult, error)
	History(ctx context.Context, userID string) ([]models.QuizResult, error)
	Top(ctx context.Context, limit int) ([]leaderboard.Entry, error)
}

// QuizHandler serves quiz results and the leaderboard.
type QuizHandler struct {
	svc QuizService
}

func NewQuizHandler(svc QuizService) *QuizHandler {
	return &QuizHandler{svc: svc}
}

// SaveResult handles POST /quiz-results.
func (h *QuizHandler) SaveResult(c *gin.Context) {
	var req struct {
		Score          *int `json:"score" binding:"required"`
		TotalQuestions *int `json:"total_questions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Save(c.Request.Context(), c.GetString("userID"), *req.Score, *req.TotalQuestions)
	if err != nil {
		if errors.Is(err, leaderboard.ErrInvalidResult) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save result"})
		return
	}
	c.JSON(http.StatusCreated, res)
}

// MyResults handles GET /quiz-results/me.
func (h *QuizHandler) MyResults(c *gin.Context) {
	results, err := h.svc.History(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return
	}
	if results == nil {
		results = []models.QuizResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Leaderboard handles GET /leaderboard?limit=.
func (h *QuizHandler) Leaderboard(c *gin.Context) {
	limit := leaderboard.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = leaderboard.ClampLimit(parsed)
	}

	entries, err := h.svc.Top(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "limit": limit})
}
