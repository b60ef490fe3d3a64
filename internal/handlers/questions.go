package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classroom-chat/internal/models"
	"classroom-chat/internal/questions"
)

// QuestionService reads and extends the question bank.
type QuestionService interface {
	Create(ctx context.Context, q models.NewQuestion) (models.Question, error)
	List(ctx context.Context, category string) ([]models.Question, error)
	Random(ctx context.Context, limit int) ([]models.Question, error)
}

type QuestionHandler struct {
	svc QuestionService
}

func NewQuestionHandler(svc QuestionService) *QuestionHandler {
	return &QuestionHandler{svc: svc}
}

// ListQuestions handles GET /questions?category=.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load questions"})
		return
	}
	if list == nil {
		list = []models.Question{}
	}
	c.JSON(http.StatusOK, gin.H{"questions": list})
}

// RandomQuestions handles GET /questions/random?limit=.
func (h *QuestionHandler) RandomQuestions(c *gin.Context) {
	limit := questions.DefaultRandom
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = questions.ClampRandom(parsed)
	}

	list, err := h.svc.Random(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load questions"})
		return
	}
	if list == nil {
		list = []models.Question{}
	}
	c.JSON(http.StatusOK, gin.H{"questions": list, "limit": limit})
}

// CreateQuestion handles POST /questions.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req struct {
		Question      string   `json:"question" binding:"required"`
		Options       []string `json:"options" binding:"required"`
		CorrectAnswer *int     `json:"correct_answer" binding:"required"`
		Explanation   *string  `json:"explanation"`
		Category      string   `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := h.svc.Create(c.Request.Context(), models.NewQuestion{
		Question:      req.Question,
		Options:       req.Options,
		CorrectAnswer: *req.CorrectAnswer,
		Explanation:   req.Explanation,
		Category:      req.Category,
	})
	if err != nil {
		if errors.Is(err, questions.ErrInvalidQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save question"})
		return
	}
	c.JSON(http.StatusCreated, q)
}
