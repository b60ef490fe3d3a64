package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classroom-chat/internal/models"
	"classroom-chat/internal/repositories"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles repositories.ProfileRepository
}

func NewProfileHandler(profiles repositories.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetMyProfile handles GET /profile/me.
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	p, err := h.profiles.GetProfile(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateMyProfile handles POST /profile/me.
func (h *ProfileHandler) CreateMyProfile(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name is required"})
		return
	}

	p, err := h.profiles.CreateProfile(c.Request.Context(), c.GetString("userID"), req.Email, fullName)
	if err != nil {
		if errors.Is(err, repositories.ErrProfileExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "profile already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create profile"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateMyProfile handles PATCH /profile/me. Omitted fields keep their value.
func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	var req struct {
		Email     *string `json:"email" binding:"omitempty,email"`
		FullName  *string `json:"full_name"`
		AvatarURL *string `json:"avatar_url" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FullName != nil {
		trimmed := strings.TrimSpace(*req.FullName)
		if trimmed == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "full_name cannot be empty"})
			return
		}
		req.FullName = &trimmed
	}

	p, err := h.profiles.UpdateProfile(c.Request.Context(), c.GetString("userID"), models.ProfileUpdate{
		Email:     req.Email,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}
