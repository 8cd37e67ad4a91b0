package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"planner-agent/internal/auth/credentials"
	"planner-agent/internal/guard"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login starts a session and tells the caller where the role lands.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.session.Login(c.Request.Context(), credentials.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "logged_in",
		"user":     resp.User,
		"redirect": guard.HomePath(resp.User.Role),
	})
}
