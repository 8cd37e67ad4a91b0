package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"planner-agent/internal/auth"
	"planner-agent/internal/auth/credentials"
	"planner-agent/internal/guard"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates the account only. The caller is sent to the login page.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.session.Register(c.Request.Context(), credentials.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     auth.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"status":   "registered",
		"redirect": guard.LoginPath,
	}
	if resp.Message != "" {
		body["message"] = resp.Message
	}
	if resp.User != nil {
		body["user"] = resp.User
	}
	c.JSON(http.StatusCreated, body)
}
