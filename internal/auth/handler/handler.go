package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"planner-agent/internal/api"
	"planner-agent/internal/auth/credentials"
	"planner-agent/internal/logger"
	"planner-agent/internal/session"
)

// SessionService is the part of the session store the auth routes drive.
type SessionService interface {
	Login(ctx context.Context, creds credentials.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, reg credentials.Registration) (*api.RegisterResponse, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	Snapshot() session.State
}

type Handler struct {
	session SessionService
}

func NewHandler(sess SessionService) *Handler {
	return &Handler{session: sess}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/session", h.Session)
}

func (h *Handler) Logout(c *gin.Context) {
	// The session is cleared even when storage cleanup fails.
	if err := h.session.Logout(c.Request.Context()); err != nil {
		logger.Error("logout storage cleanup failed", map[string]any{
			"error": err.Error(),
			"ip":    c.ClientIP(),
		})
	}

	// Idempotent response
	c.Status(http.StatusNoContent)
}

// Session reports the current session without the token.
func (h *Handler) Session(c *gin.Context) {
	snap := h.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":        snap.Status.String(),
		"authenticated": h.session.IsAuthenticated(c.Request.Context()),
		"loading":       snap.Loading,
		"role":          snap.Role,
		"user":          snap.User,
	})
}

func respondError(c *gin.Context, err error) {
	switch {
	case isValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, api.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, api.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
	case errors.Is(err, api.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": backendMessage(err)})
	case api.StatusOf(err) != 0:
		logger.Warn("backend rejected auth request", map[string]any{"error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend error"})
	default:
		logger.Error("auth request failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		credentials.ErrMissingEmail,
		credentials.ErrInvalidEmail,
		credentials.ErrMissingPassword,
		credentials.ErrPasswordShort,
		credentials.ErrMissingName,
		credentials.ErrInvalidRole,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func backendMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "invalid request"
}
