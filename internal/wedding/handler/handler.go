// Package handler exposes the wedding list and the active selection over
// HTTP. Mutations go to the backend first and reach the selection store only
// on success.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"planner-agent/internal/api"
	"planner-agent/internal/logger"
	"planner-agent/internal/selection"
	"planner-agent/internal/wedding"
)

// Backend is the wedding half of the backend API.
type Backend interface {
	GetWedding(ctx context.Context, id string) (wedding.Wedding, error)
	CreateWedding(ctx context.Context, w wedding.Wedding) (wedding.Wedding, error)
	UpdateWedding(ctx context.Context, id string, w wedding.Wedding) (wedding.Wedding, error)
	DeleteWedding(ctx context.Context, id string) error
}

// Selection is the selection store as seen by the routes.
type Selection interface {
	Snapshot() selection.State
	Reload(ctx context.Context)
	SelectByID(ctx context.Context, id string) (wedding.Wedding, bool)
	Select(ctx context.Context, w *wedding.Wedding)
	Add(ctx context.Context, w wedding.Wedding)
	Update(ctx context.Context, w wedding.Wedding)
	Remove(ctx context.Context, id string)
}

// Expirer ends a session the backend no longer accepts.
type Expirer interface {
	Expire(ctx context.Context) error
}

type Handler struct {
	backend   Backend
	selection Selection
	session   Expirer
}

func NewHandler(backend Backend, sel Selection, sess Expirer) *Handler {
	return &Handler{backend: backend, selection: sel, session: sess}
}

// RegisterRoutes mounts the wedding routes. The caller applies the guard.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/weddings", h.list)
	r.POST("/weddings/reload", h.reload)
	r.PUT("/weddings/selected", h.selectActive)
	r.DELETE("/weddings/selected", h.clearActive)
	r.POST("/weddings", h.create)
	r.GET("/weddings/:id", h.get)
	r.PUT("/weddings/:id", h.update)
	r.DELETE("/weddings/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, stateBody(h.selection.Snapshot()))
}

func (h *Handler) reload(c *gin.Context) {
	h.selection.Reload(c.Request.Context())

	st := h.selection.Snapshot()
	if st.Err != "" {
		c.JSON(http.StatusBadGateway, stateBody(st))
		return
	}
	c.JSON(http.StatusOK, stateBody(st))
}

type selectRequest struct {
	ID string `json:"id"`
}

func (h *Handler) selectActive(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	w, ok := h.selection.SelectByID(c.Request.Context(), req.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "wedding not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": w})
}

func (h *Handler) clearActive(c *gin.Context) {
	h.selection.Select(c.Request.Context(), nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) get(c *gin.Context) {
	w, err := h.backend.GetWedding(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wedding": w})
}

func (h *Handler) create(c *gin.Context) {
	var req wedding.Wedding
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.backend.CreateWedding(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.selection.Add(c.Request.Context(), created)

	logger.Info("wedding created", map[string]any{"wedding_id": created.ID})
	c.JSON(http.StatusCreated, gin.H{"wedding": created})
}

func (h *Handler) update(c *gin.Context) {
	var req wedding.Wedding
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	updated, err := h.backend.UpdateWedding(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.selection.Update(c.Request.Context(), updated)

	c.JSON(http.StatusOK, gin.H{"wedding": updated})
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("id")
	if err := h.backend.DeleteWedding(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.selection.Remove(c.Request.Context(), id)

	logger.Info("wedding deleted", map[string]any{"wedding_id": id})
	c.Status(http.StatusNoContent)
}

// respondError maps a backend failure to a response. A 401 means the stored
// token is no longer accepted, so the session is ended as well.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrNoToken):
		if xerr := h.session.Expire(c.Request.Context()); xerr != nil {
			logger.Error("expiring session failed", map[string]any{"error": xerr.Error()})
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": "/login"})
	case errors.Is(err, api.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wedding not found"})
	case errors.Is(err, api.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Warn("wedding request failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend error"})
	}
}

func stateBody(st selection.State) gin.H {
	body := gin.H{
		"weddings": st.Weddings,
		"active":   st.Active,
		"loading":  st.Loading,
	}
	if st.Err != "" {
		body["error"] = st.Err
	}
	return body
}
