package events

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waas-labs/backend/internal/middleware"
	"github.com/waas-labs/backend/internal/models"
	"github.com/waas-labs/backend/pkg/response"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title        string `json:"title" binding:"required"`
	Place        string `json:"place" binding:"required"`
	Date         string `json:"date" binding:"required"`
	Fee          string `json:"fee"`
	ApprovalMode string `json:"approval_mode" binding:"required,oneof=qr wallet"`
}

// UpdateRequest is the body for PUT /events/:id. The approval mode cannot be
// changed after creation.
type UpdateRequest struct {
	Title string `json:"title" binding:"required"`
	Place string `json:"place" binding:"required"`
	Date  string `json:"date" binding:"required"`
	Fee   string `json:"fee"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /events (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	e := &models.Event{
		Title:        req.Title,
		Place:        req.Place,
		Date:         req.Date,
		Fee:          req.Fee,
		ApprovalMode: models.ApprovalMode(req.ApprovalMode),
		CreatedBy:    userID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to fetch event")
		return
	}
	response.OK(c, e)
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	events, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, events)
}

// ListMine handles GET /me/events (admin).
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	events, err := h.repo.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, events)
}

// Update handles PUT /events/:id (admin, creator only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to fetch event")
		return
	}
	if e.CreatedBy != userID {
		response.Forbidden(c, "only the event creator can update it")
		return
	}

	e.Title = req.Title
	e.Place = req.Place
	e.Date = req.Date
	e.Fee = req.Fee
	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id (admin, creator only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to fetch event")
		return
	}
	if e.CreatedBy != userID {
		response.Forbidden(c, "only the event creator can delete it")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}
