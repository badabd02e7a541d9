package registrations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waas-labs/backend/internal/auth"
	"github.com/waas-labs/backend/internal/credential"
	"github.com/waas-labs/backend/internal/events"
	"github.com/waas-labs/backend/internal/middleware"
	"github.com/waas-labs/backend/internal/models"
	"github.com/waas-labs/backend/pkg/response"
)

// SubmitRequest is the body for POST /events/:id/registrations.
type SubmitRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Email         string `json:"email" binding:"omitempty,email"`
}

// DecisionRequest is the body for approve/reject.
type DecisionRequest struct {
	Message string `json:"message"`
}

// CancelRequest is the body for POST /registrations/:id/cancel.
type CancelRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Reason        string `json:"reason"`
}

// RevokeRequest is the body for POST /registrations/:id/revoke (admin).
type RevokeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// VerifyRequest is the body for POST /registrations/:id/verify. The caller
// reports the transaction in which the on-chain verifier accepted its proof.
type VerifyRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	TxHash        string `json:"tx_hash" binding:"required"`
	BlockNumber   int64  `json:"block_number" binding:"required"`
}

// VerifyQRRequest is the body for POST /events/:id/verify-qr. Scanners may
// present either the bare token or the full JSON payload read from the code.
type VerifyQRRequest struct {
	Token   string `json:"token"`
	Payload string `json:"payload"`
}

// ApproveResponse wraps the registration with the degraded-issuance flag.
type ApproveResponse struct {
	Registration *models.Registration `json:"registration"`
	ProofError   string               `json:"proof_error,omitempty"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	repo   *Repository
	users  *auth.Repository
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, repo *Repository, users *auth.Repository, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, repo: repo, users: users, logger: logger}
}

// Submit handles POST /events/:id/registrations (public).
func (h *Handler) Submit(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Submit(c.Request.Context(), eventID, req.WalletAddress, req.Email)
	if errors.Is(err, events.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if errors.Is(err, ErrDuplicate) {
		response.Conflict(c, "wallet already registered for this event")
		return
	}
	if err != nil {
		response.Internal(c, "failed to create registration")
		return
	}
	response.Created(c, reg)
}

// ListByEvent handles GET /events/:id/registrations (admin).
// ?status=pending narrows to the approval queue.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var (
		list    []*models.Registration
		listErr error
	)
	if c.Query("status") == "pending" {
		list, listErr = h.repo.ListPendingByEvent(c.Request.Context(), eventID)
	} else {
		list, listErr = h.repo.ListByEvent(c.Request.Context(), eventID)
	}
	if listErr != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ListByWallet handles GET /wallets/:address/registrations (public).
func (h *Handler) ListByWallet(c *gin.Context) {
	list, err := h.repo.ListByWallet(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to fetch registration")
		return
	}
	response.OK(c, reg)
}

// Approve handles POST /registrations/:id/approve (admin). A proof oracle
// failure still approves; the response carries proof_error so the admin
// knows the credential is pending a retry.
func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	admin, err := h.adminUser(c)
	if err != nil {
		response.Internal(c, "failed to resolve admin user")
		return
	}

	out, err := h.svc.Approve(c.Request.Context(), id, admin, req.Message)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	resp := ApproveResponse{Registration: out.Registration}
	if out.ProofErr != nil {
		resp.ProofError = out.ProofErr.Error()
	}
	response.OK(c, resp)
}

// Reject handles POST /registrations/:id/reject (admin).
func (h *Handler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Reject(c.Request.Context(), id, req.Message)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.OK(c, reg)
}

// Cancel handles POST /registrations/:id/cancel (registrant).
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Cancel(c.Request.Context(), id, req.WalletAddress, req.Reason)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.OK(c, reg)
}

// Revoke handles POST /registrations/:id/revoke (admin).
func (h *Handler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Revoke(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.OK(c, reg)
}

// RecordVerification handles POST /registrations/:id/verify (registrant).
func (h *Handler) RecordVerification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.RecordExternalVerification(c.Request.Context(), id, req.WalletAddress, req.TxHash, req.BlockNumber)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.OK(c, reg)
}

// RetryProof handles POST /registrations/:id/retry-proof (admin).
func (h *Handler) RetryProof(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	admin, err := h.adminUser(c)
	if err != nil {
		response.Internal(c, "failed to resolve admin user")
		return
	}
	reg, err := h.svc.RetryProof(c.Request.Context(), id, admin)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.OK(c, reg)
}

// VerifyQR handles POST /events/:id/verify-qr (admin or staff).
func (h *Handler) VerifyQR(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req VerifyQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	token := req.Token
	if token == "" && req.Payload != "" {
		payload, err := credential.ParsePayload(req.Payload)
		if err != nil {
			response.BadRequest(c, "unreadable qr payload")
			return
		}
		token = payload.Token
	}
	if token == "" {
		response.BadRequest(c, "token or payload required")
		return
	}

	reg, event, err := h.svc.VerifyQR(c.Request.Context(), token, eventID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "no valid credential for this token")
		return
	}
	if err != nil {
		response.Internal(c, "failed to verify token")
		return
	}
	response.OK(c, gin.H{
		"valid":          true,
		"wallet_address": reg.WalletAddress,
		"event_title":    event.Title,
		"registration":   reg,
	})
}

func (h *Handler) adminUser(c *gin.Context) (*models.User, error) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	return h.users.GetByID(c.Request.Context(), userID)
}

// writeLifecycleError maps service sentinels onto HTTP statuses.
func (h *Handler) writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "registration not found")
	case errors.Is(err, events.ErrNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrInvalidState):
		response.Conflict(c, "registration is not in a valid state for this action")
	case errors.Is(err, ErrUnauthorized):
		response.Forbidden(c, "wallet does not own this registration")
	default:
		h.logger.Error("registration operation failed", zap.Error(err))
		response.Internal(c, "operation failed")
	}
}
