package payments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/payflex/payflex/internal/fraud"
	"github.com/payflex/payflex/internal/gsma"
)

// Handler provides HTTP endpoints for transfers.
type Handler struct {
	orchestrator *Orchestrator
}

// NewHandler creates a new payments handler.
func NewHandler(orchestrator *Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes sets up payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions/send", h.Send)
	r.GET("/transactions/:id", h.GetTransaction)
	r.POST("/transactions/:id/refresh", h.RefreshTransaction)
	r.GET("/users/:did/transactions", h.ListTransactions)
}

// Send handles POST /v1/transactions/send
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "senderDid, recipientAlias, amount, and channel are required",
		})
		return
	}
	if req.SenderDID == "" || req.RecipientAlias == "" || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "senderDid, recipientAlias, amount, and channel are required",
		})
		return
	}
	req.SourceIP = c.ClientIP()

	outcome, err := h.orchestrator.Send(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, fraud.ErrSubjectNotFound):
			status = http.StatusNotFound
			code = "sender_not_found"
		case errors.Is(err, fraud.ErrExternalScoringUnavailable):
			status = http.StatusServiceUnavailable
			code = "scoring_unavailable"
		case errors.Is(err, gsma.ErrProviderUnavailable):
			status = http.StatusServiceUnavailable
			code = "provider_unavailable"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"outcome": outcome})
}

// GetTransaction handles GET /v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrTransactionNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No transaction found for this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// RefreshTransaction handles POST /v1/transactions/:id/refresh
func (h *Handler) RefreshTransaction(c *gin.Context) {
	tx, err := h.orchestrator.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrTransactionNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, gsma.ErrProviderUnavailable):
			status = http.StatusServiceUnavailable
			code = "provider_unavailable"
		case errors.Is(err, gsma.ErrPaymentNotFound):
			status = http.StatusBadGateway
			code = "provider_unknown_payment"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ListTransactions handles GET /v1/users/:did/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	txs, err := h.orchestrator.ListByDID(c.Request.Context(), c.Param("did"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"count":        len(txs),
	})
}
