package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/payment"
	"github.com/streetgottalent/vote-payments/internal/service"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

type PaymentHandler struct {
	orchestrator *service.Orchestrator
	initiator    *payment.Initiator
	ledger       interfaces.PaymentLedger
}

func NewPaymentHandler(orchestrator *service.Orchestrator, initiator *payment.Initiator, ledger interfaces.PaymentLedger) *PaymentHandler {
	return &PaymentHandler{
		orchestrator: orchestrator,
		initiator:    initiator,
		ledger:       ledger,
	}
}

type verifyRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// VerifyPayment is the manual verify-and-apply path. Clients may call it
// straight after the widget reports success, or again later to recover a
// payment whose effect has not landed; every call for one reference converges
// on the same outcome. The reference is the only client input that matters.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.orchestrator.CompletePayment(c.Request.Context(), req.Reference)
	if errors.Is(err, service.ErrLockBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "verification already in progress"})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Verification failed",
			zap.String("reference", req.Reference),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "verification temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Phase == models.PhaseDone,
		"message": result.Reason,
		"result":  result,
	})
}

type callbackRequest struct {
	Reference string `json:"reference" binding:"required"`
	Event     string `json:"event" binding:"required"`
	Reason    string `json:"reason"`
}

// ProviderCallback receives the widget's success or cancel signal. It only
// nudges the pending attempt; it proves nothing. Duplicate deliveries are
// no-ops.
func (h *PaymentHandler) ProviderCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	succeeded := req.Event == "success"
	reason := req.Reason
	if !succeeded && reason == "" {
		reason = "payment cancelled"
	}

	if resolved := h.initiator.Resolve(req.Reference, succeeded, reason); !resolved {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reference": req.Reference})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "reference": req.Reference})
}

// GetPaymentState reports the persisted workflow phase for a reference.
func (h *PaymentHandler) GetPaymentState(c *gin.Context) {
	reference := c.Param("reference")

	rec, err := h.ledger.GetByReference(c.Request.Context(), reference)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference":      rec.Reference,
		"purpose":        rec.Purpose,
		"phase":          rec.Phase,
		"previous_phase": rec.PreviousPhase,
		"amount":         rec.Amount,
		"currency":       rec.Currency,
		"created_at":     rec.CreatedAt,
		"updated_at":     rec.UpdatedAt,
	})
}

// GetPaymentHistory is admin-only; the router attaches the credential check.
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	records, err := h.ledger.History(c.Request.Context(), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payment history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": records})
}
