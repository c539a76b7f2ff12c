package handlers

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/service"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

// WorkflowHandler exposes the three payment-gated workflows. Live workflows
// are kept by reference so clients can stream phases or cancel a pending
// payment.
type WorkflowHandler struct {
	orchestrator *service.Orchestrator

	mu        sync.Mutex
	workflows map[string]*service.Workflow
}

func NewWorkflowHandler(orchestrator *service.Orchestrator) *WorkflowHandler {
	return &WorkflowHandler{
		orchestrator: orchestrator,
		workflows:    make(map[string]*service.Workflow),
	}
}

// StartVotePurchase handles POST /contestants/vote.
func (h *WorkflowHandler) StartVotePurchase(c *gin.Context) {
	var req struct {
		Contestant string `json:"contestant" binding:"required"`
		Streetfood string `json:"streetfood" binding:"required"`
		Qty        int64  `json:"qty"`
		Email      string `json:"email" binding:"required"`
		Name       string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}

	wf, err := h.orchestrator.StartVotePurchase(c.Request.Context(), service.VotePurchaseRequest{
		ContestantID: req.Contestant,
		ItemID:       req.Streetfood,
		Quantity:     req.Qty,
		Email:        req.Email,
		Name:         req.Name,
	})
	h.respond(c, wf, err)
}

// StartRegistration handles POST /contestants/register.
func (h *WorkflowHandler) StartRegistration(c *gin.Context) {
	var req struct {
		models.RegistrationPayload
		Currency string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	wf, err := h.orchestrator.StartRegistration(c.Request.Context(), service.RegistrationRequest{
		Payload:  req.RegistrationPayload,
		Currency: req.Currency,
	})
	h.respond(c, wf, err)
}

// StartDonation handles POST /donations.
func (h *WorkflowHandler) StartDonation(c *gin.Context) {
	var req models.DonationPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	wf, err := h.orchestrator.StartDonation(c.Request.Context(), service.DonationRequest{DonationPayload: req})
	h.respond(c, wf, err)
}

func (h *WorkflowHandler) respond(c *gin.Context, wf *service.Workflow, err error) {
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Failed to start workflow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start payment"})
		return
	}

	h.mu.Lock()
	h.workflows[wf.Reference()] = wf
	h.mu.Unlock()

	// Drop the handle once terminal; the persisted ledger remains queryable.
	go func() {
		<-wf.Done()
		h.mu.Lock()
		delete(h.workflows, wf.Reference())
		h.mu.Unlock()
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"reference":         wf.Reference(),
		"authorization_url": wf.AuthorizationURL(),
		"phase":             wf.Phase(),
	})
}

// StreamWorkflow handles GET /payments/events/:reference as server-sent
// phase updates, ending with the terminal result.
func (h *WorkflowHandler) StreamWorkflow(c *gin.Context) {
	reference := c.Param("reference")

	h.mu.Lock()
	wf, ok := h.workflows[reference]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live workflow for reference"})
		return
	}

	c.Stream(func(w io.Writer) bool {
		update, open := <-wf.Updates()
		if !open {
			if result := wf.Result(); result != nil {
				c.SSEvent("result", result)
			}
			return false
		}
		c.SSEvent("phase", update)
		return true
	})
}

// CancelWorkflow handles POST /payments/cancel/:reference. Only effective
// while the hosted payment is still pending.
func (h *WorkflowHandler) CancelWorkflow(c *gin.Context) {
	reference := c.Param("reference")

	h.mu.Lock()
	wf, ok := h.workflows[reference]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live workflow for reference"})
		return
	}

	wf.Cancel()
	c.JSON(http.StatusOK, gin.H{"reference": reference, "phase": wf.Phase()})
}
