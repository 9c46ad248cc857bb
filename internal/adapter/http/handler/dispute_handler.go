package handler

import (
	"time"

	"ergoveritas/internal/adapter/http/dto"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DisputeHandler handles public dispute intake.
type DisputeHandler struct {
	disputeSvc ports.DisputeService
}

// NewDisputeHandler creates a new DisputeHandler.
func NewDisputeHandler(disputeSvc ports.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeSvc: disputeSvc}
}

// Create handles POST /api/v1/disputes.
func (h *DisputeHandler) Create(c *gin.Context) {
	var req dto.CreateDisputeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	receiptID, err := uuid.Parse(req.ReceiptID)
	if err != nil {
		response.Error(c, apperror.Validation("receipt_id must be a UUID"))
		return
	}
	// Only free text is escaped; the email and URLs were validated as-is.
	reason := dto.Sanitize(req.Reason)
	var details *string
	if req.Details != nil {
		d := dto.Sanitize(*req.Details)
		details = &d
	}

	dispute, err := h.disputeSvc.Create(c.Request.Context(), ports.CreateDisputeRequest{
		ReceiptID:    receiptID,
		Reason:       reason,
		Details:      details,
		ContactEmail: req.ContactEmail,
		EvidenceURLs: req.EvidenceURLs,
		WantsIDV:     req.WantsIDV,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DisputeCreatedResponse{
		ID:        dispute.ID.String(),
		ReceiptID: dispute.ReceiptID.String(),
		Status:    string(dispute.Status),
		CreatedAt: dispute.CreatedAt.UTC().Format(time.RFC3339),
	})
}
