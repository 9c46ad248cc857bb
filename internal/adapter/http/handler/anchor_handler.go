package handler

import (
	"ergoveritas/internal/adapter/http/dto"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AnchorHandler handles queueing receipts and building batches.
type AnchorHandler struct {
	receiptSvc ports.ReceiptService
	batchSvc   ports.BatchService
}

// NewAnchorHandler creates a new AnchorHandler.
func NewAnchorHandler(receiptSvc ports.ReceiptService, batchSvc ports.BatchService) *AnchorHandler {
	return &AnchorHandler{receiptSvc: receiptSvc, batchSvc: batchSvc}
}

// Queue handles POST /api/v1/anchor/queue.
func (h *AnchorHandler) Queue(c *gin.Context) {
	var req dto.QueueAnchorRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	// Nothing is stored under a malformed id.
	id, err := uuid.Parse(req.ReceiptID)
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Receipt"))
		return
	}

	result, err := h.receiptSvc.QueueForAnchoring(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Build handles POST /api/v1/anchor/build.
func (h *AnchorHandler) Build(c *gin.Context) {
	result, err := h.batchSvc.Build(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
