package handler

import (
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
)

// BatchHandler serves built batches.
type BatchHandler struct {
	batchSvc ports.BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batchSvc ports.BatchService) *BatchHandler {
	return &BatchHandler{batchSvc: batchSvc}
}

// Get handles GET /api/v1/batches/:id.
func (h *BatchHandler) Get(c *gin.Context) {
	id, err := pathID(c, "Batch")
	if err != nil {
		response.Error(c, err)
		return
	}

	batch, err := h.batchSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, batch)
}
