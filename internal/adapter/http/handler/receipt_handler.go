package handler

import (
	"ergoveritas/internal/adapter/http/dto"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReceiptHandler handles receipt issuance and lookup.
type ReceiptHandler struct {
	receiptSvc ports.ReceiptService
	batchSvc   ports.BatchService
}

// NewReceiptHandler creates a new ReceiptHandler.
func NewReceiptHandler(receiptSvc ports.ReceiptService, batchSvc ports.BatchService) *ReceiptHandler {
	return &ReceiptHandler{receiptSvc: receiptSvc, batchSvc: batchSvc}
}

// Create handles POST /api/v1/receipts.
func (h *ReceiptHandler) Create(c *gin.Context) {
	var req dto.CreateReceiptRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	bundle, err := h.receiptSvc.Create(c.Request.Context(), ports.CreateReceiptRequest{
		HashAlgorithm: req.HashAlgorithm,
		HashValue:     req.HashValue,
		Visibility:    req.Visibility,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bundle)
}

// Get handles GET /api/v1/receipts/:id.
func (h *ReceiptHandler) Get(c *gin.Context) {
	id, err := pathID(c, "Receipt")
	if err != nil {
		response.Error(c, err)
		return
	}

	bundle, err := h.receiptSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, bundle)
}

// Proof handles GET /api/v1/receipts/:id/proof.
func (h *ReceiptHandler) Proof(c *gin.Context) {
	id, err := pathID(c, "Receipt")
	if err != nil {
		response.Error(c, err)
		return
	}

	proof, err := h.batchSvc.ReceiptProof(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, proof)
}
