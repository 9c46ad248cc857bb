package handler

import (
	"ergoveritas/internal/adapter/http/dto"
	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles operator login and the admin listings.
type AdminHandler struct {
	adminSvc   ports.AdminService
	disputeSvc ports.DisputeService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc ports.AdminService, disputeSvc ports.DisputeService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc, disputeSvc: disputeSvc}
}

// Login handles POST /api/v1/admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	token, expiry, err := h.adminSvc.Login(c.Request.Context(), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// ListReceipts handles GET /api/v1/admin/receipts.
func (h *AdminHandler) ListReceipts(c *gin.Context) {
	receipts, err := h.adminSvc.ListReceipts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if receipts == nil {
		receipts = []domain.Receipt{}
	}
	response.OK(c, receipts)
}

// ListBatches handles GET /api/v1/admin/batches.
func (h *AdminHandler) ListBatches(c *gin.Context) {
	batches, err := h.adminSvc.ListBatches(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if batches == nil {
		batches = []domain.Batch{}
	}
	response.OK(c, batches)
}

// ListDisputes handles GET /api/v1/admin/disputes.
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	disputes, err := h.disputeSvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if disputes == nil {
		disputes = []domain.Dispute{}
	}
	response.OK(c, disputes)
}

// UpdateDispute handles PATCH /api/v1/admin/disputes/:id.
func (h *AdminHandler) UpdateDispute(c *gin.Context) {
	id, err := pathID(c, "Dispute")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateDisputeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	dispute, err := h.disputeSvc.UpdateStatus(c.Request.Context(), id, domain.DisputeStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DisputeStatusResponse{
		ID:     dispute.ID.String(),
		Status: string(dispute.Status),
	})
}
