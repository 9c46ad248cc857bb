package handler

import (
	"ergoveritas/internal/adapter/http/dto"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
)

// VerifyHandler answers public verification queries.
type VerifyHandler struct {
	verifySvc ports.VerifyService
	signer    ports.Signer
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifySvc ports.VerifyService, signer ports.Signer) *VerifyHandler {
	return &VerifyHandler{verifySvc: verifySvc, signer: signer}
}

// ByHash handles GET /api/v1/verify?hash_algorithm=&hash_value=.
func (h *VerifyHandler) ByHash(c *gin.Context) {
	var q dto.VerifyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.verifySvc.ByHash(c.Request.Context(), q.HashAlgorithm, q.HashValue)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// PublicKey handles GET /api/v1/public-key.
func (h *VerifyHandler) PublicKey(c *gin.Context) {
	info, err := h.signer.PublicKeyInfo()
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, info)
}
