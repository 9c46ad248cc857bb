package handler

import (
	"errors"
	"net/http"

	"ergoveritas/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pathID parses the :id path parameter. Nothing is stored under a
// malformed id, so it is reported as not found.
func pathID(c *gin.Context, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.ErrNotFound(entity)
	}
	return id, nil
}

// bindJSON decodes and validates a JSON body. A body cut off by the
// MaxBodySize middleware is reported as too large rather than malformed.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ErrBodyTooLarge(tooLarge.Limit)
	}
	return apperror.Validation(err.Error())
}
