package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"fairplay-backend/internal/apperr"
)

// respondError writes err with the status of its code. Internal errors are
// not described to the client.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)

	message := "Internal server error"
	var appErr *apperr.Error
	if code != apperr.CodeInternal && errors.As(err, &appErr) {
		message = appErr.Message
	}
	if code == apperr.CodeInternal {
		_ = c.Error(err)
	}

	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperr.Wrap(apperr.CodeValidation, "Invalid request", err))
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
