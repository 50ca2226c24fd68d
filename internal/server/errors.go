package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/store"
)

// statusFor maps an error code to the HTTP status the client sees.
// RemoteStore reads the code back from the body, so the status only
// matters to other HTTP clients.
func statusFor(code string) int {
	switch code {
	case amerrors.ErrCodeIndexMissing:
		return http.StatusNotFound
	case amerrors.ErrCodeInvalidInput, amerrors.ErrCodeInvalidQuery, amerrors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case amerrors.ErrCodeIndexLocked:
		return http.StatusConflict
	case amerrors.ErrCodeBackendTimeout:
		return http.StatusGatewayTimeout
	case amerrors.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case amerrors.ErrCodeBackendRejected:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// sendError writes err as a store.ErrorResponse.
func sendError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrClosed) {
		err = amerrors.BackendError("store is closed", err)
	}
	code := amerrors.GetCode(err)
	if code == "" {
		code = amerrors.ErrCodeInternal
	}
	var ae *amerrors.AmanError
	msg := err.Error()
	if errors.As(err, &ae) {
		msg = ae.Message
		if ae.Cause != nil {
			msg += ": " + ae.Cause.Error()
		}
	}
	c.AbortWithStatusJSON(statusFor(code), store.ErrorResponse{Code: code, Message: msg})
}

func sendInvalid(c *gin.Context, msg string, cause error) {
	sendError(c, amerrors.ValidationError(msg, cause))
}
