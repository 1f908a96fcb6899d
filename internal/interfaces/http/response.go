package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/settlement-engine/internal/domain/apperr"
)

// Response is the envelope of every API response
type Response struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// statusFor maps a failure code to its HTTP status
func statusFor(code string) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict, apperr.CodeDuplicatePayroll:
		return http.StatusConflict
	case apperr.CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error envelope. Untyped errors are logged and hidden
// behind a generic message.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	if coded, isCoded := apperr.As(err); isCoded {
		status := statusFor(coded.Code())
		if status >= http.StatusInternalServerError {
			h.logger.Error("Request failed", "operation", op, "code", coded.Code(), "error", err)
		}
		c.JSON(status, Response{
			Success: false,
			Error:   coded.Error(),
			Code:    coded.Code(),
			Details: coded.Details(),
		})
		return
	}

	h.logger.Error("Request failed", "operation", op, "error", err)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal server error",
		Code:    "INTERNAL_ERROR",
	})
}

// badRequest reports a malformed request body or parameter
func badRequest(c *gin.Context, message string, err error) {
	resp := Response{Success: false, Error: message, Code: apperr.CodeValidation}
	if err != nil {
		resp.Details = validationDetails(err)
	}
	c.JSON(http.StatusBadRequest, resp)
}
