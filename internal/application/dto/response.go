// Package dto holds the JSON shapes of the HTTP API.
package dto

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO describes a failed request.
type ErrorDTO struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Description string            `json:"description,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// SuccessResponse wraps data in the envelope.
func SuccessResponse(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse converts err into the envelope. Errors that are not
// *errors.AppError, and every server-side failure, are reported without
// their cause.
func ErrorResponse(err error, requestID string) *APIResponse {
	var errorDTO *ErrorDTO
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		errorDTO = &ErrorDTO{
			Code:        appErr.Code,
			Message:     appErr.Message,
			Description: appErr.Description,
			Details:     appErr.Details,
		}
	} else if appErr != nil {
		errorDTO = &ErrorDTO{Code: appErr.Code, Message: appErr.Message}
	} else {
		errorDTO = &ErrorDTO{Code: errors.ErrCodeInternal, Message: "Internal server error"}
	}

	return &APIResponse{
		Success:   false,
		Error:     errorDTO,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// SendSuccess writes data with status.
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse(data, c.GetString(constants.GinKeyRequestID)))
}

// SendError writes err with the status it maps to and aborts the chain.
func SendError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.HTTPStatusOf(err), ErrorResponse(err, c.GetString(constants.GinKeyRequestID)))
}
