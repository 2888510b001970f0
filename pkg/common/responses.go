package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SuccessResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type ErrorResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// CallbackAck is the body the gateway expects back from a callback delivery.
type CallbackAck struct {
	ResultCode        int    `json:"resultCode"`
	ResultDescription string `json:"resultDescription"`
}

func NewSuccessResponse(data interface{}, message string) SuccessResponse {
	return SuccessResponse{
		Status:  http.StatusOK,
		Success: true,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(message string, data interface{}, status int) ErrorResponse {
	return ErrorResponse{
		Status:  status,
		Success: false,
		Message: message,
		Data:    data,
	}
}

// Accepted acknowledges receipt of a notification. It says nothing about
// whether the payment itself went through.
func Accepted() CallbackAck {
	return CallbackAck{ResultCode: 0, ResultDescription: "Success"}
}

func Rejected(reason string) CallbackAck {
	return CallbackAck{ResultCode: 1, ResultDescription: reason}
}

func RespondOK(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, NewSuccessResponse(data, message))
}

func RespondError(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, NewErrorResponse(message, data, status))
}
