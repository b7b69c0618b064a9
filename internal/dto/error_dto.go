package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the REST error envelope. The websocket surface has its
// own error event; this shape is only for the profile and admin endpoints.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func JsonError(c *gin.Context, status int, message ...string) {
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}

	c.JSON(status, ErrorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: msg,
	})
}
