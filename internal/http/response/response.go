// Package response gives every handler one JSON envelope for success and
// failure, translating an *apierr.Error's status hint into the HTTP
// response without handlers importing net/http status codes directly.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenmind/memoryengine/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	status := http.StatusInternalServerError
	code := "internal"
	if errors.As(err, &apiErr) && apiErr != nil {
		if apiErr.Status != 0 {
			status = apiErr.Status
		}
		if apiErr.Code != "" {
			code = apiErr.Code
		}
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error:     APIError{Message: msg, Code: code},
		RequestID: c.GetString("request_id"),
	})
}
