package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in error bodies.
const (
	CodeBadRequest           = "bad_request"
	CodeForbidden            = "forbidden"
	CodeUnknownSatellite     = "unknown_satellite"
	CodeSatelliteUnavailable = "satellite_unavailable"
	CodeNoData               = "no_data"
	CodeInternal             = "internal"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
