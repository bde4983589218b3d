package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/service"
)

// errorBody is the structured error object returned for every failure
// mode: always a kind and a human-readable message, never a bare
// transport error.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// kinded is implemented by all domain error types.
type kinded interface {
	error
	Kind() string
}

// writeError maps a domain error onto an HTTP status and structured body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Kind: "INTERNAL", Message: err.Error()}

	var k kinded
	if errors.As(err, &k) {
		body.Kind = k.Kind()
		body.Message = k.Error()
		switch body.Kind {
		case domain.ErrKindNotFound:
			status = http.StatusNotFound
		case domain.ErrKindValidation:
			status = http.StatusBadRequest
		case domain.ErrKindSubmission:
			status = http.StatusBadGateway
		case domain.ErrKindRemoteFailure:
			status = http.StatusBadGateway
		case domain.ErrKindDeadline:
			status = http.StatusGatewayTimeout
		case domain.ErrKindTransientPoll:
			status = http.StatusServiceUnavailable
		}
	} else if errors.Is(err, service.ErrJobNotSucceeded) {
		status = http.StatusConflict
		body.Kind = "JOB_NOT_SUCCEEDED"
		body.Message = err.Error()
	} else if errors.Is(err, service.ErrNotAnImage) {
		status = http.StatusBadRequest
		body.Kind = domain.ErrKindValidation
		body.Message = err.Error()
	}

	c.JSON(status, gin.H{"error": body})
}
