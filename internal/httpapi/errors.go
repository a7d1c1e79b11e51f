package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fpang/sagemaker-vision/internal/service"
	"github.com/fpang/sagemaker-vision/internal/vision"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	}

	kind, ok := vision.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case vision.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case vision.KindUnknownCamera:
		return http.StatusNotFound
	case vision.KindInvalidArgument:
		return http.StatusBadRequest
	case vision.KindEndpointInvocation, vision.KindMalformedResponse:
		return http.StatusBadGateway
	case vision.KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// codeFor returns the machine-readable error code for err.
func codeFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, service.ErrClosed):
		return "closed"
	}
	if kind, ok := vision.KindOf(err); ok {
		return kind.String()
	}
	return "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), ErrorResponse{Error: err.Error(), Code: codeFor(err)})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: vision.KindInvalidArgument.String()})
}
