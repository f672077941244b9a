package web

// Every handler error goes through respondError: the technical error is
// logged with the request id, and the client gets the mapped user message
// and its code.

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/textconv/internal/core"
	"github.com/JonMunkholm/textconv/internal/logging"
	"github.com/JonMunkholm/textconv/internal/schemafile"
	"github.com/JonMunkholm/textconv/internal/sink"
)

var (
	errNoFile    = errors.New("no file provided")
	errEmptyFile = errors.New("empty file")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// respondError logs err and writes its user message. A status of 0 picks
// one from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)
	requestID := middleware.GetReqID(r.Context())

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:     msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: requestID,
	})
}

// statusFor maps known errors to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errEmptyFile),
		errors.Is(err, schemafile.ErrInvalidSchema), errors.Is(err, core.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, schemafile.ErrSchemaNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyConversions), errors.Is(err, sink.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
