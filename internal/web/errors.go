package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
)

// ErrorResponse is the JSON body of every error reply. Code is stable and
// listed in package core; Message and Action are for people.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	RunID   string `json:"runId,omitempty"`
}

// respondError logs err with the request id and replies with its user
// message. The technical text never reaches the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondRunError(w, r, err, "")
}

func (s *Server) respondRunError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	msg := core.MapError(err)
	status := statusFor(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	})
}

// statusFor picks the HTTP status for err. Typed errors are checked before
// the generic ScannerError wrapper that carries most of them.
func statusFor(err error) int {
	var (
		he  *tableschema.HeaderError
		re  *tableschema.ReadError
		se  *tableschema.SchemaError
		sre *validator.SchemaResolutionError
		sc  *validator.ScannerError
	)
	switch {
	case errors.Is(err, validator.ErrUnsupportedResourceType):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge), errors.Is(err, tableschema.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, tableschema.ErrForbiddenAddress):
		return http.StatusBadRequest
	case errors.Is(err, validator.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyValidations):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrHistoryDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &se), errors.As(err, &sre), errors.Is(err, resources.ErrNoSchema):
		return http.StatusInternalServerError
	case errors.As(err, &he), errors.As(err, &re), errors.As(err, &sc):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
