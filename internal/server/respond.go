package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// errorBody is the payload of every non-2xx response.
type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Errors    []core.FieldError `json:"errors,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// malformedError is a body that could not be decoded as a request.
type malformedError struct{ err error }

func (e *malformedError) Error() string { return e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func notFound(format string, args ...any) error {
	return core.ErrNotFound(format, args...)
}

// statusFor maps an error onto its HTTP status and payload code.
func statusFor(err error) (int, string) {
	var malformed *malformedError
	if errors.As(err, &malformed) {
		return http.StatusBadRequest, "malformed_request"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "timeout"
	}

	class := core.Classify(err)
	switch class {
	case core.ClassValidation:
		return http.StatusBadRequest, class.String()
	case core.ClassPlanning:
		return http.StatusUnprocessableEntity, class.String()
	case core.ClassNotFound:
		return http.StatusNotFound, class.String()
	case core.ClassAdapter:
		return http.StatusBadGateway, class.String()
	default:
		return http.StatusInternalServerError, class.String()
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := errorBody{
		Code:      code,
		Message:   err.Error(),
		RequestID: chimw.GetReqID(r.Context()),
	}

	var validation *core.ValidationErrors
	if errors.As(err, &validation) {
		body.Errors = validation.Errors
	}
	var adapterErr *core.AdapterError
	if errors.As(err, &adapterErr) {
		body.Retryable = adapterErr.Retryable()
	}
	if status == http.StatusInternalServerError {
		// Internal details stay in the log.
		body.Message = fmt.Sprintf("internal error (request %s)", body.RequestID)
	}
	_ = writeJSON(w, status, body)
}

// writeJSON encodes v before writing the header, so a value that cannot be
// encoded turns into a 500 internal_error body rather than an empty 200.
// The encoding error is returned for logging.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{
			Code:    core.ClassInternal.String(),
			Message: "internal error: response could not be encoded",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// respond writes v and logs a failure to encode it.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.ErrorContext(r.Context(), "response encoding failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()))
	}
}
