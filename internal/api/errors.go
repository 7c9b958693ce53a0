package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"change-risk/backend/internal/engine"
	"change-risk/backend/internal/services"
)

// problemFor maps a service error to an HTTP status and title.
func problemFor(err error) (int, string) {
	var (
		validation *engine.ValidationError
		terminal   *engine.TerminalStateError
		evalErr    *engine.EvaluatorError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "Invalid change request"
	case errors.As(err, &terminal):
		return http.StatusConflict, "Assessment already complete"
	case errors.Is(err, engine.ErrStaleState):
		return http.StatusConflict, "Stale assessment state"
	case errors.Is(err, engine.ErrSessionReset):
		return http.StatusConflict, "Assessment was reset"
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, engine.ErrNoSubmission):
		return http.StatusNotFound, "Assessment not found"
	case errors.As(err, &evalErr):
		return http.StatusBadGateway, "Stage evaluation failed"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// ErrorHandler renders every error returned by a handler as RFC 7807
// problem details.
func ErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var status int
		var title, detail string
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			title = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = title
			}
		} else {
			status, title = problemFor(err)
			detail = err.Error()
		}

		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		}
		writeError(c.Response(), status, title, detail, c.Request().URL.Path)
	}
}
