package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/service"
)

// Response is the envelope for every API reply
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []Error     `json:"errors,omitempty"`
}

// Error describes one problem with a request
type Error struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ListData wraps list results
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
}

func dataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func errorsResponse(c echo.Context, status int, errs ...Error) error {
	return c.JSON(status, Response{
		Status:  status,
		Message: http.StatusText(status),
		Errors:  errs,
	})
}

// statusFor maps domain errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrExperimentNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "ERR_NOT_FOUND"
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrNotRunning):
		return http.StatusConflict, "ERR_INVALID_STATE"
	case errors.Is(err, service.ErrResourceLimit):
		return http.StatusTooManyRequests, "ERR_RESOURCE_LIMIT"
	case errors.Is(err, service.ErrNotInitialized), errors.Is(err, service.ErrShuttingDown):
		return http.StatusServiceUnavailable, "ERR_UNAVAILABLE"
	case errors.Is(err, models.ErrExperimentNameRequired),
		errors.Is(err, models.ErrInvalidExperimentType),
		errors.Is(err, models.ErrInvalidTimeout):
		return http.StatusBadRequest, "ERR_VALIDATION"
	default:
		return http.StatusInternalServerError, "ERR_INTERNAL"
	}
}

func (s *Server) errorResponse(c echo.Context, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
		msg = "Something went wrong"
	}
	return errorsResponse(c, status, Error{Code: code, Message: msg})
}
