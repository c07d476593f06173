package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/storage"
	"github.com/samcharles93/caaf/pkg/caaf"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string { return e.msg }
func (e invalidRequestError) Unwrap() error { return ErrInvalidRequest }

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps a loader error to an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, loader.ErrNotLoaded):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, storage.ErrNotReady):
		return http.StatusServiceUnavailable, "storage_unavailable_error"
	case errors.Is(err, loader.ErrDependencyCycle), errors.Is(err, loader.ErrExists):
		return http.StatusConflict, "conflict_error"
	case errors.Is(err, caaf.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "container_too_large_error"
	case errors.Is(err, caaf.ErrNotContainer),
		errors.Is(err, caaf.ErrCorrupt),
		errors.Is(err, caaf.ErrMissingStringTable),
		errors.Is(err, caaf.ErrDuplicateStringTable),
		errors.Is(err, caaf.ErrCountMismatch),
		errors.Is(err, caaf.ErrDecompress):
		return http.StatusUnprocessableEntity, "invalid_container_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func writeError(c *echo.Context, err error) error {
	status, errType := classify(err)
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Message: err.Error(), Type: errType},
	})
}
