package api

import (
	"errors"
	"net/http"

	"github.com/okian/pausemap/internal/adapters/repository"
	service "github.com/okian/pausemap/internal/app"
	"github.com/okian/pausemap/internal/domain/frame"
)

// Sentinel kinds for API errors.
var (
	ErrServe      = errors.New("http serve failed")
	ErrBadRequest = errors.New("bad request")
)

const (
	codeBadRequest       = "bad_request"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeConflict         = "conflict"
	codeUnprocessable    = "schema_error"
	codeUnavailable      = "unavailable"
	codeInternal         = "internal"
)

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict, codeConflict
	case errors.Is(err, frame.ErrSchema):
		return http.StatusUnprocessableEntity, codeUnprocessable
	case errors.Is(err, service.ErrNotConfigured):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
