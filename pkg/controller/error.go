// Package controller maps handler outcomes to HTTP responses.
package controller

import (
	"errors"
	"net/http"

	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/store"
)

// MessageItemNotFound is the body message of a 404 for an unknown item.
const MessageItemNotFound = "Item not found"

// ErrorResponse is the JSON body of every non-2xx answer.
// Exactly one of Error or Message is set.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// BadRequestError is a request the handler refused before calling the store.
type BadRequestError struct {
	Reason string
	Err    error
}

func (e *BadRequestError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// NewBadRequestError wraps cause with a client-facing reason.
func NewBadRequestError(reason string, cause error) *BadRequestError {
	return &BadRequestError{Reason: reason, Err: cause}
}

// MapError maps an error to a status and body.
//   - store.ErrNotFound: 404 {"message":"Item not found"}
//   - router.ErrUnsupportedMediaType: 415
//   - store rejections, local validation and bad requests: 400 with err.Error()
//   - anything else: 500 with a generic message
//
// The boolean reports whether the error is a server fault worth logging.
func MapError(err error) (int, ErrorResponse, bool) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Message: MessageItemNotFound}, false
	case errors.Is(err, router.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, ErrorResponse{Error: err.Error()}, false
	case store.IsClientError(err), store.IsValidationError(err), isBadRequest(err):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}, false
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}, true
	}
}

func isBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}
