package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps store and context failures to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(status int) string {
	if status == http.StatusServiceUnavailable {
		return "Graph store unavailable"
	}
	return "Internal server error"
}
