package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrNoPendingTurn  = errors.New("no pending turn")
	ErrTurnMismatch   = errors.New("turn id does not match pending turn")
	ErrTurnOutOfOrder = errors.New("turn phases called out of order")
	ErrTurnInFlight   = errors.New("a turn is already in flight")
	ErrNotListening   = errors.New("not listening")
)

// Reply-backend failure categories. Producers wrap one of these (or return
// an *HTTPError / *BackendError) so callers can pick a degraded reply with
// errors.Is / errors.As instead of string matching.
var (
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrBackendTimeout     = errors.New("backend timed out")
	ErrBackendRequest     = errors.New("backend request failed")
	ErrMalformedResponse  = errors.New("backend response is not valid JSON")
	ErrUnexpectedSchema   = errors.New("backend response has unexpected shape")
)

// HTTPError is returned when the backend answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend http %d: %s", e.StatusCode, e.Body)
}

// BackendError carries an error message reported by the backend itself
// inside an otherwise well-formed response (e.g. a missing model).
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return "backend error: " + e.Message
}
