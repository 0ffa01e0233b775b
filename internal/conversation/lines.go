package conversation

import (
	"errors"
	"fmt"

	"github.com/hammamikhairi/voicechat/internal/domain"
)

// Placeholder replies shown (never spoken) when a turn degrades.
const (
	LineNoSpeech        = "(no speech detected)"
	LineUnreachable     = "(Couldn't reach backend — is it running?)"
	LineTimeout         = "(Backend timed out — try again.)"
	LineRequestFailed   = "(Backend request failed — see logs for details.)"
	LineUnreadable      = "(Backend returned an unreadable response.)"
	LineBackendReported = "(Backend error — see logs for details.)"
	LineError           = "(error)"
)

// LineHTTPStatus is the placeholder for a non-2xx backend answer.
func LineHTTPStatus(code int) string {
	return fmt.Sprintf("(Backend returned HTTP %d.)", code)
}

// replyPlaceholder picks the degraded reply for a Replier failure.
func replyPlaceholder(err error) string {
	var httpErr *domain.HTTPError
	var backendErr *domain.BackendError

	switch {
	case errors.Is(err, domain.ErrBackendUnreachable):
		return LineUnreachable
	case errors.Is(err, domain.ErrBackendTimeout):
		return LineTimeout
	case errors.Is(err, domain.ErrBackendRequest):
		return LineRequestFailed
	case errors.As(err, &httpErr):
		return LineHTTPStatus(httpErr.StatusCode)
	case errors.Is(err, domain.ErrMalformedResponse):
		return LineUnreadable
	case errors.As(err, &backendErr):
		return LineBackendReported
	default:
		// ErrUnexpectedSchema and anything unclassified.
		return LineError
	}
}
