package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/hammamikhairi/voicechat/internal/domain"
)

// classifyTransport maps an http.Client.Do error onto the backend failure
// categories in domain.
func classifyTransport(err error) error {
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrBackendTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &dnsErr),
		errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrBackendRequest, err)
	}
}

// httpError keeps a bounded slice of the body for the log.
func httpError(code int, body []byte) error {
	return &domain.HTTPError{StatusCode: code, Body: truncate(string(body), 300)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
