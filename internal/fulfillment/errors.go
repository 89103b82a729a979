package fulfillment

import (
	"context"
	"errors"
	"net"
	"syscall"
)

var errNoGrants = errors.New("no download grants could be generated")

// isTransient flags infrastructure failures that a wholesale retry of the
// webhook delivery can fix: timeouts, resets, unreachable dependencies.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
