package remote

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

var (
	// ErrNetworkUnavailable means the server could not be reached at all.
	// Callers treat it as "offline", not as a sync failure.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrUnauthorized means the server rejected our credentials. Local auth
	// state has already been cleared when this is returned.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAuthenticated means no token is stored locally.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// isNetworkError reports whether err indicates the server was unreachable,
// as opposed to the server responding with an error.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isNetworkError(urlErr.Err)
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"timeout",
		"eof",
	} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
