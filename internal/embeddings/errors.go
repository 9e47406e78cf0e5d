package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ConfigurationError reports a missing or invalid provider setting. It is
// never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientError wraps a provider failure that may succeed on retry
// (rate limit, timeout, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsConfiguration reports whether err stems from missing configuration.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// classifyHTTP maps a non-2xx response to a typed error.
func classifyHTTP(op string, status int, body string) error {
	err := fmt.Errorf("%s request failed: HTTP %d: %s", op, status, strings.TrimSpace(body))
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return &TransientError{Err: err}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &ConfigurationError{Msg: err.Error()}
	default:
		return err
	}
}

// classifyTransport marks network failures and deadlines as transient.
// Caller cancellation is returned as is.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransientError{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransientError{Err: err}
	}
	return err
}
