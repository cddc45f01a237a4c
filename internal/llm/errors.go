package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// StatusError is a non-2xx response from the model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model endpoint status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether err is worth retrying: rate limits, timeouts,
// server-side errors, and network hiccups. Schema/validation errors and
// client-side 4xx are not transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode == http.StatusRequestTimeout:
			return true
		case se.StatusCode >= 500:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// Backoff returns the wait before retry attempt n (0-based), doubling from
// base: base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
