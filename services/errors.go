package services

import (
	"context"
	"errors"
	"strings"
)

// categorizeAPIError maps an external call failure to a metrics label.
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, ErrBreakerOpen) {
		return "circuit_open"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "timeout", "deadline"):
		return "timeout"
	case containsAny(errStr, "rate limit", "429", "call frequency"):
		return "rate_limit"
	case containsAny(errStr, "unauthorized", "401", "403", "invalid api"):
		return "auth_error"
	case containsAny(errStr, "circuit breaker"):
		return "circuit_open"
	case containsAny(errStr, "connection", "network"):
		return "connection_error"
	default:
		return "unknown"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
