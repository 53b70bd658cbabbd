package model

import (
	"errors"
	"strconv"
	"strings"
)

// StatusError is the error shape provider adapters wrap HTTP-level
// failures in, so Classify can inspect the status code without each
// adapter reimplementing the retryable/permanent distinction.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string { return e.Message }

var retryableStatus = map[int]bool{
	408: true, 409: true, 425: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

var retryableSubstrings = []string{
	"rate-limit", "rate limit", "timeout", "connection",
	"overloaded", "unavailable", "quota-exhausted", "quota exhausted",
}

// Classify implements the transient-failure classification from spec
// §4.2: an error is retryable iff its HTTP status (when the provider
// surfaces one via StatusError) is 408, 409, 425, 429, 500, 502, 503 or
// 504, its message contains one of the known transient-condition
// substrings, or its message contains one of those status codes as a
// standalone three-digit number (see parseStatusFromMessage).
// Everything else is permanent — it still advances the step's
// model-failover loop to the next candidate, but is not retried against
// the same candidate.
func Classify(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if retryableStatus[statusErr.StatusCode] {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, token := range retryableSubstrings {
		if strings.Contains(msg, token) {
			return true
		}
	}
	if _, ok := parseStatusFromMessage(msg); ok {
		return true
	}
	return false
}

// Attempt records one candidate's outcome during a step's model-failover
// loop, preserved in step metadata whether or not the attempt
// eventually succeeded.
type Attempt struct {
	Model     string
	Error     string
	Retryable bool
}

// parseStatusFromMessage is a best-effort fallback for adapters that
// surface the HTTP status only as part of an error string (e.g.
// "anthropic API error: ... 429 ..."), used when the adapter could not
// be made to return a *StatusError directly.
func parseStatusFromMessage(msg string) (int, bool) {
	fields := strings.FieldsFunc(msg, func(r rune) bool {
		return r < '0' || r > '9'
	})
	for _, f := range fields {
		if len(f) != 3 {
			continue
		}
		n, err := strconv.Atoi(f)
		if err == nil && retryableStatus[n] {
			return n, true
		}
	}
	return 0, false
}
