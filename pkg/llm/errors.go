package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorClass groups provider failures by what a caller can do about them.
type ErrorClass string

const (
	ClassRate          ErrorClass = "rate"
	ClassTransient     ErrorClass = "transient"
	ClassQuota         ErrorClass = "quota"
	ClassAuth          ErrorClass = "auth"
	ClassContextLength ErrorClass = "context_length"
	ClassCanceled      ErrorClass = "canceled"
	ClassPermanent     ErrorClass = "permanent"
)

// APIError is a provider failure with its HTTP status, when there is one.
type APIError struct {
	Provider   string
	StatusCode int
	Class      ErrorClass
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d (%s): %v", e.Provider, e.StatusCode, e.Class, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Class, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
func (e *APIError) Transient() bool {
	return e.Class == ClassRate || e.Class == ClassTransient
}

// newAPIError classifies err from the given status code and message.
func newAPIError(provider string, status int, err error) *APIError {
	class := classifyStatus(status)
	if class == "" {
		class = Classify(err)
	} else if class == ClassRate && isQuotaMessage(err.Error()) {
		class = ClassQuota
	}
	return &APIError{Provider: provider, StatusCode: status, Class: class, Err: err}
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == 0:
		return ""
	case status == http.StatusTooManyRequests:
		return ClassRate
	case status == http.StatusRequestTimeout, status == http.StatusConflict, status >= 500:
		return ClassTransient
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ClassAuth
	case status == http.StatusRequestEntityTooLarge:
		return ClassContextLength
	default:
		return ClassPermanent
	}
}

// Classify inspects err for a provider status, context and network
// conditions, and falls back to matching well-known phrases in the message.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Class != "" {
		return apiErr.Class
	}

	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isQuotaMessage(msg):
		return ClassQuota
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"), strings.Contains(msg, "429"):
		return ClassRate
	case strings.Contains(msg, "context length"), strings.Contains(msg, "context_length"), strings.Contains(msg, "too long"):
		return ClassContextLength
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"),
		strings.Contains(msg, "temporarily"), strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "unexpected eof"):
		return ClassTransient
	default:
		return ClassPermanent
	}
}

func isQuotaMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota") || strings.Contains(msg, "credit balance")
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	switch Classify(err) {
	case ClassRate, ClassTransient:
		return true
	default:
		return false
	}
}
