package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Category groups backend failures by how callers should react to them.
type Category string

const (
	CategoryNetwork      Category = "network"
	CategoryTimeout      Category = "timeout"
	CategoryValidation   Category = "validation"
	CategoryUnauthorized Category = "unauthorized"
	CategoryForbidden    Category = "forbidden"
	CategoryNotFound     Category = "not_found"
	CategoryConflict     Category = "conflict"
	CategoryRateLimited  Category = "rate_limited"
	CategoryServer       Category = "server"
	CategoryUnknown      Category = "unknown"
)

// Classify maps an HTTP status to its Category.
func Classify(status int) Category {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return CategoryValidation
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusForbidden:
		return CategoryForbidden
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusConflict:
		return CategoryConflict
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return CategoryServer
	default:
		return CategoryUnknown
	}
}

// APIError describes a failed backend call after retries were exhausted or skipped.
type APIError struct {
	Method      string
	Path        string
	Status      int // 0 when no response was received
	Category    Category
	Message     string
	Code        string
	FieldErrors map[string]string
	Attempts    int
	Err         error

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend %s %s", e.Method, e.Path)
	if e.Status > 0 {
		fmt.Fprintf(&b, ": %d", e.Status)
	}
	fmt.Fprintf(&b, " (%s)", e.Category)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err belongs to a category that is worth retrying.
func IsRetryable(err error) bool {
	switch CategoryOf(err) {
	case CategoryNetwork, CategoryTimeout, CategoryServer, CategoryRateLimited:
		return true
	default:
		return false
	}
}

// CategoryOf returns the category of err, or CategoryUnknown if it is not an *APIError.
func CategoryOf(err error) Category {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	return CategoryUnknown
}

// StatusOf returns the backend HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// shouldRetry applies the method-aware retry policy. POST and PATCH are only
// replayed when the backend signals the request was not processed.
func shouldRetry(method string, err *APIError) bool {
	if err == nil {
		return false
	}
	switch method {
	case http.MethodPost, http.MethodPatch:
		return err.Status == http.StatusTooManyRequests || err.Status == http.StatusServiceUnavailable
	}
	switch err.Category {
	case CategoryNetwork, CategoryTimeout, CategoryServer, CategoryRateLimited:
		return true
	}
	return false
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
