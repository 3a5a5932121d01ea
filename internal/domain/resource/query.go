package resource

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/validation"
)

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	maxSearchLength = 200
)

// ParseListQuery keeps only the list parameters the backend understands:
// page, limit, search, studentId and status. Everything else is dropped so
// callers cannot reach backend filters the gateway does not expose. When
// statuses is non-empty, status must be one of them.
func ParseListQuery(values url.Values, statuses ...string) (url.Values, error) {
	out := url.Values{}
	errs := validation.FieldErrors{}

	page := 1
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs["page"] = "must be a positive integer"
		} else {
			page = n
		}
	}
	out.Set("page", strconv.Itoa(page))

	limit := DefaultLimit
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			errs["limit"] = "must be between 1 and " + strconv.Itoa(MaxLimit)
		} else {
			limit = n
		}
	}
	out.Set("limit", strconv.Itoa(limit))

	if search := strings.TrimSpace(values.Get("search")); search != "" {
		if utf8.RuneCountInString(search) > maxSearchLength {
			errs["search"] = "must be at most " + strconv.Itoa(maxSearchLength) + " characters"
		} else {
			out.Set("search", search)
		}
	}

	if studentID := strings.TrimSpace(values.Get("studentId")); studentID != "" {
		if !ids.IsUUID(studentID) {
			errs["studentId"] = "must be a valid UUID"
		} else {
			out.Set("studentId", studentID)
		}
	}

	if status := strings.ToUpper(strings.TrimSpace(values.Get("status"))); status != "" {
		if len(statuses) > 0 && !slices.Contains(statuses, status) {
			errs["status"] = "must be one of: " + strings.Join(statuses, ", ")
		} else {
			out.Set("status", status)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}
