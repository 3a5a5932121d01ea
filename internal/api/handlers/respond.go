package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/whitecross/gateway/internal/api/problem"
	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/validation"
)

// envelope is the response shape the frontend already consumes from the
// backend, so the gateway is a drop-in in front of it.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData wraps v as {"success":true,"data":{key: v}}.
func writeData(w http.ResponseWriter, status int, key string, v any) {
	writeJSON(w, status, envelope{Success: true, Data: map[string]any{key: v}})
}

func writeList[T any](w http.ResponseWriter, key string, page resource.Page[T]) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		key:          page.Items,
		"pagination": page.Pagination,
	}})
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

// idParam returns the {id} path value, rejecting malformed IDs before any
// body is read.
func idParam(r *http.Request) (string, error) {
	id := pathParam(r, "id")
	if err := ids.ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}

// decodeBody reads and validates a JSON body into v. An empty body is
// accepted when optional is set, leaving v at its zero value (still
// validated so required fields are reported).
func decodeBody(r *http.Request, maxBytes int64, v any, optional bool) error {
	if optional && (r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0) {
		if n, ok := v.(validation.Normalizer); ok {
			n.Normalize()
		}
		return validation.Validate(v)
	}
	return validation.DecodeAndValidate(r, maxBytes, v)
}

// writeError maps domain, validation and backend errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var fieldErrs validation.FieldErrors
	var apiErr *apiclient.APIError

	switch {
	case errors.As(err, &fieldErrs):
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeValidation, "Validation failed", err, env,
			problem.WithFieldErrors(fieldErrs))
	case errors.Is(err, ids.ErrInvalidID):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeBadRequest, "Invalid identifier", err, env)
	case errors.Is(err, validation.ErrBodyTooLarge):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Request body too large", err, env)
	case errors.Is(err, resource.ErrConflict):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env, problem.WithDetail(conflictDetail(err)))
	case errors.As(err, &apiErr):
		writeBackendError(w, r, apiErr, env)
	case errors.Is(err, context.Canceled):
		// client went away
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeBackendUnavailable, "Request cancelled", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}

func writeBackendError(w http.ResponseWriter, r *http.Request, apiErr *apiclient.APIError, env string) {
	switch apiErr.Category {
	case apiclient.CategoryValidation:
		if len(apiErr.FieldErrors) > 0 {
			problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeValidation, "Validation failed", apiErr, env,
				problem.WithFieldErrors(apiErr.FieldErrors))
			return
		}
		status := http.StatusBadRequest
		if apiErr.Status == http.StatusUnprocessableEntity {
			status = http.StatusUnprocessableEntity
		}
		problem.Write(w, r, status, problem.TypeValidation, "Invalid request", apiErr, env)
	case apiclient.CategoryUnauthorized:
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", apiErr, env)
	case apiclient.CategoryForbidden:
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", apiErr, env)
	case apiclient.CategoryNotFound:
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", apiErr, env)
	case apiclient.CategoryConflict:
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", apiErr, env)
	case apiclient.CategoryRateLimited:
		problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Backend is rate limiting requests", apiErr, env)
	default:
		problem.Write(w, r, http.StatusBadGateway, problem.TypeBackendUnavailable, "Backend unavailable", apiErr, env)
	}
}

// conflictDetail strips the generic sentinel text from local rule
// violations; the remaining message names the rule and is safe to show.
func conflictDetail(err error) string {
	msg := err.Error()
	prefix := resource.ErrConflict.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
