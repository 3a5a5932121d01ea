package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidPayload is returned when a backend body is not valid JSON.
var ErrInvalidPayload = errors.New("invalid backend payload")

// Pagination mirrors the backend list metadata.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// DecodeData unmarshals the payload of a backend envelope into out.
// The backend wraps single records as {"data": {...}} or {"data": {"<key>": {...}}};
// the first non-null candidate wins and a bare body is the final fallback.
func DecodeData(body []byte, key string, out any) error {
	if !gjson.ValidBytes(body) {
		return ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)

	candidates := make([]string, 0, 2)
	if key != "" {
		candidates = append(candidates, "data."+gjson.Escape(key))
	}
	candidates = append(candidates, "data")

	for _, path := range candidates {
		if r := root.Get(path); r.Exists() && r.Type != gjson.Null {
			if err := json.Unmarshal([]byte(r.Raw), out); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// DecodeList unmarshals a list payload into out (a pointer to a slice) and
// returns its pagination. When the backend omits pagination a single page is assumed.
func DecodeList(body []byte, key string, out any) (Pagination, error) {
	if !gjson.ValidBytes(body) {
		return Pagination{}, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)

	candidates := make([]string, 0, 4)
	if key != "" {
		candidates = append(candidates, "data."+gjson.Escape(key))
	}
	candidates = append(candidates, "data.items", "data", "@this")

	var items gjson.Result
	for _, path := range candidates {
		if r := root.Get(path); r.IsArray() {
			items = r
			break
		}
	}
	if !items.Exists() {
		return Pagination{}, fmt.Errorf("%w: no list found", ErrInvalidPayload)
	}
	if err := json.Unmarshal([]byte(items.Raw), out); err != nil {
		return Pagination{}, fmt.Errorf("decode list: %w", err)
	}

	count := len(items.Array())
	page := Pagination{Page: 1, Limit: count, Total: count, TotalPages: 1}
	for _, path := range []string{"data.pagination", "pagination", "meta.pagination"} {
		if r := root.Get(path); r.IsObject() {
			if err := json.Unmarshal([]byte(r.Raw), &page); err != nil {
				return Pagination{}, fmt.Errorf("decode pagination: %w", err)
			}
			break
		}
	}
	return page, nil
}

// Extract returns the string at a gjson path, or "".
func Extract(body []byte, path string) string {
	return gjson.GetBytes(body, path).String()
}

// parseErrorBody pulls a message, code, and field errors out of an error envelope.
func parseErrorBody(body []byte) (message, code string, fields map[string]string) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return "", "", nil
	}
	root := gjson.ParseBytes(body)

	for _, path := range []string{"error.message", "message", "error"} {
		if r := root.Get(path); r.Type == gjson.String && r.String() != "" {
			message = r.String()
			break
		}
	}
	code = root.Get("error.code").String()

	details := root.Get("error.details")
	if !details.IsArray() {
		details = root.Get("errors")
	}
	if details.IsArray() {
		details.ForEach(func(_, item gjson.Result) bool {
			field := item.Get("field").String()
			if field == "" {
				field = item.Get("path").String()
			}
			if field != "" {
				if fields == nil {
					fields = make(map[string]string)
				}
				fields[field] = item.Get("message").String()
			}
			return true
		})
	}
	return message, code, fields
}
