package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLValidationError describes a rejected configuration URL.
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateURL requires an absolute http(s) URL with a host. requireHTTPS
// rejects plain http.
func ValidateURL(urlString, fieldName string, requireHTTPS bool) error {
	fail := func(msg string) error {
		return URLValidationError{Field: fieldName, Message: msg, URL: urlString}
	}

	if urlString == "" {
		return fail("is required")
	}
	parsed, err := url.Parse(urlString)
	if err != nil {
		return fail("invalid URL format")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		return fail("URL must include a scheme (http:// or https://)")
	}
	if scheme != "http" && scheme != "https" {
		return fail("URL scheme must be http or https")
	}
	if parsed.Host == "" {
		return fail("URL must include a host")
	}
	if requireHTTPS && scheme != "https" {
		return fail("URL must use HTTPS")
	}
	return nil
}

// ValidateOrigin checks a CORS origin: scheme and host only, no path, query
// or fragment.
func ValidateOrigin(origin, fieldName string) error {
	if err := ValidateURL(origin, fieldName, false); err != nil {
		return err
	}
	parsed, _ := url.Parse(origin)
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return URLValidationError{Field: fieldName, Message: "origin must be scheme://host[:port] only", URL: origin}
	}
	return nil
}
