// Package validation checks request payloads before anything is sent to the backend.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a JSON field path to a human-readable message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrBodyTooLarge is returned by DecodeAndValidate when the body exceeds maxBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// Normalizer is implemented by payloads that trim or sanitize themselves
// after decoding and before validation.
type Normalizer interface {
	Normalize()
}

// Checker is implemented by payloads with cross-field rules. Check runs after
// the tag rules; its errors never replace a tag error on the same field.
type Checker interface {
	Check() FieldErrors
}

const DateLayout = "2006-01-02"

var (
	studentNumberPattern = regexp.MustCompile(`^[A-Z0-9]{4,20}$`)
	currencyPattern      = regexp.MustCompile(`^[A-Z]{3}$`)

	validate = newValidator()
	now      = time.Now
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s: %v", tag, err))
		}
	}
	must("isodate", isISODate)
	must("notfuture", notFuture)
	must("studentnumber", isStudentNumber)
	must("currency", isCurrency)
	return v
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Backend records may carry
// either; form input is held to YYYY-MM-DD by the isodate tag.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// isISODate accepts a calendar date only; timestamps are rejected.
func isISODate(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

// notFuture compares by calendar day for dates and by instant for timestamps.
func notFuture(fl validator.FieldLevel) bool {
	current := now()
	switch v := fl.Field().Interface().(type) {
	case time.Time:
		return !v.After(current)
	case string:
		if d, err := time.Parse(DateLayout, v); err == nil {
			today := time.Date(current.Year(), current.Month(), current.Day(), 0, 0, 0, 0, time.UTC)
			return !d.After(today)
		}
		t, err := time.Parse(time.RFC3339, v)
		return err == nil && !t.After(current)
	default:
		return false
	}
}

func isStudentNumber(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String && studentNumberPattern.MatchString(fl.Field().String())
}

// isCurrency accepts a three-letter uppercase currency code such as USD.
func isCurrency(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String && currencyPattern.MatchString(fl.Field().String())
}

// Validate checks v's validate tags and, for a Checker, its cross-field
// rules. Failures come back as FieldErrors.
func Validate(v any) error {
	out := FieldErrors{}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			key := fieldPath(fe)
			if _, exists := out[key]; !exists {
				out[key] = message(fe)
			}
		}
	}
	if c, ok := v.(Checker); ok {
		for key, msg := range c.Check() {
			if _, exists := out[key]; !exists {
				out[key] = msg
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// fieldPath drops the root struct name: "Student.contact.phone" -> "contact.phone".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + param + " characters"
		}
		return "must be at least " + param
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + param + " characters"
		}
		return "must be at most " + param
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "datetime":
		return "must be a timestamp in RFC 3339 format"
	case "e164":
		return "must be a phone number in international format"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "notfuture":
		return "must not be in the future"
	case "studentnumber":
		return "must be 4-20 uppercase letters or digits"
	case "currency":
		return "must be a three-letter uppercase currency code"
	default:
		return "is invalid"
	}
}

// DecodeAndValidate reads one JSON object from r into v, rejecting unknown
// fields, then normalizes and validates it. Decode problems are reported as
// FieldErrors under "body" (or the offending field).
func DecodeAndValidate(r *http.Request, maxBytes int64, v any) error {
	if r.Body == nil {
		return FieldErrors{"body": "request body is empty"}
	}
	body := io.Reader(r.Body)
	if maxBytes > 0 {
		body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return FieldErrors{"body": "must contain a single JSON object"}
	}

	if n, ok := v.(Normalizer); ok {
		n.Normalize()
	}
	return Validate(v)
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.Is(err, io.EOF):
		return FieldErrors{"body": "request body is empty"}
	case errors.As(err, &maxErr):
		return fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, maxErr.Limit)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return FieldErrors{typeErr.Field: "must be a " + jsonKind(typeErr.Type)}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return FieldErrors{"body": "malformed JSON"}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return FieldErrors{field: "is not allowed"}
	default:
		return FieldErrors{"body": "malformed JSON"}
	}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "list"
	default:
		return "object"
	}
}
