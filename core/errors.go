package core

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fld := range err.Fields {
		msgs = append(msgs, fld.Field+": "+fld.Error)
	}
	return strings.Join(msgs, "; ")
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(err.Fields))
	for _, fld := range err.Fields {
		m[fld.Field] = fld.Error
	}
	return m
}

// GatewayError is a non-2xx answer from the remote API.
// Fields holds the field-keyed error object of the response body, when there was one.
type GatewayError struct {
	Status  int
	Fields  map[string][]string
	Message string
}

func (err *GatewayError) Error() string {
	if err.Message != "" {
		return err.Message
	}
	if len(err.Fields) > 0 {
		return joinFieldMessages(err.Fields)
	}
	return fmt.Sprintf("request failed (%d)", err.Status)
}

// NotFound tells whether the remote resource does not exist.
func (err *GatewayError) NotFound() bool { return err.Status == http.StatusNotFound }

// messageKeys are the body keys carrying the message itself, by precedence.
var messageKeys = []string{"detail", "message", "error"}

// NewGatewayError builds a GatewayError out of a decoded error body.
// The first of "detail", "message" and "error" found is the message; any other key is a field.
func NewGatewayError(status int, body map[string]interface{}) *GatewayError {
	gErr := &GatewayError{Status: status}
	for _, key := range messageKeys {
		if msgs := flattenMessages(body[key]); len(msgs) > 0 {
			gErr.Message = strings.Join(msgs, " ")
			break
		}
	}
	for _, key := range sortedKeys(body) {
		if isMessageKey(key) {
			continue
		}
		if msgs := flattenMessages(body[key]); len(msgs) > 0 {
			if gErr.Fields == nil {
				gErr.Fields = make(map[string][]string)
			}
			gErr.Fields[key] = msgs
		}
	}
	if gErr.Message == "" && len(gErr.Fields) > 0 {
		gErr.Message = joinFieldMessages(gErr.Fields)
	}
	return gErr
}

func isMessageKey(key string) bool {
	for _, k := range messageKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsGatewayError reports whether the cause of err is a *GatewayError and returns it.
func IsGatewayError(err error) (*GatewayError, bool) {
	gErr, ok := errors.Cause(err).(*GatewayError)
	return gErr, ok
}

func flattenMessages(val interface{}) []string {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []interface{}:
		msgs := make([]string, 0, len(v))
		for _, item := range v {
			msgs = append(msgs, flattenMessages(item)...)
		}
		return msgs
	case map[string]interface{}:
		keys := sortedKeys(v)
		msgs := make([]string, 0, len(keys))
		for _, k := range keys {
			msgs = append(msgs, flattenMessages(v[k])...)
		}
		return msgs
	default:
		return []string{fmt.Sprint(v)}
	}
}

func joinFieldMessages(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, strings.Join(fields[k], "; "))
	}
	return strings.Join(msgs, "; ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
