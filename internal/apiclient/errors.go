package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lshigami/iqtester/internal/dto"
)

// ErrUnauthorized matches any APIError with status 401: bad credentials or a
// missing/expired access token.
var ErrUnauthorized = errors.New("unauthorized")

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message())
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Message extracts the server's error text, falling back to the raw body.
func (e *APIError) Message() string {
	var body dto.ErrorResponse
	if err := json.Unmarshal(e.Body, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	msg := strings.TrimSpace(string(e.Body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return msg
}

// ValidationError carries the per-field messages of a rejected registration.
type ValidationError struct {
	Fields map[string][]string
	Err    *APIError
}

// fieldPriority is the order in which field errors are reported.
var fieldPriority = []string{"username", "email", "password", "non_field_errors"}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message()
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// Message returns the single most relevant field error.
func (e *ValidationError) Message() string {
	for _, field := range fieldPriority {
		if msgs := e.Fields[field]; len(msgs) > 0 {
			if field == "non_field_errors" {
				return msgs[0]
			}
			return field + ": " + msgs[0]
		}
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msgs := e.Fields[k]; len(msgs) > 0 {
			return k + ": " + msgs[0]
		}
	}
	return "registration rejected, check the entered data"
}

// parseFieldErrors decodes a field→messages object where each value is either
// a list of strings or a single string.
func parseFieldErrors(body []byte) (map[string][]string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return nil, false
	}

	fields := make(map[string][]string, len(raw))
	for k, v := range raw {
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			fields[k] = list
			continue
		}
		var single string
		if err := json.Unmarshal(v, &single); err == nil {
			fields[k] = []string{single}
		}
	}
	return fields, len(fields) > 0
}
