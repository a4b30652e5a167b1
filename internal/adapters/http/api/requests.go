package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/todos/internal/domain/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

const maxIdempotencyKeyLen = 255

// ValidationError reports a malformed request, optionally per field.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is lets errors.Is(err, ErrBadRequest) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}

func invalid(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func invalidField(msg, field, reason string) *ValidationError {
	return &ValidationError{Message: msg, Fields: map[string]string{field: reason}}
}

// nullableString records whether a JSON field was present and whether it was null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// todoRequest is the body of POST, PUT and PATCH on todos.
type todoRequest struct {
	Content       *string        `json:"content"`
	Completed     *bool          `json:"completed"`
	CompletedDate nullableString `json:"completedDate"`
}

const (
	msgInvalidTodo = "The todo format is not valid"
	msgInvalidBody = "The request body is not valid JSON"
)

// decodeTodoRequest reads a todoRequest from r's body.
func decodeTodoRequest(w http.ResponseWriter, r *http.Request) (todoRequest, error) {
	var req todoRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return req, invalid("The request body is required")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return req, invalidField(msgInvalidTodo, typeErr.Field, "must be a "+jsonKind(typeErr.Field))
		case errors.As(err, &maxErr):
			return req, invalid(fmt.Sprintf("The request body must not exceed %d bytes", maxErr.Limit))
		default:
			return req, invalid(msgInvalidBody)
		}
	}
	if dec.More() {
		return req, invalid(msgInvalidBody)
	}
	return req, nil
}

func jsonKind(field string) string {
	switch field {
	case "completed":
		return "boolean"
	default:
		return "string"
	}
}

// toCreate validates the body of POST and PUT.
func (req todoRequest) toCreate() (model.TodoCreate, error) {
	fields := map[string]string{}

	var out model.TodoCreate
	switch {
	case req.Content == nil:
		fields["content"] = "is required"
	case strings.TrimSpace(*req.Content) == "":
		fields["content"] = "must not be empty"
	default:
		out.Content = *req.Content
	}
	if req.Completed != nil {
		out.Completed = *req.Completed
	}
	if req.CompletedDate.Value != nil {
		ts, err := parseTimestamp(*req.CompletedDate.Value)
		if err != nil {
			fields["completedDate"] = err.Error()
		} else {
			out.CompletedDate = &ts
		}
	}

	if len(fields) > 0 {
		return model.TodoCreate{}, &ValidationError{Message: msgInvalidTodo, Fields: fields}
	}
	return out, nil
}

// toPatch validates the body of PATCH. Every field is optional.
func (req todoRequest) toPatch() (model.TodoPatch, error) {
	fields := map[string]string{}

	var out model.TodoPatch
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			fields["content"] = "must not be empty"
		} else {
			out.Content = req.Content
		}
	}
	out.Completed = req.Completed
	if req.CompletedDate.Set {
		if req.CompletedDate.Value == nil {
			out.ClearCompletedDate = true
		} else if ts, err := parseTimestamp(*req.CompletedDate.Value); err != nil {
			fields["completedDate"] = err.Error()
		} else {
			out.CompletedDate = &ts
		}
	}

	if len(fields) > 0 {
		return model.TodoPatch{}, &ValidationError{Message: msgInvalidTodo, Fields: fields}
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.New("must be an RFC 3339 timestamp")
	}
	return ts.UTC(), nil
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, invalidField("Invalid id provided", "id", "must be a positive integer")
	}
	return id, nil
}

// parseIdempotencyKey reads the optional Idempotency-Key header.
func parseIdempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		return "", invalidField("Invalid idempotency key", "Idempotency-Key",
			fmt.Sprintf("must not exceed %d characters", maxIdempotencyKeyLen))
	}
	return key, nil
}

// parsePositiveQuery reads an optional positive integer query parameter.
func parsePositiveQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalidField("Invalid pagination parameters", key, "must be a positive integer")
	}
	return n, nil
}
