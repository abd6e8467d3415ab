package httpx

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/readify/api/internal/platform/requestctx"
)

const (
	codeLimit      = 80
	messageLimit   = 512
	requestIDLimit = 80
	traceIDLimit   = 64
)

// reservedKeys are envelope fields that details may not overwrite.
var reservedKeys = map[string]struct{}{
	"success":    {},
	"error":      {},
	"message":    {},
	"status":     {},
	"request_id": {},
	"trace_id":   {},
}

// Error is the JSON error envelope returned by the API. It also satisfies the error interface so
// handlers can pass it around before writing.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, codeLimit),
		Message: clean(message, messageLimit),
		Status:  status,
	}
}

func (e Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// WithRequestID overrides the request id otherwise taken from the chi request id middleware.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clean(id, requestIDLimit)
	return e
}

// WithTraceID overrides the trace id otherwise taken from the request context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clean(id, traceIDLimit)
	return e
}

// WithDetails attaches extra top-level fields. Keys colliding with envelope fields are dropped.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError writes {success: false, error, message, status, request_id?, trace_id?, ...details}.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := make(map[string]any, 6+len(err.Details))
	for k, v := range err.Details {
		body[k] = v
	}
	body["success"] = false
	body["error"] = err.Code
	body["message"] = err.Message
	body["status"] = status

	if id := firstNonBlank(err.RequestID, clean(middleware.GetReqID(ctx), requestIDLimit)); id != "" {
		body["request_id"] = id
	}
	if id := firstNonBlank(err.TraceID, clean(requestctx.TraceID(ctx), traceIDLimit)); id != "" {
		body["trace_id"] = id
	}

	WriteJSON(w, status, body)
}

// clean replaces control characters with spaces, trims, and truncates to limit runes.
func clean(value string, limit int) string {
	value = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, value))
	if limit > 0 {
		if runes := []rune(value); len(runes) > limit {
			value = strings.TrimSpace(string(runes[:limit]))
		}
	}
	return value
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
