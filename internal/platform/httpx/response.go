package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes bounds request payloads decoded by DecodeJSON.
const MaxBodyBytes = 64 << 10

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Envelope is the success response body. The payload is placed under Key ("data" when empty).
type Envelope struct {
	Message    string
	Key        string
	Payload    any
	Pagination *Pagination
}

// WriteSuccess writes {success: true, message, <key>: payload, pagination?}.
func WriteSuccess(w http.ResponseWriter, status int, env Envelope) {
	key := env.Key
	if key == "" {
		key = "data"
	}
	body := map[string]any{
		"success": true,
		"message": env.Message,
	}
	if env.Payload != nil {
		body[key] = env.Payload
	}
	if env.Pagination != nil {
		body["pagination"] = env.Pagination
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes payload as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON decodes a bounded JSON body into dst, rejecting unknown fields and trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
