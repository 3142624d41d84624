package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/firehose-io/firehose/internal/stream"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// statusForError maps the stream error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var (
		authn   *stream.AuthenticationError
		authz   *stream.AuthorizationError
		invalid *stream.ValidationError
		unknown *stream.UnknownStreamError
	)
	switch {
	case errors.As(err, &authn):
		return http.StatusUnauthorized
	case errors.As(err, &authz):
		return http.StatusUnauthorized
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &unknown):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// parseBool parses a boolean query parameter.
//
// Returns true for "true" or "1", false otherwise.
func parseBool(s string) bool {
	return s == "true" || s == "1"
}
