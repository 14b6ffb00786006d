package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response body.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with a consistent shape:
// {"error": {"code":"...","message":"..."}}
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]any{"error": ErrorPayload{Code: http.StatusText(statusCode), Message: message}}); err != nil {
		fmt.Printf("Failed to write error response: %v\n", err)
	}
}

// WriteErrorWithDetails writes a JSON error with a stable code and additional details map.
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]any{"error": ErrorPayload{Code: code, Message: message, Details: details}}); err != nil {
		fmt.Printf("Failed to write error response: %v\n", err)
	}
}
