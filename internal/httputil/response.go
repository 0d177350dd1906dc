package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// WriteMessage writes the API's standard success envelope: a human-readable
// "message" field plus any extra payload fields.
func WriteMessage(w http.ResponseWriter, status int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

// WriteError writes a JSON error response with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
