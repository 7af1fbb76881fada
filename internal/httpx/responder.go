package httpx

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload verbatim as a JSON body with the supplied status code.
// A nil payload produces a bodyless response.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Data wraps payload in the data envelope every successful response of the
// API uses.
func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, map[string]any{"data": payload})
}

// Error writes an error message in the matching error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"error": message})
}
