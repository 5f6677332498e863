package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/respondeo/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard error JSON body.
func WriteError(w http.ResponseWriter, statusCode int, message, detail string) error {
	return WriteJSON(w, statusCode, models.ErrorResponse{
		Error:  message,
		Detail: detail,
	})
}
