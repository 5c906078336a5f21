// Package handlers implements the HTTP surface of the records API: request
// parsing and validation, the stable error envelope, and route registration.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rowgate/rowgate/pkg/apperrors"
)

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError classifies err and writes the stable error envelope. The status
// code follows the error kind; details are included only when the error
// carries them.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := apperrors.From(err)
	body := map[string]any{
		"error":   true,
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	return WriteJSON(w, appErr.StatusCode(), body)
}
