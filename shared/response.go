package shared

import (
	"encoding/json"
	"net/http"
	"time"
)

type errorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse lists every violated constraint of a request body.
type ValidationErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Errors    []string  `json:"errors"`
}

func SendJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func SendError(w http.ResponseWriter, message string, status int) {
	_ = SendJSON(w, status, errorResponse{Error: message})
}

func SendValidationError(w http.ResponseWriter, messages []string) {
	if messages == nil {
		messages = []string{}
	}
	_ = SendJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    http.StatusBadRequest,
		Errors:    messages,
	})
}
