package utils

import (
	"encoding/json"
	"net/http"
)

const (
	// Request Error Codes
	ErrRequestInvalid           = "request/invalid_parameters"
	ErrRequestNotFound          = "request/not_found"
	ErrRequestRateLimitExceeded = "request/rate_limit_exceeded"

	// Server Error Codes
	ErrServerInternal = "server/internal_error"

	// Domain Error Codes
	ErrStoreQueryFailed  = "store/query_failed"
	ErrIndexRunConflict  = "index/run_in_progress"
	ErrIndexRunFailed    = "index/run_failed"
	ErrPhotoNotFound     = "photo/not_found"
	ErrClusterKeyInvalid = "cluster/invalid_key"
)

type APIError struct {
	Code    string `json:"code"`    // e.g., "request/invalid_parameters"
	Message string `json:"message"` // User-friendly message
	Status  int    `json:"status"`  // HTTP Status Code
}

// WriteError sends a JSON formatted error response
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
