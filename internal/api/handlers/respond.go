package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/findash/internal/contracts"
)

// ErrorResponse is the body of every non-2xx JSON answer
type ErrorResponse struct {
	Error  string       `json:"error"`
	Kind   string       `json:"kind,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError names one invalid query parameter
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErr answers with the status code of err's kind
func respondErr(w http.ResponseWriter, err error) {
	respondJSON(w, StatusFor(err), ErrorResponse{
		Error: err.Error(),
		Kind:  contracts.Kind(err),
	})
}

// StatusFor maps the error taxonomy to HTTP status codes
// ⭐ SSOT: 에러 종류 → HTTP 상태 코드 매핑은 여기서만
func StatusFor(err error) int {
	switch contracts.Kind(err) {
	case "":
		return http.StatusOK
	case "invalid_range":
		return http.StatusBadRequest
	case "missing_column":
		return http.StatusNotFound
	case "insufficient_data", "domain_error":
		return http.StatusUnprocessableEntity
	case "empty_result", "fetch_failure":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
