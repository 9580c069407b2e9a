package server

import (
	"encoding/json"
	"net/http"
)

// Response is the success envelope returned by every API endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	TotalCount int `json:"total_count"`
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// ListResponse is the success envelope for paginated endpoints.
type ListResponse struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Message    string     `json:"message"`
	Pagination Pagination `json:"pagination"`
}

// ErrorResponse is the failure envelope. Data is always an empty object.
type ErrorResponse struct {
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data"`
	ErrorMessage string         `json:"error_message"`
	Errors       any            `json:"errors"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Success writes a success envelope.
func Success(w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = map[string]any{}
	}
	JSON(w, status, Response{Success: true, Data: data, Message: message})
}

// List writes a 200 paginated success envelope.
func List(w http.ResponseWriter, data any, message string, p Pagination) {
	JSON(w, http.StatusOK, ListResponse{Success: true, Data: data, Message: message, Pagination: p})
}

// Error writes a failure envelope with no field details.
func Error(w http.ResponseWriter, status int, message string) {
	ErrorWithDetails(w, status, message, nil)
}

// ErrorWithDetails writes a failure envelope; details fills the errors list.
func ErrorWithDetails(w http.ResponseWriter, status int, message string, details any) {
	if details == nil {
		details = []any{}
	}
	JSON(w, status, ErrorResponse{
		Success:      false,
		Data:         map[string]any{},
		ErrorMessage: message,
		Errors:       details,
	})
}
