package handler

import (
	"encoding/json"
	"net/http"
)

// Error is the error, category and http status code to return
type Error struct {
	Message  string
	Category string
	Code     int
}

// InternalServerError is a convenience function for returning an internal server error
func InternalServerError() *Error {
	return &Error{
		Message: "Something went wrong",
		Code:    http.StatusInternalServerError,
	}
}

// BadRequest is a convenience function for returning a bad request error
func BadRequest(message string) *Error {
	return &Error{
		Message:  message,
		Category: "input",
		Code:     http.StatusBadRequest,
	}
}

// Handler wraps a http handler and deals with responding to errors
type Handler func(w http.ResponseWriter, r *http.Request) *Error

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h(w, r)
	if err == nil {
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)

	var data = struct {
		Error    string `json:"error"`
		Category string `json:"category,omitempty"`
	}{err.Message, err.Category}

	if encodeErr := json.NewEncoder(w).Encode(data); encodeErr != nil {
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
	}
}
