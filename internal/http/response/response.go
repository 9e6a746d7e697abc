package response

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 envelope with status "success".
func Success(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusOK, "success", message, data)
}

// Created writes a 201 envelope with status "created".
func Created(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusCreated, "created", message, data)
}

// Fail writes a client-fault envelope with status "fail".
func Fail(w http.ResponseWriter, httpStatus int, message string) {
	write(w, httpStatus, "fail", message, nil)
}

// Error writes a server-fault envelope with status "error".
func Error(w http.ResponseWriter, httpStatus int, message string) {
	write(w, httpStatus, "error", message, nil)
}

func write(w http.ResponseWriter, httpStatus int, status, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(envelope{Status: status, Message: message, Data: data})
}
