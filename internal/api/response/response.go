package response

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// bareError is the error shape read by the single-page frontend.
type bareError struct {
	Error string `json:"error"`
}

// bareWriter marks a response that must be written without the envelope.
type bareWriter struct {
	http.ResponseWriter
}

// Bare makes JSON and Error write unwrapped bodies for handlers under next:
// the payload at the top level and errors as {"error": "<message>"}.
func Bare(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(bareWriter{w}, r)
	})
}

func isBare(w http.ResponseWriter) bool {
	_, ok := w.(bareWriter)
	return ok
}

func JSON(w http.ResponseWriter, data any) {
	if isBare(w) {
		writeJSON(w, http.StatusOK, data)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	if isBare(w) {
		writeJSON(w, status, bareError{Error: message})
		return
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
